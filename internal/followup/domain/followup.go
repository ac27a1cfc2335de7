package domain

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FollowupStatus represents the lifecycle state of a followup.
type FollowupStatus string

const (
	StatusScheduled  FollowupStatus = "scheduled"  // waiting for its due date
	StatusProcessing FollowupStatus = "processing" // claimed by a processor pass
	StatusSent       FollowupStatus = "sent"       // generation dispatched successfully
	StatusCancelled  FollowupStatus = "cancelled"  // terminal, prospect replied or manual
	StatusError      FollowupStatus = "error"      // terminal but retriable
)

// Cancellation reasons recorded on the cancelled transition.
const (
	CancelReasonManual          = "manual"
	CancelReasonProspectReplied = "prospect_replied"
)

// validTransitions is the single authority on legal status changes.
// processing -> cancelled serves the reply-check path and, by policy,
// bulk cancellation of in-flight records.
var validTransitions = map[FollowupStatus]map[FollowupStatus]bool{
	StatusScheduled: {
		StatusProcessing: true,
		StatusCancelled:  true,
	},
	StatusProcessing: {
		StatusSent:      true,
		StatusError:     true,
		StatusCancelled: true,
	},
	StatusError: {
		StatusScheduled: true,
	},
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to FollowupStatus) bool {
	return validTransitions[from][to]
}

// ValidateTransition returns ErrInvalidTransition for any status change
// outside the transition table. Repositories call this before writing;
// hitting it is a programming error, not a domain condition.
func ValidateTransition(from, to FollowupStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// ContactSnapshot is the contact data embedded in a followup at creation
// time. It is the fallback when the external provider cannot resolve
// fresher data at processing time.
type ContactSnapshot struct {
	RecipientEmail string `json:"recipient_email"`
	ContactName    string `json:"contact_name"`
	CompanyName    string `json:"company_name"`
}

// Followup is a scheduled, tracked future action tied to a draft and a
// position in a fixed sequence. Field names and status values are a
// compatibility contract with the UI reading the store.
type Followup struct {
	ID             uuid.UUID `json:"id"`
	DraftID        string    `json:"draft_id"`
	VersionGroupID string    `json:"version_group_id"`
	// ExternalID re-resolves current contact data; may be empty.
	ExternalID     string         `json:"external_id,omitempty"`
	SequenceNumber int            `json:"sequence_number"`
	ScheduledFor   time.Time      `json:"scheduled_for"`
	Status         FollowupStatus `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`

	ProcessedAt        sql.NullTime   `json:"processed_at,omitempty"`
	SentAt             sql.NullTime   `json:"sent_at,omitempty"`
	CancelledAt        sql.NullTime   `json:"cancelled_at,omitempty"`
	CancellationReason sql.NullString `json:"cancellation_reason,omitempty"`
	ErrorMessage       sql.NullString `json:"error_message,omitempty"`
	CreatedDraftID     sql.NullString `json:"created_draft_id,omitempty"`

	Contact ContactSnapshot `json:"contact"`
}

// NewFollowup creates a followup in the scheduled state.
func NewFollowup(draftID, versionGroupID, externalID string, sequenceNumber int, scheduledFor time.Time, contact ContactSnapshot) *Followup {
	return &Followup{
		ID:             uuid.New(),
		DraftID:        draftID,
		VersionGroupID: versionGroupID,
		ExternalID:     externalID,
		SequenceNumber: sequenceNumber,
		ScheduledFor:   scheduledFor,
		Status:         StatusScheduled,
		CreatedAt:      time.Now().UTC(),
		Contact:        contact,
	}
}

// FallbackContact builds contact data from the embedded snapshot.
func (f *Followup) FallbackContact() ContactData {
	return ContactData{
		ExternalID:  f.ExternalID,
		Email:       f.Contact.RecipientEmail,
		Name:        f.Contact.ContactName,
		CompanyName: f.Contact.CompanyName,
	}
}
