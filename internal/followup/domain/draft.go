package domain

import "database/sql"

// DraftStatusSent is the only draft status eligible for followup scheduling.
const DraftStatusSent = "sent"

// Draft is the originating email record a followup sequence is attached to.
// The engine reads drafts but does not own their lifecycle.
type Draft struct {
	ID             string       `json:"id"`
	ExternalID     string       `json:"external_id,omitempty"`
	VersionGroupID string       `json:"version_group_id,omitempty"`
	Status         string       `json:"status"`
	SentAt         sql.NullTime `json:"sent_at,omitempty"`
	ReplyReceived  bool         `json:"reply_received"`

	RecipientEmail string `json:"recipient_email,omitempty"`
	ContactName    string `json:"contact_name,omitempty"`
	CompanyName    string `json:"company_name,omitempty"`
}

// IsSent reports whether the draft has been sent.
func (d *Draft) IsSent() bool {
	return d.Status == DraftStatusSent
}

// ContactSnapshot captures the draft's contact fields for embedding in a
// followup at creation time.
func (d *Draft) ContactSnapshot() ContactSnapshot {
	return ContactSnapshot{
		RecipientEmail: d.RecipientEmail,
		ContactName:    d.ContactName,
		CompanyName:    d.CompanyName,
	}
}
