package domain

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// TransitionFields carries the columns set by a status transition.
// Only the fields the target status owns are populated by callers.
type TransitionFields struct {
	ProcessedAt        sql.NullTime
	SentAt             sql.NullTime
	CancelledAt        sql.NullTime
	CancellationReason sql.NullString
	ErrorMessage       sql.NullString
	CreatedDraftID     sql.NullString
}

// FollowupRepository is the persistence contract for followup records.
type FollowupRepository interface {
	// CreateIfAbsent inserts the followup unless a record for the same
	// (draft_id, sequence_number) already exists. Returns whether a row
	// was created.
	CreateIfAbsent(ctx context.Context, f *Followup) (bool, error)

	GetByDraft(ctx context.Context, draftID string) ([]*Followup, error)

	// SelectDue returns followups in the scheduled state whose
	// scheduled_for is at or before now.
	SelectDue(ctx context.Context, now time.Time) ([]*Followup, error)

	SelectByStatus(ctx context.Context, status FollowupStatus) ([]*Followup, error)

	// CASTransition atomically moves the record from expected to next,
	// writing fields in the same statement. It returns false, nil when
	// the stored status no longer matches expected (lost race), and an
	// error for transitions outside the table.
	CASTransition(ctx context.Context, id uuid.UUID, expected, next FollowupStatus, fields TransitionFields) (bool, error)

	// ReclaimStale re-admits processing records whose claim is older
	// than the cutoff back to scheduled, returning how many moved.
	ReclaimStale(ctx context.Context, olderThan time.Time) (int, error)
}

// DraftRepository is the read-only contract over the draft store.
type DraftRepository interface {
	GetByID(ctx context.Context, id string) (*Draft, error)
	Exists(ctx context.Context, id string) (bool, error)
}
