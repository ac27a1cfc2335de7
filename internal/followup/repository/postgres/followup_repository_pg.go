package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wardrockay/auto-followup/internal/followup/domain"
)

const followupColumns = `id, draft_id, version_group_id, external_id, sequence_number, scheduled_for, status,
	created_at, processed_at, sent_at, cancelled_at, cancellation_reason, error_message, created_draft_id,
	recipient_email, contact_name, company_name`

// PgFollowupRepository is the Postgres-backed domain.FollowupRepository.
// Uniqueness of (draft_id, sequence_number) and the CAS transition are
// enforced at the storage layer, not with read-then-write.
type PgFollowupRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewPgFollowupRepository(db *pgxpool.Pool, logger *slog.Logger) *PgFollowupRepository {
	return &PgFollowupRepository{db: db, logger: logger}
}

func (r *PgFollowupRepository) CreateIfAbsent(ctx context.Context, f *domain.Followup) (bool, error) {
	query := `
		INSERT INTO followups (` + followupColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (draft_id, sequence_number) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query,
		f.ID, f.DraftID, f.VersionGroupID, f.ExternalID, f.SequenceNumber, f.ScheduledFor, f.Status,
		f.CreatedAt, f.ProcessedAt, f.SentAt, f.CancelledAt, f.CancellationReason, f.ErrorMessage, f.CreatedDraftID,
		f.Contact.RecipientEmail, f.Contact.ContactName, f.Contact.CompanyName,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error creating followup", "error", err, "followup_id", f.ID)
		return false, err
	}
	if tag.RowsAffected() == 0 {
		r.logger.InfoContext(ctx, "Followup already exists, skipping create",
			"draft_id", f.DraftID, "sequence_number", f.SequenceNumber)
		return false, nil
	}
	return true, nil
}

func (r *PgFollowupRepository) GetByDraft(ctx context.Context, draftID string) ([]*domain.Followup, error) {
	query := `SELECT ` + followupColumns + ` FROM followups WHERE draft_id = $1 ORDER BY sequence_number ASC`
	rows, err := r.db.Query(ctx, query, draftID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing followups by draft", "error", err, "draft_id", draftID)
		return nil, err
	}
	defer rows.Close()
	return scanFollowups(rows)
}

func (r *PgFollowupRepository) SelectDue(ctx context.Context, now time.Time) ([]*domain.Followup, error) {
	query := `SELECT ` + followupColumns + ` FROM followups
		WHERE status = $1 AND scheduled_for <= $2
		ORDER BY scheduled_for ASC`
	rows, err := r.db.Query(ctx, query, domain.StatusScheduled, now)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error selecting due followups", "error", err)
		return nil, err
	}
	defer rows.Close()
	return scanFollowups(rows)
}

func (r *PgFollowupRepository) SelectByStatus(ctx context.Context, status domain.FollowupStatus) ([]*domain.Followup, error) {
	query := `SELECT ` + followupColumns + ` FROM followups WHERE status = $1 ORDER BY scheduled_for ASC`
	rows, err := r.db.Query(ctx, query, status)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error selecting followups by status", "error", err, "status", status)
		return nil, err
	}
	defer rows.Close()
	return scanFollowups(rows)
}

// CASTransition performs the conditional status write as a single
// UPDATE keyed on the previous status value. A zero row count means the
// record left the expected state first; the caller skips.
func (r *PgFollowupRepository) CASTransition(ctx context.Context, id uuid.UUID, expected, next domain.FollowupStatus, fields domain.TransitionFields) (bool, error) {
	if err := domain.ValidateTransition(expected, next); err != nil {
		return false, err
	}

	var query string
	var args []any
	switch next {
	case domain.StatusProcessing:
		query = `UPDATE followups SET status = $1, processed_at = $2 WHERE id = $3 AND status = $4`
		args = []any{next, fields.ProcessedAt, id, expected}
	case domain.StatusSent:
		query = `UPDATE followups SET status = $1, sent_at = $2, created_draft_id = $3 WHERE id = $4 AND status = $5`
		args = []any{next, fields.SentAt, fields.CreatedDraftID, id, expected}
	case domain.StatusCancelled:
		query = `UPDATE followups SET status = $1, cancelled_at = $2, cancellation_reason = $3 WHERE id = $4 AND status = $5`
		args = []any{next, fields.CancelledAt, fields.CancellationReason, id, expected}
	case domain.StatusError:
		query = `UPDATE followups SET status = $1, error_message = $2 WHERE id = $3 AND status = $4`
		args = []any{next, fields.ErrorMessage, id, expected}
	case domain.StatusScheduled:
		// Retry path: re-queue and clear the recorded error.
		query = `UPDATE followups SET status = $1, error_message = NULL WHERE id = $2 AND status = $3`
		args = []any{next, id, expected}
	default:
		return false, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, expected, next)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error applying followup transition", "error", err, "followup_id", id, "from", expected, "to", next)
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	return true, nil
}

func (r *PgFollowupRepository) ReclaimStale(ctx context.Context, olderThan time.Time) (int, error) {
	query := `UPDATE followups SET status = $1, processed_at = NULL
		WHERE status = $2 AND processed_at IS NOT NULL AND processed_at <= $3`
	tag, err := r.db.Exec(ctx, query, domain.StatusScheduled, domain.StatusProcessing, olderThan)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error reclaiming stale processing followups", "error", err)
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func scanFollowups(rows pgx.Rows) ([]*domain.Followup, error) {
	var followups []*domain.Followup
	for rows.Next() {
		f := &domain.Followup{}
		if err := rows.Scan(
			&f.ID, &f.DraftID, &f.VersionGroupID, &f.ExternalID, &f.SequenceNumber, &f.ScheduledFor, &f.Status,
			&f.CreatedAt, &f.ProcessedAt, &f.SentAt, &f.CancelledAt, &f.CancellationReason, &f.ErrorMessage, &f.CreatedDraftID,
			&f.Contact.RecipientEmail, &f.Contact.ContactName, &f.Contact.CompanyName,
		); err != nil {
			return nil, err
		}
		followups = append(followups, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return followups, nil
}
