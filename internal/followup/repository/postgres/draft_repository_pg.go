package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wardrockay/auto-followup/internal/followup/domain"
)

// PgDraftRepository reads the email_drafts table owned by the drafting
// pipeline. This service never writes drafts.
type PgDraftRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewPgDraftRepository(db *pgxpool.Pool, logger *slog.Logger) *PgDraftRepository {
	return &PgDraftRepository{db: db, logger: logger}
}

func (r *PgDraftRepository) GetByID(ctx context.Context, id string) (*domain.Draft, error) {
	query := `
		SELECT id, external_id, version_group_id, status, sent_at, reply_received,
			recipient_email, contact_name, company_name
		FROM email_drafts
		WHERE id = $1
	`
	d := &domain.Draft{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&d.ID, &d.ExternalID, &d.VersionGroupID, &d.Status, &d.SentAt, &d.ReplyReceived,
		&d.RecipientEmail, &d.ContactName, &d.CompanyName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error getting draft by ID", "error", err, "draft_id", id)
		return nil, err
	}
	return d, nil
}

func (r *PgDraftRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM email_drafts WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error checking draft existence", "error", err, "draft_id", id)
		return false, err
	}
	return exists, nil
}
