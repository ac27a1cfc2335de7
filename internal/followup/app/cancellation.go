package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/wardrockay/auto-followup/internal/followup/domain"
)

// CancellationService bulk-cancels the pending followups of a draft.
type CancellationService struct {
	drafts    domain.DraftRepository
	followups domain.FollowupRepository
	publisher EventPublisher
	logger    *slog.Logger
	// includeProcessing extends cancellation to records already claimed
	// by a processor pass (reply arriving mid-dispatch).
	includeProcessing bool
}

func NewCancellationService(
	drafts domain.DraftRepository,
	followups domain.FollowupRepository,
	publisher EventPublisher,
	logger *slog.Logger,
	includeProcessing bool,
) *CancellationService {
	return &CancellationService{
		drafts:            drafts,
		followups:         followups,
		publisher:         publisher,
		logger:            logger,
		includeProcessing: includeProcessing,
	}
}

// CancellationResult reports a bulk cancellation outcome. Zero affected
// records is a success, not an error.
type CancellationResult struct {
	DraftID        string `json:"draft_id"`
	CancelledCount int    `json:"cancelled_count"`
}

// CancelForDraft transitions every cancellable followup of the draft to
// cancelled with the given reason. Lost CAS races are skipped silently.
func (s *CancellationService) CancelForDraft(ctx context.Context, draftID, reason string) (*CancellationResult, error) {
	switch reason {
	case domain.CancelReasonManual, domain.CancelReasonProspectReplied:
	case "":
		reason = domain.CancelReasonManual
	default:
		return nil, fmt.Errorf("unknown cancellation reason %q", reason)
	}

	exists, err := s.drafts.Exists(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("check draft %s: %w", draftID, err)
	}
	if !exists {
		return nil, fmt.Errorf("draft %s: %w", draftID, domain.ErrNotFound)
	}

	followups, err := s.followups.GetByDraft(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("load followups for draft %s: %w", draftID, err)
	}

	result := &CancellationResult{DraftID: draftID}
	for _, f := range followups {
		if f.Status != domain.StatusScheduled && !(s.includeProcessing && f.Status == domain.StatusProcessing) {
			continue
		}

		applied, err := s.followups.CASTransition(ctx, f.ID, f.Status, domain.StatusCancelled, domain.TransitionFields{
			CancelledAt:        sql.NullTime{Time: time.Now().UTC(), Valid: true},
			CancellationReason: sql.NullString{String: reason, Valid: true},
		})
		if err != nil {
			return nil, fmt.Errorf("cancel followup %s: %w", f.ID, err)
		}
		if !applied {
			s.logger.InfoContext(ctx, "Followup changed state concurrently, skipping cancel", "followup_id", f.ID)
			continue
		}

		followupsCancelledCounter.WithLabelValues(reason).Inc()
		result.CancelledCount++
		publishEvent(ctx, s.publisher, s.logger, SubjectFollowupCancelled, FollowupEvent{
			FollowupID:     f.ID.String(),
			DraftID:        f.DraftID,
			SequenceNumber: f.SequenceNumber,
			Reason:         reason,
			OccurredAt:     time.Now().UTC(),
		})
	}

	s.logger.InfoContext(ctx, "Cancelled followups for draft",
		"draft_id", draftID,
		"cancelled_count", result.CancelledCount,
		"reason", reason,
	)
	return result, nil
}
