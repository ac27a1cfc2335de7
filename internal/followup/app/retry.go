package app

import (
	"context"
	"log/slog"

	"github.com/wardrockay/auto-followup/internal/followup/domain"
)

// RetryService re-queues followups left in the error state. It does not
// re-run the dispatch pipeline itself; a later processing pass picks
// the records up when they are due.
type RetryService struct {
	followups domain.FollowupRepository
	logger    *slog.Logger
}

func NewRetryService(followups domain.FollowupRepository, logger *slog.Logger) *RetryService {
	return &RetryService{followups: followups, logger: logger}
}

// RetryAll moves every error followup back to scheduled, clearing its
// error message, and returns how many were re-queued. scheduled_for is
// never recomputed here.
func (s *RetryService) RetryAll(ctx context.Context) (int, error) {
	failed, err := s.followups.SelectByStatus(ctx, domain.StatusError)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to select error followups", "error", err)
		return 0, err
	}
	if len(failed) == 0 {
		s.logger.InfoContext(ctx, "No error followups to retry")
		return 0, nil
	}

	retried := 0
	for _, f := range failed {
		applied, err := s.followups.CASTransition(ctx, f.ID, domain.StatusError, domain.StatusScheduled, domain.TransitionFields{})
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to re-queue followup", "followup_id", f.ID, "error", err)
			continue
		}
		if !applied {
			s.logger.InfoContext(ctx, "Followup left error state concurrently, skipping", "followup_id", f.ID)
			continue
		}
		followupsRetriedCounter.Inc()
		retried++
	}

	s.logger.InfoContext(ctx, "Retry pass complete", "selected", len(failed), "retried", retried)
	return retried, nil
}
