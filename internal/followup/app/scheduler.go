package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wardrockay/auto-followup/internal/followup/domain"
)

// SchedulerService creates the fixed sequence of followup records for a
// sent draft, using business-day arithmetic for the due dates.
type SchedulerService struct {
	drafts    domain.DraftRepository
	followups domain.FollowupRepository
	calendar  *domain.Calendar
	schedule  []domain.ScheduleEntry
	logger    *slog.Logger
}

func NewSchedulerService(
	drafts domain.DraftRepository,
	followups domain.FollowupRepository,
	calendar *domain.Calendar,
	schedule []domain.ScheduleEntry,
	logger *slog.Logger,
) *SchedulerService {
	return &SchedulerService{
		drafts:    drafts,
		followups: followups,
		calendar:  calendar,
		schedule:  schedule,
		logger:    logger,
	}
}

// ScheduleResult reports the outcome of scheduling one draft.
type ScheduleResult struct {
	DraftID        string      `json:"draft_id"`
	ScheduledCount int         `json:"scheduled_count"`
	SkippedCount   int         `json:"skipped_count"`
	FollowupIDs    []uuid.UUID `json:"followup_ids,omitempty"`
	ScheduledDates []time.Time `json:"scheduled_dates,omitempty"`
}

// ScheduleForDraft creates one followup per schedule entry not already
// present for the draft. Entries already present are skipped without
// error, so re-invoking is safe and resumable.
func (s *SchedulerService) ScheduleForDraft(ctx context.Context, draftID string) (*ScheduleResult, error) {
	s.logger.InfoContext(ctx, "Scheduling followups for draft", "draft_id", draftID)

	draft, err := s.drafts.GetByID(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if !draft.IsSent() {
		return nil, fmt.Errorf("draft %s (status %q): %w", draftID, draft.Status, domain.ErrDraftNotSent)
	}
	if !draft.SentAt.Valid {
		return nil, fmt.Errorf("draft %s: %w", draftID, domain.ErrMissingSentAt)
	}

	existing, err := s.followups.GetByDraft(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("load existing followups for draft %s: %w", draftID, err)
	}
	existingSequences := make(map[int]bool, len(existing))
	for _, f := range existing {
		existingSequences[f.SequenceNumber] = true
	}

	result := &ScheduleResult{DraftID: draftID}
	snapshot := draft.ContactSnapshot()

	for _, entry := range s.schedule {
		if existingSequences[entry.SequenceNumber] {
			result.SkippedCount++
			continue
		}

		dueDay, err := s.calendar.AddBusinessDays(draft.SentAt.Time, entry.OffsetDays)
		if err != nil {
			return nil, fmt.Errorf("compute due date for sequence %d: %w", entry.SequenceNumber, err)
		}
		// Followups go out at 01:00 UTC on the computed business day.
		scheduledFor := time.Date(dueDay.Year(), dueDay.Month(), dueDay.Day(), 1, 0, 0, 0, time.UTC)

		f := domain.NewFollowup(draftID, draft.VersionGroupID, draft.ExternalID, entry.SequenceNumber, scheduledFor, snapshot)
		created, err := s.followups.CreateIfAbsent(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("create followup %d for draft %s: %w", entry.SequenceNumber, draftID, err)
		}
		if !created {
			result.SkippedCount++
			continue
		}

		followupsScheduledCounter.Inc()
		result.ScheduledCount++
		result.FollowupIDs = append(result.FollowupIDs, f.ID)
		result.ScheduledDates = append(result.ScheduledDates, scheduledFor)
	}

	s.logger.InfoContext(ctx, "Scheduled followups for draft",
		"draft_id", draftID,
		"scheduled_count", result.ScheduledCount,
		"skipped_count", result.SkippedCount,
	)
	return result, nil
}
