package app

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wardrockay/auto-followup/internal/followup/domain"
)

// ProcessorConfig holds configuration specific to the ProcessorService.
type ProcessorConfig struct {
	Workers         int
	EnrichTimeout   time.Duration
	DispatchTimeout time.Duration
	// StaleProcessingAfter re-admits records stuck in processing longer
	// than this back to scheduled at the start of a pass. Zero disables
	// reclaiming.
	StaleProcessingAfter time.Duration
}

// ProcessorService drains due followups: claim, reply-check, enrich,
// dispatch, finalize. Records are independent units of work; one
// record's failure never aborts the others.
type ProcessorService struct {
	followups  domain.FollowupRepository
	drafts     domain.DraftRepository
	provider   domain.ContactProvider
	dispatcher domain.Dispatcher
	publisher  EventPublisher
	logger     *slog.Logger
	cfg        ProcessorConfig
}

func NewProcessorService(
	followups domain.FollowupRepository,
	drafts domain.DraftRepository,
	provider domain.ContactProvider,
	dispatcher domain.Dispatcher,
	publisher EventPublisher,
	logger *slog.Logger,
	cfg ProcessorConfig,
) *ProcessorService {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &ProcessorService{
		followups:  followups,
		drafts:     drafts,
		provider:   provider,
		dispatcher: dispatcher,
		publisher:  publisher,
		logger:     logger,
		cfg:        cfg,
	}
}

// BatchResult aggregates one processing pass. Per-record failures are
// captured into record state, never surfaced as a batch failure.
type BatchResult struct {
	Selected  int `json:"selected"`
	Sent      int `json:"sent"`
	Cancelled int `json:"cancelled"`
	Errored   int `json:"errored"`
	Skipped   int `json:"skipped"`
	Reclaimed int `json:"reclaimed"`
}

const (
	outcomeSent      = "sent"
	outcomeCancelled = "cancelled"
	outcomeError     = "error"
	outcomeSkipped   = "skipped"
)

// RunBatch processes every followup due at now. The only error returned
// is a failure to select work; everything downstream lands in record
// state and the aggregate counts.
func (p *ProcessorService) RunBatch(ctx context.Context, now time.Time) (*BatchResult, error) {
	result := &BatchResult{}

	if p.cfg.StaleProcessingAfter > 0 {
		reclaimed, err := p.followups.ReclaimStale(ctx, now.Add(-p.cfg.StaleProcessingAfter))
		if err != nil {
			p.logger.ErrorContext(ctx, "Failed to reclaim stale processing followups", "error", err)
		} else if reclaimed > 0 {
			p.logger.WarnContext(ctx, "Re-admitted stale processing followups", "count", reclaimed)
			result.Reclaimed = reclaimed
		}
	}

	due, err := p.followups.SelectDue(ctx, now)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to select due followups", "error", err)
		return nil, err
	}
	result.Selected = len(due)
	if len(due) == 0 {
		return result, nil
	}

	p.logger.InfoContext(ctx, "Processing due followups", "count", len(due), "cutoff", now.Format(time.RFC3339))

	var mu sync.Mutex
	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for _, f := range due {
		f := f
		g.Go(func() error {
			start := time.Now()
			outcome := p.processOne(groupCtx, f, now)
			followupProcessingDurationHist.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
			followupsProcessedCounter.WithLabelValues(outcome).Inc()

			mu.Lock()
			switch outcome {
			case outcomeSent:
				result.Sent++
			case outcomeCancelled:
				result.Cancelled++
			case outcomeError:
				result.Errored++
			default:
				result.Skipped++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures are record state

	p.logger.InfoContext(ctx, "Processing pass complete",
		"selected", result.Selected,
		"sent", result.Sent,
		"cancelled", result.Cancelled,
		"errored", result.Errored,
		"skipped", result.Skipped,
	)
	return result, nil
}

// processOne runs the per-record pipeline and returns the outcome label.
func (p *ProcessorService) processOne(ctx context.Context, f *domain.Followup, now time.Time) string {
	log := p.logger.With("followup_id", f.ID, "draft_id", f.DraftID, "sequence_number", f.SequenceNumber)

	// Claim. Losing the race means another pass already owns the record.
	acquired, err := p.followups.CASTransition(ctx, f.ID, domain.StatusScheduled, domain.StatusProcessing, domain.TransitionFields{
		ProcessedAt: sql.NullTime{Time: now.UTC(), Valid: true},
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to acquire followup", "error", err)
		return outcomeSkipped
	}
	if !acquired {
		log.InfoContext(ctx, "Followup already being handled, skipping")
		return outcomeSkipped
	}

	draft, err := p.drafts.GetByID(ctx, f.DraftID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return p.finalizeError(ctx, log, f, "draft not found: "+f.DraftID)
		}
		return p.finalizeError(ctx, log, f, "load draft: "+err.Error())
	}

	// A reply ends the sequence; this is a cancellation, not an error.
	if draft.ReplyReceived {
		return p.finalizeCancelled(ctx, log, f, domain.CancelReasonProspectReplied)
	}

	contact := p.resolveContact(ctx, log, f)

	dispatchCtx, cancel := context.WithTimeout(ctx, p.cfg.DispatchTimeout)
	defer cancel()
	createdDraftID, err := p.dispatcher.Generate(dispatchCtx, domain.GenerationRequest{
		DraftID:        f.DraftID,
		VersionGroupID: f.VersionGroupID,
		SequenceNumber: f.SequenceNumber,
		Contact:        contact,
	})
	if err != nil {
		return p.finalizeError(ctx, log, f, "dispatch: "+err.Error())
	}

	ok, err := p.followups.CASTransition(ctx, f.ID, domain.StatusProcessing, domain.StatusSent, domain.TransitionFields{
		SentAt:         sql.NullTime{Time: time.Now().UTC(), Valid: true},
		CreatedDraftID: sql.NullString{String: createdDraftID, Valid: true},
	})
	if err != nil || !ok {
		log.ErrorContext(ctx, "Failed to finalize sent followup", "error", err, "applied", ok)
		return outcomeError
	}

	log.InfoContext(ctx, "Followup processed", "created_draft_id", createdDraftID)
	publishEvent(ctx, p.publisher, p.logger, SubjectFollowupSent, FollowupEvent{
		FollowupID:     f.ID.String(),
		DraftID:        f.DraftID,
		SequenceNumber: f.SequenceNumber,
		CreatedDraftID: createdDraftID,
		OccurredAt:     time.Now().UTC(),
	})
	return outcomeSent
}

// resolveContact fetches fresh contact data from the provider and falls
// back to the snapshot embedded at creation time. Provider failures are
// a non-fatal condition here.
func (p *ProcessorService) resolveContact(ctx context.Context, log *slog.Logger, f *domain.Followup) domain.ContactData {
	if f.ExternalID == "" {
		return f.FallbackContact()
	}

	lookupCtx, cancel := context.WithTimeout(ctx, p.cfg.EnrichTimeout)
	defer cancel()
	contact, err := p.provider.Lookup(lookupCtx, f.ExternalID)
	if err != nil {
		if errors.Is(err, domain.ErrContactNotFound) {
			log.WarnContext(ctx, "Contact not found in CRM, using embedded snapshot", "external_id", f.ExternalID)
		} else {
			log.WarnContext(ctx, "Contact lookup failed, using embedded snapshot", "external_id", f.ExternalID, "error", err)
		}
		return f.FallbackContact()
	}
	return *contact
}

func (p *ProcessorService) finalizeError(ctx context.Context, log *slog.Logger, f *domain.Followup, message string) string {
	ok, err := p.followups.CASTransition(ctx, f.ID, domain.StatusProcessing, domain.StatusError, domain.TransitionFields{
		ErrorMessage: sql.NullString{String: message, Valid: true},
	})
	if err != nil || !ok {
		log.ErrorContext(ctx, "Failed to record followup error", "error", err, "applied", ok, "message", message)
		return outcomeError
	}
	log.ErrorContext(ctx, "Followup failed", "message", message)
	publishEvent(ctx, p.publisher, p.logger, SubjectFollowupErrored, FollowupEvent{
		FollowupID:     f.ID.String(),
		DraftID:        f.DraftID,
		SequenceNumber: f.SequenceNumber,
		Error:          message,
		OccurredAt:     time.Now().UTC(),
	})
	return outcomeError
}

func (p *ProcessorService) finalizeCancelled(ctx context.Context, log *slog.Logger, f *domain.Followup, reason string) string {
	ok, err := p.followups.CASTransition(ctx, f.ID, domain.StatusProcessing, domain.StatusCancelled, domain.TransitionFields{
		CancelledAt:        sql.NullTime{Time: time.Now().UTC(), Valid: true},
		CancellationReason: sql.NullString{String: reason, Valid: true},
	})
	if err != nil || !ok {
		log.ErrorContext(ctx, "Failed to cancel followup", "error", err, "applied", ok)
		return outcomeError
	}
	followupsCancelledCounter.WithLabelValues(reason).Inc()
	log.InfoContext(ctx, "Followup cancelled", "reason", reason)
	publishEvent(ctx, p.publisher, p.logger, SubjectFollowupCancelled, FollowupEvent{
		FollowupID:     f.ID.String(),
		DraftID:        f.DraftID,
		SequenceNumber: f.SequenceNumber,
		Reason:         reason,
		OccurredAt:     time.Now().UTC(),
	})
	return outcomeCancelled
}
