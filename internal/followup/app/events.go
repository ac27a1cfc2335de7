package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// NATS subjects for followup lifecycle events.
const (
	SubjectFollowupSent      = "followups.sent"
	SubjectFollowupCancelled = "followups.cancelled"
	SubjectFollowupErrored   = "followups.errored"
)

// EventPublisher publishes lifecycle events. The NATS client of
// platform/messagebroker satisfies this.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// FollowupEvent is the payload emitted on terminal outcomes.
type FollowupEvent struct {
	FollowupID     string    `json:"followup_id"`
	DraftID        string    `json:"draft_id"`
	SequenceNumber int       `json:"sequence_number"`
	CreatedDraftID string    `json:"created_draft_id,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	Error          string    `json:"error,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// publishEvent emits a lifecycle event. Publishing is best effort: a
// broker failure is logged, never surfaced into record state.
func publishEvent(ctx context.Context, publisher EventPublisher, logger *slog.Logger, subject string, event FollowupEvent) {
	if publisher == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to marshal followup event", "subject", subject, "error", err)
		return
	}
	if err := publisher.Publish(ctx, subject, data); err != nil {
		logger.WarnContext(ctx, "Failed to publish followup event", "subject", subject, "followup_id", event.FollowupID, "error", err)
	}
}
