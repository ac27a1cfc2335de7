package memory

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wardrockay/auto-followup/internal/followup/domain"
)

// FollowupRepository is an in-memory domain.FollowupRepository. It
// implements the same CAS semantics as the Postgres repository under a
// mutex, which makes it the reference double for concurrency tests.
type FollowupRepository struct {
	mu        sync.Mutex
	followups map[uuid.UUID]*domain.Followup
}

func NewFollowupRepository() *FollowupRepository {
	return &FollowupRepository{followups: make(map[uuid.UUID]*domain.Followup)}
}

func (r *FollowupRepository) CreateIfAbsent(_ context.Context, f *domain.Followup) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.followups {
		if existing.DraftID == f.DraftID && existing.SequenceNumber == f.SequenceNumber {
			return false, nil
		}
	}
	clone := *f
	r.followups[f.ID] = &clone
	return true, nil
}

func (r *FollowupRepository) GetByDraft(_ context.Context, draftID string) ([]*domain.Followup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.Followup
	for _, f := range r.followups {
		if f.DraftID == draftID {
			clone := *f
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *FollowupRepository) SelectDue(_ context.Context, now time.Time) ([]*domain.Followup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.Followup
	for _, f := range r.followups {
		if f.Status == domain.StatusScheduled && !f.ScheduledFor.After(now) {
			clone := *f
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *FollowupRepository) SelectByStatus(_ context.Context, status domain.FollowupStatus) ([]*domain.Followup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.Followup
	for _, f := range r.followups {
		if f.Status == status {
			clone := *f
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *FollowupRepository) CASTransition(_ context.Context, id uuid.UUID, expected, next domain.FollowupStatus, fields domain.TransitionFields) (bool, error) {
	if err := domain.ValidateTransition(expected, next); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.followups[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if f.Status != expected {
		return false, nil
	}

	f.Status = next
	if fields.ProcessedAt.Valid {
		f.ProcessedAt = fields.ProcessedAt
	}
	if fields.SentAt.Valid {
		f.SentAt = fields.SentAt
	}
	if fields.CancelledAt.Valid {
		f.CancelledAt = fields.CancelledAt
	}
	if fields.CancellationReason.Valid {
		f.CancellationReason = fields.CancellationReason
	}
	if fields.ErrorMessage.Valid {
		f.ErrorMessage = fields.ErrorMessage
	}
	if fields.CreatedDraftID.Valid {
		f.CreatedDraftID = fields.CreatedDraftID
	}
	if next == domain.StatusScheduled {
		// Retry path: the error message is cleared on re-queue.
		f.ErrorMessage = sql.NullString{}
	}
	return true, nil
}

func (r *FollowupRepository) ReclaimStale(_ context.Context, olderThan time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, f := range r.followups {
		if f.Status == domain.StatusProcessing && f.ProcessedAt.Valid && f.ProcessedAt.Time.Before(olderThan) {
			f.Status = domain.StatusScheduled
			f.ProcessedAt = sql.NullTime{}
			count++
		}
	}
	return count, nil
}

// Get returns a copy of one followup, for test assertions.
func (r *FollowupRepository) Get(id uuid.UUID) (*domain.Followup, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.followups[id]
	if !ok {
		return nil, false
	}
	clone := *f
	return &clone, true
}

// DraftRepository is an in-memory domain.DraftRepository.
type DraftRepository struct {
	mu     sync.Mutex
	drafts map[string]*domain.Draft
}

func NewDraftRepository() *DraftRepository {
	return &DraftRepository{drafts: make(map[string]*domain.Draft)}
}

func (r *DraftRepository) Put(d *domain.Draft) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *d
	r.drafts[d.ID] = &clone
}

func (r *DraftRepository) GetByID(_ context.Context, id string) (*domain.Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.drafts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *d
	return &clone, nil
}

func (r *DraftRepository) Exists(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.drafts[id]
	return ok, nil
}
