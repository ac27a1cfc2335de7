package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardrockay/auto-followup/internal/followup/domain"
	"github.com/wardrockay/auto-followup/internal/followup/repository/memory"
)

type stubProvider struct {
	lookup func(ctx context.Context, externalID string) (*domain.ContactData, error)
}

func (s *stubProvider) Lookup(ctx context.Context, externalID string) (*domain.ContactData, error) {
	if s.lookup == nil {
		return &domain.ContactData{ExternalID: externalID, Email: "fresh@acme.example", Name: "Fresh"}, nil
	}
	return s.lookup(ctx, externalID)
}

type stubDispatcher struct {
	calls    atomic.Int64
	mu       sync.Mutex
	requests []domain.GenerationRequest
	generate func(ctx context.Context, req domain.GenerationRequest) (string, error)
}

func (s *stubDispatcher) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if s.generate == nil {
		return "generated-draft", nil
	}
	return s.generate(ctx, req)
}

type processorFixture struct {
	svc        *ProcessorService
	drafts     *memory.DraftRepository
	followups  *memory.FollowupRepository
	provider   *stubProvider
	dispatcher *stubDispatcher
}

func newProcessorFixture(t *testing.T) *processorFixture {
	t.Helper()
	f := &processorFixture{
		drafts:     memory.NewDraftRepository(),
		followups:  memory.NewFollowupRepository(),
		provider:   &stubProvider{},
		dispatcher: &stubDispatcher{},
	}
	f.svc = NewProcessorService(f.followups, f.drafts, f.provider, f.dispatcher, nil, testLogger(), ProcessorConfig{
		Workers:         4,
		EnrichTimeout:   time.Second,
		DispatchTimeout: time.Second,
	})
	return f
}

// dueFollowup stores one scheduled followup due in the past and returns it.
func (f *processorFixture) dueFollowup(t *testing.T, draftID string, seq int) *domain.Followup {
	t.Helper()
	draft := sentDraft(draftID)
	f.drafts.Put(draft)

	fw := domain.NewFollowup(draftID, draft.VersionGroupID, draft.ExternalID, seq,
		time.Now().UTC().Add(-time.Hour), draft.ContactSnapshot())
	created, err := f.followups.CreateIfAbsent(context.Background(), fw)
	require.NoError(t, err)
	require.True(t, created)
	return fw
}

func TestRunBatch_SendsDueFollowup(t *testing.T) {
	f := newProcessorFixture(t)
	fw := f.dueFollowup(t, "draft-1", 1)

	result, err := f.svc.RunBatch(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Selected)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 0, result.Errored)

	stored, ok := f.followups.Get(fw.ID)
	require.True(t, ok)
	assert.Equal(t, domain.StatusSent, stored.Status)
	assert.True(t, stored.SentAt.Valid)
	assert.True(t, stored.ProcessedAt.Valid)
	assert.Equal(t, "generated-draft", stored.CreatedDraftID.String)
}

func TestRunBatch_IgnoresNotYetDue(t *testing.T) {
	f := newProcessorFixture(t)
	draft := sentDraft("draft-1")
	f.drafts.Put(draft)
	fw := domain.NewFollowup("draft-1", draft.VersionGroupID, draft.ExternalID, 1,
		time.Now().UTC().Add(24*time.Hour), draft.ContactSnapshot())
	_, err := f.followups.CreateIfAbsent(context.Background(), fw)
	require.NoError(t, err)

	result, err := f.svc.RunBatch(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Selected)
	assert.Equal(t, int64(0), f.dispatcher.calls.Load())
}

func TestRunBatch_ReplyCancelsInsteadOfSending(t *testing.T) {
	f := newProcessorFixture(t)
	fw := f.dueFollowup(t, "draft-1", 1)

	draft := sentDraft("draft-1")
	draft.ReplyReceived = true
	f.drafts.Put(draft)

	result, err := f.svc.RunBatch(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Cancelled)
	assert.Equal(t, int64(0), f.dispatcher.calls.Load())

	stored, ok := f.followups.Get(fw.ID)
	require.True(t, ok)
	assert.Equal(t, domain.StatusCancelled, stored.Status)
	assert.Equal(t, domain.CancelReasonProspectReplied, stored.CancellationReason.String)
	assert.True(t, stored.CancelledAt.Valid)
}

func TestRunBatch_DispatchFailureRecordsError(t *testing.T) {
	f := newProcessorFixture(t)
	fw := f.dueFollowup(t, "draft-1", 1)
	f.dispatcher.generate = func(context.Context, domain.GenerationRequest) (string, error) {
		return "", errors.New("mail-writer unavailable")
	}

	result, err := f.svc.RunBatch(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Errored)

	stored, ok := f.followups.Get(fw.ID)
	require.True(t, ok)
	assert.Equal(t, domain.StatusError, stored.Status)
	assert.Contains(t, stored.ErrorMessage.String, "mail-writer unavailable")
}

func TestRunBatch_MissingDraftRecordsError(t *testing.T) {
	f := newProcessorFixture(t)
	draft := sentDraft("orphan")
	fw := domain.NewFollowup("orphan", draft.VersionGroupID, draft.ExternalID, 1,
		time.Now().UTC().Add(-time.Hour), draft.ContactSnapshot())
	_, err := f.followups.CreateIfAbsent(context.Background(), fw)
	require.NoError(t, err)

	result, err := f.svc.RunBatch(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Errored)

	stored, ok := f.followups.Get(fw.ID)
	require.True(t, ok)
	assert.Equal(t, domain.StatusError, stored.Status)
	assert.Contains(t, stored.ErrorMessage.String, "draft not found")
}

func TestRunBatch_ProviderFailureFallsBackToSnapshot(t *testing.T) {
	f := newProcessorFixture(t)
	f.dueFollowup(t, "draft-1", 1)
	f.provider.lookup = func(context.Context, string) (*domain.ContactData, error) {
		return nil, errors.New("odoo down")
	}

	result, err := f.svc.RunBatch(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)

	require.Len(t, f.dispatcher.requests, 1)
	req := f.dispatcher.requests[0]
	assert.Equal(t, "jane@acme.example", req.Contact.Email)
	assert.Equal(t, "Jane", req.Contact.Name)
}

func TestRunBatch_EnrichmentUsesProviderData(t *testing.T) {
	f := newProcessorFixture(t)
	f.dueFollowup(t, "draft-1", 1)

	result, err := f.svc.RunBatch(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)

	require.Len(t, f.dispatcher.requests, 1)
	assert.Equal(t, "fresh@acme.example", f.dispatcher.requests[0].Contact.Email)
}

func TestRunBatch_ConcurrentPassesDispatchOnce(t *testing.T) {
	f := newProcessorFixture(t)
	fw := f.dueFollowup(t, "draft-1", 1)

	now := time.Now().UTC()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.RunBatch(context.Background(), now)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), f.dispatcher.calls.Load())
	stored, ok := f.followups.Get(fw.ID)
	require.True(t, ok)
	assert.Equal(t, domain.StatusSent, stored.Status)
}

func TestRunBatch_ReclaimsStaleProcessing(t *testing.T) {
	f := newProcessorFixture(t)
	f.svc.cfg.StaleProcessingAfter = 30 * time.Minute
	fw := f.dueFollowup(t, "draft-1", 1)

	now := time.Now().UTC()
	acquired, err := f.followups.CASTransition(context.Background(), fw.ID, domain.StatusScheduled, domain.StatusProcessing, domain.TransitionFields{
		ProcessedAt: nullTime(now.Add(-2 * time.Hour)),
	})
	require.NoError(t, err)
	require.True(t, acquired)

	result, err := f.svc.RunBatch(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Reclaimed)
	assert.Equal(t, 1, result.Sent)
}

func TestRunBatch_ErroredThenRetriedGetsSent(t *testing.T) {
	f := newProcessorFixture(t)
	fw := f.dueFollowup(t, "draft-1", 1)
	f.dispatcher.generate = func(context.Context, domain.GenerationRequest) (string, error) {
		return "", errors.New("transient failure")
	}

	_, err := f.svc.RunBatch(context.Background(), time.Now().UTC())
	require.NoError(t, err)

	retrier := NewRetryService(f.followups, testLogger())
	retried, err := retrier.RetryAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, retried)

	stored, ok := f.followups.Get(fw.ID)
	require.True(t, ok)
	assert.Equal(t, domain.StatusScheduled, stored.Status)
	assert.False(t, stored.ErrorMessage.Valid)

	f.dispatcher.generate = nil
	result, err := f.svc.RunBatch(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
}
