package app

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardrockay/auto-followup/internal/followup/domain"
	"github.com/wardrockay/auto-followup/internal/followup/repository/memory"
)

func TestRetryAll_RequeuesOnlyErrored(t *testing.T) {
	followups := memory.NewFollowupRepository()
	draft := sentDraft("draft-1")

	errored := domain.NewFollowup("draft-1", draft.VersionGroupID, draft.ExternalID, 1,
		time.Now().UTC().Add(-time.Hour), draft.ContactSnapshot())
	scheduled := domain.NewFollowup("draft-1", draft.VersionGroupID, draft.ExternalID, 2,
		time.Now().UTC().Add(time.Hour), draft.ContactSnapshot())
	for _, fw := range []*domain.Followup{errored, scheduled} {
		created, err := followups.CreateIfAbsent(context.Background(), fw)
		require.NoError(t, err)
		require.True(t, created)
	}

	acquired, err := followups.CASTransition(context.Background(), errored.ID, domain.StatusScheduled, domain.StatusProcessing, domain.TransitionFields{})
	require.NoError(t, err)
	require.True(t, acquired)
	applied, err := followups.CASTransition(context.Background(), errored.ID, domain.StatusProcessing, domain.StatusError, domain.TransitionFields{
		ErrorMessage: sql.NullString{String: "dispatch: boom", Valid: true},
	})
	require.NoError(t, err)
	require.True(t, applied)

	retried, err := NewRetryService(followups, testLogger()).RetryAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, retried)

	stored, ok := followups.Get(errored.ID)
	require.True(t, ok)
	assert.Equal(t, domain.StatusScheduled, stored.Status)
	assert.False(t, stored.ErrorMessage.Valid)
	// The original due date is preserved, not recomputed.
	assert.Equal(t, errored.ScheduledFor, stored.ScheduledFor)

	untouched, ok := followups.Get(scheduled.ID)
	require.True(t, ok)
	assert.Equal(t, domain.StatusScheduled, untouched.Status)
}

func TestRetryAll_NothingToRetry(t *testing.T) {
	followups := memory.NewFollowupRepository()

	retried, err := NewRetryService(followups, testLogger()).RetryAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, retried)
}
