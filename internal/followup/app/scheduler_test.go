package app

import (
	"context"
	"database/sql"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardrockay/auto-followup/internal/followup/domain"
	"github.com/wardrockay/auto-followup/internal/followup/repository/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nullWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type nullWriter struct{}

func (nullWriter) Write(p []byte) (int, error) { return len(p), nil }

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: true}
}

func testCalendar() *domain.Calendar {
	return domain.FrenchCalendar()
}

func sentDraft(id string) *domain.Draft {
	return &domain.Draft{
		ID:             id,
		ExternalID:     "42",
		VersionGroupID: "vg-1",
		Status:         domain.DraftStatusSent,
		// Friday.
		SentAt:         sql.NullTime{Time: time.Date(2025, time.January, 10, 10, 30, 0, 0, time.UTC), Valid: true},
		RecipientEmail: "jane@acme.example",
		ContactName:    "Jane",
		CompanyName:    "ACME",
	}
}

func newSchedulerFixture(t *testing.T, schedule string) (*SchedulerService, *memory.DraftRepository, *memory.FollowupRepository) {
	t.Helper()
	entries, err := domain.ParseSchedule(schedule)
	require.NoError(t, err)

	drafts := memory.NewDraftRepository()
	followups := memory.NewFollowupRepository()
	svc := NewSchedulerService(drafts, followups, testCalendar(), entries, testLogger())
	return svc, drafts, followups
}

func TestScheduleForDraft_CreatesSequence(t *testing.T) {
	svc, drafts, followups := newSchedulerFixture(t, "1:3,2:7")
	drafts.Put(sentDraft("draft-1"))

	result, err := svc.ScheduleForDraft(context.Background(), "draft-1")
	require.NoError(t, err)
	assert.Equal(t, 2, result.ScheduledCount)
	assert.Equal(t, 0, result.SkippedCount)
	require.Len(t, result.ScheduledDates, 2)

	// Jan 10 2025 is a Friday; +3 business days lands on Wed Jan 15,
	// +7 on Tue Jan 21. Dispatch time is fixed at 01:00 UTC.
	assert.Equal(t, time.Date(2025, time.January, 15, 1, 0, 0, 0, time.UTC), result.ScheduledDates[0])
	assert.Equal(t, time.Date(2025, time.January, 21, 1, 0, 0, 0, time.UTC), result.ScheduledDates[1])

	created, err := followups.GetByDraft(context.Background(), "draft-1")
	require.NoError(t, err)
	require.Len(t, created, 2)
	for _, f := range created {
		assert.Equal(t, domain.StatusScheduled, f.Status)
		assert.Equal(t, "jane@acme.example", f.Contact.RecipientEmail)
		assert.Equal(t, "42", f.ExternalID)
	}
}

func TestScheduleForDraft_Idempotent(t *testing.T) {
	svc, drafts, _ := newSchedulerFixture(t, "1:3,2:7")
	drafts.Put(sentDraft("draft-1"))

	_, err := svc.ScheduleForDraft(context.Background(), "draft-1")
	require.NoError(t, err)

	again, err := svc.ScheduleForDraft(context.Background(), "draft-1")
	require.NoError(t, err)
	assert.Equal(t, 0, again.ScheduledCount)
	assert.Equal(t, 2, again.SkippedCount)
}

func TestScheduleForDraft_ResumesPartialSequence(t *testing.T) {
	svc, drafts, followups := newSchedulerFixture(t, "1:3,2:7")
	draft := sentDraft("draft-1")
	drafts.Put(draft)

	existing := domain.NewFollowup("draft-1", draft.VersionGroupID, draft.ExternalID, 1,
		time.Date(2025, time.January, 15, 1, 0, 0, 0, time.UTC), draft.ContactSnapshot())
	created, err := followups.CreateIfAbsent(context.Background(), existing)
	require.NoError(t, err)
	require.True(t, created)

	result, err := svc.ScheduleForDraft(context.Background(), "draft-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.ScheduledCount)
	assert.Equal(t, 1, result.SkippedCount)
}

func TestScheduleForDraft_DraftNotFound(t *testing.T) {
	svc, _, _ := newSchedulerFixture(t, "1:3")

	_, err := svc.ScheduleForDraft(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestScheduleForDraft_DraftNotSent(t *testing.T) {
	svc, drafts, _ := newSchedulerFixture(t, "1:3")
	draft := sentDraft("draft-1")
	draft.Status = "draft"
	drafts.Put(draft)

	_, err := svc.ScheduleForDraft(context.Background(), "draft-1")
	assert.ErrorIs(t, err, domain.ErrDraftNotSent)
}

func TestScheduleForDraft_MissingSentAt(t *testing.T) {
	svc, drafts, _ := newSchedulerFixture(t, "1:3")
	draft := sentDraft("draft-1")
	draft.SentAt = sql.NullTime{}
	drafts.Put(draft)

	_, err := svc.ScheduleForDraft(context.Background(), "draft-1")
	assert.ErrorIs(t, err, domain.ErrMissingSentAt)
}
