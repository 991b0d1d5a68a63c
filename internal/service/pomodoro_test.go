package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Luis200410/Improve/internal"
	"github.com/Luis200410/Improve/internal/clock"
	"github.com/Luis200410/Improve/internal/storage"
)

func intPtr(v int) *int { return &v }

type fixture struct {
	svc   *PomodoroService
	clock *clock.Fixed
	user  *internal.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := &clock.Fixed{T: time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)}
	store, err := storage.NewFileStorage(t.TempDir(), internal.NopLogger(), storage.WithClock(clk))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc := NewPomodoroService(store, PomodoroOptions{Clock: clk, Location: time.UTC})
	return &fixture{svc: svc, clock: clk, user: &internal.User{ID: "user-1", Name: "Ada"}}
}

func (f *fixture) start(t *testing.T, minutes int) *SessionSnapshot {
	t.Helper()
	snap, err := f.svc.Start(context.Background(), f.user, &StartRequest{FocusMinutes: intPtr(minutes)})
	require.NoError(t, err)
	return snap
}

func (f *fixture) summary(t *testing.T) *Summary {
	t.Helper()
	s, err := f.svc.Summary(context.Background(), f.user)
	require.NoError(t, err)
	return s
}

func TestSummaryForFreshProfile(t *testing.T) {
	f := newFixture(t)
	s := f.summary(t)

	assert.Equal(t, 1, s.Profile.Level)
	assert.Equal(t, 0, s.Profile.XP)
	assert.Equal(t, 500, s.Profile.XPForNextLevel)
	assert.NotNil(t, s.Forest)
	assert.Empty(t, s.Forest)
	assert.Nil(t, s.ActiveSession)
}

func TestStartAppliesDefaults(t *testing.T) {
	f := newFixture(t)
	snap, err := f.svc.Start(context.Background(), f.user, &StartRequest{LongBreakMinutes: intPtr(-3)})
	require.NoError(t, err)

	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, 25, snap.FocusMinutes)
	assert.Equal(t, 5, snap.ShortBreakMinutes)
	assert.Equal(t, 1, snap.LongBreakMinutes)
	assert.Equal(t, 4, snap.CyclesBeforeLongBreak)
	assert.Equal(t, 1, snap.CurrentCycle)
	assert.Equal(t, internal.StatusRunning, snap.Status)
	assert.Equal(t, "2024-05-10T08:00:00Z", snap.StartedAt)
	assert.Equal(t, 0, snap.ElapsedSeconds)
}

func TestActiveSessionElapsed(t *testing.T) {
	f := newFixture(t)
	snap := f.start(t, 25)
	f.clock.Advance(90 * time.Second)

	s := f.summary(t)
	require.NotNil(t, s.ActiveSession)
	assert.Equal(t, snap.ID, s.ActiveSession.ID)
	assert.Equal(t, 90, s.ActiveSession.ElapsedSeconds)
}

func TestStartCancelsPreviousSession(t *testing.T) {
	f := newFixture(t)
	first := f.start(t, 25)
	f.clock.Advance(time.Minute)
	second := f.start(t, 50)

	s := f.summary(t)
	require.NotNil(t, s.ActiveSession)
	assert.Equal(t, second.ID, s.ActiveSession.ID)
	assert.Equal(t, 0, s.Profile.TotalSessions)
	assert.Equal(t, 0, s.Profile.XP)

	_, err := f.svc.Complete(context.Background(), f.user, &CompleteRequest{SessionID: first.ID})
	assert.True(t, errors.Is(err, internal.ErrInvalidState))
}

func TestCompleteScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	snap := f.start(t, 25)
	f.clock.Advance(25 * time.Minute)
	res, err := f.svc.Complete(ctx, f.user, &CompleteRequest{SessionID: snap.ID, CompletedMinutes: intPtr(25)})
	require.NoError(t, err)

	assert.Equal(t, 250, res.XPGained)
	assert.Equal(t, "Sprout", res.RewardTier)
	assert.Equal(t, 250, res.Profile.XP)
	assert.Equal(t, 5, res.Profile.Coins)
	assert.Equal(t, 1, res.Profile.Level)
	assert.Equal(t, 1, res.Profile.StreakCount)
	assert.Equal(t, 1, res.Profile.TotalSessions)
	assert.Nil(t, res.ActiveSession)
	require.Len(t, res.Forest, 1)
	assert.Equal(t, ForestItem{Tier: "Sprout", Minutes: 25, Planted: "May 10"}, res.Forest[0])

	// second session the same day
	snap = f.start(t, 25)
	res, err = f.svc.Complete(ctx, f.user, &CompleteRequest{SessionID: snap.ID})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Profile.StreakCount)
	assert.Equal(t, 2, res.Profile.TotalSessions)
	assert.Equal(t, 500, res.Profile.XP)
	assert.Equal(t, 2, res.Profile.Level)
	assert.Len(t, res.Forest, 2)
}

func TestCompleteOnConsecutiveDays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		snap := f.start(t, 30)
		_, err := f.svc.Complete(ctx, f.user, &CompleteRequest{SessionID: snap.ID})
		require.NoError(t, err)
		f.clock.Advance(24 * time.Hour)
	}
	s := f.summary(t)
	assert.Equal(t, 3, s.Profile.StreakCount)
	assert.Equal(t, 3, s.Profile.BestStreak)
	assert.Equal(t, "May 12", s.Forest[0].Planted)
	assert.Equal(t, "Sapling", s.Forest[0].Tier)
}

func TestCompleteUsesLocalCalendarDay(t *testing.T) {
	store, err := storage.NewFileStorage(t.TempDir(), internal.NopLogger())
	require.NoError(t, err)
	defer store.Close()

	loc := time.FixedZone("UTC-5", -5*3600)
	// 02:00 UTC on the 11th is still the 10th five hours west
	clk := &clock.Fixed{T: time.Date(2024, 5, 11, 2, 0, 0, 0, time.UTC)}
	svc := NewPomodoroService(store, PomodoroOptions{Clock: clk, Location: loc})
	user := &internal.User{ID: "west"}

	snap, err := svc.Start(context.Background(), user, &StartRequest{})
	require.NoError(t, err)
	res, err := svc.Complete(context.Background(), user, &CompleteRequest{SessionID: snap.ID})
	require.NoError(t, err)
	assert.Equal(t, "May 10", res.Forest[0].Planted)
}

func TestCompleteClampsMinutes(t *testing.T) {
	f := newFixture(t)
	snap := f.start(t, 25)
	res, err := f.svc.Complete(context.Background(), f.user, &CompleteRequest{SessionID: snap.ID, CompletedMinutes: intPtr(0)})
	require.NoError(t, err)
	assert.Equal(t, 10, res.XPGained)
	assert.Equal(t, 1, res.Profile.TotalFocusMinutes)
}

func TestCompleteTwiceFailsWithoutMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	snap := f.start(t, 25)
	_, err := f.svc.Complete(ctx, f.user, &CompleteRequest{SessionID: snap.ID})
	require.NoError(t, err)
	before := f.summary(t)

	_, err = f.svc.Complete(ctx, f.user, &CompleteRequest{SessionID: snap.ID})
	require.Error(t, err)
	assert.True(t, errors.Is(err, internal.ErrInvalidState))
	assert.Equal(t, before, f.summary(t))
}

func TestCompleteUnknownSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Complete(context.Background(), f.user, &CompleteRequest{SessionID: "missing"})
	assert.True(t, errors.Is(err, internal.ErrNotFound))
}

func TestSessionsOfOtherUsersAreNotFound(t *testing.T) {
	f := newFixture(t)
	snap := f.start(t, 25)

	other := &internal.User{ID: "user-2"}
	_, err := f.svc.Complete(context.Background(), other, &CompleteRequest{SessionID: snap.ID})
	assert.True(t, errors.Is(err, internal.ErrNotFound))
	err = f.svc.Cancel(context.Background(), other, &CancelRequest{SessionID: snap.ID})
	assert.True(t, errors.Is(err, internal.ErrNotFound))

	assert.NotNil(t, f.summary(t).ActiveSession)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	snap := f.start(t, 25)

	require.NoError(t, f.svc.Cancel(ctx, f.user, &CancelRequest{SessionID: snap.ID}))
	s := f.summary(t)
	assert.Nil(t, s.ActiveSession)
	assert.Empty(t, s.Forest)
	assert.Equal(t, 0, s.Profile.TotalSessions)
	assert.Equal(t, 0, s.Profile.XP)

	// cancelling again is a no-op
	require.NoError(t, f.svc.Cancel(ctx, f.user, &CancelRequest{SessionID: snap.ID}))

	_, err := f.svc.Complete(ctx, f.user, &CompleteRequest{SessionID: snap.ID})
	assert.True(t, errors.Is(err, internal.ErrInvalidState))
}

func TestCancelCompletedSessionFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	snap := f.start(t, 25)
	_, err := f.svc.Complete(ctx, f.user, &CompleteRequest{SessionID: snap.ID})
	require.NoError(t, err)

	err = f.svc.Cancel(ctx, f.user, &CancelRequest{SessionID: snap.ID})
	assert.True(t, errors.Is(err, internal.ErrInvalidState))
	assert.Len(t, f.summary(t).Forest, 1)
}

func TestForestIsLimited(t *testing.T) {
	store, err := storage.NewFileStorage(t.TempDir(), internal.NopLogger())
	require.NoError(t, err)
	defer store.Close()

	clk := &clock.Fixed{T: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewPomodoroService(store, PomodoroOptions{Clock: clk, ForestLimit: 3})
	user := &internal.User{ID: "forester"}
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		snap, err := svc.Start(ctx, user, &StartRequest{FocusMinutes: intPtr(i * 20)})
		require.NoError(t, err)
		_, err = svc.Complete(ctx, user, &CompleteRequest{SessionID: snap.ID})
		require.NoError(t, err)
		clk.Advance(time.Hour)
	}

	s, err := svc.Summary(ctx, user)
	require.NoError(t, err)
	require.Len(t, s.Forest, 3)
	assert.Equal(t, 100, s.Forest[0].Minutes)
	assert.Equal(t, 80, s.Forest[1].Minutes)
	assert.Equal(t, 60, s.Forest[2].Minutes)
}

func TestValidateRequests(t *testing.T) {
	err := ValidateCompleteRequest(&CompleteRequest{SessionID: "  "})
	require.Error(t, err)
	assert.True(t, errors.Is(err, internal.ErrValidation))
	assert.Contains(t, err.Error(), "session_id is required")

	assert.True(t, errors.Is(ValidateCancelRequest(&CancelRequest{}), internal.ErrValidation))
	assert.NoError(t, ValidateCancelRequest(&CancelRequest{SessionID: "abc"}))
}
