package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mauv0809/ideal-pong/internal/bracket"
	"github.com/mauv0809/ideal-pong/internal/notifier"
	"github.com/mauv0809/ideal-pong/internal/players"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type checkerSpy struct {
	mu     sync.Mutex
	calls  int
	result []bracket.Node
	err    error
}

func (c *checkerSpy) CheckStalled(ctx context.Context) ([]bracket.Node, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.result, c.err
}

func (c *checkerSpy) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type archiverSpy struct {
	mu         sync.Mutex
	retentions []time.Duration
}

func (a *archiverSpy) ArchiveExpired(ctx context.Context, retention time.Duration) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.retentions = append(a.retentions, retention)
	return 2, nil
}

type fixture struct {
	sched    *Scheduler
	checker  *checkerSpy
	archiver *archiverSpy
	players  *players.MockStore
	notifier *notifier.Mock
}

func setupTestScheduler(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		checker:  &checkerSpy{},
		archiver: &archiverSpy{},
		players:  players.NewMock(),
		notifier: notifier.NewMock(),
	}
	var err error
	f.sched, err = New(f.checker, f.archiver, f.players, f.notifier, Options{
		HealthCheckInterval: time.Minute,
		Retention:           24 * time.Hour,
		LeaderboardHour:     17,
		DryRun:              true,
		Clock:               clockwork.NewFakeClock(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.sched.Shutdown() })
	return f
}

func TestJobsAreRegistered(t *testing.T) {
	f := setupTestScheduler(t)
	assert.Len(t, f.sched.jobs, 3)
	for _, name := range []string{JobCheckStalled, JobArchive, JobLeaderboard} {
		job, ok := f.sched.jobs[name]
		require.True(t, ok, name)
		assert.Equal(t, name, job.Name())
	}
	assert.Error(t, f.sched.RunNow("nope"))
}

func TestRunNowTriggersHealthCheck(t *testing.T) {
	f := setupTestScheduler(t)
	f.sched.Start()

	require.NoError(t, f.sched.RunNow(JobCheckStalled))
	require.Eventually(t, func() bool { return f.checker.count() == 1 }, 2*time.Second, time.Millisecond)
}

func TestCheckStalled(t *testing.T) {
	f := setupTestScheduler(t)
	f.checker.result = []bracket.Node{{ID: "n1"}}
	require.NoError(t, f.sched.CheckStalled(context.Background()))

	f.checker.err = errors.New("db down")
	assert.Error(t, f.sched.CheckStalled(context.Background()))
}

func TestArchiveUsesRetention(t *testing.T) {
	f := setupTestScheduler(t)
	require.NoError(t, f.sched.Archive(context.Background()))
	assert.Equal(t, []time.Duration{24 * time.Hour}, f.archiver.retentions)
}

func TestPostLeaderboard(t *testing.T) {
	f := setupTestScheduler(t)
	stats := []players.PlayerStats{{PlayerID: "p1", PlayerName: "Alice", MatchesWon: 3}}
	f.players.GetPlayerStatsFunc = func() ([]players.PlayerStats, error) { return stats, nil }

	require.NoError(t, f.sched.PostLeaderboard(context.Background()))
	require.Len(t, f.notifier.Leaderboards(), 1)
	assert.Equal(t, stats, f.notifier.Leaderboards()[0])

	f.players.GetPlayerStatsFunc = func() ([]players.PlayerStats, error) { return nil, errors.New("boom") }
	assert.Error(t, f.sched.PostLeaderboard(context.Background()))
}
