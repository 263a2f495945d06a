package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mauv0809/ideal-pong/internal/game"
	"github.com/mauv0809/ideal-pong/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerLifecycle(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := metrics.NewMock()
	mgr := NewManager(&recorder{}, m, clock)
	t.Cleanup(func() { _ = mgr.Shutdown(context.Background()) })

	handler := &handlerSpy{}
	s, err := mgr.Create(Options{
		ID:         "m1",
		Kind:       metrics.KindTournament,
		Config:     game.DefaultConfig(),
		Left:       &alice,
		Right:      &bob,
		OnComplete: handler,
	})
	require.NoError(t, err)

	_, err = mgr.Create(Options{ID: "m1", Left: &alice, Right: &bob})
	assert.True(t, errors.Is(err, ErrSessionExists))

	got, ok := mgr.Get("m1")
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, mgr.Len())
	assert.Len(t, mgr.ForPlayer("p2"), 1)
	assert.Empty(t, mgr.ForPlayer("p3"))
	assert.Equal(t, 1, m.ActiveSessions())

	s.Ready("p1")
	s.Ready("p2")
	s.Disconnect("p1")
	clock.Advance(DefaultGracePeriod)

	require.Eventually(t, func() bool { return mgr.Len() == 0 }, 2*time.Second, time.Millisecond)
	assert.Len(t, handler.calls(), 1)
	assert.Equal(t, 1, m.SessionsStarted())
	assert.Equal(t, 0, m.ActiveSessions())
	assert.Equal(t, 1, m.MatchesFinished(metrics.KindTournament))
	assert.Equal(t, 1, m.Forfeits())
}

func TestManagerShutdown(t *testing.T) {
	mgr := NewManager(&recorder{}, metrics.NewMock(), clockwork.NewFakeClock())
	handler := &handlerSpy{}
	for _, id := range []string{"a", "b", "c"} {
		_, err := mgr.Create(Options{ID: id, Left: &alice, Right: &bob, OnComplete: handler})
		require.NoError(t, err)
	}
	assert.Len(t, mgr.List(), 3)
	assert.Equal(t, "a", mgr.List()[0].ID())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, mgr.Shutdown(ctx))
	assert.Equal(t, 0, mgr.Len())
	assert.Empty(t, handler.calls())

	_, err := mgr.Create(Options{ID: "d", Left: &alice, Right: &bob})
	assert.Error(t, err)
}
