package tournament

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mauv0809/ideal-pong/internal/ai"
	"github.com/mauv0809/ideal-pong/internal/bracket"
	"github.com/mauv0809/ideal-pong/internal/database"
	"github.com/mauv0809/ideal-pong/internal/game"
	"github.com/mauv0809/ideal-pong/internal/metrics"
	"github.com/mauv0809/ideal-pong/internal/notifier"
	"github.com/mauv0809/ideal-pong/internal/players"
	"github.com/mauv0809/ideal-pong/internal/pubsub"
	"github.com/mauv0809/ideal-pong/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = game.Player{ID: "p1", Name: "Alice"}
	bob   = game.Player{ID: "p2", Name: "Bob"}
)

type nopPublisher struct{}

func (nopPublisher) Publish(channel, event string, payload any) {}

type fixture struct {
	svc      *Service
	engine   *bracket.Engine
	sessions *session.Manager
	clock    *clockwork.FakeClock
	players  *players.MockStore
	notifier *notifier.Mock
	pubsub   *pubsub.MockPubSubClient
	lifetime *metrics.StoreMock
}

func setupTestService(t *testing.T) *fixture {
	t.Helper()

	db, teardown, err := database.InitDB(":memory:", "", "")
	require.NoError(t, err)
	t.Cleanup(teardown)

	f := &fixture{
		clock:    clockwork.NewFakeClock(),
		players:  players.NewMock(),
		notifier: notifier.NewMock(),
		pubsub:   pubsub.NewMock(),
		lifetime: metrics.NewStoreMock(),
	}
	m := metrics.NewMock()
	f.engine = bracket.NewEngine(bracket.NewStore(db), bracket.NewRegistry(), nopPublisher{}, m, bracket.WithClock(f.clock))
	f.sessions = session.NewManager(nopPublisher{}, m, f.clock)
	t.Cleanup(func() { _ = f.sessions.Shutdown(context.Background()) })

	f.svc = New(f.engine, f.sessions, f.players, f.notifier, f.pubsub, f.lifetime, Options{
		BaseConfig:   game.DefaultConfig(),
		AIDifficulty: ai.Hard,
		DryRun:       true,
		Seed:         1,
		Clock:        f.clock,
	})
	return f
}

func (f *fixture) create(t *testing.T, participants ...game.Player) *bracket.Tournament {
	t.Helper()
	tr, err := f.engine.Create(context.Background(), bracket.CreateParams{
		Name:         "Friday Cup",
		Creator:      alice,
		ScoreGoal:    3,
		Participants: participants,
	})
	require.NoError(t, err)
	return tr
}

func (f *fixture) node(t *testing.T, tournamentID string, round, position int) bracket.Node {
	t.Helper()
	tr, err := f.engine.Snapshot(context.Background(), tournamentID)
	require.NoError(t, err)
	n, ok := tr.Node(round, position)
	require.True(t, ok)
	return n
}

func result(n bracket.Node, ls, rs int) session.Result {
	left, right := n.Left.Player(), n.Right.Player()
	now := time.Now()
	return session.Result{
		MatchID: n.ID,
		Kind:    metrics.KindTournament,
		State: game.State{
			Phase:       game.PhaseFinished,
			Scores:      game.Scores{Left: ls, Right: rs},
			LeftPlayer:  &left,
			RightPlayer: &right,
		},
		StartedAt:  now.Add(-time.Minute),
		FinishedAt: now,
	}
}

func TestStartSpawnsOneSessionPerReadyNode(t *testing.T) {
	f := setupTestService(t)
	tr := f.create(t, alice, bob)

	tr, err := f.svc.Start(context.Background(), tr.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.StatusInProgress, tr.Status)

	require.Equal(t, 1, f.sessions.Len())
	q0, _ := tr.Node(1, 0)
	s, ok := f.sessions.Get(q0.ID)
	require.True(t, ok)
	assert.Equal(t, metrics.KindTournament, s.Kind())
	assert.NotNil(t, q0.StartedAt)

	shared, _ := tr.Node(2, 0)
	assert.True(t, shared.Right.IsAI())
}

func TestForfeitAdvancesIntoAIMatch(t *testing.T) {
	f := setupTestService(t)
	tr := f.create(t, alice, bob)
	_, err := f.svc.Start(context.Background(), tr.ID, alice.ID)
	require.NoError(t, err)

	q0 := f.node(t, tr.ID, 1, 0)
	s, ok := f.sessions.Get(q0.ID)
	require.True(t, ok)
	s.Ready(alice.ID)
	s.Ready(bob.ID)
	s.Disconnect(bob.ID)
	f.clock.Advance(session.DefaultGracePeriod)

	semi := f.node(t, tr.ID, 2, 0)
	require.Eventually(t, func() bool {
		_, live := f.sessions.Get(semi.ID)
		return live
	}, 2*time.Second, time.Millisecond)

	semi = f.node(t, tr.ID, 2, 0)
	assert.Equal(t, alice, semi.Left.Player())
	live, _ := f.sessions.Get(semi.ID)
	st := live.State()
	require.NotNil(t, st.RightPlayer)
	assert.True(t, st.RightPlayer.IsAI())

	stats, _, _ := f.players.Snapshot()
	require.Len(t, stats, 1)
	assert.True(t, stats[0].Forfeited)
	assert.Equal(t, 3, stats[0].LeftScore)
	assert.Equal(t, 1, f.lifetime.Count(metrics.KeyTournamentMatches))

	sent := f.pubsub.Sent()
	require.NotEmpty(t, sent)
	assert.Equal(t, string(pubsub.EventMatchFinished), sent[0].Topic)
	assert.Equal(t, tr.ID, sent[0].Data.(pubsub.MatchFinishedMessage).TournamentID)
}

func TestHumanChampion(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()
	tr := f.create(t, alice)
	_, err := f.svc.Start(ctx, tr.ID, alice.ID)
	require.NoError(t, err)

	for round := 1; round <= bracket.Rounds; round++ {
		n := f.node(t, tr.ID, round, 0)
		require.Equal(t, alice, n.Left.Player(), "round %d", round)
		_, live := f.sessions.Get(n.ID)
		require.True(t, live, "round %d session", round)
		require.NoError(t, f.svc.MatchCompleted(ctx, result(n, 3, round-1)))
	}

	final, err := f.engine.Snapshot(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.StatusCompleted, final.Status)

	champions := f.notifier.Champions()
	require.Len(t, champions, 1)
	assert.Equal(t, alice, *champions[0].Winner)

	_, _, titles := f.players.Snapshot()
	assert.Equal(t, []game.Player{alice}, titles)
	assert.Equal(t, 1, f.lifetime.Count(metrics.KeyTournamentsCompleted))
	assert.Equal(t, 3, f.lifetime.Count(metrics.KeyTournamentMatches))

	var completed int
	for _, c := range f.pubsub.Sent() {
		if c.Topic == string(pubsub.EventTournamentCompleted) {
			completed++
			assert.Equal(t, "Alice", c.Data.(pubsub.TournamentCompletedMessage).WinnerName)
		}
	}
	assert.Equal(t, 1, completed)

	// A duplicate completion is skipped.
	require.NoError(t, f.svc.MatchCompleted(ctx, result(f.node(t, tr.ID, bracket.FinalRound, 0), 3, 0)))
	assert.Len(t, f.notifier.Champions(), 1)
}

func TestTieLeavesNodeForOperators(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()
	tr := f.create(t, alice, bob)
	_, err := f.svc.Start(ctx, tr.ID, alice.ID)
	require.NoError(t, err)

	q0 := f.node(t, tr.ID, 1, 0)
	require.NoError(t, f.svc.MatchCompleted(ctx, result(q0, 2, 2)))

	assert.Len(t, f.notifier.TieAlerts(), 1)
	stats, _, _ := f.players.Snapshot()
	assert.Empty(t, stats)
	assert.False(t, f.node(t, tr.ID, 1, 0).Finished())
}

func TestCheckStalled(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()

	// Started without sessions: the ready node gets one.
	pending := f.create(t, alice, bob)
	_, ready, err := f.engine.Start(ctx, pending.ID, alice.ID)
	require.NoError(t, err)
	require.Len(t, ready, 1)

	// Claimed but never run: reported.
	orphan := f.create(t, alice)
	_, ready, err = f.engine.Start(ctx, orphan.ID, alice.ID)
	require.NoError(t, err)
	require.Len(t, ready, 1)
	require.NoError(t, f.engine.MarkStarted(ctx, ready[0].ID))

	stalled, err := f.svc.CheckStalled(ctx)
	require.NoError(t, err)
	require.Len(t, stalled, 1)
	assert.Equal(t, ready[0].ID, stalled[0].ID)

	_, live := f.sessions.Get(f.node(t, pending.ID, 1, 0).ID)
	assert.True(t, live)

	alerts := f.notifier.StalledAlerts()
	require.Len(t, alerts, 1)
	assert.Len(t, alerts[0], 1)
}

func TestCheckStalledReportsUnstartedSession(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()
	tr := f.create(t, alice, bob)
	_, err := f.svc.Start(ctx, tr.ID, alice.ID)
	require.NoError(t, err)
	q0 := f.node(t, tr.ID, 1, 0)

	stalled, err := f.svc.CheckStalled(ctx)
	require.NoError(t, err)
	assert.Empty(t, stalled, "a fresh session is not stalled")

	f.clock.Advance(DefaultStartTimeout)
	stalled, err = f.svc.CheckStalled(ctx)
	require.NoError(t, err)
	require.Len(t, stalled, 1)
	assert.Equal(t, q0.ID, stalled[0].ID)
	require.Len(t, f.notifier.StalledAlerts(), 1)

	s, ok := f.sessions.Get(q0.ID)
	require.True(t, ok)
	require.True(t, s.Ready(alice.ID))
	require.True(t, s.Ready(bob.ID))
	stalled, err = f.svc.CheckStalled(ctx)
	require.NoError(t, err)
	assert.Empty(t, stalled, "a running match is not stalled")
}
