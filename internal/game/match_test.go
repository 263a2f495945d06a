package game

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.UnixMilli(1_700_000_000_000)

// runningMatch returns a running match whose serve countdown has already elapsed at the returned time.
func runningMatch(t *testing.T, cfg Config, seed int64) (*Match, time.Time) {
	t.Helper()
	m := NewMatch(cfg, &Player{ID: "p1", Name: "One"}, &Player{ID: "p2", Name: "Two"}, rand.New(rand.NewSource(seed)))
	require.True(t, m.Start(epoch))
	return m, epoch.Add(cfg.Countdown())
}

func TestStateMachineTransitions(t *testing.T) {
	m := NewMatch(DefaultConfig(), nil, nil, rand.New(rand.NewSource(1)))
	assert.Equal(t, PhaseToStart, m.Phase())

	assert.False(t, m.Pause(), "cannot pause before start")
	assert.False(t, m.Resume())
	assert.True(t, m.Start(epoch))
	assert.False(t, m.Start(epoch), "already running")
	assert.True(t, m.Pause())
	assert.Equal(t, PhasePaused, m.Phase())
	assert.True(t, m.Resume())

	m.ForceFinish(Scores{Left: 5, Right: 2})
	assert.Equal(t, PhaseFinished, m.Phase())
	assert.False(t, m.Pause())
	assert.False(t, m.Press(SideLeft, DirUp), "input after finish is ignored")

	assert.True(t, m.Start(epoch), "explicit restart of a finished match")
	assert.Equal(t, Scores{}, m.Scores())
}

func TestAdvanceSuspendedDuringCountdownAndPause(t *testing.T) {
	m, after := runningMatch(t, DefaultConfig(), 2)
	before := m.Snapshot()

	m.Press(SideLeft, DirUp)
	m.Advance(epoch.Add(time.Second), 16)
	assert.Equal(t, before.Ball, m.Snapshot().Ball, "no physics inside countdown")
	assert.Equal(t, before.Paddles, m.Snapshot().Paddles)
	assert.False(t, m.MovePaddle(SideLeft, 5, epoch.Add(time.Second)), "discrete move rejected in countdown")

	m.Pause()
	m.Advance(after, 16)
	assert.Equal(t, before.Ball, m.Snapshot().Ball, "no physics while paused")

	m.Resume()
	m.Advance(after, 16)
	assert.NotEqual(t, before.Ball.Position, m.Snapshot().Ball.Position)
	assert.True(t, m.MovePaddle(SideRight, 5, after))
}

func TestPaddlesStayInBounds(t *testing.T) {
	for _, height := range []float64{5, 20, 40, 90} {
		cfg := DefaultConfig()
		cfg.PaddleHeight = height
		cfg.ScoreGoal = 0
		m, now := runningMatch(t, cfg, int64(height))
		rng := rand.New(rand.NewSource(42))
		lo, hi := cfg.PaddleBounds()

		for i := 0; i < 2000; i++ {
			side := Side(rng.Intn(2))
			m.SetInput(side, Input{Up: rng.Intn(2) == 0, Down: rng.Intn(2) == 0})
			if rng.Intn(10) == 0 {
				m.MovePaddle(side, rng.Float64()*200-100, now)
			}
			now = now.Add(16 * time.Millisecond)
			m.Advance(now, float64(rng.Intn(40)+1))

			p := m.Snapshot().Paddles
			require.GreaterOrEqual(t, p.Left, lo)
			require.LessOrEqual(t, p.Left, hi)
			require.GreaterOrEqual(t, p.Right, lo)
			require.LessOrEqual(t, p.Right, hi)
		}
	}
}

func TestBothDirectionsHeldCancel(t *testing.T) {
	m, now := runningMatch(t, DefaultConfig(), 3)
	m.Press(SideLeft, DirUp)
	m.Press(SideLeft, DirDown)
	m.Advance(now, 16)
	assert.Equal(t, Center, m.Snapshot().Paddles.Left)

	m.Release(SideLeft, DirDown)
	m.Advance(now, 16)
	assert.InDelta(t, Center-DefaultConfig().PaddleSpeed, m.Snapshot().Paddles.Left, 1e-9)
}

func TestVelocityMonotonicAndCapped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VelocityIncrease = 0.0005
	cfg.PaddleHeight = 100 // paddles cover the board so the rally never ends
	m, now := runningMatch(t, cfg, 4)

	prev := m.Snapshot().Ball.Velocity
	for i := 0; i < 5000; i++ {
		now = now.Add(16 * time.Millisecond)
		m.Advance(now, 16)
		v := m.Snapshot().Ball.Velocity
		require.GreaterOrEqual(t, v, prev)
		require.LessOrEqual(t, v, cfg.MaxVelocity)
		prev = v
	}
	assert.Equal(t, Scores{}, m.Scores())
	assert.Equal(t, cfg.MaxVelocity, prev)
}

func TestWallReflection(t *testing.T) {
	m, now := runningMatch(t, DefaultConfig(), 5)
	m.state.Ball.Position = Vector{X: 50, Y: 1.2}
	m.state.Ball.Direction = Vector{X: 0.8, Y: -0.6}
	m.Advance(now, 16)

	b := m.Snapshot().Ball
	assert.Greater(t, b.Direction.Y, 0.0)
	assert.InDelta(t, BallRadius+wallCorrection, b.Position.Y, 1e-9)
}

func TestPaddleBounceAngleFollowsOffset(t *testing.T) {
	cfg := DefaultConfig()
	m, now := runningMatch(t, cfg, 6)

	// Hit the top edge of the left paddle.
	m.state.Paddles.Left = 50
	m.state.Ball.Position = Vector{X: 5.5, Y: 40}
	m.state.Ball.Direction = Vector{X: -1, Y: 0}
	m.state.Ball.Velocity = 0.05
	m.Advance(now, 16)

	b := m.Snapshot().Ball
	assert.Greater(t, b.Direction.X, 0.0, "reflected outward")
	assert.InDelta(t, 1.0, math.Hypot(b.Direction.X, b.Direction.Y), 1e-9, "magnitude preserved")
	assert.InDelta(t, -math.Sin(maxBounceAngle), b.Direction.Y, 1e-9, "edge hit leaves at 45°")

	// Dead-centre hit on the right paddle goes straight back.
	m.state.Paddles.Right = 50
	m.state.Ball.Position = Vector{X: 94.5, Y: 50}
	m.state.Ball.Direction = Vector{X: 1, Y: 0}
	m.Advance(now, 16)

	b = m.Snapshot().Ball
	assert.InDelta(t, -1.0, b.Direction.X, 1e-9)
	assert.InDelta(t, 0.0, b.Direction.Y, 1e-9)
}

func TestScoringResetsRally(t *testing.T) {
	m, now := runningMatch(t, DefaultConfig(), 7)
	m.state.Paddles.Left = 90
	m.state.Ball.Position = Vector{X: 0.5, Y: 10}
	m.state.Ball.Direction = Vector{X: -1, Y: 0}
	m.state.Ball.Velocity = 0.1
	m.Advance(now, 16)

	s := m.Snapshot()
	assert.Equal(t, Scores{Left: 0, Right: 1}, s.Scores)
	assert.Equal(t, PhaseRunning, s.Phase)
	assert.Equal(t, Vector{X: Center, Y: Center}, s.Ball.Position)
	assert.Equal(t, DefaultConfig().InitialVelocity, s.Ball.Velocity)
	assert.Equal(t, Paddles{Left: Center, Right: Center}, s.Paddles)
	require.NotNil(t, s.CountdownEndsAt)
	assert.Equal(t, now.Add(DefaultConfig().Countdown()), *s.CountdownEndsAt)
}

func TestServeDirectionConstraint(t *testing.T) {
	m := NewMatch(DefaultConfig(), nil, nil, rand.New(rand.NewSource(8)))
	for i := 0; i < 500; i++ {
		d := m.randomDirection()
		ax := math.Abs(d.X)
		require.Greater(t, ax, 0.7)
		require.Less(t, ax, 0.9)
	}
}

func TestGoalReachedFinishes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ScoreGoal = 3
	m, now := runningMatch(t, cfg, 9)
	m.state.Scores = Scores{Left: 2, Right: 1}
	m.state.Paddles.Right = 10
	m.state.Ball.Position = Vector{X: 99.5, Y: 90}
	m.state.Ball.Direction = Vector{X: 1, Y: 0}
	m.Advance(now, 16)

	s := m.Snapshot()
	assert.Equal(t, PhaseFinished, s.Phase)
	assert.Equal(t, Scores{Left: 3, Right: 1}, s.Scores)
	assert.Nil(t, s.CountdownEndsAt)

	m.Advance(now.Add(time.Hour), 16)
	assert.Equal(t, s, m.Snapshot(), "finished is terminal")
}

func TestSnapshotRoundTrip(t *testing.T) {
	m, now := runningMatch(t, DefaultConfig(), 10)
	for i := 0; i < 30; i++ {
		now = now.Add(16 * time.Millisecond)
		m.Advance(now, 16)
	}
	snap := m.Snapshot()

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	var decoded State
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, snap.Scores, decoded.Scores)
	assert.Equal(t, snap.Phase, decoded.Phase)
	assert.Equal(t, snap.Ball, decoded.Ball)
	assert.Equal(t, snap.Paddles, decoded.Paddles)
	assert.Equal(t, *snap.LeftPlayer, *decoded.LeftPlayer)
	require.NotNil(t, decoded.CountdownEndsAt)
	assert.Equal(t, snap.CountdownEndsAt.UnixMilli(), decoded.CountdownEndsAt.UnixMilli())
}

func TestOverridesApply(t *testing.T) {
	goal := 11
	height := 30.0
	cfg := Overrides{ScoreGoal: &goal, PaddleHeight: &height}.Apply(DefaultConfig())
	assert.Equal(t, 11, cfg.ScoreGoal)
	assert.Equal(t, 30.0, cfg.PaddleHeight)
	assert.Equal(t, DefaultConfig().MaxVelocity, cfg.MaxVelocity)
}

func TestConfigNormalized(t *testing.T) {
	t.Run("caps the serve speed", func(t *testing.T) {
		initial := 0.5
		cfg := Overrides{InitialVelocity: &initial}.Apply(DefaultConfig())
		assert.Equal(t, cfg.MaxVelocity, cfg.InitialVelocity)
	})

	t.Run("keeps the paddle on the board", func(t *testing.T) {
		for _, height := range []float64{-10, 0, 150} {
			cfg := DefaultConfig()
			cfg.PaddleHeight = height
			lo, hi := cfg.Normalized().PaddleBounds()
			assert.LessOrEqual(t, lo, hi, "height %v", height)
			assert.GreaterOrEqual(t, lo, 0.0)
			assert.LessOrEqual(t, hi, BoardSize)
		}
	})

	t.Run("ball never exceeds max velocity", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.InitialVelocity = 1
		cfg.MaxVelocity = 0.1
		cfg.PaddleHeight = 100
		m, now := runningMatch(t, cfg, 9)
		assert.Equal(t, 0.1, m.Snapshot().Ball.Velocity)
		for i := 0; i < 100; i++ {
			now = now.Add(16 * time.Millisecond)
			m.Advance(now, 16)
			require.LessOrEqual(t, m.Snapshot().Ball.Velocity, 0.1)
		}
	})

	t.Run("leaves valid values alone", func(t *testing.T) {
		assert.Equal(t, DefaultConfig(), DefaultConfig().Normalized())
	})
}
