package game

import (
	"math"
	"math/rand"
	"time"
)

// Match is the deterministic physics state machine for one Pong match.
// It performs no I/O and is not safe for concurrent use; a session owns it.
type Match struct {
	state State
	rng   *rand.Rand
}

// NewMatch creates a match in the to_start phase. A nil rng seeds one from the clock.
func NewMatch(cfg Config, left, right *Player, rng *rand.Rand) *Match {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	m := &Match{
		rng: rng,
		state: State{
			Phase:       PhaseToStart,
			Config:      cfg.Normalized(),
			LeftPlayer:  clonePlayer(left),
			RightPlayer: clonePlayer(right),
		},
	}
	m.recenter()
	m.state.Ball.Direction = m.randomDirection()
	return m
}

func (m *Match) Phase() Phase {
	return m.state.Phase
}

func (m *Match) Scores() Scores {
	return m.state.Scores
}

func (m *Match) Config() Config {
	return m.state.Config
}

// InCountdown reports whether the serve countdown is still running at now.
func (m *Match) InCountdown(now time.Time) bool {
	return m.state.CountdownEndsAt != nil && now.Before(*m.state.CountdownEndsAt)
}

// Start moves to_start or finished into running and serves a fresh rally.
// Restarting a finished match clears the scores.
func (m *Match) Start(now time.Time) bool {
	switch m.state.Phase {
	case PhaseToStart:
	case PhaseFinished:
		m.state.Scores = Scores{}
	default:
		return false
	}
	m.state.Phase = PhaseRunning
	m.resetRally(now)
	return true
}

func (m *Match) Pause() bool {
	if m.state.Phase != PhaseRunning {
		return false
	}
	m.state.Phase = PhasePaused
	return true
}

func (m *Match) Resume() bool {
	if m.state.Phase != PhasePaused {
		return false
	}
	m.state.Phase = PhaseRunning
	return true
}

// ForceFinish ends the match with the given scores regardless of the goal.
func (m *Match) ForceFinish(scores Scores) {
	m.state.Scores = scores
	m.state.Phase = PhaseFinished
	m.state.CountdownEndsAt = nil
	m.state.Inputs = [2]Input{}
}

// Press sets one direction flag for a side. Ignored once the match is finished.
func (m *Match) Press(side Side, dir Direction) bool {
	return m.setFlag(side, dir, true)
}

// Release clears one direction flag for a side.
func (m *Match) Release(side Side, dir Direction) bool {
	return m.setFlag(side, dir, false)
}

// SetInput replaces both flags for a side at once.
func (m *Match) SetInput(side Side, in Input) bool {
	if m.state.Phase == PhaseFinished {
		return false
	}
	m.state.Inputs[side] = in
	return true
}

func (m *Match) setFlag(side Side, dir Direction, pressed bool) bool {
	if m.state.Phase == PhaseFinished {
		return false
	}
	in := &m.state.Inputs[side]
	switch dir {
	case DirUp:
		in.Up = pressed
	case DirDown:
		in.Down = pressed
	default:
		return false
	}
	return true
}

// MovePaddle applies a discrete move. It is rejected unless running and out of countdown.
func (m *Match) MovePaddle(side Side, delta float64, now time.Time) bool {
	if m.state.Phase != PhaseRunning || m.InCountdown(now) {
		return false
	}
	m.setPaddle(side, m.state.Paddles.Get(side)+delta*m.state.Config.MovementSensitivity)
	return true
}

// Advance steps the simulation by elapsedMs of wall-clock time.
func (m *Match) Advance(now time.Time, elapsedMs float64) {
	if m.state.Phase != PhaseRunning || elapsedMs <= 0 || m.InCountdown(now) {
		return
	}
	m.movePaddles(elapsedMs)
	prevX := m.state.Ball.Position.X
	m.moveBall(elapsedMs)
	m.collideWalls()
	m.collidePaddles(prevX)
	m.checkScore(now)
}

// Snapshot returns a deep copy of the current state.
func (m *Match) Snapshot() State {
	s := m.state
	s.LeftPlayer = clonePlayer(m.state.LeftPlayer)
	s.RightPlayer = clonePlayer(m.state.RightPlayer)
	if m.state.CountdownEndsAt != nil {
		t := *m.state.CountdownEndsAt
		s.CountdownEndsAt = &t
	}
	return s
}

func (m *Match) movePaddles(elapsedMs float64) {
	cfg := m.state.Config
	step := cfg.PaddleSpeed * cfg.MovementSensitivity * (elapsedMs / FrameMs)
	for _, side := range []Side{SideLeft, SideRight} {
		in := m.state.Inputs[side]
		if in.Up == in.Down {
			continue
		}
		delta := step
		if in.Up {
			delta = -step
		}
		m.setPaddle(side, m.state.Paddles.Get(side)+delta)
	}
}

func (m *Match) setPaddle(side Side, y float64) {
	lo, hi := m.state.Config.PaddleBounds()
	y = math.Max(lo, math.Min(hi, y))
	if side == SideLeft {
		m.state.Paddles.Left = y
	} else {
		m.state.Paddles.Right = y
	}
}

func (m *Match) moveBall(elapsedMs float64) {
	b := &m.state.Ball
	b.Position.X += b.Direction.X * b.Velocity * elapsedMs
	b.Position.Y += b.Direction.Y * b.Velocity * elapsedMs

	max := m.state.Config.MaxVelocity
	if b.Velocity < max {
		b.Velocity = math.Min(b.Velocity+m.state.Config.VelocityIncrease*elapsedMs, max)
	}
}

func (m *Match) collideWalls() {
	b := &m.state.Ball
	switch {
	case b.Position.Y <= BallRadius:
		b.Direction.Y = math.Abs(b.Direction.Y)
		b.Position.Y = BallRadius + wallCorrection
	case b.Position.Y >= BoardSize-BallRadius:
		b.Direction.Y = -math.Abs(b.Direction.Y)
		b.Position.Y = BoardSize - BallRadius - wallCorrection
	}
}

// collidePaddles bounces the ball when it crosses a paddle line within the paddle span.
func (m *Match) collidePaddles(prevX float64) {
	b := &m.state.Ball
	half := m.state.Config.PaddleHeight / 2

	if b.Direction.X < 0 && prevX >= LeftPaddleX && b.Position.X <= LeftPaddleX &&
		math.Abs(b.Position.Y-m.state.Paddles.Left) <= half {
		m.bounce(SideLeft, half)
		return
	}
	if b.Direction.X > 0 && prevX <= RightPaddleX && b.Position.X >= RightPaddleX &&
		math.Abs(b.Position.Y-m.state.Paddles.Right) <= half {
		m.bounce(SideRight, half)
	}
}

func (m *Match) bounce(side Side, half float64) {
	b := &m.state.Ball
	offset := (b.Position.Y - m.state.Paddles.Get(side)) / half
	offset = math.Max(-1, math.Min(1, offset))
	angle := offset * maxBounceAngle
	magnitude := math.Hypot(b.Direction.X, b.Direction.Y)

	outward := 1.0
	paddleX := LeftPaddleX
	if side == SideRight {
		outward = -1
		paddleX = RightPaddleX
	}
	b.Direction = Vector{
		X: outward * math.Cos(angle) * magnitude,
		Y: math.Sin(angle) * magnitude,
	}
	b.Position.X = paddleX
}

func (m *Match) checkScore(now time.Time) {
	s := &m.state
	switch {
	case s.Ball.Position.X < 0:
		s.Scores.Right++
	case s.Ball.Position.X > BoardSize:
		s.Scores.Left++
	default:
		return
	}

	goal := s.Config.ScoreGoal
	if goal > 0 && (s.Scores.Left >= goal || s.Scores.Right >= goal) {
		s.Phase = PhaseFinished
		s.CountdownEndsAt = nil
		return
	}
	m.resetRally(now)
}

// resetRally serves a new ball from the centre after a countdown.
func (m *Match) resetRally(now time.Time) {
	m.recenter()
	m.state.Ball.Direction = m.randomDirection()
	ends := now.Add(m.state.Config.Countdown())
	m.state.CountdownEndsAt = &ends
}

func (m *Match) recenter() {
	m.state.Ball.Position = Vector{X: Center, Y: Center}
	m.state.Ball.Velocity = m.state.Config.InitialVelocity
	m.state.Paddles = Paddles{Left: Center, Right: Center}
}

// randomDirection samples a unit vector whose horizontal component lies strictly in (0.7, 0.9).
func (m *Match) randomDirection() Vector {
	for {
		angle := m.rng.Float64() * 2 * math.Pi
		x := math.Cos(angle)
		if ax := math.Abs(x); ax > 0.7 && ax < 0.9 {
			return Vector{X: x, Y: math.Sin(angle)}
		}
	}
}

func clonePlayer(p *Player) *Player {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
