package session

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mauv0809/ideal-pong/internal/ai"
	"github.com/mauv0809/ideal-pong/internal/game"
	"github.com/mauv0809/ideal-pong/internal/players"
)

const (
	// TickInterval is the simulation and broadcast cadence.
	TickInterval = time.Second / 60
	// DefaultGracePeriod is how long a disconnected player has to come back.
	DefaultGracePeriod = 15 * time.Second
	// warningInterval is the cadence of disconnectTimer updates.
	warningInterval = time.Second
	// completionTimeout bounds a completion handler call.
	completionTimeout = 30 * time.Second
)

var (
	ErrSessionExists   = errors.New("session already exists")
	ErrSessionNotFound = errors.New("session not found")
)

// Publisher pushes an event to every subscriber of a named channel.
type Publisher interface {
	Publish(channel, event string, payload any)
}

// Result is handed to the completion handler once a match reaches a terminal state.
type Result struct {
	MatchID     string
	Kind        string
	State       game.State
	Forfeited   bool
	ForfeitedBy *game.Player
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Winner returns the winning player, or nil on a tie or when the side is unassigned.
func (r Result) Winner() *game.Player {
	side, ok := r.State.Winner()
	if !ok {
		return nil
	}
	return r.State.Player(side)
}

// Loser returns the losing player, or nil on a tie or when the side is unassigned.
func (r Result) Loser() *game.Player {
	side, ok := r.State.Winner()
	if !ok {
		return nil
	}
	return r.State.Player(side.Opponent())
}

// Record converts the result into a match record for the statistics layer.
func (r Result) Record() players.MatchRecord {
	rec := players.MatchRecord{
		ID:         r.MatchID,
		LeftScore:  r.State.Scores.Left,
		RightScore: r.State.Scores.Right,
		Forfeited:  r.Forfeited,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	if p := r.State.LeftPlayer; p != nil {
		rec.Left = *p
	}
	if p := r.State.RightPlayer; p != nil {
		rec.Right = *p
	}
	return rec
}

// CompletionHandler is invoked asynchronously once per session with the final result.
type CompletionHandler interface {
	MatchCompleted(ctx context.Context, result Result) error
}

// CompletionFunc adapts a function to CompletionHandler.
type CompletionFunc func(ctx context.Context, result Result) error

func (f CompletionFunc) MatchCompleted(ctx context.Context, result Result) error {
	return f(ctx, result)
}

// Options configures a new session.
type Options struct {
	ID          string
	Kind        string
	Config      game.Config
	Left        *game.Player
	Right       *game.Player
	AI          *ai.Controller
	Clock       clockwork.Clock
	Publisher   Publisher
	OnComplete  CompletionHandler
	GracePeriod time.Duration
	Rand        *rand.Rand
}

type connection struct {
	player   game.Player
	isPlayer bool
	side     game.Side
	deadline *time.Time
	// gen invalidates timer callbacks that fire after a reconnect.
	gen int
}
