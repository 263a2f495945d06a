package ai

import (
	"math"
	"math/rand"
	"strings"

	"github.com/mauv0809/ideal-pong/internal/game"
)

type Difficulty string

const (
	Easy       Difficulty = "easy"
	Medium     Difficulty = "medium"
	Hard       Difficulty = "hard"
	Impossible Difficulty = "impossible"
)

const (
	// minAccuracy keeps the controller from ever being fully blind.
	minAccuracy = 0.4
	// deadZone is the offset, in board units, under which the paddle settles.
	deadZone = 3.0
)

var accuracies = map[Difficulty]float64{
	Easy:       0.55,
	Medium:     0.7,
	Hard:       0.85,
	Impossible: 0.97,
}

// ParseDifficulty maps a name to a tier. Unknown names fall back to Medium.
func ParseDifficulty(name string) Difficulty {
	d := Difficulty(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := accuracies[d]; ok {
		return d
	}
	return Medium
}

// Accuracy returns the clamped accuracy for the tier.
func (d Difficulty) Accuracy() float64 {
	acc, ok := accuracies[d]
	if !ok {
		acc = accuracies[Medium]
	}
	return math.Max(minAccuracy, acc)
}

// Controller steers one side of a match. It holds no per-match state
// beyond its random source and is not safe for concurrent use.
type Controller struct {
	side     game.Side
	accuracy float64
	rng      *rand.Rand
}

// New creates a controller for side. A nil rng gets its own seeded source.
func New(side game.Side, difficulty Difficulty, rng *rand.Rand) *Controller {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Controller{
		side:     side,
		accuracy: difficulty.Accuracy(),
		rng:      rng,
	}
}

func (c *Controller) Side() game.Side {
	return c.side
}

// Decide returns the input the controller wants for this tick. ok is false when
// the controller skips the tick (not running, or a missed reaction) and the
// previous input should stay in place.
func (c *Controller) Decide(state *game.State) (in game.Input, ok bool) {
	if state.Phase != game.PhaseRunning {
		return game.Input{}, false
	}
	if c.rng.Float64() > c.accuracy {
		return game.Input{}, false
	}

	target := game.Center
	if c.approaching(state.Ball.Direction.X) {
		target = state.Ball.Position.Y
	}

	offset := target - state.Paddles.Get(c.side)
	switch {
	case math.Abs(offset) < deadZone:
		return game.Input{}, true
	case offset < 0:
		return game.Input{Up: true}, true
	default:
		return game.Input{Down: true}, true
	}
}

func (c *Controller) approaching(dx float64) bool {
	if c.side == game.SideLeft {
		return dx < 0
	}
	return dx > 0
}
