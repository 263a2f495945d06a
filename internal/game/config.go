package game

import (
	"math"
	"time"
)

// Config holds the per-match tuning. It is immutable once a match is created.
type Config struct {
	CountdownMs         int64   `json:"countdownMs"`
	ScoreGoal           int     `json:"scoreGoal"`
	InitialVelocity     float64 `json:"initialVelocity"`  // board units per ms
	MaxVelocity         float64 `json:"maxVelocity"`      // board units per ms
	VelocityIncrease    float64 `json:"velocityIncrease"` // board units per ms, per ms
	PaddleSpeed         float64 `json:"paddleSpeed"`      // board units per 16ms frame
	PaddleHeight        float64 `json:"paddleHeight"`     // percent of the board
	MovementSensitivity float64 `json:"movementSensitivity"`
	Debug               bool    `json:"debug"`
}

func DefaultConfig() Config {
	return Config{
		CountdownMs:         3000,
		ScoreGoal:           5,
		InitialVelocity:     0.05,
		MaxVelocity:         0.15,
		VelocityIncrease:    0.000002,
		PaddleSpeed:         1.2,
		PaddleHeight:        20,
		MovementSensitivity: 1.0,
	}
}

// Countdown returns the serve countdown as a duration.
func (c Config) Countdown() time.Duration {
	return time.Duration(c.CountdownMs) * time.Millisecond
}

// PaddleBounds returns the playable range of a paddle centre.
func (c Config) PaddleBounds() (min, max float64) {
	half := c.PaddleHeight / 2
	return half, BoardSize - half
}

// Normalized returns c with out-of-range values pulled back into range. The
// ball never starts faster than MaxVelocity and the paddle fits the board.
func (c Config) Normalized() Config {
	def := DefaultConfig()
	if c.MaxVelocity <= 0 {
		c.MaxVelocity = def.MaxVelocity
	}
	if c.InitialVelocity <= 0 {
		c.InitialVelocity = def.InitialVelocity
	}
	c.InitialVelocity = math.Min(c.InitialVelocity, c.MaxVelocity)
	c.VelocityIncrease = math.Max(c.VelocityIncrease, 0)
	switch {
	case c.PaddleHeight <= 0:
		c.PaddleHeight = def.PaddleHeight
	case c.PaddleHeight > BoardSize:
		c.PaddleHeight = BoardSize
	}
	if c.CountdownMs < 0 {
		c.CountdownMs = 0
	}
	return c
}

// Overrides selects a subset of Config fields to change. Nil fields keep the base value.
type Overrides struct {
	CountdownMs         *int64   `json:"countdownMs,omitempty"`
	ScoreGoal           *int     `json:"scoreGoal,omitempty"`
	InitialVelocity     *float64 `json:"initialVelocity,omitempty"`
	MaxVelocity         *float64 `json:"maxVelocity,omitempty"`
	VelocityIncrease    *float64 `json:"velocityIncrease,omitempty"`
	PaddleSpeed         *float64 `json:"paddleSpeed,omitempty"`
	PaddleHeight        *float64 `json:"paddleHeight,omitempty"`
	MovementSensitivity *float64 `json:"movementSensitivity,omitempty"`
	Debug               *bool    `json:"debug,omitempty"`
}

// Apply returns base with every non-nil override applied.
func (o Overrides) Apply(base Config) Config {
	cfg := base
	if o.CountdownMs != nil {
		cfg.CountdownMs = *o.CountdownMs
	}
	if o.ScoreGoal != nil {
		cfg.ScoreGoal = *o.ScoreGoal
	}
	if o.InitialVelocity != nil {
		cfg.InitialVelocity = *o.InitialVelocity
	}
	if o.MaxVelocity != nil {
		cfg.MaxVelocity = *o.MaxVelocity
	}
	if o.VelocityIncrease != nil {
		cfg.VelocityIncrease = *o.VelocityIncrease
	}
	if o.PaddleSpeed != nil {
		cfg.PaddleSpeed = *o.PaddleSpeed
	}
	if o.PaddleHeight != nil {
		cfg.PaddleHeight = *o.PaddleHeight
	}
	if o.MovementSensitivity != nil {
		cfg.MovementSensitivity = *o.MovementSensitivity
	}
	if o.Debug != nil {
		cfg.Debug = *o.Debug
	}
	return cfg.Normalized()
}
