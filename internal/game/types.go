package game

import (
	"encoding/json"
	"time"
)

// Board geometry, in percent of the board.
const (
	BoardSize      = 100.0
	Center         = BoardSize / 2
	LeftPaddleX    = 5.0
	RightPaddleX   = 95.0
	BallRadius     = 1.0
	wallCorrection = 0.1

	// FrameMs is the reference frame duration paddle speed is expressed in.
	FrameMs = 16.0

	// maxBounceAngle is the outgoing angle for a hit on the paddle edge (45°).
	maxBounceAngle = 0.7853981633974483
)

// AIName is the display name carried by AI-controlled sides and bracket slots.
const AIName = "AI"

type Phase string

const (
	PhaseToStart  Phase = "to_start"
	PhaseRunning  Phase = "running"
	PhasePaused   Phase = "paused"
	PhaseFinished Phase = "finished"
)

type Side int

const (
	SideLeft Side = iota
	SideRight
)

func (s Side) String() string {
	if s == SideLeft {
		return "left"
	}
	return "right"
}

// Opponent returns the other side.
func (s Side) Opponent() Side {
	return 1 - s
}

type Direction string

const (
	DirUp   Direction = "up"
	DirDown Direction = "down"
)

// Player is an opaque identity plus display name. An empty ID marks an AI side.
type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// IsAI reports whether the player is the AI sentinel.
func (p Player) IsAI() bool {
	return p.ID == ""
}

// AIPlayer returns the identity used for AI-controlled sides.
func AIPlayer() Player {
	return Player{Name: AIName}
}

type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Ball struct {
	Position  Vector  `json:"position"`
	Direction Vector  `json:"direction"`
	Velocity  float64 `json:"velocity"`
}

type Paddles struct {
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
}

// Get returns the paddle centre for the given side.
func (p Paddles) Get(side Side) float64 {
	if side == SideLeft {
		return p.Left
	}
	return p.Right
}

type Scores struct {
	Left  int `json:"left"`
	Right int `json:"right"`
}

// Get returns the score for the given side.
func (s Scores) Get(side Side) int {
	if side == SideLeft {
		return s.Left
	}
	return s.Right
}

// Input holds the independent up/down flags for one side. Both held cancels out.
type Input struct {
	Up   bool `json:"up"`
	Down bool `json:"down"`
}

// State is the full mutable match state. It is owned by exactly one session.
type State struct {
	Phase           Phase      `json:"phase"`
	Ball            Ball       `json:"ball"`
	Paddles         Paddles    `json:"paddles"`
	Scores          Scores     `json:"scores"`
	CountdownEndsAt *time.Time `json:"-"`
	LeftPlayer      *Player    `json:"leftPlayer"`
	RightPlayer     *Player    `json:"rightPlayer"`
	Inputs          [2]Input   `json:"-"`
	Config          Config     `json:"config"`
}

// stateJSON carries the countdown as unix milliseconds on the wire.
type stateJSON struct {
	alias
	CountdownEndsAt *int64 `json:"countdownEndsAt"`
}

type alias State

func (s State) MarshalJSON() ([]byte, error) {
	out := stateJSON{alias: alias(s)}
	if s.CountdownEndsAt != nil {
		ms := s.CountdownEndsAt.UnixMilli()
		out.CountdownEndsAt = &ms
	}
	return json.Marshal(out)
}

func (s *State) UnmarshalJSON(data []byte) error {
	var in stateJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*s = State(in.alias)
	if in.CountdownEndsAt != nil {
		t := time.UnixMilli(*in.CountdownEndsAt)
		s.CountdownEndsAt = &t
	}
	return nil
}

// Player returns the player assigned to the side, or nil.
func (s *State) Player(side Side) *Player {
	if side == SideLeft {
		return s.LeftPlayer
	}
	return s.RightPlayer
}

// Winner returns the side with the higher score. ok is false on a tie.
func (s *State) Winner() (side Side, ok bool) {
	switch {
	case s.Scores.Left > s.Scores.Right:
		return SideLeft, true
	case s.Scores.Right > s.Scores.Left:
		return SideRight, true
	default:
		return SideLeft, false
	}
}
