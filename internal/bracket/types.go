package bracket

import (
	"fmt"
	"time"

	"github.com/mauv0809/ideal-pong/internal/game"
)

type Status string

const (
	StatusWaitingPlayers Status = "waiting_players"
	StatusInProgress     Status = "in_progress"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
)

// Terminal reports whether no further bracket changes are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Bracket shape for eight participants.
const (
	Rounds          = 3
	FirstRoundNodes = 4
	MaxParticipants = FirstRoundNodes * 2
	FinalRound      = Rounds
)

// Events published on a tournament channel.
const (
	EventBracketUpdate      = "bracketUpdate"
	EventMatchComplete      = "matchComplete"
	EventTournamentComplete = "tournamentComplete"
)

// Channel returns the broadcast channel name for a tournament.
func Channel(tournamentID string) string {
	return "tournament:" + tournamentID
}

// Slot is one side of a node. Both fields nil means empty; a nil PlayerID
// with a name is the AI sentinel; a non-nil PlayerID is a participant.
type Slot struct {
	PlayerID   *string `json:"playerId"`
	PlayerName *string `json:"playerName"`
}

func ParticipantSlot(p game.Player) Slot {
	id, name := p.ID, p.Name
	return Slot{PlayerID: &id, PlayerName: &name}
}

func AISlot() Slot {
	name := game.AIName
	return Slot{PlayerName: &name}
}

func (s Slot) IsEmpty() bool {
	return s.PlayerID == nil && s.PlayerName == nil
}

func (s Slot) IsAI() bool {
	return s.PlayerID == nil && s.PlayerName != nil
}

func (s Slot) IsParticipant() bool {
	return s.PlayerID != nil
}

// Player returns the slot occupant. The AI sentinel maps to game.AIPlayer.
func (s Slot) Player() game.Player {
	var p game.Player
	if s.PlayerID != nil {
		p.ID = *s.PlayerID
	}
	if s.PlayerName != nil {
		p.Name = *s.PlayerName
	}
	return p
}

// Node is one match slot of the bracket tree.
type Node struct {
	ID           string     `json:"id"`
	TournamentID string     `json:"tournamentId"`
	Round        int        `json:"round"`
	Position     int        `json:"position"`
	Left         Slot       `json:"left"`
	Right        Slot       `json:"right"`
	LeftScore    int        `json:"leftScore"`
	RightScore   int        `json:"rightScore"`
	NextNodeID   *string    `json:"nextNodeId"`
	StartedAt    *time.Time `json:"startedAt"`
	FinishedAt   *time.Time `json:"finishedAt"`
	AbortedAt    *time.Time `json:"abortedAt"`
}

func (n Node) Finished() bool {
	return n.FinishedAt != nil
}

// Decided reports whether neither slot is still empty.
func (n Node) Decided() bool {
	return !n.Left.IsEmpty() && !n.Right.IsEmpty()
}

func (n Node) IsAIvsAI() bool {
	return n.Left.IsAI() && n.Right.IsAI()
}

func (n Node) HasParticipant() bool {
	return n.Left.IsParticipant() || n.Right.IsParticipant()
}

// Winner returns the occupant of the higher-scoring slot of a finished node.
func (n Node) Winner() (game.Player, bool) {
	switch {
	case !n.Finished() || n.LeftScore == n.RightScore:
		return game.Player{}, false
	case n.LeftScore > n.RightScore:
		return n.Left.Player(), true
	default:
		return n.Right.Player(), true
	}
}

type Participant struct {
	PlayerID   string    `json:"playerId"`
	PlayerName string    `json:"playerName"`
	JoinedAt   time.Time `json:"joinedAt"`
}

// Tournament is the durable tournament state plus its bracket.
type Tournament struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Status       Status        `json:"status"`
	Creator      game.Player   `json:"creator"`
	Winner       *game.Player  `json:"winner,omitempty"`
	ScoreGoal    int           `json:"scoreGoal"`
	Participants []Participant `json:"participants"`
	Nodes        []Node        `json:"nodes"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
	CompletedAt  *time.Time    `json:"completedAt,omitempty"`
}

// Node returns the node at (round, position).
func (t *Tournament) Node(round, position int) (Node, bool) {
	for _, n := range t.Nodes {
		if n.Round == round && n.Position == position {
			return n, true
		}
	}
	return Node{}, false
}

// Seats maps each occupied round-1 slot, as "position:side", to its participant id.
func (t *Tournament) Seats() map[string]string {
	seats := make(map[string]string)
	for _, n := range t.Nodes {
		if n.Round != 1 {
			continue
		}
		if n.Left.IsParticipant() {
			seats[seatKey(n.Position, game.SideLeft)] = *n.Left.PlayerID
		}
		if n.Right.IsParticipant() {
			seats[seatKey(n.Position, game.SideRight)] = *n.Right.PlayerID
		}
	}
	return seats
}

func seatKey(position int, side game.Side) string {
	return fmt.Sprintf("%d:%s", position, side)
}

func (t *Tournament) HasParticipant(playerID string) bool {
	for _, p := range t.Participants {
		if p.PlayerID == playerID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (t *Tournament) Clone() *Tournament {
	c := *t
	if t.Winner != nil {
		w := *t.Winner
		c.Winner = &w
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		c.CompletedAt = &ts
	}
	c.Participants = append([]Participant(nil), t.Participants...)
	c.Nodes = make([]Node, len(t.Nodes))
	for i, n := range t.Nodes {
		c.Nodes[i] = n.clone()
	}
	return &c
}

func (n Node) clone() Node {
	c := n
	c.Left = n.Left.clone()
	c.Right = n.Right.clone()
	c.NextNodeID = cloneString(n.NextNodeID)
	c.StartedAt = cloneTime(n.StartedAt)
	c.FinishedAt = cloneTime(n.FinishedAt)
	c.AbortedAt = cloneTime(n.AbortedAt)
	return c
}

func (s Slot) clone() Slot {
	return Slot{PlayerID: cloneString(s.PlayerID), PlayerName: cloneString(s.PlayerName)}
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// MatchCompletePayload is published when a node finishes.
type MatchCompletePayload struct {
	TournamentID string      `json:"tournamentId"`
	Node         Node        `json:"node"`
	Winner       game.Player `json:"winner"`
	AutoResolved bool        `json:"autoResolved"`
}

// TournamentCompletePayload is published when the final finishes.
type TournamentCompletePayload struct {
	TournamentID string      `json:"tournamentId"`
	Name         string      `json:"name"`
	Winner       game.Player `json:"winner"`
}

// AdvanceResult describes the effect of finishing a node.
type AdvanceResult struct {
	Node       Node
	Winner     game.Player
	Tournament *Tournament
	// Completed is set when this advance, or the cascade it triggered, finished the tournament.
	Completed bool
	Ready     []Node
}
