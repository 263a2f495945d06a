package matchmaking

import (
	"errors"

	"github.com/mauv0809/ideal-pong/internal/game"
)

// EventMatchFound is published to both players once a match has been created.
const EventMatchFound = "matchFound"

// duplicateSuffix is appended to the second player's name when both share one.
const duplicateSuffix = " (2)"

var (
	ErrAlreadyQueued  = errors.New("player already queued")
	ErrAlreadyPlaying = errors.New("player already in a match")
	ErrInvalidPlayer  = errors.New("player id is required")
)

// PlayerChannel returns the private channel name for a player.
func PlayerChannel(playerID string) string {
	return "player:" + playerID
}

// Pairing is a casual match created by the queue.
type Pairing struct {
	MatchID string      `json:"matchId"`
	Left    game.Player `json:"left"`
	Right   game.Player `json:"right"`
}

// MatchFoundPayload tells one player where to go.
type MatchFoundPayload struct {
	MatchID  string      `json:"matchId"`
	Side     string      `json:"side"`
	Opponent game.Player `json:"opponent"`
}
