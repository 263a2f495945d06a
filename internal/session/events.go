package session

import "github.com/mauv0809/ideal-pong/internal/game"

// Events published on a match channel.
const (
	EventGameState          = "gameState"
	EventPlayerDisconnected = "playerDisconnected"
	EventDisconnectTimer    = "disconnectTimer"
	EventPlayerReconnected  = "playerReconnected"
	EventGameAborted        = "gameAborted"
	EventGameFinished       = "gameFinished"
)

// Channel returns the broadcast channel name for a match.
func Channel(matchID string) string {
	return "match:" + matchID
}

type DisconnectPayload struct {
	PlayerID         string `json:"playerId"`
	PlayerName       string `json:"playerName"`
	Deadline         int64  `json:"deadline"`
	RemainingSeconds int    `json:"remainingSeconds"`
}

type TimerPayload struct {
	PlayerID         string `json:"playerId"`
	RemainingSeconds int    `json:"remainingSeconds"`
}

type ReconnectPayload struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

type AbortPayload struct {
	Reason      string       `json:"reason"`
	ForfeitedBy game.Player  `json:"forfeitedBy"`
	Winner      *game.Player `json:"winner,omitempty"`
	State       game.State   `json:"state"`
}

type FinishPayload struct {
	Winner *game.Player `json:"winner,omitempty"`
	State  game.State   `json:"state"`
}
