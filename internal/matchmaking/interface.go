package matchmaking

import (
	"github.com/mauv0809/ideal-pong/internal/ai"
	"github.com/mauv0809/ideal-pong/internal/game"
)

// MatchmakingService pairs players for casual matches.
type MatchmakingService interface {
	// Queue adds a player to the FIFO queue. It returns the created match when
	// the player was paired, or nil when they are now waiting.
	Queue(p game.Player) (*Pairing, error)

	// QueueAI starts a match against the AI straight away.
	QueueAI(p game.Player, difficulty ai.Difficulty) (*Pairing, error)

	// Leave removes a waiting player. It reports whether they were queued.
	Leave(playerID string) bool

	// Waiting returns the number of queued players.
	Waiting() int
}

// Publisher delivers matchmaking events to a player's private channel.
type Publisher interface {
	Publish(channel, event string, payload any)
}
