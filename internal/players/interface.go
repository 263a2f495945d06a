package players

import "github.com/mauv0809/ideal-pong/internal/game"

// PlayerStore defines the interface for player identities, statistics and casual match history.
type PlayerStore interface {
	UpsertPlayer(p game.Player) error
	IsKnownPlayer(playerID string) bool
	GetAllPlayers() ([]PlayerInfo, error)
	RecordCasualMatch(rec MatchRecord) error
	UpdatePlayerStats(rec MatchRecord) error
	IncrementTournamentsWon(p game.Player) error
	GetPlayerStats() ([]PlayerStats, error)
	GetPlayerStatsByID(playerID string) (*PlayerStats, error)
	GetMatchHistory(playerID string, limit int) ([]MatchRecord, error)
	Clear()
}
