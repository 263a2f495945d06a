package players

import (
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/mauv0809/ideal-pong/internal/game"
)

var ErrPlayerNotFound = errors.New("player not found")

// store handles all database operations for players and their statistics.
type store struct {
	db *sql.DB
	mu sync.RWMutex
}

// PlayerStats represents a player's statistics for the leaderboard.
type PlayerStats struct {
	PlayerID       string  `json:"player_id"`
	PlayerName     string  `json:"player_name"`
	MatchesPlayed  int     `json:"matches_played"`
	MatchesWon     int     `json:"matches_won"`
	MatchesLost    int     `json:"matches_lost"`
	PointsScored   int     `json:"points_scored"`
	PointsConceded int     `json:"points_conceded"`
	TournamentsWon int     `json:"tournaments_won"`
	WinPercentage  float64 `json:"win_percentage"`
}

// PlayerInfo represents a player in the store.
type PlayerInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"`
}

// MatchRecord is one completed match as seen by the statistics layer.
// An empty player ID marks an AI side.
type MatchRecord struct {
	ID         string      `json:"id"`
	Left       game.Player `json:"left"`
	Right      game.Player `json:"right"`
	LeftScore  int         `json:"left_score"`
	RightScore int         `json:"right_score"`
	Forfeited  bool        `json:"forfeited"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
}
