package players

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/ideal-pong/internal/game"
)

// New creates a new PlayerStore.
func New(db *sql.DB) PlayerStore {
	return &store{
		db: db,
	}
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// UpsertPlayer inserts a player or refreshes their display name.
func (s *store) UpsertPlayer(p game.Player) error {
	if p.IsAI() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return upsertPlayer(s.db, p)
}

func upsertPlayer(db execer, p game.Player) error {
	_, err := db.Exec(`
		INSERT INTO players (id, name, created_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name;
	`, p.ID, p.Name, time.Now().UnixMilli())
	return err
}

// IsKnownPlayer checks if a player exists in the database.
func (s *store) IsKnownPlayer(playerID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var exists bool
	err := s.db.QueryRow("SELECT EXISTS(SELECT 1 FROM players WHERE id = ?)", playerID).Scan(&exists)
	if err != nil {
		log.Error("Failed to check if player is known", "error", err, "playerID", playerID)
		return false
	}
	return exists
}

func (s *store) GetAllPlayers() ([]PlayerInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT id, name, created_at FROM players ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var players []PlayerInfo
	for rows.Next() {
		var p PlayerInfo
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

// RecordCasualMatch stores a non-tournament match and applies its statistics in one transaction.
func (s *store) RecordCasualMatch(rec MatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	var abortedAt sql.NullInt64
	if rec.Forfeited {
		abortedAt = sql.NullInt64{Int64: rec.FinishedAt.UnixMilli(), Valid: true}
	}
	_, err = tx.Exec(`
		INSERT INTO matches (id, left_player_id, left_player_name, right_player_id, right_player_name,
			left_score, right_score, started_at, finished_at, aborted_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, nullableID(rec.Left), rec.Left.Name, nullableID(rec.Right), rec.Right.Name,
		rec.LeftScore, rec.RightScore, nullableTime(rec.StartedAt), rec.FinishedAt.UnixMilli(), abortedAt,
		time.Now().UnixMilli())
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to insert match %s: %w", rec.ID, err)
	}

	if err := applyStats(tx, rec); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// UpdatePlayerStats applies win/loss statistics for the human sides of a match.
// Ties change nothing.
func (s *store) UpdatePlayerStats(rec MatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if err := applyStats(tx, rec); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func applyStats(tx *sql.Tx, rec MatchRecord) error {
	if rec.LeftScore == rec.RightScore {
		log.Debug("Skipping stats for tied match", "matchID", rec.ID)
		return nil
	}
	leftWon := rec.LeftScore > rec.RightScore

	sides := []struct {
		player           game.Player
		won              bool
		scored, conceded int
	}{
		{rec.Left, leftWon, rec.LeftScore, rec.RightScore},
		{rec.Right, !leftWon, rec.RightScore, rec.LeftScore},
	}
	for _, side := range sides {
		if side.player.IsAI() {
			continue
		}
		if err := upsertPlayer(tx, side.player); err != nil {
			return err
		}
		won, lost := 0, 1
		if side.won {
			won, lost = 1, 0
		}
		_, err := tx.Exec(`
			INSERT INTO player_stats (player_id, matches_played, matches_won, matches_lost, points_scored, points_conceded)
			VALUES (?, 1, ?, ?, ?, ?)
			ON CONFLICT(player_id) DO UPDATE SET
				matches_played = matches_played + 1,
				matches_won = matches_won + excluded.matches_won,
				matches_lost = matches_lost + excluded.matches_lost,
				points_scored = points_scored + excluded.points_scored,
				points_conceded = points_conceded + excluded.points_conceded;
		`, side.player.ID, won, lost, side.scored, side.conceded)
		if err != nil {
			return fmt.Errorf("failed to update stats for player %s: %w", side.player.ID, err)
		}
	}
	return nil
}

// IncrementTournamentsWon credits a tournament win. AI champions are ignored.
func (s *store) IncrementTournamentsWon(p game.Player) error {
	if p.IsAI() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if err := upsertPlayer(tx, p); err != nil {
		tx.Rollback()
		return err
	}
	_, err = tx.Exec(`
		INSERT INTO player_stats (player_id, tournaments_won) VALUES (?, 1)
		ON CONFLICT(player_id) DO UPDATE SET tournaments_won = tournaments_won + 1;
	`, p.ID)
	if err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

const statsColumns = `
	p.id, p.name, ps.matches_played, ps.matches_won, ps.matches_lost,
	ps.points_scored, ps.points_conceded, ps.tournaments_won`

// GetPlayerStats returns the leaderboard.
func (s *store) GetPlayerStats() ([]PlayerStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT` + statsColumns + `
		FROM player_stats ps
		JOIN players p ON p.id = ps.player_id
		ORDER BY ps.tournaments_won DESC, ps.matches_won DESC,
			(ps.points_scored - ps.points_conceded) DESC, p.name;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []PlayerStats
	for rows.Next() {
		stat, err := scanStats(rows)
		if err != nil {
			log.Error("Failed to scan player stats row", "error", err)
			continue
		}
		stats = append(stats, *stat)
	}
	return stats, rows.Err()
}

func (s *store) GetPlayerStatsByID(playerID string) (*PlayerStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT`+statsColumns+`
		FROM player_stats ps
		JOIN players p ON p.id = ps.player_id
		WHERE p.id = ?`, playerID)
	stat, err := scanStats(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlayerNotFound
	}
	return stat, err
}

func scanStats(scanner interface{ Scan(...any) error }) (*PlayerStats, error) {
	var stat PlayerStats
	err := scanner.Scan(&stat.PlayerID, &stat.PlayerName, &stat.MatchesPlayed, &stat.MatchesWon,
		&stat.MatchesLost, &stat.PointsScored, &stat.PointsConceded, &stat.TournamentsWon)
	if err != nil {
		return nil, err
	}
	if stat.MatchesPlayed > 0 {
		stat.WinPercentage = float64(stat.MatchesWon) / float64(stat.MatchesPlayed) * 100
	}
	return &stat, nil
}

// GetMatchHistory returns a player's most recent casual matches, newest first.
func (s *store) GetMatchHistory(playerID string, limit int) ([]MatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, left_player_id, left_player_name, right_player_id, right_player_name,
			left_score, right_score, started_at, finished_at, aborted_at
		FROM matches
		WHERE tournament_id IS NULL AND (left_player_id = ? OR right_player_id = ?)
		ORDER BY finished_at DESC
		LIMIT ?`, playerID, playerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []MatchRecord
	for rows.Next() {
		var (
			rec                  MatchRecord
			leftID, rightID      sql.NullString
			leftName, rightName  sql.NullString
			startedAt, abortedAt sql.NullInt64
			finishedAt           int64
		)
		if err := rows.Scan(&rec.ID, &leftID, &leftName, &rightID, &rightName,
			&rec.LeftScore, &rec.RightScore, &startedAt, &finishedAt, &abortedAt); err != nil {
			return nil, err
		}
		rec.Left = game.Player{ID: leftID.String, Name: leftName.String}
		rec.Right = game.Player{ID: rightID.String, Name: rightName.String}
		if startedAt.Valid {
			rec.StartedAt = time.UnixMilli(startedAt.Int64)
		}
		rec.FinishedAt = time.UnixMilli(finishedAt)
		rec.Forfeited = abortedAt.Valid
		history = append(history, rec)
	}
	return history, rows.Err()
}

// Clear removes all players, statistics and casual match history.
func (s *store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, stmt := range []string{
		"DELETE FROM player_stats",
		"DELETE FROM matches WHERE tournament_id IS NULL",
		"DELETE FROM players",
	} {
		if _, err := s.db.Exec(stmt); err != nil {
			log.Error("Failed to clear player data", "error", err, "statement", stmt)
			return
		}
	}
	log.Info("Cleared player data")
}

func nullableID(p game.Player) sql.NullString {
	return sql.NullString{String: p.ID, Valid: !p.IsAI()}
}

func nullableTime(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}
