package bracket

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/ideal-pong/internal/game"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the durable home of tournaments and bracket nodes.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// withTransaction runs fn in a single transaction, committing only when fn succeeds.
func (s *Store) withTransaction(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error("Transaction rollback failed", "error", err, "rollbackError", rbErr)
			}
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", cErr)
		}
	}()
	return fn(tx)
}

// GetTournament loads a tournament with its participants and nodes.
func (s *Store) GetTournament(ctx context.Context, id string) (*Tournament, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return loadTournament(ctx, s.db, id)
}

// ListTournaments returns tournaments, newest first, optionally filtered by status.
// Nodes are not loaded.
func (s *Store) ListTournaments(ctx context.Context, statuses ...Status) ([]Tournament, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + tournamentColumns + ` FROM tournaments`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (?` + strings.Repeat(",?", len(statuses)-1) + `)`
		for _, st := range statuses {
			args = append(args, st)
		}
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var out []Tournament
	for rows.Next() {
		t, err := scanTournament(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, *t)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Participants, err = listParticipants(ctx, s.db, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// OccupiedSlots counts participant-filled first-round slots.
func (s *Store) OccupiedSlots(ctx context.Context, tournamentID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, err := tournamentStatus(ctx, s.db, tournamentID); err != nil {
		return 0, err
	}
	return countOccupiedSlots(ctx, s.db, tournamentID)
}

// ListNodes returns the bracket of a tournament ordered by round then position.
func (s *Store) ListNodes(ctx context.Context, tournamentID string) ([]Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listNodes(ctx, s.db, tournamentID)
}

func (s *Store) GetNode(ctx context.Context, nodeID string) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getNode(ctx, s.db, nodeID)
}

// OpenNodes returns every unfinished, decided node of in-progress tournaments.
func (s *Store) OpenNodes(ctx context.Context) ([]Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+nodeColumns+`
		FROM matches m
		JOIN tournaments t ON t.id = m.tournament_id
		WHERE t.status = ? AND m.finished_at IS NULL
			AND (m.left_player_id IS NOT NULL OR m.left_player_name IS NOT NULL)
			AND (m.right_player_id IS NOT NULL OR m.right_player_name IS NOT NULL)
		ORDER BY m.tournament_id, m.round, m.position`, StatusInProgress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNodes(rows)
}

// ListSettledBefore returns ids of completed or cancelled tournaments last updated before cutoff.
func (s *Store) ListSettledBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM tournaments
		WHERE status IN (?, ?) AND updated_at < ?`,
		StatusCompleted, StatusCancelled, cutoff.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const tournamentColumns = `id, name, status, creator_id, creator_name, winner_id, winner_name,
	score_goal, created_at, updated_at, completed_at`

const nodeColumns = `m.id, m.tournament_id, m.round, m.position,
	m.left_player_id, m.left_player_name, m.right_player_id, m.right_player_name,
	m.left_score, m.right_score, m.next_match_id, m.started_at, m.finished_at, m.aborted_at`

func loadTournament(ctx context.Context, q querier, id string) (*Tournament, error) {
	t, err := loadTournamentHeader(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if t.Participants, err = listParticipants(ctx, q, id); err != nil {
		return nil, err
	}
	if t.Nodes, err = listNodes(ctx, q, id); err != nil {
		return nil, err
	}
	return t, nil
}

// loadTournamentHeader loads the tournament row without participants or nodes.
func loadTournamentHeader(ctx context.Context, q querier, id string) (*Tournament, error) {
	row := q.QueryRowContext(ctx, `SELECT `+tournamentColumns+` FROM tournaments WHERE id = ?`, id)
	t, err := scanTournament(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTournamentNotFound
	}
	return t, err
}

func scanTournament(scanner interface{ Scan(...any) error }) (*Tournament, error) {
	var (
		t                    Tournament
		winnerID, winnerName sql.NullString
		createdAt, updatedAt int64
		completedAt          sql.NullInt64
	)
	err := scanner.Scan(&t.ID, &t.Name, &t.Status, &t.Creator.ID, &t.Creator.Name,
		&winnerID, &winnerName, &t.ScoreGoal, &createdAt, &updatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	if winnerName.Valid {
		t.Winner = &game.Player{ID: winnerID.String, Name: winnerName.String}
	}
	t.CreatedAt = time.UnixMilli(createdAt)
	t.UpdatedAt = time.UnixMilli(updatedAt)
	t.CompletedAt = fromMillis(completedAt)
	return &t, nil
}

func listParticipants(ctx context.Context, q querier, tournamentID string) ([]Participant, error) {
	rows, err := q.QueryContext(ctx, `SELECT player_id, player_name, joined_at
		FROM tournament_participants WHERE tournament_id = ? ORDER BY joined_at, player_id`, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Participant
	for rows.Next() {
		var (
			p        Participant
			joinedAt int64
		)
		if err := rows.Scan(&p.PlayerID, &p.PlayerName, &joinedAt); err != nil {
			return nil, err
		}
		p.JoinedAt = time.UnixMilli(joinedAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

func listNodes(ctx context.Context, q querier, tournamentID string) ([]Node, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+nodeColumns+`
		FROM matches m WHERE m.tournament_id = ? ORDER BY m.round, m.position`, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNodes(rows)
}

func getNode(ctx context.Context, q querier, nodeID string) (*Node, error) {
	row := q.QueryRowContext(ctx, `SELECT `+nodeColumns+`
		FROM matches m WHERE m.id = ? AND m.tournament_id IS NOT NULL`, nodeID)
	n, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNodeNotFound
	}
	return n, err
}

func scanNodes(rows *sql.Rows) ([]Node, error) {
	var out []Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

func scanNode(scanner interface{ Scan(...any) error }) (*Node, error) {
	var (
		n                                    Node
		leftID, leftName, rightID, rightName sql.NullString
		nextID                               sql.NullString
		startedAt, finishedAt, abortedAt     sql.NullInt64
	)
	err := scanner.Scan(&n.ID, &n.TournamentID, &n.Round, &n.Position,
		&leftID, &leftName, &rightID, &rightName,
		&n.LeftScore, &n.RightScore, &nextID, &startedAt, &finishedAt, &abortedAt)
	if err != nil {
		return nil, err
	}
	n.Left = Slot{PlayerID: fromNull(leftID), PlayerName: fromNull(leftName)}
	n.Right = Slot{PlayerID: fromNull(rightID), PlayerName: fromNull(rightName)}
	n.NextNodeID = fromNull(nextID)
	n.StartedAt = fromMillis(startedAt)
	n.FinishedAt = fromMillis(finishedAt)
	n.AbortedAt = fromMillis(abortedAt)
	return &n, nil
}

func insertTournament(ctx context.Context, q querier, t *Tournament) error {
	_, err := q.ExecContext(ctx, `INSERT INTO tournaments
		(id, name, status, creator_id, creator_name, score_goal, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Status, t.Creator.ID, t.Creator.Name, t.ScoreGoal,
		t.CreatedAt.UnixMilli(), t.UpdatedAt.UnixMilli())
	return err
}

func insertNode(ctx context.Context, q querier, n Node, now time.Time) error {
	_, err := q.ExecContext(ctx, `INSERT INTO matches
		(id, tournament_id, round, position, left_player_id, left_player_name,
		 right_player_id, right_player_name, next_match_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.TournamentID, n.Round, n.Position,
		n.Left.PlayerID, n.Left.PlayerName, n.Right.PlayerID, n.Right.PlayerName,
		n.NextNodeID, now.UnixMilli())
	return err
}

func insertParticipant(ctx context.Context, q querier, tournamentID string, p game.Player, now time.Time) error {
	_, err := q.ExecContext(ctx, `INSERT INTO tournament_participants
		(tournament_id, player_id, player_name, joined_at) VALUES (?, ?, ?, ?)`,
		tournamentID, p.ID, p.Name, now.UnixMilli())
	return err
}

func deleteParticipant(ctx context.Context, q querier, tournamentID, playerID string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM tournament_participants
		WHERE tournament_id = ? AND player_id = ?`, tournamentID, playerID)
	if err != nil {
		return err
	}
	if err := expectRow(res); err != nil {
		return ErrNotParticipant
	}
	return nil
}

func tournamentStatus(ctx context.Context, q querier, tournamentID string) (Status, error) {
	var st Status
	err := q.QueryRowContext(ctx, `SELECT status FROM tournaments WHERE id = ?`, tournamentID).Scan(&st)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrTournamentNotFound
	}
	return st, err
}

func isParticipant(ctx context.Context, q querier, tournamentID, playerID string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM tournament_participants
		WHERE tournament_id = ? AND player_id = ?)`, tournamentID, playerID).Scan(&exists)
	return exists, err
}

func countParticipants(ctx context.Context, q querier, tournamentID string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM tournament_participants WHERE tournament_id = ?`,
		tournamentID).Scan(&n)
	return n, err
}

// countOccupiedSlots counts participant-filled round-1 slots.
func countOccupiedSlots(ctx context.Context, q querier, tournamentID string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT
		COALESCE(SUM(CASE WHEN left_player_id IS NOT NULL THEN 1 ELSE 0 END), 0) +
		COALESCE(SUM(CASE WHEN right_player_id IS NOT NULL THEN 1 ELSE 0 END), 0)
		FROM matches WHERE tournament_id = ? AND round = 1`, tournamentID).Scan(&n)
	return n, err
}

// fillSlot writes an occupant into an empty slot. Zero affected rows means the
// slot was taken concurrently.
func fillSlot(ctx context.Context, q querier, nodeID string, side game.Side, slot Slot) error {
	col := side.String()
	res, err := q.ExecContext(ctx, `UPDATE matches
		SET `+col+`_player_id = ?, `+col+`_player_name = ?
		WHERE id = ? AND finished_at IS NULL
			AND `+col+`_player_id IS NULL AND `+col+`_player_name IS NULL`,
		slot.PlayerID, slot.PlayerName, nodeID)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// clearPlayerSlots nulls every slot the player occupies in the tournament.
func clearPlayerSlots(ctx context.Context, q querier, tournamentID, playerID string) error {
	for _, col := range []string{"left", "right"} {
		_, err := q.ExecContext(ctx, `UPDATE matches
			SET `+col+`_player_id = NULL, `+col+`_player_name = NULL
			WHERE tournament_id = ? AND `+col+`_player_id = ?`, tournamentID, playerID)
		if err != nil {
			return err
		}
	}
	return nil
}

// backfillAI marks every empty round-1 slot with the AI sentinel.
func backfillAI(ctx context.Context, q querier, tournamentID string) (int64, error) {
	var filled int64
	for _, col := range []string{"left", "right"} {
		res, err := q.ExecContext(ctx, `UPDATE matches SET `+col+`_player_name = ?
			WHERE tournament_id = ? AND round = 1
				AND `+col+`_player_id IS NULL AND `+col+`_player_name IS NULL`,
			game.AIName, tournamentID)
		if err != nil {
			return 0, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		filled += n
	}
	return filled, nil
}

func hasFinalNode(ctx context.Context, q querier, tournamentID string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM matches
		WHERE tournament_id = ? AND round = ? AND next_match_id IS NULL)`,
		tournamentID, FinalRound).Scan(&exists)
	return exists, err
}

// setStatus moves a tournament from one status to another. Zero affected rows is a conflict.
func setStatus(ctx context.Context, q querier, tournamentID string, from, to Status, now time.Time) error {
	res, err := q.ExecContext(ctx, `UPDATE tournaments SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`, to, now.UnixMilli(), tournamentID, from)
	if err != nil {
		return err
	}
	return expectRow(res)
}

func completeTournament(ctx context.Context, q querier, tournamentID string, winner game.Player, now time.Time) error {
	res, err := q.ExecContext(ctx, `UPDATE tournaments
		SET status = ?, winner_id = ?, winner_name = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		StatusCompleted, nullableID(winner.ID), winner.Name, now.UnixMilli(), now.UnixMilli(),
		tournamentID, StatusInProgress)
	if err != nil {
		return err
	}
	return expectRow(res)
}

func touchTournament(ctx context.Context, q querier, tournamentID string, now time.Time) error {
	_, err := q.ExecContext(ctx, `UPDATE tournaments SET updated_at = ? WHERE id = ?`,
		now.UnixMilli(), tournamentID)
	return err
}

// finishNode records the final score. Zero affected rows means the node already finished.
func finishNode(ctx context.Context, q querier, nodeID string, scores game.Scores, aborted bool, now time.Time) error {
	var abortedAt sql.NullInt64
	if aborted {
		abortedAt = sql.NullInt64{Int64: now.UnixMilli(), Valid: true}
	}
	res, err := q.ExecContext(ctx, `UPDATE matches
		SET left_score = ?, right_score = ?, finished_at = ?, aborted_at = ?,
			started_at = COALESCE(started_at, ?)
		WHERE id = ? AND finished_at IS NULL`,
		scores.Left, scores.Right, now.UnixMilli(), abortedAt, now.UnixMilli(), nodeID)
	if err != nil {
		return err
	}
	return expectRow(res)
}

func markStarted(ctx context.Context, q querier, nodeID string, now time.Time) error {
	res, err := q.ExecContext(ctx, `UPDATE matches SET started_at = ?
		WHERE id = ? AND started_at IS NULL AND finished_at IS NULL`, now.UnixMilli(), nodeID)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// childIDs returns the ids of the nodes feeding parentID, lower position first.
func childIDs(ctx context.Context, q querier, parentID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT id FROM matches WHERE next_match_id = ? ORDER BY position`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

func fromNull(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func fromMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64)
	return &t
}

func nullableID(id string) sql.NullString {
	return sql.NullString{String: id, Valid: id != ""}
}
