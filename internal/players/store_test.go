package players_test

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/mauv0809/ideal-pong/internal/database"
	"github.com/mauv0809/ideal-pong/internal/game"
	"github.com/mauv0809/ideal-pong/internal/players"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = game.Player{ID: "p1", Name: "Alice"}
	bob   = game.Player{ID: "p2", Name: "Bob"}
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) (players.PlayerStore, *sql.DB) {
	t.Helper()

	db, teardown, err := database.InitDB(":memory:", "", "")
	require.NoError(t, err)
	t.Cleanup(teardown)

	return players.New(db), db
}

func record(id string, left, right game.Player, ls, rs int) players.MatchRecord {
	now := time.UnixMilli(1_700_000_000_000)
	return players.MatchRecord{
		ID: id, Left: left, Right: right, LeftScore: ls, RightScore: rs,
		StartedAt: now, FinishedAt: now.Add(time.Minute),
	}
}

func TestUpsertAndListPlayers(t *testing.T) {
	store, _ := setupTestDB(t)

	require.NoError(t, store.UpsertPlayer(alice))
	require.NoError(t, store.UpsertPlayer(game.Player{ID: "p1", Name: "Alice Renamed"}))
	require.NoError(t, store.UpsertPlayer(game.AIPlayer()))

	assert.True(t, store.IsKnownPlayer("p1"))
	assert.False(t, store.IsKnownPlayer("p2"))

	all, err := store.GetAllPlayers()
	require.NoError(t, err)
	require.Len(t, all, 1, "the AI identity is never stored")
	assert.Equal(t, "Alice Renamed", all[0].Name)
}

func TestRecordCasualMatchUpdatesStats(t *testing.T) {
	store, db := setupTestDB(t)

	require.NoError(t, store.RecordCasualMatch(record("m1", alice, bob, 5, 3)))
	later := record("m2", bob, alice, 5, 1)
	later.FinishedAt = later.FinishedAt.Add(time.Hour)
	require.NoError(t, store.RecordCasualMatch(later))

	a, err := store.GetPlayerStatsByID("p1")
	require.NoError(t, err)
	assert.Equal(t, 2, a.MatchesPlayed)
	assert.Equal(t, 1, a.MatchesWon)
	assert.Equal(t, 1, a.MatchesLost)
	assert.Equal(t, 6, a.PointsScored)
	assert.Equal(t, 8, a.PointsConceded)
	assert.Equal(t, 50.0, a.WinPercentage)

	var tournamentID sql.NullString
	require.NoError(t, db.QueryRow("SELECT tournament_id FROM matches WHERE id = 'm1'").Scan(&tournamentID))
	assert.False(t, tournamentID.Valid)

	history, err := store.GetMatchHistory("p1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "m2", history[0].ID, "newest first")
	assert.Equal(t, bob, history[0].Left)
	assert.Equal(t, 5, history[0].LeftScore)
}

func TestStatsSkipAIAndTies(t *testing.T) {
	store, _ := setupTestDB(t)

	require.NoError(t, store.RecordCasualMatch(record("m1", alice, game.AIPlayer(), 2, 5)))
	require.NoError(t, store.UpdatePlayerStats(record("m2", alice, bob, 3, 3)))

	a, err := store.GetPlayerStatsByID("p1")
	require.NoError(t, err)
	assert.Equal(t, 1, a.MatchesPlayed)
	assert.Equal(t, 1, a.MatchesLost)

	_, err = store.GetPlayerStatsByID("p2")
	assert.True(t, errors.Is(err, players.ErrPlayerNotFound), "a tie records nothing")

	history, err := store.GetMatchHistory("p1", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Right.IsAI())
	assert.Equal(t, game.AIName, history[0].Right.Name)
}

func TestLeaderboardOrdering(t *testing.T) {
	store, _ := setupTestDB(t)

	require.NoError(t, store.UpdatePlayerStats(record("m1", alice, bob, 5, 0)))
	require.NoError(t, store.UpdatePlayerStats(record("m2", alice, bob, 5, 4)))
	require.NoError(t, store.IncrementTournamentsWon(bob))
	require.NoError(t, store.IncrementTournamentsWon(game.AIPlayer()))

	board, err := store.GetPlayerStats()
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "p2", board[0].PlayerID, "tournament titles rank first")
	assert.Equal(t, 1, board[0].TournamentsWon)
	assert.Equal(t, "p1", board[1].PlayerID)
	assert.Equal(t, 2, board[1].MatchesWon)
}

func TestForfeitIsRecorded(t *testing.T) {
	store, _ := setupTestDB(t)
	rec := record("m1", alice, bob, 0, 5)
	rec.Forfeited = true
	require.NoError(t, store.RecordCasualMatch(rec))

	history, err := store.GetMatchHistory("p2", 5)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Forfeited)
}

func TestClear(t *testing.T) {
	store, _ := setupTestDB(t)
	require.NoError(t, store.RecordCasualMatch(record("m1", alice, bob, 5, 3)))

	store.Clear()

	all, err := store.GetAllPlayers()
	require.NoError(t, err)
	assert.Empty(t, all)
	board, err := store.GetPlayerStats()
	require.NoError(t, err)
	assert.Empty(t, board)
}
