package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDB_CreatesTables(t *testing.T) {
	db, teardown, err := InitDB(":memory:", "", "")
	require.NoError(t, err, "InitDB should not return an error")
	defer teardown()

	for _, table := range []string{"players", "player_stats", "metrics", "tournaments", "tournament_participants", "matches"} {
		var name string
		err = db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, "Querying for %s table should not produce an error", table)
		assert.Equal(t, table, name)
	}
}

func TestInitDB_EnforcesForeignKeys(t *testing.T) {
	db, teardown, err := InitDB(":memory:", "", "")
	require.NoError(t, err)
	defer teardown()

	_, err = db.Exec(`INSERT INTO player_stats (player_id) VALUES ('ghost')`)
	assert.Error(t, err, "stats for an unknown player must be rejected")
}

func TestInitDB_UniqueBracketSlot(t *testing.T) {
	db, teardown, err := InitDB(":memory:", "", "")
	require.NoError(t, err)
	defer teardown()

	_, err = db.Exec(`INSERT INTO tournaments (id, name, creator_id, creator_name, score_goal, created_at, updated_at)
		VALUES ('t1', 'cup', 'p1', 'One', 5, 0, 0)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO matches (id, tournament_id, round, position, created_at) VALUES ('m1', 't1', 1, 0, 0)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO matches (id, tournament_id, round, position, created_at) VALUES ('m2', 't1', 1, 0, 0)`)
	assert.Error(t, err)

	// Casual matches carry no bracket coordinates and never collide.
	_, err = db.Exec(`INSERT INTO matches (id, created_at) VALUES ('c1', 0)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO matches (id, created_at) VALUES ('c2', 0)`)
	assert.NoError(t, err)
}
