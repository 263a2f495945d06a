package metrics

import (
	"testing"

	"github.com/mauv0809/ideal-pong/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) MetricsStore {
	t.Helper()
	db, teardown, err := database.InitDB(":memory:", "", "")
	require.NoError(t, err)
	t.Cleanup(teardown)
	return New(db)
}

func TestIncrementAndGetAll(t *testing.T) {
	store := setupTestDB(t)

	counters, err := store.GetAll()
	require.NoError(t, err)
	assert.Empty(t, counters)

	store.Increment(KeyCasualMatches)
	counters, err = store.GetAll()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{KeyCasualMatches: 1}, counters)

	store.Increment(KeyCasualMatches)
	store.Increment(KeyForfeits)
	counters, err = store.GetAll()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		KeyCasualMatches: 2,
		KeyForfeits:      1,
	}, counters)
}
