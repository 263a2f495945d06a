package players

import (
	"sync"

	"github.com/mauv0809/ideal-pong/internal/game"
)

// MockStore is a mock implementation of the PlayerStore interface for testing.
// It is safe for concurrent use.
type MockStore struct {
	mu sync.Mutex

	// Spies for method calls
	UpsertPlayerFunc            func(p game.Player) error
	IsKnownPlayerFunc           func(playerID string) bool
	GetAllPlayersFunc           func() ([]PlayerInfo, error)
	RecordCasualMatchFunc       func(rec MatchRecord) error
	UpdatePlayerStatsFunc       func(rec MatchRecord) error
	IncrementTournamentsWonFunc func(p game.Player) error
	GetPlayerStatsFunc          func() ([]PlayerStats, error)
	GetPlayerStatsByIDFunc      func(playerID string) (*PlayerStats, error)
	GetMatchHistoryFunc         func(playerID string, limit int) ([]MatchRecord, error)

	// Call records
	UpsertPlayerCalls            []game.Player
	RecordCasualMatchCalls       []MatchRecord
	UpdatePlayerStatsCalls       []MatchRecord
	IncrementTournamentsWonCalls []game.Player
	ClearCalled                  bool
}

// NewMock creates a new mock instance.
func NewMock() *MockStore {
	return &MockStore{}
}

func (m *MockStore) UpsertPlayer(p game.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertPlayerCalls = append(m.UpsertPlayerCalls, p)
	if m.UpsertPlayerFunc != nil {
		return m.UpsertPlayerFunc(p)
	}
	return nil
}

func (m *MockStore) IsKnownPlayer(playerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.IsKnownPlayerFunc != nil {
		return m.IsKnownPlayerFunc(playerID)
	}
	return false
}

func (m *MockStore) GetAllPlayers() ([]PlayerInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetAllPlayersFunc != nil {
		return m.GetAllPlayersFunc()
	}
	return nil, nil
}

func (m *MockStore) RecordCasualMatch(rec MatchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RecordCasualMatchCalls = append(m.RecordCasualMatchCalls, rec)
	if m.RecordCasualMatchFunc != nil {
		return m.RecordCasualMatchFunc(rec)
	}
	return nil
}

func (m *MockStore) UpdatePlayerStats(rec MatchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdatePlayerStatsCalls = append(m.UpdatePlayerStatsCalls, rec)
	if m.UpdatePlayerStatsFunc != nil {
		return m.UpdatePlayerStatsFunc(rec)
	}
	return nil
}

func (m *MockStore) IncrementTournamentsWon(p game.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.IncrementTournamentsWonCalls = append(m.IncrementTournamentsWonCalls, p)
	if m.IncrementTournamentsWonFunc != nil {
		return m.IncrementTournamentsWonFunc(p)
	}
	return nil
}

func (m *MockStore) GetPlayerStats() ([]PlayerStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetPlayerStatsFunc != nil {
		return m.GetPlayerStatsFunc()
	}
	return nil, nil
}

func (m *MockStore) GetPlayerStatsByID(playerID string) (*PlayerStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetPlayerStatsByIDFunc != nil {
		return m.GetPlayerStatsByIDFunc(playerID)
	}
	return nil, ErrPlayerNotFound
}

func (m *MockStore) GetMatchHistory(playerID string, limit int) ([]MatchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetMatchHistoryFunc != nil {
		return m.GetMatchHistoryFunc(playerID, limit)
	}
	return nil, nil
}

func (m *MockStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ClearCalled = true
}

// Snapshot returns copies of the recorded stats and tournament calls.
func (m *MockStore) Snapshot() (stats []MatchRecord, casual []MatchRecord, titles []game.Player) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MatchRecord(nil), m.UpdatePlayerStatsCalls...),
		append([]MatchRecord(nil), m.RecordCasualMatchCalls...),
		append([]game.Player(nil), m.IncrementTournamentsWonCalls...)
}
