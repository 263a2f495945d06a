package notifier

import (
	"sync"

	"github.com/mauv0809/ideal-pong/internal/bracket"
	"github.com/mauv0809/ideal-pong/internal/players"
)

// Mock is a mock implementation of the Notifier interface for testing.
// It is safe for concurrent use.
type Mock struct {
	mu sync.Mutex

	// Call records
	SendChampionAnnouncementCalls []*bracket.Tournament
	SendStalledNodesAlertCalls    [][]bracket.Node
	SendTieAlertCalls             []bracket.Node
	SendLeaderboardCalls          [][]players.PlayerStats

	// Spies
	SendChampionAnnouncementFunc func(t *bracket.Tournament, dryRun bool) error
	SendStalledNodesAlertFunc    func(nodes []bracket.Node, dryRun bool) error
}

// NewMock creates a new mock instance.
func NewMock() *Mock {
	return &Mock{}
}

// Reset clears all call records.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendChampionAnnouncementCalls = nil
	m.SendStalledNodesAlertCalls = nil
	m.SendTieAlertCalls = nil
	m.SendLeaderboardCalls = nil
}

func (m *Mock) SendChampionAnnouncement(t *bracket.Tournament, dryRun bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendChampionAnnouncementCalls = append(m.SendChampionAnnouncementCalls, t)
	if m.SendChampionAnnouncementFunc != nil {
		return m.SendChampionAnnouncementFunc(t, dryRun)
	}
	return nil
}

func (m *Mock) SendStalledNodesAlert(nodes []bracket.Node, dryRun bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendStalledNodesAlertCalls = append(m.SendStalledNodesAlertCalls, nodes)
	if m.SendStalledNodesAlertFunc != nil {
		return m.SendStalledNodesAlertFunc(nodes, dryRun)
	}
	return nil
}

func (m *Mock) SendTieAlert(node bracket.Node, dryRun bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendTieAlertCalls = append(m.SendTieAlertCalls, node)
	return nil
}

func (m *Mock) SendLeaderboard(stats []players.PlayerStats, dryRun bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendLeaderboardCalls = append(m.SendLeaderboardCalls, stats)
	return nil
}

// Champions returns a copy of the recorded champion announcements.
func (m *Mock) Champions() []*bracket.Tournament {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*bracket.Tournament(nil), m.SendChampionAnnouncementCalls...)
}

// StalledAlerts returns a copy of the recorded stalled-node alerts.
func (m *Mock) StalledAlerts() [][]bracket.Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]bracket.Node(nil), m.SendStalledNodesAlertCalls...)
}

// TieAlerts returns a copy of the recorded tie alerts.
func (m *Mock) TieAlerts() []bracket.Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]bracket.Node(nil), m.SendTieAlertCalls...)
}

func (m *Mock) Leaderboards() [][]players.PlayerStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]players.PlayerStats(nil), m.SendLeaderboardCalls...)
}
