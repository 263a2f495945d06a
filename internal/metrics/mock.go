package metrics

import "sync"

// Mock is a mock implementation of the Metrics interface for testing.
// It is safe for concurrent use.
type Mock struct {
	mu                   sync.Mutex
	sessionsStarted      int
	activeSessions       int
	matchesFinished      map[string]int
	forfeits             int
	aiNodesResolved      int
	cascadeDurations     []float64
	tournamentsCompleted int
	slackNotifSent       int
	slackNotifFailed     int
	startupTime          float64
}

// NewMock creates a new mock instance.
func NewMock() *Mock {
	return &Mock{
		matchesFinished:  make(map[string]int),
		cascadeDurations: make([]float64, 0),
	}
}

func (m *Mock) IncSessionsStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionsStarted++
}

func (m *Mock) IncActiveSessions() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeSessions++
}

func (m *Mock) DecActiveSessions() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeSessions--
}

func (m *Mock) IncMatchesFinished(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matchesFinished[kind]++
}

func (m *Mock) IncForfeits() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forfeits++
}

func (m *Mock) IncAINodesResolved() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aiNodesResolved++
}

func (m *Mock) ObserveCascadeDuration(duration float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cascadeDurations = append(m.cascadeDurations, duration)
}

func (m *Mock) IncTournamentsCompleted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tournamentsCompleted++
}

func (m *Mock) IncSlackNotifSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slackNotifSent++
}

func (m *Mock) IncSlackNotifFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slackNotifFailed++
}

func (m *Mock) SetStartupTime(duration float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startupTime = duration
}

// SessionsStarted returns the number of times IncSessionsStarted was called.
func (m *Mock) SessionsStarted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionsStarted
}

// ActiveSessions returns the current active session gauge.
func (m *Mock) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeSessions
}

// MatchesFinished returns the number of finished matches recorded for kind.
func (m *Mock) MatchesFinished(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matchesFinished[kind]
}

func (m *Mock) Forfeits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.forfeits
}

func (m *Mock) AINodesResolved() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.aiNodesResolved
}

func (m *Mock) TournamentsCompleted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tournamentsCompleted
}

// SlackNotifSent returns the number of times IncSlackNotifSent was called.
func (m *Mock) SlackNotifSent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slackNotifSent
}

// SlackNotifFailed returns the number of times IncSlackNotifFailed was called.
func (m *Mock) SlackNotifFailed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slackNotifFailed
}

// StoreMock is an in-memory MetricsStore for testing.
type StoreMock struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewStoreMock() *StoreMock {
	return &StoreMock{counts: make(map[string]int)}
}

func (m *StoreMock) Increment(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
}

func (m *StoreMock) GetAll() (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(m.counts))
	for k, v := range m.counts {
		out[k] = v
	}
	return out, nil
}

// Count returns the current value of key.
func (m *StoreMock) Count(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key]
}
