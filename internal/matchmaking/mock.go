package matchmaking

import (
	"sync"

	"github.com/mauv0809/ideal-pong/internal/ai"
	"github.com/mauv0809/ideal-pong/internal/game"
)

var _ MatchmakingService = &MockService{}

// MockService is a mock implementation of MatchmakingService for testing.
// It is safe for concurrent use.
type MockService struct {
	mu sync.Mutex

	// Spies for method calls
	QueueFunc   func(p game.Player) (*Pairing, error)
	QueueAIFunc func(p game.Player, difficulty ai.Difficulty) (*Pairing, error)
	LeaveFunc   func(playerID string) bool
	WaitingFunc func() int

	// Call records
	QueueCalls   []game.Player
	QueueAICalls []QueueAICall
	LeaveCalls   []string
}

// QueueAICall holds the arguments for a call to QueueAI.
type QueueAICall struct {
	Player     game.Player
	Difficulty ai.Difficulty
}

// NewMock creates a new mock MatchmakingService.
func NewMock() *MockService {
	return &MockService{}
}

func (m *MockService) Queue(p game.Player) (*Pairing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QueueCalls = append(m.QueueCalls, p)
	if m.QueueFunc != nil {
		return m.QueueFunc(p)
	}
	return nil, nil
}

func (m *MockService) QueueAI(p game.Player, difficulty ai.Difficulty) (*Pairing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QueueAICalls = append(m.QueueAICalls, QueueAICall{Player: p, Difficulty: difficulty})
	if m.QueueAIFunc != nil {
		return m.QueueAIFunc(p, difficulty)
	}
	return &Pairing{MatchID: "mock-match", Left: p, Right: game.AIPlayer()}, nil
}

func (m *MockService) Leave(playerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LeaveCalls = append(m.LeaveCalls, playerID)
	if m.LeaveFunc != nil {
		return m.LeaveFunc(playerID)
	}
	return false
}

func (m *MockService) Waiting() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WaitingFunc != nil {
		return m.WaitingFunc()
	}
	return 0
}
