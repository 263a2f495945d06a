package session

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"
	"github.com/mauv0809/ideal-pong/internal/metrics"
)

// Manager is the registry of live sessions. Sessions are removed once their
// completion handler has returned.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	clock    clockwork.Clock
	pub      Publisher
	metrics  metrics.Metrics
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewManager(pub Publisher, m metrics.Metrics, clock clockwork.Clock) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		sessions: make(map[string]*Session),
		clock:    clock,
		pub:      pub,
		metrics:  m,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Create builds and runs a session. Clock and publisher default to the manager's.
func (m *Manager) Create(opts Options) (*Session, error) {
	if opts.Clock == nil {
		opts.Clock = m.clock
	}
	if opts.Publisher == nil {
		opts.Publisher = m.pub
	}
	if opts.Kind == "" {
		opts.Kind = metrics.KindCasual
	}

	m.mu.Lock()
	if _, exists := m.sessions[opts.ID]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, opts.ID)
	}
	if m.ctx.Err() != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("session manager is shut down")
	}
	s, err := New(opts)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.sessions[s.id] = s
	m.wg.Add(1)
	m.mu.Unlock()

	m.metrics.IncSessionsStarted()
	m.metrics.IncActiveSessions()
	s.Run(m.ctx)
	go m.reap(s)

	log.Info("Session created", "session", s.id, "kind", s.kind)
	return s, nil
}

func (m *Manager) reap(s *Session) {
	defer m.wg.Done()
	<-s.Done()

	m.mu.Lock()
	delete(m.sessions, s.id)
	m.mu.Unlock()

	m.metrics.DecActiveSessions()
	if result, ok := s.Result(); ok {
		m.metrics.IncMatchesFinished(s.kind)
		if result.Forfeited {
			m.metrics.IncForfeits()
		}
	}
	log.Debug("Session removed", "session", s.id)
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// List returns the live sessions ordered by id.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// ForPlayer returns the live sessions in which playerID holds a side.
func (m *Manager) ForPlayer(playerID string) []*Session {
	var out []*Session
	for _, s := range m.List() {
		st := s.State()
		if (st.LeftPlayer != nil && st.LeftPlayer.ID == playerID) ||
			(st.RightPlayer != nil && st.RightPlayer.ID == playerID) {
			out = append(out, s)
		}
	}
	return out
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown stops every session without running completion handlers and
// waits for them to be removed, or for ctx to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancel()
	waited := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
