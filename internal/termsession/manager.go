package termsession

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Partho99/devops-learner/internal/logging"
	"github.com/Partho99/devops-learner/internal/transport"
)

// DefaultIdleTimeout is how long a session may go without activity before
// CleanupIdle closes it.
const DefaultIdleTimeout = 30 * time.Minute

// Manager tracks the live terminal sessions of the service, one per
// connected view.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session // session ID → session

	// Config is the template for new sessions.
	Config Config
	// IdleTimeout is how long a session may be inactive before cleanup.
	// Zero means no automatic cleanup.
	IdleTimeout time.Duration

	logger zerolog.Logger
}

// NewManager creates a manager that builds sessions from cfg.
func NewManager(cfg Config) *Manager {
	return &Manager{
		sessions:    make(map[string]*Session),
		Config:      cfg,
		IdleTimeout: DefaultIdleTimeout,
		logger:      logging.For("session-mgr"),
	}
}

// Create starts and registers a new session.
func (m *Manager) Create(ctx context.Context) *Session {
	s := Start(ctx, m.Config)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.logger.Info().Str("session", s.ID).Str("endpoint", s.Endpoint).Msg("created session")
	return s
}

// Get returns a session by ID.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	return s, nil
}

// List returns summaries of all tracked sessions, oldest first.
func (m *Manager) List() []Info {
	m.mu.RLock()
	result := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		result = append(result, s.Info())
	}
	m.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// CloseSession tears down a session by ID. The session stays listed until
// Remove or CleanupIdle drops it, so its recording remains reachable.
func (m *Manager) CloseSession(id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	if err := s.Close(); err != nil {
		m.logger.Warn().Err(err).Str("session", id).Msg("close session")
	}
	m.logger.Info().Str("session", id).Msg("closed session")
	return nil
}

// Remove drops a session from the manager without closing it.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// CleanupIdle closes sessions that have been inactive longer than
// IdleTimeout and forgets torn-down sessions older than that. It returns the
// number of sessions it closed. Should be called periodically.
func (m *Manager) CleanupIdle() int {
	if m.IdleTimeout <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-m.IdleTimeout)

	m.mu.RLock()
	var idle, stale []*Session
	for _, s := range m.sessions {
		if !s.LastActivity().Before(cutoff) {
			continue
		}
		if isDone(s) {
			stale = append(stale, s)
		} else {
			idle = append(idle, s)
		}
	}
	m.mu.RUnlock()

	for _, s := range idle {
		m.logger.Info().Str("session", s.ID).
			Time("last_activity", s.LastActivity()).Msg("cleaning up idle session")
		s.Close()
	}

	m.mu.Lock()
	for _, s := range append(idle, stale...) {
		delete(m.sessions, s.ID)
	}
	m.mu.Unlock()

	return len(idle)
}

// Count returns the total number of tracked sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// ActiveCount returns the number of sessions with an open connection.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, s := range m.sessions {
		if !isDone(s) && s.State() == transport.StateOpen {
			count++
		}
	}
	return count
}

// Stop closes every session.
func (m *Manager) Stop() {
	m.mu.RLock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.RUnlock()

	for _, s := range all {
		s.Close()
	}
	m.logger.Info().Int("sessions", len(all)).Msg("all sessions closed")
}

func isDone(s *Session) bool {
	select {
	case <-s.Done():
		return true
	default:
		return false
	}
}
