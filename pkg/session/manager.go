package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pocketbudget/entitlement-engine/pkg/account"
	"github.com/pocketbudget/entitlement-engine/pkg/banner"
	"github.com/pocketbudget/entitlement-engine/pkg/clock"
	"github.com/pocketbudget/entitlement-engine/pkg/metrics"
	"github.com/pocketbudget/entitlement-engine/pkg/store"
	"github.com/pocketbudget/entitlement-engine/pkg/usage"
	"github.com/sirupsen/logrus"
)

// ManagerConfig controls session identity and lifetime.
type ManagerConfig struct {
	// StableBucketing seeds experiments from a persisted installation id
	// instead of the per-load session id.
	StableBucketing bool
	// ResumeSessions rebuilds unknown sessions from the store, keeping their
	// original start time.
	ResumeSessions bool
	// IdleTimeout closes sessions not used for this long. Zero disables sweeping.
	IdleTimeout time.Duration
}

// CreateRequest opens a session.
type CreateRequest struct {
	Account        account.State
	Usage          usage.Counts
	InstallationID string
}

// Manager owns the live sessions of this process.
type Manager struct {
	mu            sync.RWMutex
	sessions      map[string]*Session
	deps          Deps
	store         store.SessionStore
	installations store.InstallationStore
	cfg           ManagerConfig
	newID         func() string
}

// NewManager creates a manager. A nil session store keeps snapshots in memory.
func NewManager(deps Deps, sessions store.SessionStore, installations store.InstallationStore, cfg ManagerConfig) *Manager {
	if sessions == nil {
		sessions = store.NewMemorySessionStore()
	}
	if installations == nil {
		installations = store.NewMemoryInstallationStore(uuid.NewString)
	}
	return &Manager{
		sessions:      make(map[string]*Session),
		deps:          deps.withDefaults(),
		store:         sessions,
		installations: installations,
		cfg:           cfg,
		newID:         uuid.NewString,
	}
}

// Create opens a new session with a fresh id.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*Session, error) {
	id := m.newID()
	seed := id
	if m.cfg.StableBucketing && req.InstallationID != "" {
		resolved, err := m.installations.Resolve(ctx, req.InstallationID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve installation seed: %w", err)
		}
		seed = resolved
	}

	s := New(ctx, id, seed, m.deps, req)

	m.mu.Lock()
	m.sessions[id] = s
	count := len(m.sessions)
	m.mu.Unlock()
	metrics.ActiveSessions.Set(float64(count))

	m.Save(ctx, s)
	logrus.Infof("created session %s (class=%s)", id, req.Account.Class())
	return s, nil
}

// Get returns a live session, resuming it from the store when enabled.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return s, nil
	}
	if !m.cfg.ResumeSessions {
		return nil, ErrSessionNotFound
	}

	rec, err := m.store.Load(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	s = m.resume(ctx, rec)
	m.sessions[id] = s
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	logrus.Infof("resumed session %s started at %s", id, rec.StartedAt.Format(time.RFC3339))
	return s, nil
}

func (m *Manager) resume(ctx context.Context, rec *store.SessionRecord) *Session {
	s := newSession(rec.ID, rec.Seed, rec.InstallationID, rec.StartedAt, m.deps)
	s.usage = rec.Usage
	s.restrictionHits = rec.RestrictionHits
	s.dismissed = banner.NewDismissals(rec.Dismissed...)
	s.experiments.Restore(rec.Assignments)
	s.experiments.Initialize(ctx)
	s.UpdateAccount(ctx, rec.Account)
	if rec.Engagement.Active {
		s.tracker.Restore(rec.Engagement)
	}
	return s
}

// Save persists a session snapshot. Failures are logged, never returned.
func (m *Manager) Save(ctx context.Context, s *Session) {
	if err := m.store.Save(ctx, s.Record()); err != nil {
		logrus.Warnf("failed to persist session %s: %v", s.ID(), err)
	}
}

// Close stops a session and removes it from the manager and the store.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	count := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	metrics.ActiveSessions.Set(float64(count))

	if err := m.store.Delete(ctx, id); err != nil {
		logrus.Warnf("failed to delete session %s: %v", id, err)
	}
	logrus.Infof("closed session %s", id)
	return nil
}

// Sweep closes sessions idle for longer than the idle timeout. Their
// snapshots stay in the store so they can be resumed.
func (m *Manager) Sweep(ctx context.Context) int {
	if m.cfg.IdleTimeout <= 0 {
		return 0
	}
	cutoff := m.deps.Clock.Now().Add(-m.cfg.IdleTimeout)

	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.LastSeen().Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	count := len(m.sessions)
	m.mu.Unlock()

	for _, s := range idle {
		m.Save(ctx, s)
		s.Close()
	}
	if len(idle) > 0 {
		metrics.ActiveSessions.Set(float64(count))
		logrus.Infof("swept %d idle sessions", len(idle))
	}
	return len(idle)
}

// StartSweeper runs Sweep on interval until the returned Stopper is stopped.
func (m *Manager) StartSweeper(interval time.Duration) clock.Stopper {
	return m.deps.Clock.Every(interval, func() {
		m.Sweep(context.Background())
	})
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown persists and closes every live session.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		m.Save(ctx, s)
		s.Close()
	}
	metrics.ActiveSessions.Set(0)
	logrus.Infof("closed %d sessions on shutdown", len(sessions))
}
