package mockgen

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/crmkit/genwatch/internal/common/cnst"
	"github.com/crmkit/genwatch/internal/common/dto"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// sessionState tracks one watcher session and its generation job.
type sessionState struct {
	conn       *websocket.Conn
	writeMu    sync.Mutex
	active     bool
	paused     bool
	pauseStart time.Time
}

// Manager keys connections and generation jobs by session identifier. A
// session that loses its connection mid-job is paused rather than aborted;
// it resumes when any tab with the same session identifier reattaches, and
// is aborted once the pause outlives the grace period.
type Manager struct {
	logger     *zap.Logger
	pauseGrace time.Duration

	mu       sync.Mutex
	sessions map[string]*sessionState
}

// NewManager creates an empty session manager.
func NewManager(logger *zap.Logger, pauseGrace time.Duration) *Manager {
	return &Manager{
		logger:     logger.Named("mockgen.manager"),
		pauseGrace: pauseGrace,
		sessions:   make(map[string]*sessionState),
	}
}

// Attach binds a connection to a session, creating the session on first
// contact and resuming a paused job on reattach.
func (m *Manager) Attach(sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		s = &sessionState{}
		m.sessions[sessionID] = s
	}
	if s.conn != nil && s.conn != conn {
		_ = s.conn.Close()
	}
	s.conn = conn
	if s.active && s.paused {
		s.paused = false
		s.pauseStart = time.Time{}
		m.logger.Info("generation resumed",
			zap.String("session", shortID(sessionID)))
	}
}

// Detach drops a session's connection. An active job is paused, not killed.
func (m *Manager) Detach(sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok || (conn != nil && s.conn != conn) {
		return
	}
	s.conn = nil
	if s.active {
		s.paused = true
		s.pauseStart = time.Now()
		m.logger.Info("connection lost, generation paused",
			zap.String("session", shortID(sessionID)))
	} else {
		delete(m.sessions, sessionID)
	}
}

// Exists reports whether the session is known.
func (m *Manager) Exists(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[sessionID]
	return ok
}

// Status returns the generation status for a session.
func (m *Manager) Status(sessionID string) (dto.GenerationStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return dto.GenerationStatus{}, false
	}
	return dto.GenerationStatus{
		GenerationActive: s.active,
		GenerationPaused: s.paused,
	}, true
}

// StartGeneration marks the session's job active.
func (m *Manager) StartGeneration(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return cnst.ErrSessionNotFound
	}
	if s.active {
		return cnst.ErrGenerationActive
	}
	s.active = true
	s.paused = false
	s.pauseStart = time.Time{}
	return nil
}

// FinishGeneration clears the session's job flags.
func (m *Manager) FinishGeneration(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		s.active = false
		s.paused = false
		s.pauseStart = time.Time{}
	}
}

// ShouldAbort reports whether a running job has lost its session for good:
// the session is gone, or its pause outlived the grace period.
func (m *Manager) ShouldAbort(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return true
	}
	if s.active && s.paused && !s.pauseStart.IsZero() {
		return time.Since(s.pauseStart) > m.pauseGrace
	}
	return false
}

// WaitResume blocks while the session's job is paused.
func (m *Manager) WaitResume(ctx context.Context, sessionID string) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		m.mu.Lock()
		s, ok := m.sessions[sessionID]
		paused := ok && s.active && s.paused
		m.mu.Unlock()
		if !paused {
			return nil
		}
		if m.ShouldAbort(sessionID) {
			return cnst.ErrSessionNotFound
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Send delivers one event to the session's connection, if any.
func (m *Manager) Send(sessionID string, event *dto.Event) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok || s.conn == nil {
		return cnst.ErrSessionNotFound
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		m.logger.Warn("failed to send event",
			zap.String("session", shortID(sessionID)),
			zap.String("type", event.Type),
			zap.Error(err))
		return err
	}
	return nil
}

// SendText delivers a literal text frame (heartbeat replies).
func (m *Manager) SendText(sessionID string, text string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok || s.conn == nil {
		return cnst.ErrSessionNotFound
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

// Info summarizes the manager for the session-info endpoint.
func (m *Manager) Info() (sessions int, connected int, activeJobs int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		sessions++
		if s.conn != nil {
			connected++
		}
		if s.active {
			activeJobs++
		}
	}
	return
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
