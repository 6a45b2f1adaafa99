// Package ptyhost implements the host-side remote PTY manager: it owns OS
// processes attached to pseudo-terminals on behalf of remote mobile clients,
// streams their output through a callback, and dispatches input/resize/close
// operations against a session table keyed by session id.
//
// Grounded on the PTY-spawning and lifecycle pattern of a session manager
// that pairs github.com/creack/pty with a persistent per-session reader
// goroutine and an exit-waiter goroutine that removes the session from the
// table on process death.
package ptyhost

import (
	"os"
	"os/exec"
	"sync"

	"github.com/climanger/relay/internal/v1/logging"
	"github.com/climanger/relay/internal/v1/metrics"
	"github.com/creack/pty"
	"go.uber.org/zap"
)

// OutputFunc delivers bytes read from a session's PTY, unchanged, to the
// enclosing host runtime. It must not block: the manager calls it from the
// same goroutine that reads the PTY.
type OutputFunc func(sessionID, mobileID string, data []byte)

// ExitFunc notifies the enclosing host runtime that a session's process has
// exited. Invoked at most once per session, from the session's wait
// goroutine, after the session has already been removed from the table.
// It fires only when the process exits while its session is still in the
// table; sessions ended by CloseSession, CloseSessionsForMobile or CloseAll
// do not trigger it.
type ExitFunc func(sessionID, mobileID string)

// DefaultShell is used when CreateSession is not given an explicit shell.
const DefaultShell = "/bin/sh"

type session struct {
	id       string
	mobileID string
	cmd      *exec.Cmd
	ptmx     *os.File

	closeOnce sync.Once
}

// Manager owns every PTY-backed session on a host. One instance per host
// process. The session table is the only shared structure; it is mutated
// only by the methods below and by the internal exit-waiter goroutine.
type Manager struct {
	onOutput OutputFunc
	onExit   ExitFunc

	mu       sync.Mutex
	sessions map[string]*session
}

// NewManager constructs a Manager that reports PTY output and session exits
// through the given callbacks.
func NewManager(onOutput OutputFunc, onExit ExitFunc) *Manager {
	return &Manager{
		onOutput: onOutput,
		onExit:   onExit,
		sessions: make(map[string]*session),
	}
}

// CreateSession spawns a PTY-backed shell for sessionID/mobileID. Returns
// false if a session with the same id already exists or the OS refuses to
// spawn the process. cwd and shell may be empty; shell defaults to
// DefaultShell.
func (m *Manager) CreateSession(sessionID, mobileID, cwd, shell string, cols, rows uint16) bool {
	if shell == "" {
		shell = DefaultShell
	}

	m.mu.Lock()
	if _, exists := m.sessions[sessionID]; exists {
		m.mu.Unlock()
		return false
	}
	// Reserve the slot before spawning so a concurrent CreateSession for the
	// same id cannot race past this check while pty.Start is in flight.
	m.sessions[sessionID] = nil
	m.mu.Unlock()

	cmd := exec.Command(shell)
	if cwd != "" {
		cmd.Dir = cwd
	}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: cols, Rows: rows})
	if err != nil {
		m.mu.Lock()
		delete(m.sessions, sessionID)
		m.mu.Unlock()
		logging.Error(nil, "failed to start pty session", zap.String("session_id", sessionID), zap.Error(err))
		return false
	}

	s := &session{id: sessionID, mobileID: mobileID, cmd: cmd, ptmx: ptmx}

	m.mu.Lock()
	m.sessions[sessionID] = s
	m.mu.Unlock()

	metrics.ActivePTYSessions.Inc()
	logging.Info(nil, "pty session created", zap.String("session_id", sessionID), zap.String("mobile_id", mobileID))

	go m.readLoop(s)
	go m.waitLoop(s)

	return true
}

// readLoop is the session's single producer of output. It runs until the
// PTY returns an error (process exited or fd closed) and must never block
// on the output callback.
func (m *Manager) readLoop(s *session) {
	buf := make([]byte, 32*1024)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			metrics.PTYBytesRelayed.WithLabelValues("output").Add(float64(n))
			if m.onOutput != nil {
				m.onOutput(s.id, s.mobileID, data)
			}
		}
		if err != nil {
			return
		}
	}
}

// waitLoop blocks for process exit and, if the session is still in the
// table, removes it and invokes the exit callback once.
func (m *Manager) waitLoop(s *session) {
	_ = s.cmd.Wait()
	s.ptmx.Close()

	m.mu.Lock()
	if cur, ok := m.sessions[s.id]; ok && cur == s {
		delete(m.sessions, s.id)
		m.mu.Unlock()
		metrics.ActivePTYSessions.Dec()
		logging.Info(nil, "pty session exited", zap.String("session_id", s.id))
		if m.onExit != nil {
			m.onExit(s.id, s.mobileID)
		}
		return
	}
	m.mu.Unlock()
}

// Write sends raw bytes to the session's PTY input with no interpretation.
// Returns false if the session is unknown.
func (m *Manager) Write(sessionID string, data []byte) bool {
	s := m.get(sessionID)
	if s == nil {
		return false
	}
	n, err := s.ptmx.Write(data)
	if n > 0 {
		metrics.PTYBytesRelayed.WithLabelValues("input").Add(float64(n))
	}
	return err == nil
}

// Resize updates the session's PTY window size synchronously.
// Returns false if the session is unknown.
func (m *Manager) Resize(sessionID string, cols, rows uint16) bool {
	s := m.get(sessionID)
	if s == nil {
		return false
	}
	err := pty.Setsize(s.ptmx, &pty.Winsize{Cols: cols, Rows: rows})
	return err == nil
}

// CloseSession terminates the child process and removes its record.
// Idempotent: returns false if the session is unknown or already closed.
func (m *Manager) CloseSession(sessionID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok || s == nil {
		m.mu.Unlock()
		return false
	}
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	metrics.ActivePTYSessions.Dec()
	s.closeOnce.Do(func() {
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
	})
	return true
}

// CloseSessionsForMobile closes every session owned by mobileID and returns
// the count closed. Called when the relay signals a mobile disconnect.
func (m *Manager) CloseSessionsForMobile(mobileID string) int {
	m.mu.Lock()
	var toClose []*session
	for id, s := range m.sessions {
		if s != nil && s.mobileID == mobileID {
			toClose = append(toClose, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range toClose {
		metrics.ActivePTYSessions.Dec()
		s.closeOnce.Do(func() {
			if s.cmd.Process != nil {
				_ = s.cmd.Process.Kill()
			}
		})
	}
	return len(toClose)
}

// CloseAll terminates every live session. Called on host shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := make([]*session, 0, len(m.sessions))
	for id, s := range m.sessions {
		if s != nil {
			all = append(all, s)
		}
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range all {
		metrics.ActivePTYSessions.Dec()
		s.closeOnce.Do(func() {
			if s.cmd.Process != nil {
				_ = s.cmd.Process.Kill()
			}
		})
	}
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sessions {
		if s != nil {
			n++
		}
	}
	return n
}

func (m *Manager) get(sessionID string) *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[sessionID]
}
