package dispatch

import "sync"

// Session holds the credentials acquired during one plan execution. It is
// passed by reference through CallContext into every dispatch; its lifetime
// is the enclosing plan, not the process.
type Session struct {
	mu    sync.RWMutex
	token string
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{}
}

// SetToken stores a bearer token for subsequent calls.
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Token returns the current bearer token, empty when unauthenticated.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Clear drops the stored credentials.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}
