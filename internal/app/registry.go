package app

import "sync"

// sessionRegistry tracks the one active session per (userKey, testID) pair.
type sessionRegistry struct {
	mu       sync.RWMutex
	sessions map[sessionKey]*Session
}

type sessionKey struct {
	userKey string
	testID  string
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[sessionKey]*Session)}
}

func (r *sessionRegistry) get(userKey, testID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[sessionKey{userKey, testID}]
	return session, ok
}

func (r *sessionRegistry) put(userKey, testID string, session *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionKey{userKey, testID}] = session
}

func (r *sessionRegistry) remove(userKey, testID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionKey{userKey, testID})
}
