package memory

import (
	"context"
	"sync"

	"cbt-exam-service/internal/domain"
)

// AttemptStore is an in-memory implementation of app.AttemptStore. It backs
// tests and the no-Redis deployment mode; state lives for the process only.
type AttemptStore struct {
	mu       sync.RWMutex
	attempts map[attemptKey]*attempt
}

type attemptKey struct {
	userKey string
	testID  string
}

type attempt struct {
	answers map[string]int
	flags   []string
	result  *domain.ResultRecord
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{attempts: make(map[attemptKey]*attempt)}
}

func (s *AttemptStore) LoadAnswers(_ context.Context, userKey, testID string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.attempts[attemptKey{userKey, testID}]
	if !ok || entry.answers == nil {
		return map[string]int{}, nil
	}
	out := make(map[string]int, len(entry.answers))
	for id, idx := range entry.answers {
		out[id] = idx
	}
	return out, nil
}

func (s *AttemptStore) SaveAnswers(_ context.Context, userKey, testID string, answers map[string]int) error {
	copied := make(map[string]int, len(answers))
	for id, idx := range answers {
		copied[id] = idx
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreateLocked(userKey, testID).answers = copied
	return nil
}

func (s *AttemptStore) LoadFlags(_ context.Context, userKey, testID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.attempts[attemptKey{userKey, testID}]
	if !ok || len(entry.flags) == 0 {
		return nil, nil
	}
	return append([]string(nil), entry.flags...), nil
}

func (s *AttemptStore) SaveFlags(_ context.Context, userKey, testID string, flags []string) error {
	copied := append([]string(nil), flags...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreateLocked(userKey, testID).flags = copied
	return nil
}

func (s *AttemptStore) LoadResult(_ context.Context, userKey, testID string) (domain.ResultRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.attempts[attemptKey{userKey, testID}]
	if !ok || entry.result == nil {
		return domain.ResultRecord{}, false, nil
	}
	return *entry.result, true, nil
}

func (s *AttemptStore) SaveResult(_ context.Context, userKey, testID string, record domain.ResultRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreateLocked(userKey, testID).result = &record
	return nil
}

// ClearAttempt drops answers, flags, and result in one step.
func (s *AttemptStore) ClearAttempt(_ context.Context, userKey, testID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, attemptKey{userKey, testID})
	return nil
}

func (s *AttemptStore) getOrCreateLocked(userKey, testID string) *attempt {
	key := attemptKey{userKey, testID}
	entry, ok := s.attempts[key]
	if !ok {
		entry = &attempt{}
		s.attempts[key] = entry
	}
	return entry
}
