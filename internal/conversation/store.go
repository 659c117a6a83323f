// Package conversation holds per-user chat history in memory for the lifetime
// of the process. Histories are keyed by the opaque user identifier supplied
// by the session layer; windowing happens at read time, so appends never
// truncate.
package conversation

import (
	"sync"

	"gold-agent/internal/domain"
)

// Store is a mutex-guarded keyed map of turn sequences. Safe for concurrent
// use across users; per-user appends serialize on the same lock.
type Store struct {
	mu     sync.RWMutex
	byUser map[string][]domain.Turn
}

func NewStore() *Store {
	return &Store{byUser: make(map[string][]domain.Turn)}
}

// Append adds a turn to the user's history, creating the history on first use.
func (s *Store) Append(userID, role, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUser[userID] = append(s.byUser[userID], domain.Turn{Role: role, Text: text})
}

// Window returns a copy of the last n turns in original order. Unknown users
// and n <= 0 yield an empty slice.
func (s *Store) Window(userID string, n int) []domain.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := s.byUser[userID]
	if n <= 0 || len(turns) == 0 {
		return nil
	}
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]domain.Turn, len(turns))
	copy(out, turns)
	return out
}

// Clear empties the user's history. The key survives, so a cleared user is
// indistinguishable from a new one at read time. Idempotent.
func (s *Store) Clear(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUser[userID] = nil
}
