// Package usage reads the current category and transaction counts from the
// budget data store.
package usage

import (
	"context"
	"sync"
)

// Counts is a snapshot of a user's budget data.
type Counts struct {
	Categories   int `json:"categories" validate:"gte=0"`
	Transactions int `json:"transactions" validate:"gte=0"`
}

// Source returns live counts for a user.
type Source interface {
	Counts(ctx context.Context, userID string) (Counts, error)
}

// StaticSource serves counts from memory. Unknown users have zero counts.
type StaticSource struct {
	mu     sync.RWMutex
	counts map[string]Counts
}

// NewStaticSource creates an empty static source.
func NewStaticSource() *StaticSource {
	return &StaticSource{counts: make(map[string]Counts)}
}

// Set stores counts for userID.
func (s *StaticSource) Set(userID string, c Counts) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[userID] = c
}

// Counts implements Source.
func (s *StaticSource) Counts(_ context.Context, userID string) (Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts[userID], nil
}
