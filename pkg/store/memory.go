// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package store

import (
	"context"
	"encoding/json"
	"sync"
)

// MemorySessionStore keeps session snapshots in process memory.
// It is used when Redis is disabled and in tests.
type MemorySessionStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemorySessionStore creates an empty in-memory store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{records: make(map[string][]byte)}
}

// Load implements SessionStore.
func (m *MemorySessionStore) Load(_ context.Context, id string) (*SessionRecord, error) {
	m.mu.RLock()
	data, ok := m.records[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	var rec SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Save implements SessionStore. Records are stored as JSON so callers never
// share memory with the store.
func (m *MemorySessionStore) Save(_ context.Context, rec *SessionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = data
	return nil
}

// Delete implements SessionStore.
func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

// MemoryInstallationStore keeps installation seeds in process memory.
type MemoryInstallationStore struct {
	mu      sync.Mutex
	seeds   map[string]string
	newSeed func() string
}

// NewMemoryInstallationStore creates an empty in-memory installation store.
func NewMemoryInstallationStore(newSeed func() string) *MemoryInstallationStore {
	return &MemoryInstallationStore{seeds: make(map[string]string), newSeed: newSeed}
}

// Resolve implements InstallationStore.
func (m *MemoryInstallationStore) Resolve(_ context.Context, installationID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seed, ok := m.seeds[installationID]; ok {
		return seed, nil
	}
	seed := m.newSeed()
	m.seeds[installationID] = seed
	return seed, nil
}
