// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the persistent key-value surface for ollachat.
//
// State is persisted as named slices ("chats", "collections", "activeChatId",
// "selectedModel", "settings"), each JSON-encoded. The surface is read once
// at startup and written after every mutation; the in-memory state is always
// authoritative and the persisted copy is a best-effort mirror.
package storage

import (
	"encoding/json"
	"sync"
)

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Store is a durable key-value surface for JSON-encoded state slices.
//
// Get decodes the value for key into v and returns ErrNotFound when the key
// has never been written. A decode error on a corrupt value is returned as-is;
// callers are expected to fail soft and fall back to the slice's default.
type Store interface {
	Get(key string, v any) error
	Set(key string, v any) error
	Delete(key string) error
	Keys() ([]string, error)
	Close() error
}

// ErrNotFound is returned by Get when a key has never been written.
// Use errors.Is(err, ErrNotFound) to check for it.
var ErrNotFound = &StoreError{Message: "key not found"}

// StoreError represents a storage-related error.
type StoreError struct {
	Message string
}

func (e *StoreError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing store errors.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// =============================================================================
// MEMORY STORE
// =============================================================================

// MemoryStore is an in-memory Store. It backs tests and embedders that
// provide their own durability (e.g. a browser host bridging localStorage).
type MemoryStore struct {
	mu     sync.RWMutex
	slices map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slices: make(map[string][]byte)}
}

// Get decodes the value for key into v.
func (s *MemoryStore) Get(key string, v any) error {
	s.mu.RLock()
	data, ok := s.slices[key]
	s.mu.RUnlock()

	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(data, v)
}

// Set encodes v and stores it under key.
func (s *MemoryStore) Set(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.slices[key] = data
	s.mu.Unlock()
	return nil
}

// Delete removes a key. Deleting a missing key is a no-op.
func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	delete(s.slices, key)
	s.mu.Unlock()
	return nil
}

// Keys returns all stored keys.
func (s *MemoryStore) Keys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.slices))
	for k := range s.slices {
		keys = append(keys, k)
	}
	return keys, nil
}

// Close releases nothing for a memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// SetRaw stores a pre-encoded value under key. Used by tests to simulate
// corrupt persisted state.
func (s *MemoryStore) SetRaw(key string, data []byte) {
	s.mu.Lock()
	s.slices[key] = append([]byte(nil), data...)
	s.mu.Unlock()
}
