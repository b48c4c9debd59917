// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat contains the conversation data model and the state store.
package chat

import (
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/jeranaias/ollachat/storage"
	"github.com/jeranaias/ollachat/util"
)

// Persisted slice names. These match the web client's localStorage keys so
// state written by either side reads back identically.
const (
	sliceChats         = "chats"
	sliceCollections   = "collections"
	sliceActiveChatID  = "activeChatId"
	sliceSelectedModel = "selectedModel"
	sliceSettings      = "settings"
)

// ErrChatNotFound is returned when an operation names an unknown chat.
var ErrChatNotFound = errors.New("chat not found")

// ErrCollectionNotFound is returned when an operation names an unknown collection.
var ErrCollectionNotFound = errors.New("collection not found")

// =============================================================================
// CONVERSATION STORE
// =============================================================================

// Store owns all conversation state: chats, collections, the active-chat
// pointer, the selected model, and settings.
//
// Every mutation is atomic with respect to the in-memory state and is
// immediately followed by a best-effort persist of the affected slice;
// persistence failures are logged, never surfaced to the mutation caller.
// The in-memory state is authoritative within a session, the persisted copy
// is a mirror read only at startup.
type Store struct {
	mu sync.Mutex
	kv storage.Store

	chats         []*Chat
	collections   []*Collection
	activeChatID  int64 // 0 means no active chat
	selectedModel string
	settings      Settings
}

// Open loads all slices from the key-value surface and returns a ready
// store. A missing or corrupt slice falls back to its default rather than
// failing startup.
func Open(kv storage.Store) *Store {
	s := &Store{
		kv:       kv,
		settings: DefaultSettings(),
	}

	loadSlice(kv, sliceChats, &s.chats)
	loadSlice(kv, sliceCollections, &s.collections)
	loadSlice(kv, sliceActiveChatID, &s.activeChatID)
	loadSlice(kv, sliceSelectedModel, &s.selectedModel)
	loadSlice(kv, sliceSettings, &s.settings)

	// Normalize loaded state: transcripts and image lists must be non-nil,
	// the active pointer must reference an existing chat, and collection
	// order must be dense.
	for _, c := range s.chats {
		if c.Messages == nil {
			c.Messages = []Message{}
		}
	}
	if s.activeChatID != 0 && s.findChat(s.activeChatID) == nil {
		s.activeChatID = 0
	}
	s.sortCollections()
	s.renumberCollections()

	return s
}

// loadSlice reads one slice, leaving the destination untouched on any
// failure. Corrupt persisted state must fail soft (startup never aborts).
func loadSlice(kv storage.Store, key string, v any) {
	if err := kv.Get(key, v); err != nil && !errors.Is(err, storage.ErrNotFound) {
		slog.Warn("discarding corrupt state slice", "slice", key, "error", err)
	}
}

// persist writes one slice, logging failures. Mutation callers never see
// persistence errors.
func (s *Store) persist(key string, v any) {
	if err := s.kv.Set(key, v); err != nil {
		slog.Warn("failed to persist state slice", "slice", key, "error", err)
	}
}

// =============================================================================
// CHAT OPERATIONS
// =============================================================================

// NewChat creates an empty chat bound to the selected model and makes it
// the active chat. Returns a copy of the created chat.
func (s *Store) NewChat() Chat {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := &Chat{
		ID:       NewID(),
		Title:    "New Chat",
		Messages: []Message{},
		Model:    s.selectedModel,
	}
	s.chats = append(s.chats, c)
	s.activeChatID = c.ID

	s.persist(sliceChats, s.chats)
	s.persist(sliceActiveChatID, s.activeChatID)
	return *c.clone()
}

// DeleteChat removes a chat. If it was active, the first remaining chat
// becomes active (or none when no chats remain).
func (s *Store) DeleteChat(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, c := range s.chats {
		if c.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrChatNotFound
	}

	s.chats = append(s.chats[:idx], s.chats[idx+1:]...)
	if s.activeChatID == id {
		if len(s.chats) > 0 {
			s.activeChatID = s.chats[0].ID
		} else {
			s.activeChatID = 0
		}
		s.persist(sliceActiveChatID, s.activeChatID)
	}

	s.persist(sliceChats, s.chats)
	return nil
}

// RenameChat sets a chat's title. Blank input discards the edit.
func (s *Store) RenameChat(id int64, title string) error {
	if util.IsBlank(title) {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.findChat(id)
	if c == nil {
		return ErrChatNotFound
	}
	c.Title = title
	s.persist(sliceChats, s.chats)
	return nil
}

// MoveChat reassigns a chat's collection membership. A nil collectionID
// moves the chat to the root level. Chats carry no per-collection order;
// they render in chat-list order.
func (s *Store) MoveChat(chatID int64, collectionID *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.findChat(chatID)
	if c == nil {
		return ErrChatNotFound
	}
	if collectionID != nil && s.findCollection(*collectionID) == nil {
		return ErrCollectionNotFound
	}

	if collectionID == nil {
		c.CollectionID = nil
	} else {
		id := *collectionID
		c.CollectionID = &id
	}
	s.persist(sliceChats, s.chats)
	return nil
}

// ReplaceMessages replaces a chat's transcript wholesale. Used both for
// clearing a chat and for applying streaming increments.
func (s *Store) ReplaceMessages(chatID int64, messages []Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.findChat(chatID)
	if c == nil {
		return ErrChatNotFound
	}

	c.Messages = append([]Message{}, messages...)
	s.persist(sliceChats, s.chats)
	return nil
}

// SetActive changes the active chat. Passing 0 clears the selection.
func (s *Store) SetActive(chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if chatID != 0 && s.findChat(chatID) == nil {
		return ErrChatNotFound
	}
	s.activeChatID = chatID
	s.persist(sliceActiveChatID, s.activeChatID)
	return nil
}

// =============================================================================
// COLLECTION OPERATIONS
// =============================================================================

// NewCollection appends a collection with the next order index and returns
// a copy of it.
func (s *Store) NewCollection() Collection {
	s.mu.Lock()
	defer s.mu.Unlock()

	col := &Collection{
		ID:    NewID(),
		Name:  "New Collection",
		Order: len(s.collections),
	}
	s.collections = append(s.collections, col)
	s.persist(sliceCollections, s.collections)
	return *col
}

// DeleteCollection detaches member chats (their collection reference is
// cleared, the chats survive) and removes the collection. Remaining
// collections are renumbered to keep order dense.
func (s *Store) DeleteCollection(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, col := range s.collections {
		if col.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrCollectionNotFound
	}

	detached := false
	for _, c := range s.chats {
		if c.CollectionID != nil && *c.CollectionID == id {
			c.CollectionID = nil
			detached = true
		}
	}

	s.collections = append(s.collections[:idx], s.collections[idx+1:]...)
	s.renumberCollections()

	if detached {
		s.persist(sliceChats, s.chats)
	}
	s.persist(sliceCollections, s.collections)
	return nil
}

// RenameCollection sets a collection's name. Blank input discards the edit.
func (s *Store) RenameCollection(id int64, name string) error {
	if util.IsBlank(name) {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	col := s.findCollection(id)
	if col == nil {
		return ErrCollectionNotFound
	}
	col.Name = name
	s.persist(sliceCollections, s.collections)
	return nil
}

// ReorderCollections renumbers every collection's order to match its
// position in the given id sequence. Ids not present in the store are
// skipped; collections absent from the sequence keep their relative order
// after the listed ones.
func (s *Store) ReorderCollections(ids []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rank := make(map[int64]int, len(ids))
	next := 0
	for _, id := range ids {
		if s.findCollection(id) != nil {
			rank[id] = next
			next++
		}
	}
	for _, col := range s.collections {
		if _, listed := rank[col.ID]; !listed {
			rank[col.ID] = next
			next++
		}
	}
	for _, col := range s.collections {
		col.Order = rank[col.ID]
	}

	s.sortCollections()
	s.persist(sliceCollections, s.collections)
}

// =============================================================================
// MODEL AND SETTINGS
// =============================================================================

// SelectModel updates the globally selected model. If a chat is active its
// bound model is rebound to match; this is the single place model changes
// propagate to a chat.
func (s *Store) SelectModel(model string) {
	if model == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.selectedModel = model
	s.persist(sliceSelectedModel, s.selectedModel)

	if s.activeChatID != 0 {
		if c := s.findChat(s.activeChatID); c != nil {
			c.Model = model
			s.persist(sliceChats, s.chats)
		}
	}
}

// UpdateSettings replaces the settings and persists them.
func (s *Store) UpdateSettings(settings Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings = settings
	s.persist(sliceSettings, s.settings)
}

// =============================================================================
// READERS
// =============================================================================

// Chats returns copies of all chats in creation order.
func (s *Store) Chats() []Chat {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Chat, 0, len(s.chats))
	for _, c := range s.chats {
		out = append(out, *c.clone())
	}
	return out
}

// Collections returns copies of all collections sorted by order.
func (s *Store) Collections() []Collection {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Collection, 0, len(s.collections))
	for _, col := range s.collections {
		out = append(out, *col)
	}
	return out
}

// ActiveChatID returns the active chat id, 0 when none.
func (s *Store) ActiveChatID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeChatID
}

// ActiveChat returns a copy of the active chat, or nil when none.
func (s *Store) ActiveChat() *Chat {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeChatID == 0 {
		return nil
	}
	c := s.findChat(s.activeChatID)
	if c == nil {
		return nil
	}
	return c.clone()
}

// Messages returns a copy of a chat's transcript.
func (s *Store) Messages(chatID int64) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.findChat(chatID)
	if c == nil {
		return nil, ErrChatNotFound
	}
	return append([]Message{}, c.Messages...), nil
}

// SelectedModel returns the globally selected model identifier.
func (s *Store) SelectedModel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedModel
}

// Settings returns the current settings.
func (s *Store) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// =============================================================================
// INTERNAL HELPERS (caller holds s.mu)
// =============================================================================

func (s *Store) findChat(id int64) *Chat {
	for _, c := range s.chats {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (s *Store) findCollection(id int64) *Collection {
	for _, col := range s.collections {
		if col.ID == id {
			return col
		}
	}
	return nil
}

func (s *Store) sortCollections() {
	sort.SliceStable(s.collections, func(i, j int) bool {
		return s.collections[i].Order < s.collections[j].Order
	})
}

// renumberCollections keeps order values dense (0..N-1) after deletions or
// loads from older persisted state.
func (s *Store) renumberCollections() {
	for i, col := range s.collections {
		col.Order = i
	}
}
