// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat contains the conversation data model and the state store.
package chat

import (
	"time"

	"github.com/jeranaias/ollachat/util"
)

// =============================================================================
// CHAT TYPE
// =============================================================================

// Chat holds one conversation thread bound to a model.
type Chat struct {
	// ID is the creation timestamp in milliseconds; chats sort by it.
	ID    int64  `json:"id"`
	Title string `json:"title"`

	// Messages is the ordered transcript.
	Messages []Message `json:"messages"`

	// Model is the identifier of the model bound to this chat. It mirrors
	// the last model selected while the chat was active.
	Model string `json:"model"`

	// CollectionID references the containing collection, nil when the chat
	// sits at the root level.
	CollectionID *int64 `json:"collectionId,omitempty"`
}

// CreatedAt returns the chat creation time derived from its ID.
func (c *Chat) CreatedAt() time.Time {
	return time.UnixMilli(c.ID)
}

// Preview returns a short single-line preview from the first user message,
// or the title when the transcript is empty.
func (c *Chat) Preview(maxLen int) string {
	for _, msg := range c.Messages {
		if msg.Role == RoleUser && msg.Content.Text != "" {
			return msg.Preview(maxLen)
		}
	}
	return util.TruncateRunes(c.Title, maxLen)
}

// MessageCount returns the number of messages in the transcript.
func (c *Chat) MessageCount() int {
	return len(c.Messages)
}

// clone returns a copy of the chat with its own message slice.
func (c *Chat) clone() *Chat {
	dup := *c
	dup.Messages = append([]Message(nil), c.Messages...)
	if c.CollectionID != nil {
		id := *c.CollectionID
		dup.CollectionID = &id
	}
	return &dup
}

// =============================================================================
// COLLECTION TYPE
// =============================================================================

// Collection is a named, orderable grouping of chats. Order is the display
// rank among collections and is kept dense (0..N-1).
type Collection struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Order int    `json:"order"`
}

// =============================================================================
// SETTINGS TYPE
// =============================================================================

// Settings holds process-wide UI preferences. Loaded once at startup and
// persisted on every change.
type Settings struct {
	DarkMode              bool   `json:"darkMode"`
	SendOnEnter           bool   `json:"sendOnEnter"`
	ShowTimestamps        bool   `json:"showTimestamps"`
	UserMessageColor      string `json:"userMessageColor"`
	AssistantMessageColor string `json:"assistantMessageColor"`
}

// DefaultSettings returns the settings used when nothing is persisted.
func DefaultSettings() Settings {
	return Settings{
		DarkMode:              true,
		SendOnEnter:           true,
		ShowTimestamps:        true,
		UserMessageColor:      "#4a9eff",
		AssistantMessageColor: "#3a3a3a",
	}
}
