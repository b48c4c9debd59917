// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat contains the conversation data model and the state store.
package chat

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/jeranaias/ollachat/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleError     Role = "error"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleError:
		return "Error"
	default:
		return string(r)
	}
}

// =============================================================================
// CONTENT TYPE
// =============================================================================

// Content is a message body: text plus any attached images as data-URI
// strings. Early versions of the client persisted content as a bare string;
// UnmarshalJSON migrates that form on read. The legacy form is never
// written back.
type Content struct {
	Text   string   `json:"text"`
	Images []string `json:"images"`
}

// UnmarshalJSON accepts both the structured form and the legacy bare-string
// form, normalizing the latter to {Text: s, Images: []}.
func (c *Content) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		c.Text = s
		c.Images = []string{}
		return nil
	}

	type plain Content // avoids recursing into UnmarshalJSON
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = Content(p)
	if c.Images == nil {
		c.Images = []string{}
	}
	return nil
}

// HasImages reports whether the content carries image attachments.
func (c Content) HasImages() bool {
	return len(c.Images) > 0
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single entry in a chat transcript.
//
// The ID is the creation timestamp in milliseconds and doubles as the
// display time. User messages are immutable once appended; assistant
// messages are replaced in place (matched by ID) while a generation streams,
// then frozen when the stream ends.
type Message struct {
	ID        int64   `json:"id"`
	Role      Role    `json:"role"`
	Content   Content `json:"content"`
	Cancelled bool    `json:"cancelled,omitempty"`
}

// NewMessage creates a message with a fresh ID.
func NewMessage(role Role, content Content) Message {
	if content.Images == nil {
		content.Images = []string{}
	}
	return Message{
		ID:      NewID(),
		Role:    role,
		Content: content,
	}
}

// NewUserMessage creates a user message with text and optional images.
func NewUserMessage(text string, images []string) Message {
	return NewMessage(RoleUser, Content{Text: text, Images: images})
}

// NewAssistantMessage creates an empty assistant placeholder for streaming.
func NewAssistantMessage() Message {
	return NewMessage(RoleAssistant, Content{Images: []string{}})
}

// NewErrorMessage creates an error-role message with the given text.
func NewErrorMessage(text string) Message {
	return NewMessage(RoleError, Content{Text: text, Images: []string{}})
}

// Time returns the message creation time derived from its ID.
func (m Message) Time() time.Time {
	return time.UnixMilli(m.ID)
}

// Preview returns a single-line, truncated preview of the message text.
func (m Message) Preview(maxLen int) string {
	return util.TruncateRunes(util.CollapseLines(m.Content.Text), maxLen)
}

// IsEmpty reports whether the message has neither text nor images.
func (m Message) IsEmpty() bool {
	return m.Content.Text == "" && len(m.Content.Images) == 0
}

// =============================================================================
// ID GENERATION
// =============================================================================

var (
	idMu   sync.Mutex
	lastID int64
)

// NewID returns a millisecond creation timestamp usable as an ordered
// identifier. IDs are strictly increasing even when generated within the
// same millisecond, which keeps transcript and chat ordering stable.
func NewID() int64 {
	idMu.Lock()
	defer idMu.Unlock()

	id := time.Now().UnixMilli()
	if id <= lastID {
		id = lastID + 1
	}
	lastID = id
	return id
}
