// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package orchestrator drives generation sessions against the active chat:
// it appends the user's message, streams the assistant's reply into a
// placeholder, and settles the transcript when the stream terminates.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/jeranaias/ollachat/chat"
	"github.com/jeranaias/ollachat/ollama"
)

// failedResponseText is the user-facing entry appended when a generation
// fails for any reason other than cancellation.
const failedResponseText = "Failed to get response from Ollama"

var (
	// ErrStreaming is returned by Submit while a session is in flight.
	ErrStreaming = errors.New("a generation is already streaming")

	// ErrNoActiveChat is returned by Submit when no chat is selected.
	ErrNoActiveChat = errors.New("no active chat")

	// ErrEmptyMessage is returned by Submit for a blank message with no images.
	ErrEmptyMessage = errors.New("message is empty")
)

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator runs at most one generation session at a time. All state
// mutations flow through the conversation store; callers observe progress
// by re-reading the active chat's transcript.
type Orchestrator struct {
	store  *chat.Store
	client *ollama.Client

	mu        sync.Mutex
	streaming bool
	handle    *ollama.Handle

	// contexts holds per-chat token context carried between generate
	// calls so the model sees the conversation so far. In-memory only.
	contexts map[int64][]int
}

// New creates an orchestrator bound to a store and client.
func New(store *chat.Store, client *ollama.Client) *Orchestrator {
	return &Orchestrator{
		store:    store,
		client:   client,
		contexts: make(map[int64][]int),
	}
}

// IsStreaming reports whether a session is currently in flight.
func (o *Orchestrator) IsStreaming() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.streaming
}

// Cancel aborts the in-flight session, if any. The transcript settles via
// the session's cancellation path; calling with nothing in flight is a
// no-op.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	h := o.handle
	o.mu.Unlock()

	if h != nil {
		h.Cancel()
	}
}

// Wait blocks until the in-flight session (if any) has fully settled.
func (o *Orchestrator) Wait() {
	o.mu.Lock()
	h := o.handle
	o.mu.Unlock()

	if h != nil {
		h.Wait()
	}
}

// =============================================================================
// SUBMIT
// =============================================================================

// Submit sends the user's message on the active chat and starts streaming
// the reply. It returns as soon as the session is started; progress lands
// in the store. Only one session may be in flight at a time.
func (o *Orchestrator) Submit(ctx context.Context, text string, images []string) error {
	if text == "" && len(images) == 0 {
		return ErrEmptyMessage
	}

	active := o.store.ActiveChat()
	if active == nil {
		return ErrNoActiveChat
	}
	chatID := active.ID

	o.mu.Lock()
	if o.streaming {
		o.mu.Unlock()
		return ErrStreaming
	}
	o.streaming = true
	o.mu.Unlock()

	// Append the user message and an empty assistant placeholder the
	// stream will fill in.
	userMsg := chat.NewUserMessage(text, images)
	placeholder := chat.NewAssistantMessage()

	transcript := append(active.Messages, userMsg, placeholder)
	if err := o.store.ReplaceMessages(chatID, transcript); err != nil {
		o.clearStreaming()
		return err
	}

	o.mu.Lock()
	tokenContext := o.contexts[chatID]
	o.mu.Unlock()

	req := ollama.GenerateRequest{
		Model:   active.Model,
		Prompt:  text,
		Images:  images,
		Context: tokenContext,
	}

	h := o.client.Generate(ctx, req, ollama.Callbacks{
		OnIncrement: func(accumulated string) {
			o.updatePlaceholder(chatID, placeholder.ID, func(m *chat.Message) {
				m.Content.Text = accumulated
			})
		},
		OnDone: func(full string, newContext []int) {
			o.updatePlaceholder(chatID, placeholder.ID, func(m *chat.Message) {
				m.Content.Text = full
			})
			if newContext != nil {
				o.mu.Lock()
				o.contexts[chatID] = newContext
				o.mu.Unlock()
			}
			o.clearStreaming()
		},
		OnCancelled: func(partial string) {
			o.updatePlaceholder(chatID, placeholder.ID, func(m *chat.Message) {
				m.Content.Text = partial
				m.Cancelled = true
			})
			o.clearStreaming()
		},
		OnError: func(message string) {
			// The placeholder keeps whatever text streamed before the
			// failure; the failure itself is a separate transcript entry.
			slog.Warn("generation failed", "chat", chatID, "error", message)
			o.appendMessage(chatID, chat.NewErrorMessage(failedResponseText))
			o.clearStreaming()
		},
	})

	o.mu.Lock()
	o.handle = h
	o.mu.Unlock()

	slog.Debug("generation started", "chat", chatID, "session", h.ID, "model", req.Model)
	return nil
}

// ResetContext drops the in-memory token context for a chat, so the next
// generation starts a fresh conversation with the model.
func (o *Orchestrator) ResetContext(chatID int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.contexts, chatID)
}

// =============================================================================
// TRANSCRIPT UPDATES
// =============================================================================

// updatePlaceholder applies fn to the message with the given ID and writes
// the transcript back. The chat or the message may have been deleted
// mid-stream; both cases drop the update silently.
func (o *Orchestrator) updatePlaceholder(chatID, msgID int64, fn func(*chat.Message)) {
	msgs, err := o.store.Messages(chatID)
	if err != nil {
		return
	}
	for i := range msgs {
		if msgs[i].ID == msgID {
			fn(&msgs[i])
			if err := o.store.ReplaceMessages(chatID, msgs); err != nil {
				slog.Warn("failed to apply stream update", "chat", chatID, "error", err)
			}
			return
		}
	}
}

// appendMessage appends one message to a chat's transcript.
func (o *Orchestrator) appendMessage(chatID int64, msg chat.Message) {
	msgs, err := o.store.Messages(chatID)
	if err != nil {
		return
	}
	if err := o.store.ReplaceMessages(chatID, append(msgs, msg)); err != nil {
		slog.Warn("failed to append message", "chat", chatID, "error", err)
	}
}

func (o *Orchestrator) clearStreaming() {
	o.mu.Lock()
	o.streaming = false
	o.handle = nil
	o.mu.Unlock()
}
