// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jeranaias/ollachat/chat"
	"github.com/jeranaias/ollachat/ollama"
	"github.com/jeranaias/ollachat/storage"
)

func newTestOrchestrator(t *testing.T, handler http.HandlerFunc) (*Orchestrator, *chat.Store) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store := chat.Open(storage.NewMemoryStore())
	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:       server.URL,
		StreamTimeout: time.Minute,
	})
	return New(store, client), store
}

func streamHandler(lines ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, line := range lines {
			fmt.Fprintln(w, line)
		}
	}
}

// =============================================================================
// SUBMIT
// =============================================================================

func TestSubmit_StreamsReplyIntoPlaceholder(t *testing.T) {
	o, store := newTestOrchestrator(t, streamHandler(
		`{"response":"Hel","done":false}`,
		`{"response":"lo","done":false}`,
		`{"done":true,"context":[9,8,7]}`,
	))
	store.SelectModel("llava:latest")
	store.NewChat()

	if err := o.Submit(context.Background(), "hi there", nil); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	o.Wait()

	msgs := store.ActiveChat().Messages
	if len(msgs) != 2 {
		t.Fatalf("transcript length = %d, want user + assistant", len(msgs))
	}
	if msgs[0].Role != chat.RoleUser || msgs[0].Content.Text != "hi there" {
		t.Errorf("user message = %+v", msgs[0])
	}
	if msgs[1].Role != chat.RoleAssistant || msgs[1].Content.Text != "Hello" {
		t.Errorf("assistant message = %+v", msgs[1])
	}
	if msgs[1].Cancelled {
		t.Error("completed reply marked cancelled")
	}
	if o.IsStreaming() {
		t.Error("still streaming after terminal callback")
	}
}

func TestSubmit_SingleFlight(t *testing.T) {
	release := make(chan struct{})
	o, store := newTestOrchestrator(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"response":"x","done":false}`)
		w.(http.Flusher).Flush()
		<-release
	})
	defer close(release)
	store.SelectModel("m")
	store.NewChat()

	if err := o.Submit(context.Background(), "first", nil); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := o.Submit(context.Background(), "second", nil); err != ErrStreaming {
		t.Errorf("second Submit = %v, want ErrStreaming", err)
	}

	o.Cancel()
	o.Wait()

	// Stream settled: submitting works again
	if err := o.Submit(context.Background(), "third", nil); err != nil {
		t.Errorf("Submit after settle: %v", err)
	}
	o.Cancel()
	o.Wait()
}

func TestSubmit_Guards(t *testing.T) {
	o, store := newTestOrchestrator(t, streamHandler(`{"done":true}`))

	if err := o.Submit(context.Background(), "hello", nil); err != ErrNoActiveChat {
		t.Errorf("Submit without chat = %v, want ErrNoActiveChat", err)
	}

	store.NewChat()
	if err := o.Submit(context.Background(), "", nil); err != ErrEmptyMessage {
		t.Errorf("Submit empty = %v, want ErrEmptyMessage", err)
	}

	// Images alone are a valid message
	if err := o.Submit(context.Background(), "", []string{"data:image/png;base64,AA"}); err != nil {
		t.Errorf("Submit image-only = %v", err)
	}
	o.Wait()
}

// =============================================================================
// CANCELLATION
// =============================================================================

func TestSubmit_CancelMarksPlaceholder(t *testing.T) {
	release := make(chan struct{})
	o, store := newTestOrchestrator(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"response":"partial text","done":false}`)
		w.(http.Flusher).Flush()
		<-release
	})
	defer close(release)
	store.SelectModel("m")
	store.NewChat()

	if err := o.Submit(context.Background(), "question", nil); err != nil {
		t.Fatal(err)
	}

	// Wait until the increment landed, then cut the stream
	waitFor(t, func() bool {
		msgs := store.ActiveChat().Messages
		return len(msgs) == 2 && msgs[1].Content.Text == "partial text"
	})
	o.Cancel()
	o.Wait()

	msgs := store.ActiveChat().Messages
	if len(msgs) != 2 {
		t.Fatalf("transcript length = %d, want 2 (no error entry on cancel)", len(msgs))
	}
	if !msgs[1].Cancelled {
		t.Error("cancelled reply not marked")
	}
	if msgs[1].Content.Text != "partial text" {
		t.Errorf("cancelled text = %q, want the partial", msgs[1].Content.Text)
	}
}

// =============================================================================
// ERRORS
// =============================================================================

func TestSubmit_ErrorKeepsPartialAndAppendsEntry(t *testing.T) {
	o, store := newTestOrchestrator(t, streamHandler(
		`{"response":"got this far","done":false}`,
		`{"error":"model exploded"}`,
	))
	store.SelectModel("m")
	store.NewChat()

	if err := o.Submit(context.Background(), "question", nil); err != nil {
		t.Fatal(err)
	}
	o.Wait()

	msgs := store.ActiveChat().Messages
	if len(msgs) != 3 {
		t.Fatalf("transcript length = %d, want user + partial assistant + error entry", len(msgs))
	}
	if msgs[1].Content.Text != "got this far" {
		t.Errorf("placeholder text = %q, want partial kept", msgs[1].Content.Text)
	}
	if msgs[1].Cancelled {
		t.Error("failed reply must not be marked cancelled")
	}
	if msgs[2].Role != chat.RoleError {
		t.Errorf("trailing entry role = %q, want error", msgs[2].Role)
	}
	if msgs[2].Content.Text != "Failed to get response from Ollama" {
		t.Errorf("error text = %q", msgs[2].Content.Text)
	}
}

func TestSubmit_ConnectionFailure(t *testing.T) {
	store := chat.Open(storage.NewMemoryStore())
	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:       "http://127.0.0.1:1",
		StreamTimeout: time.Minute,
	})
	o := New(store, client)
	store.NewChat()

	if err := o.Submit(context.Background(), "hello", nil); err != nil {
		t.Fatal(err)
	}
	o.Wait()

	msgs := store.ActiveChat().Messages
	if len(msgs) != 3 {
		t.Fatalf("transcript length = %d, want error entry appended", len(msgs))
	}
	if msgs[2].Role != chat.RoleError {
		t.Errorf("trailing entry = %+v", msgs[2])
	}
	if o.IsStreaming() {
		t.Error("streaming flag stuck after failure")
	}
}

// =============================================================================
// TOKEN CONTEXT
// =============================================================================

func TestSubmit_CarriesTokenContext(t *testing.T) {
	contexts := make(chan []int, 3)
	o, store := newTestOrchestrator(t, func(w http.ResponseWriter, r *http.Request) {
		var req ollama.GenerateRequest
		json.NewDecoder(r.Body).Decode(&req)
		contexts <- req.Context
		fmt.Fprintln(w, `{"response":"ok","done":false}`)
		fmt.Fprintln(w, `{"done":true,"context":[1,2,3]}`)
	})
	store.SelectModel("m")
	store.NewChat()

	if err := o.Submit(context.Background(), "first", nil); err != nil {
		t.Fatal(err)
	}
	o.Wait()
	if got := <-contexts; got != nil {
		t.Errorf("first request context = %v, want none", got)
	}

	if err := o.Submit(context.Background(), "second", nil); err != nil {
		t.Fatal(err)
	}
	o.Wait()
	got := <-contexts
	if len(got) != 3 || got[0] != 1 {
		t.Errorf("second request context = %v, want [1 2 3]", got)
	}

	// Reset drops the carried context
	o.ResetContext(store.ActiveChatID())
	if err := o.Submit(context.Background(), "third", nil); err != nil {
		t.Fatal(err)
	}
	o.Wait()
	if got := <-contexts; got != nil {
		t.Errorf("post-reset context = %v, want none", got)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
