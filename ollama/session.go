// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with the Ollama API.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// SESSION CALLBACKS
// =============================================================================

// Callbacks receive the lifecycle events of one generation session. All
// callbacks fire sequentially from the session goroutine: zero or more
// OnIncrement calls followed by exactly one terminal call (OnDone,
// OnCancelled, or OnError). Nil callbacks are skipped.
type Callbacks struct {
	// OnIncrement delivers the full accumulated text after each fragment.
	OnIncrement func(accumulated string)

	// OnDone fires when the stream completes normally. Context is the
	// opaque continuation state for the next request (may be nil).
	OnDone func(full string, tokenContext []int)

	// OnCancelled fires when the session is cancelled or times out,
	// carrying whatever text accumulated before the cut.
	OnCancelled func(partial string)

	// OnError fires on any failure: connection refused, non-2xx status,
	// a server-reported error record, or a mid-stream read failure.
	OnError func(message string)
}

// =============================================================================
// SESSION HANDLE
// =============================================================================

// Handle controls a running generation session.
type Handle struct {
	// ID uniquely identifies the session for logging and correlation.
	ID string

	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel aborts the session. Safe to call multiple times and after the
// session has already terminated.
func (h *Handle) Cancel() {
	h.cancel()
}

// Wait blocks until the session's terminal callback has returned.
func (h *Handle) Wait() {
	<-h.done
}

// =============================================================================
// GENERATION SESSION
// =============================================================================

// Generate starts a streaming generation session and returns immediately.
// The session runs on its own goroutine; its lifetime is bounded by the
// configured StreamTimeout, after which it is cut off and reported through
// OnCancelled exactly as a user cancellation would be.
func (c *Client) Generate(ctx context.Context, req GenerateRequest, cb Callbacks) *Handle {
	sessionCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		ID:     uuid.NewString(),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	req.Stream = true
	req.Images = normalizeImages(req.Images)
	if req.Model == "" {
		req.Model = c.config.DefaultModel
	}

	go func() {
		defer close(h.done)
		defer cancel()
		c.runSession(sessionCtx, cancel, h.ID, req, cb)
	}()

	return h
}

// runSession performs the HTTP exchange and drives the callbacks. It fires
// exactly one terminal callback on every path.
func (c *Client) runSession(ctx context.Context, cancel context.CancelFunc, id string, req GenerateRequest, cb Callbacks) {
	// Wall-clock limit for the whole stream. Firing is indistinguishable
	// from a user cancel: both route through the same context.
	timer := time.AfterFunc(c.config.StreamTimeout, cancel)
	defer timer.Stop()

	var acc strings.Builder

	fail := func(msg string, cause error) {
		timer.Stop()
		if cause != nil {
			slog.Warn("generation session failed", "session", id, "error", cause)
		} else {
			slog.Warn("generation session failed", "session", id, "message", msg)
		}
		if cb.OnError != nil {
			cb.OnError(msg)
		}
	}
	cancelled := func() {
		timer.Stop()
		slog.Debug("generation session cancelled", "session", id, "partial_len", acc.Len())
		if cb.OnCancelled != nil {
			cb.OnCancelled(acc.String())
		}
	}
	finish := func(tokenContext []int) {
		timer.Stop()
		slog.Debug("generation session complete", "session", id, "len", acc.Len())
		if cb.OnDone != nil {
			cb.OnDone(acc.String(), tokenContext)
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		fail("failed to encode request", err)
		return
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		fail("failed to create request", err)
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")

	// No client-level timeout for streaming; lifetime is governed by the
	// session context and the wall timer.
	streamClient := &http.Client{}

	resp, err := streamClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			cancelled()
			return
		}
		fail("failed to reach Ollama", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			fail(apiErr.Error, nil)
			return
		}
		fail("generate request failed: "+resp.Status, nil)
		return
	}

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil && len(bytes.TrimSpace(line)) == 0 {
			if errors.Is(err, io.EOF) {
				// Stream ended without a done record; treat the
				// accumulated text as the complete response.
				finish(nil)
				return
			}
			if ctx.Err() != nil {
				cancelled()
				return
			}
			fail("stream read failed", err)
			return
		}

		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 {
			continue
		}

		var chunk generateChunk
		if jsonErr := json.Unmarshal(trimmed, &chunk); jsonErr != nil {
			// Malformed records are skipped, not fatal
			slog.Debug("skipping malformed stream record", "session", id, "error", jsonErr)
			continue
		}

		if chunk.Error != "" {
			fail(chunk.Error, nil)
			return
		}

		if chunk.Response != "" {
			acc.WriteString(chunk.Response)
			if cb.OnIncrement != nil {
				cb.OnIncrement(acc.String())
			}
		}

		if chunk.Done {
			finish(chunk.Context)
			return
		}

		if err != nil {
			// Final partial line carried data but the stream is gone
			if errors.Is(err, io.EOF) {
				finish(nil)
				return
			}
			if ctx.Err() != nil {
				cancelled()
				return
			}
			fail("stream read failed", err)
			return
		}
	}
}

// =============================================================================
// IMAGE NORMALIZATION
// =============================================================================

// normalizeImages strips data-URI prefixes so the API receives bare base64
// payloads. Already-bare entries pass through unchanged.
func normalizeImages(images []string) []string {
	if len(images) == 0 {
		return nil
	}
	out := make([]string, len(images))
	for i, img := range images {
		out[i] = stripDataURI(img)
	}
	return out
}

// stripDataURI removes a "data:<mime>;base64," prefix when present.
func stripDataURI(s string) string {
	if !strings.HasPrefix(s, "data:") {
		return s
	}
	if idx := strings.Index(s, "base64,"); idx >= 0 {
		return s[idx+len("base64,"):]
	}
	return s
}
