// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package catalog maintains the list of locally installed models and picks
// sensible defaults for new conversations.
package catalog

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/ollachat/ollama"
	"github.com/jeranaias/ollachat/vision"
)

// =============================================================================
// MODEL TYPE
// =============================================================================

// Model is one installed model plus derived capability info.
type Model struct {
	Name           string
	Size           int64
	ModifiedAt     time.Time
	SupportsVision bool
}

// =============================================================================
// CATALOG
// =============================================================================

// Catalog caches the installed-model list. Refresh calls are rate limited
// so UI-driven polling cannot hammer the Ollama API.
type Catalog struct {
	client  *ollama.Client
	limiter *rate.Limiter

	mu     sync.RWMutex
	models []Model
}

// New creates a catalog backed by the given client. Refreshes are limited
// to one per two seconds with a small burst for startup.
func New(client *ollama.Client) *Catalog {
	return &Catalog{
		client:  client,
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 2),
	}
}

// Refresh fetches the model list from Ollama and replaces the cache. When
// the rate limit is exhausted the cached list is kept and no request is
// made; this is not an error.
func (c *Catalog) Refresh(ctx context.Context) error {
	if !c.limiter.Allow() {
		slog.Debug("model refresh throttled, serving cached list")
		return nil
	}

	infos, err := c.client.ListModels(ctx)
	if err != nil {
		return err
	}

	models := make([]Model, 0, len(infos))
	for _, info := range infos {
		models = append(models, Model{
			Name:           info.Name,
			Size:           info.Size,
			ModifiedAt:     info.ModifiedAt,
			SupportsVision: vision.SupportsVision(info.Name),
		})
	}
	sortModels(models)

	c.mu.Lock()
	c.models = models
	c.mu.Unlock()

	slog.Debug("model catalog refreshed", "count", len(models))
	return nil
}

// Models returns the cached model list, vision-capable models first.
func (c *Catalog) Models() []Model {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Model(nil), c.models...)
}

// Len returns the number of cached models.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.models)
}

// Has reports whether a model with the given name is installed.
func (c *Catalog) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.models {
		if m.Name == name {
			return true
		}
	}
	return false
}

// DefaultModel picks the model a new conversation should use: the saved
// selection when it is still installed, otherwise the first vision-capable
// model, otherwise the first model listed. Empty when nothing is installed.
func (c *Catalog) DefaultModel(saved string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if saved != "" {
		for _, m := range c.models {
			if m.Name == saved {
				return saved
			}
		}
	}
	for _, m := range c.models {
		if m.SupportsVision {
			return m.Name
		}
	}
	if len(c.models) > 0 {
		return c.models[0].Name
	}
	return ""
}

// sortModels orders vision-capable models first, then by name within each
// group.
func sortModels(models []Model) {
	sort.SliceStable(models, func(i, j int) bool {
		if models[i].SupportsVision != models[j].SupportsVision {
			return models[i].SupportsVision
		}
		return models[i].Name < models[j].Name
	})
}
