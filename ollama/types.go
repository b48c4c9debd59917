// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with the Ollama API.
package ollama

import "time"

// =============================================================================
// REQUEST TYPES
// =============================================================================

// GenerateRequest is the body of a POST /api/generate call.
type GenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`

	// Images holds bare base64 payloads (no data-URI prefix); the API
	// rejects prefixed payloads.
	Images []string `json:"images,omitempty"`

	Stream bool `json:"stream"`

	// Context is the opaque token context returned by a previous generate
	// call, used to continue a conversation.
	Context []int `json:"context,omitempty"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// generateChunk is one newline-delimited JSON record of a streaming
// generate response.
type generateChunk struct {
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	Response  string    `json:"response"`
	Done      bool      `json:"done"`

	// Error is set when the server reports a failure mid-stream.
	Error string `json:"error,omitempty"`

	// Context is present on the final record and seeds the next request.
	Context []int `json:"context,omitempty"`

	TotalDuration   int64 `json:"total_duration,omitempty"`
	LoadDuration    int64 `json:"load_duration,omitempty"`
	PromptEvalCount int   `json:"prompt_eval_count,omitempty"`
	EvalCount       int   `json:"eval_count,omitempty"`
	EvalDuration    int64 `json:"eval_duration,omitempty"`
}

// ModelInfo describes one locally installed model as reported by /api/tags.
type ModelInfo struct {
	Name       string       `json:"name"`
	Model      string       `json:"model"`
	ModifiedAt time.Time    `json:"modified_at"`
	Size       int64        `json:"size"`
	Digest     string       `json:"digest"`
	Details    ModelDetails `json:"details"`
}

// ModelDetails holds model metadata from /api/tags.
type ModelDetails struct {
	Format            string   `json:"format"`
	Family            string   `json:"family"`
	Families          []string `json:"families"`
	ParameterSize     string   `json:"parameter_size"`
	QuantizationLevel string   `json:"quantization_level"`
}

// ListModelsResponse is the body of a GET /api/tags response.
type ListModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

// apiError is the JSON error body Ollama returns on non-2xx responses.
type apiError struct {
	Error string `json:"error"`
}
