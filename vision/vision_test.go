// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package vision classifies model identifiers by image-input capability.
package vision

import "testing"

func TestSupportsVision(t *testing.T) {
	tests := []struct {
		name  string
		model string
		want  bool
	}{
		// Known vision families
		{"llava latest tag", "llava:latest", true},
		{"llava sized", "llava:13b", true},
		{"bakllava", "bakllava-13b", true},
		{"llama2 vision underscore", "llama2_vision", true},

		// Vision suffix with version tokens
		{"llama3.2 vision", "llama3.2-vision", true},
		{"llama3.2 vision latest", "llama3.2-vision:latest", true},
		{"hyphenated version", "llama-3.2-vision", true},
		{"size token", "13b-vision", true},
		{"version prefix", "v1.5-vision", true},
		{"glued version", "llama3.2vision", true},
		{"glued size", "llama32vision", true},

		// Non-vision models
		{"mistral", "mistral:latest", false},
		{"codellama", "codellama", false},
		{"qwen coder", "qwen2.5-coder:14b", false},
		{"plain llama", "llama3.1:8b", false},

		// Degenerate input
		{"empty", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := SupportsVision(tc.model); got != tc.want {
				t.Errorf("SupportsVision(%q) = %v, want %v", tc.model, got, tc.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"LLaVA:Latest", "llava"},
		{"llama3.2_vision", "llama3.2-vision"},
		{"model:13b", "model-13b"},
		{"plain", "plain"},
		{"ends-latest", "ends"},
	}

	for _, tc := range tests {
		if got := Normalize(tc.input); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}
