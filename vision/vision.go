// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package vision classifies model identifiers by image-input capability.
//
// The classifier is a pure predicate over the model name as reported by the
// Ollama tags endpoint (e.g. "llava:latest", "llama3.2-vision:11b"). It is
// used to gate image attachments in the input surface and to rank models
// during default selection.
package vision

import (
	"regexp"
	"strings"
)

// =============================================================================
// VISION MODEL FAMILIES
// =============================================================================

// families are known vision-capable model family substrings, matched against
// the normalized identifier.
var families = []string{
	"llava",
	"bakllava",
	"llama-vision",
	"llama2-vision",
	"llama-2-vision",
}

var (
	// latestSuffix strips a trailing "latest" tag ("llava:latest" -> "llava").
	latestSuffix = regexp.MustCompile(`-?latest$`)

	// visionSuffix matches identifiers ending in "vision" with an optional
	// size/version token, e.g. "llama3.2-vision", "13b-vision", "1.5-vision".
	visionSuffix = regexp.MustCompile(`(\d+(\.\d+)?b?)?-?vision$`)

	// visionSuffixNoHyphen handles the same token glued directly onto
	// "vision", e.g. "llama3.2vision", "llama32vision".
	visionSuffixNoHyphen = regexp.MustCompile(`\d+(\.\d+)?b?vision$`)
)

// =============================================================================
// CLASSIFIER
// =============================================================================

// SupportsVision reports whether a model identifier names a vision-capable
// model. The identifier is normalized before matching: lower-cased, with
// ':' and '_' collapsed to '-' and a trailing "latest" tag removed.
// An empty identifier is never vision-capable.
func SupportsVision(name string) bool {
	if name == "" {
		return false
	}

	normalized := Normalize(name)

	for _, family := range families {
		if strings.Contains(normalized, family) {
			return true
		}
	}

	if visionSuffix.MatchString(normalized) {
		return true
	}
	return visionSuffixNoHyphen.MatchString(normalized)
}

// Normalize returns the canonical form of a model identifier used for
// matching: lower case, ':' and '_' replaced with '-', trailing "latest"
// tag removed.
func Normalize(name string) string {
	s := strings.ToLower(name)
	s = strings.ReplaceAll(s, ":", "-")
	s = strings.ReplaceAll(s, "_", "-")
	return latestSuffix.ReplaceAllString(s, "")
}
