// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat contains the conversation data model and the state store.
package chat

import (
	"encoding/json"
	"fmt"
	"strings"
)

// =============================================================================
// EXPORT
// =============================================================================

// ExportMarkdown renders a chat as a markdown transcript.
func ExportMarkdown(c *Chat) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# %s\n\n", c.Title))
	sb.WriteString(fmt.Sprintf("Model: %s  \n", c.Model))
	sb.WriteString(fmt.Sprintf("Created: %s\n\n", c.CreatedAt().Format("2006-01-02 15:04:05")))
	sb.WriteString("---\n\n")

	for _, msg := range c.Messages {
		sb.WriteString(fmt.Sprintf("**%s** (%s):\n\n", msg.Role.DisplayName(), msg.Time().Format("15:04:05")))
		if msg.Content.Text != "" {
			sb.WriteString(msg.Content.Text)
			sb.WriteString("\n")
		}
		if n := len(msg.Content.Images); n > 0 {
			sb.WriteString(fmt.Sprintf("_[%d image attachment(s)]_\n", n))
		}
		if msg.Cancelled {
			sb.WriteString("_[generation cancelled]_\n")
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// ExportJSON renders a chat as indented JSON.
func ExportJSON(c *Chat) ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}
