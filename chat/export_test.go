// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestExportMarkdown(t *testing.T) {
	c := &Chat{
		ID:    NewID(),
		Title: "Trip planning",
		Model: "llava:latest",
		Messages: []Message{
			NewUserMessage("where to?", []string{"data:image/png;base64,AA"}),
			{ID: NewID(), Role: RoleAssistant, Content: Content{Text: "somewhere wa", Images: []string{}}, Cancelled: true},
		},
	}

	out := ExportMarkdown(c)
	for _, want := range []string{
		"# Trip planning",
		"Model: llava:latest",
		"**You**",
		"where to?",
		"[1 image attachment(s)]",
		"**Assistant**",
		"[generation cancelled]",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("export missing %q:\n%s", want, out)
		}
	}
}

func TestExportJSON(t *testing.T) {
	c := &Chat{ID: NewID(), Title: "T", Model: "m", Messages: []Message{NewUserMessage("hi", nil)}}

	data, err := ExportJSON(c)
	if err != nil {
		t.Fatal(err)
	}

	var back Chat
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("exported JSON does not parse: %v", err)
	}
	if back.Title != "T" || len(back.Messages) != 1 || back.Messages[0].Content.Text != "hi" {
		t.Errorf("round-trip = %+v", back)
	}
}
