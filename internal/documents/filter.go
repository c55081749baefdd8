// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package documents

import (
	"strings"

	"github.com/jeranaias/ragdesk-tui/internal/api"
)

// Filter returns the documents whose title, author or filename contains
// query (case-insensitive) and whose type equals docType. An empty query or
// docType matches everything.
func Filter(docs []api.Document, query, docType string) []api.Document {
	query = strings.ToLower(strings.TrimSpace(query))
	docType = strings.TrimSpace(docType)

	out := make([]api.Document, 0, len(docs))
	for _, d := range docs {
		if docType != "" && !strings.EqualFold(d.Type, docType) {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(d.DisplayTitle()), query) &&
			!strings.Contains(strings.ToLower(d.Author), query) &&
			!strings.Contains(strings.ToLower(d.Filename), query) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Types lists the distinct document types in first-seen order.
func Types(docs []api.Document) []string {
	seen := make(map[string]bool)
	var types []string
	for _, d := range docs {
		if d.Type == "" || seen[d.Type] {
			continue
		}
		seen[d.Type] = true
		types = append(types, d.Type)
	}
	return types
}
