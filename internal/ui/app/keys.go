// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap holds the bindings handled before a tab sees the key.
type KeyMap struct {
	Chat      key.Binding
	Documents key.Binding
	Metrics   key.Binding
	Quit      key.Binding
}

// DefaultKeyMap returns the default global bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Chat: key.NewBinding(
			key.WithKeys("f1", "alt+1"),
			key.WithHelp("F1", "chat"),
		),
		Documents: key.NewBinding(
			key.WithKeys("f2", "alt+2"),
			key.WithHelp("F2", "documents"),
		),
		Metrics: key.NewBinding(
			key.WithKeys("f3", "alt+3"),
			key.WithHelp("F3", "metrics"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("Ctrl+C", "quit"),
		),
	}
}
