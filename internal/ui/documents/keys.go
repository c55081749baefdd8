// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package documents

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the Documents tab bindings.
type KeyMap struct {
	Search  key.Binding
	Type    key.Binding
	Upload  key.Binding
	Delete  key.Binding
	Reload  key.Binding
	Refresh key.Binding
	Accept  key.Binding
	Cancel  key.Binding
	Confirm key.Binding
	Deny    key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Search:  key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Type:    key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "type filter")),
		Upload:  key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "upload")),
		Delete:  key.NewBinding(key.WithKeys("d", "delete"), key.WithHelp("d", "delete")),
		Reload:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reindex")),
		Refresh: key.NewBinding(key.WithKeys("R", "ctrl+r"), key.WithHelp("R", "refresh")),
		Accept:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("Enter", "accept")),
		Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("Esc", "cancel")),
		Confirm: key.NewBinding(key.WithKeys("y", "Y", "s", "S"), key.WithHelp("y", "confirm")),
		Deny:    key.NewBinding(key.WithKeys("n", "N", "esc"), key.WithHelp("n", "cancel")),
	}
}

// ShortHelp returns the bindings shown in the status bar.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Search, k.Type, k.Upload, k.Delete, k.Reload}
}
