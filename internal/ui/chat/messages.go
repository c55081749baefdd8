// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/ragdesk-tui/internal/session"
)

// =============================================================================
// MESSAGE TYPES
// =============================================================================

// StoreEventMsg carries one session store mutation into the Update loop.
type StoreEventMsg struct {
	Event session.Event
}

// storeClosedMsg is sent once the store subscription ends.
type storeClosedMsg struct{}

// SendResultMsg reports the end of one chat turn. The transcript itself is
// updated through StoreEventMsg.
type SendResultMsg struct {
	Err error
}

// toastExpiredMsg hides the toast with the matching id.
type toastExpiredMsg struct {
	id int
}

// ToastDuration is how long a toast stays visible.
const ToastDuration = 3 * time.Second

// =============================================================================
// COMMAND CREATORS
// =============================================================================

// waitForEvent blocks on the store subscription.
func waitForEvent(events <-chan session.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return storeClosedMsg{}
		}
		return StoreEventMsg{Event: ev}
	}
}

func expireToast(id int) tea.Cmd {
	return tea.Tick(ToastDuration, func(time.Time) tea.Msg {
		return toastExpiredMsg{id: id}
	})
}
