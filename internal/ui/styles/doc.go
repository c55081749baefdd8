// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the ragdesk TUI.

All colors use Lip Gloss AdaptiveColor for automatic light/dark terminal
detection.

# Color System (colors.go)

  - Purple: primary accent, assistant messages, active tab
  - Cyan: brand color, user messages, commands
  - Emerald: success, connected backend
  - Amber: warnings, system notices, checking state
  - Rose: errors, disconnected backend

# Theme System (theme.go)

The Theme struct holds every composed style:

	theme := styles.NewTheme()
	bar := theme.StatusBar.Width(80).Render(text)
	dot := theme.ForLevel(monitor.StatusLevel("healthy")).Render("ok")

# Indicators (animations.go)

Spinner frames for bubbles/spinner and an ASCII progress bar used by the
reload progress line and the metrics bar chart.
*/
package styles
