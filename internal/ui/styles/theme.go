// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jeranaias/ragdesk-tui/internal/monitor"
)

// Theme holds all the styled components for the application.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// HEADER AND TABS
	// ==========================================================================

	Header         lipgloss.Style
	HeaderBrand    lipgloss.Style
	HeaderSubtitle lipgloss.Style
	TabActive      lipgloss.Style
	TabInactive    lipgloss.Style

	// ==========================================================================
	// MESSAGES
	// ==========================================================================

	UserBubble      lipgloss.Style
	AssistantBubble lipgloss.Style
	ErrorBubble     lipgloss.Style
	SystemBubble    lipgloss.Style
	UserLabel       lipgloss.Style
	AssistantLabel  lipgloss.Style
	ErrorLabel      lipgloss.Style
	Timestamp       lipgloss.Style
	SourceTitle     lipgloss.Style
	SourceItem      lipgloss.Style
	SourceScore     lipgloss.Style
	MetricsLine     lipgloss.Style

	// ==========================================================================
	// INPUT AND COMPLETION
	// ==========================================================================

	InputContainer     lipgloss.Style
	InputPrompt        lipgloss.Style
	CharCount          lipgloss.Style
	CharCountWarning   lipgloss.Style
	CompletionPopup    lipgloss.Style
	CompletionItem     lipgloss.Style
	CompletionSelected lipgloss.Style

	// ==========================================================================
	// STATUS BAR
	// ==========================================================================

	StatusBar     lipgloss.Style
	StatusSegment lipgloss.Style
	StatusOK      lipgloss.Style
	StatusWarn    lipgloss.Style
	StatusError   lipgloss.Style
	StatusUnknown lipgloss.Style
	ShortcutKey   lipgloss.Style
	ShortcutDesc  lipgloss.Style
	Spinner       lipgloss.Style
	ThinkingText  lipgloss.Style

	// ==========================================================================
	// DASHBOARD AND TABLES
	// ==========================================================================

	Card          lipgloss.Style
	CardTitle     lipgloss.Style
	CardValue     lipgloss.Style
	CardLabel     lipgloss.Style
	SectionTitle  lipgloss.Style
	TableHeader   lipgloss.Style
	TableSelected lipgloss.Style

	// ==========================================================================
	// FEEDBACK
	// ==========================================================================

	Toast       lipgloss.Style
	ToastError  lipgloss.Style
	Muted       lipgloss.Style
	ErrorText   lipgloss.Style
	SuccessText lipgloss.Style
	WarningText lipgloss.Style
	InfoText    lipgloss.Style
	Confirm     lipgloss.Style
	EmptyState  lipgloss.Style
}

// NewTheme creates a new theme with all styles configured.
func NewTheme() *Theme {
	colorProfile := termenv.ColorProfile()
	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
	}
	t.initStyles()
	return t
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	// Header and tabs
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)

	t.HeaderBrand = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)

	t.HeaderSubtitle = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	t.TabActive = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextInverse).
		Background(Purple).
		Padding(0, 2)

	t.TabInactive = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Padding(0, 2)

	// Messages
	t.UserBubble = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(UserBubbleBorder).
		Padding(0, 1).
		MarginLeft(4)

	t.AssistantBubble = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(AssistantBubbleBorder).
		Padding(0, 1).
		MarginRight(4)

	t.ErrorBubble = lipgloss.NewStyle().
		Foreground(Rose).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ErrorBubbleBorder).
		Padding(0, 1).
		MarginRight(4)

	t.SystemBubble = lipgloss.NewStyle().
		Foreground(TextPrimary).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderTop(false).
		BorderRight(false).
		BorderBottom(false).
		BorderForeground(SystemBubbleBorder).
		PaddingLeft(1)

	t.UserLabel = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.AssistantLabel = lipgloss.NewStyle().Bold(true).Foreground(Purple)
	t.ErrorLabel = lipgloss.NewStyle().Bold(true).Foreground(Rose)
	t.Timestamp = lipgloss.NewStyle().Foreground(TextMuted)
	t.SourceTitle = lipgloss.NewStyle().Bold(true).Foreground(TextSecondary)
	t.SourceItem = lipgloss.NewStyle().Foreground(TextSecondary)
	t.SourceScore = lipgloss.NewStyle().Foreground(Emerald)
	t.MetricsLine = lipgloss.NewStyle().Foreground(TextMuted).Italic(true)

	// Input and completion
	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.InputPrompt = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.CharCount = lipgloss.NewStyle().Foreground(TextMuted)
	t.CharCountWarning = lipgloss.NewStyle().Foreground(Amber)

	t.CompletionPopup = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple).
		Padding(0, 1)
	t.CompletionItem = lipgloss.NewStyle().Foreground(TextPrimary)
	t.CompletionSelected = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Purple).
		Bold(true)

	// Status bar
	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Background(SurfaceDim).
		Padding(0, 1)
	t.StatusSegment = lipgloss.NewStyle().Foreground(TextPrimary).Background(SurfaceDim)
	t.StatusOK = lipgloss.NewStyle().Bold(true).Foreground(Emerald)
	t.StatusWarn = lipgloss.NewStyle().Bold(true).Foreground(Amber)
	t.StatusError = lipgloss.NewStyle().Bold(true).Foreground(Rose)
	t.StatusUnknown = lipgloss.NewStyle().Foreground(TextMuted)
	t.ShortcutKey = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.ShortcutDesc = lipgloss.NewStyle().Foreground(TextMuted)
	t.Spinner = lipgloss.NewStyle().Foreground(Purple)
	t.ThinkingText = lipgloss.NewStyle().Foreground(TextSecondary).Italic(true)

	// Dashboard and tables
	t.Card = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1).
		MarginRight(1)
	t.CardTitle = lipgloss.NewStyle().Foreground(TextSecondary)
	t.CardValue = lipgloss.NewStyle().Bold(true).Foreground(TextPrimary)
	t.CardLabel = lipgloss.NewStyle().Foreground(TextMuted)
	t.SectionTitle = lipgloss.NewStyle().Bold(true).Foreground(Purple).MarginTop(1)
	t.TableHeader = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextSecondary).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderTop(false).
		BorderLeft(false).
		BorderRight(false).
		BorderForeground(Overlay)
	t.TableSelected = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Background(SelectionBg).
		Bold(true)

	// Feedback
	t.Toast = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Emerald).
		Padding(0, 1)
	t.ToastError = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Rose).
		Padding(0, 1)
	t.Muted = lipgloss.NewStyle().Foreground(TextMuted)
	t.ErrorText = lipgloss.NewStyle().Foreground(Rose)
	t.SuccessText = lipgloss.NewStyle().Foreground(Emerald)
	t.WarningText = lipgloss.NewStyle().Foreground(Amber)
	t.InfoText = lipgloss.NewStyle().Foreground(Cyan)
	t.Confirm = lipgloss.NewStyle().
		Bold(true).
		Foreground(Amber).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Amber).
		Padding(0, 1)
	t.EmptyState = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true).
		Padding(1, 2)
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// ForLevel returns the style for a backend status level.
func (t *Theme) ForLevel(level monitor.Level) lipgloss.Style {
	switch level {
	case monitor.LevelOK:
		return t.StatusOK
	case monitor.LevelWarn:
		return t.StatusWarn
	case monitor.LevelError:
		return t.StatusError
	default:
		return t.StatusUnknown
	}
}

// ForConnection returns the style for the health checker status.
func (t *Theme) ForConnection(s monitor.Status) lipgloss.Style {
	switch s {
	case monitor.StatusConnected:
		return t.StatusOK
	case monitor.StatusDisconnected:
		return t.StatusError
	default:
		return t.StatusWarn
	}
}

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // > 100 columns
)
