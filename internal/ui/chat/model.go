// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"

	"github.com/jeranaias/ragdesk-tui/internal/api"
	"github.com/jeranaias/ragdesk-tui/internal/commands"
	"github.com/jeranaias/ragdesk-tui/internal/model"
	"github.com/jeranaias/ragdesk-tui/internal/session"
	"github.com/jeranaias/ragdesk-tui/internal/ui/styles"
)

// DefaultMaxInput caps the length of one question.
const DefaultMaxInput = 2000

// footerLines is the status line plus the bordered input box.
const footerLines = 4

// maxCompletionRows limits the completion popup height.
const maxCompletionRows = 6

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config wires the chat view to the session and its collaborators.
type Config struct {
	Theme    *styles.Theme
	Store    *session.Store
	Sender   *session.Sender
	Registry *commands.Registry

	// Health and Documents back /status and /sources. Both are optional.
	Health    commands.HealthSource
	Documents commands.DocumentLister

	ExportDir string
	Logger    *zap.Logger
	Base      context.Context

	// MaxInput caps the input length. Default: DefaultMaxInput.
	MaxInput int

	// WordWrap caps the rendered answer width. Zero uses the pane width.
	WordWrap    int
	ShowSources bool
	ShowMetrics bool
}

// =============================================================================
// MODEL
// =============================================================================

// note is command output shown after the message it followed.
type note struct {
	after   int
	title   string
	content string
}

type toast struct {
	id      int
	text    string
	isError bool
}

// Model is the chat tab state.
type Model struct {
	cfg   Config
	keys  KeyMap
	theme *styles.Theme

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	renderer    *glamour.TermRenderer
	renderWidth int
	rendered    map[int]string

	completer  *commands.Completer
	completion *commands.CompletionState

	notes       []note
	toast       *toast
	toastSeq    int
	confirmNew  bool
	showSources bool
	pending     int

	events      <-chan session.Event
	unsubscribe func()

	width  int
	height int
}

// New creates the chat view and subscribes it to the store.
func New(cfg Config) *Model {
	if cfg.Theme == nil {
		cfg.Theme = styles.NewTheme()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Base == nil {
		cfg.Base = context.Background()
	}
	if cfg.MaxInput <= 0 {
		cfg.MaxInput = DefaultMaxInput
	}
	if cfg.Registry == nil {
		cfg.Registry = commands.NewRegistry()
	}

	ti := textinput.New()
	ti.Placeholder = "Ask a question or type /help"
	ti.CharLimit = cfg.MaxInput
	ti.Prompt = "> "
	ti.PromptStyle = cfg.Theme.InputPrompt
	ti.Focus()

	sp := spinner.New(
		spinner.WithSpinner(styles.BrailleSpinner.Bubbles()),
		spinner.WithStyle(cfg.Theme.Spinner),
	)

	m := &Model{
		cfg:        cfg,
		keys:       DefaultKeyMap(),
		theme:      cfg.Theme,
		input:      ti,
		viewport:   viewport.New(80, 20),
		spinner:    sp,
		rendered:   make(map[int]string),
		completer:  commands.NewCompleter(cfg.Registry),
		completion: commands.NewCompletionState(),
	}
	if cfg.Store != nil {
		m.events, m.unsubscribe = cfg.Store.Subscribe()
	}
	return m
}

// Init starts the cursor blink and the store subscription.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForEvent(m.events))
}

// Close ends the store subscription.
func (m *Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

// Keys returns the chat key bindings.
func (m *Model) Keys() KeyMap { return m.keys }

// Loading reports whether a chat turn is awaiting its answer.
func (m *Model) Loading() bool { return m.pending > 0 }

// InputValue returns the current input text.
func (m *Model) InputValue() string { return m.input.Value() }

// Notes returns how many command outputs are shown in the transcript.
func (m *Model) Notes() int { return len(m.notes) }

// Toast returns the visible toast text, if any.
func (m *Model) Toast() (string, bool) {
	if m.toast == nil {
		return "", false
	}
	return m.toast.text, m.toast.isError
}

// Confirming reports whether the new-chat prompt is open.
func (m *Model) Confirming() bool { return m.confirmNew }

// Focus gives keyboard focus to the input.
func (m *Model) Focus() tea.Cmd { return m.input.Focus() }

// Blur removes keyboard focus from the input.
func (m *Model) Blur() { m.input.Blur() }

// SetSize sets the pane size, excluding the app header and status bar.
func (m *Model) SetSize(width, height int) {
	if width != m.width {
		m.rendered = make(map[int]string)
		m.renderer = nil
	}
	m.width = width
	m.height = height
	m.input.Width = max(10, width-8)
	m.layout()
	m.refresh(true)
}

// layout resizes the viewport around the footer and completion popup.
func (m *Model) layout() {
	popup := 0
	if m.completion.Visible {
		popup = min(len(m.completion.Completions), maxCompletionRows) + 2
	}
	m.viewport.Width = m.width
	m.viewport.Height = max(1, m.height-footerLines-popup)
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles messages for the chat tab.
func (m *Model) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case StoreEventMsg:
		return m.handleStoreEvent(msg.Event)

	case storeClosedMsg:
		m.events = nil
		return nil

	case SendResultMsg:
		if m.pending > 0 {
			m.pending--
		}
		if msg.Err != nil && !errors.Is(msg.Err, session.ErrClosed) {
			m.cfg.Logger.Debug("CHAT_TURN_FAILED", zap.String("detail", api.Detail(msg.Err)))
		}
		return nil

	case spinner.TickMsg:
		if !m.Loading() {
			return nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return cmd

	case toastExpiredMsg:
		if m.toast != nil && m.toast.id == msg.id {
			m.toast = nil
		}
		return nil

	case commands.SystemMessageMsg:
		n := 0
		if m.cfg.Store != nil {
			n = m.cfg.Store.Len()
		}
		m.notes = append(m.notes, note{after: n, title: msg.Title, content: msg.Content})
		m.refresh(true)
		return nil

	case commands.ErrorMsg:
		text := api.Detail(msg.Err)
		if msg.Command != "" {
			text = msg.Command + ": " + text
		}
		return m.showToast(text, true)

	case commands.ConfigChangedMsg:
		return m.showToast(msg.Notice, false)

	case commands.ChatClearedMsg:
		// The store event raises the toast.
		return nil

	case commands.NewChatMsg:
		m.notes = nil
		return m.showToast("New conversation", false)

	case commands.ForwardMsg:
		return m.send(msg.Text)

	case commands.ExportCompleteMsg:
		if msg.Error != nil {
			return m.showToast("Export failed: "+msg.Error.Error(), true)
		}
		return m.showToast("Exported to "+msg.Path, false)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}

	// Cursor blink and other input internals.
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *Model) handleStoreEvent(ev session.Event) tea.Cmd {
	var cmds []tea.Cmd
	switch ev.Kind {
	case session.EventChatCleared:
		m.resetTranscript()
		cmds = append(cmds, m.showToast("Chat cleared", false))
	case session.EventMessagesCleared:
		m.resetTranscript()
	}
	m.refresh(ev.Kind == session.EventMessagesAdded)
	cmds = append(cmds, waitForEvent(m.events))
	return tea.Batch(cmds...)
}

func (m *Model) resetTranscript() {
	m.rendered = make(map[int]string)
	m.notes = nil
	m.showSources = false
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if m.confirmNew {
		switch {
		case key.Matches(msg, m.keys.Confirm):
			m.confirmNew = false
			return m.execute("/new")
		case key.Matches(msg, m.keys.Deny):
			m.confirmNew = false
		}
		return nil
	}

	if m.showSources {
		if key.Matches(msg, m.keys.Cancel) || key.Matches(msg, m.keys.Sources) {
			m.showSources = false
		}
		return nil
	}

	switch {
	case key.Matches(msg, m.keys.Submit):
		if m.completion.Visible {
			m.acceptCompletion()
			return nil
		}
		return m.submit()

	case key.Matches(msg, m.keys.Complete):
		m.cycleCompletion(true)
		return nil

	case key.Matches(msg, m.keys.CompletePrev):
		m.cycleCompletion(false)
		return nil

	case key.Matches(msg, m.keys.Cancel):
		if m.completion.Visible {
			m.clearCompletion()
		} else {
			m.input.Reset()
		}
		return nil

	case key.Matches(msg, m.keys.NewChat):
		m.confirmNew = true
		return nil

	case key.Matches(msg, m.keys.Sources):
		if len(m.lastSources()) > 0 {
			m.showSources = true
			return nil
		}
		return m.showToast("The last answer has no sources", false)

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.ViewUp()
		return nil
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.ViewDown()
		return nil
	case key.Matches(msg, m.keys.HalfUp):
		m.viewport.HalfViewUp()
		return nil
	case key.Matches(msg, m.keys.HalfDown):
		m.viewport.HalfViewDown()
		return nil
	case key.Matches(msg, m.keys.Top):
		m.viewport.GotoTop()
		return nil
	case key.Matches(msg, m.keys.Bottom):
		m.viewport.GotoBottom()
		return nil
	}

	if m.completion.Visible {
		m.clearCompletion()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

// submit runs a slash command or sends the input as a question.
func (m *Model) submit() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return nil
	}
	m.input.Reset()
	if commands.IsCommand(text) {
		return m.execute(text)
	}
	return m.send(text)
}

func (m *Model) execute(input string) tea.Cmd {
	cmd, handled := m.cfg.Registry.Execute(m.commandContext(), input)
	if !handled {
		return m.send(input)
	}
	return cmd
}

// send runs one chat turn in the background. The transcript updates through
// store events.
func (m *Model) send(text string) tea.Cmd {
	if m.cfg.Sender == nil {
		return m.showToast(commands.ErrNoSession.Error(), true)
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}
	sender := m.cfg.Sender
	base := m.cfg.Base
	m.pending++
	m.viewport.GotoBottom()

	turn := func() tea.Msg {
		_, err := sender.Send(base, text)
		return SendResultMsg{Err: err}
	}
	if m.pending == 1 {
		return tea.Batch(turn, m.spinner.Tick)
	}
	return turn
}

func (m *Model) commandContext() *commands.Context {
	ctx := &commands.Context{
		Store:     m.cfg.Store,
		Health:    m.cfg.Health,
		Documents: m.cfg.Documents,
		ExportDir: m.cfg.ExportDir,
		Logger:    m.cfg.Logger,
		Base:      m.cfg.Base,
	}
	if m.cfg.Sender != nil {
		ctx.ThreadID = m.cfg.Sender.ThreadID()
	}
	return ctx
}

// =============================================================================
// COMPLETION
// =============================================================================

func (m *Model) cycleCompletion(forward bool) {
	if !m.completion.Visible {
		value := m.input.Value()
		comps := m.completer.Complete(value, m.input.Position())
		if len(comps) == 0 {
			return
		}
		m.completion.Update(value, comps)
		if len(comps) == 1 {
			m.acceptCompletion()
			return
		}
		m.layout()
		return
	}
	if forward {
		m.completion.Next()
	} else {
		m.completion.Prev()
	}
}

func (m *Model) acceptCompletion() {
	value := m.completion.Accept()
	if strings.HasPrefix(value, "/") && !strings.Contains(value, " ") {
		if cmd := m.cfg.Registry.Get(value); cmd != nil && len(cmd.Args) > 0 {
			value += " "
		}
	}
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.clearCompletion()
}

func (m *Model) clearCompletion() {
	m.completion.Clear()
	m.layout()
}

// =============================================================================
// HELPERS
// =============================================================================

func (m *Model) showToast(text string, isError bool) tea.Cmd {
	if text == "" {
		return nil
	}
	m.toastSeq++
	m.toast = &toast{id: m.toastSeq, text: text, isError: isError}
	return expireToast(m.toastSeq)
}

// lastSources returns the sources of the most recent assistant answer.
func (m *Model) lastSources() []model.Source {
	if m.cfg.Store == nil {
		return nil
	}
	msgs := m.cfg.Store.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == model.RoleAssistant {
			return msgs[i].Sources
		}
	}
	return nil
}

// refresh re-renders the transcript. With follow set the view scrolls to
// the newest content.
func (m *Model) refresh(follow bool) {
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderTranscript())
	if follow || atBottom {
		m.viewport.GotoBottom()
	}
}

// answerRenderer returns a glamour renderer sized to the pane, or nil when
// one cannot be built.
func (m *Model) answerRenderer(width int) *glamour.TermRenderer {
	if m.renderer != nil && m.renderWidth == width {
		return m.renderer
	}
	style := "light"
	if m.theme.IsDark {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		m.cfg.Logger.Debug("RENDERER_UNAVAILABLE", zap.Error(err))
		return nil
	}
	m.renderer = r
	m.renderWidth = width
	return r
}

func (m *Model) messageCount() int {
	if m.cfg.Store == nil {
		return 0
	}
	return m.cfg.Store.Len()
}
