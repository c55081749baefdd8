// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package documents

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/ragdesk-tui/internal/api"
	"github.com/jeranaias/ragdesk-tui/internal/documents"
	"github.com/jeranaias/ragdesk-tui/internal/model"
	"github.com/jeranaias/ragdesk-tui/internal/reload"
	"github.com/jeranaias/ragdesk-tui/internal/ui/styles"
)

// DefaultTimeout bounds list, upload and delete calls.
const DefaultTimeout = 60 * time.Second

// NoticeDuration is how long a notice stays visible.
const NoticeDuration = 4 * time.Second

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Library is the document store the tab manages. *documents.Manager
// satisfies it.
type Library interface {
	List(ctx context.Context) ([]api.Document, error)
	Upload(ctx context.Context, path string) (*api.UploadResponse, error)
	Delete(ctx context.Context, name string) (*api.DeleteResponse, error)
	Refresh()
	Rules() documents.Rules
}

// Reloader runs a backend reindex. *reload.Poller satisfies it.
type Reloader interface {
	Start(ctx context.Context) error
	Done() <-chan reload.Outcome
	Snapshot() (model.ReloadStatus, bool)
	Active() bool
}

// Config wires the tab to its collaborators.
type Config struct {
	Theme    *styles.Theme
	Library  Library
	Reloader Reloader
	// Updates receives the library refresh counter; optional.
	Updates <-chan uint64
	Logger  *zap.Logger
	Base    context.Context
	Timeout time.Duration
}

// =============================================================================
// MESSAGES
// =============================================================================

type listLoadedMsg struct {
	docs []api.Document
	err  error
}

type uploadDoneMsg struct {
	path string
	resp *api.UploadResponse
	err  error
}

type deleteDoneMsg struct {
	name string
	err  error
}

type reloadStartedMsg struct {
	err error
}

type reloadOutcomeMsg struct {
	outcome reload.Outcome
	ok      bool
}

type libraryChangedMsg struct{}

type noticeExpiredMsg struct {
	id int
}

// =============================================================================
// MODEL
// =============================================================================

type mode int

const (
	modeBrowse mode = iota
	modeSearch
	modeUpload
	modeConfirmDelete
)

type notice struct {
	id      int
	text    string
	isError bool
}

// Model is the Documents tab state.
type Model struct {
	cfg   Config
	keys  KeyMap
	theme *styles.Theme

	table   table.Model
	search  textinput.Model
	path    textinput.Model
	spinner spinner.Model

	all      []api.Document
	visible  []api.Document
	types    []string
	typeIdx  int // 0 is "all types"
	loading  bool
	loadErr  error
	mode     mode
	pending  string // document awaiting delete confirmation
	busy     string // upload or delete in flight
	reindex  bool
	notice   *notice
	noticeID int

	width  int
	height int
}

// New creates the Documents tab.
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
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	search := textinput.New()
	search.Placeholder = "Search document..."
	search.Prompt = "/ "
	search.PromptStyle = cfg.Theme.InputPrompt

	path := textinput.New()
	path.Placeholder = "path/to/file.pdf"
	path.Prompt = "Upload: "
	path.PromptStyle = cfg.Theme.InputPrompt

	t := table.New(
		table.WithColumns(columns(80)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	ts := table.DefaultStyles()
	ts.Header = cfg.Theme.TableHeader
	ts.Selected = cfg.Theme.TableSelected
	t.SetStyles(ts)

	return &Model{
		cfg:    cfg,
		keys:   DefaultKeyMap(),
		theme:  cfg.Theme,
		table:  t,
		search: search,
		path:   path,
		spinner: spinner.New(
			spinner.WithSpinner(styles.DotsSpinner.Bubbles()),
			spinner.WithStyle(cfg.Theme.Spinner),
		),
	}
}

// Init loads the document list.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.load(), waitForChange(m.cfg.Updates))
}

// Keys returns the tab bindings.
func (m *Model) Keys() KeyMap { return m.keys }

// Capturing reports whether the tab is reading text input, so global
// shortcuts must not fire.
func (m *Model) Capturing() bool {
	return m.mode == modeSearch || m.mode == modeUpload
}

// Documents returns the documents matching the current filters.
func (m *Model) Documents() []api.Document { return m.visible }

// Notice returns the visible notice, if any.
func (m *Model) Notice() (string, bool) {
	if m.notice == nil {
		return "", false
	}
	return m.notice.text, m.notice.isError
}

// Reindexing reports whether a reindex is running.
func (m *Model) Reindexing() bool { return m.reindex }

// SetSize sets the pane size.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.table.SetColumns(columns(width))
	m.table.SetWidth(width)
	// Title, filter line, count line, status line and table header.
	m.table.SetHeight(max(3, height-7))
	m.search.Width = max(10, width-4)
	m.path.Width = max(10, width-12)
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles messages for the Documents tab.
func (m *Model) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case listLoadedMsg:
		m.loading = false
		m.loadErr = msg.err
		if msg.err == nil {
			m.all = msg.docs
			m.types = documents.Types(msg.docs)
			if m.typeIdx > len(m.types) {
				m.typeIdx = 0
			}
		}
		m.applyFilter()
		return nil

	case libraryChangedMsg:
		return tea.Batch(m.load(), waitForChange(m.cfg.Updates))

	case uploadDoneMsg:
		m.busy = ""
		if msg.err != nil {
			return m.showNotice(fmt.Sprintf("Upload failed: %s", api.Detail(msg.err)), true)
		}
		text := fmt.Sprintf("Uploaded %s", filepath.Base(msg.path))
		if msg.resp != nil && msg.resp.Message != "" {
			text += ": " + msg.resp.Message
		}
		return tea.Batch(m.showNotice(text, false), m.afterChange())

	case deleteDoneMsg:
		m.busy = ""
		if msg.err != nil {
			return m.showNotice(fmt.Sprintf("Delete failed: %s", api.Detail(msg.err)), true)
		}
		return tea.Batch(m.showNotice("Deleted "+msg.name, false), m.afterChange())

	case reloadStartedMsg:
		if msg.err != nil {
			m.reindex = false
			if errors.Is(msg.err, reload.ErrAlreadyActive) {
				return m.showNotice("A reindex is already running", false)
			}
			return m.showNotice("Reindex failed to start: "+api.Detail(msg.err), true)
		}
		return waitForOutcome(m.cfg.Reloader.Done())

	case reloadOutcomeMsg:
		m.reindex = false
		if !msg.ok {
			return nil
		}
		if !msg.outcome.Success {
			return m.showNotice("Reindex failed: "+msg.outcome.Err, true)
		}
		text := "Reindex complete"
		if n, ok := resultCount(msg.outcome.Result); ok {
			text += fmt.Sprintf(": %s documents", n)
		}
		m.cfg.Library.Refresh()
		return tea.Batch(m.showNotice(text, false), m.afterChange())

	case spinner.TickMsg:
		if !m.loading && !m.reindex && m.busy == "" {
			return nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return cmd

	case noticeExpiredMsg:
		if m.notice != nil && m.notice.id == msg.id {
			m.notice = nil
		}
		return nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	switch m.mode {
	case modeSearch:
		m.search, cmd = m.search.Update(msg)
	case modeUpload:
		m.path, cmd = m.path.Update(msg)
	}
	return cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch m.mode {
	case modeSearch:
		return m.handleSearchKey(msg)
	case modeUpload:
		return m.handleUploadKey(msg)
	case modeConfirmDelete:
		switch {
		case key.Matches(msg, m.keys.Confirm):
			name := m.pending
			m.mode = modeBrowse
			m.pending = ""
			return m.delete(name)
		case key.Matches(msg, m.keys.Deny):
			m.mode = modeBrowse
			m.pending = ""
		}
		return nil
	}

	switch {
	case key.Matches(msg, m.keys.Search):
		m.mode = modeSearch
		return m.search.Focus()

	case key.Matches(msg, m.keys.Type):
		m.typeIdx = (m.typeIdx + 1) % (len(m.types) + 1)
		m.applyFilter()
		return nil

	case key.Matches(msg, m.keys.Upload):
		m.mode = modeUpload
		m.path.Reset()
		return m.path.Focus()

	case key.Matches(msg, m.keys.Delete):
		doc, ok := m.selected()
		if !ok {
			return nil
		}
		m.pending = doc.Filename
		m.mode = modeConfirmDelete
		return nil

	case key.Matches(msg, m.keys.Reload):
		return m.startReload()

	case key.Matches(msg, m.keys.Refresh):
		m.cfg.Library.Refresh()
		return m.afterChange()

	case key.Matches(msg, m.keys.Cancel):
		if m.search.Value() != "" {
			m.search.Reset()
			m.applyFilter()
		}
		return nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return cmd
}

func (m *Model) handleSearchKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Accept):
		m.mode = modeBrowse
		m.search.Blur()
		return nil
	case key.Matches(msg, m.keys.Cancel):
		m.mode = modeBrowse
		m.search.Blur()
		m.search.Reset()
		m.applyFilter()
		return nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.applyFilter()
	return cmd
}

func (m *Model) handleUploadKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Accept):
		path := expandHome(strings.TrimSpace(m.path.Value()))
		m.mode = modeBrowse
		m.path.Blur()
		if path == "" {
			return nil
		}
		return m.upload(path)
	case key.Matches(msg, m.keys.Cancel):
		m.mode = modeBrowse
		m.path.Blur()
		return nil
	}
	var cmd tea.Cmd
	m.path, cmd = m.path.Update(msg)
	return cmd
}

// =============================================================================
// COMMANDS
// =============================================================================

func (m *Model) load() tea.Cmd {
	if m.cfg.Library == nil {
		return nil
	}
	start := !m.loading && !m.reindex && m.busy == ""
	m.loading = true
	lib, base, timeout := m.cfg.Library, m.cfg.Base, m.cfg.Timeout
	fetch := func() tea.Msg {
		ctx, cancel := context.WithTimeout(base, timeout)
		defer cancel()
		docs, err := lib.List(ctx)
		return listLoadedMsg{docs: docs, err: err}
	}
	if start {
		return tea.Batch(fetch, m.spinner.Tick)
	}
	return fetch
}

// afterChange reloads the list unless the library subscription will.
func (m *Model) afterChange() tea.Cmd {
	if m.cfg.Updates != nil {
		return nil
	}
	return m.load()
}

func (m *Model) upload(path string) tea.Cmd {
	if err := m.cfg.Library.Rules().Validate(filepath.Base(path), 0); err != nil {
		return m.showNotice(err.Error(), true)
	}
	start := !m.loading && !m.reindex && m.busy == ""
	m.busy = "Uploading " + filepath.Base(path)
	lib, base, timeout, logger := m.cfg.Library, m.cfg.Base, m.cfg.Timeout, m.cfg.Logger
	run := func() tea.Msg {
		ctx, cancel := context.WithTimeout(base, timeout)
		defer cancel()
		resp, err := lib.Upload(ctx, path)
		if err != nil {
			logger.Warn("UPLOAD_FAILED", zap.String("path", path), zap.Error(err))
		}
		return uploadDoneMsg{path: path, resp: resp, err: err}
	}
	if start {
		return tea.Batch(run, m.spinner.Tick)
	}
	return run
}

func (m *Model) delete(name string) tea.Cmd {
	start := !m.loading && !m.reindex && m.busy == ""
	m.busy = "Deleting " + name
	lib, base, timeout := m.cfg.Library, m.cfg.Base, m.cfg.Timeout
	run := func() tea.Msg {
		ctx, cancel := context.WithTimeout(base, timeout)
		defer cancel()
		_, err := lib.Delete(ctx, name)
		return deleteDoneMsg{name: name, err: err}
	}
	if start {
		return tea.Batch(run, m.spinner.Tick)
	}
	return run
}

func (m *Model) startReload() tea.Cmd {
	if m.cfg.Reloader == nil {
		return m.showNotice("Reindexing is not available", true)
	}
	if m.reindex || m.cfg.Reloader.Active() {
		return m.showNotice("A reindex is already running", false)
	}
	start := !m.loading && m.busy == ""
	m.reindex = true
	r, base := m.cfg.Reloader, m.cfg.Base
	run := func() tea.Msg {
		return reloadStartedMsg{err: r.Start(base)}
	}
	if start {
		return tea.Batch(run, m.spinner.Tick)
	}
	return run
}

func waitForOutcome(done <-chan reload.Outcome) tea.Cmd {
	if done == nil {
		return func() tea.Msg { return reloadOutcomeMsg{} }
	}
	return func() tea.Msg {
		out, ok := <-done
		return reloadOutcomeMsg{outcome: out, ok: ok}
	}
}

func waitForChange(updates <-chan uint64) tea.Cmd {
	if updates == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-updates; !ok {
			return nil
		}
		return libraryChangedMsg{}
	}
}

func (m *Model) showNotice(text string, isError bool) tea.Cmd {
	m.noticeID++
	m.notice = &notice{id: m.noticeID, text: text, isError: isError}
	id := m.noticeID
	return tea.Tick(NoticeDuration, func(time.Time) tea.Msg {
		return noticeExpiredMsg{id: id}
	})
}

// =============================================================================
// FILTERING
// =============================================================================

// TypeFilter returns the active type filter, empty for all types.
func (m *Model) TypeFilter() string {
	if m.typeIdx == 0 || m.typeIdx > len(m.types) {
		return ""
	}
	return m.types[m.typeIdx-1]
}

func (m *Model) applyFilter() {
	m.visible = documents.Filter(m.all, m.search.Value(), m.TypeFilter())
	rows := make([]table.Row, 0, len(m.visible))
	for _, d := range m.visible {
		rows = append(rows, row(d))
	}
	m.table.SetRows(rows)
	if m.table.Cursor() >= len(rows) {
		m.table.SetCursor(max(0, len(rows)-1))
	}
}

func (m *Model) selected() (api.Document, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.visible) {
		return api.Document{}, false
	}
	return m.visible[i], true
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
