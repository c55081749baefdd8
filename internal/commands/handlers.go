// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/ragdesk-tui/internal/api"
	"github.com/jeranaias/ragdesk-tui/internal/documents"
	"github.com/jeranaias/ragdesk-tui/internal/export"
	"github.com/jeranaias/ragdesk-tui/internal/model"
	"github.com/jeranaias/ragdesk-tui/internal/monitor"
)

// ErrNoSession is reported by commands that need a chat session.
var ErrNoSession = errors.New("no active chat session")

// =============================================================================
// MESSAGE TYPES
// =============================================================================

// These messages are sent by command handlers to update the views.

// SystemMessageMsg shows informational text in the chat pane.
type SystemMessageMsg struct {
	Title   string
	Content string
}

// ErrorMsg reports a failed command.
type ErrorMsg struct {
	Command string
	Err     error
}

// ConfigChangedMsg reports a chat setting change.
type ConfigChangedMsg struct {
	Config model.ChatConfig
	Notice string
}

// ChatClearedMsg reports that /clear emptied the transcript.
type ChatClearedMsg struct{}

// NewChatMsg reports that /new started a new conversation.
type NewChatMsg struct{}

// ForwardMsg asks the chat view to send Text to the backend as a message.
type ForwardMsg struct {
	Text string
}

// ExportCompleteMsg indicates export completion.
type ExportCompleteMsg struct {
	Path  string
	Error error
}

// msgCmd wraps a message in a command.
func msgCmd(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}

func errCmd(command string, err error) tea.Cmd {
	return msgCmd(ErrorMsg{Command: command, Err: err})
}

// =============================================================================
// GENERAL
// =============================================================================

// HandleHelp lists commands, or describes one when given its name.
func HandleHelp(ctx *Context, args []string) tea.Cmd {
	r := ctx.registry
	if r == nil {
		r = NewRegistry()
	}
	topic := ""
	if len(args) > 0 {
		topic = args[0]
	}
	text, err := GenerateHelpText(r, topic)
	if err != nil {
		return errCmd("/help", err)
	}
	return msgCmd(SystemMessageMsg{Title: "Commands", Content: text})
}

// HandleQuit exits the program.
func HandleQuit(ctx *Context, args []string) tea.Cmd {
	return tea.Quit
}

// =============================================================================
// CHAT
// =============================================================================

// HandleClear empties the transcript and bumps the clear counter.
func HandleClear(ctx *Context, args []string) tea.Cmd {
	if ctx.Store == nil {
		return errCmd("/clear", ErrNoSession)
	}
	ctx.Store.ClearChat()
	return msgCmd(ChatClearedMsg{})
}

// HandleNew starts a new conversation.
func HandleNew(ctx *Context, args []string) tea.Cmd {
	if ctx.Store == nil {
		return errCmd("/new", ErrNoSession)
	}
	ctx.Store.NewChat()
	ctx.Store.ClearMessages()
	return msgCmd(NewChatMsg{})
}

// HandleExport writes the current transcript to Markdown or JSON.
func HandleExport(ctx *Context, args []string) tea.Cmd {
	if ctx.Store == nil {
		return errCmd("/export", ErrNoSession)
	}
	format := "md"
	if len(args) > 0 {
		format = args[0]
	}

	messages := ctx.Store.Messages()
	if len(messages) == 0 {
		return errCmd("/export", errors.New("nothing to export yet"))
	}
	conv := export.FromSession(messages, ctx.Store.Config(), ctx.ThreadID)
	dir := ctx.ExportDir
	logger := ctx.logger()

	return func() tea.Msg {
		opts := export.DefaultOptions()
		if dir != "" {
			opts.OutputDir = dir
		}
		exporter, err := export.ForFormat(format, opts)
		if err != nil {
			return ExportCompleteMsg{Error: err}
		}
		path, err := export.ExportToFile(conv, exporter, opts)
		if err != nil {
			logger.Warn("EXPORT_FAILED", zap.Error(err))
			return ExportCompleteMsg{Error: err}
		}
		logger.Info("EXPORTED", zap.String("path", path), zap.Int("messages", len(conv.Messages)))
		return ExportCompleteMsg{Path: path}
	}
}

// =============================================================================
// SETTINGS
// =============================================================================

// ParseMode accepts English and Spanish mode names.
func ParseMode(s string) (model.Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "brief", "breve", "short":
		return model.ModeBrief, true
	case "extended", "extendido", "long":
		return model.ModeExtended, true
	default:
		return "", false
	}
}

// HandleMode shows or sets the response mode.
func HandleMode(ctx *Context, args []string) tea.Cmd {
	if ctx.Store == nil {
		return errCmd("/mode", ErrNoSession)
	}
	if len(args) == 0 {
		var sb strings.Builder
		current := ctx.Store.Config().Mode
		sb.WriteString(fmt.Sprintf("Current mode: %s\n\n", current.Label()))
		for _, m := range model.KnownModes {
			marker := "  "
			if m == current {
				marker = "> "
			}
			sb.WriteString(fmt.Sprintf("%s%-8s %s\n", marker, m, m.Description()))
		}
		return msgCmd(SystemMessageMsg{Title: "Mode", Content: strings.TrimRight(sb.String(), "\n")})
	}

	mode, ok := ParseMode(args[0])
	if !ok {
		return errCmd("/mode", fmt.Errorf("unknown mode %q (use brief or extended)", args[0]))
	}
	ctx.Store.UpdateConfig(model.ConfigPatch{Mode: model.ModePtr(mode)})
	return msgCmd(ConfigChangedMsg{
		Config: ctx.Store.Config(),
		Notice: fmt.Sprintf("Mode set to %s: %s", mode.Label(), mode.Description()),
	})
}

// HandleRAG shows, toggles or sets document retrieval.
func HandleRAG(ctx *Context, args []string) tea.Cmd {
	if ctx.Store == nil {
		return errCmd("/rag", ErrNoSession)
	}
	enabled := !ctx.Store.Config().UseRAG
	if len(args) > 0 {
		switch strings.ToLower(args[0]) {
		case "on":
			enabled = true
		case "off":
			enabled = false
		}
	}
	ctx.Store.UpdateConfig(model.ConfigPatch{UseRAG: model.BoolPtr(enabled)})

	notice := "Document retrieval disabled: answers use the model only"
	if enabled {
		notice = "Document retrieval enabled: answers cite indexed documents"
	}
	return msgCmd(ConfigChangedMsg{Config: ctx.Store.Config(), Notice: notice})
}

// HandleModel lists models or switches to one. Unknown names are accepted
// and left for the backend to reject.
func HandleModel(ctx *Context, args []string) tea.Cmd {
	if ctx.Store == nil {
		return errCmd("/model", ErrNoSession)
	}
	if len(args) == 0 {
		current := ctx.Store.Config().ModelName
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Current model: %s\n\n", model.ModelLabel(current)))
		for _, m := range model.KnownModels {
			marker := "  "
			if m.Value == current {
				marker = "> "
			}
			sb.WriteString(fmt.Sprintf("%s%-10s %s\n", marker, m.Value, m.Label))
		}
		return msgCmd(SystemMessageMsg{Title: "Models", Content: strings.TrimRight(sb.String(), "\n")})
	}

	name := strings.TrimSpace(args[0])
	ctx.Store.UpdateConfig(model.ConfigPatch{ModelName: model.StringPtr(name)})
	notice := fmt.Sprintf("Model set to %s", model.ModelLabel(name))
	if model.ModelLabel(name) == name {
		notice += " (not in the known list; the backend may reject it)"
	}
	return msgCmd(ConfigChangedMsg{Config: ctx.Store.Config(), Notice: notice})
}

// =============================================================================
// INFORMATION
// =============================================================================

// HandleStatus re-checks backend health and shows it with session settings.
func HandleStatus(ctx *Context, args []string) tea.Cmd {
	cfg := ctx.config()
	messages := 0
	if ctx.Store != nil {
		messages = ctx.Store.Len()
	}
	info := StatusInfo{Config: cfg, Messages: messages, ThreadID: ctx.ThreadID}

	if ctx.Health == nil {
		return msgCmd(SystemMessageMsg{Title: "Status", Content: GenerateStatusText(info)})
	}

	health := ctx.Health
	return func() tea.Msg {
		callCtx, cancel := ctx.callContext()
		defer cancel()
		info.Backend = health.Check(callCtx)
		info.Health, info.HealthErr, _ = health.Last()
		info.Monitored = true
		return SystemMessageMsg{Title: "Status", Content: GenerateStatusText(info)}
	}
}

// StatusInfo is the input to GenerateStatusText.
type StatusInfo struct {
	Monitored bool
	Backend   monitor.Status
	Health    *api.HealthResponse
	HealthErr error
	Config    model.ChatConfig
	Messages  int
	ThreadID  string
}

// GenerateStatusText renders the /status report.
func GenerateStatusText(info StatusInfo) string {
	var sb strings.Builder

	if !info.Monitored {
		sb.WriteString("Backend: not monitored\n")
	} else {
		sb.WriteString(fmt.Sprintf("Backend: %s\n", info.Backend))
		if info.Health != nil {
			sb.WriteString(fmt.Sprintf("Health:  %s %s\n", monitor.StatusEmoji(info.Health.Status), info.Health.Status))
			if info.Health.Version != "" {
				sb.WriteString(fmt.Sprintf("Version: %s\n", info.Health.Version))
			}
			names := make([]string, 0, len(info.Health.Components))
			for name := range info.Health.Components {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				status := info.Health.Components[name]
				sb.WriteString(fmt.Sprintf("  %s %s: %s\n", monitor.StatusEmoji(status), name, status))
			}
		}
		if info.HealthErr != nil {
			sb.WriteString(fmt.Sprintf("Error:   %s\n", api.Detail(info.HealthErr)))
		}
	}

	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Model:    %s\n", model.ModelLabel(info.Config.ModelName)))
	sb.WriteString(fmt.Sprintf("Mode:     %s\n", info.Config.Mode.Label()))
	rag := "off"
	if info.Config.UseRAG {
		rag = "on"
	}
	sb.WriteString(fmt.Sprintf("RAG:      %s\n", rag))
	sb.WriteString(fmt.Sprintf("Messages: %d\n", info.Messages))
	if info.ThreadID != "" {
		sb.WriteString(fmt.Sprintf("Thread:   %s\n", info.ThreadID))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// HandleSources lists indexed documents, optionally filtered.
func HandleSources(ctx *Context, args []string) tea.Cmd {
	if ctx.Documents == nil {
		return errCmd("/sources", errors.New("document listing unavailable"))
	}
	query := strings.Join(args, " ")
	docs := ctx.Documents
	logger := ctx.logger()

	return func() tea.Msg {
		callCtx, cancel := ctx.callContext()
		defer cancel()
		list, err := docs.List(callCtx)
		if err != nil {
			logger.Warn("SOURCES_FAILED", zap.Error(err))
			return ErrorMsg{Command: "/sources", Err: errors.New(api.Detail(err))}
		}
		return SystemMessageMsg{Title: "Sources", Content: FormatSources(documents.Filter(list, query, ""), query)}
	}
}

// FormatSources renders a document list for /sources.
func FormatSources(docs []api.Document, query string) string {
	if len(docs) == 0 {
		if query != "" {
			return fmt.Sprintf("No documents match %q.", query)
		}
		return "No documents indexed yet."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d document(s):\n", len(docs)))
	for _, d := range docs {
		sb.WriteString("- ")
		sb.WriteString(d.DisplayTitle())
		var details []string
		if d.Author != "" {
			details = append(details, d.Author)
		}
		if d.Year > 0 {
			details = append(details, fmt.Sprintf("%d", d.Year))
		}
		if d.Type != "" {
			details = append(details, d.Type)
		}
		if len(details) > 0 {
			sb.WriteString(" (" + strings.Join(details, ", ") + ")")
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// HandlePrivacy forwards the request to the backend, which owns the policy
// text.
func HandlePrivacy(ctx *Context, args []string) tea.Cmd {
	return msgCmd(ForwardMsg{Text: "/politica"})
}

// =============================================================================
// HELP TEXT
// =============================================================================

// GenerateHelpText lists every visible command by category, or describes
// one command when topic names it.
func GenerateHelpText(r *Registry, topic string) (string, error) {
	if topic != "" {
		name := topic
		if !strings.HasPrefix(name, "/") {
			name = "/" + name
		}
		cmd := r.Get(name)
		if cmd == nil {
			return "", fmt.Errorf("unknown command: %s", name)
		}
		return describeCommand(cmd), nil
	}

	var sb strings.Builder
	groups := r.ByCategory()
	for _, category := range categoryOrder {
		cmds := groups[category]
		if len(cmds) == 0 {
			continue
		}
		sb.WriteString(category + "\n")
		for _, cmd := range cmds {
			usage := cmd.Usage
			if usage == "" {
				usage = cmd.Name
			}
			sb.WriteString(fmt.Sprintf("  %-26s %s\n", usage, cmd.Description))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Type /help <command> for aliases and details.")
	return sb.String(), nil
}

func describeCommand(cmd *Command) string {
	var sb strings.Builder
	usage := cmd.Usage
	if usage == "" {
		usage = cmd.Name
	}
	sb.WriteString(fmt.Sprintf("%s\n  %s\n", usage, cmd.Description))
	if len(cmd.Aliases) > 0 {
		sb.WriteString(fmt.Sprintf("  Aliases: %s\n", strings.Join(cmd.Aliases, ", ")))
	}
	for _, arg := range cmd.Args {
		line := fmt.Sprintf("  %s: %s", arg.Name, arg.Description)
		if len(arg.Values) > 0 {
			line += " (" + strings.Join(arg.Values, ", ") + ")"
		}
		if !arg.Required {
			line += " [optional]"
		}
		sb.WriteString(line + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
