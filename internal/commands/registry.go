// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/ragdesk-tui/internal/api"
	"github.com/jeranaias/ragdesk-tui/internal/model"
	"github.com/jeranaias/ragdesk-tui/internal/monitor"
	"github.com/jeranaias/ragdesk-tui/internal/session"
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// Command represents a slash command that can be executed.
type Command struct {
	// Name is the primary command name (e.g., "/help")
	Name string

	// Aliases are alternative names (e.g., "/ayuda", "/?")
	Aliases []string

	// Description is shown in help and completion
	Description string

	// Usage shows argument syntax (e.g., "/mode <brief|extended>")
	Usage string

	// Args defines the expected arguments
	Args []ArgDef

	// Handler executes the command
	Handler func(ctx *Context, args []string) tea.Cmd

	// Hidden commands don't appear in help
	Hidden bool

	// Category for grouping in help display
	Category string
}

// ArgDef defines an argument for a command.
type ArgDef struct {
	Name        string
	Required    bool
	Type        ArgType
	Description string

	// Values for enum types
	Values []string
}

// ArgType indicates what kind of completion to provide.
type ArgType int

const (
	ArgTypeString ArgType = iota // Free-form string
	ArgTypeModel                 // Model name from the known catalogue
	ArgTypeEnum                  // One of predefined values
)

// Category names in help display order.
const (
	CategoryChat     = "Chat"
	CategorySettings = "Settings"
	CategoryInfo     = "Information"
	CategoryGeneral  = "General"
)

var categoryOrder = []string{CategoryChat, CategorySettings, CategoryInfo, CategoryGeneral}

// =============================================================================
// COMMAND REGISTRY
// =============================================================================

// Registry holds all registered commands.
type Registry struct {
	commands map[string]*Command
	aliases  map[string]*Command
}

// NewRegistry creates a new command registry with all built-in commands.
func NewRegistry() *Registry {
	r := &Registry{
		commands: make(map[string]*Command),
		aliases:  make(map[string]*Command),
	}
	r.registerBuiltins()
	return r
}

// Register adds a command to the registry.
func (r *Registry) Register(cmd *Command) {
	r.commands[strings.ToLower(cmd.Name)] = cmd
	for _, alias := range cmd.Aliases {
		r.aliases[strings.ToLower(alias)] = cmd
	}
}

// Get retrieves a command by name or alias, ignoring case.
func (r *Registry) Get(name string) *Command {
	name = strings.ToLower(name)
	if cmd, ok := r.commands[name]; ok {
		return cmd
	}
	if cmd, ok := r.aliases[name]; ok {
		return cmd
	}
	return nil
}

// All returns all registered commands sorted by name.
func (r *Registry) All() []*Command {
	cmds := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds
}

// ByCategory returns visible commands grouped by category.
func (r *Registry) ByCategory() map[string][]*Command {
	result := make(map[string][]*Command)
	for _, cmd := range r.All() {
		if cmd.Hidden {
			continue
		}
		category := cmd.Category
		if category == "" {
			category = CategoryGeneral
		}
		result[category] = append(result[category], cmd)
	}
	return result
}

// Execute parses input and runs the matching command. The boolean is false
// when input is not a slash command and should be sent as chat text.
func (r *Registry) Execute(ctx *Context, input string) (tea.Cmd, bool) {
	inv, ok := NewParser(r).Parse(input)
	if !ok {
		return nil, false
	}
	if ctx == nil {
		ctx = &Context{}
	}

	if inv.Command == nil {
		err := fmt.Errorf("unknown command: %s (type /help for the list)", inv.Name)
		return msgCmd(ErrorMsg{Command: inv.Name, Err: err}), true
	}
	if err := inv.Command.CheckArgs(inv.Args); err != nil {
		return msgCmd(ErrorMsg{Command: inv.Command.Name, Err: err}), true
	}

	ctx.logger().Debug("COMMAND_EXECUTED",
		zap.String("command", inv.Command.Name),
		zap.Int("args", len(inv.Args)),
	)
	ctx.registry = r
	return inv.Command.Handler(ctx, inv.Args), true
}

// =============================================================================
// BUILT-IN COMMANDS
// =============================================================================

func (r *Registry) registerBuiltins() {
	r.Register(&Command{
		Name:        "/help",
		Aliases:     []string{"/ayuda", "/?", "/h"},
		Description: "Show available commands",
		Usage:       "/help [command]",
		Args: []ArgDef{
			{Name: "command", Type: ArgTypeString, Description: "Command to describe"},
		},
		Category: CategoryGeneral,
		Handler:  HandleHelp,
	})

	r.Register(&Command{
		Name:        "/quit",
		Aliases:     []string{"/q", "/exit", "/salir"},
		Description: "Exit ragdesk",
		Category:    CategoryGeneral,
		Handler:     HandleQuit,
	})

	r.Register(&Command{
		Name:        "/clear",
		Aliases:     []string{"/limpiar", "/reset"},
		Description: "Clear the chat history",
		Category:    CategoryChat,
		Handler:     HandleClear,
	})

	r.Register(&Command{
		Name:        "/new",
		Aliases:     []string{"/nuevo"},
		Description: "Start a new conversation",
		Category:    CategoryChat,
		Handler:     HandleNew,
	})

	r.Register(&Command{
		Name:        "/export",
		Aliases:     []string{"/exportar"},
		Description: "Export the conversation to a file",
		Usage:       "/export [md|json]",
		Args: []ArgDef{
			{Name: "format", Type: ArgTypeEnum, Values: []string{"md", "json"}, Description: "Output format"},
		},
		Category: CategoryChat,
		Handler:  HandleExport,
	})

	r.Register(&Command{
		Name:        "/mode",
		Aliases:     []string{"/modo"},
		Description: "Show or change the response mode",
		Usage:       "/mode [brief|extended]",
		Args: []ArgDef{
			{Name: "mode", Type: ArgTypeEnum, Values: []string{"brief", "extended", "breve", "extendido"}, Description: "Response mode"},
		},
		Category: CategorySettings,
		Handler:  HandleMode,
	})

	r.Register(&Command{
		Name:        "/rag",
		Description: "Show or toggle document retrieval",
		Usage:       "/rag [on|off]",
		Args: []ArgDef{
			{Name: "state", Type: ArgTypeEnum, Values: []string{"on", "off"}, Description: "Retrieval state"},
		},
		Category: CategorySettings,
		Handler:  HandleRAG,
	})

	r.Register(&Command{
		Name:        "/model",
		Aliases:     []string{"/modelo", "/m"},
		Description: "Show or change the model",
		Usage:       "/model [name]",
		Args: []ArgDef{
			{Name: "name", Type: ArgTypeModel, Description: "Model name"},
		},
		Category: CategorySettings,
		Handler:  HandleModel,
	})

	r.Register(&Command{
		Name:        "/status",
		Aliases:     []string{"/estado", "/health"},
		Description: "Show backend and session status",
		Category:    CategoryInfo,
		Handler:     HandleStatus,
	})

	r.Register(&Command{
		Name:        "/sources",
		Aliases:     []string{"/fuentes", "/docs"},
		Description: "List the indexed documents",
		Usage:       "/sources [filter]",
		Args: []ArgDef{
			{Name: "filter", Type: ArgTypeString, Description: "Title, author or filename text"},
		},
		Category: CategoryInfo,
		Handler:  HandleSources,
	})

	r.Register(&Command{
		Name:        "/privacy",
		Aliases:     []string{"/politica", "/privacidad"},
		Description: "Show the privacy policy",
		Category:    CategoryInfo,
		Handler:     HandlePrivacy,
	})
}

// =============================================================================
// CONTEXT TYPE
// =============================================================================

// HealthSource reports backend connectivity. *monitor.HealthChecker
// satisfies it.
type HealthSource interface {
	Status() monitor.Status
	Last() (*api.HealthResponse, error, time.Time)
	Check(ctx context.Context) monitor.Status
}

// DocumentLister lists indexed documents. *documents.Manager satisfies it.
type DocumentLister interface {
	List(ctx context.Context) ([]api.Document, error)
}

// Context provides access to application state for command handlers.
// Every field except Store is optional; handlers report what is missing.
type Context struct {
	// Store is the chat session the command acts on
	Store *session.Store

	// ThreadID identifies the conversation in exports and status
	ThreadID string

	// Health reports backend connectivity for /status
	Health HealthSource

	// Documents lists indexed documents for /sources
	Documents DocumentLister

	// ExportDir is where /export writes files. Default: current directory.
	ExportDir string

	// Timeout bounds backend calls made by handlers. Default: 15s.
	Timeout time.Duration

	// Logger receives command events
	Logger *zap.Logger

	// Base is the parent context for backend calls. Default: Background.
	Base context.Context

	registry *Registry
}

// DefaultTimeout bounds backend calls made by handlers.
const DefaultTimeout = 15 * time.Second

func (c *Context) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// callContext returns a context bounded by the handler timeout.
func (c *Context) callContext() (context.Context, context.CancelFunc) {
	base := c.Base
	if base == nil {
		base = context.Background()
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(base, timeout)
}

func (c *Context) config() model.ChatConfig {
	if c.Store == nil {
		return model.DefaultChatConfig()
	}
	return c.Store.Config()
}

// =============================================================================
// COMPLETION TYPE
// =============================================================================

// Completion represents a completion suggestion.
type Completion struct {
	// Value to insert
	Value string

	// Display text
	Display string

	// Description shown alongside
	Description string

	// Score for ranking (higher = better match)
	Score int
}
