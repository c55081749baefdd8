// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"fmt"
	"strings"
	"unicode"
)

// IsCommand reports whether chat input is a slash command rather than a
// question for the backend.
func IsCommand(input string) bool {
	return strings.HasPrefix(strings.TrimSpace(input), "/")
}

// =============================================================================
// INVOCATION
// =============================================================================

// Invocation is one parsed slash command line.
type Invocation struct {
	// Name is the command word as typed, e.g. "/modo".
	Name string

	// Command is nil when Name matches nothing in the registry.
	Command *Command

	Args []string

	// RawArgs is everything after the command word, trimmed and unsplit.
	RawArgs string
}

// Parser turns chat input into an Invocation.
type Parser struct {
	registry *Registry
}

// NewParser creates a parser resolving names against registry.
func NewParser(registry *Registry) *Parser {
	return &Parser{registry: registry}
}

// Parse returns false when input is ordinary chat text.
func (p *Parser) Parse(input string) (Invocation, bool) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return Invocation{}, false
	}

	name, rest := input, ""
	if i := strings.IndexFunc(input, unicode.IsSpace); i >= 0 {
		name, rest = input[:i], strings.TrimSpace(input[i:])
	}

	inv := Invocation{
		Name:    name,
		Args:    tokenize(rest),
		RawArgs: rest,
	}
	if p.registry != nil {
		inv.Command = p.registry.Get(name)
	}
	return inv, true
}

// tokenize splits on whitespace outside double quotes. Inside quotes \" and
// \\ are unescaped. Input is walked by rune so accented text stays intact.
func tokenize(s string) []string {
	var (
		tokens  []string
		cur     strings.Builder
		quoted  bool
		pending bool
	)
	flush := func() {
		if pending {
			tokens = append(tokens, cur.String())
			cur.Reset()
			pending = false
		}
	}

	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"':
			quoted = !quoted
			pending = true
		case r == '\\' && quoted && i+1 < len(runes) && (runes[i+1] == '"' || runes[i+1] == '\\'):
			i++
			cur.WriteRune(runes[i])
		case unicode.IsSpace(r) && !quoted:
			flush()
		default:
			cur.WriteRune(r)
			pending = true
		}
	}
	flush()
	return tokens
}

// =============================================================================
// ARGUMENT CHECKS
// =============================================================================

// ArgError rejects an invocation before its handler runs.
type ArgError struct {
	Command string
	Arg     string
	Got     string
	Allowed []string
}

func (e *ArgError) Error() string {
	if e.Got == "" {
		return fmt.Sprintf("%s: missing %s", e.Command, e.Arg)
	}
	msg := fmt.Sprintf("%s: invalid %s %q", e.Command, e.Arg, e.Got)
	if len(e.Allowed) > 0 {
		msg += " (use " + strings.Join(e.Allowed, ", ") + ")"
	}
	return msg
}

// CheckArgs validates args against the command's declared arguments. Enum
// values match case-insensitively.
func (c *Command) CheckArgs(args []string) error {
	if c == nil {
		return nil
	}
	for i, def := range c.Args {
		if i >= len(args) {
			if def.Required {
				return &ArgError{Command: c.Name, Arg: def.Name}
			}
			continue
		}
		if def.Type != ArgTypeEnum || len(def.Values) == 0 {
			continue
		}
		if !containsFold(def.Values, args[i]) {
			return &ArgError{Command: c.Name, Arg: def.Name, Got: args[i], Allowed: def.Values}
		}
	}
	return nil
}

func containsFold(values []string, s string) bool {
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
