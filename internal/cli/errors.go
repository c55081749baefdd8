// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jeranaias/ragdesk-tui/internal/api"
	"github.com/jeranaias/ragdesk-tui/internal/auth"
	"github.com/jeranaias/ragdesk-tui/internal/documents"
	"github.com/jeranaias/ragdesk-tui/internal/storage"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitUsageError    = 2
	ExitConfigError   = 3
	ExitAuthError     = 4
	ExitNetworkError  = 5
	ExitNotFoundError = 7
	ExitTimeoutError  = 8
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError is a malformed invocation: bad flags, wrong argument count or
// input rejected before any request was made.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }
func (e *UsageError) Unwrap() error { return e.Err }

// ConfigError wraps a configuration load or save failure.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return "config: " + e.Err.Error() }
func (e *ConfigError) Unwrap() error { return e.Err }

// CommandError adds the failing command and action to an error.
type CommandError struct {
	Command string
	Action  string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, api.Detail(e.Err))
}

func (e *CommandError) Unwrap() error { return e.Err }

func usageErrorf(format string, a ...any) error {
	return &UsageError{Err: fmt.Errorf(format, a...)}
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

// ExitCode maps err to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usage *UsageError
	var cfgErr *ConfigError
	var credErr *auth.CredentialError
	var ttyErr *TTYRequiredError
	switch {
	case errors.As(err, &usage), errors.As(err, &credErr), errors.As(err, &ttyErr),
		documents.IsValidation(err), isCobraUsage(err):
		return ExitUsageError
	case errors.As(err, &cfgErr):
		return ExitConfigError
	case errors.Is(err, auth.ErrNotAuthenticated):
		return ExitAuthError
	case errors.Is(err, storage.ErrConversationNotFound):
		return ExitNotFoundError
	}

	switch api.TypeOf(err) {
	case api.ErrTypeUnauthorized:
		return ExitAuthError
	case api.ErrTypeConnection:
		return ExitNetworkError
	case api.ErrTypeTimeout:
		return ExitTimeoutError
	}

	var ce *api.ClientError
	if errors.As(err, &ce) && ce.StatusCode == 404 {
		return ExitNotFoundError
	}
	return ExitGeneralError
}

// isCobraUsage recognises the plain errors cobra returns for unknown
// commands and flags.
func isCobraUsage(err error) bool {
	msg := err.Error()
	for _, prefix := range []string{"unknown command", "unknown flag", "unknown shorthand flag", "accepts ", "requires at least", "invalid argument"} {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError writes err for a human, or as a JSON envelope in JSON mode.
func DisplayError(w io.Writer, command string, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		p := &printer{out: w, errOut: w, json: true, command: command}
		_ = p.JSON(NewJSONErrorResponse(command, errors.New(errorText(err))))
		return
	}

	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), errorText(err))
	if hint := errorHint(err); hint != "" {
		fmt.Fprintln(w, DimStyle.Render(hint))
	}
}

// errorText prefers the backend's own detail over the wrapped chain.
func errorText(err error) string {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce.Error()
	}
	var clientErr *api.ClientError
	if errors.As(err, &clientErr) {
		return api.Detail(err)
	}
	return err.Error()
}

func errorHint(err error) string {
	switch ExitCode(err) {
	case ExitAuthError:
		return "Log in with: ragdesk login"
	case ExitNetworkError:
		return "Is the backend running? Check api.base_url with: ragdesk config get api.base_url"
	case ExitUsageError:
		return "Run with --help for usage."
	}
	return ""
}
