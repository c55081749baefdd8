// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/alecthomas/chroma/v2/quick"
)

// =============================================================================
// JSON ENVELOPE
// =============================================================================

// JSONResponse is the envelope every command prints in --json mode.
type JSONResponse struct {
	// Success indicates whether the command completed successfully.
	Success bool `json:"success"`

	// Data is the command-specific payload.
	Data any `json:"data"`

	// Error is the failure message, null on success.
	Error *string `json:"error"`

	// Timestamp is when the response was produced (RFC 3339, UTC).
	Timestamp string `json:"timestamp"`

	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a successful response.
func NewJSONResponse(command string, data any) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a failed response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	msg := err.Error()
	return &JSONResponse{
		Success:   false,
		Error:     &msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// =============================================================================
// PRINTER
// =============================================================================

// printer writes command output in the mode selected by the global flags.
type printer struct {
	out     io.Writer
	errOut  io.Writer
	json    bool
	command string
}

// JSON writes resp indented. On a color terminal the JSON is highlighted
// with chroma; piped output stays plain.
func (p *printer) JSON(resp *JSONResponse) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(resp); err != nil {
		return fmt.Errorf("encode JSON output: %w", err)
	}

	if colorsEnabled(p.out) {
		if err := quick.Highlight(p.out, buf.String(), "json", "terminal256", "monokai"); err == nil {
			return nil
		}
	}
	_, err := p.out.Write(buf.Bytes())
	return err
}

// Result prints data. In text mode render produces the human output; in
// JSON mode data is wrapped in the envelope.
func (p *printer) Result(data any, render func(w io.Writer)) error {
	if p.json {
		return p.JSON(NewJSONResponse(p.command, data))
	}
	if render != nil {
		render(p.out)
	}
	return nil
}

// Println writes a human line to stdout, or to stderr in JSON mode so the
// JSON stream stays parseable.
func (p *printer) Println(a ...any) {
	if p.json {
		fmt.Fprintln(p.errOut, a...)
		return
	}
	fmt.Fprintln(p.out, a...)
}

// Printf is Println with formatting.
func (p *printer) Printf(format string, a ...any) {
	if p.json {
		fmt.Fprintf(p.errOut, format, a...)
		return
	}
	fmt.Fprintf(p.out, format, a...)
}
