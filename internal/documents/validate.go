// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package documents

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jeranaias/ragdesk-tui/internal/config"
)

// DefaultMaxBytes is the largest accepted upload (10 MiB).
const DefaultMaxBytes int64 = 10 << 20

// DefaultExtensions are the accepted file types.
var DefaultExtensions = []string{"txt", "pdf"}

var (
	// ErrUnsupportedType is returned for files whose extension is not allowed.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrTooLarge is returned for files above the size limit.
	ErrTooLarge = errors.New("file too large")

	// ErrEmptyName is returned for a blank filename.
	ErrEmptyName = errors.New("empty filename")
)

// ValidationError reports a file rejected before upload.
type ValidationError struct {
	Filename string
	Reason   error
	Size     int64
	Rules    Rules
}

func (e *ValidationError) Error() string {
	switch {
	case errors.Is(e.Reason, ErrUnsupportedType):
		return fmt.Sprintf("%s: %v (allowed: %s)", e.Filename, e.Reason, strings.Join(e.Rules.Extensions, ", "))
	case errors.Is(e.Reason, ErrTooLarge):
		return fmt.Sprintf("%s: %v (%s, max %s)", e.Filename, e.Reason, formatMB(e.Size), formatMB(e.Rules.MaxBytes))
	default:
		return fmt.Sprintf("%s: %v", e.Filename, e.Reason)
	}
}

func (e *ValidationError) Unwrap() error {
	return e.Reason
}

// Rules are the client-side upload constraints.
type Rules struct {
	MaxBytes   int64
	Extensions []string
}

// DefaultRules accepts txt and pdf files up to 10 MiB.
func DefaultRules() Rules {
	return Rules{MaxBytes: DefaultMaxBytes, Extensions: append([]string(nil), DefaultExtensions...)}
}

// RulesFromConfig builds Rules from the upload section, falling back to the
// defaults for unset values.
func RulesFromConfig(cfg config.UploadConfig) Rules {
	r := DefaultRules()
	if cfg.MaxSizeMB > 0 {
		r.MaxBytes = int64(cfg.MaxSizeMB) << 20
	}
	if len(cfg.AllowedExtensions) > 0 {
		r.Extensions = r.Extensions[:0]
		for _, ext := range cfg.AllowedExtensions {
			ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
			if ext != "" {
				r.Extensions = append(r.Extensions, ext)
			}
		}
	}
	return r
}

// Validate checks name and size against the default rules.
func Validate(name string, size int64) error {
	return DefaultRules().Validate(name, size)
}

// Validate checks name and size. The extension match is case-insensitive.
func (r Rules) Validate(name string, size int64) error {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return &ValidationError{Filename: name, Reason: ErrEmptyName, Rules: r}
	}
	if !r.Allows(base) {
		return &ValidationError{Filename: base, Reason: ErrUnsupportedType, Size: size, Rules: r}
	}
	if r.MaxBytes > 0 && size > r.MaxBytes {
		return &ValidationError{Filename: base, Reason: ErrTooLarge, Size: size, Rules: r}
	}
	return nil
}

// Allows reports whether the file extension is accepted.
func (r Rules) Allows(name string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" {
		return false
	}
	for _, allowed := range r.Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// Describe returns a short human summary such as "PDF, TXT (max 10 MB)".
func (r Rules) Describe() string {
	upper := make([]string, len(r.Extensions))
	for i, ext := range r.Extensions {
		upper[i] = strings.ToUpper(ext)
	}
	return fmt.Sprintf("%s (max %s)", strings.Join(upper, ", "), formatMB(r.MaxBytes))
}

func formatMB(n int64) string {
	mb := float64(n) / (1 << 20)
	if mb == float64(int64(mb)) {
		return fmt.Sprintf("%d MB", int64(mb))
	}
	return fmt.Sprintf("%.1f MB", mb)
}
