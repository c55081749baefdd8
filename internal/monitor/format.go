// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package monitor

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// =============================================================================
// STATUS
// =============================================================================

// Level groups free-form backend status strings.
type Level int

const (
	LevelUnknown Level = iota
	LevelOK
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelOK:
		return "ok"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// StatusLevel classifies a status such as "operational", "degraded: slow"
// or "unhealthy". Matching is by substring, case-insensitive.
func StatusLevel(status string) Level {
	s := strings.ToLower(status)
	switch {
	// "unhealthy" contains "healthy"; test the error words first.
	case strings.Contains(s, "unhealthy"), strings.Contains(s, "error"), strings.Contains(s, "failed"):
		return LevelError
	case strings.Contains(s, "operational"), strings.Contains(s, "healthy"), strings.Contains(s, "success"):
		return LevelOK
	case strings.Contains(s, "degraded"), strings.Contains(s, "warning"):
		return LevelWarn
	default:
		return LevelUnknown
	}
}

// StatusEmoji returns a glyph for a status string.
func StatusEmoji(status string) string {
	switch StatusLevel(status) {
	case LevelOK:
		return "✅"
	case LevelWarn:
		return "⚠️"
	case LevelError:
		return "❌"
	default:
		return "❓"
	}
}

// =============================================================================
// NUMBERS
// =============================================================================

var printer = message.NewPrinter(language.Spanish)

// FormatNumber renders n with Spanish digit grouping, e.g. 1234567 as
// "1.234.567". Fractions keep at most two digits.
func FormatNumber(n float64) string {
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return printer.Sprintf("%d", int64(n))
	}
	return printer.Sprint(number.Decimal(n, number.MaxFractionDigits(2)))
}

// FormatBytes renders a byte count in Bytes, KB, MB or GB with up to two
// decimals.
func FormatBytes(n int64) string {
	if n <= 0 {
		return "0 Bytes"
	}
	units := []string{"Bytes", "KB", "MB", "GB"}
	v := float64(n)
	i := 0
	for v >= 1024 && i < len(units)-1 {
		v /= 1024
		i++
	}
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + units[i]
}

// FormatUptime renders seconds as "2d 3h 4m 5s", omitting zero parts.
func FormatUptime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int64(seconds)
	days := total / 86400
	hours := total % 86400 / 3600
	minutes := total % 3600 / 60
	secs := total % 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if secs > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%ds", secs))
	}
	return strings.Join(parts, " ")
}

// Truncate keeps the first max runes of text and appends "..." if anything
// was cut.
func Truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	if max < 0 {
		max = 0
	}
	return string(runes[:max]) + "..."
}
