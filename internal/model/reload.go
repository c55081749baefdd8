// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// ReloadStatus is the backend's snapshot of the document reindex job.
type ReloadStatus struct {
	InProgress bool           `json:"in_progress"`
	LastError  *string        `json:"last_error"`
	LastResult map[string]any `json:"last_result"`
}

// Failed reports whether the finished job recorded an error.
func (s ReloadStatus) Failed() bool {
	return s.LastError != nil && *s.LastError != ""
}

// ErrorMessage returns the recorded error or an empty string.
func (s ReloadStatus) ErrorMessage() string {
	if s.LastError == nil {
		return ""
	}
	return *s.LastError
}
