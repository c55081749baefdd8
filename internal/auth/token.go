// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jeranaias/ragdesk-tui/internal/config"
	"github.com/jeranaias/ragdesk-tui/internal/util"
)

// TokenFileName is the token file inside the config directory.
const TokenFileName = "admin_token"

// =============================================================================
// JWT HELPERS
// =============================================================================

// TokenExpiry reads the exp claim of a JWT without verifying it. ok is false
// when the token is not a JWT or carries no exp.
func TokenExpiry(token string) (exp time.Time, ok bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	t, err := claims.GetExpirationTime()
	if err != nil || t == nil {
		return time.Time{}, false
	}
	return t.Time, true
}

// Expired reports whether token carries an exp claim at or before now.
func Expired(token string, now time.Time) bool {
	exp, ok := TokenExpiry(token)
	return ok && !now.Before(exp)
}

// TokenSubject returns the sub claim of a JWT, if any.
func TokenSubject(token string) string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return ""
	}
	sub, _ := claims.GetSubject()
	return sub
}

// =============================================================================
// FILE TOKEN STORE
// =============================================================================

// FileTokenStore persists the bearer token in a single 0600 file. It
// implements api.TokenStore.
type FileTokenStore struct {
	path string
	now  func() time.Time

	mu     sync.Mutex
	loaded bool
	token  string
}

// NewFileTokenStore creates a store at path, or at ~/.ragdesk/admin_token
// when path is empty. Nothing is read until the first Token call.
func NewFileTokenStore(path string) *FileTokenStore {
	if path == "" {
		path = filepath.Join(config.ConfigDir(), TokenFileName)
	}
	return &FileTokenStore{path: path, now: time.Now}
}

// Path returns the token file location.
func (s *FileTokenStore) Path() string {
	return s.path
}

// Token returns the stored token, or "" when there is none or it has
// expired. An expired token is removed from disk.
func (s *FileTokenStore) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		data, err := os.ReadFile(s.path)
		if err == nil {
			s.token = strings.TrimSpace(string(data))
		}
		s.loaded = true
	}

	if s.token != "" && Expired(s.token, s.now()) {
		s.token = ""
		_ = os.Remove(s.path)
	}
	return s.token
}

// SetToken writes token atomically with 0600 permissions.
func (s *FileTokenStore) SetToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return s.Clear()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := util.AtomicWriteFile(s.path, []byte(token+"\n"), 0600); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	s.token = token
	s.loaded = true
	return nil
}

// Clear deletes the token file. A missing file is not an error.
func (s *FileTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.loaded = true
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token: %w", err)
	}
	return nil
}
