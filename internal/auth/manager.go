// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jeranaias/ragdesk-tui/internal/api"
)

// ErrNotAuthenticated is returned when an operation needs a stored token and
// there is none.
var ErrNotAuthenticated = errors.New("not authenticated")

// API is the subset of the backend client the Manager uses.
type API interface {
	Login(ctx context.Context, email, password string) (*api.LoginResponse, error)
	Me(ctx context.Context) (*api.User, error)
}

// Credentials are the login form fields.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// CredentialError lists the invalid login fields.
type CredentialError struct {
	Fields map[string]string
}

func (e *CredentialError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, field := range []string{"email", "password"} {
		if msg, ok := e.Fields[field]; ok {
			parts = append(parts, field+": "+msg)
		}
	}
	return "invalid credentials: " + strings.Join(parts, "; ")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that the email is well formed and the password present.
func (c Credentials) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &CredentialError{Fields: make(map[string]string)}
	for _, fe := range verrs {
		name := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			out.Fields[name] = "required"
		case "email":
			out.Fields[name] = "must be a valid email address"
		default:
			out.Fields[name] = "failed " + fe.Tag()
		}
	}
	return out
}

// =============================================================================
// MANAGER
// =============================================================================

// Manager owns the admin session.
type Manager struct {
	client API
	tokens api.TokenStore
	logger *zap.Logger

	mu   sync.RWMutex
	user *api.User
}

// NewManager creates a Manager. tokens should be the same store the API
// client reads from.
func NewManager(client API, tokens api.TokenStore, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{client: client, tokens: tokens, logger: logger}
}

// Login validates the credentials, authenticates and stores the token.
func (m *Manager) Login(ctx context.Context, email, password string) (*api.User, error) {
	creds := Credentials{Email: strings.TrimSpace(email), Password: password}
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	resp, err := m.client.Login(ctx, creds.Email, creds.Password)
	if err != nil {
		m.logger.Warn("LOGIN_FAILED", zap.String("email", creds.Email), zap.String("detail", api.Detail(err)))
		return nil, err
	}
	if err := m.tokens.SetToken(resp.AccessToken); err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}

	user := resp.User
	if user == nil {
		user = &api.User{Email: creds.Email}
	}
	m.mu.Lock()
	m.user = user
	m.mu.Unlock()

	m.logger.Info("LOGIN_SUCCESS", zap.String("email", user.Email), zap.String("role", user.Role))
	return user, nil
}

// Verify confirms the stored token with /api/auth/me and refreshes the
// cached user. Any failure logs the session out.
func (m *Manager) Verify(ctx context.Context) (*api.User, error) {
	if m.tokens.Token() == "" {
		m.clearUser()
		return nil, ErrNotAuthenticated
	}

	user, err := m.client.Me(ctx)
	if err != nil {
		m.logger.Info("SESSION_INVALID", zap.String("detail", api.Detail(err)))
		_ = m.Logout()
		return nil, err
	}

	m.mu.Lock()
	m.user = user
	m.mu.Unlock()
	return user, nil
}

// Logout forgets the user and deletes the stored token.
func (m *Manager) Logout() error {
	m.clearUser()
	if err := m.tokens.Clear(); err != nil {
		return err
	}
	m.logger.Info("LOGOUT")
	return nil
}

// User returns the cached user, or nil.
func (m *Manager) User() *api.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// IsAuthenticated reports whether a usable token is stored.
func (m *Manager) IsAuthenticated() bool {
	return m.tokens.Token() != ""
}

// IsAdmin reports whether the cached user has the admin role.
func (m *Manager) IsAdmin() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.IsAuthenticated() && m.user.IsAdmin()
}

func (m *Manager) clearUser() {
	m.mu.Lock()
	m.user = nil
	m.mu.Unlock()
}
