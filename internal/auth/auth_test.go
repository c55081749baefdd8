// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jeranaias/ragdesk-tui/internal/api"
	"github.com/jeranaias/ragdesk-tui/internal/api/apitest"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("backend-secret"))
	require.NoError(t, err)
	return tok
}

// =============================================================================
// JWT TESTS
// =============================================================================

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tok := signedToken(t, jwt.MapClaims{"sub": "admin@example.com", "exp": exp.Unix()})

	got, ok := TokenExpiry(tok)
	require.True(t, ok)
	assert.True(t, got.Equal(exp))
	assert.False(t, Expired(tok, time.Now()))
	assert.True(t, Expired(tok, exp.Add(time.Second)))
	assert.Equal(t, "admin@example.com", TokenSubject(tok))

	_, ok = TokenExpiry("not-a-jwt")
	assert.False(t, ok)
	assert.False(t, Expired("not-a-jwt", time.Now()))

	noExp := signedToken(t, jwt.MapClaims{"sub": "x"})
	_, ok = TokenExpiry(noExp)
	assert.False(t, ok)
}

// =============================================================================
// FILE TOKEN STORE TESTS
// =============================================================================

func TestFileTokenStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", TokenFileName)
	store := NewFileTokenStore(path)
	assert.Empty(t, store.Token())

	require.NoError(t, store.SetToken("abc.def.ghi"))
	assert.Equal(t, "abc.def.ghi", store.Token())

	info, err := os.Stat(path)
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}

	reopened := NewFileTokenStore(path)
	assert.Equal(t, "abc.def.ghi", reopened.Token())

	require.NoError(t, reopened.Clear())
	require.NoError(t, reopened.Clear())
	assert.Empty(t, reopened.Token())
	_, err = os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFileTokenStore_ExpiredTokenIsAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), TokenFileName)
	expired := signedToken(t, jwt.MapClaims{"exp": time.Now().Add(-time.Minute).Unix()})
	require.NoError(t, os.WriteFile(path, []byte(expired+"\n"), 0600))

	store := NewFileTokenStore(path)
	assert.Empty(t, store.Token())
	_, err := os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist), "expired token removed")
}

func TestFileTokenStore_ExpiresWhileRunning(t *testing.T) {
	path := filepath.Join(t.TempDir(), TokenFileName)
	now := time.Now()
	tok := signedToken(t, jwt.MapClaims{"exp": now.Add(time.Minute).Unix()})

	store := NewFileTokenStore(path)
	store.now = func() time.Time { return now }
	require.NoError(t, store.SetToken(tok))
	assert.Equal(t, tok, store.Token())

	store.now = func() time.Time { return now.Add(2 * time.Minute) }
	assert.Empty(t, store.Token())
}

func TestFileTokenStore_ClientSendsStoredToken(t *testing.T) {
	backend := apitest.NewServer(t)
	store := NewFileTokenStore(filepath.Join(t.TempDir(), TokenFileName))
	require.NoError(t, store.SetToken(apitest.Token))

	client := api.NewClientWithConfig(&api.ClientConfig{BaseURL: backend.URL(), Tokens: store})
	_, err := client.MetricsReport(context.Background())
	require.NoError(t, err)

	require.NoError(t, store.SetToken("stale"))
	_, err = client.MetricsReport(context.Background())
	assert.ErrorIs(t, err, api.ErrUnauthorized)
	assert.Empty(t, store.Token(), "401 clears the stored token")
}

// =============================================================================
// MANAGER TESTS
// =============================================================================

func newManager(t *testing.T) (*Manager, *apitest.Server, *FileTokenStore) {
	t.Helper()
	backend := apitest.NewServer(t)
	store := NewFileTokenStore(filepath.Join(t.TempDir(), TokenFileName))
	client := api.NewClientWithConfig(&api.ClientConfig{BaseURL: backend.URL(), Tokens: store})
	return NewManager(client, store, zaptest.NewLogger(t)), backend, store
}

func TestManager_Login(t *testing.T) {
	mgr, _, store := newManager(t)
	assert.False(t, mgr.IsAuthenticated())
	assert.False(t, mgr.IsAdmin())

	user, err := mgr.Login(context.Background(), " admin@example.com ", apitest.Password)
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", user.Email)
	assert.Equal(t, apitest.Token, store.Token())
	assert.True(t, mgr.IsAuthenticated())
	assert.True(t, mgr.IsAdmin())
}

func TestManager_LoginRejectsInvalidCredentials(t *testing.T) {
	mgr, backend, _ := newManager(t)

	_, err := mgr.Login(context.Background(), "not-an-email", "")
	var cerr *CredentialError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "must be a valid email address", cerr.Fields["email"])
	assert.Equal(t, "required", cerr.Fields["password"])
	assert.Zero(t, backend.Calls("login"))
}

func TestManager_LoginWrongPassword(t *testing.T) {
	mgr, _, store := newManager(t)

	_, err := mgr.Login(context.Background(), "admin@example.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, "Incorrect email or password", err.Error())
	assert.Empty(t, store.Token())
	assert.Nil(t, mgr.User())
}

func TestManager_Verify(t *testing.T) {
	mgr, backend, store := newManager(t)

	_, err := mgr.Verify(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Zero(t, backend.Calls("me"))

	require.NoError(t, store.SetToken(apitest.Token))
	user, err := mgr.Verify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "admin", user.Role)
	assert.True(t, mgr.IsAdmin())

	backend.SetUser(api.User{Email: "viewer@example.com", Role: "Viewer"})
	_, err = mgr.Verify(context.Background())
	require.NoError(t, err)
	assert.False(t, mgr.IsAdmin())
}

func TestManager_VerifyFailureLogsOut(t *testing.T) {
	mgr, _, store := newManager(t)
	require.NoError(t, store.SetToken("revoked"))

	_, err := mgr.Verify(context.Background())
	assert.ErrorIs(t, err, api.ErrUnauthorized)
	assert.False(t, mgr.IsAuthenticated())
	assert.Nil(t, mgr.User())
}

func TestManager_Logout(t *testing.T) {
	mgr, _, store := newManager(t)
	_, err := mgr.Login(context.Background(), "admin@example.com", apitest.Password)
	require.NoError(t, err)

	require.NoError(t, mgr.Logout())
	assert.Empty(t, store.Token())
	assert.False(t, mgr.IsAdmin())
	assert.Nil(t, mgr.User())
}
