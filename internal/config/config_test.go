// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/ragdesk-tui/internal/model"
)

// isolate points the config home at a temp dir and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("RAGDESK_HOME", dir)
	for _, key := range []string{"RAGDESK_API_URL", "RAGDESK_MODEL", "RAGDESK_MODE", "RAGDESK_USE_RAG", "RAGDESK_LOG_LEVEL", "OTEL_EXPORTER_OTLP_ENDPOINT"} {
		t.Setenv(key, "")
	}
	return dir
}

// =============================================================================
// DEFAULTS AND LOADING
// =============================================================================

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "http://localhost:8000", cfg.API.BaseURL)
	assert.Equal(t, 60*time.Second, cfg.Timeout())
	assert.Equal(t, 3*time.Second, cfg.ReloadInterval())
	assert.Equal(t, 30*time.Second, cfg.HealthInterval())
	assert.Equal(t, int64(10*1024*1024), cfg.MaxUploadBytes())
	assert.Equal(t, model.DefaultChatConfig(), cfg.ChatDefaults())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().API, cfg.API)
}

func TestLoad_TOMLPartialKeepsDefaults(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[api]
base_url = "https://rag.example.com/"

[chat]
mode = "brief"
`), 0644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://rag.example.com", cfg.API.BaseURL, "trailing slash trimmed")
	assert.Equal(t, "brief", cfg.Chat.Mode)
	assert.True(t, cfg.Chat.UseRAG)
	assert.Equal(t, "gemini", cfg.Chat.ModelName)

	info, err := os.Stat(path)
	require.NoError(t, err)
	if os.PathSeparator == '/' {
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}
}

func TestLoad_JSONFallback(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"chat":{"model_name":"other"}}`), 0600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "other", cfg.Chat.ModelName)
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("RAGDESK_API_URL", "http://10.0.0.5:9000")
	t.Setenv("RAGDESK_MODE", "BRIEF")
	t.Setenv("RAGDESK_USE_RAG", "false")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:9000", cfg.API.BaseURL)
	assert.Equal(t, "brief", cfg.Chat.Mode)
	assert.False(t, cfg.Chat.UseRAG)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "collector:4318", cfg.Telemetry.OTLPEndpoint)
}

func TestLoad_InvalidValues(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[chat]
mode = "verbose"

[api]
base_url = "not a url"
`), 0600))

	_, err := Load(path)
	require.Error(t, err)

	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	fields := map[string]bool{}
	for _, e := range verrs {
		fields[e.Field] = true
	}
	assert.True(t, fields["chat.mode"])
	assert.True(t, fields["api.base_url"])
}

func TestLoadDotEnv_DoesNotOverrideEnvironment(t *testing.T) {
	isolate(t)
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("RAGDESK_TEST_DOTENV=from-file\nRAGDESK_TEST_DOTENV_SET=from-file\n"), 0600))
	t.Setenv("RAGDESK_TEST_DOTENV_SET", "from-env")
	os.Unsetenv("RAGDESK_TEST_DOTENV")
	t.Cleanup(func() { os.Unsetenv("RAGDESK_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(envFile))
	assert.Equal(t, "from-file", os.Getenv("RAGDESK_TEST_DOTENV"))
	assert.Equal(t, "from-env", os.Getenv("RAGDESK_TEST_DOTENV_SET"))

	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestSave_RoundTrip(t *testing.T) {
	dir := isolate(t)
	cfg := Default()
	cfg.Chat.ModelName = "saved-model"

	require.NoError(t, Save(cfg, ""))
	loaded, err := Load(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)
	assert.Equal(t, "saved-model", loaded.Chat.ModelName)

	jsonPath := filepath.Join(dir, "out.json")
	require.NoError(t, Save(cfg, jsonPath))
	loaded, err = Load(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "saved-model", loaded.Chat.ModelName)
}

// =============================================================================
// GET/SET
// =============================================================================

func TestGetSet_DotNotation(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Set("api.timeout_secs", "90"))
	require.NoError(t, cfg.Set("chat.use_rag", "no"))
	require.NoError(t, cfg.Set("api.rate_limit", "2.5"))
	require.NoError(t, cfg.Set("upload.allowed_extensions", "txt, pdf, md"))
	require.NoError(t, cfg.Set("ui.word-wrap", 100))

	v, err := cfg.Get("api.timeout_secs")
	require.NoError(t, err)
	assert.Equal(t, 90, v)
	assert.False(t, cfg.Chat.UseRAG)
	assert.Equal(t, 2.5, cfg.API.RateLimit)
	assert.Equal(t, []string{"txt", "pdf", "md"}, cfg.Upload.AllowedExtensions)
	assert.Equal(t, 100, cfg.UI.WordWrap)

	_, err = cfg.Get("api.nope")
	assert.EqualError(t, err, "unknown field: api.nope")
	assert.Error(t, cfg.Set("api.base_url.x", "y"))
	assert.Error(t, cfg.Set("api.timeout_secs", "soon"))
	assert.Error(t, cfg.Set("", "x"))
}

func TestKeys_CoverEverySection(t *testing.T) {
	keys := Keys()
	assert.Contains(t, keys, "version")
	assert.Contains(t, keys, "api.base_url")
	assert.Contains(t, keys, "polling.reload_interval_secs")
	assert.Contains(t, keys, "storage.autosave")

	cfg := Default()
	for _, key := range keys {
		_, err := cfg.Get(key)
		assert.NoError(t, err, key)
	}
}

func TestClone_IsDeep(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()
	clone.Upload.AllowedExtensions[0] = "doc"
	assert.Equal(t, "txt", cfg.Upload.AllowedExtensions[0])
}

// =============================================================================
// GLOBAL
// =============================================================================

func TestGlobal_ConcurrentAccess(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	t.Cleanup(ResetGlobalForTesting)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			SetGlobal(Default())
		}()
		go func() {
			defer wg.Done()
			assert.NotNil(t, Global())
		}()
	}
	wg.Wait()
}

func TestSetGlobal_Overwrites(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	t.Cleanup(ResetGlobalForTesting)

	_ = Global()
	custom := Default()
	custom.Version = "custom"
	SetGlobal(custom)
	assert.Equal(t, "custom", Global().Version)
}
