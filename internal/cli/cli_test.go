// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/ragdesk-tui/internal/api"
	"github.com/jeranaias/ragdesk-tui/internal/api/apitest"
	"github.com/jeranaias/ragdesk-tui/internal/auth"
	"github.com/jeranaias/ragdesk-tui/internal/model"
	"github.com/jeranaias/ragdesk-tui/internal/storage"
)

// result is one captured invocation.
type result struct {
	code   int
	stdout string
	stderr string
}

// envelope decodes the --json output.
func (r result) envelope(t *testing.T) (JSONResponse, map[string]any) {
	t.Helper()
	var resp JSONResponse
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &resp), r.stdout)
	data, _ := resp.Data.(map[string]any)
	return resp, data
}

// testHome isolates config, token, history and logs in a temp dir.
func testHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("RAGDESK_HOME", home)
	t.Setenv("NO_COLOR", "1")
	t.Setenv("RAGDESK_API_URL", "")
	return home
}

func runCLI(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &out, &errOut)
	return result{code: code, stdout: out.String(), stderr: errOut.String()}
}

// against prefixes args with --api-url for backend.
func against(backend *apitest.Server, args ...string) []string {
	return append([]string{"--api-url", backend.URL()}, args...)
}

// =============================================================================
// ASK
// =============================================================================

func TestAsk_PrintsAnswerAndSources(t *testing.T) {
	testHome(t)
	backend := apitest.NewServer(t)

	r := runCLI(t, "", against(backend, "ask", "What", "is", "RAG?")...)

	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, "echo: What is RAG?")
	assert.Contains(t, r.stdout, "Sources (1)")
	assert.Contains(t, r.stdout, "guide.pdf")
	require.Len(t, backend.ChatRequests(), 1)
	assert.True(t, backend.ChatRequests()[0].UseRAG)
}

func TestAsk_JSONCarriesSessionSettings(t *testing.T) {
	testHome(t)
	backend := apitest.NewServer(t)

	r := runCLI(t, "", against(backend, "--json", "ask", "--mode", "brief", "--no-rag", "Hola")...)

	require.Equal(t, ExitSuccess, r.code, r.stderr)
	resp, data := r.envelope(t)
	assert.True(t, resp.Success)
	assert.Equal(t, "echo: Hola", data["answer"])
	assert.Equal(t, string(model.ModeBrief), data["mode"])
	assert.Equal(t, false, data["use_rag"])
	assert.NotEmpty(t, data["thread_id"])
}

func TestAsk_ReadsQuestionFromStdin(t *testing.T) {
	testHome(t)
	backend := apitest.NewServer(t)

	r := runCLI(t, "  From a pipe\n", against(backend, "ask")...)

	require.Equal(t, ExitSuccess, r.code, r.stderr)
	require.Len(t, backend.ChatRequests(), 1)
	assert.Equal(t, "From a pipe", backend.ChatRequests()[0].Message)
}

func TestAsk_EmptyQuestionIsUsageError(t *testing.T) {
	testHome(t)
	backend := apitest.NewServer(t)

	r := runCLI(t, "", against(backend, "ask")...)

	assert.Equal(t, ExitUsageError, r.code)
	assert.Contains(t, r.stderr, "no question given")
	assert.Equal(t, 0, backend.Calls("chat"))
}

func TestAsk_BadModeIsUsageError(t *testing.T) {
	testHome(t)
	backend := apitest.NewServer(t)

	r := runCLI(t, "", against(backend, "ask", "--mode", "verbose", "Hola")...)

	assert.Equal(t, ExitUsageError, r.code)
	assert.Equal(t, 0, backend.Calls("chat"))
}

// =============================================================================
// SYSTEM
// =============================================================================

func TestHealth_ShowsComponents(t *testing.T) {
	testHome(t)
	backend := apitest.NewServer(t)

	r := runCLI(t, "", against(backend, "health")...)

	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, "healthy")
	assert.Contains(t, r.stdout, "VECTOR_STORE")
	assert.Contains(t, r.stdout, "1.0.0")
}

func TestHealth_UnreachableBackendExitsWithNetworkCode(t *testing.T) {
	testHome(t)
	backend := apitest.NewServer(t)
	backend.Close()

	r := runCLI(t, "", against(backend, "health")...)

	assert.Equal(t, ExitNetworkError, r.code)
	assert.Contains(t, r.stderr, "[ERROR]")
	assert.Contains(t, r.stderr, "Is the backend running?")
}

func TestStats_JSON(t *testing.T) {
	testHome(t)
	backend := apitest.NewServer(t)

	r := runCLI(t, "", against(backend, "--json", "stats")...)

	require.Equal(t, ExitSuccess, r.code, r.stderr)
	_, data := r.envelope(t)
	assert.Equal(t, "operational", data["status"])
	assert.EqualValues(t, 3725, data["uptime_seconds"])
	info, ok := data["info"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "RAG Chatbot API", info["name"])
}

func TestReport_WithoutLoginExitsWithAuthCode(t *testing.T) {
	testHome(t)
	backend := apitest.NewServer(t)

	r := runCLI(t, "", against(backend, "report")...)

	assert.Equal(t, ExitAuthError, r.code)
	assert.Contains(t, r.stderr, "Not authenticated")
	assert.Contains(t, r.stderr, "ragdesk login")
}

// =============================================================================
// AUTH
// =============================================================================

func TestLogin_StoresTokenForLaterCommands(t *testing.T) {
	home := testHome(t)
	backend := apitest.NewServer(t)

	r := runCLI(t, apitest.Password+"\n", against(backend, "login", "--email", "admin@example.com", "--password-stdin")...)
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, "Logged in as admin@example.com")

	data, err := os.ReadFile(filepath.Join(home, "admin_token"))
	require.NoError(t, err)
	assert.Equal(t, apitest.Token, strings.TrimSpace(string(data)))

	r = runCLI(t, "", against(backend, "whoami")...)
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, "admin@example.com")

	r = runCLI(t, "", against(backend, "report")...)
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, "2025-01-01")

	r = runCLI(t, "", against(backend, "logout")...)
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.NoFileExists(t, filepath.Join(home, "admin_token"))
}

func TestLogin_PromptsForEmail(t *testing.T) {
	testHome(t)
	backend := apitest.NewServer(t)

	r := runCLI(t, "admin@example.com\n"+apitest.Password+"\n", against(backend, "login")...)

	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stderr, "Email:")
}

func TestLogin_WrongPasswordExitsWithAuthCode(t *testing.T) {
	testHome(t)
	backend := apitest.NewServer(t)

	r := runCLI(t, "nope\n", against(backend, "login", "-e", "admin@example.com", "--password-stdin")...)

	assert.Equal(t, ExitAuthError, r.code)
	assert.Contains(t, r.stderr, "Incorrect email or password")
}

func TestLogin_InvalidEmailNeverReachesBackend(t *testing.T) {
	testHome(t)
	backend := apitest.NewServer(t)

	r := runCLI(t, "secret\n", against(backend, "login", "-e", "not-an-email", "--password-stdin")...)

	assert.Equal(t, ExitUsageError, r.code)
	assert.Contains(t, r.stderr, "must be a valid email address")
	assert.Equal(t, 0, backend.Calls("login"))
}

func TestWhoami_WithoutSession(t *testing.T) {
	testHome(t)
	backend := apitest.NewServer(t)

	r := runCLI(t, "", against(backend, "whoami")...)

	assert.Equal(t, ExitAuthError, r.code)
	assert.Equal(t, 0, backend.Calls("me"))
}

// =============================================================================
// DOCUMENTS
// =============================================================================

func TestDocsList_FiltersBySearch(t *testing.T) {
	testHome(t)
	backend := apitest.NewServer(t)

	r := runCLI(t, "", against(backend, "--json", "docs", "list", "--search", "unesco")...)

	require.Equal(t, ExitSuccess, r.code, r.stderr)
	_, data := r.envelope(t)
	assert.EqualValues(t, 1, data["shown"])
	assert.EqualValues(t, 2, data["total"])
	docs := data["documents"].([]any)
	require.Len(t, docs, 1)
	assert.Equal(t, "guide.pdf", docs[0].(map[string]any)["filename"])
}

func TestDocsList_Text(t *testing.T) {
	testHome(t)
	backend := apitest.NewServer(t)

	r := runCLI(t, "", against(backend, "docs", "ls")...)

	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, "notes.txt")
	assert.Contains(t, r.stdout, "Showing 2 of 2 documents")
}

func TestDocsUpload_RejectsUnsupportedTypeLocally(t *testing.T) {
	testHome(t)
	backend := apitest.NewServer(t)
	path := filepath.Join(t.TempDir(), "report.docx")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	r := runCLI(t, "", against(backend, "docs", "upload", path)...)

	assert.Equal(t, ExitUsageError, r.code)
	assert.Contains(t, r.stdout+r.stderr, "unsupported file type")
	assert.Equal(t, 0, backend.Calls("upload"))
}

func TestDocsDelete_CancelledAtPrompt(t *testing.T) {
	testHome(t)
	backend := apitest.NewServer(t)

	r := runCLI(t, "n\n", against(backend, "docs", "delete", "guide.pdf")...)

	assert.Equal(t, ExitSuccess, r.code)
	assert.Contains(t, r.stderr, "Cancelled")
	assert.Equal(t, 0, backend.Calls("delete"))
}

// =============================================================================
// HISTORY AND CONFIG
// =============================================================================

func seedHistory(t *testing.T, home string) string {
	t.Helper()
	store, err := storage.Open(filepath.Join(home, "history.db"))
	require.NoError(t, err)
	defer store.Close()
	id, err := store.Save(context.Background(), &storage.StoredConversation{
		Model:  "gemini-2.0-flash",
		Mode:   model.ModeExtended,
		UseRAG: true,
		Messages: []model.Message{
			model.NewUserMessage("What is RAG?"),
			model.NewAssistantMessage("Retrieval plus generation.", nil, nil, model.Now()),
		},
	})
	require.NoError(t, err)
	return id
}

func TestHistory_ListShowExportDelete(t *testing.T) {
	home := testHome(t)
	id := seedHistory(t, home)

	r := runCLI(t, "", "history", "list")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, id[:8])

	r = runCLI(t, "", "history", "show", "1")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, "Retrieval plus generation.")

	outDir := t.TempDir()
	r = runCLI(t, "", "--json", "history", "export", id[:6], "--format", "json", "--output", outDir)
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	_, data := r.envelope(t)
	path, _ := data["path"].(string)
	assert.FileExists(t, path)
	assert.Equal(t, ".json", filepath.Ext(path))

	r = runCLI(t, "", "history", "delete", id)
	require.Equal(t, ExitSuccess, r.code, r.stderr)

	r = runCLI(t, "", "history", "show", id)
	assert.Equal(t, ExitNotFoundError, r.code)
}

func TestHistory_SearchMessages(t *testing.T) {
	home := testHome(t)
	seedHistory(t, home)

	r := runCLI(t, "", "history", "search", "--messages", "generation")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, "What is RAG?")

	r = runCLI(t, "", "history", "search", "zzz")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, "No conversations found.")
}

func TestConfig_SetThenGet(t *testing.T) {
	home := testHome(t)

	r := runCLI(t, "", "config", "set", "ui.theme", "light")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.FileExists(t, filepath.Join(home, "config.toml"))

	r = runCLI(t, "", "config", "get", "ui.theme")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Equal(t, "light", strings.TrimSpace(r.stdout))
}

func TestConfig_SetRejectsInvalidValue(t *testing.T) {
	home := testHome(t)

	r := runCLI(t, "", "config", "set", "ui.theme", "sepia")
	assert.Equal(t, ExitUsageError, r.code)
	assert.NoFileExists(t, filepath.Join(home, "config.toml"))

	r = runCLI(t, "", "config", "get", "no.such.key")
	assert.Equal(t, ExitUsageError, r.code)
}

func TestConfig_APIURLFlagIsNotPersisted(t *testing.T) {
	testHome(t)

	r := runCLI(t, "", "--api-url", "http://override:9000", "config", "set", "ui.word_wrap", "100")
	require.Equal(t, ExitSuccess, r.code, r.stderr)

	r = runCLI(t, "", "config", "get", "api.base_url")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.NotContains(t, r.stdout, "override")
}

// =============================================================================
// GENERAL
// =============================================================================

func TestVersion_JSON(t *testing.T) {
	testHome(t)

	r := runCLI(t, "", "--json", "version")

	require.Equal(t, ExitSuccess, r.code, r.stderr)
	resp, data := r.envelope(t)
	assert.True(t, resp.Success)
	assert.Equal(t, "ragdesk version", resp.Command)
	assert.Equal(t, Version, data["version"])
	assert.NotEmpty(t, data["go_version"])
}

func TestUnknownCommandIsUsageError(t *testing.T) {
	testHome(t)

	r := runCLI(t, "", "bogus")
	assert.Equal(t, ExitUsageError, r.code)

	r = runCLI(t, "", "version", "--nope")
	assert.Equal(t, ExitUsageError, r.code)
}

func TestJSONErrorEnvelope(t *testing.T) {
	testHome(t)
	backend := apitest.NewServer(t)

	r := runCLI(t, "", against(backend, "--json", "report")...)

	assert.Equal(t, ExitAuthError, r.code)
	var resp JSONResponse
	require.NoError(t, json.Unmarshal([]byte(r.stderr), &resp), r.stderr)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Contains(t, *resp.Error, "Not authenticated")
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"usage", usageErrorf("bad"), ExitUsageError},
		{"credentials", &auth.CredentialError{Fields: map[string]string{"email": "required"}}, ExitUsageError},
		{"config", &ConfigError{Err: errors.New("broken")}, ExitConfigError},
		{"not authenticated", auth.ErrNotAuthenticated, ExitAuthError},
		{"unauthorized", &CommandError{Command: "x", Action: "y", Err: &api.ClientError{Type: api.ErrTypeUnauthorized, StatusCode: 401}}, ExitAuthError},
		{"connection", api.ErrConnection, ExitNetworkError},
		{"timeout", &api.ClientError{Type: api.ErrTypeTimeout}, ExitTimeoutError},
		{"not found", &api.ClientError{Type: api.ErrTypeServer, StatusCode: 404}, ExitNotFoundError},
		{"history not found", storage.ErrConversationNotFound, ExitNotFoundError},
		{"tty", &TTYRequiredError{Operation: "tui"}, ExitUsageError},
		{"other", errors.New("boom"), ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestCommandTree(t *testing.T) {
	opts := &options{}
	root := newRootCmd(opts, newEnv(opts))

	for _, path := range [][]string{
		{"ask"}, {"chat"}, {"login"}, {"logout"}, {"whoami"},
		{"health"}, {"stats"}, {"report"},
		{"docs", "list"}, {"docs", "upload"}, {"docs", "delete"}, {"docs", "reload"}, {"docs", "watch"},
		{"history", "list"}, {"history", "show"}, {"history", "search"}, {"history", "export"}, {"history", "delete"},
		{"config", "show"}, {"config", "get"}, {"config", "set"}, {"config", "keys"}, {"config", "path"},
		{"version"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
		assert.NotEmpty(t, cmd.Short, path)
		assert.IsType(t, &cobra.Command{}, cmd)
	}
}
