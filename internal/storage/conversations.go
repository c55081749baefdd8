// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/ragdesk-tui/internal/model"
)

// DefaultMaxConversations caps the stored history.
const DefaultMaxConversations = 200

// =============================================================================
// STORED CONVERSATION TYPE
// =============================================================================

// StoredConversation is a persisted transcript.
type StoredConversation struct {
	ID        string          `json:"id"`
	ThreadID  string          `json:"thread_id"`
	Summary   string          `json:"summary"`
	Model     string          `json:"model"`
	Mode      model.Mode      `json:"mode"`
	UseRAG    bool            `json:"use_rag"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Messages  []model.Message `json:"messages"`
}

// GetPreview returns the first user message, truncated to 80 runes.
func (c *StoredConversation) GetPreview() string {
	for _, msg := range c.Messages {
		if msg.Role == model.RoleUser && strings.TrimSpace(msg.Content) != "" {
			return msg.Preview(80)
		}
	}
	return ""
}

// MessageCount returns the number of messages in the conversation.
func (c *StoredConversation) MessageCount() int {
	return len(c.Messages)
}

// ConversationMeta is a listing row.
type ConversationMeta struct {
	ID           string    `json:"id"`
	ThreadID     string    `json:"thread_id"`
	Summary      string    `json:"summary"`
	Model        string    `json:"model"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
	Preview      string    `json:"preview"`
}

// =============================================================================
// SCHEMA
// =============================================================================

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	thread_id  TEXT NOT NULL DEFAULT '',
	summary    TEXT NOT NULL DEFAULT '',
	model      TEXT NOT NULL DEFAULT '',
	mode       TEXT NOT NULL DEFAULT '',
	use_rag    INTEGER NOT NULL DEFAULT 1,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(updated_at);

CREATE TABLE IF NOT EXISTS messages (
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	seq             INTEGER NOT NULL,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	sources         TEXT NOT NULL DEFAULT '',
	metrics         TEXT NOT NULL DEFAULT '',
	timestamp       TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (conversation_id, seq)
);
`

// =============================================================================
// CONVERSATION STORE
// =============================================================================

// ConversationStore is the sqlite-backed transcript history.
type ConversationStore struct {
	db   *sql.DB
	path string

	// MaxConversations limits stored conversations (0 = unlimited).
	MaxConversations int
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*ConversationStore, error) {
	if path == "" {
		return nil, errors.New("storage: empty database path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	// SQLite allows one writer; a single connection also keeps PRAGMAs
	// applied for every statement.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &ConversationStore{db: db, path: path, MaxConversations: DefaultMaxConversations}, nil
}

// Path returns the database file location.
func (s *ConversationStore) Path() string {
	return s.path
}

// Close releases the database.
func (s *ConversationStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// SAVE OPERATIONS
// =============================================================================

// Save writes conv, replacing any earlier version with the same ID, and
// returns its ID. A missing ID is generated and a missing summary derived
// from the first user message.
func (s *ConversationStore) Save(ctx context.Context, conv *StoredConversation) (string, error) {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	if conv.Summary == "" {
		conv.Summary = generateSummary(conv)
	}
	conv.UpdatedAt = time.Now()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = conv.UpdatedAt
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (id, thread_id, summary, model, mode, use_rag, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			thread_id = excluded.thread_id,
			summary = excluded.summary,
			model = excluded.model,
			mode = excluded.mode,
			use_rag = excluded.use_rag,
			updated_at = excluded.updated_at`,
		conv.ID, conv.ThreadID, conv.Summary, conv.Model, string(conv.Mode), conv.UseRAG,
		conv.CreatedAt.UnixMilli(), conv.UpdatedAt.UnixMilli())
	if err != nil {
		return "", fmt.Errorf("save conversation: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE conversation_id = ?", conv.ID); err != nil {
		return "", fmt.Errorf("replace messages: %w", err)
	}
	for i, msg := range conv.Messages {
		sources, metrics, err := encodeExtras(msg)
		if err != nil {
			return "", err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO messages (conversation_id, seq, role, content, sources, metrics, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			conv.ID, i, string(msg.Role), msg.Content, sources, metrics, msg.Timestamp)
		if err != nil {
			return "", fmt.Errorf("save message %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if s.MaxConversations > 0 {
		s.enforceLimit(ctx)
	}
	return conv.ID, nil
}

// generateSummary creates a summary from the first user message.
func generateSummary(conv *StoredConversation) string {
	for _, msg := range conv.Messages {
		if msg.Role == model.RoleUser && strings.TrimSpace(msg.Content) != "" {
			return msg.Preview(50)
		}
	}
	return "New conversation"
}

// enforceLimit removes the least recently updated conversations over the
// limit.
func (s *ConversationStore) enforceLimit(ctx context.Context) {
	_, _ = s.db.ExecContext(ctx, `
		DELETE FROM conversations WHERE id IN (
			SELECT id FROM conversations ORDER BY updated_at DESC, rowid DESC LIMIT -1 OFFSET ?
		)`, s.MaxConversations)
}

func encodeExtras(msg model.Message) (string, string, error) {
	var sources, metrics string
	if len(msg.Sources) > 0 {
		b, err := json.Marshal(msg.Sources)
		if err != nil {
			return "", "", fmt.Errorf("encode sources: %w", err)
		}
		sources = string(b)
	}
	if len(msg.Metrics) > 0 {
		b, err := json.Marshal(msg.Metrics)
		if err != nil {
			return "", "", fmt.Errorf("encode metrics: %w", err)
		}
		metrics = string(b)
	}
	return sources, metrics, nil
}

// =============================================================================
// LOAD OPERATIONS
// =============================================================================

// Load retrieves a conversation by ID. A unique ID prefix of at least four
// characters is accepted too.
func (s *ConversationStore) Load(ctx context.Context, id string) (*StoredConversation, error) {
	id, err := s.resolveID(ctx, id)
	if err != nil {
		return nil, err
	}

	var (
		conv             StoredConversation
		mode             string
		created, updated int64
	)
	err = s.db.QueryRowContext(ctx, `
		SELECT id, thread_id, summary, model, mode, use_rag, created_at, updated_at
		FROM conversations WHERE id = ?`, id).
		Scan(&conv.ID, &conv.ThreadID, &conv.Summary, &conv.Model, &mode, &conv.UseRAG, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	conv.Mode = model.Mode(mode)
	conv.CreatedAt = time.UnixMilli(created)
	conv.UpdatedAt = time.UnixMilli(updated)

	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, sources, metrics, timestamp
		FROM messages WHERE conversation_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			msg              model.Message
			role             string
			sources, metrics string
		)
		if err := rows.Scan(&role, &msg.Content, &sources, &metrics, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Role = model.Role(role)
		if sources != "" {
			if err := json.Unmarshal([]byte(sources), &msg.Sources); err != nil {
				return nil, fmt.Errorf("decode sources: %w", err)
			}
		}
		if metrics != "" {
			if err := json.Unmarshal([]byte(metrics), &msg.Metrics); err != nil {
				return nil, fmt.Errorf("decode metrics: %w", err)
			}
		}
		conv.Messages = append(conv.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	return &conv, nil
}

// LoadByIndex loads a conversation by its position in List (0 = most
// recent).
func (s *ConversationStore) LoadByIndex(ctx context.Context, index int) (*StoredConversation, error) {
	metas, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(metas) {
		return nil, ErrConversationNotFound
	}
	return s.Load(ctx, metas[index].ID)
}

func (s *ConversationStore) resolveID(ctx context.Context, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrConversationNotFound
	}

	var exact string
	err := s.db.QueryRowContext(ctx, "SELECT id FROM conversations WHERE id = ?", id).Scan(&exact)
	if err == nil {
		return exact, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	if len(id) < 4 {
		return "", ErrConversationNotFound
	}

	rows, err := s.db.QueryContext(ctx, "SELECT id FROM conversations WHERE substr(id, 1, ?) = ? LIMIT 2", len(id), id)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	defer rows.Close()
	var matches []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return "", fmt.Errorf("%w: %v", ErrDatabase, err)
		}
		matches = append(matches, m)
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return "", ErrConversationNotFound
	default:
		return "", ErrAmbiguousID
	}
}

// =============================================================================
// LIST OPERATIONS
// =============================================================================

const listQuery = `
	SELECT c.id, c.thread_id, c.summary, c.model, c.created_at, c.updated_at,
		(SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id),
		COALESCE((SELECT m.content FROM messages m
			WHERE m.conversation_id = c.id AND m.role = 'user'
			ORDER BY m.seq LIMIT 1), '')
	FROM conversations c`

// List returns all saved conversations, most recent first.
func (s *ConversationStore) List(ctx context.Context) ([]ConversationMeta, error) {
	return s.queryMetas(ctx, listQuery+" ORDER BY c.updated_at DESC, c.rowid DESC")
}

// Search finds conversations whose summary or first user message contains
// query, case-insensitive.
func (s *ConversationStore) Search(ctx context.Context, query string) ([]ConversationMeta, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(strings.TrimSpace(query))
	var results []ConversationMeta
	for _, meta := range all {
		if strings.Contains(strings.ToLower(meta.Summary), query) ||
			strings.Contains(strings.ToLower(meta.Preview), query) {
			results = append(results, meta)
		}
	}
	return results, nil
}

// SearchMessages finds conversations where any message contains query.
// The match is done in SQL with LIKE, which folds ASCII case only.
func (s *ConversationStore) SearchMessages(ctx context.Context, query string) ([]ConversationMeta, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.List(ctx)
	}
	pattern := "%" + escapeLike(query) + "%"
	return s.queryMetas(ctx, listQuery+`
		WHERE EXISTS (SELECT 1 FROM messages m
			WHERE m.conversation_id = c.id AND m.content LIKE ? ESCAPE '\')
		ORDER BY c.updated_at DESC, c.rowid DESC`, pattern)
}

func (s *ConversationStore) queryMetas(ctx context.Context, query string, args ...any) ([]ConversationMeta, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	metas := []ConversationMeta{}
	for rows.Next() {
		var (
			meta             ConversationMeta
			created, updated int64
			first            string
		)
		if err := rows.Scan(&meta.ID, &meta.ThreadID, &meta.Summary, &meta.Model,
			&created, &updated, &meta.MessageCount, &first); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		meta.CreatedAt = time.UnixMilli(created)
		meta.UpdatedAt = time.UnixMilli(updated)
		meta.Preview = model.Message{Content: first}.Preview(80)
		metas = append(metas, meta)
	}
	return metas, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// =============================================================================
// DELETE OPERATIONS
// =============================================================================

// Delete removes a conversation by ID or unique prefix.
func (s *ConversationStore) Delete(ctx context.Context, id string) error {
	id, err := s.resolveID(ctx, id)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// Clear removes all saved conversations.
func (s *ConversationStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM conversations"); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrConversationNotFound is returned when a conversation doesn't exist.
	ErrConversationNotFound = &ConversationError{Message: "conversation not found"}

	// ErrAmbiguousID is returned when an ID prefix matches several
	// conversations.
	ErrAmbiguousID = &ConversationError{Message: "conversation id is ambiguous"}

	// ErrDatabase wraps unexpected database failures.
	ErrDatabase = &ConversationError{Message: "history database error"}
)

// ConversationError is a history error comparable with errors.Is.
type ConversationError struct {
	Message string
}

func (e *ConversationError) Error() string {
	return e.Message
}

// Is matches errors with the same message.
func (e *ConversationError) Is(target error) bool {
	t, ok := target.(*ConversationError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}
