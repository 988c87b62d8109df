// Package convstore persists conversations and their ordered messages in
// SQLite. It is the Go equivalent of the original Rust store: two tables
// (conversations, messages) with an index on (conversation_id, sort_order)
// and ON DELETE CASCADE.
package convstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"

	"github.com/corewire/assistant/internal/chatmodel"
)

// Store is a SQLite-backed conversation store. A single mutex serializes
// the insert-then-touch-updated_at critical section in AppendMessage so
// it behaves as one atomic operation even though the underlying driver
// does not expose multi-statement transactions across goroutines safely
// without explicit sequencing.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (creating if necessary) the SQLite database at path and runs
// migrations. Migrations are idempotent: opening the same file twice
// never fails.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("convstore: open %q: %w", path, err)
	}
	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA foreign_keys=ON`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT 'web',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			content_type TEXT NOT NULL,
			content_json TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			sort_order INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation_sort
			ON messages(conversation_id, sort_order)`,
		`CREATE TABLE IF NOT EXISTS external_chat_mappings (
			platform TEXT NOT NULL,
			external_id TEXT NOT NULL,
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			PRIMARY KEY (platform, external_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("convstore: migrate: %w", err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// storedContent is the JSON envelope persisted in messages.content_json;
// it carries only the fields relevant to its ContentType.
type storedContent struct {
	Text              string `json:"text,omitempty"`
	ToolCallID        string `json:"id,omitempty"`
	ToolCallName      string `json:"name,omitempty"`
	ToolCallArguments string `json:"arguments,omitempty"`
	ToolResultID      string `json:"result_id,omitempty"`
	ToolResultContent string `json:"result_content,omitempty"`
}

func encodeContent(c chatmodel.MessageContent) (string, error) {
	sc := storedContent{
		Text:              c.Text,
		ToolCallID:        c.ToolCallID,
		ToolCallName:      c.ToolCallName,
		ToolCallArguments: c.ToolCallArguments,
		ToolResultID:      c.ToolResultID,
		ToolResultContent: c.ToolResultContent,
	}
	b, err := json.Marshal(sc)
	return string(b), err
}

func decodeContent(contentType, contentJSON string) (chatmodel.MessageContent, error) {
	var sc storedContent
	if err := json.Unmarshal([]byte(contentJSON), &sc); err != nil {
		return chatmodel.MessageContent{}, err
	}
	switch chatmodel.ContentType(contentType) {
	case chatmodel.ContentText:
		return chatmodel.TextContent(sc.Text), nil
	case chatmodel.ContentToolCall:
		return chatmodel.ToolCallContent(sc.ToolCallID, sc.ToolCallName, sc.ToolCallArguments), nil
	case chatmodel.ContentToolResult:
		return chatmodel.ToolResultContent(sc.ToolResultID, sc.ToolResultContent), nil
	default:
		return chatmodel.MessageContent{}, fmt.Errorf("convstore: unknown content_type %q", contentType)
	}
}

// CreateConversation allocates a fresh conversation id and timestamps.
func (s *Store) CreateConversation(ctx context.Context, title, source string) (*chatmodel.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	conv := &chatmodel.Conversation{
		ID:        uuid.NewString(),
		Title:     title,
		Source:    source,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, title, source, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		conv.ID, conv.Title, conv.Source, rfc3339(conv.CreatedAt), rfc3339(conv.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("convstore: create conversation: %w", err)
	}
	return conv, nil
}

// ListConversations returns summaries ordered by updated_at descending.
func (s *Store) ListConversations(ctx context.Context) ([]chatmodel.ConversationSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.title, c.created_at, c.updated_at,
			(SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id) AS message_count
		FROM conversations c
		ORDER BY c.updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("convstore: list conversations: %w", err)
	}
	defer rows.Close()

	var out []chatmodel.ConversationSummary
	for rows.Next() {
		var sum chatmodel.ConversationSummary
		var created, updated string
		if err := rows.Scan(&sum.ID, &sum.Title, &created, &updated, &sum.MessageCount); err != nil {
			return nil, fmt.Errorf("convstore: scan summary: %w", err)
		}
		sum.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		sum.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// GetConversation loads the full conversation with its messages ordered by
// sort_order. Returns (nil, nil) if the conversation does not exist.
func (s *Store) GetConversation(ctx context.Context, id string) (*chatmodel.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, title, source, created_at, updated_at FROM conversations WHERE id = ?`, id)
	var conv chatmodel.Conversation
	var created, updated string
	if err := row.Scan(&conv.ID, &conv.Title, &conv.Source, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("convstore: get conversation: %w", err)
	}
	conv.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	conv.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)

	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content_type, content_json, timestamp FROM messages WHERE conversation_id = ? ORDER BY sort_order ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("convstore: load messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var role, contentType, contentJSON, ts string
		if err := rows.Scan(&role, &contentType, &contentJSON, &ts); err != nil {
			return nil, fmt.Errorf("convstore: scan message: %w", err)
		}
		content, err := decodeContent(contentType, contentJSON)
		if err != nil {
			return nil, err
		}
		timestamp, _ := time.Parse(time.RFC3339Nano, ts)
		conv.Messages = append(conv.Messages, chatmodel.Message{
			Role:      chatmodel.Role(role),
			Content:   content,
			Timestamp: timestamp,
		})
	}
	return &conv, rows.Err()
}

// AppendMessage inserts msg at the next sort_order for convID and bumps
// the conversation's updated_at, as one atomic operation.
func (s *Store) AppendMessage(ctx context.Context, convID string, msg chatmodel.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("convstore: append message: begin tx: %w", err)
	}
	defer tx.Rollback()

	var sortOrder int64
	row := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(sort_order), -1) + 1 FROM messages WHERE conversation_id = ?`, convID)
	if err := row.Scan(&sortOrder); err != nil {
		return fmt.Errorf("convstore: next sort_order: %w", err)
	}

	contentJSON, err := encodeContent(msg.Content)
	if err != nil {
		return fmt.Errorf("convstore: encode content: %w", err)
	}

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content_type, content_json, timestamp, sort_order)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), convID, string(msg.Role), string(msg.Content.Type), contentJSON, rfc3339(msg.Timestamp), sortOrder)
	if err != nil {
		return fmt.Errorf("convstore: insert message: %w", err)
	}

	now := rfc3339(time.Now().UTC())
	if _, err := tx.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`, now, convID); err != nil {
		return fmt.Errorf("convstore: touch updated_at: %w", err)
	}

	return tx.Commit()
}

// UpdateConversationTitle sets a new title and bumps updated_at.
func (s *Store) UpdateConversationTitle(ctx context.Context, convID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?`,
		title, rfc3339(time.Now().UTC()), convID)
	if err != nil {
		return fmt.Errorf("convstore: update title: %w", err)
	}
	return nil
}

// DeleteConversation removes a conversation (and, via ON DELETE CASCADE,
// its messages). Reports whether a row was actually removed.
func (s *Store) DeleteConversation(ctx context.Context, convID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, convID)
	if err != nil {
		return false, fmt.Errorf("convstore: delete conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetExternalChatMapping records the conversation id currently associated
// with an external chat identifier (platform + external id).
func (s *Store) SetExternalChatMapping(ctx context.Context, platform, externalID, convID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO external_chat_mappings (platform, external_id, conversation_id) VALUES (?, ?, ?)
		ON CONFLICT(platform, external_id) DO NOTHING`,
		platform, externalID, convID)
	if err != nil {
		return fmt.Errorf("convstore: set external mapping: %w", err)
	}
	return nil
}

// GetExternalChatMapping returns the conversation id for an external chat,
// or "" if none exists.
func (s *Store) GetExternalChatMapping(ctx context.Context, platform, externalID string) (string, error) {
	var convID string
	err := s.db.QueryRowContext(ctx,
		`SELECT conversation_id FROM external_chat_mappings WHERE platform = ? AND external_id = ?`,
		platform, externalID).Scan(&convID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("convstore: get external mapping: %w", err)
	}
	return convID, nil
}

func rfc3339(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// TitleFromMessage derives a conversation title from the first user text
// message: trim, keep as-is if its byte length is <= 80, otherwise cut at
// the last rune boundary at or before byte 80, then cut again at the last
// space within that slice (falling back to the rune-boundary cut if no
// space is found). Never panics on multi-byte input.
func TitleFromMessage(text string) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) <= 80 {
		return trimmed
	}

	cutEnd := 0
	for i, r := range trimmed {
		if i+utf8.RuneLen(r) > 80 {
			break
		}
		cutEnd = i + utf8.RuneLen(r)
	}
	slice := trimmed[:cutEnd]
	if idx := strings.LastIndex(slice, " "); idx > 0 {
		return slice[:idx]
	}
	return slice
}
