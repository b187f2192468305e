package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"
	_ "modernc.org/sqlite"

	"loom/model"
)

// MessageMatch is one search hit across the indexed chats.
type MessageMatch struct {
	ChatID       string
	ChatTitle    string
	MessageIndex int
	Role         string
	Preview      string
	Timestamp    time.Time
}

// MessageIndex maintains a sqlite table of message text so search does not
// re-read every chat file. Chats are indexed whole: a chat's rows are
// replaced on every reindex.
type MessageIndex struct {
	db *sql.DB
}

// NewMessageIndex opens (or creates) the index database under dataDir.
func NewMessageIndex(dataDir string) (*MessageIndex, error) {
	dbPath := filepath.Join(dataDir, "index.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	idx := &MessageIndex{db: db}
	if err := idx.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return idx, nil
}

func (idx *MessageIndex) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		chat_id TEXT NOT NULL,
		chat_title TEXT NOT NULL,
		message_idx INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		timestamp DATETIME,
		PRIMARY KEY (chat_id, message_idx)
	);
	CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id);
	`

	_, err := idx.db.Exec(schema)
	return err
}

// IndexChat replaces the indexed rows for a chat with its current messages.
func (idx *MessageIndex) IndexChat(chat *model.Chat) error {
	tx, err := idx.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM messages WHERE chat_id = ?`, chat.ID); err != nil {
		return fmt.Errorf("failed to clear chat rows: %w", err)
	}

	insert := `
	INSERT INTO messages (chat_id, chat_title, message_idx, role, content, timestamp)
	VALUES (?, ?, ?, ?, ?, ?)
	`
	for i, msg := range chat.Messages {
		text := model.TextOf(msg.Content)
		if text == "" {
			continue
		}
		if _, err := tx.Exec(insert, chat.ID, chat.Title, i, string(msg.Role), text, msg.Timestamp); err != nil {
			return fmt.Errorf("failed to insert message row: %w", err)
		}
	}

	return tx.Commit()
}

// RemoveChat drops a chat's rows from the index.
func (idx *MessageIndex) RemoveChat(chatID string) error {
	_, err := idx.db.Exec(`DELETE FROM messages WHERE chat_id = ?`, chatID)
	return err
}

// Search returns messages whose text contains query, newest first.
func (idx *MessageIndex) Search(query string) ([]MessageMatch, error) {
	if query == "" {
		return []MessageMatch{}, nil
	}

	rows, err := idx.db.Query(`
	SELECT chat_id, chat_title, message_idx, role, content, timestamp
	FROM messages
	WHERE content LIKE ? ESCAPE '\'
	ORDER BY timestamp DESC
	`, "%"+escapeLike(query)+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}
	defer rows.Close()

	var matches []MessageMatch
	for rows.Next() {
		var m MessageMatch
		var content string
		var ts sql.NullTime
		if err := rows.Scan(&m.ChatID, &m.ChatTitle, &m.MessageIndex, &m.Role, &content, &ts); err != nil {
			continue
		}
		if ts.Valid {
			m.Timestamp = ts.Time
		}
		m.Preview = preview(content)
		matches = append(matches, m)
	}

	return matches, rows.Err()
}

// Close releases the underlying database handle.
func (idx *MessageIndex) Close() error {
	if idx.db != nil {
		return idx.db.Close()
	}
	return nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

func preview(content string) string {
	content = strings.ReplaceAll(content, "\n", " ")
	if len(content) > 100 {
		content = content[:100] + "..."
	}
	return content
}

// RankChatsByTitle fuzzy-matches query against chat titles and returns the
// chats in descending match quality. An empty query returns chats unchanged.
func RankChatsByTitle(query string, chats []model.Chat) []model.Chat {
	if query == "" {
		return chats
	}

	titles := make([]string, len(chats))
	for i, c := range chats {
		titles[i] = c.Title
	}

	results := fuzzy.Find(query, titles)
	ranked := make([]model.Chat, 0, len(results))
	for _, r := range results {
		ranked = append(ranked, chats[r.Index])
	}
	return ranked
}
