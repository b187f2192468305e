// Package storage persists chats as one JSON file per chat and maintains a
// sqlite index over message text for cross-chat search.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"loom/model"
)

// ChatStorage handles chat persistence. It satisfies the engine's Persister
// interface.
type ChatStorage struct {
	chatsDir string
}

// NewChatStorage creates chat storage rooted at dataDir.
func NewChatStorage(dataDir string) (*ChatStorage, error) {
	chatsDir := filepath.Join(dataDir, "chats")

	// 0700 - user-only access
	if err := os.MkdirAll(chatsDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create chats directory: %w", err)
	}

	return &ChatStorage{chatsDir: chatsDir}, nil
}

// SaveChat writes a chat to disk.
func (s *ChatStorage) SaveChat(chat *model.Chat) error {
	if chat.ID == "" {
		return fmt.Errorf("chat has no id")
	}

	data, err := json.MarshalIndent(chat, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal chat: %w", err)
	}

	path := filepath.Join(s.chatsDir, chat.ID+".json")

	// 0600 - chat files contain conversation history
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write chat file: %w", err)
	}

	return nil
}

// LoadChat reads a single chat, migrating legacy formats on the fly.
func (s *ChatStorage) LoadChat(id string) (*model.Chat, error) {
	path := filepath.Join(s.chatsDir, id+".json")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chat file: %w", err)
	}

	chat, err := MigrateChat(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse chat file: %w", err)
	}
	return chat, nil
}

// LoadChats reads every chat on disk. Corrupted files are skipped.
func (s *ChatStorage) LoadChats() ([]*model.Chat, error) {
	entries, err := os.ReadDir(s.chatsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read chats directory: %w", err)
	}

	var chats []*model.Chat
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.chatsDir, entry.Name()))
		if err != nil {
			continue
		}

		chat, err := MigrateChat(data)
		if err != nil {
			continue
		}
		chats = append(chats, chat)
	}

	return chats, nil
}

// DeleteChat removes a chat file from disk.
func (s *ChatStorage) DeleteChat(id string) error {
	path := filepath.Join(s.chatsDir, id+".json")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete chat file: %w", err)
	}
	return nil
}

// SaveCurrentChatID records which chat was active so the next start can
// resume it.
func (s *ChatStorage) SaveCurrentChatID(id string) error {
	path := filepath.Join(filepath.Dir(s.chatsDir), "current_chat.id")
	return os.WriteFile(path, []byte(id), 0600)
}

// LoadCurrentChatID returns the last active chat id.
func (s *ChatStorage) LoadCurrentChatID() (string, error) {
	path := filepath.Join(filepath.Dir(s.chatsDir), "current_chat.id")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// ExportToJSON writes a chat transcript to exportPath.
func (s *ChatStorage) ExportToJSON(id string, exportPath string) error {
	chat, err := s.LoadChat(id)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(chat, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal chat: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(exportPath), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// 0600 - exports contain conversation history
	if err := os.WriteFile(exportPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// GenerateExportPath returns a default export path under ~/Downloads.
func GenerateExportPath(title string) string {
	homeDir := os.Getenv("HOME")
	if homeDir == "" {
		homeDir = os.Getenv("USERPROFILE")
	}

	filename := fmt.Sprintf("loom-chat-%s-%s.json",
		SanitizeFilename(title), time.Now().Format("20060102-150405"))

	return filepath.Join(homeDir, "Downloads", filename)
}

// SanitizeFilename replaces characters that are invalid in filenames.
func SanitizeFilename(name string) string {
	for _, c := range []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|", " ", "\n", "\r"} {
		name = strings.ReplaceAll(name, c, "-")
	}
	name = strings.Trim(name, "-.")

	if len(name) > 50 {
		name = name[:50]
	}
	if name == "" {
		name = "chat"
	}
	return name
}
