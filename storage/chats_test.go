package storage

import (
	"os"
	"path/filepath"
	"testing"

	"loom/model"
)

func newTestStorage(t *testing.T) *ChatStorage {
	t.Helper()
	s, err := NewChatStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewChatStorage: %v", err)
	}
	return s
}

func TestSaveAndLoadChat(t *testing.T) {
	s := newTestStorage(t)

	chat := model.NewChat("test-model")
	chat.Title = "roundtrip"
	chat.Messages = append(chat.Messages, model.NewUserText("hello"))

	if err := s.SaveChat(chat); err != nil {
		t.Fatalf("SaveChat: %v", err)
	}

	got, err := s.LoadChat(chat.ID)
	if err != nil {
		t.Fatalf("LoadChat: %v", err)
	}
	if got.ID != chat.ID || got.Title != "roundtrip" {
		t.Fatalf("loaded chat = %+v", got)
	}
	if len(got.Messages) != 1 || model.TextOf(got.Messages[0].Content) != "hello" {
		t.Fatalf("messages = %+v", got.Messages)
	}
}

func TestSaveChatPermissions(t *testing.T) {
	dir := t.TempDir()
	s, err := NewChatStorage(dir)
	if err != nil {
		t.Fatalf("NewChatStorage: %v", err)
	}

	chat := model.NewChat("m")
	if err := s.SaveChat(chat); err != nil {
		t.Fatalf("SaveChat: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "chats", chat.ID+".json"))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Fatalf("chat file permissions = %o, want 0600", perm)
	}
}

func TestLoadChatsSkipsCorrupted(t *testing.T) {
	dir := t.TempDir()
	s, err := NewChatStorage(dir)
	if err != nil {
		t.Fatalf("NewChatStorage: %v", err)
	}

	good := model.NewChat("m")
	if err := s.SaveChat(good); err != nil {
		t.Fatalf("SaveChat: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "chats", "broken.json"), []byte("{oops"), 0600); err != nil {
		t.Fatalf("write corrupted file: %v", err)
	}

	chats, err := s.LoadChats()
	if err != nil {
		t.Fatalf("LoadChats: %v", err)
	}
	if len(chats) != 1 || chats[0].ID != good.ID {
		t.Fatalf("chats = %+v", chats)
	}
}

func TestDeleteChatStorage(t *testing.T) {
	s := newTestStorage(t)

	chat := model.NewChat("m")
	if err := s.SaveChat(chat); err != nil {
		t.Fatalf("SaveChat: %v", err)
	}
	if err := s.DeleteChat(chat.ID); err != nil {
		t.Fatalf("DeleteChat: %v", err)
	}
	if _, err := s.LoadChat(chat.ID); err == nil {
		t.Fatal("chat still loadable after delete")
	}
	// Deleting again is not an error.
	if err := s.DeleteChat(chat.ID); err != nil {
		t.Fatalf("second DeleteChat: %v", err)
	}
}

func TestCurrentChatID(t *testing.T) {
	s := newTestStorage(t)

	if err := s.SaveCurrentChatID("abc"); err != nil {
		t.Fatalf("SaveCurrentChatID: %v", err)
	}
	id, err := s.LoadCurrentChatID()
	if err != nil {
		t.Fatalf("LoadCurrentChatID: %v", err)
	}
	if id != "abc" {
		t.Fatalf("id = %q", id)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"with spaces here", "with-spaces-here"},
		{`a/b\c:d`, "a-b-c-d"},
		{"", "chat"},
		{"---...", "chat"},
	}

	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
