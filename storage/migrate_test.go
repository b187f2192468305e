package storage

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"loom/model"
)

const legacyChatJSON = `{
	"id": "abc-123",
	"name": "old style chat",
	"model": "llama3.1:latest",
	"created_at": "2024-05-01T10:00:00Z",
	"updated_at": "2024-05-01T10:05:00Z",
	"messages": [
		{"role": "system", "content": "You are helpful."},
		{"role": "user", "content": "check the weather"},
		{"role": "assistant", "content": "Checking."},
		{"role": "tool", "tool_call_id": "c1", "tool_name": "get_weather", "content": "Sunny, 21C"},
		{"role": "assistant", "content": "It is sunny."}
	]
}`

func TestMigrateLegacyChat(t *testing.T) {
	chat, err := MigrateChat([]byte(legacyChatJSON))
	if err != nil {
		t.Fatalf("MigrateChat: %v", err)
	}

	if chat.ID != "abc-123" {
		t.Fatalf("id = %s", chat.ID)
	}
	if chat.Title != "old style chat" {
		t.Fatalf("title = %q, legacy name not carried over", chat.Title)
	}
	if chat.Created.IsZero() || chat.Updated.IsZero() {
		t.Fatal("legacy timestamps not carried over")
	}

	// The system message is dropped; the rest survive.
	if len(chat.Messages) != 4 {
		t.Fatalf("got %d messages, want 4", len(chat.Messages))
	}

	if chat.Messages[0].Role != model.RoleUser {
		t.Fatalf("first message role = %s", chat.Messages[0].Role)
	}
	if got := model.TextOf(chat.Messages[0].Content); got != "check the weather" {
		t.Fatalf("first message text = %q", got)
	}

	// The legacy tool role becomes a user-role message with a structured
	// tool result.
	toolMsg := chat.Messages[2]
	if toolMsg.Role != model.RoleUser {
		t.Fatalf("tool message role = %s, want user", toolMsg.Role)
	}
	tr, ok := toolMsg.Content[0].(model.ToolResultContent)
	if !ok {
		t.Fatalf("tool message content = %#v", toolMsg.Content[0])
	}
	if tr.ID != "c1" || tr.Name != "get_weather" {
		t.Fatalf("tool result = %+v", tr)
	}
	if got := model.TextOf(tr.Result); got != "Sunny, 21C" {
		t.Fatalf("tool result text = %q", got)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	once, err := MigrateChat([]byte(legacyChatJSON))
	if err != nil {
		t.Fatalf("first migration: %v", err)
	}

	data, err := json.Marshal(once)
	if err != nil {
		t.Fatalf("marshal migrated chat: %v", err)
	}

	twice, err := MigrateChat(data)
	if err != nil {
		t.Fatalf("second migration: %v", err)
	}

	if !reflect.DeepEqual(once.Messages, twice.Messages) {
		t.Fatalf("second migration changed messages:\n once %#v\ntwice %#v", once.Messages, twice.Messages)
	}
	if once.ID != twice.ID || once.Title != twice.Title || once.Model != twice.Model {
		t.Fatal("second migration changed chat metadata")
	}
}

func TestMigrateCurrentFormatUnchanged(t *testing.T) {
	chat := model.NewChat("test-model")
	chat.Title = "modern"
	chat.Messages = []model.Message{
		{
			Role:      model.RoleUser,
			Content:   []model.Content{model.TextContent{Text: "hello"}},
			Timestamp: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			Role: model.RoleAssistant,
			Content: []model.Content{
				model.ReasoningContent{ID: "r1", Text: "hmm"},
				model.TextContent{Text: "hi"},
				model.ToolCallContent{ID: "c1", Name: "grep", Arguments: "{}"},
			},
		},
	}

	data, err := json.Marshal(chat)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	got, err := MigrateChat(data)
	if err != nil {
		t.Fatalf("MigrateChat: %v", err)
	}
	if !reflect.DeepEqual(got.Messages, chat.Messages) {
		t.Fatalf("migration altered a current-format chat:\n got %#v\nwant %#v", got.Messages, chat.Messages)
	}
}

func TestMigrateChatRejectsGarbage(t *testing.T) {
	if _, err := MigrateChat([]byte(`not json`)); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if _, err := MigrateChat([]byte(`{"messages": []}`)); err == nil {
		t.Fatal("expected error for chat without id")
	}
}
