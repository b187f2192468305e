package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"loom/model"
)

// Legacy chat files predate structured content: message content was a bare
// string, tool results lived under a "tool" role, and the chat metadata used
// older field names. MigrateChat reads either format and always produces the
// current one, so migrating an already-migrated chat is a no-op.

type rawChat struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
	Name  string `json:"name,omitempty"` // legacy alias for Title
	Model string `json:"model"`

	Created   time.Time `json:"created"`
	Updated   time.Time `json:"updated"`
	CreatedAt time.Time `json:"created_at"` // legacy
	UpdatedAt time.Time `json:"updated_at"` // legacy

	Messages []json.RawMessage `json:"messages"`
}

type legacyMessage struct {
	Role       string              `json:"role"`
	Content    string              `json:"content"`
	ToolCallID string              `json:"tool_call_id,omitempty"`
	ToolName   string              `json:"tool_name,omitempty"`
	Error      *model.MessageError `json:"error,omitempty"`
	Timestamp  time.Time           `json:"timestamp,omitempty"`
}

// MigrateChat parses a chat file in either the current or the legacy format
// and returns a chat in the current format.
func MigrateChat(data []byte) (*model.Chat, error) {
	var raw rawChat
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chat: %w", err)
	}
	if raw.ID == "" {
		return nil, fmt.Errorf("chat has no id")
	}

	chat := &model.Chat{
		ID:      raw.ID,
		Title:   raw.Title,
		Model:   raw.Model,
		Created: raw.Created,
		Updated: raw.Updated,
	}
	if chat.Title == "" {
		chat.Title = raw.Name
	}
	if chat.Created.IsZero() {
		chat.Created = raw.CreatedAt
	}
	if chat.Updated.IsZero() {
		chat.Updated = raw.UpdatedAt
	}

	chat.Messages = make([]model.Message, 0, len(raw.Messages))
	for _, rawMsg := range raw.Messages {
		msg, ok, err := migrateMessage(rawMsg)
		if err != nil {
			return nil, err
		}
		if ok {
			chat.Messages = append(chat.Messages, msg)
		}
	}

	return chat, nil
}

// migrateMessage returns (message, keep, error). System messages from legacy
// files are dropped: instructions are derived from config and tool providers
// now, not stored per chat.
func migrateMessage(data []byte) (model.Message, bool, error) {
	var msg model.Message
	if err := json.Unmarshal(data, &msg); err == nil {
		return msg, true, nil
	}

	var legacy legacyMessage
	if err := json.Unmarshal(data, &legacy); err != nil {
		return model.Message{}, false, fmt.Errorf("failed to unmarshal message: %w", err)
	}

	switch legacy.Role {
	case "system":
		return model.Message{}, false, nil

	case "tool":
		// Tool output used to be its own role. It becomes a user-role
		// message carrying a structured tool result.
		return model.Message{
			Role: model.RoleUser,
			Content: []model.Content{
				model.ToolResultContent{
					ID:   legacy.ToolCallID,
					Name: legacy.ToolName,
					Result: []model.Content{
						model.TextContent{Text: legacy.Content},
					},
				},
			},
			Error:     legacy.Error,
			Timestamp: legacy.Timestamp,
		}, true, nil

	case "assistant":
		return model.Message{
			Role:      model.RoleAssistant,
			Content:   []model.Content{model.TextContent{Text: legacy.Content}},
			Error:     legacy.Error,
			Timestamp: legacy.Timestamp,
		}, true, nil

	default:
		return model.Message{
			Role:      model.RoleUser,
			Content:   []model.Content{model.TextContent{Text: legacy.Content}},
			Error:     legacy.Error,
			Timestamp: legacy.Timestamp,
		}, true, nil
	}
}
