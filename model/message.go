package model

import (
	"encoding/json"
	"time"
)

// Role identifies who authored a message. Tool results are deliberately
// carried in user-role messages: tool output is modeled as user-supplied
// input to the next completion round, which is what the completion backends
// expect on the wire.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageError is a terminal failure attached to a message. A message with
// Error set must not be followed by further tool-execution content in the
// same message.
type MessageError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// Message is one entry in a chat's conversation history.
type Message struct {
	Role      Role
	Content   []Content
	Error     *MessageError
	Timestamp time.Time
}

type messageJSON struct {
	Role      Role              `json:"role"`
	Content   []json.RawMessage `json:"content"`
	Error     *MessageError     `json:"error,omitempty"`
	Timestamp time.Time         `json:"timestamp,omitzero"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	content, err := MarshalContentList(m.Content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(messageJSON{
		Role:      m.Role,
		Content:   content,
		Error:     m.Error,
		Timestamp: m.Timestamp,
	})
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var mj messageJSON
	if err := json.Unmarshal(data, &mj); err != nil {
		return err
	}
	content, err := UnmarshalContentList(mj.Content)
	if err != nil {
		return err
	}
	m.Role = mj.Role
	m.Content = content
	m.Error = mj.Error
	m.Timestamp = mj.Timestamp
	return nil
}

// NewUserText builds a user message holding a single text part.
func NewUserText(text string) Message {
	return Message{
		Role:      RoleUser,
		Content:   []Content{TextContent{Text: text}},
		Timestamp: time.Now(),
	}
}

// NewToolResultMessage wraps a tool's output as a user-role message, the
// form the next completion round consumes.
func NewToolResultMessage(call ToolCallContent, result []Content) Message {
	return Message{
		Role: RoleUser,
		Content: []Content{ToolResultContent{
			ID:        call.ID,
			Name:      call.Name,
			Arguments: call.Arguments,
			Result:    result,
		}},
		Timestamp: time.Now(),
	}
}
