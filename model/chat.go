package model

import (
	"time"

	"github.com/google/uuid"
)

// Chat is one conversation. It is owned by the engine's Store and mutated
// only through Store.UpdateChat, which keeps Updated current.
type Chat struct {
	ID       string    `json:"id"`
	Title    string    `json:"title,omitempty"`
	Model    string    `json:"model"`
	Created  time.Time `json:"created"`
	Updated  time.Time `json:"updated"`
	Messages []Message `json:"messages"`
}

// NewChat creates an empty chat bound to a model id.
func NewChat(modelID string) *Chat {
	now := time.Now()
	return &Chat{
		ID:      uuid.New().String(),
		Model:   modelID,
		Created: now,
		Updated: now,
	}
}

// Clone returns a deep-enough copy for readers: the message slice is copied
// so appends by the owner do not race observed snapshots. Content parts are
// immutable values and are shared.
func (c *Chat) Clone() Chat {
	cp := *c
	cp.Messages = make([]Message, len(c.Messages))
	copy(cp.Messages, c.Messages)
	return cp
}
