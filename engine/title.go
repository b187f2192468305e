package engine

import (
	"context"
	"strings"
	"time"

	"loom/config"
	"loom/model"
	"loom/provider"
)

const titlePrompt = "Summarize the conversation so far in at most six words. " +
	"Respond with the title only: no quotes, no trailing punctuation."

const maxTitleLen = 60

// generateTitle asks the model for a short chat title in the background.
// It is fire-and-forget: any failure is logged and the chat keeps its
// default title.
func (e *Engine) generateTitle(chatID, modelID string, conversation []model.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	messages := append(conversation[:0:0], conversation...)
	messages = append(messages, model.NewUserText(titlePrompt))

	reply, err := e.client.Complete(ctx, provider.Request{
		Model:    modelID,
		Messages: messages,
	}, nil)
	if err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Engine] title generation failed for chat %s: %v", chatID, err)
		}
		return
	}

	title := cleanTitle(model.TextOf(reply.Content))
	if title == "" {
		return
	}

	if err := e.store.UpdateChat(chatID, func(chat *model.Chat) {
		if chat.Title == "" {
			chat.Title = title
		}
	}); err != nil && config.DebugLog != nil {
		config.DebugLog.Printf("[Engine] failed to store title for chat %s: %v", chatID, err)
	}
}

func cleanTitle(raw string) string {
	title := strings.TrimSpace(raw)
	title = strings.Trim(title, `"'`)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = title[:i]
	}
	title = strings.TrimSpace(title)
	if r := []rune(title); len(r) > maxTitleLen {
		title = strings.TrimSpace(string(r[:maxTitleLen]))
	}
	return title
}
