package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/ollama/ollama/api"

	"loom/model"
	"loom/tools"
)

// OllamaClient implements Client against a local Ollama server.
type OllamaClient struct {
	client *api.Client
}

// NewOllamaClient creates an Ollama completion adapter.
func NewOllamaClient(baseURL string) (*OllamaClient, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}

	return &OllamaClient{client: api.NewClient(parsed, http.DefaultClient)}, nil
}

// Complete implements Client.Complete with streaming support.
func (c *OllamaClient) Complete(ctx context.Context, req Request, onStream StreamFunc) (model.Message, error) {
	msgs := convertToOllamaMessages(req.Instructions, req.Messages)

	var ollamaTools []api.Tool
	if len(req.Tools) > 0 {
		var err error
		ollamaTools, err = convertToolsToOllama(req.Tools)
		if err != nil {
			return model.Message{}, err
		}
	}

	chatReq := &api.ChatRequest{
		Model:    req.Model,
		Messages: msgs,
		Tools:    ollamaTools,
		Stream:   func(b bool) *bool { return &b }(true),
	}

	var streamedText string
	var calls []model.Content
	done := false

	respFunc := func(resp api.ChatResponse) error {
		if resp.Message.Content != "" {
			streamedText += resp.Message.Content
		}
		for _, tc := range resp.Message.ToolCalls {
			args, err := json.Marshal(tc.Function.Arguments)
			if err != nil {
				args = []byte("{}")
			}
			calls = append(calls, model.ToolCallContent{
				ID:        uuid.New().String(),
				Name:      tc.Function.Name,
				Arguments: string(args),
			})
		}
		if resp.Done {
			done = true
		}
		if onStream != nil {
			onStream(snapshotContent(streamedText, calls))
		}
		return nil
	}

	if err := c.client.Chat(ctx, chatReq, respFunc); err != nil {
		return model.Message{}, fmt.Errorf("Ollama chat error: %w", err)
	}

	if !done {
		return model.Message{}, ErrTruncatedStream
	}

	// Ollama streams no ordered block structure, so the final message is the
	// text followed by the tool calls, which matches its response shape.
	return model.Message{
		Role:      model.RoleAssistant,
		Content:   snapshotContent(streamedText, calls),
		Timestamp: time.Now(),
	}, nil
}

// ListModels implements Client.ListModels.
func (c *OllamaClient) ListModels(ctx context.Context) ([]ModelInfo, error) {
	resp, err := c.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list Ollama models: %w", err)
	}

	result := make([]ModelInfo, 0, len(resp.Models))
	for _, m := range resp.Models {
		result = append(result, ModelInfo{Name: m.Name, Provider: string(TypeOllama), Size: m.Size})
	}
	return result, nil
}

// Ping implements Client.Ping.
func (c *OllamaClient) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := c.client.List(pingCtx); err != nil {
		return fmt.Errorf("Ollama ping failed: %w", err)
	}
	return nil
}

func convertToOllamaMessages(instructions string, messages []model.Message) []api.Message {
	var result []api.Message
	if instructions != "" {
		result = append(result, api.Message{Role: "system", Content: instructions})
	}

	for _, msg := range messages {
		switch msg.Role {
		case model.RoleAssistant:
			m := api.Message{Role: "assistant", Content: model.TextOf(msg.Content)}
			for _, call := range model.ToolCallsOf(msg.Content) {
				m.ToolCalls = append(m.ToolCalls, api.ToolCall{
					Function: api.ToolCallFunction{
						Name:      call.Name,
						Arguments: api.ToolCallFunctionArguments(tools.ParseArguments(call.Arguments)),
					},
				})
			}
			result = append(result, m)

		default:
			sentPlain := false
			for _, c := range msg.Content {
				if tr, ok := c.(model.ToolResultContent); ok {
					result = append(result, api.Message{Role: "tool", Content: flattenResult(tr.Result)})
					continue
				}
				sentPlain = true
			}
			if sentPlain {
				result = append(result, api.Message{Role: "user", Content: flattenResult(msg.Content)})
			}
		}
	}

	return result
}

// convertToolsToOllama maps JSON-schema parameter maps into the Ollama API's
// typed schema structs via a JSON round-trip; both sides are plain JSON
// schema so the shapes line up.
func convertToolsToOllama(toolList []tools.Tool) ([]api.Tool, error) {
	result := make([]api.Tool, 0, len(toolList))
	for _, t := range toolList {
		raw, err := json.Marshal(t.Parameters)
		if err != nil {
			return nil, fmt.Errorf("tool %s: failed to encode parameters: %w", t.Name, err)
		}

		var params api.ToolFunctionParameters
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, fmt.Errorf("tool %s: unsupported parameter schema: %w", t.Name, err)
		}

		result = append(result, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return result, nil
}
