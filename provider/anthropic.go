package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"loom/model"
	"loom/tools"
)

const anthropicMaxTokens = 4096

// AnthropicClient implements Client using the official Anthropic Go SDK.
type AnthropicClient struct {
	client *anthropic.Client
}

// NewAnthropicClient creates an Anthropic completion adapter.
func NewAnthropicClient(baseURL, apiKey string) (*AnthropicClient, error) {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	if apiKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	client := anthropic.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)

	return &AnthropicClient{client: &client}, nil
}

// Complete implements Client.Complete with streaming support.
func (c *AnthropicClient) Complete(ctx context.Context, req Request, onStream StreamFunc) (model.Message, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  convertToAnthropicMessages(req.Messages),
		MaxTokens: anthropicMaxTokens,
	}
	if req.Instructions != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.Instructions}}
	}
	if len(req.Tools) > 0 {
		params.Tools = convertToolsToAnthropic(req.Tools)
	}

	stream := c.client.Messages.NewStreaming(ctx, params)
	msg := anthropic.Message{}

	var streamedText string

	for stream.Next() {
		event := stream.Current()
		if err := msg.Accumulate(event); err != nil {
			return model.Message{}, fmt.Errorf("error accumulating message: %w", err)
		}

		switch eventVariant := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := eventVariant.Delta.AsAny().(anthropic.TextDelta); ok {
				streamedText += delta.Text
				if onStream != nil {
					onStream([]model.Content{model.TextContent{Text: streamedText}})
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		return model.Message{}, fmt.Errorf("Anthropic streaming error: %w", err)
	}

	if msg.StopReason == "" {
		return model.Message{}, ErrTruncatedStream
	}

	return anthropicMessageToModel(msg), nil
}

// ListModels implements Client.ListModels. Anthropic has no list endpoint,
// so a curated set is returned.
func (c *AnthropicClient) ListModels(ctx context.Context) ([]ModelInfo, error) {
	models := []anthropic.Model{
		anthropic.ModelClaudeSonnet4_5_20250929,
		anthropic.ModelClaude3_5Haiku20241022,
		anthropic.ModelClaude_3_Opus_20240229,
	}

	result := make([]ModelInfo, 0, len(models))
	for _, m := range models {
		result = append(result, ModelInfo{Name: string(m), Provider: string(TypeAnthropic)})
	}
	return result, nil
}

// Ping implements Client.Ping with a minimal one-token request.
func (c *AnthropicClient) Ping(ctx context.Context) error {
	_, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.ModelClaude3_5Haiku20241022,
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	if err != nil {
		return fmt.Errorf("Anthropic ping failed: %w", err)
	}
	return nil
}

// anthropicMessageToModel converts the accumulated message, preserving block
// order (thinking before the tool calls it motivated).
func anthropicMessageToModel(msg anthropic.Message) model.Message {
	var content []model.Content
	for _, block := range msg.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			content = append(content, model.TextContent{Text: v.Text})
		case anthropic.ThinkingBlock:
			content = append(content, model.ReasoningContent{
				Text:      v.Thinking,
				Signature: v.Signature,
			})
		case anthropic.ToolUseBlock:
			content = append(content, model.ToolCallContent{
				ID:        v.ID,
				Name:      v.Name,
				Arguments: string(v.Input),
			})
		}
	}
	return model.Message{
		Role:      model.RoleAssistant,
		Content:   content,
		Timestamp: time.Now(),
	}
}

func convertToAnthropicMessages(messages []model.Message) []anthropic.MessageParam {
	result := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case model.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if text := model.TextOf(msg.Content); text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(text))
			}
			for _, call := range model.ToolCallsOf(msg.Content) {
				blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, json.RawMessage(call.Arguments), call.Name))
			}
			if len(blocks) > 0 {
				result = append(result, anthropic.NewAssistantMessage(blocks...))
			}

		default:
			var blocks []anthropic.ContentBlockParamUnion
			for _, c := range msg.Content {
				if tr, ok := c.(model.ToolResultContent); ok {
					blocks = append(blocks, anthropic.NewToolResultBlock(tr.ID, flattenResult(tr.Result), false))
					continue
				}
			}
			if text := flattenResult(nonToolResult(msg.Content)); text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(text))
			}
			if len(blocks) > 0 {
				result = append(result, anthropic.NewUserMessage(blocks...))
			}
		}
	}

	return result
}

func nonToolResult(content []model.Content) []model.Content {
	var out []model.Content
	for _, c := range content {
		if _, ok := c.(model.ToolResultContent); !ok {
			out = append(out, c)
		}
	}
	return out
}

func convertToolsToAnthropic(toolList []tools.Tool) []anthropic.ToolUnionParam {
	result := make([]anthropic.ToolUnionParam, len(toolList))
	for i, t := range toolList {
		schema := anthropic.ToolInputSchemaParam{}
		if props, ok := t.Parameters["properties"]; ok {
			schema.Properties = props
		}
		if req, ok := t.Parameters["required"].([]string); ok {
			schema.Required = req
		}
		result[i] = anthropic.ToolUnionParamOfTool(schema, t.Name)
		if t.Description != "" {
			result[i].OfTool.Description = anthropic.String(t.Description)
		}
	}
	return result
}
