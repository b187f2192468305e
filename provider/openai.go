package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	"loom/model"
	"loom/tools"
)

// OpenAIClient implements Client using the official OpenAI Go SDK. It also
// serves any OpenAI-compatible backend (OpenRouter) via a custom base URL.
type OpenAIClient struct {
	client openai.Client
}

// NewOpenAIClient creates an OpenAI completion adapter.
func NewOpenAIClient(baseURL, apiKey string) (*OpenAIClient, error) {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)

	return &OpenAIClient{client: client}, nil
}

// Complete implements Client.Complete with streaming support.
func (c *OpenAIClient) Complete(ctx context.Context, req Request, onStream StreamFunc) (model.Message, error) {
	params := openai.ChatCompletionNewParams{
		Messages: convertToOpenAIMessages(req.Instructions, req.Messages),
		Model:    openai.ChatModel(req.Model),
	}
	if len(req.Tools) > 0 {
		params.Tools = convertToolsToOpenAI(req.Tools)
	}

	stream := c.client.Chat.Completions.NewStreaming(ctx, params)
	acc := openai.ChatCompletionAccumulator{}

	// Growing snapshot forwarded to onStream: accumulated text first, then
	// each tool call as it finishes.
	var streamedText string
	var streamedCalls []model.Content

	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		dirty := false

		if tool, ok := acc.JustFinishedToolCall(); ok {
			streamedCalls = append(streamedCalls, model.ToolCallContent{
				Name:      tool.Name,
				Arguments: tool.Arguments,
			})
			dirty = true
		}

		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			streamedText += chunk.Choices[0].Delta.Content
			dirty = true
		}

		if dirty && onStream != nil {
			onStream(snapshotContent(streamedText, streamedCalls))
		}
	}

	if err := stream.Err(); err != nil {
		return model.Message{}, fmt.Errorf("OpenAI streaming error: %w", err)
	}

	if len(acc.Choices) == 0 || acc.Choices[0].FinishReason == "" {
		return model.Message{}, ErrTruncatedStream
	}

	return openAIMessageToModel(acc.Choices[0].Message), nil
}

// ListModels implements Client.ListModels.
func (c *OpenAIClient) ListModels(ctx context.Context) ([]ModelInfo, error) {
	page, err := c.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list OpenAI models: %w", err)
	}

	result := make([]ModelInfo, 0, len(page.Data))
	for _, m := range page.Data {
		result = append(result, ModelInfo{Name: m.ID, Provider: string(TypeOpenAI)})
	}
	return result, nil
}

// Ping implements Client.Ping by attempting to list models.
func (c *OpenAIClient) Ping(ctx context.Context) error {
	if _, err := c.client.Models.List(ctx); err != nil {
		return fmt.Errorf("OpenAI ping failed: %w", err)
	}
	return nil
}

func snapshotContent(text string, calls []model.Content) []model.Content {
	out := make([]model.Content, 0, len(calls)+1)
	if text != "" {
		out = append(out, model.TextContent{Text: text})
	}
	out = append(out, calls...)
	return out
}

func openAIMessageToModel(msg openai.ChatCompletionMessage) model.Message {
	var content []model.Content
	if msg.Content != "" {
		content = append(content, model.TextContent{Text: msg.Content})
	}
	for _, tc := range msg.ToolCalls {
		content = append(content, model.ToolCallContent{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return model.Message{
		Role:      model.RoleAssistant,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// convertToOpenAIMessages maps loom messages to the OpenAI wire format.
// Tool results travel as role "tool" messages keyed by tool-call id; other
// attachments are flattened to text since chat completions carry text parts.
func convertToOpenAIMessages(instructions string, messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	var result []openai.ChatCompletionMessageParamUnion
	if instructions != "" {
		result = append(result, openai.SystemMessage(instructions))
	}

	for _, msg := range messages {
		switch msg.Role {
		case model.RoleAssistant:
			asst := &openai.ChatCompletionAssistantMessageParam{}
			if text := model.TextOf(msg.Content); text != "" {
				asst.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: param.NewOpt(text),
				}
			}
			for _, call := range model.ToolCallsOf(msg.Content) {
				asst.ToolCalls = append(asst.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: call.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      call.Name,
							Arguments: call.Arguments,
						},
					},
				})
			}
			result = append(result, openai.ChatCompletionMessageParamUnion{OfAssistant: asst})

		default:
			// User messages: tool results become tool-role messages, the
			// rest is flattened to one user text message.
			plain := false
			for _, c := range msg.Content {
				if tr, ok := c.(model.ToolResultContent); ok {
					result = append(result, openai.ToolMessage(flattenResult(tr.Result), tr.ID))
					continue
				}
				plain = true
			}
			if plain {
				result = append(result, openai.UserMessage(flattenResult(msg.Content)))
			}
		}
	}

	return result
}

// flattenResult renders a content array as text for backends that accept
// only string content in the given position. Attachments degrade to a name
// reference rather than being dropped silently.
func flattenResult(content []model.Content) string {
	text := model.TextOf(content)
	for _, c := range content {
		switch v := c.(type) {
		case model.ImageContent:
			text += fmt.Sprintf("\n[image: %s]", v.Name)
		case model.AudioContent:
			text += fmt.Sprintf("\n[audio: %s]", v.Name)
		case model.FileContent:
			text += fmt.Sprintf("\n[file: %s]", v.Name)
		}
	}
	return text
}

func convertToolsToOpenAI(toolList []tools.Tool) []openai.ChatCompletionToolUnionParam {
	result := make([]openai.ChatCompletionToolUnionParam, len(toolList))
	for i, t := range toolList {
		result[i] = openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        t.Name,
			Description: openai.String(t.Description),
			Parameters:  openai.FunctionParameters(t.Parameters),
		})
	}
	return result
}
