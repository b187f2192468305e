// Package model defines the provider-agnostic conversation types shared by
// the rest of loom: the content-part union, messages, chats, and the error
// taxonomy surfaced to the UI.
//
// Content is a closed union. A message's content array is ordered and the
// order is significant: reasoning precedes the tool calls it motivated, and
// tool calls precede the results that answer them. Persistence and providers
// must preserve this order verbatim.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Content is one part of a message's ordered content array.
// The concrete types form a closed set via the unexported marker method.
type Content interface {
	contentType() string
}

// Content type discriminators used in the JSON envelope.
const (
	ContentTypeText       = "text"
	ContentTypeImage      = "image"
	ContentTypeAudio      = "audio"
	ContentTypeFile       = "file"
	ContentTypeReasoning  = "reasoning"
	ContentTypeToolCall   = "tool_call"
	ContentTypeToolResult = "tool_result"
)

// TextContent is a plain text part.
type TextContent struct {
	Text string
}

func (TextContent) contentType() string { return ContentTypeText }

// ImageContent is an image attachment. Data is a data URL so it round-trips
// through JSON persistence unchanged.
type ImageContent struct {
	Name string
	Data string
}

func (ImageContent) contentType() string { return ContentTypeImage }

// AudioContent is an audio attachment, data-URL encoded like ImageContent.
type AudioContent struct {
	Name string
	Data string
}

func (AudioContent) contentType() string { return ContentTypeAudio }

// FileContent is a generic file attachment.
type FileContent struct {
	Name string
	Data string
}

func (FileContent) contentType() string { return ContentTypeFile }

// ReasoningContent carries a model's reasoning trace. Signature is opaque
// provider data that must survive round-trips through conversation history.
type ReasoningContent struct {
	ID        string
	Text      string
	Summary   string
	Signature string
}

func (ReasoningContent) contentType() string { return ContentTypeReasoning }

// ToolCallContent is an assistant's request to invoke a tool. Arguments holds
// the raw JSON string as produced by the provider.
type ToolCallContent struct {
	ID        string
	Name      string
	Arguments string
}

func (ToolCallContent) contentType() string { return ContentTypeToolCall }

// ToolResultContent wraps a tool's output. Result may contain text, image,
// audio and file parts but never nested tool calls, tool results or
// reasoning; ValidateToolResult enforces this.
type ToolResultContent struct {
	ID        string
	Name      string
	Arguments string
	Result    []Content
}

func (ToolResultContent) contentType() string { return ContentTypeToolResult }

// TextOf concatenates all text parts of content, in order. Total over the
// union: non-text parts contribute nothing.
func TextOf(content []Content) string {
	var sb strings.Builder
	for _, c := range content {
		if t, ok := c.(TextContent); ok {
			sb.WriteString(t.Text)
		}
	}
	return sb.String()
}

// ToolCallsOf returns the tool-call parts of content, in order.
func ToolCallsOf(content []Content) []ToolCallContent {
	var calls []ToolCallContent
	for _, c := range content {
		if tc, ok := c.(ToolCallContent); ok {
			calls = append(calls, tc)
		}
	}
	return calls
}

// ValidateToolResult rejects tool results whose Result array contains parts
// that are not allowed inside a result (nested tool calls, tool results,
// reasoning).
func ValidateToolResult(tr ToolResultContent) error {
	for _, c := range tr.Result {
		switch c.(type) {
		case TextContent, ImageContent, AudioContent, FileContent:
		default:
			return fmt.Errorf("tool result %s: disallowed nested %s content", tr.ID, c.contentType())
		}
	}
	return nil
}

// contentEnvelope is the JSON wire/persistence form of a content part.
type contentEnvelope struct {
	Type      string            `json:"type"`
	Text      string            `json:"text,omitempty"`
	Name      string            `json:"name,omitempty"`
	Data      string            `json:"data,omitempty"`
	ID        string            `json:"id,omitempty"`
	Summary   string            `json:"summary,omitempty"`
	Signature string            `json:"signature,omitempty"`
	Arguments string            `json:"arguments,omitempty"`
	Result    []json.RawMessage `json:"result,omitempty"`
}

// MarshalContent serializes one content part into its envelope form.
func MarshalContent(c Content) ([]byte, error) {
	env := contentEnvelope{Type: c.contentType()}

	switch v := c.(type) {
	case TextContent:
		env.Text = v.Text
	case ImageContent:
		env.Name = v.Name
		env.Data = v.Data
	case AudioContent:
		env.Name = v.Name
		env.Data = v.Data
	case FileContent:
		env.Name = v.Name
		env.Data = v.Data
	case ReasoningContent:
		env.ID = v.ID
		env.Text = v.Text
		env.Summary = v.Summary
		env.Signature = v.Signature
	case ToolCallContent:
		env.ID = v.ID
		env.Name = v.Name
		env.Arguments = v.Arguments
	case ToolResultContent:
		env.ID = v.ID
		env.Name = v.Name
		env.Arguments = v.Arguments
		for _, inner := range v.Result {
			raw, err := MarshalContent(inner)
			if err != nil {
				return nil, err
			}
			env.Result = append(env.Result, raw)
		}
	default:
		return nil, fmt.Errorf("unknown content type %T", c)
	}

	return json.Marshal(env)
}

// UnmarshalContent deserializes one content part from its envelope form.
func UnmarshalContent(data []byte) (Content, error) {
	var env contentEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse content part: %w", err)
	}

	switch env.Type {
	case ContentTypeText:
		return TextContent{Text: env.Text}, nil
	case ContentTypeImage:
		return ImageContent{Name: env.Name, Data: env.Data}, nil
	case ContentTypeAudio:
		return AudioContent{Name: env.Name, Data: env.Data}, nil
	case ContentTypeFile:
		return FileContent{Name: env.Name, Data: env.Data}, nil
	case ContentTypeReasoning:
		return ReasoningContent{ID: env.ID, Text: env.Text, Summary: env.Summary, Signature: env.Signature}, nil
	case ContentTypeToolCall:
		return ToolCallContent{ID: env.ID, Name: env.Name, Arguments: env.Arguments}, nil
	case ContentTypeToolResult:
		tr := ToolResultContent{ID: env.ID, Name: env.Name, Arguments: env.Arguments}
		for _, raw := range env.Result {
			inner, err := UnmarshalContent(raw)
			if err != nil {
				return nil, err
			}
			tr.Result = append(tr.Result, inner)
		}
		return tr, nil
	default:
		return nil, fmt.Errorf("unknown content type %q", env.Type)
	}
}

// MarshalContentList serializes a content array, preserving order.
func MarshalContentList(content []Content) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(content))
	for _, c := range content {
		raw, err := MarshalContent(c)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}

// UnmarshalContentList deserializes a content array, preserving order.
func UnmarshalContentList(raws []json.RawMessage) ([]Content, error) {
	out := make([]Content, 0, len(raws))
	for _, raw := range raws {
		c, err := UnmarshalContent(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
