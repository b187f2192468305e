// Package testutil provides configurable mock completion clients for tests.
package testutil

import (
	"context"
	"time"

	"loom/model"
	"loom/provider"
)

// Step is one scripted completion round: optional streaming snapshots, then
// either a final message or an error.
type Step struct {
	Snapshots [][]model.Content
	Message   model.Message
	Err       error
}

// MockClient implements provider.Client by replaying a script of steps, one
// per Complete call. Calls past the end of the script return the last step.
type MockClient struct {
	// CompleteFunc overrides scripted behavior entirely when set.
	CompleteFunc func(ctx context.Context, req provider.Request, onStream provider.StreamFunc) (model.Message, error)

	Script []Step

	// Requests records every request received, for assertions.
	Requests []provider.Request

	calls int
}

// NewMockClient creates a mock that replays the given steps.
func NewMockClient(script ...Step) *MockClient {
	return &MockClient{Script: script}
}

// AssistantText is a convenience step: a plain text assistant message.
func AssistantText(text string) Step {
	return Step{Message: model.Message{
		Role:      model.RoleAssistant,
		Content:   []model.Content{model.TextContent{Text: text}},
		Timestamp: time.Now(),
	}}
}

// AssistantToolCalls is a convenience step: an assistant message requesting
// the given tool calls.
func AssistantToolCalls(calls ...model.ToolCallContent) Step {
	content := make([]model.Content, len(calls))
	for i, c := range calls {
		content[i] = c
	}
	return Step{Message: model.Message{
		Role:      model.RoleAssistant,
		Content:   content,
		Timestamp: time.Now(),
	}}
}

func (m *MockClient) Complete(ctx context.Context, req provider.Request, onStream provider.StreamFunc) (model.Message, error) {
	m.Requests = append(m.Requests, req)

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req, onStream)
	}

	if len(m.Script) == 0 {
		return model.Message{Role: model.RoleAssistant, Timestamp: time.Now()}, nil
	}

	idx := m.calls
	if idx >= len(m.Script) {
		idx = len(m.Script) - 1
	}
	m.calls++

	step := m.Script[idx]
	if onStream != nil {
		for _, snap := range step.Snapshots {
			onStream(snap)
		}
	}
	if step.Err != nil {
		return model.Message{}, step.Err
	}
	return step.Message, nil
}

func (m *MockClient) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	return []provider.ModelInfo{{Name: "mock-model", Provider: "mock"}}, nil
}

func (m *MockClient) Ping(ctx context.Context) error { return nil }
