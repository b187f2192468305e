// Package tools defines the capability surface the orchestrator can hand to
// a model: tool definitions, the provider bundles that contribute them, the
// registry that aggregates providers into one resolved tool set, and the
// elicitation gate a tool uses to pause for user approval.
package tools

import (
	"context"

	"loom/model"
)

// Func executes a tool call. Implementations must be safe to call
// sequentially from the orchestrator's turn loop; the loop itself never
// retries a failed call.
type Func func(ctx context.Context, args map[string]any, tc *Context) ([]model.Content, error)

// Tool is one callable capability. Parameters is a JSON-schema object map,
// the common denominator every completion backend accepts.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Function    Func
}

// Provider is an independently pluggable bundle of tools plus optional
// system instructions. Connected state is managed by whoever owns the
// provider (config, MCP process manager); the registry only reads it.
type Provider interface {
	ID() string
	Name() string
	Instructions() string
	Tools(ctx context.Context) ([]Tool, error)
	Connected() bool
}

// StaticProvider is a Provider over a fixed tool list. Built-in capability
// bundles use it; dynamic bundles (MCP) implement Provider directly.
type StaticProvider struct {
	ProviderID         string
	ProviderName       string
	SystemInstructions string
	ToolList           []Tool
	Disconnected       bool
}

func (p *StaticProvider) ID() string           { return p.ProviderID }
func (p *StaticProvider) Name() string         { return p.ProviderName }
func (p *StaticProvider) Instructions() string { return p.SystemInstructions }
func (p *StaticProvider) Connected() bool      { return !p.Disconnected }

func (p *StaticProvider) Tools(ctx context.Context) ([]Tool, error) {
	return p.ToolList, nil
}
