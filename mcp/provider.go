package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"loom/model"
	"loom/tools"
)

// Provider adapts a connected MCP server to the engine's tool provider
// interface.
type Provider struct {
	server *Server
}

// NewProvider wraps a connected server.
func NewProvider(server *Server) *Provider {
	return &Provider{server: server}
}

func (p *Provider) ID() string { return p.server.cfg.ID }

func (p *Provider) Name() string {
	if p.server.cfg.Name != "" {
		return p.server.cfg.Name
	}
	return p.server.cfg.ID
}

// Instructions returns the usage guidance the server declared at
// initialization, if any.
func (p *Provider) Instructions() string {
	p.server.mu.Lock()
	defer p.server.mu.Unlock()
	return p.server.instructions
}

func (p *Provider) Connected() bool {
	p.server.mu.Lock()
	defer p.server.mu.Unlock()
	return p.server.connected
}

// Tools returns the server's tools wrapped as callable engine tools.
func (p *Provider) Tools(ctx context.Context) ([]tools.Tool, error) {
	p.server.mu.Lock()
	remote := make([]mcptypes.Tool, len(p.server.tools))
	copy(remote, p.server.tools)
	p.server.mu.Unlock()

	out := make([]tools.Tool, 0, len(remote))
	for _, t := range remote {
		name := t.Name
		out = append(out, tools.Tool{
			Name:        name,
			Description: t.Description,
			Parameters:  schemaToMap(t.InputSchema),
			Function: func(ctx context.Context, args map[string]any, _ *tools.Context) ([]model.Content, error) {
				result, err := p.server.CallTool(ctx, name, args)
				if err != nil {
					return nil, fmt.Errorf("tool %s failed: %w", name, err)
				}
				return resultToContent(result)
			},
		})
	}
	return out, nil
}

// schemaToMap converts an MCP input schema to the generic JSON-schema map
// the completion backends consume.
func schemaToMap(schema mcptypes.ToolInputSchema) map[string]any {
	m := map[string]any{
		"type": schema.Type,
	}
	if m["type"] == "" {
		m["type"] = "object"
	}
	if schema.Properties != nil {
		m["properties"] = schema.Properties
	} else {
		m["properties"] = map[string]any{}
	}
	if len(schema.Required) > 0 {
		m["required"] = schema.Required
	}
	if schema.Defs != nil {
		m["$defs"] = schema.Defs
	}
	return m
}

// resultToContent converts an MCP call result into content parts. Unknown
// content kinds are carried as their JSON encoding so nothing is silently
// dropped.
func resultToContent(result *mcptypes.CallToolResult) ([]model.Content, error) {
	if result.IsError {
		return nil, fmt.Errorf("tool reported error: %s", flattenText(result))
	}

	var out []model.Content
	for _, item := range result.Content {
		switch c := item.(type) {
		case mcptypes.TextContent:
			out = append(out, model.TextContent{Text: c.Text})
		case mcptypes.ImageContent:
			out = append(out, model.ImageContent{Name: c.MIMEType, Data: c.Data})
		case mcptypes.AudioContent:
			out = append(out, model.AudioContent{Name: c.MIMEType, Data: c.Data})
		default:
			data, err := json.Marshal(item)
			if err != nil {
				continue
			}
			out = append(out, model.TextContent{Text: string(data)})
		}
	}

	if len(out) == 0 {
		out = append(out, model.TextContent{Text: "Tool executed successfully (no output)"})
	}
	return out, nil
}

func flattenText(result *mcptypes.CallToolResult) string {
	for _, item := range result.Content {
		if c, ok := item.(mcptypes.TextContent); ok {
			return c.Text
		}
	}
	data, err := json.Marshal(result.Content)
	if err != nil {
		return "unknown error"
	}
	return string(data)
}
