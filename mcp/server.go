// Package mcp connects to Model Context Protocol servers and exposes their
// tools as a tool provider the engine can resolve.
package mcp

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"loom/config"
)

const protocolVersion = "2025-06-18"

// ServerConfig describes one MCP server. Local servers are spawned over
// stdio; remote servers are reached over SSE or streamable HTTP.
type ServerConfig struct {
	ID      string
	Name    string
	Command string
	Args    []string
	Env     map[string]string

	// Remote servers only.
	URL       string
	Transport string // "sse" (default) or "streamable-http"
	Headers   map[string]string
}

// Server is a live connection to one MCP server.
type Server struct {
	cfg    ServerConfig
	client *client.Client
	cmd    *exec.Cmd

	mu           sync.Mutex
	tools        []mcptypes.Tool
	instructions string
	connected    bool
}

// Connect starts (or dials) the server, initializes the protocol, and
// caches the initial tool list.
func Connect(ctx context.Context, cfg ServerConfig) (*Server, error) {
	s := &Server{cfg: cfg}

	var err error
	if cfg.URL != "" {
		s.client, err = dialRemote(ctx, cfg)
	} else {
		s.client, s.cmd, err = spawnLocal(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server %s: %w", cfg.ID, err)
	}

	initReq := mcptypes.InitializeRequest{
		Params: mcptypes.InitializeParams{
			ProtocolVersion: protocolVersion,
			Capabilities:    mcptypes.ClientCapabilities{},
			ClientInfo: mcptypes.Implementation{
				Name:    "loom",
				Version: "1.0.0",
			},
		},
	}
	initResult, err := s.client.Initialize(ctx, initReq)
	if err != nil {
		s.shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize server %s: %w", cfg.ID, err)
	}
	s.instructions = initResult.Instructions

	if err := s.RefreshTools(ctx); err != nil {
		s.shutdown(ctx)
		return nil, err
	}

	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()

	if config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] Connected to server '%s' (%d tools)", cfg.ID, len(s.tools))
	}
	return s, nil
}

// RefreshTools re-fetches the server's tool list.
func (s *Server) RefreshTools(ctx context.Context) error {
	result, err := s.client.ListTools(ctx, mcptypes.ListToolsRequest{})
	if err != nil {
		return fmt.Errorf("failed to list tools for %s: %w", s.cfg.ID, err)
	}

	s.mu.Lock()
	s.tools = result.Tools
	s.mu.Unlock()
	return nil
}

// CallTool invokes a tool on the server.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (*mcptypes.CallToolResult, error) {
	req := mcptypes.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return s.client.CallTool(ctx, req)
}

// Close disconnects from the server, killing the local process if the
// client does not shut down within a second.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return nil
	}
	s.connected = false
	s.mu.Unlock()

	s.shutdown(ctx)
	return nil
}

func (s *Server) shutdown(ctx context.Context) {
	if s.client != nil {
		closeCtx, cancel := context.WithTimeout(ctx, 1*time.Second)
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- s.client.Close() }()

		select {
		case <-done:
		case <-closeCtx.Done():
			if config.DebugLog != nil {
				config.DebugLog.Printf("[MCP] Close timeout for '%s'", s.cfg.ID)
			}
		}
	}

	if s.cmd != nil && s.cmd.Process != nil {
		if err := s.cmd.Process.Kill(); err != nil && config.DebugLog != nil {
			config.DebugLog.Printf("[MCP] Error killing process for '%s': %v", s.cfg.ID, err)
		}
	}
}

func spawnLocal(cfg ServerConfig) (*client.Client, *exec.Cmd, error) {
	env := os.Environ()
	for k, v := range cfg.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	var capturedCmd *exec.Cmd
	cmdFunc := func(ctx context.Context, command string, env []string, args []string) (*exec.Cmd, error) {
		cmd := exec.CommandContext(ctx, command, args...)
		cmd.Env = env
		capturedCmd = cmd
		return cmd, nil
	}

	mcpClient, err := client.NewStdioMCPClientWithOptions(
		cfg.Command,
		env,
		cfg.Args,
		transport.WithCommandFunc(cmdFunc),
	)
	if err != nil {
		return nil, nil, err
	}

	if capturedCmd != nil && capturedCmd.Process != nil && config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] Started local server '%s' with PID %d", cfg.ID, capturedCmd.Process.Pid)
	}
	return mcpClient, capturedCmd, nil
}

func dialRemote(ctx context.Context, cfg ServerConfig) (*client.Client, error) {
	switch cfg.Transport {
	case "streamable-http":
		var opts []transport.StreamableHTTPCOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(cfg.Headers))
		}

		mcpClient, err := client.NewStreamableHttpClient(cfg.URL, opts...)
		if err != nil {
			return nil, err
		}
		if err := mcpClient.GetTransport().Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start HTTP transport: %w", err)
		}
		return mcpClient, nil

	case "sse", "":
		var opts []transport.ClientOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHeaders(cfg.Headers))
		}

		mcpClient, err := client.NewSSEMCPClient(cfg.URL, opts...)
		if err != nil {
			return nil, err
		}
		if err := mcpClient.GetTransport().Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start SSE transport: %w", err)
		}
		return mcpClient, nil

	default:
		return nil, fmt.Errorf("unknown transport type: %s", cfg.Transport)
	}
}
