// Package provider implements the completion client adapters.
//
// Loom talks to multiple completion backends (OpenAI, Anthropic, Ollama)
// through the narrow Client interface. The orchestration engine depends only
// on that contract: given a model id, instructions, conversation history and
// tool definitions, an adapter streams partial content snapshots and returns
// one finalized assistant message. All provider-specific wire types stay
// inside this package.
//
// Adapters never retry; failures are classified by Classify and surfaced by
// the engine. A stream that ends without a finish signal is reported as the
// typed ErrTruncatedStream rather than a pattern-matched error string.
package provider

import (
	"context"
	"fmt"

	"loom/model"
	"loom/tools"
)

// StreamFunc receives the current best-known partial content array. Each
// invocation carries a growing snapshot, not a delta; the finalized message
// returned by Complete is authoritative and supersedes every snapshot.
type StreamFunc func(content []model.Content)

// Options are per-request generation knobs. Adapters ignore the ones their
// backend has no equivalent for.
type Options struct {
	Effort    string
	Summary   string
	Verbosity string
}

// Request is one completion round: the full conversation so far plus the
// resolved tool set for the turn.
type Request struct {
	Model        string
	Instructions string
	Messages     []model.Message
	Tools        []tools.Tool
	Options      Options
}

// Client is the completion adapter contract consumed by the engine.
type Client interface {
	// Complete sends the request, invoking onStream zero or more times with
	// partial content strictly before returning the finalized message.
	Complete(ctx context.Context, req Request, onStream StreamFunc) (model.Message, error)

	// ListModels returns the models this backend can serve.
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// Ping checks if the backend is reachable with the configured credentials.
	Ping(ctx context.Context) error
}

// ModelInfo describes one selectable model.
type ModelInfo struct {
	Name     string
	Provider string
	Size     int64
}

// Type identifies the adapter implementation.
type Type string

const (
	TypeOpenAI    Type = "openai"
	TypeAnthropic Type = "anthropic"
	TypeOllama    Type = "ollama"
)

// Config holds adapter construction parameters. OpenRouter and other
// OpenAI-compatible backends use TypeOpenAI with their own BaseURL.
type Config struct {
	Type    Type
	BaseURL string
	APIKey  string
}

// New constructs the adapter for cfg.Type.
func New(cfg Config) (Client, error) {
	switch cfg.Type {
	case TypeOpenAI:
		return NewOpenAIClient(cfg.BaseURL, cfg.APIKey)
	case TypeAnthropic:
		return NewAnthropicClient(cfg.BaseURL, cfg.APIKey)
	case TypeOllama:
		return NewOllamaClient(cfg.BaseURL)
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}
