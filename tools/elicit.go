package tools

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ElicitationAction is the user's decision on a pending elicitation.
type ElicitationAction string

const (
	ElicitationAccept  ElicitationAction = "accept"
	ElicitationDecline ElicitationAction = "decline"
	ElicitationCancel  ElicitationAction = "cancel"
)

// Elicitation is a tool's request for user approval before completing a
// side-effecting operation.
type Elicitation struct {
	Message string
}

// ElicitationResult carries the user's decision back to the awaiting tool.
type ElicitationResult struct {
	Action ElicitationAction
}

// PendingElicitation is the published record the UI renders an approval
// affordance for. Exactly zero or one is outstanding at any time.
type PendingElicitation struct {
	ToolCallID  string
	ToolName    string
	Elicitation Elicitation

	result chan ElicitationResult
}

// ErrElicitationPending is returned when a tool starts a second elicitation
// while one is already outstanding. Tool calls execute sequentially, so this
// is a programming error, not a queueing request.
var ErrElicitationPending = errors.New("an elicitation is already pending")

// ErrNoElicitationPending is returned by Resolve when there is nothing to
// resolve.
var ErrNoElicitationPending = errors.New("no elicitation is pending")

// Gate is the single-flight rendezvous between a tool that needs approval
// and the UI that grants it. State machine: none → pending → resolved →
// none.
type Gate struct {
	mu      sync.Mutex
	pending *PendingElicitation
}

func NewGate() *Gate {
	return &Gate{}
}

// Elicit publishes a pending elicitation and blocks until the UI resolves
// it or ctx is done. It fails fast if another elicitation is outstanding.
func (g *Gate) Elicit(ctx context.Context, toolCallID, toolName string, e Elicitation) (ElicitationResult, error) {
	g.mu.Lock()
	if g.pending != nil {
		g.mu.Unlock()
		return ElicitationResult{}, fmt.Errorf("tool %s: %w", toolName, ErrElicitationPending)
	}
	p := &PendingElicitation{
		ToolCallID:  toolCallID,
		ToolName:    toolName,
		Elicitation: e,
		result:      make(chan ElicitationResult, 1),
	}
	g.pending = p
	g.mu.Unlock()

	select {
	case res := <-p.result:
		return res, nil
	case <-ctx.Done():
		g.clearIf(p)
		return ElicitationResult{Action: ElicitationCancel}, ctx.Err()
	}
}

// clearIf drops the slot only if it still holds p. A cancelled waiter that
// lost the race with Resolve must not wipe a newer pending elicitation.
func (g *Gate) clearIf(p *PendingElicitation) {
	g.mu.Lock()
	if g.pending == p {
		g.pending = nil
	}
	g.mu.Unlock()
}

// Pending returns the outstanding elicitation, or nil.
func (g *Gate) Pending() *PendingElicitation {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending
}

// Resolve delivers the user's decision. The pending slot is cleared before
// the awaiting tool call can proceed, so a tool observing its own result
// never sees itself still pending.
func (g *Gate) Resolve(res ElicitationResult) error {
	g.mu.Lock()
	p := g.pending
	g.pending = nil
	g.mu.Unlock()

	if p == nil {
		return ErrNoElicitationPending
	}
	p.result <- res
	return nil
}

// Clear drops any outstanding elicitation without waking the waiter beyond
// its context. Called unconditionally on every turn exit path so a crashed
// tool never leaves the UI stuck.
func (g *Gate) Clear() {
	g.mu.Lock()
	g.pending = nil
	g.mu.Unlock()
}

// Context is handed to a tool function for the duration of one call. It is
// bound to the call's id and name so elicitations are attributable.
type Context struct {
	CallID   string
	ToolName string

	gate *Gate
}

// NewContext binds a tool-call context to a gate. The orchestrator builds
// one per tool call.
func NewContext(callID, toolName string, gate *Gate) *Context {
	return &Context{CallID: callID, ToolName: toolName, gate: gate}
}

// Elicit pauses the tool until the user decides. Tools receiving decline or
// cancel must return promptly with content describing the refusal.
func (c *Context) Elicit(ctx context.Context, e Elicitation) (ElicitationResult, error) {
	if c == nil || c.gate == nil {
		// No gate wired (headless test tool): treat as auto-accepted.
		return ElicitationResult{Action: ElicitationAccept}, nil
	}
	return c.gate.Elicit(ctx, c.CallID, c.ToolName, e)
}
