package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"loom/config"
	"loom/model"
	"loom/provider"
	"loom/tools"
)

// DefaultMaxRounds bounds the number of completion rounds a single turn may
// run before the engine gives up. Each tool round-trip costs one round, so a
// bound this size only trips on models stuck in a request loop.
const DefaultMaxRounds = 16

// ErrTurnInFlight is returned by SendMessage when a previous turn has not
// finished yet.
var ErrTurnInFlight = errors.New("a response is already in progress")

// Options configures an Engine.
type Options struct {
	// DefaultModel is the model id assigned to newly created chats.
	DefaultModel string

	// Instructions is the base system prompt. Provider instruction sections
	// are appended to it at resolution time.
	Instructions string

	// Policies maps model ids to tool allow/deny policies. Models without an
	// entry get the zero policy (everything allowed).
	Policies map[string]tools.Policy

	// MaxRounds overrides DefaultMaxRounds when positive.
	MaxRounds int

	// GenerateTitles enables background title summarization after the first
	// completed turn of a chat.
	GenerateTitles bool
}

// Engine drives turns: it streams completions from the injected client,
// executes requested tools sequentially, and commits every intermediate
// conversation state to the store so an interrupted turn still leaves a
// coherent transcript.
type Engine struct {
	client provider.Client
	store  *Store
	gate   *tools.Gate
	opts   Options

	mu         sync.Mutex
	chatID     string
	responding bool
	inflight   []model.Content
}

// New creates an engine around an injected completion client and chat store.
func New(client provider.Client, store *Store, opts Options) *Engine {
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = DefaultMaxRounds
	}
	return &Engine{
		client: client,
		store:  store,
		gate:   tools.NewGate(),
		opts:   opts,
	}
}

// SelectChat makes the chat with the given id the active one. Commits from a
// turn started against a previously active chat are discarded from then on.
func (e *Engine) SelectChat(id string) error {
	if _, ok := e.store.Chat(id); !ok {
		return fmt.Errorf("chat %s not found", id)
	}
	e.mu.Lock()
	e.chatID = id
	e.mu.Unlock()
	return nil
}

// NewChat creates a fresh chat and makes it active.
func (e *Engine) NewChat() model.Chat {
	chat := e.store.CreateChat(e.opts.DefaultModel)
	e.mu.Lock()
	e.chatID = chat.ID
	e.mu.Unlock()
	return chat
}

// CurrentChat returns a snapshot of the active chat.
func (e *Engine) CurrentChat() (model.Chat, bool) {
	e.mu.Lock()
	id := e.chatID
	e.mu.Unlock()
	if id == "" {
		return model.Chat{}, false
	}
	return e.store.Chat(id)
}

// Responding reports whether a turn is currently in flight.
func (e *Engine) Responding() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.responding
}

// InFlight returns the partial content of the assistant message currently
// being streamed, or nil when nothing is streaming. Each streaming event
// supersedes the previous snapshot.
func (e *Engine) InFlight() []model.Content {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inflight
}

// PendingElicitation returns the elicitation a running tool is blocked on,
// or nil.
func (e *Engine) PendingElicitation() *tools.PendingElicitation {
	return e.gate.Pending()
}

// ResolveElicitation answers the pending elicitation and unblocks the tool.
func (e *Engine) ResolveElicitation(res tools.ElicitationResult) error {
	return e.gate.Resolve(res)
}

// SendText is a convenience wrapper around SendMessage for plain text input.
func (e *Engine) SendText(ctx context.Context, text string, providers []tools.Provider) error {
	return e.SendMessage(ctx, model.NewUserText(text), providers)
}

// SendMessage runs a full turn: it appends msg to the active chat (creating
// one if none is active), then alternates streaming and tool execution until
// the model produces a message with no tool calls. The method blocks until
// the turn reaches a terminal state.
func (e *Engine) SendMessage(ctx context.Context, msg model.Message, providers []tools.Provider) error {
	return e.send(ctx, msg, nil, providers)
}

// SendMessageWithHistory runs a turn against an explicit prior history
// instead of the stored transcript. The stored chat is overwritten with
// history plus the new message, so edits and retries truncate what follows.
func (e *Engine) SendMessageWithHistory(ctx context.Context, msg model.Message, history []model.Message, providers []tools.Provider) error {
	if history == nil {
		history = []model.Message{}
	}
	return e.send(ctx, msg, history, providers)
}

func (e *Engine) send(ctx context.Context, msg model.Message, history []model.Message, providers []tools.Provider) error {
	e.mu.Lock()
	if e.responding {
		e.mu.Unlock()
		return ErrTurnInFlight
	}
	e.responding = true
	if e.chatID == "" {
		e.mu.Unlock()
		chat := e.store.CreateChat(e.opts.DefaultModel)
		e.mu.Lock()
		e.chatID = chat.ID
	}
	targetID := e.chatID
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.responding = false
		e.inflight = nil
		e.mu.Unlock()
		e.gate.Clear()
	}()

	chat, ok := e.store.Chat(targetID)
	if !ok {
		return fmt.Errorf("chat %s not found", targetID)
	}

	conversation := history
	if conversation == nil {
		conversation = chat.Messages
	}
	conversation = append(conversation[:0:0], conversation...)
	conversation = append(conversation, msg)
	e.commit(targetID, conversation)

	res := tools.Resolve(ctx, e.policyFor(chat.Model), e.opts.Instructions, providers)

	firstTurn := chat.Title == "" && len(chat.Messages) == 0

	for round := 0; ; round++ {
		if round >= e.opts.MaxRounds {
			conversation = append(conversation, errorMessage(model.ErrorCodeMaxRounds,
				fmt.Sprintf("Stopped after %d tool rounds without a final response.", e.opts.MaxRounds)))
			e.commit(targetID, conversation)
			return nil
		}

		assistant, err := e.stream(ctx, chat.Model, res, conversation)
		if err != nil {
			if provider.IsTruncatedStream(err) {
				// The request was cancelled or the stream cut off mid-flight.
				// The partial content is dropped and the turn ends quietly.
				if config.DebugLog != nil {
					config.DebugLog.Printf("[Engine] stream truncated for chat %s", targetID)
				}
				return nil
			}
			code := provider.Classify(err)
			conversation = append(conversation, errorMessage(code, err.Error()))
			e.commit(targetID, conversation)
			return nil
		}

		conversation = append(conversation, assistant)
		e.commit(targetID, conversation)

		calls := model.ToolCallsOf(assistant.Content)
		if len(calls) == 0 {
			break
		}

		for _, call := range calls {
			conversation = append(conversation, e.runTool(ctx, res, call))
			e.commit(targetID, conversation)
			e.gate.Clear()
		}
	}

	if firstTurn && e.opts.GenerateTitles {
		go e.generateTitle(targetID, chat.Model, conversation)
	}
	return nil
}

// stream runs one completion round, publishing growing snapshots of the
// assistant message as they arrive.
func (e *Engine) stream(ctx context.Context, modelID string, res tools.Resolution, conversation []model.Message) (model.Message, error) {
	req := provider.Request{
		Model:        modelID,
		Instructions: res.Instructions,
		Messages:     conversation,
		Tools:        res.Tools,
	}

	assistant, err := e.client.Complete(ctx, req, func(content []model.Content) {
		e.mu.Lock()
		e.inflight = content
		e.mu.Unlock()
	})

	e.mu.Lock()
	e.inflight = nil
	e.mu.Unlock()

	return assistant, err
}

// runTool executes a single tool call and always produces a user-role
// result message, so the transcript stays well-formed even when the tool is
// unknown or fails.
func (e *Engine) runTool(ctx context.Context, res tools.Resolution, call model.ToolCallContent) model.Message {
	tool, ok := res.Lookup(call.Name)
	if !ok {
		result := model.NewToolResultMessage(call, []model.Content{
			model.TextContent{Text: fmt.Sprintf("Tool %q is not available.", call.Name)},
		})
		result.Error = &model.MessageError{
			Code:    model.ErrorCodeToolNotFound,
			Message: fmt.Sprintf("tool %q not found", call.Name),
		}
		return result
	}

	args := tools.ParseArguments(call.Arguments)
	tc := tools.NewContext(call.ID, call.Name, e.gate)

	out, err := tool.Function(ctx, args, tc)
	if err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Engine] tool %s failed: %v", call.Name, err)
		}
		result := model.NewToolResultMessage(call, []model.Content{
			model.TextContent{Text: fmt.Sprintf("The tool %q failed to run.", call.Name)},
		})
		result.Error = &model.MessageError{
			Code:    model.ErrorCodeToolExecution,
			Message: fmt.Sprintf("tool %q execution failed", call.Name),
		}
		return result
	}

	if len(out) == 0 {
		out = []model.Content{model.TextContent{Text: "(no output)"}}
	}

	result := model.NewToolResultMessage(call, out)
	if err := model.ValidateToolResult(result.Content[0].(model.ToolResultContent)); err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Engine] tool %s returned invalid content: %v", call.Name, err)
		}
		result = model.NewToolResultMessage(call, []model.Content{
			model.TextContent{Text: fmt.Sprintf("The tool %q failed to run.", call.Name)},
		})
		result.Error = &model.MessageError{
			Code:    model.ErrorCodeToolExecution,
			Message: fmt.Sprintf("tool %q returned disallowed content", call.Name),
		}
	}
	return result
}

// commit writes the conversation back to the store unless the user switched
// chats mid-turn, in which case the stale turn's updates are dropped.
func (e *Engine) commit(targetID string, conversation []model.Message) {
	e.mu.Lock()
	current := e.chatID
	e.mu.Unlock()

	if current != targetID {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Engine] dropping stale commit for chat %s", targetID)
		}
		return
	}

	snapshot := append(conversation[:0:0], conversation...)
	if err := e.store.UpdateChat(targetID, func(chat *model.Chat) {
		chat.Messages = snapshot
	}); err != nil && config.DebugLog != nil {
		config.DebugLog.Printf("[Engine] commit failed for chat %s: %v", targetID, err)
	}
}

func (e *Engine) policyFor(modelID string) tools.Policy {
	if e.opts.Policies == nil {
		return tools.Policy{}
	}
	return e.opts.Policies[modelID]
}

func errorMessage(code model.ErrorCode, text string) model.Message {
	return model.Message{
		Role:    model.RoleAssistant,
		Content: []model.Content{},
		Error:   &model.MessageError{Code: code, Message: text},
	}
}
