package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"loom/config"
	"loom/engine"
	"loom/mcp"
	"loom/model"
	"loom/provider"
	"loom/storage"
	"loom/tools"
)

const (
	Version = "v0.01.00"
	License = "Apache-2.0"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if cfg.NeedsPassphrase {
		fmt.Print("SSH key passphrase: ")
		pass, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read passphrase: %v\n", err)
			os.Exit(1)
		}
		cfg.CredentialStore.SetPassphrase(string(pass))
		if err := cfg.CredentialStore.Load(cfg.DataDir()); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load credentials: %v\n", err)
			os.Exit(1)
		}
	}

	config.InitDebugLog(cfg.DataDir())

	chatStorage, err := storage.NewChatStorage(cfg.DataDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize chat storage: %v\n", err)
		os.Exit(1)
	}

	index, err := storage.NewMessageIndex(cfg.DataDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize search index: %v\n", err)
		os.Exit(1)
	}
	defer index.Close()

	store, err := engine.NewStore(chatStorage)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load chats: %v\n", err)
		os.Exit(1)
	}

	client, err := buildClient(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to configure completion backend: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	providers, shutdown := buildProviders(ctx, cfg)
	defer shutdown()

	eng := engine.New(client, store, engine.Options{
		DefaultModel:   cfg.DefaultModel,
		Instructions:   cfg.Instructions,
		Policies:       buildPolicies(cfg),
		MaxRounds:      cfg.MaxRounds,
		GenerateTitles: cfg.GenerateTitles,
	})

	if lastID, err := chatStorage.LoadCurrentChatID(); err == nil && lastID != "" {
		if err := eng.SelectChat(lastID); err != nil && config.DebugLog != nil {
			config.DebugLog.Printf("[Main] could not resume chat %s: %v", lastID, err)
		}
	}

	fmt.Printf("loom %s (%s) — model %s. Type /help for commands.\n", Version, License, cfg.DefaultModel)
	repl(ctx, cfg, eng, store, chatStorage, index, providers)
}

// buildClient picks the completion backend for the default model. Ollama is
// the fallback when no cloud provider is configured.
func buildClient(cfg *config.Config) (provider.Client, error) {
	providerID := "ollama"
	if mc, ok := cfg.Models[cfg.DefaultModel]; ok && mc.Provider != "" {
		providerID = mc.Provider
	} else {
		for _, p := range cfg.Providers {
			if p.Enabled {
				providerID = p.ID
				break
			}
		}
	}

	pc, ok := cfg.Provider(providerID)
	if !ok {
		if providerID != "ollama" {
			return nil, fmt.Errorf("provider %s not configured", providerID)
		}
		pc = config.ProviderConfig{ID: "ollama", Type: string(provider.TypeOllama), BaseURL: cfg.OllamaHost}
	}
	if pc.Type == string(provider.TypeOllama) && pc.BaseURL == "" {
		pc.BaseURL = cfg.OllamaHost
	}

	return provider.New(provider.Config{
		Type:    provider.Type(pc.Type),
		BaseURL: pc.BaseURL,
		APIKey:  cfg.CredentialStore.Get(pc.ID),
	})
}

// buildProviders assembles the tool providers for every turn: the built-in
// local tools plus one provider per configured MCP server. The returned
// shutdown func disconnects the servers.
func buildProviders(ctx context.Context, cfg *config.Config) ([]tools.Provider, func()) {
	workdir, err := os.Getwd()
	if err != nil {
		workdir = "."
	}

	providers := []tools.Provider{
		tools.NewRepositoryProvider(workdir),
		tools.NewInterpreterProvider(workdir, 30*time.Second),
	}

	var servers []*mcp.Server
	for _, sc := range cfg.MCPServers {
		server, err := mcp.Connect(ctx, mcp.ServerConfig{
			ID:        sc.ID,
			Name:      sc.Name,
			Command:   sc.Command,
			Args:      sc.Args,
			Env:       sc.Env,
			URL:       sc.URL,
			Transport: sc.Transport,
			Headers:   sc.Headers,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: MCP server %s unavailable: %v\n", sc.ID, err)
			continue
		}
		servers = append(servers, server)
		providers = append(providers, mcp.NewProvider(server))
	}

	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, s := range servers {
			s.Close(shutdownCtx)
		}
	}
	return providers, shutdown
}

func buildPolicies(cfg *config.Config) map[string]tools.Policy {
	policies := make(map[string]tools.Policy, len(cfg.Models))
	for id, mc := range cfg.Models {
		policies[id] = tools.Policy{
			Enabled:  mc.Tools.Enabled,
			Disabled: mc.Tools.Disabled,
		}
	}
	return policies
}

func repl(ctx context.Context, cfg *config.Config, eng *engine.Engine, store *engine.Store, chatStorage *storage.ChatStorage, index *storage.MessageIndex, providers []tools.Provider) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := command(line, cfg, eng, store, chatStorage, index); quit {
				return
			}
			continue
		}

		runTurn(ctx, eng, scanner, line, providers)

		if chat, ok := eng.CurrentChat(); ok {
			chatStorage.SaveCurrentChatID(chat.ID)
			if err := index.IndexChat(&chat); err != nil && config.DebugLog != nil {
				config.DebugLog.Printf("[Main] failed to index chat %s: %v", chat.ID, err)
			}
		}
	}
}

// runTurn drives one turn, answering elicitation prompts from stdin while
// the engine is working.
func runTurn(ctx context.Context, eng *engine.Engine, scanner *bufio.Scanner, text string, providers []tools.Provider) {
	done := make(chan error, 1)
	go func() {
		done <- eng.SendText(ctx, text, providers)
	}()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				return
			}
			printReply(eng)
			return

		case <-ticker.C:
			pending := eng.PendingElicitation()
			if pending == nil {
				continue
			}

			fmt.Printf("\n%s\nAllow? [y/N] ", pending.Elicitation.Message)
			action := tools.ElicitationDecline
			if scanner.Scan() {
				answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
				if answer == "y" || answer == "yes" {
					action = tools.ElicitationAccept
				}
			}
			if err := eng.ResolveElicitation(tools.ElicitationResult{Action: action}); err != nil && config.DebugLog != nil {
				config.DebugLog.Printf("[Main] failed to resolve elicitation: %v", err)
			}
		}
	}
}

func printReply(eng *engine.Engine) {
	chat, ok := eng.CurrentChat()
	if !ok || len(chat.Messages) == 0 {
		return
	}

	last := chat.Messages[len(chat.Messages)-1]
	if last.Error != nil {
		fmt.Printf("[%s] %s\n", last.Error.Code, last.Error.Message)
		return
	}
	if text := model.TextOf(last.Content); text != "" {
		fmt.Println(text)
	}
}

func command(line string, cfg *config.Config, eng *engine.Engine, store *engine.Store, chatStorage *storage.ChatStorage, index *storage.MessageIndex) bool {
	fields := strings.Fields(line)
	arg := ""
	if len(fields) > 1 {
		arg = strings.Join(fields[1:], " ")
	}

	switch fields[0] {
	case "/quit", "/exit":
		return true

	case "/new":
		chat := eng.NewChat()
		chatStorage.SaveCurrentChatID(chat.ID)
		fmt.Printf("Started chat %s\n", chat.ID)

	case "/chats":
		chats := store.Chats()
		if arg != "" {
			chats = storage.RankChatsByTitle(arg, chats)
		}
		for _, c := range chats {
			title := c.Title
			if title == "" {
				title = "(untitled)"
			}
			fmt.Printf("%s  %s  %s\n", c.ID, c.Updated.Format("2006-01-02 15:04"), title)
		}

	case "/switch":
		if arg == "" {
			fmt.Println("Usage: /switch <chat-id or title>")
			break
		}
		id := arg
		if _, ok := store.Chat(id); !ok {
			// Not an id: treat the argument as a fuzzy title query.
			if ranked := storage.RankChatsByTitle(arg, store.Chats()); len(ranked) > 0 {
				id = ranked[0].ID
			}
		}
		if err := eng.SelectChat(id); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			break
		}
		chatStorage.SaveCurrentChatID(id)
		fmt.Printf("Switched to chat %s\n", id)

	case "/find":
		if arg == "" {
			fmt.Println("Usage: /find <query>")
			break
		}
		matches, err := index.Search(arg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			break
		}
		for _, m := range matches {
			fmt.Printf("%s #%d [%s] %s\n", m.ChatID, m.MessageIndex, m.Role, m.Preview)
		}

	case "/key":
		parts := strings.Fields(arg)
		if len(parts) != 2 {
			fmt.Println("Usage: /key <provider-id> <api-key>")
			break
		}
		cfg.CredentialStore.Set(parts[0], parts[1])
		if err := cfg.CredentialStore.Save(cfg.DataDir()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			break
		}
		fmt.Printf("Stored key for %s. Restart to apply to the active backend.\n", parts[0])

	case "/export":
		chat, ok := eng.CurrentChat()
		if !ok {
			fmt.Println("No active chat")
			break
		}
		path := arg
		if path == "" {
			path = storage.GenerateExportPath(chat.Title)
		}
		if err := chatStorage.ExportToJSON(chat.ID, path); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			break
		}
		fmt.Printf("Exported to %s\n", path)

	case "/help":
		fmt.Println("Commands: /new, /chats [query], /switch <id or title>, /find <query>, /key <provider> <api-key>, /export [path], /quit")

	default:
		fmt.Printf("Unknown command %s (try /help)\n", fields[0])
	}
	return false
}
