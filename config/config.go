// Package config loads loom's layered configuration: a small system file
// pointing at the data directory, and a user config living inside it.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// SystemConfig is the machine-level configuration in
// ~/.config/loom/settings.toml.
type SystemConfig struct {
	DataDirectory string `toml:"data_directory"`
}

// ProviderConfig describes one completion backend.
type ProviderConfig struct {
	ID      string `toml:"id"`
	Name    string `toml:"name,omitempty"`
	Type    string `toml:"type"` // "openai", "anthropic", "ollama"
	BaseURL string `toml:"base_url,omitempty"`
	Enabled bool   `toml:"enabled"`
}

// ModelTools is the per-model tool policy. A non-empty Enabled list is an
// allow-list and Disabled is ignored.
type ModelTools struct {
	Enabled  []string `toml:"enabled,omitempty"`
	Disabled []string `toml:"disabled,omitempty"`
}

// ModelConfig holds per-model settings.
type ModelConfig struct {
	Provider string     `toml:"provider,omitempty"`
	Tools    ModelTools `toml:"tools,omitempty"`
}

// MCPServerConfig describes one MCP server to connect at startup.
type MCPServerConfig struct {
	ID      string            `toml:"id"`
	Name    string            `toml:"name,omitempty"`
	Command string            `toml:"command,omitempty"`
	Args    []string          `toml:"args,omitempty"`
	Env     map[string]string `toml:"env,omitempty"`

	URL       string            `toml:"url,omitempty"`
	Transport string            `toml:"transport,omitempty"`
	Headers   map[string]string `toml:"headers,omitempty"`
}

// SecurityConfig selects how API credentials are stored at rest.
type SecurityConfig struct {
	CredentialStorage string `toml:"credential_storage"` // "plaintext" or "ssh_key"
	SSHKeyPath        string `toml:"ssh_key_path,omitempty"`
}

// OllamaConfig holds the local Ollama endpoint.
type OllamaConfig struct {
	Host string `toml:"host"`
}

// UserConfig is <data_directory>/config.toml.
type UserConfig struct {
	DefaultModel   string                 `toml:"default_model"`
	Instructions   string                 `toml:"instructions,omitempty"`
	MaxRounds      int                    `toml:"max_rounds,omitempty"`
	GenerateTitles bool                   `toml:"generate_titles"`
	Ollama         OllamaConfig           `toml:"ollama"`
	Security       SecurityConfig         `toml:"security"`
	Providers      []ProviderConfig       `toml:"providers,omitempty"`
	Models         map[string]ModelConfig `toml:"models,omitempty"`
	MCPServers     []MCPServerConfig      `toml:"mcp_servers,omitempty"`
}

// Config is the merged runtime configuration.
type Config struct {
	DataDirectory  string
	DefaultModel   string
	Instructions   string
	MaxRounds      int
	GenerateTitles bool
	OllamaHost     string
	Security       SecurityConfig
	Providers      []ProviderConfig
	Models         map[string]ModelConfig
	MCPServers     []MCPServerConfig

	CredentialStore *CredentialStore

	// NeedsPassphrase is set when the credential store is backed by a
	// passphrase-protected SSH key. The caller prompts, then calls
	// CredentialStore.SetPassphrase and Load.
	NeedsPassphrase bool
}

var Debug = false
var DebugLog *log.Logger

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

// Provider returns the configuration for a provider id.
func (c *Config) Provider(id string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.ID == id {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

func (c *Config) applyEnvOverrides() {
	if host := os.Getenv("LOOM_OLLAMA_HOST"); host != "" {
		c.OllamaHost = host
	}
	if model := os.Getenv("LOOM_MODEL"); model != "" {
		c.DefaultModel = model
	}
	if dataDir := os.Getenv("LOOM_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
}

func CheckDebug() bool {
	debug := os.Getenv("LOOM_DEBUG")
	return debug == "true" || debug == "1"
}

// InitDebugLog opens <data>/debug.log when LOOM_DEBUG is set. DebugLog stays
// nil otherwise, and callers guard on that.
func InitDebugLog(dataDir string) {
	if !CheckDebug() {
		return
	}

	Debug = true
	logPath := filepath.Join(dataDir, "debug.log")

	// 0600 - may contain request payloads
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not open debug log at %s: %v\n", logPath, err)
		return
	}

	DebugLog = log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile)
	DebugLog.Printf("=== Debug logging started (LOOM_DEBUG=%s) ===", os.Getenv("LOOM_DEBUG"))
}

// Load reads system and user configuration, applies environment overrides,
// and loads stored credentials.
func Load() (*Config, error) {
	systemCfg, err := LoadSystemConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load system config: %w", err)
	}

	cfg := &Config{DataDirectory: systemCfg.DataDirectory}
	if dataDir := os.Getenv("LOOM_DATA_DIR"); dataDir != "" {
		cfg.DataDirectory = dataDir
	}

	dataDir := cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := EnsureDataDirPermissions(dataDir); err != nil {
		return nil, fmt.Errorf("failed to set data directory permissions: %w", err)
	}

	userCfg, err := LoadUserConfig(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}

	cfg.DefaultModel = userCfg.DefaultModel
	cfg.Instructions = userCfg.Instructions
	cfg.MaxRounds = userCfg.MaxRounds
	cfg.GenerateTitles = userCfg.GenerateTitles
	cfg.OllamaHost = userCfg.Ollama.Host
	cfg.Security = userCfg.Security
	cfg.Providers = userCfg.Providers
	cfg.Models = userCfg.Models
	cfg.MCPServers = userCfg.MCPServers
	cfg.applyEnvOverrides()

	method := SecurityMethod(cfg.Security.CredentialStorage)
	keyPath := ExpandPath(cfg.Security.SSHKeyPath)
	if method == SecuritySSHKey && keyPath == "" {
		keys, err := FindSSHKeys()
		if err != nil || len(keys) == 0 {
			return nil, fmt.Errorf("credential_storage is ssh_key but no SSH key was found in ~/.ssh")
		}
		keyPath = keys[0]
	}

	store := NewCredentialStore(method, keyPath)
	cfg.CredentialStore = store

	if method == SecuritySSHKey {
		encrypted, err := IsSSHKeyEncrypted(keyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to check SSH key: %w", err)
		}
		if encrypted {
			// Caller must supply the passphrase and call Load itself.
			cfg.NeedsPassphrase = true
			return cfg, nil
		}
	}

	if err := store.Load(dataDir); err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	return cfg, nil
}
