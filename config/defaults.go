package config

func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		DataDirectory: GetDefaultDataDir(),
	}
}

func DefaultUserConfig() *UserConfig {
	return &UserConfig{
		DefaultModel:   "llama3.1:latest",
		GenerateTitles: true,
		Ollama: OllamaConfig{
			Host: "http://localhost:11434",
		},
		Security: SecurityConfig{
			CredentialStorage: string(SecurityPlainText),
		},
	}
}

func GenerateSystemConfigTemplate() string {
	return `# Loom System Configuration
# Location: ~/.config/loom/settings.toml
# This file uses TOML format: https://toml.io

# Directory where chats, credentials, and user config are stored
data_directory = "~/.local/share/loom"
`
}

func GenerateUserConfigTemplate() string {
	return `# Loom User Configuration
# Location: <data_directory>/config.toml
# This file uses TOML format: https://toml.io

# Model assigned to new chats
default_model = "llama3.1:latest"

# Base system prompt prepended to every conversation (optional)
instructions = ""

# Generate a short chat title after the first exchange
generate_titles = true

[ollama]
# Ollama server URL
host = "http://localhost:11434"

[security]
# How API keys are stored: "plaintext" or "ssh_key"
credential_storage = "plaintext"

# Cloud providers. API keys live in the credential store, not here.
# [[providers]]
# id = "anthropic"
# type = "anthropic"
# enabled = true

# Per-model tool policy. A non-empty enabled list allows only those tools.
# [models."llama3.1:latest".tools]
# disabled = ["run_command"]

# MCP servers connected at startup.
# [[mcp_servers]]
# id = "filesystem"
# command = "npx"
# args = ["-y", "@modelcontextprotocol/server-filesystem", "/tmp"]
`
}
