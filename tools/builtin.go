package tools

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"loom/model"
)

const maxSearchMatches = 200

// NewRepositoryProvider returns the built-in repository search bundle:
// read-only tools over a local directory tree.
func NewRepositoryProvider(root string) *StaticProvider {
	return &StaticProvider{
		ProviderID:         "repository",
		ProviderName:       "Repository Search",
		SystemInstructions: "You can search the user's repository with the grep and find_files tools. Prefer targeted searches over broad ones.",
		ToolList: []Tool{
			{
				Name:        "grep",
				Description: "Search file contents by regex pattern. Returns matching lines with file paths and line numbers.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"pattern": map[string]any{"type": "string", "description": "Regex pattern to search for"},
						"include": map[string]any{"type": "string", "description": "Glob pattern to filter files (e.g. *.go)"},
					},
					"required": []string{"pattern"},
				},
				Function: func(ctx context.Context, args map[string]any, _ *Context) ([]model.Content, error) {
					return grepTree(root, stringArg(args, "pattern"), stringArg(args, "include"))
				},
			},
			{
				Name:        "find_files",
				Description: "Find files by glob pattern. Returns matching paths.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"pattern": map[string]any{"type": "string", "description": "Glob pattern to match against file names"},
					},
					"required": []string{"pattern"},
				},
				Function: func(ctx context.Context, args map[string]any, _ *Context) ([]model.Content, error) {
					return findFiles(root, stringArg(args, "pattern"))
				},
			},
		},
	}
}

// NewInterpreterProvider returns the built-in shell interpreter bundle.
// Execution is side-effecting, so every run is gated behind an elicitation:
// the tool pauses until the user accepts, and returns a refusal text on
// decline or cancel.
func NewInterpreterProvider(workdir string, timeout time.Duration) *StaticProvider {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &StaticProvider{
		ProviderID:         "interpreter",
		ProviderName:       "Shell Interpreter",
		SystemInstructions: "You can run shell commands with the run_command tool. Each run requires explicit user approval.",
		ToolList: []Tool{
			{
				Name:        "run_command",
				Description: "Run a shell command in the user's workspace and return its output. Requires user approval.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"command": map[string]any{"type": "string", "description": "Shell command to execute"},
					},
					"required": []string{"command"},
				},
				Function: func(ctx context.Context, args map[string]any, tc *Context) ([]model.Content, error) {
					command := stringArg(args, "command")
					if command == "" {
						return nil, fmt.Errorf("command is required")
					}

					res, err := tc.Elicit(ctx, Elicitation{
						Message: fmt.Sprintf("Allow running shell command?\n\n  %s", command),
					})
					if err != nil {
						return nil, err
					}
					if res.Action != ElicitationAccept {
						return []model.Content{model.TextContent{
							Text: fmt.Sprintf("The user %sed running the command.", res.Action),
						}}, nil
					}

					return runCommand(ctx, workdir, command, timeout)
				},
			},
		},
	}
}

func runCommand(ctx context.Context, workdir, command string, timeout time.Duration) ([]model.Content, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	cmd.Dir = workdir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	text := out.String()
	if err != nil {
		text = fmt.Sprintf("%s\nexit error: %v", text, err)
	}
	if text == "" {
		text = "(no output)"
	}

	return []model.Content{model.TextContent{Text: text}}, nil
}

func grepTree(root, pattern, include string) ([]model.Content, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return []model.Content{model.TextContent{Text: fmt.Sprintf("invalid regex: %v", err)}}, nil
	}

	var sb strings.Builder
	count := 0

	filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || count >= maxSearchMatches {
			return nil
		}
		if include != "" {
			if ok, _ := filepath.Match(include, filepath.Base(path)); !ok {
				return nil
			}
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		for i, line := range strings.Split(string(data), "\n") {
			if re.MatchString(line) {
				fmt.Fprintf(&sb, "%s:%d: %s\n", rel, i+1, line)
				count++
				if count >= maxSearchMatches {
					break
				}
			}
		}
		return nil
	})

	if count == 0 {
		return []model.Content{model.TextContent{Text: "no matches"}}, nil
	}
	return []model.Content{model.TextContent{Text: sb.String()}}, nil
}

func findFiles(root, pattern string) ([]model.Content, error) {
	var sb strings.Builder
	count := 0

	filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || count >= maxSearchMatches {
			return nil
		}
		if ok, _ := filepath.Match(pattern, filepath.Base(path)); ok {
			rel, _ := filepath.Rel(root, path)
			sb.WriteString(rel)
			sb.WriteString("\n")
			count++
		}
		return nil
	})

	if count == 0 {
		return []model.Content{model.TextContent{Text: "no matches"}}, nil
	}
	return []model.Content{model.TextContent{Text: sb.String()}}, nil
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}
