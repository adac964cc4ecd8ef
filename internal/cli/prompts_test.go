package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/prdloop/prdloop/internal/discovery"
)

func TestBuildConversionPrompt(t *testing.T) {
	projectCtx := &discovery.Context{
		Tree: "myproject/\n└── main.go",
		KeyFiles: []discovery.KeyFile{
			{Name: "go.mod", Content: "module example.com/myproject"},
		},
		Git: &discovery.GitInfo{Branch: "main", CommitCount: "42"},
	}

	prompt := buildConversionPrompt(projectCtx, "# My Spec\n\nBuild the thing.\n", "My Project")

	assert.Contains(t, prompt, "Git Branch: main")
	assert.Contains(t, prompt, "└── main.go")
	assert.Contains(t, prompt, "### go.mod")
	assert.Contains(t, prompt, "module example.com/myproject")
	assert.Contains(t, prompt, "Build the thing.")
	assert.Contains(t, prompt, "'My Project'")
	assert.Contains(t, prompt, "Output ONLY the JSON object")
}

func TestBuildConversionPromptNoKeyFiles(t *testing.T) {
	projectCtx := &discovery.Context{Tree: "empty/"}

	prompt := buildConversionPrompt(projectCtx, "spec", "Empty")

	assert.Contains(t, prompt, "(No key configuration files found)")
}

func TestBuildObservePrompt(t *testing.T) {
	prompt := buildObservePrompt("/tmp/logs/session_x", true)
	assert.Contains(t, prompt, "/tmp/logs/session_x/observation_report.md")
	assert.Contains(t, prompt, "## Create GitHub Issues\nyes")

	prompt = buildObservePrompt("/tmp/logs/session_x", false)
	assert.Contains(t, prompt, "## Create GitHub Issues\nno")
}
