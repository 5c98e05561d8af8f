package testutils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"lumen/pkg/prompttypes"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/require"
)

// NewPromptContext returns a plain-terminal context for dir with fixed identity and time.
func NewPromptContext(dir string) *prompttypes.PromptContext {
	return &prompttypes.PromptContext{
		Directory: dir,
		HomeDir:   "/home/tester",
		User:      "tester",
		Host:      "box.example.com",
		Shell:     "zsh",
		Terminal:  prompttypes.TerminalCaps{ColorProfile: termenv.Ascii, DarkBackground: true, Unicode: true, Width: 80},
		Now:       BaseTime,
	}
}

// ColorContext returns NewPromptContext with a 256-color terminal.
func ColorContext(dir string) *prompttypes.PromptContext {
	ctx := NewPromptContext(dir)
	ctx.Terminal.ColorProfile = termenv.ANSI256
	return ctx
}

// Theme returns a small complete theme for rendering tests.
func Theme(name string) *prompttypes.Theme {
	bold := true
	t := &prompttypes.Theme{
		Name:        name,
		Description: "test theme",
		Version:     "1.0.0",
	}
	t.Colors.Primary = prompttypes.StyleConfig{Foreground: "4", Bold: &bold}
	t.Colors.Error = prompttypes.StyleConfig{Foreground: "1"}
	t.Colors.Success = prompttypes.StyleConfig{Foreground: "2"}
	t.Symbols.Prompt = ">"
	t.Symbols.PromptError = "!"
	t.Layout.Primary = "${directory} ${symbol} "
	t.Layout.Right = "${time}"
	t.Layout.Continuation = "... "
	t.Layout.Transient = "${symbol} "
	return t
}

// MakeRepo creates a directory containing an empty .git directory and returns its path.
// It is enough for repository discovery; it is not a working git repository.
func MakeRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))
	return dir
}

// CreateTempDir creates a temporary directory containing files (relative path to content).
func CreateTempDir(t *testing.T, files map[string]string) string {
	t.Helper()
	tmpDir := t.TempDir()

	for filename, content := range files {
		filePath := filepath.Join(tmpDir, filename)
		require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0o755), "Should create directory for %s", filename)
		require.NoError(t, os.WriteFile(filePath, []byte(content), 0o644), "Should create file %s", filename)
	}

	return tmpDir
}

// WaitFor polls cond until it holds or timeout elapses, reporting whether it held.
func WaitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
