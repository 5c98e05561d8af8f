package theme

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lumen/pkg/prompttypes"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlTheme = `
name: sunset
description: Warm colors
version: 2.1.0
inherits_from: default
capabilities: [true_color, nerd_font]
colors:
  primary:
    foreground: "#ff8700"
    bold: true
  text:
    foreground:
      light: "236"
      dark: "254"
symbols:
  prompt: "→"
layout:
  primary: "${directory} ${symbol} "
  transient: "${symbol} "
`

const tomlTheme = `
name = "frost"
version = "1.0.0"
capabilities = ["color_256"]

[colors.primary]
foreground = "117"
italic = true

[symbols]
prompt = "❄"

[layout]
primary = "${directory} ${symbol} "
right = "${time}"
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDecode(t *testing.T) {
	t.Run("yaml", func(t *testing.T) {
		theme, err := Decode([]byte(yamlTheme), FormatYAML)
		require.NoError(t, err)

		assert.Equal(t, "sunset", theme.Name)
		assert.Equal(t, "default", theme.InheritsFrom)
		assert.Equal(t, "#ff8700", theme.Colors.Primary.Foreground)
		require.NotNil(t, theme.Colors.Primary.Bold)
		assert.True(t, *theme.Colors.Primary.Bold)
		assert.Equal(t, map[string]interface{}{"light": "236", "dark": "254"}, theme.Colors.Text.Foreground)
		assert.Equal(t, "→", theme.Symbols.Prompt)
		assert.True(t, theme.Capabilities.Has(prompttypes.ThemeTrueColor|prompttypes.ThemeNerdFont))
		assert.True(t, theme.Capabilities.Has(prompttypes.ThemeTransient), "a transient layout implies the capability")
		assert.False(t, theme.Capabilities.Has(prompttypes.ThemeRightPrompt))
	})

	t.Run("toml", func(t *testing.T) {
		theme, err := Decode([]byte(tomlTheme), FormatTOML)
		require.NoError(t, err)

		assert.Equal(t, "frost", theme.Name)
		assert.Equal(t, "117", theme.Colors.Primary.Foreground)
		require.NotNil(t, theme.Colors.Primary.Italic)
		assert.True(t, *theme.Colors.Primary.Italic)
		assert.Equal(t, "❄", theme.Symbols.Prompt)
		assert.Equal(t, "${time}", theme.Layout.Right)
		assert.True(t, theme.Capabilities.Has(prompttypes.ThemeColor256|prompttypes.ThemeRightPrompt))
	})
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		format  string
		invalid bool
	}{
		{name: "bad version", data: "name: x\nversion: not-a-version\n", format: FormatYAML, invalid: true},
		{name: "unknown capability", data: "name: x\ncapabilities: [hologram]\n", format: FormatYAML, invalid: true},
		{name: "unsupported format", data: "name: x\n", format: "ini", invalid: true},
		{name: "newer lumen required", data: "name: x\nrequires: \">= 99.0\"\n", format: FormatYAML, invalid: true},
		{name: "bad constraint", data: "name = \"x\"\nrequires = \"soon\"\n", format: FormatTOML, invalid: true},
		{name: "malformed yaml", data: "name: [unclosed\n", format: FormatYAML},
		{name: "malformed toml", data: "name = \n", format: FormatTOML},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data), tt.format)
			require.Error(t, err)
			if tt.invalid {
				assert.True(t, errors.Is(err, prompttypes.ErrInvalidParameter), "got %v", err)
			}
		})
	}
}

func TestDecode_RequiresSatisfied(t *testing.T) {
	theme, err := Decode([]byte("name: x\nrequires: \">= 0.0.1\"\n"), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, "x", theme.Name)
}

func TestEncode(t *testing.T) {
	theme, err := Decode([]byte(yamlTheme), FormatYAML)
	require.NoError(t, err)

	data, err := Encode(theme, FormatYAML)
	require.NoError(t, err)
	assert.Contains(t, string(data), "inherits_from: default")
	assert.Contains(t, string(data), "- true_color")
	assert.Contains(t, string(data), "- transient")
	assert.NotContains(t, string(data), "source")
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sunset.yaml", yamlTheme)
	writeFile(t, dir, "frost.toml", tomlTheme)
	writeFile(t, dir, "unnamed.yml", "symbols:\n  prompt: \"#\"\n")
	writeFile(t, dir, "broken.yaml", "version: nope\n")
	writeFile(t, dir, "notes.txt", "ignored")

	themes, errs := LoadDir(dir, prompttypes.SourceUser)
	require.Len(t, errs, 1)
	require.Len(t, themes, 3)

	names := make([]string, len(themes))
	for i, th := range themes {
		names[i] = th.Name
		assert.Equal(t, prompttypes.SourceUser, th.Source)
	}
	assert.Equal(t, []string{"frost", "sunset", "unnamed"}, names)

	themes, errs = LoadDir(filepath.Join(dir, "missing"), prompttypes.SourceUser)
	assert.Nil(t, themes)
	assert.Nil(t, errs)
}

func TestLoadBuiltin(t *testing.T) {
	themes, err := LoadBuiltin()
	require.NoError(t, err)

	byName := make(map[string]*prompttypes.Theme)
	for _, th := range themes {
		byName[th.Name] = th
		assert.Equal(t, prompttypes.SourceBuiltin, th.Source)
	}
	require.Contains(t, byName, "default")
	require.Contains(t, byName, "plain")
	assert.Equal(t, "default", byName["minimal"].InheritsFrom)

	s := NewStore()
	assert.Empty(t, s.RegisterAll(themes))
	for _, th := range s.List() {
		assert.NotEmpty(t, th.Layout.Primary, th.Name)
		assert.NotEmpty(t, th.Symbols.Prompt, th.Name)
	}
}

func TestBootstrap_UserThemesOverrideBuiltins(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "default.yaml", "name: default\nsymbols:\n  prompt: \"%\"\nlayout:\n  primary: \"${symbol} \"\n")
	writeFile(t, dir, "sunset.yaml", yamlTheme)

	s := NewStore()
	errs := Bootstrap(s, []string{dir})
	assert.Empty(t, errs)

	def, ok := s.Find("default")
	require.True(t, ok)
	assert.Equal(t, "%", def.Symbols.Prompt)
	assert.Equal(t, prompttypes.SourceUser, def.Source)

	// Builtin children of the replaced theme pick up the new definition.
	minimal, ok := s.Find("minimal")
	require.True(t, ok)
	assert.Equal(t, "%", minimal.Symbols.Prompt)

	sunset, ok := s.Find("sunset")
	require.True(t, ok)
	assert.Equal(t, "→", sunset.Symbols.Prompt)
}

func TestWatcher_ReloadsChangedTheme(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "sunset.yaml", yamlTheme)

	s := NewStore()
	require.Empty(t, Bootstrap(s, []string{dir}))

	w, err := NewWatcher(s, []string{dir})
	require.NoError(t, err)
	w.SetDebounce(20 * time.Millisecond)

	reloaded := make(chan []string, 4)
	w.OnReload(func(names []string) {
		select {
		case reloaded <- names:
		default:
		}
	})
	require.NoError(t, w.Start())
	defer func() { _ = w.Stop() }()

	updated := yamlTheme + "\n# edited\n"
	updated = strings.Replace(updated, `prompt: "→"`, `prompt: "⇒"`, 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	// A truncating write can surface as more than one event; wait for the final content.
	require.Eventually(t, func() bool {
		sunset, ok := s.Find("sunset")
		return ok && sunset.Symbols.Prompt == "⇒"
	}, 5*time.Second, 20*time.Millisecond)

	names := <-reloaded
	assert.Contains(t, names, "sunset")
}
