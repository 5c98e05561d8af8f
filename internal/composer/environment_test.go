package composer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnicodeLocale(t *testing.T) {
	tests := []struct {
		name     string
		lcAll    string
		lcCtype  string
		lang     string
		expected bool
	}{
		{name: "utf-8 lang", lang: "en_US.UTF-8", expected: true},
		{name: "utf8 spelling", lang: "C.utf8", expected: true},
		{name: "posix", lang: "C", expected: false},
		{name: "lc_all wins", lcAll: "C", lang: "en_US.UTF-8", expected: false},
		{name: "lc_ctype before lang", lcCtype: "de_DE.UTF-8", lang: "C", expected: true},
		{name: "unset", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LC_ALL", tt.lcAll)
			t.Setenv("LC_CTYPE", tt.lcCtype)
			t.Setenv("LANG", tt.lang)
			assert.Equal(t, tt.expected, unicodeLocale())
		})
	}
}

func TestTerminalWidth(t *testing.T) {
	t.Setenv("COLUMNS", "132")
	assert.Equal(t, 132, terminalWidth())

	t.Setenv("COLUMNS", "wide")
	assert.Equal(t, 80, terminalWidth())

	t.Setenv("COLUMNS", "")
	assert.Equal(t, 80, terminalWidth())
}

func TestDetectEnvironment_ShellFallback(t *testing.T) {
	t.Setenv("SHELL", "/usr/bin/zsh")
	env := DetectEnvironment("", nil, false)
	assert.Equal(t, "zsh", env.Shell)
	assert.True(t, env.Terminal.DarkBackground)

	env = DetectEnvironment("bash", nil, false)
	assert.Equal(t, "bash", env.Shell)
}
