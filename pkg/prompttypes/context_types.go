package prompttypes

import (
	"time"

	"github.com/muesli/termenv"
)

// TerminalCaps describes what the attached terminal can display.
type TerminalCaps struct {
	ColorProfile   termenv.Profile
	DarkBackground bool
	Unicode        bool
	Width          int
}

// SupportsColor reports whether any color output is possible.
func (t TerminalCaps) SupportsColor() bool {
	return t.ColorProfile != termenv.Ascii
}

// PromptContext is a snapshot of shell state for a single render pass.
// It is built fresh before each render and never mutated while rendering.
type PromptContext struct {
	ExitCode     int
	LastCommand  string
	LastDuration time.Duration

	Directory string
	HomeDir   string
	User      string
	Host      string
	Shell     string
	Keymap    string

	Terminal TerminalCaps
	Theme    *Theme
	Now      time.Time
}

// Failed reports whether the last command exited non-zero.
func (c *PromptContext) Failed() bool {
	return c.ExitCode != 0
}
