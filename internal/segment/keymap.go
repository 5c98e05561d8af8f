package segment

import (
	"strings"

	"lumen/pkg/prompttypes"
)

// Keymap shows the vi editing mode.
type Keymap struct {
	Base
}

// NewKeymap creates the keymap segment.
func NewKeymap() *Keymap {
	return &Keymap{
		Base: NewBase("keymap", "Vi editing mode indicator", prompttypes.CapSyncRender|prompttypes.CapProperties),
	}
}

// IsNormalMode reports whether a keymap name is vi command mode.
func IsNormalMode(keymap string) bool {
	switch strings.ToLower(keymap) {
	case "vicmd", "normal", "vi-command", "command":
		return true
	}
	return false
}

// IsVisible reports whether the shell reported a vi keymap.
func (k *Keymap) IsVisible(ctx *prompttypes.PromptContext) bool {
	if ctx == nil {
		return false
	}
	switch strings.ToLower(ctx.Keymap) {
	case "", "emacs":
		return false
	}
	return true
}

// Render draws the vi mode symbol.
func (k *Keymap) Render(ctx *prompttypes.PromptContext, theme *prompttypes.Theme) prompttypes.SegmentOutput {
	if !k.IsVisible(ctx) {
		return Empty()
	}
	if IsNormalMode(ctx.Keymap) {
		return Output(stylerFor(ctx).WrapRole(theme, "info", symbol(theme, "vi_normal", "[N]")))
	}
	return Output(stylerFor(ctx).WrapRole(theme, "text_muted", symbol(theme, "vi_insert", "[I]")))
}

// Property exposes mode, either "normal" or "insert".
func (k *Keymap) Property(ctx *prompttypes.PromptContext, name string) (string, bool) {
	if name != "mode" || !k.IsVisible(ctx) {
		return "", false
	}
	if IsNormalMode(ctx.Keymap) {
		return "normal", true
	}
	return "insert", true
}

// Symbol shows the prompt character, colored by the last exit code.
type Symbol struct {
	Base
}

// NewSymbol creates the symbol segment.
func NewSymbol() *Symbol {
	return &Symbol{
		Base: NewBase("symbol", "Prompt character colored by the last exit code",
			prompttypes.CapSyncRender|prompttypes.CapProperties),
	}
}

// Render draws the prompt symbol in the success or error role.
func (s *Symbol) Render(ctx *prompttypes.PromptContext, theme *prompttypes.Theme) prompttypes.SegmentOutput {
	char, role := s.char(ctx, theme)
	return Output(stylerFor(ctx).WrapRole(theme, role, char))
}

// Property exposes char, the unstyled symbol.
func (s *Symbol) Property(ctx *prompttypes.PromptContext, name string) (string, bool) {
	if name != "char" {
		return "", false
	}
	char, _ := s.char(ctx, themeOf(ctx))
	return char, true
}

func (s *Symbol) char(ctx *prompttypes.PromptContext, t *prompttypes.Theme) (string, string) {
	if ctx != nil && ctx.Failed() {
		return symbol(t, "prompt_error", symbol(t, "prompt", "$")), "error"
	}
	return symbol(t, "prompt", "$"), "success"
}

func themeOf(ctx *prompttypes.PromptContext) *prompttypes.Theme {
	if ctx == nil {
		return nil
	}
	return ctx.Theme
}
