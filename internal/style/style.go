// Package style turns theme StyleConfig values into styled terminal text.
// Styling is applied with termenv for a fixed color profile, so output is
// deterministic for a given terminal description.
package style

import (
	"strconv"
	"strings"

	"lumen/pkg/prompttypes"

	"github.com/muesli/termenv"
)

// Styler wraps text in the escape sequences of a color profile.
type Styler struct {
	profile termenv.Profile
	dark    bool
}

// New creates a Styler for a color profile and background brightness.
func New(profile termenv.Profile, darkBackground bool) *Styler {
	return &Styler{profile: profile, dark: darkBackground}
}

// ForTerminal creates a Styler matching the terminal capabilities of a prompt context.
func ForTerminal(caps prompttypes.TerminalCaps) *Styler {
	return New(caps.ColorProfile, caps.DarkBackground)
}

// Plain returns a Styler that never emits escape sequences.
func Plain() *Styler {
	return New(termenv.Ascii, true)
}

// Enabled reports whether the styler emits any styling.
func (s *Styler) Enabled() bool {
	return s.profile != termenv.Ascii
}

// Wrap styles text with cfg and a trailing reset. Text is returned unchanged when
// the style is unset, the profile has no colors, or nothing in cfg is representable.
func (s *Styler) Wrap(cfg prompttypes.StyleConfig, text string) string {
	if text == "" || !s.Enabled() || !cfg.IsSet() {
		return text
	}

	st := s.profile.String(text)
	styled := false

	if c := s.color(cfg.Foreground); c != nil {
		st = st.Foreground(c)
		styled = true
	}
	if c := s.color(cfg.Background); c != nil {
		st = st.Background(c)
		styled = true
	}
	if isTrue(cfg.Bold) {
		st = st.Bold()
		styled = true
	}
	if isTrue(cfg.Faint) {
		st = st.Faint()
		styled = true
	}
	if isTrue(cfg.Italic) {
		st = st.Italic()
		styled = true
	}
	if isTrue(cfg.Underline) {
		st = st.Underline()
		styled = true
	}
	if isTrue(cfg.Blink) {
		st = st.Blink()
		styled = true
	}
	if isTrue(cfg.Reverse) {
		st = st.Reverse()
		styled = true
	}

	if !styled {
		return text
	}
	return st.String()
}

// WrapRole styles text with a named color role of theme; unknown or unset roles leave text unstyled.
func (s *Styler) WrapRole(theme *prompttypes.Theme, role string, text string) string {
	if theme == nil {
		return text
	}
	cfg, ok := theme.Colors.Lookup(role)
	if !ok {
		return text
	}
	return s.Wrap(cfg, text)
}

// color parses a color value that can be a string or an adaptive {light, dark} map.
func (s *Styler) color(value interface{}) termenv.Color {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		return s.profileColor(v)
	case prompttypes.AdaptiveColor:
		return s.adaptive(v.Light, v.Dark)
	case *prompttypes.AdaptiveColor:
		if v == nil {
			return nil
		}
		return s.adaptive(v.Light, v.Dark)
	case map[string]interface{}:
		light, _ := v["light"].(string)
		dark, _ := v["dark"].(string)
		if light == "" && dark == "" {
			return nil
		}
		return s.adaptive(light, dark)
	case int:
		return s.profileColor(strconv.Itoa(v))
	case int64:
		return s.profileColor(strconv.FormatInt(v, 10))
	default:
		return nil
	}
}

func (s *Styler) adaptive(light, dark string) termenv.Color {
	if s.dark {
		if dark != "" {
			return s.profileColor(dark)
		}
		return s.profileColor(light)
	}
	if light != "" {
		return s.profileColor(light)
	}
	return s.profileColor(dark)
}

func (s *Styler) profileColor(value string) termenv.Color {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if !strings.HasPrefix(value, "#") {
		if ansi, ok := namedColors[strings.ToLower(value)]; ok {
			value = ansi
		}
	}
	c := s.profile.Color(value)
	if _, none := c.(termenv.NoColor); none {
		return nil
	}
	return c
}

// namedColors maps color names to ANSI palette indices.
var namedColors = map[string]string{
	"black":          "0",
	"red":            "1",
	"green":          "2",
	"yellow":         "3",
	"blue":           "4",
	"magenta":        "5",
	"purple":         "5",
	"cyan":           "6",
	"white":          "7",
	"gray":           "8",
	"grey":           "8",
	"bright-black":   "8",
	"bright-red":     "9",
	"bright-green":   "10",
	"bright-yellow":  "11",
	"bright-blue":    "12",
	"bright-magenta": "13",
	"bright-purple":  "13",
	"bright-cyan":    "14",
	"bright-white":   "15",
}

func isTrue(b *bool) bool {
	return b != nil && *b
}
