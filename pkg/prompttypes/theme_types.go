// Package prompttypes defines the data model shared by lumen's registries, template engine
// and composer: themes, segments, prompt contexts, async requests and lifecycle events.
package prompttypes

import "strings"

// ThemeSource records where a theme definition came from.
type ThemeSource int

// Theme sources in increasing order of precedence.
const (
	SourceBuiltin ThemeSource = iota
	SourceSystem
	SourceUser
	SourceRuntime
)

func (s ThemeSource) String() string {
	switch s {
	case SourceBuiltin:
		return "builtin"
	case SourceSystem:
		return "system"
	case SourceUser:
		return "user"
	case SourceRuntime:
		return "runtime"
	default:
		return "unknown"
	}
}

// ThemeCapability is a bit-set of terminal features a theme relies on.
type ThemeCapability uint32

// Theme capability flags.
const (
	ThemeColor256 ThemeCapability = 1 << iota
	ThemeTrueColor
	ThemeUnicode
	ThemeNerdFont
	ThemeMultiline
	ThemeRightPrompt
	ThemeTransient
)

// InheritableCapabilities are copied from a parent theme during resolution.
// Right-prompt and transient support describe a theme's own layout, so they are not inherited.
const InheritableCapabilities = ThemeColor256 | ThemeTrueColor | ThemeUnicode | ThemeNerdFont | ThemeMultiline

var themeCapabilityNames = []struct {
	flag ThemeCapability
	name string
}{
	{ThemeColor256, "color_256"},
	{ThemeTrueColor, "true_color"},
	{ThemeUnicode, "unicode"},
	{ThemeNerdFont, "nerd_font"},
	{ThemeMultiline, "multiline"},
	{ThemeRightPrompt, "right_prompt"},
	{ThemeTransient, "transient"},
}

// Has reports whether all bits of flag are set.
func (c ThemeCapability) Has(flag ThemeCapability) bool {
	return c&flag == flag
}

// Names returns the capability names in declaration order.
func (c ThemeCapability) Names() []string {
	var names []string
	for _, entry := range themeCapabilityNames {
		if c.Has(entry.flag) {
			names = append(names, entry.name)
		}
	}
	return names
}

// ParseThemeCapability maps a capability name to its flag.
func ParseThemeCapability(name string) (ThemeCapability, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, entry := range themeCapabilityNames {
		if entry.name == name {
			return entry.flag, true
		}
	}
	return 0, false
}

// StyleConfig defines the visual styling of a color role.
// A StyleConfig with no field set is the "unset" state and is filled from the parent theme.
type StyleConfig struct {
	// Foreground color - hex color, ANSI number, named color, or {light, dark} adaptive map
	Foreground interface{} `yaml:"foreground,omitempty" toml:"foreground,omitempty" json:"foreground,omitempty"`

	// Background color, same forms as Foreground
	Background interface{} `yaml:"background,omitempty" toml:"background,omitempty" json:"background,omitempty"`

	Bold      *bool `yaml:"bold,omitempty" toml:"bold,omitempty" json:"bold,omitempty"`
	Italic    *bool `yaml:"italic,omitempty" toml:"italic,omitempty" json:"italic,omitempty"`
	Underline *bool `yaml:"underline,omitempty" toml:"underline,omitempty" json:"underline,omitempty"`
	Faint     *bool `yaml:"faint,omitempty" toml:"faint,omitempty" json:"faint,omitempty"`
	Blink     *bool `yaml:"blink,omitempty" toml:"blink,omitempty" json:"blink,omitempty"`
	Reverse   *bool `yaml:"reverse,omitempty" toml:"reverse,omitempty" json:"reverse,omitempty"`
}

// IsSet reports whether any field of the style has been defined.
func (s StyleConfig) IsSet() bool {
	return s.Foreground != nil || s.Background != nil ||
		s.Bold != nil || s.Italic != nil || s.Underline != nil ||
		s.Faint != nil || s.Blink != nil || s.Reverse != nil
}

// AdaptiveColor picks a color by terminal background.
type AdaptiveColor struct {
	Light string `yaml:"light" toml:"light" json:"light"`
	Dark  string `yaml:"dark" toml:"dark" json:"dark"`
}

// ColorScheme maps semantic roles to styles.
type ColorScheme struct {
	Primary       StyleConfig `yaml:"primary,omitempty" toml:"primary,omitempty"`
	Secondary     StyleConfig `yaml:"secondary,omitempty" toml:"secondary,omitempty"`
	Success       StyleConfig `yaml:"success,omitempty" toml:"success,omitempty"`
	Warning       StyleConfig `yaml:"warning,omitempty" toml:"warning,omitempty"`
	Error         StyleConfig `yaml:"error,omitempty" toml:"error,omitempty"`
	Info          StyleConfig `yaml:"info,omitempty" toml:"info,omitempty"`
	Text          StyleConfig `yaml:"text,omitempty" toml:"text,omitempty"`
	TextMuted     StyleConfig `yaml:"text_muted,omitempty" toml:"text_muted,omitempty"`
	TextHighlight StyleConfig `yaml:"text_highlight,omitempty" toml:"text_highlight,omitempty"`

	VCSClean       StyleConfig `yaml:"vcs_clean,omitempty" toml:"vcs_clean,omitempty"`
	VCSDirty       StyleConfig `yaml:"vcs_dirty,omitempty" toml:"vcs_dirty,omitempty"`
	VCSStaged      StyleConfig `yaml:"vcs_staged,omitempty" toml:"vcs_staged,omitempty"`
	VCSUntracked   StyleConfig `yaml:"vcs_untracked,omitempty" toml:"vcs_untracked,omitempty"`
	VCSConflict    StyleConfig `yaml:"vcs_conflict,omitempty" toml:"vcs_conflict,omitempty"`
	VCSAheadBehind StyleConfig `yaml:"vcs_ahead_behind,omitempty" toml:"vcs_ahead_behind,omitempty"`

	Path          StyleConfig `yaml:"path,omitempty" toml:"path,omitempty"`
	PathHome      StyleConfig `yaml:"path_home,omitempty" toml:"path_home,omitempty"`
	PathReadonly  StyleConfig `yaml:"path_readonly,omitempty" toml:"path_readonly,omitempty"`
	PathSeparator StyleConfig `yaml:"path_separator,omitempty" toml:"path_separator,omitempty"`
}

// Roles returns pointers to every role keyed by its template name.
func (c *ColorScheme) Roles() map[string]*StyleConfig {
	return map[string]*StyleConfig{
		"primary":          &c.Primary,
		"secondary":        &c.Secondary,
		"success":          &c.Success,
		"warning":          &c.Warning,
		"error":            &c.Error,
		"info":             &c.Info,
		"text":             &c.Text,
		"text_muted":       &c.TextMuted,
		"text_highlight":   &c.TextHighlight,
		"vcs_clean":        &c.VCSClean,
		"vcs_dirty":        &c.VCSDirty,
		"vcs_staged":       &c.VCSStaged,
		"vcs_untracked":    &c.VCSUntracked,
		"vcs_conflict":     &c.VCSConflict,
		"vcs_ahead_behind": &c.VCSAheadBehind,
		"path":             &c.Path,
		"path_home":        &c.PathHome,
		"path_readonly":    &c.PathReadonly,
		"path_separator":   &c.PathSeparator,
	}
}

// Lookup returns the style for a role name. Unset roles are reported as missing.
func (c *ColorScheme) Lookup(role string) (StyleConfig, bool) {
	style, ok := c.Roles()[strings.ToLower(role)]
	if !ok || !style.IsSet() {
		return StyleConfig{}, false
	}
	return *style, true
}

// SymbolSet holds the glyphs a theme uses. An empty string is unset.
type SymbolSet struct {
	Prompt         string `yaml:"prompt,omitempty" toml:"prompt,omitempty"`
	PromptError    string `yaml:"prompt_error,omitempty" toml:"prompt_error,omitempty"`
	Continuation   string `yaml:"continuation,omitempty" toml:"continuation,omitempty"`
	Separator      string `yaml:"separator,omitempty" toml:"separator,omitempty"`
	RightSeparator string `yaml:"right_separator,omitempty" toml:"right_separator,omitempty"`
	Branch         string `yaml:"branch,omitempty" toml:"branch,omitempty"`
	Dirty          string `yaml:"dirty,omitempty" toml:"dirty,omitempty"`
	Staged         string `yaml:"staged,omitempty" toml:"staged,omitempty"`
	Untracked      string `yaml:"untracked,omitempty" toml:"untracked,omitempty"`
	Conflict       string `yaml:"conflict,omitempty" toml:"conflict,omitempty"`
	Ahead          string `yaml:"ahead,omitempty" toml:"ahead,omitempty"`
	Behind         string `yaml:"behind,omitempty" toml:"behind,omitempty"`
	Home           string `yaml:"home,omitempty" toml:"home,omitempty"`
	Readonly       string `yaml:"readonly,omitempty" toml:"readonly,omitempty"`
	Ellipsis       string `yaml:"ellipsis,omitempty" toml:"ellipsis,omitempty"`
	Success        string `yaml:"success,omitempty" toml:"success,omitempty"`
	Failure        string `yaml:"failure,omitempty" toml:"failure,omitempty"`
	Duration       string `yaml:"duration,omitempty" toml:"duration,omitempty"`
	ViNormal       string `yaml:"vi_normal,omitempty" toml:"vi_normal,omitempty"`
	ViInsert       string `yaml:"vi_insert,omitempty" toml:"vi_insert,omitempty"`
}

// Fields returns pointers to every symbol keyed by name.
func (s *SymbolSet) Fields() map[string]*string {
	return map[string]*string{
		"prompt":          &s.Prompt,
		"prompt_error":    &s.PromptError,
		"continuation":    &s.Continuation,
		"separator":       &s.Separator,
		"right_separator": &s.RightSeparator,
		"branch":          &s.Branch,
		"dirty":           &s.Dirty,
		"staged":          &s.Staged,
		"untracked":       &s.Untracked,
		"conflict":        &s.Conflict,
		"ahead":           &s.Ahead,
		"behind":          &s.Behind,
		"home":            &s.Home,
		"readonly":        &s.Readonly,
		"ellipsis":        &s.Ellipsis,
		"success":         &s.Success,
		"failure":         &s.Failure,
		"duration":        &s.Duration,
		"vi_normal":       &s.ViNormal,
		"vi_insert":       &s.ViInsert,
	}
}

// PromptSlot identifies which prompt string is being produced.
type PromptSlot string

// Prompt slots a layout can define.
const (
	SlotPrimary      PromptSlot = "primary"
	SlotRight        PromptSlot = "right"
	SlotContinuation PromptSlot = "continuation"
	SlotTransient    PromptSlot = "transient"
)

// ParsePromptSlot maps a slot name to a PromptSlot.
func ParsePromptSlot(name string) (PromptSlot, bool) {
	switch PromptSlot(strings.ToLower(strings.TrimSpace(name))) {
	case SlotPrimary, "":
		return SlotPrimary, true
	case SlotRight, "rprompt":
		return SlotRight, true
	case SlotContinuation, "ps2":
		return SlotContinuation, true
	case SlotTransient:
		return SlotTransient, true
	}
	return "", false
}

// Layout holds the format strings of each prompt slot.
type Layout struct {
	Primary      string `yaml:"primary,omitempty" toml:"primary,omitempty"`
	Right        string `yaml:"right,omitempty" toml:"right,omitempty"`
	Continuation string `yaml:"continuation,omitempty" toml:"continuation,omitempty"`
	Transient    string `yaml:"transient,omitempty" toml:"transient,omitempty"`

	Multiline  *bool `yaml:"multiline,omitempty" toml:"multiline,omitempty"`
	AddNewline *bool `yaml:"add_newline,omitempty" toml:"add_newline,omitempty"`
}

// Format returns the format string for a slot.
func (l *Layout) Format(slot PromptSlot) string {
	switch slot {
	case SlotRight:
		return l.Right
	case SlotContinuation:
		return l.Continuation
	case SlotTransient:
		return l.Transient
	default:
		return l.Primary
	}
}

// IsMultiline reports the resolved multiline flag.
func (l *Layout) IsMultiline() bool {
	return l.Multiline != nil && *l.Multiline
}

// Theme is a named bundle of colors, symbols and layout templates.
// Registered themes are immutable: the theme store hands out resolved copies.
type Theme struct {
	Name        string `yaml:"name" toml:"name"`
	Description string `yaml:"description,omitempty" toml:"description,omitempty"`
	Version     string `yaml:"version,omitempty" toml:"version,omitempty"`
	Category    string `yaml:"category,omitempty" toml:"category,omitempty"`

	Source       ThemeSource     `yaml:"-" toml:"-"`
	Capabilities ThemeCapability `yaml:"-" toml:"-"`

	// InheritsFrom names the parent theme. It is a lookup key, not an owning reference.
	InheritsFrom string `yaml:"inherits_from,omitempty" toml:"inherits_from,omitempty"`

	Colors  ColorScheme `yaml:"colors,omitempty" toml:"colors,omitempty"`
	Symbols SymbolSet   `yaml:"symbols,omitempty" toml:"symbols,omitempty"`
	Layout  Layout      `yaml:"layout,omitempty" toml:"layout,omitempty"`
}

// Clone returns a deep copy of the theme. Style pointers are copied so
// resolution on the clone never aliases the original.
func (t *Theme) Clone() *Theme {
	if t == nil {
		return nil
	}
	c := *t
	for role, style := range c.Colors.Roles() {
		*style = cloneStyle(*t.Colors.Roles()[role])
	}
	c.Layout.Multiline = cloneBool(t.Layout.Multiline)
	c.Layout.AddNewline = cloneBool(t.Layout.AddNewline)
	return &c
}

func cloneStyle(s StyleConfig) StyleConfig {
	out := s
	out.Bold = cloneBool(s.Bold)
	out.Italic = cloneBool(s.Italic)
	out.Underline = cloneBool(s.Underline)
	out.Faint = cloneBool(s.Faint)
	out.Blink = cloneBool(s.Blink)
	out.Reverse = cloneBool(s.Reverse)
	return out
}

func cloneBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}

// ThemeFile is the on-disk representation of a theme.
// Capabilities are listed by name rather than as a bit-set.
type ThemeFile struct {
	Theme        `yaml:",inline"`
	Capabilities []string `yaml:"capabilities,omitempty" toml:"capabilities,omitempty"`
	// Requires is a version constraint on lumen itself, such as ">= 0.1".
	Requires string `yaml:"requires,omitempty" toml:"requires,omitempty"`
}
