// Package segment holds the segment registry and the builtin prompt segments.
//
// A segment renders one independent piece of the prompt. Segments declare what they
// can do with a capability set; asynchronous segments additionally implement
// prompttypes.AsyncSegment and receive their data from the async worker.
package segment

import (
	"lumen/internal/style"
	"lumen/pkg/prompttypes"

	"github.com/charmbracelet/x/ansi"
)

// Cache is the subset of the prompt cache available to segments.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, tags ...string)
}

// CacheUser is implemented by cacheable segments that want a cache handle.
// The composer calls UseCache once, before the segment is first rendered.
type CacheUser interface {
	UseCache(c Cache)
}

// Base provides the default parts of the Segment contract: always visible,
// no properties, no-op init and cleanup. Segments embed it and implement Render.
type Base struct {
	name         string
	description  string
	capabilities prompttypes.SegmentCapability
}

// NewBase creates a Base with identity and capabilities.
func NewBase(name, description string, capabilities prompttypes.SegmentCapability) Base {
	return Base{name: name, description: description, capabilities: capabilities}
}

// Name returns the segment name used in templates.
func (b *Base) Name() string { return b.name }

// Description returns a one-line description for listings.
func (b *Base) Description() string { return b.description }

// Capabilities returns the declared capability set.
func (b *Base) Capabilities() prompttypes.SegmentCapability { return b.capabilities }

// Init does nothing.
func (b *Base) Init() error { return nil }

// Cleanup does nothing.
func (b *Base) Cleanup() {}

// IsVisible reports true.
func (b *Base) IsVisible(*prompttypes.PromptContext) bool { return true }

// Property reports no properties.
func (b *Base) Property(*prompttypes.PromptContext, string) (string, bool) { return "", false }

// Output builds a SegmentOutput, measuring the display width without styling.
func Output(content string) prompttypes.SegmentOutput {
	if content == "" {
		return Empty()
	}
	return prompttypes.SegmentOutput{
		Content:   content,
		Width:     ansi.StringWidth(content),
		Separator: true,
	}
}

// Empty is the output of a segment with nothing to show.
func Empty() prompttypes.SegmentOutput {
	return prompttypes.SegmentOutput{Empty: true}
}

// Info summarizes a segment for listings.
func Info(s prompttypes.Segment) prompttypes.SegmentInfo {
	return prompttypes.SegmentInfo{
		Name:         s.Name(),
		Description:  s.Description(),
		Capabilities: s.Capabilities(),
	}
}

func stylerFor(ctx *prompttypes.PromptContext) *style.Styler {
	if ctx == nil {
		return style.Plain()
	}
	return style.ForTerminal(ctx.Terminal)
}

// symbol returns the theme's symbol, or fallback when the theme leaves it unset.
func symbol(theme *prompttypes.Theme, name, fallback string) string {
	if theme == nil {
		return fallback
	}
	if value, ok := theme.Symbols.Fields()[name]; ok && *value != "" {
		return *value
	}
	return fallback
}
