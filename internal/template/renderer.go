package template

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"lumen/internal/logger"
	"lumen/internal/style"
	"lumen/pkg/prompttypes"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/x/ansi"
)

// DefaultMaxOutput bounds the size in bytes of one rendered template.
const DefaultMaxOutput = 4096

// SegmentLookup resolves segment names. *segment.Store implements it.
type SegmentLookup interface {
	Find(name string) (prompttypes.Segment, bool)
}

// Renderer evaluates parsed templates. It only reads segments and themes.
type Renderer struct {
	// MaxOutput is the output bound in bytes; <= 0 selects DefaultMaxOutput.
	MaxOutput int

	cache *Cache
	log   *log.Logger
}

// NewRenderer creates a renderer. cache may be nil, in which case RenderString
// parses on every call.
func NewRenderer(cache *Cache, maxOutput int) *Renderer {
	return &Renderer{
		MaxOutput: maxOutput,
		cache:     cache,
		log:       logger.NewStyledLogger("template"),
	}
}

// Cache returns the parse cache used by RenderString.
func (r *Renderer) Cache() *Cache {
	return r.cache
}

// Render evaluates parsed against ctx. A nil theme falls back to ctx.Theme.
// Missing segments and properties contribute nothing; unknown color roles leave text unstyled.
func (r *Renderer) Render(parsed *ParsedTemplate, ctx *prompttypes.PromptContext, theme *prompttypes.Theme, segments SegmentLookup) string {
	if parsed == nil {
		return ""
	}
	if theme == nil && ctx != nil {
		theme = ctx.Theme
	}

	var styler *style.Styler
	if ctx != nil {
		styler = style.ForTerminal(ctx.Terminal)
	} else {
		styler = style.Plain()
	}

	out := &boundedWriter{max: r.maxOutput()}
	for _, tok := range parsed.Tokens {
		if out.full {
			break
		}
		switch tok.Kind {
		case TokenLiteral:
			out.write(tok.Text)
		case TokenColor:
			out.write(styler.WrapRole(theme, tok.Color, tok.Text))
		case TokenSegment:
			out.write(r.segmentText(segments, tok.Segment, ctx, theme))
		case TokenProperty:
			if value, ok := r.property(segments, tok.Segment, tok.Property, ctx); ok {
				out.write(value)
			}
		case TokenConditional:
			if r.condition(segments, tok, ctx) {
				out.write(tok.True)
			} else {
				out.write(tok.False)
			}
		}
	}
	if out.full {
		r.log.Debug("Render output truncated", "template", parsed.Source, "max", out.max)
	}
	return out.String()
}

// RenderString parses src through the cache and renders it. A template that fails to
// parse is emitted as literal text.
func (r *Renderer) RenderString(src string, ctx *prompttypes.PromptContext, theme *prompttypes.Theme, segments SegmentLookup) string {
	var (
		parsed *ParsedTemplate
		err    error
	)
	if r.cache != nil {
		parsed, err = r.cache.Parse(src)
	} else {
		parsed, err = Parse(src)
	}
	if err != nil {
		r.log.Debug("Template parse failed, rendering literally", "template", src, "err", err)
		parsed = &ParsedTemplate{Source: src, Tokens: []Token{{Kind: TokenLiteral, Text: src}}}
	}
	return r.Render(parsed, ctx, theme, segments)
}

func (r *Renderer) maxOutput() int {
	if r.MaxOutput <= 0 {
		return DefaultMaxOutput
	}
	return r.MaxOutput
}

func (r *Renderer) segmentText(segments SegmentLookup, name string, ctx *prompttypes.PromptContext, theme *prompttypes.Theme) (text string) {
	seg, ok := find(segments, name)
	if !ok {
		return ""
	}
	defer r.recoverSegment(name, &text)

	if !seg.IsVisible(ctx) {
		return ""
	}
	output := seg.Render(ctx, theme)
	if output.Empty {
		return ""
	}
	return output.Content
}

func (r *Renderer) property(segments SegmentLookup, name, prop string, ctx *prompttypes.PromptContext) (value string, ok bool) {
	seg, found := find(segments, name)
	if !found {
		return "", false
	}
	defer r.recoverSegment(name, &value)
	return seg.Property(ctx, prop)
}

// condition is true when the property is non-empty, or, without a property, when the
// segment exists and is visible.
func (r *Renderer) condition(segments SegmentLookup, tok Token, ctx *prompttypes.PromptContext) bool {
	if tok.Property != "" {
		value, ok := r.property(segments, tok.Segment, tok.Property, ctx)
		return ok && value != ""
	}
	seg, found := find(segments, tok.Segment)
	if !found {
		return false
	}
	visible := false
	func() {
		var ignored string
		defer r.recoverSegment(tok.Segment, &ignored)
		visible = seg.IsVisible(ctx)
	}()
	return visible
}

// recoverSegment turns a panicking segment into empty output.
func (r *Renderer) recoverSegment(name string, text *string) {
	if rec := recover(); rec != nil {
		err := prompttypes.NewError(prompttypes.KindRenderFailed, "render", name, fmt.Errorf("%v", rec))
		r.log.Warn("Segment failed", "err", err)
		*text = ""
	}
}

func find(segments SegmentLookup, name string) (prompttypes.Segment, bool) {
	if segments == nil {
		return nil, false
	}
	seg, ok := segments.Find(name)
	return seg, ok && seg != nil
}

// boundedWriter accumulates output up to max bytes. Plain text is cut at a rune
// boundary; styled text that does not fit is dropped whole.
type boundedWriter struct {
	b    strings.Builder
	max  int
	full bool
}

func (w *boundedWriter) write(s string) {
	if w.full || s == "" {
		return
	}
	if w.b.Len()+len(s) <= w.max {
		w.b.WriteString(s)
		return
	}
	w.full = true
	if ansi.Strip(s) != s {
		return
	}
	cut := w.max - w.b.Len()
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	w.b.WriteString(s[:cut])
}

func (w *boundedWriter) String() string {
	return w.b.String()
}
