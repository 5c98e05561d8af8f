package template

import (
	"strings"
	"testing"
	"unicode/utf8"

	"lumen/internal/segment"
	"lumen/internal/testutils"
	"lumen/pkg/prompttypes"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupSegments registers a directory, a hidden git segment with a branch property
// and a visible status segment.
func setupSegments(t *testing.T) (*segment.Store, *testutils.FakeSegment) {
	t.Helper()
	store := segment.NewStore()

	dir := testutils.NewFakeSegment("directory", "~/src")
	dir.Properties["basename"] = "src"
	require.NoError(t, store.Register(dir))

	git := testutils.NewFakeSegment("git", "main")
	git.Visible = false
	git.Properties["branch"] = "main"
	git.Properties["dirty"] = ""
	require.NoError(t, store.Register(git))

	require.NoError(t, store.Register(testutils.NewFakeSegment("status", "1")))
	require.NoError(t, store.Register(testutils.NewFakeSegment("empty", "")))
	return store, git
}

func render(t *testing.T, r *Renderer, src string, ctx *prompttypes.PromptContext, theme *prompttypes.Theme, segments SegmentLookup) string {
	t.Helper()
	parsed, err := Parse(src)
	require.NoError(t, err)
	return r.Render(parsed, ctx, theme, segments)
}

func TestRenderer_Render(t *testing.T) {
	store, _ := setupSegments(t)
	r := NewRenderer(nil, 0)
	ctx := testutils.NewPromptContext("/home/tester/src")
	theme := testutils.Theme("t")

	tests := []struct {
		name     string
		src      string
		expected string
	}{
		{name: "literal", src: `a\nb`, expected: "a\nb"},
		{name: "visible segment", src: "[${directory}]", expected: "[~/src]"},
		{name: "hidden segment", src: "[${git}]", expected: "[]"},
		{name: "missing segment", src: "[${nope}]", expected: "[]"},
		{name: "empty output", src: "[${empty}]", expected: "[]"},
		{name: "property", src: "${directory.basename}", expected: "src"},
		{name: "property of hidden segment", src: "${git.branch}", expected: "main"},
		{name: "missing property", src: "[${directory.nope}]", expected: "[]"},
		{name: "property of missing segment", src: "[${nope.x}]", expected: "[]"},
		{name: "visible condition", src: "${?status:yes:no}", expected: "yes"},
		{name: "hidden condition", src: "${?git:yes:no}", expected: "no"},
		{name: "missing segment condition", src: "${?nope:yes:no}", expected: "no"},
		{name: "property condition", src: "${?git.branch:yes:no}", expected: "yes"},
		{name: "empty property condition", src: "${?git.dirty:yes:no}", expected: "no"},
		{name: "branches are literal", src: "${?status:${directory}}", expected: "${directory}"},
		{name: "color on plain terminal", src: "${error:!}", expected: "!"},
		{name: "unknown color role", src: "${nope:text}", expected: "text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, render(t, r, tt.src, ctx, theme, store))
		})
	}
}

func TestRenderer_ColorWrap(t *testing.T) {
	r := NewRenderer(nil, 0)
	ctx := testutils.ColorContext("/tmp")
	theme := testutils.Theme("t")

	assert.Equal(t, "\x1b[31m!\x1b[0m", render(t, r, "${error:!}", ctx, theme, nil))
	assert.Equal(t, "x", render(t, r, "${warning:x}", ctx, theme, nil), "unset role")

	// The context theme is used when none is passed.
	ctx.Theme = theme
	assert.Equal(t, "\x1b[31m!\x1b[0m", render(t, r, "${error:!}", ctx, nil, nil))
}

func TestRenderer_ConditionalDoesNotLeak(t *testing.T) {
	store, _ := setupSegments(t)
	r := NewRenderer(nil, 0)
	ctx := testutils.NewPromptContext("/home/tester/src")

	with := render(t, r, "${directory}${?git: (${git.branch})}", ctx, nil, store)
	without := render(t, r, "${directory}", ctx, nil, store)
	assert.Equal(t, without, with)
	assert.NotContains(t, with, " (")
}

func TestRenderer_Idempotent(t *testing.T) {
	store, git := setupSegments(t)
	git.Visible = true
	r := NewRenderer(NewCache(0), 0)
	ctx := testutils.ColorContext("/home/tester/src")
	theme := testutils.Theme("t")

	src := "${directory}${?git: on }${git}${?status: }${status} ${error:x} "
	first := r.RenderString(src, ctx, theme, store)
	second := r.RenderString(src, ctx, theme, store)
	assert.Equal(t, first, second)
	assert.Equal(t, "~/src on main 1 \x1b[31mx\x1b[0m ", first)
}

func TestRenderer_RenderStringFallsBackToLiteral(t *testing.T) {
	store, _ := setupSegments(t)
	r := NewRenderer(NewCache(0), 0)

	out := r.RenderString("${directory", testutils.NewPromptContext("/"), nil, store)
	assert.Equal(t, "${directory", out)
}

func TestRenderer_Truncation(t *testing.T) {
	t.Run("plain text cut at rune boundary", func(t *testing.T) {
		r := NewRenderer(nil, 10)
		out := render(t, r, strings.Repeat("é", 8), nil, nil, nil)
		assert.Equal(t, strings.Repeat("é", 5), out)
		assert.True(t, utf8.ValidString(out))
	})

	t.Run("odd bound never splits a rune", func(t *testing.T) {
		r := NewRenderer(nil, 9)
		out := render(t, r, "ab"+strings.Repeat("❯", 4), nil, nil, nil)
		assert.Equal(t, "ab❯❯", out)
		assert.True(t, utf8.ValidString(out))
	})

	t.Run("styled text is dropped whole", func(t *testing.T) {
		r := NewRenderer(nil, 8)
		out := render(t, r, "abc${error:defgh}ij", testutils.ColorContext("/"), testutils.Theme("t"), nil)
		assert.Equal(t, "abc", out)
	})

	t.Run("nothing is written after truncation", func(t *testing.T) {
		r := NewRenderer(nil, 4)
		store, _ := setupSegments(t)
		out := render(t, r, "abcdef${directory}", nil, nil, store)
		assert.Equal(t, "abcd", out)
	})

	t.Run("default bound", func(t *testing.T) {
		r := NewRenderer(nil, 0)
		out := render(t, r, strings.Repeat("x", DefaultMaxOutput+100), nil, nil, nil)
		assert.Len(t, out, DefaultMaxOutput)
	})
}

type panickingSegment struct {
	segment.Base
}

func (p *panickingSegment) IsVisible(*prompttypes.PromptContext) bool { return true }

func (p *panickingSegment) Render(*prompttypes.PromptContext, *prompttypes.Theme) prompttypes.SegmentOutput {
	panic("render exploded")
}

func (p *panickingSegment) Property(*prompttypes.PromptContext, string) (string, bool) {
	panic("property exploded")
}

func TestRenderer_PanickingSegmentRendersEmpty(t *testing.T) {
	store := segment.NewStore()
	require.NoError(t, store.Register(&panickingSegment{Base: segment.NewBase("boom", "", prompttypes.CapSyncRender)}))
	r := NewRenderer(nil, 0)

	assert.Equal(t, "[][]", render(t, r, "[${boom}][${boom.x}]", nil, nil, store))
	assert.Equal(t, "yes", render(t, r, "${?boom:yes:no}", nil, nil, store))
}

func TestRenderer_RenderDoesNotCallHiddenSegments(t *testing.T) {
	store, git := setupSegments(t)
	r := NewRenderer(nil, 0)

	render(t, r, "${git}${git}", testutils.NewPromptContext("/"), nil, store)
	assert.Equal(t, 0, git.RenderCalls())
}
