package segment

import (
	"strconv"

	"lumen/pkg/prompttypes"
)

// Status shows the exit code of the last command when it failed.
type Status struct {
	Base
}

// NewStatus creates the status segment.
func NewStatus() *Status {
	return &Status{
		Base: NewBase("status", "Exit code of the last command, shown on failure",
			prompttypes.CapSyncRender|prompttypes.CapProperties),
	}
}

// IsVisible reports whether the last command failed.
func (s *Status) IsVisible(ctx *prompttypes.PromptContext) bool {
	return ctx != nil && ctx.Failed()
}

// Render draws the failure symbol and exit code.
func (s *Status) Render(ctx *prompttypes.PromptContext, theme *prompttypes.Theme) prompttypes.SegmentOutput {
	if !s.IsVisible(ctx) {
		return Empty()
	}
	text := symbol(theme, "failure", "✗") + " " + strconv.Itoa(ctx.ExitCode)
	return Output(stylerFor(ctx).WrapRole(theme, "error", text))
}

// Property exposes code, the exit code of the last command.
func (s *Status) Property(ctx *prompttypes.PromptContext, name string) (string, bool) {
	if ctx == nil || name != "code" {
		return "", false
	}
	return strconv.Itoa(ctx.ExitCode), true
}
