package segment

import (
	"strconv"
	"time"

	"lumen/pkg/prompttypes"
)

// DefaultTimeFormat is the layout of the time segment.
const DefaultTimeFormat = "15:04:05"

// DefaultDurationThreshold is the shortest command duration the duration segment shows.
const DefaultDurationThreshold = 2 * time.Second

// Time shows the render time.
type Time struct {
	Base
	layout string
}

// NewTime creates the time segment with a Go time layout.
func NewTime(layout string) *Time {
	if layout == "" {
		layout = DefaultTimeFormat
	}
	return &Time{
		Base:   NewBase("time", "Current time", prompttypes.CapSyncRender|prompttypes.CapProperties),
		layout: layout,
	}
}

// Render draws ctx.Now in the configured layout.
func (t *Time) Render(ctx *prompttypes.PromptContext, theme *prompttypes.Theme) prompttypes.SegmentOutput {
	if ctx == nil || ctx.Now.IsZero() {
		return Empty()
	}
	return Output(stylerFor(ctx).WrapRole(theme, "text_muted", ctx.Now.Format(t.layout)))
}

// Property exposes value (formatted) and unix.
func (t *Time) Property(ctx *prompttypes.PromptContext, name string) (string, bool) {
	if ctx == nil || ctx.Now.IsZero() {
		return "", false
	}
	switch name {
	case "value":
		return ctx.Now.Format(t.layout), true
	case "unix":
		return strconv.FormatInt(ctx.Now.Unix(), 10), true
	}
	return "", false
}

// Duration shows how long the last command ran, when it ran for at least the threshold.
type Duration struct {
	Base
	threshold time.Duration
}

// NewDuration creates the duration segment.
func NewDuration(threshold time.Duration) *Duration {
	if threshold <= 0 {
		threshold = DefaultDurationThreshold
	}
	return &Duration{
		Base:      NewBase("duration", "Run time of the last command", prompttypes.CapSyncRender|prompttypes.CapProperties),
		threshold: threshold,
	}
}

// IsVisible reports whether the last command ran for at least the threshold.
func (d *Duration) IsVisible(ctx *prompttypes.PromptContext) bool {
	return ctx != nil && ctx.LastDuration >= d.threshold
}

// Render draws the duration symbol and the rounded duration.
func (d *Duration) Render(ctx *prompttypes.PromptContext, theme *prompttypes.Theme) prompttypes.SegmentOutput {
	if !d.IsVisible(ctx) {
		return Empty()
	}
	text := symbol(theme, "duration", "") + FormatDuration(ctx.LastDuration)
	return Output(stylerFor(ctx).WrapRole(theme, "warning", text))
}

// Property exposes value (formatted) and ms.
func (d *Duration) Property(ctx *prompttypes.PromptContext, name string) (string, bool) {
	if !d.IsVisible(ctx) {
		return "", false
	}
	switch name {
	case "value":
		return FormatDuration(ctx.LastDuration), true
	case "ms":
		return strconv.FormatInt(ctx.LastDuration.Milliseconds(), 10), true
	}
	return "", false
}

// FormatDuration renders a duration compactly: 850ms, 4s, 2m5s, 1h3m.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return strconv.FormatInt(d.Milliseconds(), 10) + "ms"
	case d < time.Minute:
		return strconv.Itoa(int(d/time.Second)) + "s"
	case d < time.Hour:
		m := int(d / time.Minute)
		s := int((d % time.Minute) / time.Second)
		if s == 0 {
			return strconv.Itoa(m) + "m"
		}
		return strconv.Itoa(m) + "m" + strconv.Itoa(s) + "s"
	default:
		h := int(d / time.Hour)
		m := int((d % time.Hour) / time.Minute)
		if m == 0 {
			return strconv.Itoa(h) + "h"
		}
		return strconv.Itoa(h) + "h" + strconv.Itoa(m) + "m"
	}
}
