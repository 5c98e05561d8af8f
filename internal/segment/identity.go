package segment

import (
	"strings"

	"lumen/pkg/prompttypes"
)

// User shows the login name.
type User struct {
	Base
}

// NewUser creates the user segment.
func NewUser() *User {
	return &User{
		Base: NewBase("user", "Login name", prompttypes.CapSyncRender|prompttypes.CapProperties),
	}
}

// IsVisible reports whether the user name is known.
func (u *User) IsVisible(ctx *prompttypes.PromptContext) bool {
	return ctx != nil && ctx.User != ""
}

// Render draws the user name.
func (u *User) Render(ctx *prompttypes.PromptContext, theme *prompttypes.Theme) prompttypes.SegmentOutput {
	if !u.IsVisible(ctx) {
		return Empty()
	}
	return Output(stylerFor(ctx).WrapRole(theme, "secondary", ctx.User))
}

// Property exposes name.
func (u *User) Property(ctx *prompttypes.PromptContext, name string) (string, bool) {
	if name != "name" || !u.IsVisible(ctx) {
		return "", false
	}
	return ctx.User, true
}

// Host shows the short host name.
type Host struct {
	Base
}

// NewHost creates the host segment.
func NewHost() *Host {
	return &Host{
		Base: NewBase("host", "Host name", prompttypes.CapSyncRender|prompttypes.CapProperties),
	}
}

// IsVisible reports whether the host name is known.
func (h *Host) IsVisible(ctx *prompttypes.PromptContext) bool {
	return ctx != nil && ctx.Host != ""
}

// Render draws the host name up to the first dot.
func (h *Host) Render(ctx *prompttypes.PromptContext, theme *prompttypes.Theme) prompttypes.SegmentOutput {
	if !h.IsVisible(ctx) {
		return Empty()
	}
	return Output(stylerFor(ctx).WrapRole(theme, "secondary", shortHost(ctx.Host)))
}

// Property exposes name (short) and full.
func (h *Host) Property(ctx *prompttypes.PromptContext, name string) (string, bool) {
	if !h.IsVisible(ctx) {
		return "", false
	}
	switch name {
	case "name":
		return shortHost(ctx.Host), true
	case "full":
		return ctx.Host, true
	}
	return "", false
}

func shortHost(host string) string {
	if i := strings.IndexByte(host, '.'); i > 0 {
		return host[:i]
	}
	return host
}
