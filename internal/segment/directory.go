package segment

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"lumen/pkg/prompttypes"
)

// TagDirectory marks cache entries derived from the working directory.
const TagDirectory = "directory"

// dirInfo is what the directory segment computes for one working directory.
type dirInfo struct {
	Full     string
	Home     bool   // under the home directory
	Rest     string // path after the home prefix, or the full path
	Readonly bool
}

// Directory shows the working directory, abbreviating the home directory and
// keeping at most MaxDepth trailing components.
type Directory struct {
	Base
	maxDepth int

	mu    sync.RWMutex
	cache Cache
}

// NewDirectory creates the directory segment. maxDepth <= 0 disables truncation.
func NewDirectory(maxDepth int) *Directory {
	return &Directory{
		Base: NewBase("directory", "Current working directory",
			prompttypes.CapSyncRender|prompttypes.CapCacheable|prompttypes.CapProperties|prompttypes.CapDirectoryDependent),
		maxDepth: maxDepth,
	}
}

// UseCache implements CacheUser.
func (d *Directory) UseCache(c Cache) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache = c
}

// IsVisible reports whether a directory is known.
func (d *Directory) IsVisible(ctx *prompttypes.PromptContext) bool {
	return ctx != nil && ctx.Directory != ""
}

// Render draws the abbreviated path.
func (d *Directory) Render(ctx *prompttypes.PromptContext, theme *prompttypes.Theme) prompttypes.SegmentOutput {
	if !d.IsVisible(ctx) {
		return Empty()
	}
	info := d.info(ctx)
	s := stylerFor(ctx)

	var b strings.Builder
	rest := d.truncate(info.Rest, theme)
	if info.Home {
		b.WriteString(s.WrapRole(theme, "path_home", symbol(theme, "home", "~")))
		if rest != "" {
			b.WriteString(s.WrapRole(theme, "path", string(filepath.Separator)+rest))
		}
	} else {
		b.WriteString(s.WrapRole(theme, "path", rest))
	}
	if info.Readonly {
		b.WriteString(s.WrapRole(theme, "path_readonly", symbol(theme, "readonly", " (ro)")))
	}
	return Output(b.String())
}

// Property exposes path (as displayed, unstyled), full, basename and parent.
func (d *Directory) Property(ctx *prompttypes.PromptContext, name string) (string, bool) {
	if !d.IsVisible(ctx) {
		return "", false
	}
	info := d.info(ctx)

	var value string
	switch name {
	case "path":
		value = d.plainPath(info, ctx.Theme)
	case "full":
		value = info.Full
	case "basename":
		value = filepath.Base(info.Full)
	case "parent":
		value = filepath.Dir(info.Full)
	case "readonly":
		if info.Readonly {
			value = "true"
		}
	}
	return value, value != ""
}

func (d *Directory) plainPath(info dirInfo, theme *prompttypes.Theme) string {
	rest := d.truncate(info.Rest, theme)
	if !info.Home {
		return rest
	}
	if rest == "" {
		return symbol(theme, "home", "~")
	}
	return symbol(theme, "home", "~") + string(filepath.Separator) + rest
}

// truncate keeps the last maxDepth components of rest, prefixing the ellipsis symbol.
func (d *Directory) truncate(rest string, theme *prompttypes.Theme) string {
	if d.maxDepth <= 0 || rest == "" {
		return rest
	}
	sep := string(filepath.Separator)
	parts := strings.Split(strings.Trim(rest, sep), sep)
	if len(parts) <= d.maxDepth {
		return rest
	}
	return symbol(theme, "ellipsis", "…") + sep + strings.Join(parts[len(parts)-d.maxDepth:], sep)
}

// info returns the directory facts for ctx, from the cache when present.
func (d *Directory) info(ctx *prompttypes.PromptContext) dirInfo {
	d.mu.RLock()
	c := d.cache
	d.mu.RUnlock()

	key := "directory:" + ctx.Directory + "\x00" + ctx.HomeDir
	if c != nil {
		if value, ok := c.Get(key); ok {
			if info, ok := value.(dirInfo); ok {
				return info
			}
		}
	}

	info := computeDirInfo(ctx.Directory, ctx.HomeDir)
	if c != nil {
		c.Set(key, info, TagDirectory)
	}
	return info
}

func computeDirInfo(dir, home string) dirInfo {
	full := filepath.Clean(dir)
	info := dirInfo{Full: full, Rest: full}

	if home != "" {
		home = filepath.Clean(home)
		sep := string(filepath.Separator)
		switch {
		case full == home:
			info.Home = true
			info.Rest = ""
		case strings.HasPrefix(full, home+sep):
			info.Home = true
			info.Rest = strings.TrimPrefix(full, home+sep)
		}
	}

	if stat, err := os.Stat(full); err == nil {
		info.Readonly = stat.Mode().Perm()&0o200 == 0
	}
	return info
}
