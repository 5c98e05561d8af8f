package composer

import (
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"

	"lumen/pkg/prompttypes"

	"github.com/muesli/termenv"
)

// Environment is the part of the prompt context that does not change between prompts.
type Environment struct {
	HomeDir   string
	User      string
	Host      string
	Shell     string
	Directory string
	Terminal  prompttypes.TerminalCaps
}

// DetectEnvironment reads the process environment. Colors are detected on out, which
// should be the stream connected to the terminal the prompt is drawn on. The
// background is only queried when queryBackground is set because the query reads
// from the terminal.
func DetectEnvironment(shell string, out *termenv.Output, queryBackground bool) Environment {
	env := Environment{Shell: shell}

	if home, err := os.UserHomeDir(); err == nil {
		env.HomeDir = home
	}
	if u, err := user.Current(); err == nil {
		env.User = u.Username
	} else {
		env.User = os.Getenv("USER")
	}
	if host, err := os.Hostname(); err == nil {
		env.Host = host
	}
	if dir, err := os.Getwd(); err == nil {
		env.Directory = dir
	}
	if env.Shell == "" {
		env.Shell = filepath.Base(os.Getenv("SHELL"))
	}

	env.Terminal = prompttypes.TerminalCaps{
		ColorProfile:   termenv.Ascii,
		DarkBackground: true,
		Unicode:        unicodeLocale(),
		Width:          terminalWidth(),
	}
	if out != nil {
		env.Terminal.ColorProfile = out.EnvColorProfile()
		if queryBackground {
			env.Terminal.DarkBackground = out.HasDarkBackground()
		}
	}
	return env
}

func unicodeLocale() bool {
	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		if value := os.Getenv(key); value != "" {
			value = strings.ToLower(value)
			return strings.Contains(value, "utf-8") || strings.Contains(value, "utf8")
		}
	}
	return false
}

func terminalWidth() int {
	if cols, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && cols > 0 {
		return cols
	}
	return 80
}
