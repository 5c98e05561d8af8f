package embedded

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"
)

// ShellFS contains the shell hook scripts under shell/, one per supported shell.
//
//go:embed shell/*.sh
var ShellFS embed.FS

// ShellScript returns the hook script for a shell name such as "bash" or "zsh".
func ShellScript(shell string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(shell))
	data, err := ShellFS.ReadFile(path.Join("shell", name+".sh"))
	if err != nil {
		return "", fmt.Errorf("no integration script for shell %q (supported: %s)",
			shell, strings.Join(SupportedShells(), ", "))
	}
	return string(data), nil
}

// SupportedShells lists the shells with an embedded hook script.
func SupportedShells() []string {
	entries, err := ShellFS.ReadDir("shell")
	if err != nil {
		return nil
	}
	var shells []string
	for _, e := range entries {
		shells = append(shells, strings.TrimSuffix(e.Name(), ".sh"))
	}
	sort.Strings(shells)
	return shells
}
