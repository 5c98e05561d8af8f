// Package embedded provides access to files compiled into the lumen binary:
// the builtin themes and the shell integration scripts.
package embedded

import "embed"

// Themes contains the builtin theme YAML files under themes/.
//
//go:embed themes/*.yaml
var Themes embed.FS
