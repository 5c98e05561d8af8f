package theme

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"lumen/internal/data/embedded"
	"lumen/internal/logger"
	"lumen/internal/version"
	"lumen/pkg/prompttypes"

	"github.com/Masterminds/semver/v3"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Supported theme file formats.
const (
	FormatYAML = "yaml"
	FormatTOML = "toml"
)

// FormatOf returns the theme format for a file name, or "" when unsupported.
func FormatOf(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	default:
		return ""
	}
}

// Decode parses a theme definition in the given format.
func Decode(data []byte, format string) (*prompttypes.Theme, error) {
	var file prompttypes.ThemeFile

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse theme file: %w", err)
		}
	case FormatTOML:
		if err := toml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse theme file: %w", err)
		}
	default:
		return nil, prompttypes.NewError(prompttypes.KindInvalidParameter, "decode", format,
			fmt.Errorf("unsupported theme format"))
	}

	return convertThemeFile(&file)
}

// convertThemeFile validates the on-disk fields and converts them to a Theme.
func convertThemeFile(file *prompttypes.ThemeFile) (*prompttypes.Theme, error) {
	theme := file.Theme

	if theme.Version != "" {
		if _, err := semver.NewVersion(theme.Version); err != nil {
			return nil, prompttypes.NewError(prompttypes.KindInvalidParameter, "decode", theme.Name,
				fmt.Errorf("invalid version %q: %w", theme.Version, err))
		}
	}

	if file.Requires != "" {
		ok, err := version.Satisfies(file.Requires)
		if err != nil {
			return nil, prompttypes.NewError(prompttypes.KindInvalidParameter, "decode", theme.Name, err)
		}
		if !ok {
			return nil, prompttypes.NewError(prompttypes.KindInvalidParameter, "decode", theme.Name,
				fmt.Errorf("theme requires lumen %s, running %s", file.Requires, version.GetVersion()))
		}
	}

	for _, name := range file.Capabilities {
		flag, ok := prompttypes.ParseThemeCapability(name)
		if !ok {
			return nil, prompttypes.NewError(prompttypes.KindInvalidParameter, "decode", theme.Name,
				fmt.Errorf("unknown capability %q", name))
		}
		theme.Capabilities |= flag
	}

	if theme.Layout.Right != "" {
		theme.Capabilities |= prompttypes.ThemeRightPrompt
	}
	if theme.Layout.Transient != "" {
		theme.Capabilities |= prompttypes.ThemeTransient
	}

	return &theme, nil
}

// Encode writes a theme back to its on-disk form.
func Encode(theme *prompttypes.Theme, format string) ([]byte, error) {
	file := prompttypes.ThemeFile{
		Theme:        *theme.Clone(),
		Capabilities: theme.Capabilities.Names(),
	}

	switch format {
	case FormatYAML:
		return yaml.Marshal(&file)
	case FormatTOML:
		return toml.Marshal(&file)
	default:
		return nil, prompttypes.NewError(prompttypes.KindInvalidParameter, "encode", format,
			fmt.Errorf("unsupported theme format"))
	}
}

// LoadFile reads one theme file. A missing name defaults to the file's base name.
func LoadFile(filename string, source prompttypes.ThemeSource) (*prompttypes.Theme, error) {
	format := FormatOf(filename)
	if format == "" {
		return nil, prompttypes.NewError(prompttypes.KindInvalidParameter, "load", filename,
			fmt.Errorf("unsupported theme file extension"))
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read theme file %s: %w", filename, err)
	}

	theme, err := Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	if theme.Name == "" {
		theme.Name = themeNameFromFile(filename)
	}
	theme.Source = source
	return theme, nil
}

// LoadDir reads every theme file in dir, in name order. A missing directory is not an error.
// Files that fail to load are reported individually and skipped.
func LoadDir(dir string, source prompttypes.ThemeSource) ([]*prompttypes.Theme, []error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, []error{fmt.Errorf("failed to read theme directory %s: %w", dir, err)}
	}

	var themes []*prompttypes.Theme
	var errs []error
	for _, e := range entries {
		if e.IsDir() || FormatOf(e.Name()) == "" {
			continue
		}
		theme, err := LoadFile(filepath.Join(dir, e.Name()), source)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		themes = append(themes, theme)
	}
	return themes, errs
}

// LoadBuiltin decodes the themes embedded in the binary.
func LoadBuiltin() ([]*prompttypes.Theme, error) {
	names, err := fs.Glob(embedded.Themes, "themes/*.yaml")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	themes := make([]*prompttypes.Theme, 0, len(names))
	for _, name := range names {
		data, err := embedded.Themes.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read builtin theme %s: %w", name, err)
		}
		theme, err := Decode(data, FormatYAML)
		if err != nil {
			return nil, fmt.Errorf("builtin theme %s: %w", name, err)
		}
		if theme.Name == "" {
			theme.Name = themeNameFromFile(path.Base(name))
		}
		theme.Source = prompttypes.SourceBuiltin
		themes = append(themes, theme)
	}
	return themes, nil
}

// Bootstrap registers the builtin themes, then the themes of each directory in order.
// A directory theme whose name is already registered replaces the earlier definition.
// Themes that fail to load or register are logged and skipped; the errors are returned.
func Bootstrap(store *Store, dirs []string) []error {
	var errs []error

	builtin, err := LoadBuiltin()
	if err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, store.RegisterAll(builtin)...)

	for _, dir := range dirs {
		themes, loadErrs := LoadDir(dir, prompttypes.SourceUser)
		errs = append(errs, loadErrs...)

		var fresh, replacements []*prompttypes.Theme
		for _, t := range themes {
			if _, exists := store.Find(t.Name); exists {
				replacements = append(replacements, t)
			} else {
				fresh = append(fresh, t)
			}
		}
		errs = append(errs, store.RegisterAll(fresh)...)
		for _, t := range replacements {
			if err := store.Replace(t); err != nil {
				errs = append(errs, err)
			}
		}
	}

	for _, err := range errs {
		logger.Warn("Theme not loaded", "error", err)
	}
	return errs
}

func themeNameFromFile(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
