package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"lumen/internal/theme"
	"lumen/pkg/prompttypes"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/list"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"
)

var (
	activeStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	addedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	removedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

func newThemesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "themes",
		Short: "List, inspect and compare themes",
	}

	var plain bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available themes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), themeList(loadThemes(), cfg.Theme, plain))
			return err
		},
	}
	listCmd.Flags().BoolVar(&plain, "plain", false, "One theme name per line")

	var raw bool
	var format string
	showCmd := &cobra.Command{
		Use:   "show <theme>",
		Short: "Describe a theme",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runThemeShow(cmd.OutOrStdout(), loadThemes(), args[0], format, raw)
		},
	}
	showCmd.Flags().BoolVar(&raw, "raw", false, "Print markdown without terminal rendering")
	showCmd.Flags().StringVar(&format, "format", theme.FormatYAML, "Definition format (yaml|toml)")

	diffCmd := &cobra.Command{
		Use:   "diff <theme> <theme>",
		Short: "Compare two resolved themes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := loadThemes()
			a, err := findTheme(store, args[0])
			if err != nil {
				return err
			}
			b, err := findTheme(store, args[1])
			if err != nil {
				return err
			}
			lines, err := diffThemes(a, b)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), colorDiff(lines))
			return err
		},
	}

	cmd.AddCommand(listCmd, showCmd, diffCmd)
	return cmd
}

func findTheme(store *theme.Store, name string) (*prompttypes.Theme, error) {
	t, ok := store.Find(name)
	if !ok {
		return nil, prompttypes.NewError(prompttypes.KindThemeNotFound, "find", name, nil)
	}
	return t, nil
}

// themeList renders the registered themes, marking the active one.
func themeList(store *theme.Store, active string, plain bool) string {
	themes := store.List()
	if plain {
		names := make([]string, 0, len(themes))
		for _, t := range themes {
			names = append(names, t.Name)
		}
		return strings.Join(names, "\n")
	}

	l := list.New().Enumerator(list.Bullet).EnumeratorStyle(mutedStyle)
	for _, t := range themes {
		name := t.Name
		if name == active {
			name = activeStyle.Render(name + " *")
		}
		detail := t.Source.String()
		if t.InheritsFrom != "" {
			detail += ", inherits " + t.InheritsFrom
		}
		item := fmt.Sprintf("%s %s", name, mutedStyle.Render("("+detail+")"))
		if t.Description != "" {
			item += " " + t.Description
		}
		l.Item(item)
	}
	return l.String()
}

func runThemeShow(out io.Writer, store *theme.Store, name, format string, raw bool) error {
	t, err := findTheme(store, name)
	if err != nil {
		return err
	}
	doc, err := themeMarkdown(t, format)
	if err != nil {
		return err
	}
	if raw {
		_, err = fmt.Fprint(out, doc)
		return err
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	rendered, err := renderer.Render(doc)
	if err != nil {
		return fmt.Errorf("failed to render theme description: %w", err)
	}
	_, err = fmt.Fprint(out, rendered)
	return err
}

// themeMarkdown describes a resolved theme as markdown.
func themeMarkdown(t *prompttypes.Theme, format string) (string, error) {
	definition, err := theme.Encode(t, format)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", t.Name)
	if t.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", t.Description)
	}
	fmt.Fprintf(&b, "- **Source:** %s\n", t.Source)
	if t.Version != "" {
		fmt.Fprintf(&b, "- **Version:** %s\n", t.Version)
	}
	if t.Category != "" {
		fmt.Fprintf(&b, "- **Category:** %s\n", t.Category)
	}
	if t.InheritsFrom != "" {
		fmt.Fprintf(&b, "- **Inherits from:** %s\n", t.InheritsFrom)
	}
	if names := t.Capabilities.Names(); len(names) > 0 {
		fmt.Fprintf(&b, "- **Capabilities:** %s\n", strings.Join(names, ", "))
	}

	symbols := t.Symbols.Fields()
	keys := make([]string, 0, len(symbols))
	for key, value := range symbols {
		if *value != "" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	if len(keys) > 0 {
		b.WriteString("\n## Symbols\n\n| Name | Symbol |\n|---|---|\n")
		for _, key := range keys {
			fmt.Fprintf(&b, "| %s | `%s` |\n", key, *symbols[key])
		}
	}

	b.WriteString("\n## Layout\n\n")
	for _, slot := range []prompttypes.PromptSlot{
		prompttypes.SlotPrimary, prompttypes.SlotRight, prompttypes.SlotContinuation, prompttypes.SlotTransient,
	} {
		if layout := t.Layout.Format(slot); layout != "" {
			fmt.Fprintf(&b, "- **%s:** `%s`\n", slot, layout)
		}
	}

	fmt.Fprintf(&b, "\n## Definition\n\n```%s\n%s```\n", format, definition)
	return b.String(), nil
}

// DiffLine is one line of a theme diff. Op is '+', '-' or ' '.
type DiffLine struct {
	Op   byte
	Text string
}

// diffThemes compares the YAML form of two resolved themes line by line.
func diffThemes(a, b *prompttypes.Theme) ([]DiffLine, error) {
	left, err := theme.Encode(a, theme.FormatYAML)
	if err != nil {
		return nil, err
	}
	right, err := theme.Encode(b, theme.FormatYAML)
	if err != nil {
		return nil, err
	}

	dmp := diffmatchpatch.New()
	leftChars, rightChars, lines := dmp.DiffLinesToChars(string(left), string(right))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(leftChars, rightChars, false), lines)

	var result []DiffLine
	for _, diff := range diffs {
		op := byte(' ')
		switch diff.Type {
		case diffmatchpatch.DiffInsert:
			op = '+'
		case diffmatchpatch.DiffDelete:
			op = '-'
		}
		for _, line := range strings.SplitAfter(diff.Text, "\n") {
			if line == "" {
				continue
			}
			result = append(result, DiffLine{Op: op, Text: strings.TrimSuffix(line, "\n")})
		}
	}
	return result, nil
}

func colorDiff(lines []DiffLine) string {
	var b strings.Builder
	for _, line := range lines {
		text := string(line.Op) + " " + line.Text
		switch line.Op {
		case '+':
			text = addedStyle.Render(text)
		case '-':
			text = removedStyle.Render(text)
		default:
			text = mutedStyle.Render(text)
		}
		b.WriteString(text)
		b.WriteByte('\n')
	}
	return b.String()
}
