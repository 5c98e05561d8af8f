package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"lumen/internal/composer"
	"lumen/internal/shellintegration"
	"lumen/pkg/prompttypes"

	"github.com/spf13/cobra"
)

type renderOptions struct {
	slot     string
	exitCode int
	dir      string
	theme    string
	keymap   string
	shell    string
	wait     time.Duration
}

func newRenderCmd() *cobra.Command {
	opts := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render one prompt slot and exit",
		Long: `Render a prompt slot for the given state. Async segments such as git are
only included when --wait gives them time to finish.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newComposer(opts.shell, false)
			if err != nil {
				return err
			}
			defer closeComposer(c)
			return runRender(cmd.Context(), c, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.slot, "slot", "primary", "Prompt slot (primary|right|continuation|transient)")
	cmd.Flags().IntVar(&opts.exitCode, "exit-code", 0, "Exit code of the last command")
	cmd.Flags().StringVar(&opts.dir, "dir", "", "Working directory (default: current directory)")
	cmd.Flags().StringVar(&opts.theme, "theme", "", "Theme to render with (default: configured theme)")
	cmd.Flags().StringVar(&opts.keymap, "keymap", "", "Line editor keymap, for the vi mode indicator")
	cmd.Flags().StringVar(&opts.shell, "shell", "", "Quote the output for this shell's prompt variable (bash|zsh)")
	cmd.Flags().DurationVar(&opts.wait, "wait", 0, "How long to wait for async segments")
	return cmd
}

func runRender(ctx context.Context, c *composer.Composer, opts *renderOptions, out io.Writer) error {
	slot, ok := prompttypes.ParsePromptSlot(opts.slot)
	if !ok {
		return prompttypes.NewError(prompttypes.KindInvalidParameter, "render", opts.slot, errors.New("unknown prompt slot"))
	}
	if opts.theme != "" {
		if err := c.SetTheme(opts.theme); err != nil {
			return err
		}
	}

	dir := opts.dir
	if dir == "" {
		if wd, err := os.Getwd(); err == nil {
			dir = wd
		}
	}
	c.DirectoryChanged(dir)
	if opts.keymap != "" {
		c.KeymapChanged(opts.keymap)
	}
	c.CommandFinished(opts.exitCode)

	if opts.wait > 0 {
		if ctx == nil {
			ctx = context.Background()
		}
		waitCtx, cancel := context.WithTimeout(ctx, opts.wait)
		defer cancel()
		if err := c.Wait(waitCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	}

	var text string
	if slot == prompttypes.SlotTransient {
		c.AboutToShowPrompt(prompttypes.SlotPrimary)
		c.AboutToExecuteCommand("")
		text = c.Transient()
	} else {
		text = c.AboutToShowPrompt(slot)
	}
	_, err := fmt.Fprint(out, shellintegration.EscapePrompt(opts.shell, text))
	return err
}
