package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"lumen/internal/composer"
	"lumen/pkg/prompttypes"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

func newDemoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Try themes in a small interactive shell",
		Long: `Start a minimal shell that draws its prompt with lumen. Commands run through
/bin/sh. Built-ins: cd <dir>, theme <name>, themes, keymap <name>, exit.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			c, err := newComposer("", true)
			if err != nil {
				return err
			}
			defer closeComposer(c)
			return runDemo(c)
		},
	}
}

func runDemo(c *composer.Composer) error {
	var historyFile string
	if home, err := os.UserHomeDir(); err == nil {
		historyFile = filepath.Join(home, ".lumen_history")
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          c.AboutToShowPrompt(prompttypes.SlotPrimary),
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to start line editor: %w", err)
	}
	defer rl.Close()

	if wd, err := os.Getwd(); err == nil {
		c.DirectoryChanged(wd)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case <-c.Updates():
				rl.SetPrompt(c.AboutToShowPrompt(prompttypes.SlotPrimary))
				rl.Refresh()
			}
		}
	}()

	for {
		rl.SetPrompt(c.AboutToShowPrompt(prompttypes.SlotPrimary))
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			c.CommandFinished(130)
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			c.CommandFinished(0)
			continue
		}
		if line == "exit" {
			return nil
		}

		c.AboutToExecuteCommand(line)
		if transient := c.Transient(); transient != "" {
			fmt.Fprintf(rl.Stdout(), "\033[1A\r\033[2K%s%s\n", transient, line)
		}
		c.CommandFinished(runDemoCommand(c, line, rl.Stdout(), rl.Stderr()))
	}
}

// runDemoCommand runs one command line and returns its exit code.
func runDemoCommand(c *composer.Composer, line string, stdout, stderr io.Writer) int {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "cd":
		dir := arg
		if dir == "" {
			dir, _ = os.UserHomeDir()
		}
		if err := os.Chdir(dir); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		wd, _ := os.Getwd()
		c.DirectoryChanged(wd)
		return 0
	case "theme":
		if err := c.SetTheme(arg); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		return 0
	case "themes":
		fmt.Fprintln(stdout, strings.Join(c.Themes().Names(), "\n"))
		return 0
	case "keymap":
		c.KeymapChanged(arg)
		return 0
	}

	cmd := exec.Command("/bin/sh", "-c", line)
	cmd.Stdin = os.Stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		fmt.Fprintln(stderr, err)
		return 127
	}
	return 0
}
