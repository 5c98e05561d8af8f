package main

import (
	"io"
	"os"
	"sync"

	"lumen/internal/composer"
	"lumen/internal/logger"
	"lumen/internal/shellintegration"
	"lumen/pkg/prompttypes"

	"github.com/spf13/cobra"
)

// promptSlots are the frames answered for each prompt request, in order.
var promptSlots = []prompttypes.PromptSlot{
	prompttypes.SlotPrimary,
	prompttypes.SlotRight,
	prompttypes.SlotContinuation,
}

// lateSlots are the frames re-sent when async data arrives while a prompt is shown.
var lateSlots = []prompttypes.PromptSlot{
	prompttypes.SlotPrimary,
	prompttypes.SlotRight,
}

func newCoprocCmd() *cobra.Command {
	var shell string
	cmd := &cobra.Command{
		Use:   "coproc",
		Short: "Serve prompts to a shell over stdin/stdout",
		Long: `Run as a shell coprocess. Lifecycle events arrive on stdin as OSC sequences
(7, 133 and 1337 SetUserVar); prompts are written to stdout as NUL-terminated
"<slot>\t<text>" frames. Started by the scripts from "lumen init".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newComposer(shell, false)
			if err != nil {
				return err
			}
			defer closeComposer(c)
			return runCoproc(c, shell, os.Stdin, os.Stdout)
		},
	}
	cmd.Flags().StringVar(&shell, "shell", "", "Shell on the other end (bash|zsh)")
	return cmd
}

// coprocSession writes frames for one shell. Writes are serialized so late
// updates never interleave with a prompt answer.
type coprocSession struct {
	composer *composer.Composer
	shell    string

	mu   sync.Mutex
	out  io.Writer
	sent map[prompttypes.PromptSlot]string
}

func (s *coprocSession) writeSlots(slots []prompttypes.PromptSlot, onlyChanged bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	texts := make([]string, len(slots))
	changed := false
	for i, slot := range slots {
		texts[i] = s.composer.AboutToShowPrompt(slot)
		if texts[i] != s.sent[slot] {
			changed = true
		}
	}
	if onlyChanged && !changed {
		return nil
	}
	for i, slot := range slots {
		if err := shellintegration.WriteFrame(s.out, slot, shellintegration.EscapePrompt(s.shell, texts[i])); err != nil {
			return err
		}
		s.sent[slot] = texts[i]
	}
	return nil
}

// runCoproc serves events from in until it is closed.
func runCoproc(c *composer.Composer, shell string, in io.Reader, out io.Writer) error {
	session := &coprocSession{
		composer: c,
		shell:    shell,
		out:      out,
		sent:     make(map[prompttypes.PromptSlot]string),
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			case <-c.Updates():
				if c.State().State != shellintegration.StatePrompt {
					continue
				}
				if err := session.writeSlots(lateSlots, true); err != nil {
					logger.Warn("Failed to write late prompt update", "error", err)
				}
			}
		}
	}()

	err := shellintegration.NewDecoder().Run(in, func(ev prompttypes.Event) {
		if ev.Kind == prompttypes.EventAboutToShowPrompt {
			if err := session.writeSlots(promptSlots, false); err != nil {
				logger.Warn("Failed to write prompt", "error", err)
			}
			return
		}
		if _, err := c.Handle(ev); err != nil {
			logger.Warn("Event not applied", "event", ev.Kind.String(), "error", err)
		}
	})

	close(done)
	wg.Wait()
	return err
}
