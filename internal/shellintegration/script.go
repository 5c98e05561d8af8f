package shellintegration

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"lumen/internal/data/embedded"
	"lumen/pkg/prompttypes"
)

// Supported shells.
const (
	ShellBash = "bash"
	ShellZsh  = "zsh"
)

// Script returns the hook script for shell.
func Script(shell string) (string, error) {
	return embedded.ShellScript(shell)
}

// SupportedShells lists the shells Script knows.
func SupportedShells() []string {
	return embedded.SupportedShells()
}

// EscapePrompt prepares rendered prompt text for a shell prompt variable.
// Prompt escapes are quoted (bash runs with promptvars off, so only backslashes
// matter; zsh gets doubled percent signs) and escape sequences are marked as
// zero-width so line editing keeps the cursor column right. Other shells get the
// text unchanged.
func EscapePrompt(shell, text string) string {
	var openMark, closeMark string
	var quote func(b *strings.Builder, c byte)

	switch strings.ToLower(shell) {
	case ShellBash:
		openMark, closeMark = "\001", "\002"
		quote = func(b *strings.Builder, c byte) {
			if c == '\\' {
				b.WriteByte('\\')
			}
			b.WriteByte(c)
		}
	case ShellZsh:
		openMark, closeMark = "%{", "%}"
		quote = func(b *strings.Builder, c byte) {
			if c == '%' {
				b.WriteByte('%')
			}
			b.WriteByte(c)
		}
	default:
		return text
	}

	var b strings.Builder
	for i := 0; i < len(text); {
		if text[i] == '\033' {
			end := escapeEnd(text, i)
			b.WriteString(openMark)
			for j := i; j < end; j++ {
				quote(&b, text[j])
			}
			b.WriteString(closeMark)
			i = end
			continue
		}
		quote(&b, text[i])
		i++
	}
	return b.String()
}

// escapeEnd returns the index just past the escape sequence starting at i.
// CSI sequences end at a final byte in 0x40-0x7E; OSC sequences at BEL or ST.
func escapeEnd(text string, i int) int {
	if i+1 >= len(text) {
		return len(text)
	}
	switch text[i+1] {
	case '[':
		for j := i + 2; j < len(text); j++ {
			if text[j] >= 0x40 && text[j] <= 0x7e {
				return j + 1
			}
		}
		return len(text)
	case ']':
		if end := terminatorEnd(text, i+2); end != -1 {
			return end
		}
		return len(text)
	default:
		return i + 2
	}
}

// WriteFrame writes one NUL-terminated "<slot>\t<text>" frame. NUL bytes in text are dropped.
func WriteFrame(w io.Writer, slot prompttypes.PromptSlot, text string) error {
	text = strings.ReplaceAll(text, "\x00", "")
	if _, err := fmt.Fprintf(w, "%s\t%s\x00", slot, text); err != nil {
		return fmt.Errorf("failed to write %s frame: %w", slot, err)
	}
	return nil
}

// Frame is one prompt update sent to the shell.
type Frame struct {
	Slot prompttypes.PromptSlot
	Text string
}

// ReadFrames splits a stream of frames, for clients and tests.
func ReadFrames(r io.Reader) ([]Frame, error) {
	scanner := bufio.NewScanner(r)
	scanner.Split(func(data []byte, atEOF bool) (int, []byte, error) {
		for i, c := range data {
			if c == 0 {
				return i + 1, data[:i], nil
			}
		}
		if atEOF && len(data) > 0 {
			return len(data), data, nil
		}
		return 0, nil, nil
	})

	var frames []Frame
	for scanner.Scan() {
		slot, text, _ := strings.Cut(scanner.Text(), "\t")
		frames = append(frames, Frame{Slot: prompttypes.PromptSlot(slot), Text: text})
	}
	if err := scanner.Err(); err != nil {
		return frames, fmt.Errorf("failed to read frames: %w", err)
	}
	return frames, nil
}
