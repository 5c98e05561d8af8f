// Package shellintegration connects lumen to an interactive shell.
//
// The shell hook scripts report lifecycle events as OSC escape sequences:
//
//	OSC 7;file://host/path                      directory changed
//	OSC 133;A                                   about to show the prompt
//	OSC 133;C[;command]                         about to execute a command
//	OSC 133;D[;exit code]                       command finished
//	OSC 1337;SetUserVar=lumen_theme=<base64>    switch theme
//	OSC 1337;SetUserVar=lumen_keymap=<base64>   line editor keymap changed
//
// Sequences end with BEL or ST. Rendered prompts go back to the shell as
// NUL-terminated "<slot>\t<text>" frames.
package shellintegration

import (
	"encoding/base64"
	"net/url"
	"strconv"
	"strings"

	"lumen/pkg/prompttypes"
)

// Escape sequence framing.
const (
	// ESC = ASCII 27 (0x1B)
	ESC = "\033"
	// BEL = ASCII 7 (0x07), the usual string terminator
	BEL = "\007"
	// OSC = Operating System Command prefix
	OSC = ESC + "]"
	// ST = String Terminator (alternative to BEL)
	ST = ESC + "\\"
)

// OSC command codes understood by the decoder.
const (
	CodeWorkingDirectory = "7"
	CodeSemanticPrompt   = "133"
	CodeUserVar          = "1337"
)

// OSC 133 marks.
const (
	MarkPromptStart  = "A"
	MarkCommandStart = "B"
	MarkOutputStart  = "C"
	MarkCommandEnd   = "D"
)

// User variables carried by OSC 1337 SetUserVar.
const (
	UserVarTheme  = "lumen_theme"
	UserVarKeymap = "lumen_keymap"
)

// Sequence is one parsed OSC sequence.
type Sequence struct {
	// Code is the OSC command number, e.g. "133".
	Code string
	// Data is everything after "<code>;", e.g. "D;0".
	Data string
	// Raw is the full sequence including introducer and terminator.
	Raw string
}

// ParseSequence parses a complete OSC sequence. It reports false when text does not
// start with OSC or has no terminator.
func ParseSequence(text string) (*Sequence, bool) {
	if !strings.HasPrefix(text, OSC) {
		return nil, false
	}

	var body string
	var end int
	bel := strings.Index(text, BEL)
	st := strings.Index(text, ST)
	switch {
	case bel != -1 && (st == -1 || bel < st):
		body = text[len(OSC):bel]
		end = bel + len(BEL)
	case st != -1:
		body = text[len(OSC):st]
		end = st + len(ST)
	default:
		return nil, false
	}

	code, data, _ := strings.Cut(body, ";")
	if code == "" {
		return nil, false
	}
	return &Sequence{Code: code, Data: data, Raw: text[:end]}, true
}

// Format builds an OSC sequence terminated by BEL.
func Format(code string, data ...string) string {
	sequence := OSC + code
	if len(data) > 0 {
		sequence += ";" + strings.Join(data, ";")
	}
	return sequence + BEL
}

// FormatUserVar builds an OSC 1337 SetUserVar sequence with a base64 value.
func FormatUserVar(name, value string) string {
	return Format(CodeUserVar, "SetUserVar="+name+"="+base64.StdEncoding.EncodeToString([]byte(value)))
}

// FormatDirectory builds an OSC 7 sequence for dir on host.
func FormatDirectory(host, dir string) string {
	u := url.URL{Scheme: "file", Host: host, Path: dir}
	return Format(CodeWorkingDirectory, u.String())
}

// Event converts a sequence into a lifecycle event. Sequences without a
// lifecycle meaning, such as OSC 133;B, report false.
func (s *Sequence) Event() (prompttypes.Event, bool) {
	switch s.Code {
	case CodeWorkingDirectory:
		dir, ok := parseFileURL(s.Data)
		if !ok {
			return prompttypes.Event{}, false
		}
		return prompttypes.Event{Kind: prompttypes.EventDirectoryChanged, Directory: dir}, true

	case CodeSemanticPrompt:
		mark, rest, _ := strings.Cut(s.Data, ";")
		switch mark {
		case MarkPromptStart:
			return prompttypes.Event{Kind: prompttypes.EventAboutToShowPrompt, Slot: prompttypes.SlotPrimary}, true
		case MarkOutputStart:
			return prompttypes.Event{Kind: prompttypes.EventAboutToExecuteCommand, Command: rest}, true
		case MarkCommandEnd:
			code := 0
			if rest != "" {
				first, _, _ := strings.Cut(rest, ";")
				if n, err := strconv.Atoi(first); err == nil {
					code = n
				}
			}
			return prompttypes.Event{Kind: prompttypes.EventCommandFinished, ExitCode: code}, true
		}

	case CodeUserVar:
		assignment, ok := strings.CutPrefix(s.Data, "SetUserVar=")
		if !ok {
			return prompttypes.Event{}, false
		}
		name, encoded, _ := strings.Cut(assignment, "=")
		value, ok := decodeUserVar(encoded)
		if !ok {
			return prompttypes.Event{}, false
		}
		switch name {
		case UserVarTheme:
			return prompttypes.Event{Kind: prompttypes.EventThemeChanged, Theme: value}, true
		case UserVarKeymap:
			return prompttypes.Event{Kind: prompttypes.EventKeymapChanged, Keymap: value}, true
		}
	}
	return prompttypes.Event{}, false
}

// parseFileURL extracts the path of a file:// URL. A bare absolute path is accepted too.
func parseFileURL(data string) (string, bool) {
	if strings.HasPrefix(data, "/") {
		return data, true
	}
	rest, ok := strings.CutPrefix(data, "file://")
	if !ok {
		return "", false
	}
	u, err := url.Parse(data)
	if err == nil && u.Path != "" {
		return u.Path, true
	}
	// Hook scripts send $PWD unescaped; fall back to the raw text after the host.
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return rest[i:], true
	}
	return "", false
}

// decodeUserVar decodes a base64 value. Shell base64 tools append newlines and may wrap.
func decodeUserVar(encoded string) (string, bool) {
	encoded = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' {
			return -1
		}
		return r
	}, encoded)
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", false
	}
	return string(data), true
}
