package shellintegration

import (
	"testing"

	"lumen/pkg/prompttypes"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSequence(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected *Sequence
		valid    bool
	}{
		{
			name:     "Prompt start",
			input:    "\033]133;A\007",
			expected: &Sequence{Code: "133", Data: "A", Raw: "\033]133;A\007"},
			valid:    true,
		},
		{
			name:     "Command end with exit code",
			input:    "\033]133;D;1\007",
			expected: &Sequence{Code: "133", Data: "D;1", Raw: "\033]133;D;1\007"},
			valid:    true,
		},
		{
			name:     "ST terminator",
			input:    "\033]133;D;0\033\\",
			expected: &Sequence{Code: "133", Data: "D;0", Raw: "\033]133;D;0\033\\"},
			valid:    true,
		},
		{
			name:     "Trailing text after terminator",
			input:    "\033]7;file://h/tmp\007rest",
			expected: &Sequence{Code: "7", Data: "file://h/tmp", Raw: "\033]7;file://h/tmp\007"},
			valid:    true,
		},
		{
			name:  "No terminator",
			input: "\033]133;A",
			valid: false,
		},
		{
			name:  "Not an OSC sequence",
			input: "plain text",
			valid: false,
		},
		{
			name:  "Empty code",
			input: "\033];A\007",
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq, ok := ParseSequence(tt.input)
			assert.Equal(t, tt.valid, ok)
			if tt.valid {
				assert.Equal(t, tt.expected, seq)
			} else {
				assert.Nil(t, seq)
			}
		})
	}
}

func TestSequence_Event(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected prompttypes.Event
		ok       bool
	}{
		{
			name:     "Directory",
			input:    FormatDirectory("box", "/home/tester/my project"),
			expected: prompttypes.Event{Kind: prompttypes.EventDirectoryChanged, Directory: "/home/tester/my project"},
			ok:       true,
		},
		{
			name:     "Directory sent unescaped",
			input:    "\033]7;file://box/tmp/100%\007",
			expected: prompttypes.Event{Kind: prompttypes.EventDirectoryChanged, Directory: "/tmp/100%"},
			ok:       true,
		},
		{
			name:     "Directory without host",
			input:    "\033]7;file:///srv\007",
			expected: prompttypes.Event{Kind: prompttypes.EventDirectoryChanged, Directory: "/srv"},
			ok:       true,
		},
		{
			name:  "Directory with other scheme",
			input: "\033]7;http://box/srv\007",
			ok:    false,
		},
		{
			name:     "Prompt start",
			input:    Format(CodeSemanticPrompt, MarkPromptStart),
			expected: prompttypes.Event{Kind: prompttypes.EventAboutToShowPrompt, Slot: prompttypes.SlotPrimary},
			ok:       true,
		},
		{
			name:     "Command with semicolons",
			input:    Format(CodeSemanticPrompt, MarkOutputStart, "make test; echo done"),
			expected: prompttypes.Event{Kind: prompttypes.EventAboutToExecuteCommand, Command: "make test; echo done"},
			ok:       true,
		},
		{
			name:     "Command without text",
			input:    Format(CodeSemanticPrompt, MarkOutputStart),
			expected: prompttypes.Event{Kind: prompttypes.EventAboutToExecuteCommand},
			ok:       true,
		},
		{
			name:     "Command end",
			input:    Format(CodeSemanticPrompt, MarkCommandEnd, "130"),
			expected: prompttypes.Event{Kind: prompttypes.EventCommandFinished, ExitCode: 130},
			ok:       true,
		},
		{
			name:     "Command end with extra fields",
			input:    Format(CodeSemanticPrompt, MarkCommandEnd, "2", "aid=1"),
			expected: prompttypes.Event{Kind: prompttypes.EventCommandFinished, ExitCode: 2},
			ok:       true,
		},
		{
			name:     "Command end without code",
			input:    Format(CodeSemanticPrompt, MarkCommandEnd),
			expected: prompttypes.Event{Kind: prompttypes.EventCommandFinished},
			ok:       true,
		},
		{
			name:  "Command start mark has no event",
			input: Format(CodeSemanticPrompt, MarkCommandStart),
			ok:    false,
		},
		{
			name:     "Theme",
			input:    FormatUserVar(UserVarTheme, "ocean"),
			expected: prompttypes.Event{Kind: prompttypes.EventThemeChanged, Theme: "ocean"},
			ok:       true,
		},
		{
			name:     "Theme with base64 tool newline",
			input:    "\033]1337;SetUserVar=lumen_theme=b2NlYW4=\n\007",
			expected: prompttypes.Event{Kind: prompttypes.EventThemeChanged, Theme: "ocean"},
			ok:       true,
		},
		{
			name:     "Keymap",
			input:    FormatUserVar(UserVarKeymap, "vicmd"),
			expected: prompttypes.Event{Kind: prompttypes.EventKeymapChanged, Keymap: "vicmd"},
			ok:       true,
		},
		{
			name:  "Unknown user var",
			input: FormatUserVar("other", "x"),
			ok:    false,
		},
		{
			name:  "Invalid base64",
			input: "\033]1337;SetUserVar=lumen_theme=***\007",
			ok:    false,
		},
		{
			name:  "Unknown code",
			input: "\033]0;window title\007",
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq, ok := ParseSequence(tt.input)
			require.True(t, ok)
			ev, ok := seq.Event()
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, ev)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "\033]133;A\007", Format("133", "A"))
	assert.Equal(t, "\033]133;D;0\007", Format("133", "D", "0"))
	assert.Equal(t, "\033]7\007", Format("7"))
	assert.Equal(t, "\033]1337;SetUserVar=lumen_theme=bGVhbg==\007", FormatUserVar(UserVarTheme, "lean"))
}
