package prompttypes

// EventKind names a lifecycle event delivered by the host shell.
type EventKind int

// Lifecycle events understood by the composer.
const (
	EventDirectoryChanged EventKind = iota + 1
	EventAboutToShowPrompt
	EventAboutToExecuteCommand
	EventCommandFinished
	EventThemeChanged
	EventKeymapChanged
	EventRepositoryChanged
)

func (k EventKind) String() string {
	switch k {
	case EventDirectoryChanged:
		return "directory-changed"
	case EventAboutToShowPrompt:
		return "pre-prompt"
	case EventAboutToExecuteCommand:
		return "pre-command-execution"
	case EventCommandFinished:
		return "command-finished"
	case EventThemeChanged:
		return "theme-changed"
	case EventKeymapChanged:
		return "keymap-changed"
	case EventRepositoryChanged:
		return "repository-changed"
	default:
		return "unknown"
	}
}

// Event is one lifecycle notification and its payload.
// Only the fields relevant to Kind are set.
type Event struct {
	Kind      EventKind
	Directory string
	Command   string
	ExitCode  int
	Theme     string
	Keymap    string
	Slot      PromptSlot
}
