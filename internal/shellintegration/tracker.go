package shellintegration

import (
	"sync"
	"time"

	"lumen/pkg/prompttypes"
)

// CommandState is the position of the shell in its prompt/command cycle.
type CommandState int

// Command states.
const (
	StateIdle CommandState = iota
	StatePrompt
	StateRunning
	StateFinished
)

func (s CommandState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StatePrompt:
		return "Prompt"
	case StateRunning:
		return "Running"
	case StateFinished:
		return "Finished"
	default:
		return "Unknown"
	}
}

// ShellState is a snapshot of what the shell has reported so far.
type ShellState struct {
	State          CommandState
	Directory      string
	Keymap         string
	LastCommand    string
	LastExitCode   int
	CommandStarted time.Time
	CommandEnded   time.Time
	// LastDuration is the run time of the last finished command.
	LastDuration time.Duration
	Commands     int
}

// IsRunning reports whether a command is executing.
func (s ShellState) IsRunning() bool {
	return s.State == StateRunning
}

// Tracker folds lifecycle events into a ShellState. It is safe for concurrent use.
type Tracker struct {
	mutex sync.RWMutex
	state ShellState
	now   func() time.Time
}

// NewTracker creates a tracker starting in dir.
func NewTracker(dir string) *Tracker {
	return &Tracker{
		state: ShellState{State: StateIdle, Directory: dir},
		now:   time.Now,
	}
}

// SetClock replaces the time source, for deterministic durations.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.now = now
}

// Apply updates the state for ev and returns the new snapshot.
func (t *Tracker) Apply(ev prompttypes.Event) ShellState {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	s := &t.state
	switch ev.Kind {
	case prompttypes.EventDirectoryChanged:
		s.Directory = ev.Directory
	case prompttypes.EventAboutToShowPrompt:
		s.State = StatePrompt
	case prompttypes.EventAboutToExecuteCommand:
		s.State = StateRunning
		s.LastCommand = ev.Command
		s.CommandStarted = t.now()
		s.CommandEnded = time.Time{}
		s.Commands++
	case prompttypes.EventCommandFinished:
		s.LastExitCode = ev.ExitCode
		// A finish without a start (empty command line) keeps the previous duration at zero.
		if s.State == StateRunning && !s.CommandStarted.IsZero() {
			s.CommandEnded = t.now()
			s.LastDuration = s.CommandEnded.Sub(s.CommandStarted)
		} else {
			s.LastDuration = 0
		}
		s.State = StateFinished
	case prompttypes.EventKeymapChanged:
		s.Keymap = ev.Keymap
	}
	return t.state
}

// State returns the current snapshot.
func (t *Tracker) State() ShellState {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return t.state
}

// Reset returns to the idle state, keeping the directory.
func (t *Tracker) Reset() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.state = ShellState{State: StateIdle, Directory: t.state.Directory}
}
