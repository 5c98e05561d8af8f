package segment

import (
	"time"

	"lumen/pkg/prompttypes"
)

// Options configures the builtin segments.
type Options struct {
	DirectoryMaxDepth int
	TimeFormat        string
	DurationThreshold time.Duration
	GitTimeout        time.Duration
	// GitFetcher overrides the git binary, mainly for tests.
	GitFetcher StatusFetcher
}

// Builtins returns a fresh instance of every builtin segment.
func Builtins(opts Options) []prompttypes.Segment {
	return []prompttypes.Segment{
		NewDirectory(opts.DirectoryMaxDepth),
		NewGit(opts.GitFetcher, opts.GitTimeout),
		NewStatus(),
		NewUser(),
		NewHost(),
		NewTime(opts.TimeFormat),
		NewDuration(opts.DurationThreshold),
		NewKeymap(),
		NewSymbol(),
	}
}

// RegisterBuiltins registers every builtin segment in store.
func RegisterBuiltins(store *Store, opts Options) error {
	for _, seg := range Builtins(opts) {
		if err := store.Register(seg); err != nil {
			return err
		}
	}
	return nil
}
