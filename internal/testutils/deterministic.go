// Package testutils provides deterministic generators, fake segments and fixtures for lumen tests.
// The generators are also used in production when test mode is enabled, so golden output
// stays stable across runs.
package testutils

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// Thread-safe counter for deterministic ID generation
	idCounter uint64
	idMutex   sync.Mutex

	// Thread-safe counter for deterministic timestamp generation
	timeCounter int64
	timeMutex   sync.Mutex
)

// BaseTime is the first timestamp returned by CurrentTime in test mode.
var BaseTime = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// GenerateUUID generates a UUID that is deterministic in test mode but random otherwise.
// In test mode, returns UUIDs in format: 00000001-0000-4000-8000-000000000001, etc.
func GenerateUUID(testMode bool) string {
	if testMode {
		return getDeterministicUUID()
	}
	return uuid.New().String()
}

// CurrentTime returns the current time, deterministic in test mode but real otherwise.
// In test mode each call returns BaseTime plus one more second than the previous call.
func CurrentTime(testMode bool) time.Time {
	if testMode {
		return getDeterministicTime()
	}
	return time.Now()
}

// getDeterministicUUID generates a deterministic UUID maintaining UUID v4 format.
func getDeterministicUUID() string {
	idMutex.Lock()
	defer idMutex.Unlock()

	idCounter++
	return fmt.Sprintf("%08x-0000-4000-8000-%012x", idCounter, idCounter)
}

func getDeterministicTime() time.Time {
	timeMutex.Lock()
	defer timeMutex.Unlock()

	t := BaseTime.Add(time.Duration(timeCounter) * time.Second)
	timeCounter++
	return t
}

// ResetTestCounters resets the deterministic counters.
// This should only be called from test code to ensure consistent test runs.
func ResetTestCounters() {
	idMutex.Lock()
	timeMutex.Lock()
	defer idMutex.Unlock()
	defer timeMutex.Unlock()

	idCounter = 0
	timeCounter = 0
}
