// internal/state/lock.go
package state

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrLocked is returned when another invocation holds the state lock.
// Callers treat it as "skip this cycle"; the next scheduled trigger retries.
var ErrLocked = errors.New("state directory is locked by another invocation")

// staleAfter is how old a lock file may be before it is considered leftover
// from a killed process and broken.
const staleAfter = 2 * time.Hour

// Lock is an exclusive advisory lock on the state directory.
type Lock struct {
	path string
}

// AcquireLock takes the exclusive state-directory lock. The lock file is
// created with O_EXCL so concurrent invocations race safely; a lock older
// than staleAfter is broken once and the acquisition retried.
func AcquireLock(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "agent.lock")

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
		if err == nil {
			fmt.Fprintf(f, "%d %s", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
			f.Close()
			return &Lock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, err
		}

		info, statErr := os.Stat(path)
		if statErr != nil {
			// The holder released between OpenFile and Stat; retry.
			continue
		}
		if time.Since(info.ModTime()) < staleAfter {
			return nil, fmt.Errorf("%w (held by %s)", ErrLocked, lockHolder(path))
		}

		log.Printf("WARNING: breaking stale lock %s (age %s)", path, time.Since(info.ModTime()).Round(time.Second))
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	return nil, ErrLocked
}

// Release drops the lock. Safe to call once per acquired lock.
func (l *Lock) Release() {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		log.Printf("WARNING: release lock: %v", err)
	}
}

// lockHolder returns the pid recorded in the lock file for diagnostics.
func lockHolder(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return "unknown"
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return "unknown"
	}
	if _, err := strconv.Atoi(fields[0]); err != nil {
		return "unknown"
	}
	return "pid " + fields[0]
}
