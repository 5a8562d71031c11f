// internal/snapshot/snapshot.go

// Package snapshot composes one collection cycle's immutable hourly record
// from the independent collectors.
package snapshot

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/natefinch/atomic"

	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/devactivity"
	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/gitstats"
)

// DateLayout is the calendar-date format used across persisted state and the
// wire payload.
const DateLayout = "2006-01-02"

// Hourly is one cycle's result set. Built once, then only read.
type Hourly struct {
	Timestamp time.Time `json:"timestamp"`
	Date      string    `json:"date"` // YYYY-MM-DD
	Hour      int       `json:"hour"` // 0-23

	// Active derives from the collected signals at build time; a merely
	// running tool does not make an hour active.
	Active bool `json:"is_active"`

	Commands    map[string]int     `json:"commands"`
	Tools       []string           `json:"tools"`
	Projects    []string           `json:"projects"`
	Git         gitstats.Activity  `json:"git_activity"`
	Dev         devactivity.Counts `json:"development_activity"`
	Connections map[string]int     `json:"connections"`
}

// deriveActive applies the active-hour policy: real work signals only.
// Running tools and new connections are deliberately excluded.
func deriveActive(s *Hourly) bool {
	if len(s.Commands) > 0 {
		return true
	}
	if len(s.Projects) > 0 {
		return true
	}
	if s.Git.TotalCommits > 0 {
		return true
	}
	return s.Dev.TestRuns > 0 || s.Dev.Builds > 0
}

// Save overwrites the hourly snapshot file. The file exists for local
// inspection only; each cycle replaces it.
func Save(path string, s *Hourly) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(path, bytes.NewReader(data))
}
