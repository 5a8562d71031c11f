// internal/aggregate/aggregate.go

// Package aggregate folds hourly snapshots into the running daily total and
// detects calendar-date rollover.
package aggregate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/natefinch/atomic"

	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/devactivity"
	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/gitstats"
	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/protocol"
	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/snapshot"
)

// Daily is the one live aggregate for a calendar date.
type Daily struct {
	Date           string   `json:"date"`
	HoursCollected []string `json:"hours_collected"`
	ActiveHours    int      `json:"active_hours"`

	Commands    map[string]int     `json:"commands"`
	Tools       []string           `json:"tools"`
	Projects    []string           `json:"projects"`
	Git         gitstats.Activity  `json:"git_activity"`
	Dev         devactivity.Counts `json:"development_activity"`
	Connections map[string]int     `json:"connections"`
}

// New returns a zero-valued aggregate for the date.
func New(date string) *Daily {
	return &Daily{
		Date:        date,
		Commands:    make(map[string]int),
		Connections: make(map[string]int),
	}
}

// Fold merges one hourly snapshot into the aggregate. Numeric maps merge by
// additive keyed union, name sets union with dedup, and per-repository git
// records group by repository name. The tool set is unioned only for active
// hours, so idle-but-running tools never surface in a day with no real work.
//
// Folding is idempotent per hour label: a snapshot for an hour already
// collected is ignored, and Fold reports whether the snapshot was applied.
func (d *Daily) Fold(s *snapshot.Hourly) bool {
	label := fmt.Sprintf("%02d", s.Hour)
	for _, h := range d.HoursCollected {
		if h == label {
			return false
		}
	}
	d.HoursCollected = append(d.HoursCollected, label)

	d.Commands = mergeCounts(d.Commands, s.Commands)
	d.Connections = mergeCounts(d.Connections, s.Connections)
	d.Projects = unionSorted(d.Projects, s.Projects)
	mergeGit(&d.Git, s.Git)
	d.Dev.TestRuns += s.Dev.TestRuns
	d.Dev.Builds += s.Dev.Builds

	if s.Active {
		d.Tools = unionSorted(d.Tools, s.Tools)
		d.ActiveHours++
	}
	return true
}

// Report freezes the aggregate into the wire payload.
func (d *Daily) Report(developerID, email, name, hostname string) *protocol.DailyReport {
	r := &protocol.DailyReport{
		DeveloperID: developerID,
		Email:       email,
		Name:        name,
		Hostname:    hostname,
		Date:        d.Date,
		ActiveHours: d.ActiveHours,
		ToolsUsed:   append([]string{}, d.Tools...),
		GitActivity: protocol.GitActivity{
			TotalCommits:      d.Git.TotalCommits,
			TotalLinesAdded:   d.Git.TotalLinesAdded,
			TotalLinesDeleted: d.Git.TotalLinesDeleted,
			TotalFilesChanged: d.Git.TotalFilesChanged,
			Repositories:      []protocol.RepoActivity{},
		},
		DevelopmentActivity: protocol.DevelopmentActivity{
			TestRunsDetected:      d.Dev.TestRuns,
			BuildCommandsDetected: d.Dev.Builds,
		},
		ProjectContext: append([]string{}, d.Projects...),
	}
	for _, repo := range d.Git.Repositories {
		r.GitActivity.Repositories = append(r.GitActivity.Repositories, protocol.RepoActivity{
			Name:           repo.Name,
			Commits:        repo.Commits,
			LinesAdded:     repo.LinesAdded,
			LinesDeleted:   repo.LinesDeleted,
			FilesChanged:   repo.FilesChanged,
			BranchesWorked: append([]string{}, repo.Branches...),
		})
	}
	return r
}

// Load reads the live aggregate from path. A missing or corrupt file returns
// nil; the caller starts a fresh aggregate.
func Load(path string) *Daily {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("WARNING: read daily aggregate: %v", err)
		}
		return nil
	}

	var d Daily
	if err := json.Unmarshal(data, &d); err != nil {
		log.Printf("WARNING: corrupt daily aggregate, starting fresh: %v", err)
		return nil
	}
	if d.Commands == nil {
		d.Commands = make(map[string]int)
	}
	if d.Connections == nil {
		d.Connections = make(map[string]int)
	}
	return &d
}

// Save atomically replaces the live aggregate file.
func Save(path string, d *Daily) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(path, bytes.NewReader(data))
}
