// internal/history/history.go

// Package history produces a deduplicated command-name count for the current
// collection window from an ordered chain of overlapping, unreliable shell
// history sources. Raw lines never leave the collection cycle; only the
// privacy-filtered first tokens are counted.
package history

import (
	"log"
	"time"

	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/privacy"
	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/state"
)

// Source is one strategy for recovering commands run since the watermark.
// Implementations return their raw candidate lines; filtering and tallying
// happen in the Collector. A failing source returns an error, which the
// Collector degrades to an empty contribution.
type Source interface {
	Name() string
	Collect(since, now time.Time) ([]string, error)
}

// Result is the collector's contribution to an hourly snapshot.
type Result struct {
	// Counts maps command name to invocation count for the window.
	Counts map[string]int
	// Lines are the raw window lines, kept in memory only so the
	// development-activity detector can scan the same sources. They are
	// never persisted or transmitted.
	Lines []string
}

// Collector runs the ordered source chain and advances the watermark.
//
// The sources are non-exclusive: the trailing mtime-gated source may
// re-surface lines already counted by an earlier source when a user switches
// shells mid-window. That overlap is a documented property of the chain, not
// something the collector tries to reconcile.
type Collector struct {
	Sources []Source
	State   *state.Store
}

// Collect gathers commands since the last successful run, tallies them and
// advances the watermark to now unconditionally, even when every source came
// back empty. Unreadable sources contribute nothing and propagate no error.
func (c *Collector) Collect(now time.Time) Result {
	since := c.State.Watermark()

	var lines []string
	for _, src := range c.Sources {
		got, err := src.Collect(since, now)
		if err != nil {
			log.Printf("history source %s unavailable: %v", src.Name(), err)
			continue
		}
		lines = append(lines, got...)
	}

	if err := c.State.SetWatermark(now); err != nil {
		log.Printf("WARNING: advance history watermark: %v", err)
	}

	return Result{
		Counts: privacy.Tally(lines),
		Lines:  lines,
	}
}
