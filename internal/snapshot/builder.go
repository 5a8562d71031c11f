// internal/snapshot/builder.go
package snapshot

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/devactivity"
	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/gitstats"
	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/history"
	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/netwatch"
	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/projects"
	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/tools"
)

// Builder fans the collectors out, joins them, and freezes the hourly record.
type Builder struct {
	History  *history.Collector
	Tools    *tools.Detector
	Projects *projects.Scanner
	Git      *gitstats.Extractor
	Net      *netwatch.Tracker

	// Window is the collection interval the auxiliary collectors look back
	// over.
	Window time.Duration
	// Timeout bounds each collector task; a task that overruns it
	// contributes its zero value.
	Timeout time.Duration
}

// Build runs every collector concurrently, waits for all of them (bounded
// per task), and composes the hourly snapshot. A failed or stalled collector
// degrades to an empty contribution; nothing here aborts the cycle.
func (b *Builder) Build(ctx context.Context, now time.Time) *Hourly {
	since := now.Add(-b.Window)
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	type histResult struct {
		hist history.Result
		dev  devactivity.Counts
	}

	var (
		hr          histResult
		running     []string
		active      []string
		gitActivity gitstats.Activity
		connections map[string]int
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(bounded(gctx, timeout, "history", func() histResult {
		h := b.History.Collect(now)
		return histResult{hist: h, dev: devactivity.Scan(h.Lines)}
	}, &hr))

	g.Go(bounded(gctx, timeout, "tools", func() []string {
		return b.Tools.Detect()
	}, &running))

	g.Go(bounded(gctx, timeout, "projects", func() []string {
		return b.Projects.Active(since, now)
	}, &active))

	g.Go(bounded(gctx, timeout, "git", func() gitstats.Activity {
		return b.Git.Extract(b.Projects.Repos(), since, now)
	}, &gitActivity))

	g.Go(bounded(gctx, timeout, "connections", func() map[string]int {
		return b.Net.Sample()
	}, &connections))

	g.Wait()

	s := &Hourly{
		Timestamp:   now,
		Date:        now.Format(DateLayout),
		Hour:        now.Hour(),
		Commands:    hr.hist.Counts,
		Tools:       running,
		Projects:    active,
		Git:         gitActivity,
		Dev:         hr.dev,
		Connections: connections,
	}
	s.Active = deriveActive(s)
	return s
}

// bounded wraps a collector call for the errgroup: the result is taken only
// if it arrives before the timeout, and an overrun or cancellation leaves
// the zero value in place without failing the group.
func bounded[T any](ctx context.Context, timeout time.Duration, name string, fn func() T, out *T) func() error {
	return func() error {
		ch := make(chan T, 1)
		go func() { ch <- fn() }()

		timer := time.NewTimer(timeout)
		defer timer.Stop()

		select {
		case v := <-ch:
			*out = v
		case <-timer.C:
			log.Printf("WARNING: collector %s timed out after %s, using empty result", name, timeout)
		case <-ctx.Done():
		}
		return nil
	}
}
