// internal/agent/agent.go
package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/aggregate"
	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/archive"
	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/config"
	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/gitstats"
	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/history"
	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/netwatch"
	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/projects"
	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/snapshot"
	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/state"
	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/tools"
	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/transmit"
)

const (
	snapshotFile  = "hourly_snapshot.json"
	aggregateFile = "daily_aggregate.json"
	archiveFile   = "archive.db"
)

// Agent runs the hourly collection cycle and owns the process-level state.
type Agent struct {
	cfg     *config.Config
	state   *state.Store
	builder *snapshot.Builder
	client  *transmit.Client
	db      *archive.DB

	// Now is the clock for the cycle; nil means time.Now.
	Now func() time.Time
}

// New wires up an agent from the loaded config.
func New(cfg *config.Config) (*Agent, error) {
	st, err := state.NewStore(cfg.StateDir)
	if err != nil {
		return nil, fmt.Errorf("state store: %w", err)
	}

	db, err := archive.Open(filepath.Join(cfg.StateDir, archiveFile))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	sources := []history.Source{
		&history.ZshHistory{Path: filepath.Join(cfg.HomeDir, ".zsh_history")},
		&history.BashHistory{Path: filepath.Join(cfg.HomeDir, ".bash_history")},
	}
	if len(cfg.AuditCommand) > 0 {
		sources = append(sources, &history.AuditSource{Command: cfg.AuditCommand})
	}

	scanner := &projects.Scanner{Roots: cfg.ScanRoots, Depth: cfg.ScanDepth}

	builder := &snapshot.Builder{
		History:  &history.Collector{Sources: sources, State: st},
		Tools:    &tools.Detector{},
		Projects: scanner,
		Git:      &gitstats.Extractor{Author: cfg.GitAuthor},
		Net:      &netwatch.Tracker{State: st},
		Window:   cfg.Interval,
		Timeout:  cfg.CollectorTimeout,
	}

	client := transmit.New(cfg.Endpoint, cfg.MirrorEndpoint, cfg.Token, cfg.TLSSkipVerify, st, db)
	client.MaxAttempts = cfg.MaxSendAttempts

	return &Agent{
		cfg:     cfg,
		state:   st,
		builder: builder,
		client:  client,
		db:      db,
	}, nil
}

// Close releases the agent's archive handle.
func (a *Agent) Close() error {
	return a.db.Close()
}

// Cycle performs one collection pass: snapshot, fold into the daily
// aggregate, transmit, prune. Overlapping invocations are excluded by a lock
// file; the loser skips the cycle without error.
func (a *Agent) Cycle(ctx context.Context) error {
	lock, err := state.AcquireLock(a.cfg.StateDir)
	if errors.Is(err, state.ErrLocked) {
		log.Printf("WARNING: another cycle is running, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer lock.Release()

	now := a.now()
	today := now.Format(snapshot.DateLayout)

	snap := a.builder.Build(ctx, now)
	if err := snapshot.Save(filepath.Join(a.cfg.StateDir, snapshotFile), snap); err != nil {
		log.Printf("WARNING: write hourly snapshot: %v", err)
	}

	aggPath := filepath.Join(a.cfg.StateDir, aggregateFile)
	agg := aggregate.Load(aggPath)
	if agg == nil {
		agg = aggregate.New(today)
	}

	if agg.Date != today {
		// Day rollover: the completed day gets its final delivery before
		// the accumulator resets. The reset happens regardless; the
		// archive and the collector's copy are the durable records.
		log.Printf("Day rolled over %s -> %s, sending final report", agg.Date, today)
		if err := a.send(ctx, agg); err != nil {
			log.Printf("WARNING: final report for %s failed: %v", agg.Date, err)
		}
		agg = aggregate.New(today)
	}

	if !agg.Fold(snap) {
		log.Printf("Hour %02d already folded for %s", snap.Hour, agg.Date)
	}
	if err := aggregate.Save(aggPath, agg); err != nil {
		return fmt.Errorf("save aggregate: %w", err)
	}

	if err := a.send(ctx, agg); err != nil {
		log.Printf("WARNING: send report: %v", err)
	}

	a.prune(now)
	return nil
}

func (a *Agent) send(ctx context.Context, agg *aggregate.Daily) error {
	report := agg.Report(a.cfg.DeveloperID, a.cfg.Email, a.cfg.Name, a.cfg.Hostname)
	return a.client.Send(ctx, report)
}

func (a *Agent) prune(now time.Time) {
	if a.cfg.RetentionDays <= 0 {
		return
	}
	cutoff := now.AddDate(0, 0, -a.cfg.RetentionDays).Format(snapshot.DateLayout)
	n, err := a.db.Prune(cutoff)
	if err != nil {
		log.Printf("WARNING: prune archive: %v", err)
		return
	}
	if n > 0 {
		log.Printf("Pruned %d archived reports older than %s", n, cutoff)
	}
}

func (a *Agent) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}
