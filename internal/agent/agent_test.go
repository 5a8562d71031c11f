// internal/agent/agent_test.go
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/aggregate"
	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/archive"
	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/config"
	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/gitstats"
	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/history"
	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/netwatch"
	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/projects"
	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/protocol"
	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/snapshot"
	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/state"
	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/tools"
	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/transmit"
)

type fakeCollector struct {
	srv     *httptest.Server
	posts   atomic.Int64
	reports chan protocol.DailyReport
}

func newFakeCollector(t *testing.T) *fakeCollector {
	t.Helper()
	fc := &fakeCollector{reports: make(chan protocol.DailyReport, 16)}
	fc.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fc.posts.Add(1)
		var rep protocol.DailyReport
		if err := json.NewDecoder(r.Body).Decode(&rep); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		fc.reports <- rep
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(fc.srv.Close)
	return fc
}

func (fc *fakeCollector) next(t *testing.T) protocol.DailyReport {
	t.Helper()
	select {
	case r := <-fc.reports:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no report received")
		return protocol.DailyReport{}
	}
}

// newTestAgent builds an agent wired to temp dirs and fake subprocess
// runners so no real processes or sockets are inspected.
func newTestAgent(t *testing.T, endpoint string, now time.Time) *Agent {
	t.Helper()

	home := t.TempDir()
	stateDir := t.TempDir()

	// One recent zsh entry makes the hour active.
	entry := fmt.Sprintf(": %d:0;git status\n", now.Add(-5*time.Minute).Unix())
	require.NoError(t, os.WriteFile(filepath.Join(home, ".zsh_history"), []byte(entry), 0o600))

	cfg := &config.Config{
		Endpoint:         endpoint,
		Token:            "tok",
		DeveloperID:      "dev-1",
		Email:            "ada@example.com",
		Name:             "Ada",
		Hostname:         "host-1",
		Interval:         time.Hour,
		RetentionDays:    90,
		StateDir:         stateDir,
		HomeDir:          home,
		ScanRoots:        []string{home},
		ScanDepth:        2,
		MaxSendAttempts:  1,
		CollectorTimeout: 5 * time.Second,
	}

	st, err := state.NewStore(stateDir)
	require.NoError(t, err)
	db, err := archive.Open(filepath.Join(stateDir, archiveFile))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	builder := &snapshot.Builder{
		History: &history.Collector{
			Sources: []history.Source{
				&history.ZshHistory{Path: filepath.Join(home, ".zsh_history")},
			},
			State: st,
		},
		Tools:    &tools.Detector{Runner: func() ([]byte, error) { return []byte("vim\n"), nil }},
		Projects: &projects.Scanner{Roots: cfg.ScanRoots, Depth: cfg.ScanDepth},
		Git:      &gitstats.Extractor{},
		Net:      &netwatch.Tracker{State: st, Runner: func() ([]byte, error) { return nil, nil }},
		Window:   cfg.Interval,
		Timeout:  cfg.CollectorTimeout,
	}

	client := transmit.New(cfg.Endpoint, "", cfg.Token, false, st, db)
	client.MaxAttempts = 1
	client.Now = func() time.Time { return now }

	return &Agent{
		cfg:     cfg,
		state:   st,
		builder: builder,
		client:  client,
		db:      db,
		Now:     func() time.Time { return now },
	}
}

func TestCycleCollectsFoldsAndSends(t *testing.T) {
	fc := newFakeCollector(t)
	now := time.Now()
	a := newTestAgent(t, fc.srv.URL, now)

	require.NoError(t, a.Cycle(context.Background()))

	rep := fc.next(t)
	require.Equal(t, "dev-1", rep.DeveloperID)
	require.Equal(t, now.Format(snapshot.DateLayout), rep.Date)
	require.Equal(t, 1, rep.ActiveHours)

	// Snapshot and aggregate files land in the state dir.
	_, err := os.Stat(filepath.Join(a.cfg.StateDir, snapshotFile))
	require.NoError(t, err)

	agg := aggregate.Load(filepath.Join(a.cfg.StateDir, aggregateFile))
	require.NotNil(t, agg)
	require.Equal(t, 1, agg.Commands["git"])

	// The sent report is archived.
	got, err := a.db.Get(rep.Date)
	require.NoError(t, err)
	require.Equal(t, rep.Date, got.Date)
}

func TestCycleSendsAtMostOncePerDay(t *testing.T) {
	fc := newFakeCollector(t)
	now := time.Now()
	a := newTestAgent(t, fc.srv.URL, now)

	require.NoError(t, a.Cycle(context.Background()))
	require.NoError(t, a.Cycle(context.Background()))

	require.Equal(t, int64(1), fc.posts.Load())

	agg := aggregate.Load(filepath.Join(a.cfg.StateDir, aggregateFile))
	require.NotNil(t, agg)
	require.Len(t, agg.HoursCollected, 1)
}

func TestCycleRolloverSendsCompletedDay(t *testing.T) {
	fc := newFakeCollector(t)
	now := time.Now()
	a := newTestAgent(t, fc.srv.URL, now)

	yesterday := now.AddDate(0, 0, -1).Format(snapshot.DateLayout)
	prior := aggregate.New(yesterday)
	prior.ActiveHours = 5
	prior.HoursCollected = []string{"09", "10", "11", "12", "13"}
	prior.Tools = []string{"docker", "vim"}
	require.NoError(t, aggregate.Save(filepath.Join(a.cfg.StateDir, aggregateFile), prior))

	require.NoError(t, a.Cycle(context.Background()))

	// The completed day goes out; today's partial is held behind the
	// once-per-day gate.
	rep := fc.next(t)
	require.Equal(t, yesterday, rep.Date)
	require.Equal(t, 5, rep.ActiveHours)
	require.Equal(t, int64(1), fc.posts.Load())

	agg := aggregate.Load(filepath.Join(a.cfg.StateDir, aggregateFile))
	require.NotNil(t, agg)
	require.Equal(t, now.Format(snapshot.DateLayout), agg.Date)
	require.Len(t, agg.HoursCollected, 1)
}

func TestCycleSkipsWhenLocked(t *testing.T) {
	fc := newFakeCollector(t)
	now := time.Now()
	a := newTestAgent(t, fc.srv.URL, now)

	lock, err := state.AcquireLock(a.cfg.StateDir)
	require.NoError(t, err)
	defer lock.Release()

	require.NoError(t, a.Cycle(context.Background()))
	require.Equal(t, int64(0), fc.posts.Load())
}

func TestCyclePrunesOldArchives(t *testing.T) {
	fc := newFakeCollector(t)
	now := time.Now()
	a := newTestAgent(t, fc.srv.URL, now)

	stale := now.AddDate(0, 0, -120).Format(snapshot.DateLayout)
	require.NoError(t, a.db.Store(&protocol.DailyReport{Date: stale, Hostname: "host-1"}))

	require.NoError(t, a.Cycle(context.Background()))

	_, err := a.db.Get(stale)
	require.ErrorIs(t, err, archive.ErrNotFound)
}

func TestStatusReportsState(t *testing.T) {
	fc := newFakeCollector(t)
	now := time.Now()
	a := newTestAgent(t, fc.srv.URL, now)
	require.NoError(t, a.Cycle(context.Background()))
	fc.next(t)

	var buf bytes.Buffer
	require.NoError(t, Status(&buf, a.cfg))
	out := buf.String()
	require.Contains(t, out, "dev-1")
	require.Contains(t, out, now.Format(snapshot.DateLayout))
}
