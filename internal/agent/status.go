// internal/agent/status.go
package agent

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/aggregate"
	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/archive"
	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/config"
	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/state"
)

// Status writes a human-readable summary of the agent's local state: the
// watermark, the send gate, the in-progress aggregate and the recent
// archive. It never contacts the collector.
func Status(w io.Writer, cfg *config.Config) error {
	st, err := state.NewStore(cfg.StateDir)
	if err != nil {
		return fmt.Errorf("state store: %w", err)
	}

	fmt.Fprintf(w, "Developer:  %s (%s)\n", cfg.Name, cfg.DeveloperID)
	fmt.Fprintf(w, "Hostname:   %s\n", cfg.Hostname)
	fmt.Fprintf(w, "State dir:  %s\n", cfg.StateDir)

	if wm := st.Watermark(); wm.IsZero() {
		fmt.Fprintln(w, "Watermark:  none (first run pending)")
	} else {
		fmt.Fprintf(w, "Watermark:  %s\n", wm.Format("2006-01-02 15:04:05"))
	}

	if last := st.LastSendDate(); last == "" {
		fmt.Fprintln(w, "Last send:  never")
	} else {
		fmt.Fprintf(w, "Last send:  %s\n", last)
	}

	if agg := aggregate.Load(filepath.Join(cfg.StateDir, aggregateFile)); agg != nil {
		fmt.Fprintf(w, "Today:      %s, %d hours collected, %d active\n",
			agg.Date, len(agg.HoursCollected), agg.ActiveHours)
	} else {
		fmt.Fprintln(w, "Today:      no aggregate yet")
	}

	db, err := archive.Open(filepath.Join(cfg.StateDir, archiveFile))
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer db.Close()

	recent, err := db.Recent(7)
	if err != nil {
		return fmt.Errorf("read archive: %w", err)
	}
	if len(recent) == 0 {
		fmt.Fprintln(w, "Archive:    empty")
		return nil
	}
	fmt.Fprintln(w, "Archive:")
	for _, r := range recent {
		fmt.Fprintf(w, "  %s  %2d active hours, %d tools, %d commits\n",
			r.Date, r.ActiveHours, len(r.ToolsUsed), r.GitActivity.TotalCommits)
	}
	return nil
}
