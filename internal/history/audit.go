// internal/history/audit.go
package history

import (
	"errors"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// maxAuditWindow caps how far back the audit query reaches, regardless of
// how long ago the watermark was advanced.
const maxAuditWindow = time.Hour

// AuditSource queries the OS command-audit log over a window sized to the
// elapsed time since the watermark. It recovers commands for shells whose
// history files carry no per-entry timestamps.
//
// The query command comes from configuration; the token {minutes} in any
// argument is replaced with the window size. An empty command disables the
// source.
type AuditSource struct {
	Command []string
	// Runner executes the query; nil uses the real subprocess.
	Runner func(name string, args ...string) ([]byte, error)
}

func (a *AuditSource) Name() string { return "audit-log" }

func (a *AuditSource) Collect(since, now time.Time) ([]string, error) {
	if len(a.Command) == 0 {
		return nil, nil
	}

	window := now.Sub(since)
	if since.IsZero() || window > maxAuditWindow {
		window = maxAuditWindow
	}
	if window <= 0 {
		return nil, nil
	}
	minutes := int(window.Minutes())
	if minutes < 1 {
		minutes = 1
	}

	args := make([]string, 0, len(a.Command)-1)
	for _, arg := range a.Command[1:] {
		args = append(args, strings.ReplaceAll(arg, "{minutes}", strconv.Itoa(minutes)))
	}

	runner := a.Runner
	if runner == nil {
		runner = func(name string, args ...string) ([]byte, error) {
			return exec.Command(name, args...).Output()
		}
	}

	out, err := runner(a.Command[0], args...)
	if err != nil {
		return nil, errors.New("audit query failed: " + err.Error())
	}

	raw := strings.Split(strings.TrimSpace(string(out)), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines, nil
}
