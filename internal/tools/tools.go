// internal/tools/tools.go

// Package tools detects developer tooling running on the host from a single
// process-table snapshot.
package tools

import (
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// signatures maps a reported tool name to the process names that imply it.
var signatures = map[string][]string{
	"docker":    {"docker", "dockerd", "com.docker.backend"},
	"node":      {"node"},
	"vscode":    {"code", "code-insiders", "Electron"},
	"intellij":  {"idea", "goland", "pycharm", "webstorm"},
	"vim":       {"vim", "nvim"},
	"emacs":     {"emacs"},
	"python":    {"python", "python3"},
	"java":      {"java"},
	"go":        {"go", "gopls"},
	"kubectl":   {"kubectl"},
	"terraform": {"terraform"},
	"postgres":  {"psql", "postgres"},
	"mysql":     {"mysql", "mysqld"},
	"redis":     {"redis-server", "redis-cli"},
	"xcode":     {"Xcode", "xcodebuild"},
	"tmux":      {"tmux"},
}

// Detector matches one process-table snapshot against known tool signatures.
type Detector struct {
	// Runner produces the process listing; nil uses `ps -axo comm`.
	Runner func() ([]byte, error)
}

// Detect returns the sorted set of matched tool names. Any failure degrades
// to an empty set; process listing is best-effort.
func (d *Detector) Detect() []string {
	runner := d.Runner
	if runner == nil {
		runner = func() ([]byte, error) {
			return exec.Command("ps", "-axo", "comm").Output()
		}
	}

	out, err := runner()
	if err != nil {
		return nil
	}

	running := make(map[string]struct{})
	for _, line := range strings.Split(string(out), "\n") {
		name := filepath.Base(strings.TrimSpace(line))
		if name != "" && name != "." {
			running[name] = struct{}{}
		}
	}

	var matched []string
	for tool, procs := range signatures {
		for _, proc := range procs {
			if _, ok := running[proc]; ok {
				matched = append(matched, tool)
				break
			}
		}
	}
	sort.Strings(matched)
	return matched
}
