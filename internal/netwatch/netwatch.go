// internal/netwatch/netwatch.go

// Package netwatch counts newly-established connections to known developer
// services by diffing each sample against the persisted baseline, so a
// long-lived session is counted once, at its first observed sample.
package netwatch

import (
	"log"
	"os/exec"
	"strings"

	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/state"
)

// services maps remote domains to the service name reported upstream.
// Hostnames match exactly or by dot-suffix.
var services = map[string]string{
	"github.com":             "github",
	"gitlab.com":             "gitlab",
	"bitbucket.org":          "bitbucket",
	"registry.npmjs.org":     "npm",
	"npmjs.org":              "npm",
	"pypi.org":               "pypi",
	"files.pythonhosted.org": "pypi",
	"proxy.golang.org":       "gomodules",
	"crates.io":              "crates",
	"docker.io":              "docker",
	"docker.com":             "docker",
	"maven.org":              "maven",
	"anthropic.com":          "anthropic",
	"openai.com":             "openai",
	"huggingface.co":         "huggingface",
	"amazonaws.com":          "aws",
	"azure.com":              "azure",
	"googleapis.com":         "gcp",
	"slack.com":              "slack",
	"atlassian.net":          "jira",
}

// Tracker diffs established connections against the stored baseline.
type Tracker struct {
	State *state.Store
	// Runner produces the connection listing; nil uses lsof. Name
	// resolution is left on so remote hostnames can be classified.
	Runner func() ([]byte, error)
}

// Sample snapshots currently-established connections, counts the new ones
// per known service, and replaces the baseline with the snapshot. An empty
// snapshot clears the baseline. A failed snapshot contributes an empty
// result and leaves the baseline untouched so nothing is recounted later.
func (t *Tracker) Sample() map[string]int {
	runner := t.Runner
	if runner == nil {
		runner = func() ([]byte, error) {
			return exec.Command("lsof", "-P", "-iTCP", "-sTCP:ESTABLISHED").Output()
		}
	}

	out, err := runner()
	if err != nil {
		log.Printf("connection snapshot unavailable: %v", err)
		return nil
	}

	current := parseConnections(string(out))

	previous := make(map[string]struct{})
	for _, id := range t.State.Baseline() {
		previous[id] = struct{}{}
	}

	counts := make(map[string]int)
	ids := make([]string, 0, len(current))
	for id := range current {
		ids = append(ids, id)
		if _, seen := previous[id]; seen {
			continue
		}
		if service := Classify(hostOf(id)); service != "" {
			counts[service]++
		}
	}

	if err := t.State.SetBaseline(ids); err != nil {
		log.Printf("WARNING: persist connection baseline: %v", err)
	}

	if len(counts) == 0 {
		return nil
	}
	return counts
}

// parseConnections extracts `pid|remote` identifiers from lsof output.
func parseConnections(out string) map[string]struct{} {
	conns := make(map[string]struct{})
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 9 {
			continue
		}
		name := fields[8]
		arrow := strings.Index(name, "->")
		if arrow < 0 {
			continue
		}
		remote := name[arrow+2:]
		if remote == "" {
			continue
		}
		conns[fields[1]+"|"+remote] = struct{}{}
	}
	return conns
}

// hostOf strips the pid prefix and port suffix from an identifier.
func hostOf(id string) string {
	_, remote, ok := strings.Cut(id, "|")
	if !ok {
		return ""
	}
	if i := strings.LastIndex(remote, ":"); i >= 0 {
		remote = remote[:i]
	}
	return remote
}

// Classify maps a remote hostname to a known service name, or "" when the
// host is not in the service table. Matching is exact or dot-suffix.
func Classify(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return ""
	}
	for domain, service := range services {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return service
		}
	}
	return ""
}
