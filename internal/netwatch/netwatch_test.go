// internal/netwatch/netwatch_test.go
package netwatch

import (
	"errors"
	"testing"

	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/state"
)

const lsofHeader = "COMMAND   PID  USER   FD   TYPE DEVICE SIZE/OFF NODE NAME\n"

func lsofLine(pid, local, remote string) string {
	return "git     " + pid + "  dev    5u  IPv4 0x1      0t0  TCP " + local + "->" + remote + " (ESTABLISHED)\n"
}

func newTracker(t *testing.T, output string, err error) *Tracker {
	t.Helper()
	store, serr := state.NewStore(t.TempDir())
	if serr != nil {
		t.Fatalf("NewStore error: %v", serr)
	}
	return &Tracker{
		State:  store,
		Runner: func() ([]byte, error) { return []byte(output), err },
	}
}

func TestSampleCountsNewConnections(t *testing.T) {
	out := lsofHeader +
		lsofLine("100", "10.0.0.5:54321", "github.com:443") +
		lsofLine("200", "10.0.0.5:54322", "lb-140-82-121-4-fra.github.com:443") +
		lsofLine("300", "10.0.0.5:54323", "unknown.example.net:443")

	tr := newTracker(t, out, nil)
	counts := tr.Sample()

	if counts["github"] != 2 {
		t.Errorf("counts[github] = %d, want 2", counts["github"])
	}
	if len(counts) != 1 {
		t.Errorf("counts = %v, want only github", counts)
	}
}

func TestSampleDiffAgainstBaseline(t *testing.T) {
	out := lsofHeader + lsofLine("100", "10.0.0.5:54321", "github.com:443")

	tr := newTracker(t, out, nil)

	// First sample counts the connection.
	if counts := tr.Sample(); counts["github"] != 1 {
		t.Fatalf("first sample = %v, want github:1", counts)
	}
	// Second sample with identical connections counts nothing.
	if counts := tr.Sample(); len(counts) != 0 {
		t.Errorf("second sample = %v, want empty", counts)
	}
}

func TestSampleEmptySnapshotClearsBaseline(t *testing.T) {
	out := lsofHeader + lsofLine("100", "10.0.0.5:54321", "github.com:443")
	store, err := state.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}

	tr := &Tracker{State: store, Runner: func() ([]byte, error) { return []byte(out), nil }}
	tr.Sample()

	// Connection goes away entirely.
	tr.Runner = func() ([]byte, error) { return []byte(lsofHeader), nil }
	if counts := tr.Sample(); len(counts) != 0 {
		t.Errorf("empty snapshot sample = %v, want empty", counts)
	}
	if b := store.Baseline(); len(b) != 0 {
		t.Errorf("baseline = %v, want cleared", b)
	}

	// Connection reappears: counted again as a genuinely new establishment.
	tr.Runner = func() ([]byte, error) { return []byte(out), nil }
	if counts := tr.Sample(); counts["github"] != 1 {
		t.Errorf("reappearing connection = %v, want github:1", counts)
	}
}

func TestSampleFailureLeavesBaseline(t *testing.T) {
	out := lsofHeader + lsofLine("100", "10.0.0.5:54321", "github.com:443")
	store, err := state.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}

	tr := &Tracker{State: store, Runner: func() ([]byte, error) { return []byte(out), nil }}
	tr.Sample()

	tr.Runner = func() ([]byte, error) { return nil, errors.New("lsof missing") }
	if counts := tr.Sample(); counts != nil {
		t.Errorf("failed sample = %v, want nil", counts)
	}

	// Baseline untouched: the surviving connection is not recounted.
	tr.Runner = func() ([]byte, error) { return []byte(out), nil }
	if counts := tr.Sample(); len(counts) != 0 {
		t.Errorf("post-failure sample = %v, want empty", counts)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"github.com", "github"},
		{"api.github.com", "github"},
		{"GITHUB.COM", "github"},
		{"registry.npmjs.org", "npm"},
		{"s3.eu-west-1.amazonaws.com", "aws"},
		{"notgithub.com", ""},
		{"example.org", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Classify(tt.host); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.host, got, tt.want)
		}
	}
}
