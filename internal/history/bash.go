// internal/history/bash.go
package history

import (
	"bufio"
	"os"
	"strings"
	"time"
)

// defaultTail bounds how many trailing lines the mtime-gated source surfaces.
const defaultTail = 200

// BashHistory reads plain (non-timestamped) history. Individual entries carry
// no epoch, so the whole file is gated by its modification time: untouched
// since the watermark means nothing new. This source is coarse and may
// re-surface trailing lines an earlier source already counted.
type BashHistory struct {
	Path string
	// Tail limits how many trailing lines are considered. Zero uses the
	// default.
	Tail int
}

func (b *BashHistory) Name() string { return "bash-history" }

func (b *BashHistory) Collect(since, now time.Time) ([]string, error) {
	info, err := os.Stat(b.Path)
	if err != nil {
		return nil, err
	}
	if !info.ModTime().After(since) {
		return nil, nil
	}

	f, err := os.Open(b.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tail := b.Tail
	if tail <= 0 {
		tail = defaultTail
	}

	// Ring of the last `tail` lines. Bash timestamp lines (`#<epoch>` from
	// HISTTIMEFORMAT) and blanks are skipped before they count against the
	// tail window.
	lines := make([]string, 0, tail)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
			continue
		}
		if len(lines) == tail {
			copy(lines, lines[1:])
			lines = lines[:tail-1]
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}
