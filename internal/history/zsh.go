// internal/history/zsh.go
package history

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"time"
)

// ZshHistory reads zsh extended-format history, where each entry carries its
// own epoch: `: <epoch>:<elapsed>;<command>`. Entries at or below the
// watermark are dropped, which gives this source exact deduplication.
type ZshHistory struct {
	Path string
}

func (z *ZshHistory) Name() string { return "zsh-history" }

func (z *ZshHistory) Collect(since, now time.Time) ([]string, error) {
	f, err := os.Open(z.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		cmd, ts, ok := parseZshEntry(scanner.Text())
		if !ok {
			continue
		}
		if !ts.After(since) || ts.After(now) {
			continue
		}
		lines = append(lines, cmd)
	}
	return lines, scanner.Err()
}

// parseZshEntry parses one `: <epoch>:<elapsed>;<command>` line. Plain
// (non-extended) lines carry no timestamp and are skipped.
func parseZshEntry(line string) (string, time.Time, bool) {
	if !strings.HasPrefix(line, ": ") {
		return "", time.Time{}, false
	}
	rest := line[2:]
	sep := strings.Index(rest, ";")
	if sep < 0 {
		return "", time.Time{}, false
	}
	meta := rest[:sep]
	cmd := rest[sep+1:]

	colon := strings.Index(meta, ":")
	if colon < 0 {
		return "", time.Time{}, false
	}
	epoch, err := strconv.ParseInt(strings.TrimSpace(meta[:colon]), 10, 64)
	if err != nil {
		return "", time.Time{}, false
	}
	return cmd, time.Unix(epoch, 0), true
}
