// internal/state/state.go

// Package state owns the agent's durable processing state: the shell-history
// watermark, the connection baseline and the last-send marker. Each value
// lives in its own file under the state directory; writes are atomic
// replaces and callers serialize through the directory lock.
package state

import (
	"bytes"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/natefinch/atomic"
)

const (
	watermarkFile = "watermark"
	baselineFile  = "baseline.json"
	lastSendFile  = "last_send"
)

// Store reads and writes the persisted processing state.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

// Dir returns the state directory.
func (s *Store) Dir() string {
	return s.dir
}

// Watermark returns the epoch below which history entries are already
// processed. A missing or corrupt file degrades to the zero time.
func (s *Store) Watermark() time.Time {
	data, err := os.ReadFile(filepath.Join(s.dir, watermarkFile))
	if os.IsNotExist(err) {
		return time.Time{}
	}
	if err != nil {
		log.Printf("WARNING: read watermark: %v", err)
		return time.Time{}
	}

	epoch, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		log.Printf("WARNING: corrupt watermark %q, starting fresh", strings.TrimSpace(string(data)))
		return time.Time{}
	}
	return time.Unix(epoch, 0)
}

// SetWatermark advances the watermark to ts. The watermark is monotonic:
// a value earlier than the stored one is ignored, which makes the write
// idempotent under repeated failures.
func (s *Store) SetWatermark(ts time.Time) error {
	if current := s.Watermark(); ts.Before(current) {
		return nil
	}
	value := strconv.FormatInt(ts.Unix(), 10)
	return atomic.WriteFile(filepath.Join(s.dir, watermarkFile), strings.NewReader(value))
}

// Baseline returns the set of connection identifiers observed at the
// previous sample. Missing or corrupt files degrade to an empty baseline.
func (s *Store) Baseline() []string {
	data, err := os.ReadFile(filepath.Join(s.dir, baselineFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		log.Printf("WARNING: read connection baseline: %v", err)
		return nil
	}

	var baseline []string
	if err := json.Unmarshal(data, &baseline); err != nil {
		log.Printf("WARNING: corrupt connection baseline, starting fresh: %v", err)
		return nil
	}
	return baseline
}

// SetBaseline replaces the stored connection baseline.
func (s *Store) SetBaseline(ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return atomic.WriteFile(filepath.Join(s.dir, baselineFile), bytes.NewReader(data))
}

// LastSendDate returns the YYYY-MM-DD date of the last successful
// transmission, or "" if none happened yet.
func (s *Store) LastSendDate() string {
	data, err := os.ReadFile(filepath.Join(s.dir, lastSendFile))
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("WARNING: read last-send marker: %v", err)
		}
		return ""
	}
	return strings.TrimSpace(string(data))
}

// SetLastSendDate records the date of a successful transmission.
func (s *Store) SetLastSendDate(date string) error {
	return atomic.WriteFile(filepath.Join(s.dir, lastSendFile), strings.NewReader(date))
}
