// internal/transmit/client_test.go
package transmit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/protocol"
)

type fakeState struct {
	mu       sync.Mutex
	lastSend string
}

func (f *fakeState) LastSendDate() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSend
}

func (f *fakeState) SetLastSendDate(date string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSend = date
	return nil
}

type fakeArchive struct {
	mu      sync.Mutex
	reports []*protocol.DailyReport
}

func (f *fakeArchive) Store(r *protocol.DailyReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, r)
	return nil
}

func (f *fakeArchive) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reports)
}

func sampleReport() *protocol.DailyReport {
	return &protocol.DailyReport{
		DeveloperID: "dev-1",
		Hostname:    "host-1",
		Date:        "2026-02-19",
		ActiveHours: 5,
		ToolsUsed:   []string{"vim"},
	}
}

func fixedClock() func() time.Time {
	return func() time.Time {
		return time.Date(2026, 2, 19, 23, 0, 0, 0, time.UTC)
	}
}

func newTestClient(endpoint string, st *fakeState, ar *fakeArchive) *Client {
	return &Client{
		Endpoint:      endpoint,
		Token:         "test-token",
		State:         st,
		Archive:       ar,
		MaxAttempts:   4,
		RetryInterval: 10 * time.Millisecond,
		HTTP:          &http.Client{Timeout: 5 * time.Second},
		Now:           fixedClock(),
	}
}

func TestSendSuccess(t *testing.T) {
	var gotPath, gotAuth string
	var gotReport protocol.DailyReport

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReport))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	st := &fakeState{}
	ar := &fakeArchive{}
	c := newTestClient(srv.URL, st, ar)

	require.NoError(t, c.Send(context.Background(), sampleReport()))

	require.Equal(t, "/connections/dev-1/report", gotPath)
	require.Equal(t, "Bearer test-token", gotAuth)
	require.Equal(t, 5, gotReport.ActiveHours)
	require.Equal(t, "2026-02-19", st.LastSendDate())
	require.Equal(t, 1, ar.count())
}

// Two sends on the same date produce exactly one outbound POST; the second
// is a success no-op.
func TestSendDailyGate(t *testing.T) {
	var posts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, &fakeState{}, &fakeArchive{})

	require.NoError(t, c.Send(context.Background(), sampleReport()))
	require.NoError(t, c.Send(context.Background(), sampleReport()))
	require.Equal(t, 1, posts)
}

// 503 twice then 200: the client retries exactly twice with increasing
// delays and archives only after the 200.
func TestSendRetriesOn5xx(t *testing.T) {
	var mu sync.Mutex
	var attempts []time.Time

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts = append(attempts, time.Now())
		n := len(attempts)
		mu.Unlock()
		if n <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ar := &fakeArchive{}
	c := newTestClient(srv.URL, &fakeState{}, ar)
	c.RetryInterval = 20 * time.Millisecond

	require.NoError(t, c.Send(context.Background(), sampleReport()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, attempts, 3)
	// With a 20ms initial interval the jittered delays are at least 10ms,
	// then at least 15ms: the floor grows with each attempt.
	gap1 := attempts[1].Sub(attempts[0])
	gap2 := attempts[2].Sub(attempts[1])
	require.GreaterOrEqual(t, gap1, 10*time.Millisecond)
	require.GreaterOrEqual(t, gap2, 15*time.Millisecond)
	require.Equal(t, 1, ar.count())
}

func TestSendExhaustsRetries(t *testing.T) {
	var posts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	st := &fakeState{}
	ar := &fakeArchive{}
	c := newTestClient(srv.URL, st, ar)
	c.MaxAttempts = 3

	err := c.Send(context.Background(), sampleReport())
	require.Error(t, err)
	require.Equal(t, 3, posts)
	require.Empty(t, st.LastSendDate(), "failed send must not set the gate")
	require.Zero(t, ar.count(), "failed send must not archive")
}

// 401 is terminal: one attempt, no retry, error surfaced.
func TestSendClientRejectNoRetry(t *testing.T) {
	var posts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	st := &fakeState{}
	c := newTestClient(srv.URL, st, &fakeArchive{})

	err := c.Send(context.Background(), sampleReport())
	require.Error(t, err)
	require.ErrorIs(t, err, ErrRejected)
	require.Equal(t, 1, posts)
	require.Empty(t, st.LastSendDate())
}

// Mirror failures are logged and ignored; the primary send still happens.
func TestSendMirrorFailureDoesNotBlock(t *testing.T) {
	mirror := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer mirror.Close()

	var primaryPosts int
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		primaryPosts++
		w.WriteHeader(http.StatusOK)
	}))
	defer primary.Close()

	c := newTestClient(primary.URL, &fakeState{}, &fakeArchive{})
	c.Mirror = mirror.URL

	require.NoError(t, c.Send(context.Background(), sampleReport()))
	require.Equal(t, 1, primaryPosts)
}

func TestSendArchiveFailureStillSucceeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	st := &fakeState{}
	c := newTestClient(srv.URL, st, &fakeArchive{})
	c.Archive = failingArchive{}

	require.NoError(t, c.Send(context.Background(), sampleReport()))
	require.Equal(t, "2026-02-19", st.LastSendDate())
}

type failingArchive struct{}

func (failingArchive) Store(*protocol.DailyReport) error {
	return errors.New("disk full")
}
