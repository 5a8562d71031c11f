// internal/transmit/client.go

// Package transmit delivers the daily report to the collector at most once
// per calendar day, with bounded retry for transient failures and a
// write-once archive of everything that went out.
package transmit

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/protocol"
	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/snapshot"
)

// ErrRejected marks a 4xx response: the collector refused the payload and a
// retry cannot help. The fix is configuration, not time.
var ErrRejected = errors.New("collector rejected the report")

// StateStore is the slice of processing state the client needs for the
// daily gate. *state.Store satisfies it.
type StateStore interface {
	LastSendDate() string
	SetLastSendDate(date string) error
}

// Archiver persists a copy of each successfully transmitted report.
type Archiver interface {
	Store(report *protocol.DailyReport) error
}

// Client sends daily reports.
type Client struct {
	Endpoint string
	// Mirror is an optional secondary sink, attempted first and never
	// allowed to block or fail the primary send.
	Mirror string
	Token  string

	State   StateStore
	Archive Archiver

	// MaxAttempts bounds the primary delivery tries, first attempt
	// included. Zero means 4.
	MaxAttempts int
	// RetryInterval is the initial backoff delay. Zero means 2s.
	RetryInterval time.Duration

	HTTP *http.Client
	// Now is the clock for the daily gate; nil means time.Now.
	Now func() time.Time
}

// New builds a client from the configured endpoints.
func New(endpoint, mirror, token string, tlsSkipVerify bool, st StateStore, ar Archiver) *Client {
	transport := &http.Transport{}
	if tlsSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Client{
		Endpoint: endpoint,
		Mirror:   mirror,
		Token:    token,
		State:    st,
		Archive:  ar,
		HTTP: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

// Send delivers the report unless one already went out today. On success the
// last-send marker is persisted and the report archived; the live aggregate
// is untouched either way, only the rollover path resets it.
func (c *Client) Send(ctx context.Context, report *protocol.DailyReport) error {
	today := c.now().Format(snapshot.DateLayout)
	if c.State.LastSendDate() == today {
		log.Printf("report already sent for %s, skipping", today)
		return nil
	}

	c.sendMirror(ctx, report)

	if err := c.sendPrimary(ctx, report); err != nil {
		return err
	}

	if err := c.State.SetLastSendDate(today); err != nil {
		return fmt.Errorf("persist last-send marker: %w", err)
	}
	if c.Archive != nil {
		if err := c.Archive.Store(report); err != nil {
			log.Printf("WARNING: archive report for %s: %v", report.Date, err)
		}
	}
	log.Printf("report sent: date=%s active_hours=%d", report.Date, report.ActiveHours)
	return nil
}

// sendMirror fires the payload at the secondary sink and only logs failures.
func (c *Client) sendMirror(ctx context.Context, report *protocol.DailyReport) {
	if c.Mirror == "" {
		return
	}
	if err := c.post(ctx, reportURL(c.Mirror, report.DeveloperID), report); err != nil {
		log.Printf("mirror delivery failed (ignored): %v", err)
	}
}

// sendPrimary posts to the primary endpoint with exponential backoff on 5xx
// and transport errors. 4xx responses are permanent and surface immediately.
func (c *Client) sendPrimary(ctx context.Context, report *protocol.DailyReport) error {
	url := reportURL(c.Endpoint, report.DeveloperID)

	maxAttempts := c.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 4
	}
	bo := backoff.NewExponentialBackOff()
	if c.RetryInterval > 0 {
		bo.InitialInterval = c.RetryInterval
	} else {
		bo.InitialInterval = 2 * time.Second
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, c.post(ctx, url, report)
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(uint(maxAttempts)))
	return err
}

// post performs one delivery attempt and classifies the response.
func (c *Client) post(ctx context.Context, url string, report *protocol.DailyReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return backoff.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return backoff.Permanent(fmt.Errorf("%w: %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(msg))))
	default:
		return fmt.Errorf("collector returned %d", resp.StatusCode)
	}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// reportURL builds `<base>/connections/<id>/report`.
func reportURL(base, developerID string) string {
	return strings.TrimSuffix(base, "/") + "/connections/" + developerID + "/report"
}
