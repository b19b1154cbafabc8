// Package ledger posts shift events to the spreadsheet-backed ledger webhook.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gyaneshwarpardhi/shiftbot/internal/event"
	"github.com/gyaneshwarpardhi/shiftbot/internal/metrics"
)

// DefaultTimeout bounds a single delivery from request start.
const DefaultTimeout = 8 * time.Second

const (
	successToken = "success"
	maxBodyBytes = 1 << 20
)

// Reason classifies why a delivery failed.
type Reason string

const (
	ReasonUnconfigured Reason = "unconfigured"
	ReasonTimeout      Reason = "timeout"
	ReasonTransport    Reason = "transport"
	ReasonStatus       Reason = "status"
	ReasonBody         Reason = "body"
	ReasonRejected     Reason = "rejected"
	ReasonEncode       Reason = "encode"
)

// DeliveryError is returned for every delivery that did not end with the
// ledger's success token.
type DeliveryError struct {
	Reason Reason
	Status int
	Err    error
}

func (e *DeliveryError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("ledger delivery %s: %v", e.Reason, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("ledger delivery %s: HTTP %d", e.Reason, e.Status)
	default:
		return fmt.Sprintf("ledger delivery %s", e.Reason)
	}
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Result is the outcome of one delivery attempt.
type Result struct {
	Delivered bool
	Record    Record
	Duration  time.Duration
}

type response struct {
	Result string `json:"result"`
}

// Client delivers events to the ledger. It never retries.
type Client struct {
	endpoint atomic.Pointer[string]
	http     *http.Client
	timeout  time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// New creates a Client. An empty endpoint leaves the client unconfigured.
func New(endpoint string, opts ...Option) *Client {
	c := &Client{http: &http.Client{}, timeout: DefaultTimeout}
	for _, o := range opts {
		o(c)
	}
	c.SetEndpoint(endpoint)
	return c
}

// SetEndpoint swaps the ledger URL (used on config hot-reload).
func (c *Client) SetEndpoint(endpoint string) {
	c.endpoint.Store(&endpoint)
}

// Configured reports whether a ledger URL is set.
func (c *Client) Configured() bool {
	return *c.endpoint.Load() != ""
}

// Deliver posts ev once. The returned error is always a *DeliveryError and
// is non-nil exactly when Result.Delivered is false.
func (c *Client) Deliver(ctx context.Context, ev *event.Event) (Result, error) {
	rec := NewRecord(ev)
	res := Result{Record: rec}

	endpoint := *c.endpoint.Load()
	if endpoint == "" {
		slog.Warn("ledger URL not configured, skipping delivery", "event_id", ev.ID, "action", rec.Action)
		return res, c.fail(ev, &DeliveryError{Reason: ReasonUnconfigured})
	}

	body, err := json.Marshal(rec)
	if err != nil {
		return res, c.fail(ev, &DeliveryError{Reason: ReasonEncode, Err: err})
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	slog.Info("sending event to ledger", "event_id", ev.ID, "user", rec.User, "action", rec.Action)
	derr := c.post(ctx, endpoint, body)
	res.Duration = time.Since(start)
	metrics.LedgerDuration.Observe(float64(res.Duration.Milliseconds()))

	if derr != nil {
		slog.Error("ledger delivery failed", "event_id", ev.ID, "action", rec.Action, "err", derr)
		return res, c.fail(ev, derr)
	}

	res.Delivered = true
	metrics.LedgerDeliveries.WithLabelValues(string(ev.Kind), "delivered").Inc()
	slog.Info("ledger updated", "event_id", ev.ID, "user", rec.User, "action", rec.Action, "duration", res.Duration)
	return res, nil
}

func (c *Client) post(ctx context.Context, endpoint string, body []byte) *DeliveryError {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{Reason: ReasonTransport, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransport(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &DeliveryError{Reason: ReasonStatus, Status: resp.StatusCode}
	}

	var out response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&out); err != nil {
		if ctx.Err() != nil {
			return classifyTransport(ctx, err)
		}
		return &DeliveryError{Reason: ReasonBody, Status: resp.StatusCode, Err: err}
	}
	if out.Result != successToken {
		return &DeliveryError{Reason: ReasonRejected, Status: resp.StatusCode, Err: fmt.Errorf("result %q", out.Result)}
	}
	return nil
}

func classifyTransport(ctx context.Context, err error) *DeliveryError {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &DeliveryError{Reason: ReasonTimeout, Err: err}
	}
	return &DeliveryError{Reason: ReasonTransport, Err: err}
}

func (c *Client) fail(ev *event.Event, err *DeliveryError) error {
	metrics.LedgerDeliveries.WithLabelValues(string(ev.Kind), string(err.Reason)).Inc()
	return err
}
