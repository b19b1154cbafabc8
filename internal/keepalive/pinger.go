// Package keepalive pings the bot's own public URL so free-tier hosts do not
// put it to sleep.
package keepalive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultInterval = 5 * time.Minute
	requestTimeout  = 10 * time.Second
)

type pong struct {
	Ping   string `json:"ping"`
	Uptime int64  `json:"uptime"`
}

// Pinger periodically GETs <url>/ping.
type Pinger struct {
	url      string
	interval time.Duration
	client   *http.Client
}

// New creates a Pinger for baseURL. A non-positive interval uses DefaultInterval.
func New(baseURL string, interval time.Duration) *Pinger {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Pinger{
		url:      strings.TrimRight(baseURL, "/") + "/ping",
		interval: interval,
		client:   &http.Client{Timeout: requestTimeout},
	}
}

// Run pings immediately and then every interval until ctx is done. Failures
// are logged and the loop continues.
func (p *Pinger) Run(ctx context.Context) {
	slog.Info("keep-alive started", "url", p.url, "interval", p.interval)
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		if err := p.Ping(ctx); err != nil {
			slog.Warn("keep-alive ping failed", "url", p.url, "err", err)
		}
		select {
		case <-ctx.Done():
			slog.Info("keep-alive stopped")
			return
		case <-t.C:
		}
	}
}

// Ping performs a single request.
func (p *Pinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	var body pong
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err != nil {
		return fmt.Errorf("decode pong: %w", err)
	}
	slog.Debug("keep-alive ping ok", "ping", body.Ping, "uptime", body.Uptime)
	return nil
}
