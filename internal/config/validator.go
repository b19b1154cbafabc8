package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validate checks the config for:
//   - a bot token
//   - well-formed ledger and keep-alive URLs (when set)
//   - a loadable reporting time zone
//   - positive expiry delays and pool sizes
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Discord.Token == "" {
		errs = append(errs, "discord.token is required (or set "+EnvDiscordToken+")")
	}
	if cfg.Ledger.URL != "" {
		if err := checkURL(cfg.Ledger.URL); err != nil {
			errs = append(errs, fmt.Sprintf("ledger.url: %s", err))
		}
	}
	if cfg.KeepAlive.URL != "" {
		if err := checkURL(cfg.KeepAlive.URL); err != nil {
			errs = append(errs, fmt.Sprintf("keepalive.url: %s", err))
		}
	}
	if _, err := time.LoadLocation(cfg.Report.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("report.timezone %q: %s", cfg.Report.Timezone, err))
	}
	if cfg.Report.SimpleExpiryMs < 0 {
		errs = append(errs, "report.simple_expiry_ms must be positive")
	}
	if cfg.Report.SalesExpiryMs < 0 {
		errs = append(errs, "report.sales_expiry_ms must be positive")
	}
	if cfg.Dispatcher.Workers < 0 {
		errs = append(errs, "dispatcher.workers must be positive")
	}
	if cfg.Dispatcher.QueueDepth < 0 {
		errs = append(errs, "dispatcher.queue_depth must be positive")
	}
	if cfg.KeepAlive.IntervalMs < 0 {
		errs = append(errs, "keepalive.interval_ms must be positive")
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level %q must be one of debug, info, warn, error", cfg.Log.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

// ExpiryDurations returns the simple and sales confirmation lifetimes.
func (c ReportConf) ExpiryDurations() (simple, sales time.Duration) {
	return time.Duration(c.SimpleExpiryMs) * time.Millisecond, time.Duration(c.SalesExpiryMs) * time.Millisecond
}
