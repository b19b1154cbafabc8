package config

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the file, as set by the hosting
// platform.
const (
	EnvDiscordToken = "DISCORD_TOKEN"
	EnvLedgerURL    = "GOOGLE_SHEETS_WEBHOOK_URL"
	EnvPort         = "PORT"
	EnvKeepAliveURL = "KEEPALIVE_URL"
)

// Loader reads an optional YAML config file, applies environment overrides
// and watches the file for changes.
type Loader struct {
	path     string
	getenv   func(string) string
	mu       sync.RWMutex
	current  *Config
	onChange []func(*Config)
}

// NewLoader creates a Loader and performs the initial load. An empty path
// means defaults plus environment only.
func NewLoader(path string) (*Loader, error) {
	return newLoader(path, os.Getenv)
}

func newLoader(path string, getenv func(string) string) (*Loader, error) {
	l := &Loader{path: path, getenv: getenv}
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	l.current = cfg
	return l, nil
}

// Config returns the current (latest) configuration.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers a callback invoked whenever the config reloads.
func (l *Loader) OnChange(fn func(*Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Watch starts a background goroutine that hot-reloads the config on file changes.
// Call the returned stop function to clean up.
func (l *Loader) Watch() (stop func(), err error) {
	if l.path == "" {
		return nil, fmt.Errorf("config watcher: no config file")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	if err := w.Add(l.path); err != nil {
		w.Close()
		return nil, fmt.Errorf("config watcher add %s: %w", l.path, err)
	}

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					if _, err := l.Reload(); err != nil {
						slog.Warn("config reload failed, keeping previous config", "path", l.path, "err", err)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Warn("config watcher error", "err", err)
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }, nil
}

// Reload forces an immediate re-read of the config file.
func (l *Loader) Reload() (*Config, error) {
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = cfg
	callbacks := make([]func(*Config), len(l.onChange))
	copy(callbacks, l.onChange)
	l.mu.Unlock()
	for _, fn := range callbacks {
		fn(cfg)
	}
	return cfg, nil
}

func (l *Loader) load() (*Config, error) {
	var cfg Config
	if l.path != "" {
		data, err := os.ReadFile(l.path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", l.path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", l.path, err)
		}
	}

	// Environment overrides.
	if v := l.getenv(EnvDiscordToken); v != "" {
		cfg.Discord.Token = v
	}
	if v := l.getenv(EnvLedgerURL); v != "" {
		cfg.Ledger.URL = v
	}
	if v := l.getenv(EnvPort); v != "" {
		cfg.Server.Addr = ":" + v
	}
	if v := l.getenv(EnvKeepAliveURL); v != "" {
		cfg.KeepAlive.URL = v
	}

	// Apply defaults.
	if cfg.Discord.Status == "" {
		cfg.Discord.Status = "Control de Asistencia 24/7"
	}
	if cfg.Report.Timezone == "" {
		cfg.Report.Timezone = "America/Lima"
	}
	if cfg.Report.SimpleExpiryMs == 0 {
		cfg.Report.SimpleExpiryMs = 5000
	}
	if cfg.Report.SalesExpiryMs == 0 {
		cfg.Report.SalesExpiryMs = 8000
	}
	if cfg.Dispatcher.Workers == 0 {
		cfg.Dispatcher.Workers = 32
	}
	if cfg.Dispatcher.QueueDepth == 0 {
		cfg.Dispatcher.QueueDepth = 1000
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":3000"
	}
	if cfg.KeepAlive.IntervalMs == 0 {
		cfg.KeepAlive.IntervalMs = 300000
	}
	if cfg.Mirror.Topic == "" {
		cfg.Mirror.Topic = "shift-events"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	return &cfg, nil
}
