package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/shiftbot/internal/action"
	"github.com/gyaneshwarpardhi/shiftbot/internal/api"
	"github.com/gyaneshwarpardhi/shiftbot/internal/config"
	"github.com/gyaneshwarpardhi/shiftbot/internal/dispatch"
	"github.com/gyaneshwarpardhi/shiftbot/internal/keepalive"
	"github.com/gyaneshwarpardhi/shiftbot/internal/ledger"
	"github.com/gyaneshwarpardhi/shiftbot/internal/mirror"
	"github.com/gyaneshwarpardhi/shiftbot/internal/platform/discord"
	"github.com/gyaneshwarpardhi/shiftbot/internal/report"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Connect to Discord and serve the status endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve() error {
	loader, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	loc, err := time.LoadLocation(cfg.Report.Timezone)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Ledger ────────────────────────────────────────────────────────────────
	ledgerClient := ledger.New(cfg.Ledger.URL)
	if !ledgerClient.Configured() {
		slog.Warn("ledger webhook not configured, events will be reported as not saved")
	}

	// ── Mirror ────────────────────────────────────────────────────────────────
	var pub dispatch.Publisher
	if len(cfg.Mirror.Brokers) > 0 {
		k := mirror.NewKafka(mirror.Config{Brokers: cfg.Mirror.Brokers, Topic: cfg.Mirror.Topic})
		defer k.Close()
		pub = k
		slog.Info("event mirror enabled", "brokers", cfg.Mirror.Brokers, "topic", cfg.Mirror.Topic)
	}

	// ── Gateway session, reporter and dispatcher ──────────────────────────────
	session, err := discord.NewSession(cfg.Discord.Token)
	if err != nil {
		return err
	}
	simpleTTL, salesTTL := cfg.Report.ExpiryDurations()
	disp := dispatch.New(ctx, dispatch.Config{
		Workers:    cfg.Dispatcher.Workers,
		QueueDepth: cfg.Dispatcher.QueueDepth,
	}, dispatch.Deps{
		Actions:  action.Default(),
		Ledger:   ledgerClient,
		Reporter: report.New(report.Config{Location: loc, SimpleTTL: simpleTTL, SalesTTL: salesTTL}),
		Direct:   discord.NewDirectMessenger(session),
		Mirror:   pub,
	})
	bot := discord.New(ctx, session, disp, discord.Options{
		Status:           cfg.Discord.Status,
		Location:         loc,
		LedgerConfigured: ledgerClient.Configured,
	})

	// ── Hot-reload watcher ────────────────────────────────────────────────────
	loader.OnChange(func(newCfg *config.Config) {
		if err := config.Validate(newCfg); err != nil {
			slog.Warn("hot-reload skipped: config invalid", "err", err)
			return
		}
		ledgerClient.SetEndpoint(newCfg.Ledger.URL)
		slog.Info("ledger endpoint reloaded", "configured", ledgerClient.Configured())
	})
	if cfgPath != "" {
		stopWatch, err := loader.Watch()
		if err != nil {
			slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
		} else {
			defer stopWatch()
		}
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewServer(bot, loc).Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		slog.Info("server starting", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	if cfg.KeepAlive.URL != "" {
		interval := time.Duration(cfg.KeepAlive.IntervalMs) * time.Millisecond
		go keepalive.New(cfg.KeepAlive.URL, interval).Run(ctx)
		slog.Info("keep-alive enabled", "url", cfg.KeepAlive.URL, "interval", interval)
	}

	if err := bot.Open(); err != nil {
		return err
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down…")

	if err := bot.Close(); err != nil {
		slog.Warn("gateway close failed", "err", err)
	}
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	disp.Shutdown()
	cancel()
	slog.Info("goodbye")
	return nil
}
