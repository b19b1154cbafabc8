package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/shiftbot/internal/config"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "shiftbot",
	Short:         "Attendance and sales capture bot",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML config (optional, env vars override it)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

// loadConfig reads and validates the config, then installs the logger.
func loadConfig() (*config.Loader, *config.Config, error) {
	loader, err := config.NewLoader(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	cfg := loader.Config()
	setupLogger(cfg.Log.Level)
	return loader, cfg, nil
}

func setupLogger(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}
