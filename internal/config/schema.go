package config

// Config is the top-level YAML structure.
type Config struct {
	Discord    DiscordConf    `yaml:"discord"`
	Ledger     LedgerConf     `yaml:"ledger"`
	Report     ReportConf     `yaml:"report"`
	Dispatcher DispatcherConf `yaml:"dispatcher"`
	Server     ServerConf     `yaml:"server"`
	KeepAlive  KeepAliveConf  `yaml:"keepalive"`
	Mirror     MirrorConf     `yaml:"mirror"`
	Log        LogConf        `yaml:"log"`
}

// DiscordConf holds gateway credentials.
type DiscordConf struct {
	Token  string `yaml:"token"`
	Status string `yaml:"status"`
}

// LedgerConf points at the spreadsheet webhook. An empty URL disables
// delivery without disabling the bot.
type LedgerConf struct {
	URL string `yaml:"url"`
}

// ReportConf controls how confirmations are rendered and how long they live.
type ReportConf struct {
	Timezone       string `yaml:"timezone"`
	SimpleExpiryMs int    `yaml:"simple_expiry_ms"`
	SalesExpiryMs  int    `yaml:"sales_expiry_ms"`
}

// DispatcherConf holds tunable concurrency settings.
type DispatcherConf struct {
	Workers    int `yaml:"workers"`
	QueueDepth int `yaml:"queue_depth"`
}

// ServerConf is the keep-alive/status HTTP listener.
type ServerConf struct {
	Addr string `yaml:"addr"`
}

// KeepAliveConf enables the self-ping loop when URL is set.
type KeepAliveConf struct {
	URL        string `yaml:"url"`
	IntervalMs int    `yaml:"interval_ms"`
}

// MirrorConf enables the Kafka event mirror when Brokers is non-empty.
type MirrorConf struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// LogConf selects the slog level: debug, info, warn or error.
type LogConf struct {
	Level string `yaml:"level"`
}
