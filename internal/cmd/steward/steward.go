// Package steward parses steward service flags and launches the service.
package steward

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/lrdigital/pmax-steward/internal/platform/cmd"
	"github.com/lrdigital/pmax-steward/internal/services/steward/app"
)

// Config holds steward command configuration.
type Config struct {
	CampaignID     string        `env:"PMAX_STEWARD_CAMPAIGN_ID" envDefault:"pmax-general"`
	DBPath         string        `env:"PMAX_STEWARD_DB_PATH" envDefault:"steward.db"`
	MetricsPath    string        `env:"PMAX_STEWARD_METRICS_PATH" envDefault:"metrics.json"`
	GuardrailsPath string        `env:"PMAX_STEWARD_GUARDRAILS_PATH"`
	PollInterval   time.Duration `env:"PMAX_STEWARD_POLL_INTERVAL" envDefault:"5m"`
	AssessInterval time.Duration `env:"PMAX_STEWARD_ASSESS_INTERVAL" envDefault:"6h"`
	RecapInterval  time.Duration `env:"PMAX_STEWARD_RECAP_INTERVAL" envDefault:"24h"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.CampaignID, "campaign", cfg.CampaignID, "The campaign id to manage")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "The SQLite database file path")
	fs.StringVar(&cfg.MetricsPath, "metrics", cfg.MetricsPath, "The metrics snapshot JSON file path")
	fs.StringVar(&cfg.GuardrailsPath, "guardrails", cfg.GuardrailsPath, "Optional guardrail limits YAML file path")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "How often to execute due changes")
	fs.DurationVar(&cfg.AssessInterval, "assess-interval", cfg.AssessInterval, "How often to assess phase progression")
	fs.DurationVar(&cfg.RecapInterval, "recap-interval", cfg.RecapInterval, "How often to send the daily recap")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the steward evaluation loop.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceSteward, func(ctx context.Context) error {
		return app.Run(ctx, app.Config{
			CampaignID:     cfg.CampaignID,
			DBPath:         cfg.DBPath,
			MetricsPath:    cfg.MetricsPath,
			GuardrailsPath: cfg.GuardrailsPath,
			PollInterval:   cfg.PollInterval,
			AssessInterval: cfg.AssessInterval,
			RecapInterval:  cfg.RecapInterval,
		})
	})
}
