package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/masmetrics/spendguard/internal/config"
	"github.com/masmetrics/spendguard/pkg/alerts"
	"github.com/masmetrics/spendguard/pkg/guardrail"
	"github.com/masmetrics/spendguard/pkg/pricing"
	"github.com/masmetrics/spendguard/pkg/storage"
)

// Version is set at build time via ldflags.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "spendguard",
	Short: "Spend Guard - budget guardrails and cost forecasting for multi-agent workflows",
	Long: `Spend Guard tracks the monetary cost of multi-agent AI workflows, forecasts
cost before execution, and enforces per-customer budget policies at runtime.
Every prospective execution gets a PASS, WARN, or BLOCK verdict based on
historical spend, the configured budget, and recent spend velocity.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.spendguard/config.yaml)")
}

// loadConfig loads the configuration.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// newLogger creates a structured logger from config.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}

// initStore opens the SQLite-backed ledger and policy store.
func initStore(cfg *config.Config) (storage.Store, error) {
	return storage.NewSQLite(cfg.Storage.Path)
}

// initPricing loads the model pricing table from config, falling back to
// the built-in table.
func initPricing(cfg *config.Config) (*pricing.Table, error) {
	if cfg.Pricing.Path == "" {
		return pricing.Default(), nil
	}
	return pricing.LoadFile(cfg.Pricing.Path)
}

// initNotifiers creates alert notifiers from config.
func initNotifiers(cfg *config.Config) []alerts.Notifier {
	var notifiers []alerts.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alerts.NewSlackNotifier(
			cfg.Alerts.Slack.WebhookURL,
			cfg.Alerts.Slack.Channel,
		))
	}

	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alerts.NewWebhookNotifier(
			cfg.Alerts.Webhook.URL,
			cfg.Alerts.Webhook.Secret,
		))
	}

	return notifiers
}

// initEvaluator wires a guardrail evaluator from config.
func initEvaluator(cfg *config.Config, store storage.Store, logger *slog.Logger) *guardrail.Evaluator {
	return guardrail.NewEvaluator(store, store, logger,
		guardrail.WithFailMode(guardrail.FailMode(cfg.Guardrail.FailMode)),
		guardrail.WithNotifiers(initNotifiers(cfg)),
	)
}
