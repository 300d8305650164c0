// Package main provides the entry point for the check-in assistant.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/oklog/ulid/v2"

	"github.com/anyrouter/checkin/internal/balance"
	"github.com/anyrouter/checkin/internal/browser"
	"github.com/anyrouter/checkin/internal/checkin"
	"github.com/anyrouter/checkin/internal/config"
	"github.com/anyrouter/checkin/internal/cookiecache"
	"github.com/anyrouter/checkin/internal/cookies"
	"github.com/anyrouter/checkin/internal/logging"
	"github.com/anyrouter/checkin/internal/notify"
	"github.com/anyrouter/checkin/internal/run"
	"github.com/anyrouter/checkin/internal/version"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	// .env is optional; deployments usually set environment variables directly.
	_ = godotenv.Load()

	// Initialize logger using slog-logfilter (respects LOG_LEVEL, LOG_FORMAT env vars)
	logger := logging.SetDefault()

	cfg := config.Load()
	logging.SetLevel(logging.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithRunID(ctx, ulid.Make().String())
	logger = logging.FromContext(ctx, logger)

	logger.InfoContext(ctx, "check-in assistant starting",
		"version", version.Get().Version,
		"max_retries", cfg.MaxRetries,
	)

	providers, err := config.LoadProviders(cfg.ProvidersFile)
	if err != nil {
		logger.ErrorContext(ctx, "failed to load provider configuration", "error", err)
		return 1
	}

	accounts, err := config.LoadAccounts()
	if err != nil {
		logger.ErrorContext(ctx, "failed to load account configuration", "error", err)
		return 1
	}

	var source cookies.WAFCookieSource = browser.New(cfg, logger)
	if cfg.WAFCookieCache != "" {
		store, err := cookiecache.NewStore(cfg.WAFCookieCache, cfg.WAFCookieTTL, logger)
		if err != nil {
			logger.Warn("cookie cache unavailable, continuing without it", "error", err)
		} else {
			defer store.Close()
			source = cookiecache.NewCachedSource(store, source, logger)
		}
	}

	runner := checkin.NewRunner(cfg, providers, source, logger)
	tracker := balance.NewTracker(cfg.BalanceHashFile, logger)
	kit := notify.NewKit(cfg.Notify, logger)

	aggregator := run.NewAggregator(cfg, runner, tracker, kit, logger)
	summary := aggregator.Execute(ctx, accounts)

	logger.InfoContext(ctx, "check-in assistant finished",
		"total", summary.Total(),
		"success", summary.SuccessCount,
		"failed", summary.FailedCount,
		"notified", summary.Notified,
	)

	return summary.ExitCode()
}
