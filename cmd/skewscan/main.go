// Command skewscan matches equivalent prediction markets across platforms
// and maintains the set of active price spreads between them.
//
//	skewscan -config config.toml -mode match   # one matcher pass, then exit
//	skewscan -config config.toml -mode spread  # one calculator pass, then exit
//	skewscan -config config.toml -mode serve   # API + scheduler until signalled
//	skewscan -config config.toml -mode seed -seed fixture.json
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alanyoungcy/skewscan/internal/app"
	"github.com/alanyoungcy/skewscan/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.toml", "path to the TOML configuration file")
	mode := flag.String("mode", "", "match, spread, serve or seed (overrides the config file)")
	seedFile := flag.String("seed", "", "JSON fixture for -mode seed (overrides seed_file)")
	flag.Parse()

	logger := newLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		return 1
	}
	if *mode != "" {
		cfg.Mode = *mode
	}
	if *seedFile != "" {
		cfg.SeedFile = *seedFile
	}
	logger = newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		return 1
	}

	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("skewscan exited with error", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 1
	}
	logger.Info("skewscan stopped", slog.String("mode", cfg.Mode))
	return 0
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
