package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/loqalabs/loqa-rhvoice/internal/config"
	"github.com/loqalabs/loqa-rhvoice/internal/runtime"
)

var version = "0.1.0-dev"

func main() {
	var (
		configPath  string
		envFile     string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "rhvoice.yaml", "Path to configuration file")
	flag.StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before the environment overrides")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		return
	}

	bootstrap := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if err := config.LoadDotEnv(envFile); err != nil {
		bootstrap.Error("failed to load env file", slog.String("path", envFile), slog.String("error", err.Error()))
		os.Exit(1)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		bootstrap.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Telemetry.LogLevel)}))
	logger = logger.With(slog.String("runtime", cfg.RuntimeName), slog.String("version", version))

	rt := runtime.New(cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rt.Start(ctx); err != nil {
		logger.Error("runtime exited with error", slog.String("error", err.Error()))
		time.Sleep(1 * time.Second)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
