package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/category-clash/server/internal/app"
	"github.com/category-clash/server/internal/config"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(args) > 0 {
		switch args[0] {
		case "migrate":
			return runMigrations(ctx, cfg, log)
		case "serve":
		default:
			return fmt.Errorf("unknown command %q (want serve|migrate)", args[0])
		}
	}

	var opts app.Options
	if cfg.HTTP.StaticDir != "" {
		h, err := staticHandler(cfg.HTTP.StaticDir)
		if err != nil {
			return err
		}
		opts.Static = h
	}

	a, err := app.New(ctx, cfg, log, opts)
	if err != nil {
		return err
	}

	log.Info("server ready",
		"env", cfg.Env,
		"addr", cfg.HTTP.Addr,
		"question_source", cfg.Trivia.Source,
		"max_rounds", cfg.Game.MaxRounds,
		"win_threshold", cfg.Game.WinThreshold,
	)
	return a.Run(ctx)
}

func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel()}
	var h slog.Handler
	if cfg.Log.Format == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(h).With("service", "category-clash")
}
