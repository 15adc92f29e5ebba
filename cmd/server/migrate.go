package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/category-clash/server/internal/config"
	"github.com/category-clash/server/internal/migrate"
	"github.com/category-clash/server/internal/store"
	"github.com/category-clash/server/internal/trivia"
	"github.com/jackc/pgx/v5/pgxpool"
)

// runMigrations applies the question bank schema and seeds an empty bank
// with the built-in questions.
func runMigrations(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	if cfg.Postgres.URL == "" {
		return errors.New("migrate: DATABASE_URL is not set")
	}

	log.Info("running database migrations")
	if err := migrate.Up(cfg.Postgres.URL, log); err != nil {
		return err
	}

	if !cfg.Postgres.SeedQuestions {
		return nil
	}

	db, err := pgxpool.New(ctx, cfg.Postgres.URL)
	if err != nil {
		return fmt.Errorf("migrate: pgxpool: %w", err)
	}
	defer db.Close()

	n, err := store.NewQuestionStore(db).Seed(ctx, trivia.Builtin())
	if err != nil {
		return err
	}
	log.Info("database migrations applied", "seeded", n)
	return nil
}
