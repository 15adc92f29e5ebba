package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/category-clash/server/internal/category"
	"github.com/category-clash/server/internal/config"
	"github.com/category-clash/server/internal/game"
	"github.com/category-clash/server/internal/httpapi"
	"github.com/category-clash/server/internal/migrate"
	"github.com/category-clash/server/internal/store"
	"github.com/category-clash/server/internal/trivia"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const pingTimeout = 10 * time.Second

type App struct {
	cfg config.Config
	log *slog.Logger

	db  *pgxpool.Pool
	rdb *redis.Client

	hub    *game.Hub
	cancel context.CancelFunc
	srv    *http.Server
}

type Options struct {
	Static http.Handler // optional; if nil, no frontend is served
}

func New(ctx context.Context, cfg config.Config, log *slog.Logger, opts Options) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	a := &App{cfg: cfg, log: log}

	if err := a.connect(ctx); err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}

	questions, err := a.questionProvider(ctx)
	if err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}

	oracle, err := category.Load(cfg.Categories.File)
	if err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}

	gameCfg := GameConfig(cfg)
	engine := game.NewEngine(gameCfg.Rules, oracle)
	registry := game.NewRegistry(gameCfg.Rules.MaxRounds, gameCfg.TickInterval, game.NewCPUFactory(oracle))

	// The hub outlives the request contexts; it is stopped from Run/Close.
	hubCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.hub = game.NewHub(hubCtx, gameCfg, registry, engine, questions, log.With("component", "hub"))
	gameSrv := game.NewServer(a.hub, cfg.HTTP.CORSOrigins, log.With("component", "ws"))

	api := &httpapi.Handler{Rooms: registry, Categories: oracle}

	mux := http.NewServeMux()
	gameSrv.RegisterRoutes(mux)
	api.RegisterRoutes(mux)
	if opts.Static != nil {
		mux.Handle("/", opts.Static)
	}

	a.srv = &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpapi.CORS(cfg.HTTP.CORSOrigins)(mux),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}
	return a, nil
}

// GameConfig maps the flat env settings onto the hub and rule settings.
func GameConfig(cfg config.Config) game.Config {
	g := cfg.Game
	return game.Config{
		Rules: game.Rules{
			WinThreshold:        g.WinThreshold,
			TriviaCorrectPoints: g.TriviaCorrectPoints,
			CategoryItemPoints:  g.CategoryItemPoints,
			MaxRounds:           g.MaxRounds,
			TriviaSeconds:       cfg.Ticks(g.TriviaTimeLimit),
			CategoryTurnSeconds: cfg.Ticks(g.CategoryTurnTime),
		},
		TickInterval:  g.TickInterval,
		ResultDelay:   g.ResultDelay,
		CPUStartDelay: g.CPUStartDelay,
	}
}

// connect opens the optional Postgres pool and Redis client and fails fast
// when a configured backend is unreachable.
func (a *App) connect(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if url := a.cfg.Postgres.URL; url != "" {
		if a.cfg.Postgres.RunMigrations {
			if err := migrate.Up(url, a.log); err != nil {
				return err
			}
		}

		dbpool, err := pgxpool.New(ctx, url)
		if err != nil {
			return fmt.Errorf("pgxpool: %w", err)
		}
		a.db = dbpool
		if err := dbpool.Ping(pingCtx); err != nil {
			return fmt.Errorf("postgres ping: %w", err)
		}
	}

	if addr := a.cfg.Redis.Addr; addr != "" {
		a.rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			DB:       a.cfg.Redis.DB,
			Password: a.cfg.Redis.Password,
		})
		if err := a.rdb.Ping(pingCtx).Err(); err != nil {
			return fmt.Errorf("redis ping (%s db=%d): %w", addr, a.cfg.Redis.DB, err)
		}
	}
	return nil
}

func (a *App) questionProvider(ctx context.Context) (*trivia.Provider, error) {
	var primary trivia.Source
	switch a.cfg.Trivia.Source {
	case config.SourceOpenTDB:
		primary = trivia.NewOpenTDB(a.cfg.Trivia.OpenTDBURL, a.cfg.Trivia.MinInterval, a.cfg.Trivia.Timeout)
	case config.SourcePostgres:
		bank := store.NewQuestionStore(a.db)
		if a.cfg.Postgres.SeedQuestions {
			n, err := bank.Seed(ctx, trivia.Builtin())
			if err != nil {
				return nil, err
			}
			if n > 0 {
				a.log.Info("question bank seeded", "questions", n)
			}
		}
		primary = bank
	}

	opts := []trivia.Option{trivia.WithLogger(a.log.With("component", "trivia"))}
	if a.rdb != nil {
		opts = append(opts, trivia.WithCache(trivia.NewRedisCache(a.rdb, a.cfg.Redis.CacheSize)))
	}

	p, err := trivia.NewProvider(primary, a.cfg.Trivia.RecentSize, opts...)
	if err != nil {
		return nil, fmt.Errorf("question provider: %w", err)
	}
	a.log.Info("question source ready", "source", a.cfg.Trivia.Source, "cache", a.rdb != nil)
	return p, nil
}

func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	a.log.Info("http server starting", "addr", a.cfg.HTTP.Addr)

	g.Go(func() error {
		err := a.srv.ListenAndServe()
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		a.log.Info("http server shutting down")
		_ = a.srv.Shutdown(shutdownCtx)
		return nil
	})

	err := g.Wait()
	_ = a.Close(context.Background())
	return err
}

// Close stops all running games and releases backends. Safe to call twice.
func (a *App) Close(ctx context.Context) error {
	if a.hub != nil {
		a.hub.Close()
		a.hub = nil
	}
	if a.cancel != nil {
		a.cancel()
	}
	if a.db != nil {
		a.db.Close()
		a.db = nil
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
		a.rdb = nil
	}
	return nil
}
