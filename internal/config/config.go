package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config describes all runtime settings for the server.
// It is loaded once in main, validated and passed down explicitly.
type Config struct {
	Env string `envconfig:"APP_ENV" default:"dev"` // dev|stage|prod

	Log struct {
		Format string `envconfig:"LOG_FORMAT" default:"text"` // text|json
		Level  string `envconfig:"LOG_LEVEL" default:"info"`
	}

	HTTP struct {
		Addr              string        `envconfig:"HTTP_ADDR" default:":3001"`
		ReadHeaderTimeout time.Duration `envconfig:"HTTP_READ_HEADER_TIMEOUT" default:"5s"`
		ReadTimeout       time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"0s"`
		WriteTimeout      time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"0s"`
		IdleTimeout       time.Duration `envconfig:"HTTP_IDLE_TIMEOUT" default:"60s"`
		ShutdownTimeout   time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`

		// Empty means any origin.
		CORSOrigins []string `envconfig:"CORS_ORIGINS"`

		// Optional directory with a built frontend served at /.
		StaticDir string `envconfig:"STATIC_DIR"`
	}

	Game struct {
		TriviaTimeLimit     time.Duration `envconfig:"TRIVIA_TIME_LIMIT" default:"10s"`
		CategoryTurnTime    time.Duration `envconfig:"CATEGORY_TURN_TIME" default:"10s"`
		WinThreshold        int           `envconfig:"WIN_THRESHOLD" default:"100"`
		TriviaCorrectPoints int           `envconfig:"TRIVIA_CORRECT_POINTS" default:"15"`
		CategoryItemPoints  int           `envconfig:"CATEGORY_ITEM_POINTS" default:"5"`
		MaxRounds           int           `envconfig:"MAX_ROUNDS" default:"10"`
		ResultDelay         time.Duration `envconfig:"RESULT_DELAY" default:"3s"`
		CPUStartDelay       time.Duration `envconfig:"CPU_START_DELAY" default:"1s"`
		TickInterval        time.Duration `envconfig:"TICK_INTERVAL" default:"1s"`
	}

	Trivia struct {
		Source      string        `envconfig:"QUESTION_SOURCE" default:"opentdb"` // opentdb|postgres|fallback
		OpenTDBURL  string        `envconfig:"OPENTDB_URL" default:"https://opentdb.com/api.php"`
		MinInterval time.Duration `envconfig:"OPENTDB_MIN_INTERVAL" default:"5s"`
		Timeout     time.Duration `envconfig:"OPENTDB_TIMEOUT" default:"4s"`
		RecentSize  int           `envconfig:"RECENT_QUESTIONS" default:"64"`
	}

	Categories struct {
		File string `envconfig:"CATEGORIES_FILE"`
	}

	// Postgres is optional: without DATABASE_URL there is no question bank.
	Postgres struct {
		URL           string `envconfig:"DATABASE_URL"`
		RunMigrations bool   `envconfig:"RUN_MIGRATIONS" default:"false"`
		SeedQuestions bool   `envconfig:"SEED_QUESTIONS" default:"true"`
	}

	// Redis is optional: without REDIS_ADDR there is no question cache.
	Redis struct {
		Addr      string `envconfig:"REDIS_ADDR"`
		DB        int    `envconfig:"REDIS_DB" default:"0"`
		Password  string `envconfig:"REDIS_PASSWORD"`
		CacheSize int    `envconfig:"QUESTION_CACHE_SIZE" default:"200"`
	}
}

const (
	SourceOpenTDB  = "opentdb"
	SourcePostgres = "postgres"
	SourceFallback = "fallback"
)

func LoadFromEnv() (Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("HTTP_ADDR is empty")
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("unsupported LOG_FORMAT=%q (want text|json)", c.Log.Format)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}

	g := c.Game
	if g.TickInterval <= 0 {
		return errors.New("TICK_INTERVAL must be positive")
	}
	if g.TriviaTimeLimit < g.TickInterval || g.CategoryTurnTime < g.TickInterval {
		return errors.New("TRIVIA_TIME_LIMIT and CATEGORY_TURN_TIME must be at least one TICK_INTERVAL")
	}
	if g.WinThreshold <= 0 || g.MaxRounds <= 0 {
		return errors.New("WIN_THRESHOLD and MAX_ROUNDS must be positive")
	}
	if g.TriviaCorrectPoints < 0 || g.CategoryItemPoints < 0 {
		return errors.New("points must not be negative")
	}
	if g.ResultDelay < 0 || g.CPUStartDelay < 0 {
		return errors.New("delays must not be negative")
	}

	switch c.Trivia.Source {
	case SourceOpenTDB:
		if c.Trivia.OpenTDBURL == "" {
			return errors.New("OPENTDB_URL is empty")
		}
	case SourcePostgres:
		if c.Postgres.URL == "" {
			return errors.New("QUESTION_SOURCE=postgres needs DATABASE_URL")
		}
	case SourceFallback:
	default:
		return fmt.Errorf("unsupported QUESTION_SOURCE=%q (want opentdb|postgres|fallback)", c.Trivia.Source)
	}

	if c.Postgres.RunMigrations && c.Postgres.URL == "" {
		return errors.New("RUN_MIGRATIONS needs DATABASE_URL")
	}
	if c.Redis.Addr != "" && c.Redis.CacheSize <= 0 {
		return errors.New("QUESTION_CACHE_SIZE must be positive")
	}
	return nil
}

// LogLevel is the parsed LOG_LEVEL. Validate has already rejected bad values.
func (c Config) LogLevel() slog.Level {
	l, _ := parseLevel(c.Log.Level)
	return l
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("unsupported LOG_LEVEL=%q (want debug|info|warn|error)", s)
	}
	return l, nil
}

// Ticks converts a time limit into whole clock ticks.
func (c Config) Ticks(limit time.Duration) int {
	return int(limit / c.Game.TickInterval)
}
