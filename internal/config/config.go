package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	NotifyLocal    = "local"
	NotifyPostgres = "postgres"
)

// Config is everything the API process needs, read once at startup.
type Config struct {
	Env         string
	Port        int
	LogLevel    slog.Level
	JWTSecret   string
	VotersLimit int

	Database Database
	Notify   Notify
	Voting   Voting
}

// Voting holds the site settings consumed by the vote manager and guardian.
type Voting struct {
	// UndoWindowMinutes bounds how long after voting a user may retract.
	// Zero disables the restriction.
	UndoWindowMinutes int
	MinTrustToFlag    int
	// AllowFlaggingStaff lets users flag comments written by staff.
	AllowFlaggingStaff bool
}

type Notify struct {
	Backend string
	Channel string
	Buffer  int
}

type Database struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN is the keyword/value connection string understood by both pgx and lib/pq.
func (d Database) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode,
	)
}

func (c Config) IsProd() bool {
	return c.Env == "production"
}

// Load reads .env when present and then builds the config from the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, applying defaults for unset keys.
func FromEnv(getenv func(string) string) (Config, error) {
	e := env{getenv: getenv}
	cfg := Config{
		Env:         e.str("APP_ENV", "development"),
		Port:        e.int("PORT", 8080),
		JWTSecret:   e.str("JWT_SECRET", ""),
		VotersLimit: e.int("VOTERS_LIMIT", 20),
		Database: Database{
			Host:     e.str("DB_HOST", "localhost"),
			Port:     e.str("DB_PORT", "5432"),
			User:     e.str("DB_USER", "postgres"),
			Password: e.str("DB_PASSWORD", ""),
			Name:     e.str("DB_NAME", "post_voting"),
			SSLMode:  e.str("DB_SSLMODE", "disable"),
		},
		Notify: Notify{
			Backend: e.str("NOTIFY_BACKEND", NotifyLocal),
			Channel: e.str("NOTIFY_CHANNEL", "post_voting"),
			Buffer:  e.int("NOTIFY_BUFFER", 256),
		},
		Voting: Voting{
			UndoWindowMinutes:  e.int("POST_VOTING_UNDO_VOTE_ACTION_WINDOW", 10),
			MinTrustToFlag:     e.int("MIN_TRUST_TO_FLAG_POST_VOTING_COMMENTS", 1),
			AllowFlaggingStaff: e.bool("ALLOW_FLAGGING_STAFF", false),
		},
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(e.str("LOG_LEVEL", "info"))); err != nil {
		e.errs = append(e.errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	if len(e.errs) > 0 {
		return Config{}, errors.Join(e.errs...)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var problems []error
	if c.Port <= 0 || c.Port > 65535 {
		problems = append(problems, fmt.Errorf("PORT out of range: %d", c.Port))
	}
	if c.IsProd() && c.JWTSecret == "" {
		problems = append(problems, errors.New("JWT_SECRET required in production"))
	}
	if c.Voting.UndoWindowMinutes < 0 {
		problems = append(problems, errors.New("POST_VOTING_UNDO_VOTE_ACTION_WINDOW must not be negative"))
	}
	if c.VotersLimit <= 0 {
		problems = append(problems, errors.New("VOTERS_LIMIT must be positive"))
	}
	if c.Notify.Buffer <= 0 {
		problems = append(problems, errors.New("NOTIFY_BUFFER must be positive"))
	}
	switch c.Notify.Backend {
	case NotifyLocal, NotifyPostgres:
	default:
		problems = append(problems, fmt.Errorf("NOTIFY_BACKEND must be %q or %q", NotifyLocal, NotifyPostgres))
	}
	return errors.Join(problems...)
}

type env struct {
	getenv func(string) string
	errs   []error
}

func (e *env) str(key, fallback string) string {
	if v := strings.TrimSpace(e.getenv(key)); v != "" {
		return v
	}
	return fallback
}

func (e *env) int(key string, fallback int) int {
	raw := strings.TrimSpace(e.getenv(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s env variable: %q", key, raw))
		return fallback
	}
	return n
}

func (e *env) bool(key string, fallback bool) bool {
	raw := strings.TrimSpace(e.getenv(key))
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s env variable: %q", key, raw))
		return fallback
	}
	return b
}
