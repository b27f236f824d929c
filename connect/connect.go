// Package connect opens a rods Session from a driver name and DSN, with the
// common database/sql drivers registered.
//
// Supported drivers:
//   - sqlite3: github.com/mattn/go-sqlite3 (cgo)
//   - sqlite: modernc.org/sqlite (pure Go)
//   - postgres: github.com/lib/pq
//   - pgx: github.com/jackc/pgx/v5/stdlib
//   - mysql: github.com/go-sql-driver/mysql
package connect

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/arllen133/rods"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Config describes how to reach the database and how the mapper behaves.
type Config struct {
	Driver string
	DSN    string

	// IDField is the mapper-wide identifier column. Empty means "id".
	IDField string

	// LogQueries logs every statement at debug level.
	LogQueries bool

	// SlowQuery is the duration above which statements are logged as slow.
	// Zero keeps the session default.
	SlowQuery time.Duration

	Logger *slog.Logger
}

// Environment variables read by FromEnv.
const (
	EnvDriver     = "RODS_DRIVER"
	EnvDSN        = "RODS_DSN"
	EnvIDField    = "RODS_ID_FIELD"
	EnvLogQueries = "RODS_LOG_QUERIES"
	EnvSlowQuery  = "RODS_SLOW_QUERY"
)

// FromEnv reads a Config from the environment, defaulting to an in-memory
// SQLite database.
func FromEnv() (Config, error) {
	cfg := Config{
		Driver:  os.Getenv(EnvDriver),
		DSN:     os.Getenv(EnvDSN),
		IDField: os.Getenv(EnvIDField),
	}
	if cfg.Driver == "" {
		cfg.Driver = "sqlite3"
		if cfg.DSN == "" {
			cfg.DSN = ":memory:"
		}
	}
	if v := os.Getenv(EnvLogQueries); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("connect: %s: %w", EnvLogQueries, err)
		}
		cfg.LogQueries = b
	}
	if v := os.Getenv(EnvSlowQuery); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("connect: %s: %w", EnvSlowQuery, err)
		}
		cfg.SlowQuery = d
	}
	return cfg, nil
}

// SessionOptions translates the config into session options.
func (c Config) SessionOptions() []rods.SessionOption {
	var opts []rods.SessionOption
	if c.Logger != nil {
		opts = append(opts, rods.WithLogger(c.Logger))
	}
	if c.LogQueries {
		opts = append(opts, rods.WithQueryLogging(true))
	}
	if c.SlowQuery > 0 {
		opts = append(opts, rods.WithSlowQueryThreshold(c.SlowQuery))
	}
	return opts
}

// MapperOptions translates the config into mapper options.
func (c Config) MapperOptions() []rods.MapperOption {
	var opts []rods.MapperOption
	if c.IDField != "" {
		opts = append(opts, rods.WithDefaultIDField(c.IDField))
	}
	if c.Logger != nil {
		opts = append(opts, rods.WithMapperLogger(c.Logger))
	}
	return opts
}

// Open connects, pings and returns a Session for cfg. Extra options are
// applied after the ones derived from cfg.
func Open(ctx context.Context, cfg Config, opts ...rods.SessionOption) (*rods.Session, error) {
	if cfg.Driver == "" {
		return nil, fmt.Errorf("connect: driver is required")
	}
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect: open %s: %w", cfg.Driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect: ping %s: %w", cfg.Driver, err)
	}
	if isSQLite(cfg.Driver) && isMemory(cfg.DSN) {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}
	return rods.NewSession(db, rods.DialectFor(cfg.Driver), append(cfg.SessionOptions(), opts...)...), nil
}

// OpenMapper opens a Session and wraps it in a Mapper.
func OpenMapper(ctx context.Context, cfg Config, opts ...rods.MapperOption) (*rods.Mapper, *rods.Session, error) {
	sess, err := Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return rods.New(sess, append(cfg.MapperOptions(), opts...)...), sess, nil
}

func isSQLite(driver string) bool {
	return driver == "sqlite3" || driver == "sqlite"
}

func isMemory(dsn string) bool {
	return dsn == ":memory:" || dsn == "" || dsn == "file::memory:"
}
