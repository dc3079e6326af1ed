package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type Options struct {
	Driver          string
	DataSource      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	RetryAttempts   int
	RetryDelay      time.Duration
	Migrations      []string
}

type Option func(*Options)

func WithDriver(driver string) Option {
	return func(o *Options) { o.Driver = driver }
}

func WithDataSource(dsn string) Option {
	return func(o *Options) { o.DataSource = dsn }
}

func WithMaxOpenConns(count int) Option {
	return func(o *Options) { o.MaxOpenConns = count }
}

func WithMaxIdleConns(count int) Option {
	return func(o *Options) { o.MaxIdleConns = count }
}

func WithConnMaxLifetime(duration time.Duration) Option {
	return func(o *Options) { o.ConnMaxLifetime = duration }
}

func WithConnMaxIdleTime(duration time.Duration) Option {
	return func(o *Options) { o.ConnMaxIdleTime = duration }
}

func WithRetry(attempts int, delay time.Duration) Option {
	return func(o *Options) {
		o.RetryAttempts = attempts
		o.RetryDelay = delay
	}
}

// WithMigrations registers statements executed, in order, once the
// connection is up. They must be idempotent.
func WithMigrations(statements ...string) Option {
	return func(o *Options) { o.Migrations = append(o.Migrations, statements...) }
}

// New opens a connection pool, retrying with linear backoff until ctx is done
// or the attempts run out, then applies any migrations.
func New(ctx context.Context, opts ...Option) (*sql.DB, error) {
	options := &Options{
		Driver:          "sqlite3",
		DataSource:      ":memory:",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 2 * time.Minute,
		RetryAttempts:   3,
		RetryDelay:      time.Second,
	}

	for _, opt := range opts {
		opt(options)
	}

	if options.Driver == "" {
		return nil, fmt.Errorf("database driver cannot be empty")
	}
	if options.DataSource == "" {
		return nil, fmt.Errorf("database data source cannot be empty")
	}
	if options.RetryAttempts < 1 {
		options.RetryAttempts = 1
	}
	// Every connection to an in-memory SQLite database sees its own empty
	// database, so the pool is pinned to one connection.
	if isInMemory(options.DataSource) {
		options.MaxOpenConns = 1
		options.MaxIdleConns = 1
		options.ConnMaxLifetime = 0
		options.ConnMaxIdleTime = 0
	}

	if options.Driver == "sqlite3" {
		options.DataSource = sqliteDSN(options.DataSource)
	}

	db, err := connect(ctx, options)
	if err != nil {
		return nil, err
	}

	for i, stmt := range options.Migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply migration %d: %w", i+1, err)
		}
	}
	return db, nil
}

func connect(ctx context.Context, options *Options) (*sql.DB, error) {
	var err error
	for i := 0; i < options.RetryAttempts; i++ {
		var db *sql.DB
		db, err = sql.Open(options.Driver, options.DataSource)
		if err == nil {
			db.SetMaxOpenConns(options.MaxOpenConns)
			db.SetMaxIdleConns(options.MaxIdleConns)
			db.SetConnMaxLifetime(options.ConnMaxLifetime)
			db.SetConnMaxIdleTime(options.ConnMaxIdleTime)

			if err = db.PingContext(ctx); err == nil {
				return db, nil
			}
			db.Close()
		}

		if i < options.RetryAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("connect to database: %w", ctx.Err())
			case <-time.After(time.Duration(i+1) * options.RetryDelay):
			}
		}
	}

	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", options.RetryAttempts, err)
}

// sqliteParams are applied by the driver on every new connection, unlike a
// PRAGMA statement which only reaches the connection it ran on. Concurrent
// evaluations write from several connections, so writers wait on the lock
// instead of failing with SQLITE_BUSY.
var sqliteParams = []struct{ key, value string }{
	{"_busy_timeout", "5000"},
	{"_foreign_keys", "on"},
	{"_journal_mode", "WAL"},
}

// sqliteDSN adds sqliteParams the DSN does not already set. In-memory
// databases keep their default journal mode.
func sqliteDSN(dsn string) string {
	var add []string
	for _, p := range sqliteParams {
		if strings.Contains(dsn, p.key+"=") {
			continue
		}
		if p.key == "_journal_mode" && isInMemory(dsn) {
			continue
		}
		add = append(add, p.key+"="+p.value)
	}
	if len(add) == 0 {
		return dsn
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(add, "&")
}

func isInMemory(dsn string) bool {
	return strings.HasPrefix(strings.TrimPrefix(dsn, "file:"), ":memory:") || strings.Contains(dsn, "mode=memory")
}
