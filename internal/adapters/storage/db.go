package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"crm/internal/adapters/http/perf"
)

// Options configures Open.
type Options struct {
	Driver         string // "sqlite" or "postgres"
	DSN            string
	MaxOpenConns   int
	ConnectTimeout time.Duration // 0 retries until ctx is done
	SlowQueryMs    int
}

// Open connects to the configured database, retrying the initial ping with
// exponential backoff, and returns it wrapped in a TimedDB.
// PRE: opts.Driver is "sqlite" or "postgres"
// POST: returned TimedDB has answered a ping
func Open(ctx context.Context, opts Options, collector *perf.Collector) (*TimedDB, error) {
	var driverName string
	var dialect Dialect
	switch opts.Driver {
	case "sqlite", "":
		driverName, dialect = "sqlite", DialectSQLite
	case "postgres":
		driverName, dialect = "pgx", DialectPostgres
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	dsn := opts.DSN
	if dialect == DialectSQLite {
		dsn = sqliteDSN(dsn)
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", opts.Driver, err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = opts.ConnectTimeout

	err = backoff.RetryNotify(func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		return nil
	}, bo, func(err error, next time.Duration) {
		slog.Warn("db_connect_retry", "driver", opts.Driver, "error", err, "next_attempt_in", next.String())
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", opts.Driver, err)
	}

	if dialect == DialectSQLite {
		configureSQLite(db, opts.DSN, opts.MaxOpenConns)
	} else if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}

	tdb := NewTimedDB(db, dialect, collector)
	tdb.SetSlowQueryThreshold(opts.SlowQueryMs)
	slog.Info("db_connected", "driver", opts.Driver)
	return tdb, nil
}

// sqlitePragmas are applied to every pooled connection through the DSN.
const sqlitePragmas = "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"

// DefaultSQLiteConns bounds the pool for file-backed SQLite when no limit is configured.
const DefaultSQLiteConns = 25

func isMemoryDSN(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// sqliteDSN appends the connection pragmas to a file DSN unless it sets its own.
func sqliteDSN(dsn string) string {
	if isMemoryDSN(dsn) || strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + sqlitePragmas
	}
	return dsn + "?" + sqlitePragmas
}

// configureSQLite sets pool limits.
// In-memory databases are per-connection, so they get a single connection.
func configureSQLite(db *sql.DB, dsn string, maxOpen int) {
	if isMemoryDSN(dsn) {
		db.SetMaxOpenConns(1)
		return
	}
	if maxOpen <= 0 {
		maxOpen = DefaultSQLiteConns
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
}
