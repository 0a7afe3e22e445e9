// Package strat implements the agent stratigraphy store: a single-file
// SQLite database (agents, notes, handoffs) with goose-managed embedded
// migrations, matching the connection/pragma discipline of dotcommander-
// vybe's internal/store package.
package strat

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"fleetd/internal/ferrors"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const defaultBusyTimeoutMS = 5000

// Open opens the stratigraphy database at dbPath, configures pragmas, and
// applies every pending migration idempotently.
func Open(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, ferrors.Wrap(ferrors.Internal, err, "create stratigraphy directory")
	}

	db, err := sql.Open("sqlite", normalizeDSN(dbPath))
	if err != nil {
		return nil, ferrors.Wrap(ferrors.CorruptStore, err, "open stratigraphy database")
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busyTimeout := defaultBusyTimeoutMS
	if v := os.Getenv("FLEETD_BUSY_TIMEOUT_MS"); v != "" {
		if parsed, parseErr := strconv.Atoi(v); parseErr == nil && parsed > 0 {
			busyTimeout = parsed
		}
	}

	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout),
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA journal_mode=WAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if execErr := RetryWithBackoff(context.Background(), func() error {
			_, err := db.ExecContext(context.Background(), pragma)
			return err
		}); execErr != nil {
			_ = db.Close()
			return nil, ferrors.Wrap(ferrors.CorruptStore, execErr, "set pragma %q", pragma)
		}
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, ferrors.Wrap(ferrors.CorruptStore, err, "migrate stratigraphy database")
	}

	return db, nil
}

// migrate runs every pending migration. Idempotent: running it twice
// against the same database leaves the same schema and records each
// migration once in goose_db_version, beside the version-0 row goose
// writes when it creates that table.
func migrate(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetVerbose(false)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.Up(db, "migrations")
}

func normalizeDSN(dbPath string) string {
	if strings.HasPrefix(dbPath, "file:") {
		if strings.Contains(dbPath, ":memory:") || strings.Contains(dbPath, "_txlock=") {
			return dbPath
		}
		if strings.Contains(dbPath, "?") {
			return dbPath + "&_txlock=immediate"
		}
		return dbPath + "?_txlock=immediate"
	}
	if dbPath == ":memory:" {
		return "file::memory:?cache=shared"
	}
	return "file:" + dbPath + "?mode=rwc&_txlock=immediate"
}

// RetryWithBackoff retries operation on transient SQLITE_BUSY/locked
// errors with a bounded exponential backoff.
func RetryWithBackoff(ctx context.Context, operation func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 5 * time.Second

	return backoff.Retry(func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		err := operation()
		if err == nil {
			return nil
		}
		if isRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(b, ctx))
}

func isRetryable(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
