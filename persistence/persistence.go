// Package persistence opens the Bun database the accounts store runs on.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Options struct {
	Driver       string
	DSN          string
	MaxOpenConns int
	PingTimeout  time.Duration
	// QueryHooks are added to the database, e.g. a query logger.
	QueryHooks []bun.QueryHook
}

// Open connects to the configured database, checks it answers and returns
// a *bun.DB using the matching dialect.
func Open(ctx context.Context, opts Options) (*bun.DB, error) {
	var (
		sqldb *sql.DB
		db    *bun.DB
		err   error
	)

	switch opts.Driver {
	case DriverSQLite, "":
		sqldb, err = sql.Open(sqliteshim.ShimName, opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("persistence: open sqlite: %w", err)
		}
		// sqlite serializes writers; one connection avoids SQLITE_BUSY.
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	case DriverPostgres:
		sqldb, err = sql.Open("postgres", opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("persistence: open postgres: %w", err)
		}
		if opts.MaxOpenConns > 0 {
			sqldb.SetMaxOpenConns(opts.MaxOpenConns)
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		return nil, fmt.Errorf("persistence: unsupported driver %q", opts.Driver)
	}

	for _, hook := range opts.QueryHooks {
		db.AddQueryHook(hook)
	}

	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("persistence: ping %s: %w", opts.Driver, err)
	}
	return db, nil
}
