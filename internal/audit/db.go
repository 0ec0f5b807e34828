// Package audit provides the request completion ledger: one row per
// finalized request recording how many files it produced, how many
// scanner errors it hit, and how long it took — an operational record
// of what the engine has processed, separate from the ephemeral event
// stream.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/qustavo/sqlhooks/v2"

	"github.com/scanforge/filescand/pkg/log"
)

var (
	connOnce sync.Once
	instance *DB
)

// DB wraps the ledger's database handle.
type DB struct {
	Handle *sqlx.DB
}

// Connect opens (once) the sqlite3 ledger database at path, applying
// query-logging hooks and running migrations to the latest version.
// Subsequent calls are no-ops.
func Connect(path string) (*DB, error) {
	var err error
	connOnce.Do(func() {
		sql.Register("sqlite3WithHooks", sqlhooks.Wrap(&sqlite3.SQLiteDriver{}, &Hooks{}))
		var handle *sqlx.DB
		handle, err = sqlx.Open("sqlite3WithHooks", fmt.Sprintf("%s?_foreign_keys=on", path))
		if err != nil {
			return
		}
		// sqlite does not handle concurrent writers well; serialize.
		handle.SetMaxOpenConns(1)
		instance = &DB{Handle: handle}
		err = migrateUp(path)
	})
	if err != nil {
		return nil, err
	}
	if instance == nil {
		return nil, fmt.Errorf("audit: connection not initialized")
	}
	return instance, nil
}

// Get returns the already-established connection, exiting the process
// via log.Fatalf if Connect was never called successfully — a
// programming error, not a
// runtime condition callers should recover from.
func Get() *DB {
	if instance == nil {
		log.Fatalf("audit: DB connection not initialized")
	}
	return instance
}

// Hooks satisfies sqlhooks.Hooks, logging query timing.
type Hooks struct{}

type beginKey struct{}

func (h *Hooks) Before(ctx context.Context, query string, args ...any) (context.Context, error) {
	log.Debugf("audit: query %s %q", query, args)
	return context.WithValue(ctx, beginKey{}, time.Now()), nil
}

func (h *Hooks) After(ctx context.Context, query string, args ...any) (context.Context, error) {
	if begin, ok := ctx.Value(beginKey{}).(time.Time); ok {
		log.Debugf("audit: took %s", time.Since(begin))
	}
	return ctx, nil
}
