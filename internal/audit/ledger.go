package audit

import (
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/scanforge/filescand/pkg/log"
)

// Completion is one finished request, recorded after the worker calls
// Finalize on it.
type Completion struct {
	RootPointer       string
	FileCount         int
	ScannerErrorCount int
	Duration          time.Duration
	CompletedAt       time.Time
}

// Ledger records request completions. It is safe for concurrent use
// across worker goroutines; sqlite serializes writes itself via the
// single-connection pool set up in Connect.
type Ledger struct {
	db *sqlx.DB
}

// NewLedger wraps an established DB connection.
func NewLedger(db *DB) *Ledger {
	return &Ledger{db: db.Handle}
}

// Record inserts one completion row.
func (l *Ledger) Record(c Completion) error {
	stmt := sq.Insert("request_audit").
		Columns("root_pointer", "file_count", "scanner_error_count", "duration_ms", "completed_at").
		Values(c.RootPointer, c.FileCount, c.ScannerErrorCount, c.Duration.Milliseconds(), c.CompletedAt)

	_, err := stmt.RunWith(l.db).Exec()
	if err != nil {
		log.Warnf("audit: recording completion for %s failed: %v", c.RootPointer, err)
	}
	return err
}

// CountSince reports how many requests have completed at or after
// since.
func (l *Ledger) CountSince(since time.Time) (int, error) {
	var n int
	row := sq.Select("COUNT(*)").
		From("request_audit").
		Where(sq.GtOrEq{"completed_at": since}).
		RunWith(l.db).
		QueryRow()
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
