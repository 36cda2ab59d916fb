package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/existflow/clientpulse/internal/apperr"
	"github.com/existflow/clientpulse/internal/store"
)

type dialect struct {
	name         string
	driver       string
	numbered     bool // $1, $2 placeholders instead of ?
	singleWriter bool
	pragmas      []string
	txOptions    *sql.TxOptions
}

// libsqlAvailable is flipped by the libsql build-tagged driver file
var libsqlAvailable bool

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case "postgres", "postgresql":
		return dialect{
			name:      "postgres",
			driver:    "postgres",
			numbered:  true,
			txOptions: &sql.TxOptions{Isolation: sql.LevelSerializable},
		}, nil
	case "sqlite", "sqlite3":
		return dialect{
			name:         "sqlite",
			driver:       "sqlite",
			singleWriter: true,
			pragmas: []string{
				"PRAGMA busy_timeout = 5000",
				"PRAGMA journal_mode = WAL",
			},
		}, nil
	case "libsql":
		if !libsqlAvailable {
			return dialect{}, fmt.Errorf("libsql driver not compiled in, rebuild with -tags libsql")
		}
		return dialect{name: "libsql", driver: "libsql", singleWriter: true}, nil
	}
	return dialect{}, fmt.Errorf("unsupported sql driver %q", driver)
}

// rebind rewrites ? placeholders to $n for numbered dialects
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (d dialect) retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, apperr.ErrConflict) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return true
		}
		return false
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return false
	}

	if d.name == "libsql" {
		msg := err.Error()
		return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
	}
	return false
}

func isDuplicate(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
			return true
		}
		return code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE")
	}
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique")
}

func wrapInsert(err error, what string) error {
	if err == nil {
		return nil
	}
	if isDuplicate(err) {
		return fmt.Errorf("failed to create %s: %w", what, store.ErrDuplicate)
	}
	return fmt.Errorf("failed to create %s: %w", what, err)
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn runs queries through a dialect
type conn struct {
	q querier
	d dialect
}

func (c conn) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.q.ExecContext(ctx, c.d.rebind(query), args...)
}

func (c conn) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.q.QueryContext(ctx, c.d.rebind(query), args...)
}

func (c conn) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.q.QueryRowContext(ctx, c.d.rebind(query), args...)
}
