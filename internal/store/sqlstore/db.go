// Package sqlstore implements the store ports on database/sql. The same
// queries run on Postgres (lib/pq), SQLite (modernc.org/sqlite) and, when
// built with the libsql tag, Turso's libsql driver
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/existflow/clientpulse/internal/store"
)

// DB implements store.Store on a *sql.DB
type DB struct {
	db      *sql.DB
	dialect dialect
}

var _ store.Store = (*DB)(nil)

// Open opens the database for the given driver name: "postgres", "sqlite"
// or "libsql"
func Open(driver, dsn string) (*DB, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}

	if d.name == "sqlite" {
		if err := ensureDir(dsn); err != nil {
			return nil, err
		}
	}

	sqlDB, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if d.singleWriter {
		// SQLite allows one writer; a single pooled connection makes
		// concurrent units of work queue instead of failing with BUSY
		sqlDB.SetMaxOpenConns(1)
		for _, pragma := range d.pragmas {
			if _, err := sqlDB.Exec(pragma); err != nil {
				_ = sqlDB.Close()
				return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
			}
		}
	}

	return &DB{db: sqlDB, dialect: d}, nil
}

// New wraps an already opened connection
func New(sqlDB *sql.DB, driver string) (*DB, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	return &DB{db: sqlDB, dialect: d}, nil
}

func ensureDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" || strings.HasPrefix(path, ":memory:") {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	return nil
}

// SQL returns the underlying connection pool
func (d *DB) SQL() *sql.DB {
	return d.db
}

// Begin opens a transaction at the dialect's isolation level
func (d *DB) Begin(ctx context.Context) (store.Session, error) {
	tx, err := d.db.BeginTx(ctx, d.dialect.txOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &session{tx: tx, repos: newRepos(conn{q: tx, d: d.dialect})}, nil
}

// Reader returns repositories bound to the pool, outside any transaction
func (d *DB) Reader() store.Tx {
	return newRepos(conn{q: d.db, d: d.dialect})
}

// Accounts returns the owner and session repository
func (d *DB) Accounts() store.AccountRepository {
	return &accountRepository{c: conn{q: d.db, d: d.dialect}}
}

// Retryable reports transient serialization or locking failures
func (d *DB) Retryable(err error) bool {
	return d.dialect.retryable(err)
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

type session struct {
	tx *sql.Tx
	*repos
}

func (s *session) Commit(ctx context.Context) error {
	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func (s *session) Abort(ctx context.Context) error {
	if err := s.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("failed to rollback: %w", err)
	}
	return nil
}

type repos struct {
	timers        *timerRepository
	clients       *clientRepository
	tasks         *taskRepository
	objectives    *objectiveRepository
	profitability *profitabilityRepository
}

func newRepos(c conn) *repos {
	return &repos{
		timers:        &timerRepository{c: c},
		clients:       &clientRepository{c: c},
		tasks:         &taskRepository{c: c},
		objectives:    &objectiveRepository{c: c},
		profitability: &profitabilityRepository{c: c},
	}
}

func (r *repos) Timers() store.TimerRepository                { return r.timers }
func (r *repos) Clients() store.ClientRepository              { return r.clients }
func (r *repos) Tasks() store.TaskRepository                  { return r.tasks }
func (r *repos) Objectives() store.ObjectiveRepository        { return r.objectives }
func (r *repos) Profitability() store.ProfitabilityRepository { return r.profitability }
