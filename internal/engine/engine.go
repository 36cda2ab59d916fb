// Package engine keeps the denormalized aggregates of clientpulse correct.
// Every mutating operation is a single unit of work on the transaction
// coordinator: timers feed profitability and task totals, objectives and
// tasks feed client counters
package engine

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/existflow/clientpulse/internal/apperr"
	"github.com/existflow/clientpulse/internal/logger"
	"github.com/existflow/clientpulse/internal/store"
	"github.com/existflow/clientpulse/internal/telemetry"
	"github.com/existflow/clientpulse/internal/txn"
)

// Engine runs clientpulse's cross-entity operations
type Engine struct {
	coord    *txn.Coordinator
	store    store.Store
	counters Counters
	log      *logger.Logger
	rec      telemetry.Recorder
	clock    func() time.Time
	newID    func() string

	reconcileLimit int
	onClientDelete func()
}

// Option configures an Engine
type Option func(*Engine)

// WithClock replaces time.Now, for tests
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithRecorder sets the metrics recorder
func WithRecorder(r telemetry.Recorder) Option {
	return func(e *Engine) { e.rec = r }
}

// WithReconcileConcurrency bounds how many clients reconcile in parallel
func WithReconcileConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.reconcileLimit = n
		}
	}
}

// New creates an Engine running its units of work on coord
func New(coord *txn.Coordinator, opts ...Option) *Engine {
	e := &Engine{
		coord:          coord,
		store:          coord.Store(),
		log:            logger.Nop(),
		rec:            telemetry.NoOp{},
		clock:          time.Now,
		newID:          func() string { return uuid.New().String() },
		reconcileLimit: 4,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.counters = Counters{log: e.log}
	return e
}

// now returns the engine clock in UTC
func (e *Engine) now() time.Time {
	return e.clock().UTC()
}

// OnClientDelete registers a hook run after a client delete commits
func (e *Engine) OnClientDelete(fn func()) {
	e.onClientDelete = fn
}

func requireOwner(ownerID string) error {
	if strings.TrimSpace(ownerID) == "" {
		return apperr.ErrUnauthorized
	}
	return nil
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperr.Invalid(field, "required")
	}
	return nil
}

// optionalID turns an empty id into nil
func optionalID(id *string) *string {
	if id == nil || strings.TrimSpace(*id) == "" {
		return nil
	}
	v := strings.TrimSpace(*id)
	return &v
}

// Store returns the store the engine's units of work run on
func (e *Engine) Store() store.Store {
	return e.store
}
