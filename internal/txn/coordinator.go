// Package txn runs units of work against a store. A unit of work is a list
// of steps sharing one store session: all of them commit together or none
// of them do
package txn

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/existflow/clientpulse/internal/apperr"
	"github.com/existflow/clientpulse/internal/logger"
	"github.com/existflow/clientpulse/internal/store"
	"github.com/existflow/clientpulse/internal/telemetry"
)

// Step is one piece of a unit of work
type Step func(ctx context.Context, tx store.Tx) error

// Policy bounds how often a conflicting unit of work is re-run
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultPolicy returns 4 attempts backing off from 25ms to 500ms
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     4,
		InitialInterval: 25 * time.Millisecond,
		MaxInterval:     500 * time.Millisecond,
	}
}

// Coordinator opens, commits and aborts store sessions on behalf of the engine
type Coordinator struct {
	store  store.Store
	policy Policy
	log    *logger.Logger
	rec    telemetry.Recorder
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithPolicy sets the retry policy
func WithPolicy(p Policy) Option {
	return func(c *Coordinator) {
		if p.MaxAttempts < 1 {
			p.MaxAttempts = 1
		}
		c.policy = p
	}
}

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// WithRecorder sets the metrics recorder
func WithRecorder(r telemetry.Recorder) Option {
	return func(c *Coordinator) { c.rec = r }
}

// New creates a Coordinator over s
func New(s store.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:  s,
		policy: DefaultPolicy(),
		log:    logger.Nop(),
		rec:    telemetry.NoOp{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the underlying store
func (c *Coordinator) Store() store.Store {
	return c.store
}

// Run executes steps in order inside one session and commits when all of
// them succeed. Domain errors are returned unchanged; any other failure
// comes back as *apperr.TransactionAbortError. Transient conflicts re-run
// the whole unit of work under the retry policy. A unit whose commit outcome
// is unknown is never re-run
func (c *Coordinator) Run(ctx context.Context, op string, steps ...Step) error {
	log := c.log.WithFields(logger.F("op", op))
	attempts := 0

	operation := func() error {
		attempts++
		err := c.attempt(ctx, log, steps)
		switch {
		case err == nil:
			return nil
		case apperr.IsDomain(err), errors.Is(err, store.ErrCommitUnknown), !c.store.Retryable(err):
			return backoff.Permanent(err)
		}
		log.Debug("unit of work conflicted, retrying", logger.F("attempt", attempts), logger.Err(err))
		return err
	}

	err := backoff.Retry(operation, backoff.WithContext(c.newBackOff(), ctx))
	c.rec.TxFinished(ctx, op, attempts, err)

	if err == nil {
		return nil
	}
	if apperr.IsDomain(err) {
		return err
	}

	var abort *apperr.TransactionAbortError
	if errors.As(err, &abort) {
		return err
	}

	log.Warn("unit of work aborted", logger.F("attempts", attempts), logger.Err(err))
	return &apperr.TransactionAbortError{Op: op, Attempts: attempts, Cause: err}
}

func (c *Coordinator) newBackOff() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.policy.InitialInterval
	exp.MaxInterval = c.policy.MaxInterval
	exp.MaxElapsedTime = 0
	return backoff.WithMaxRetries(exp, uint64(c.policy.MaxAttempts-1))
}

func (c *Coordinator) attempt(ctx context.Context, log *logger.Logger, steps []Step) (err error) {
	sess, err := c.store.Begin(ctx)
	if err != nil {
		return err
	}

	done := false
	defer func() {
		if done {
			return
		}
		// a step panicked or failed: the session must not stay open
		if aerr := sess.Abort(ctx); aerr != nil {
			log.Warn("abort failed", logger.Err(aerr))
		}
	}()

	for _, step := range steps {
		if err := step(ctx, sess); err != nil {
			return err
		}
	}

	done = true
	return sess.Commit(ctx)
}

// IsConflict reports whether err aborted because of a write conflict that
// survived every retry
func IsConflict(s store.Store, err error) bool {
	var abort *apperr.TransactionAbortError
	if !errors.As(err, &abort) || errors.Is(abort.Cause, store.ErrCommitUnknown) {
		return false
	}
	return errors.Is(abort.Cause, apperr.ErrConflict) || s.Retryable(abort.Cause)
}
