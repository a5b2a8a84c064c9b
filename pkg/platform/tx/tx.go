// Package tx carries a SQL transaction through context so stores and the
// audit outbox can join the same unit of work.
package tx

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

type (
	ctxKey   struct{}
	hooksKey struct{}
)

type hooks struct {
	mu  sync.Mutex
	fns []func(context.Context)
}

// scope returns ctx carrying a hook list. owner is false when an enclosing
// unit of work already owns one.
func scope(ctx context.Context) (context.Context, *hooks, bool) {
	if h, ok := ctx.Value(hooksKey{}).(*hooks); ok {
		return ctx, h, false
	}
	h := &hooks{}
	return context.WithValue(ctx, hooksKey{}, h), h, true
}

func (h *hooks) run(ctx context.Context) {
	h.mu.Lock()
	fns := h.fns
	h.fns = nil
	h.mu.Unlock()
	for _, fn := range fns {
		fn(ctx)
	}
}

// AfterCommit defers fn until the outermost unit of work in ctx commits. It
// is dropped on rollback. Outside a unit of work fn runs immediately.
func AfterCommit(ctx context.Context, fn func(ctx context.Context)) {
	h, ok := ctx.Value(hooksKey{}).(*hooks)
	if !ok {
		fn(ctx)
		return
	}
	h.mu.Lock()
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(ctxKey{}).(*sql.Tx)
	return tx, ok
}

// Executor is the subset of *sql.DB and *sql.Tx used by stores.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ExecutorFor returns the transaction in ctx, or db when there is none.
func ExecutorFor(ctx context.Context, db *sql.DB) Executor {
	if tx, ok := From(ctx); ok {
		return tx
	}
	return db
}

// Runner runs a function inside a unit of work.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SQLRunner opens a database transaction per call. Nested calls reuse the
// outer transaction.
type SQLRunner struct {
	db *sql.DB
}

func NewSQLRunner(db *sql.DB) *SQLRunner {
	return &SQLRunner{db: db}
}

func (r *SQLRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := From(ctx); ok {
		return fn(ctx)
	}
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()
	txCtx, h, owner := scope(ctx)
	if err := fn(WithTx(txCtx, sqlTx)); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	if owner {
		h.run(ctx)
	}
	return nil
}

// NoopRunner runs fn directly. In-memory stores use it. After-commit hooks
// still run once fn succeeds.
type NoopRunner struct{}

func (NoopRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	txCtx, h, owner := scope(ctx)
	if err := fn(txCtx); err != nil {
		return err
	}
	if owner {
		h.run(ctx)
	}
	return nil
}
