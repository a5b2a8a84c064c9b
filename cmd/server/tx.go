package main

import (
	"context"
	"time"

	dErrors "expatdesk/pkg/domain-errors"
	"expatdesk/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

// timeoutRunner bounds every unit of work that arrives without a deadline.
type timeoutRunner struct {
	inner   tx.Runner
	timeout time.Duration
}

func newTimeoutRunner(inner tx.Runner) *timeoutRunner {
	return &timeoutRunner{inner: inner, timeout: defaultTxTimeout}
}

func (t *timeoutRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	return t.inner.RunInTx(ctx, fn)
}
