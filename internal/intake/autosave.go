package intake

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const DefaultAutosaveInterval = 30 * time.Second

// Autosaver periodically writes a draft. Failures are logged and retried on
// the next tick.
type Autosaver struct {
	draft    *Draft
	interval time.Duration
	logger   *zap.Logger
	onSave   func(error)
}

type AutosaveOption func(*Autosaver)

func WithInterval(d time.Duration) AutosaveOption {
	return func(a *Autosaver) {
		if d > 0 {
			a.interval = d
		}
	}
}

func WithAutosaveLogger(logger *zap.Logger) AutosaveOption {
	return func(a *Autosaver) {
		a.logger = logger
	}
}

// WithSaveHook is called after every attempted save.
func WithSaveHook(fn func(error)) AutosaveOption {
	return func(a *Autosaver) {
		a.onSave = fn
	}
}

func NewAutosaver(draft *Draft, opts ...AutosaveOption) *Autosaver {
	a := &Autosaver{
		draft:    draft,
		interval: DefaultAutosaveInterval,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run saves on every tick until ctx is done.
func (a *Autosaver) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.tick(ctx)
		}
	}
}

func (a *Autosaver) tick(ctx context.Context) {
	if !a.draft.HasAnswers() {
		return
	}
	err := a.draft.Save(ctx)
	if err != nil && ctx.Err() == nil {
		a.logger.Warn("autosave failed", zap.Error(err))
	}
	if a.onSave != nil {
		a.onSave(err)
	}
}
