package session

import (
	"context"
	"log/slog"

	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/realtime"
)

// EventSource is the feed side the reconciler consumes. Satisfied by
// *realtime.Feed.
type EventSource interface {
	// Events streams decoded row changes.
	Events() <-chan realtime.ChangeEvent
	// Resets fires after every (re)connect, before any event from the new
	// connection is delivered.
	Resets() <-chan struct{}
}

// Reconciler drives a Store from a change feed. On every reset it reloads
// the snapshot wholesale from the backend; the feed carries no sequence
// numbers, so a reconnect means anything may have been missed.
type Reconciler struct {
	log   *slog.Logger
	store *Store
	src   EventSource
}

// NewReconciler wires a store to an event source.
func NewReconciler(log *slog.Logger, store *Store, src EventSource) *Reconciler {
	return &Reconciler{log: log, store: store, src: src}
}

// Run consumes the source until ctx is done. A failed reload is logged and
// retried on the next reset; events keep flowing meanwhile, since each event
// is idempotent against whatever snapshot the store holds.
func (r *Reconciler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.src.Resets():
			if err := r.store.InitialLoad(ctx); err != nil {
				r.log.Error("reconcile.reload", "err", err)
			} else {
				r.log.Info("reconcile.reload.ok", "messages", r.store.Len())
			}
		case ev, ok := <-r.src.Events():
			if !ok {
				return nil
			}
			r.store.Apply(ev)
		}
	}
}
