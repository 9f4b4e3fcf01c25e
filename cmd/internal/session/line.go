package session

import (
	"context"
	"sync"
)

// line serializes one logical request kind: starting a new request cancels
// the previous in-flight one, and only the most recent token may apply its
// result. There is one line per kind (send, search is synchronous, summary),
// never a global gate.
type line struct {
	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// Begin cancels any in-flight request on this line and returns a derived
// context plus the token owning the line.
func (l *line) Begin(parent context.Context) (context.Context, uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil {
		l.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	l.cancel = cancel
	l.seq++
	return ctx, l.seq
}

// Active reports whether tok still owns the line. A stale token's result
// must be discarded without touching shared state.
func (l *line) Active(tok uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return tok == l.seq
}

// End releases the line if tok still owns it.
func (l *line) End(tok uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if tok == l.seq && l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}
