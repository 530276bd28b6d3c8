package effect

import (
	"context"
	"sync"
)

// Latest hands out generation tokens. Starting a new generation cancels
// the previous one; results are applied only while their generation is
// still the newest.
type Latest struct {
	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// Begin starts a new generation and returns its context and token.
func (l *Latest) Begin(parent context.Context) (context.Context, uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	l.gen++
	l.cancel = cancel
	return ctx, l.gen
}

// Invalidate makes every outstanding token stale without starting work.
func (l *Latest) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.gen++
}

// IsCurrent reports whether token belongs to the newest generation.
func (l *Latest) IsCurrent(token uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return token == l.gen
}

// Apply runs fn only if token is still current. fn runs under the guard's
// lock, so no newer generation can start while it applies its result.
func (l *Latest) Apply(token uint64, fn func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if token != l.gen {
		return false
	}
	fn()
	return true
}
