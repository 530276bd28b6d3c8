package handler

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultWizardTTL is how long an untouched wizard is kept.
const DefaultWizardTTL = 30 * time.Minute

type wizardEntry[W any] struct {
	wizard   W
	lastUsed time.Time
}

// WizardRegistry keeps wizard instances in memory, one per id. Every
// wizard is independent; the registry only hands them out.
type WizardRegistry[W any] struct {
	mu      sync.Mutex
	items   map[string]*wizardEntry[W]
	ttl     time.Duration
	onEvict func(W)
	now     func() time.Time
}

// NewWizardRegistry creates a registry. onEvict, if set, runs for every
// wizard removed or expired, outside the registry lock.
func NewWizardRegistry[W any](ttl time.Duration, onEvict func(W)) *WizardRegistry[W] {
	if ttl <= 0 {
		ttl = DefaultWizardTTL
	}
	return &WizardRegistry[W]{
		items:   make(map[string]*wizardEntry[W]),
		ttl:     ttl,
		onEvict: onEvict,
		now:     time.Now,
	}
}

// Add stores w under a fresh id.
func (r *WizardRegistry[W]) Add(w W) string {
	id := uuid.NewString()
	r.mu.Lock()
	expired := r.sweepLocked()
	r.items[id] = &wizardEntry[W]{wizard: w, lastUsed: r.now()}
	r.mu.Unlock()

	r.evict(expired)
	return id
}

// Get returns the wizard for id and marks it used.
func (r *WizardRegistry[W]) Get(id string) (W, bool) {
	r.mu.Lock()
	e, ok := r.items[id]
	if ok && r.now().Sub(e.lastUsed) > r.ttl {
		delete(r.items, id)
		r.mu.Unlock()
		r.evict([]W{e.wizard})
		var zero W
		return zero, false
	}
	if !ok {
		r.mu.Unlock()
		var zero W
		return zero, false
	}
	e.lastUsed = r.now()
	w := e.wizard
	r.mu.Unlock()
	return w, true
}

// Remove drops the wizard for id.
func (r *WizardRegistry[W]) Remove(id string) bool {
	r.mu.Lock()
	e, ok := r.items[id]
	delete(r.items, id)
	r.mu.Unlock()
	if ok {
		r.evict([]W{e.wizard})
	}
	return ok
}

// Len returns the number of live wizards.
func (r *WizardRegistry[W]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func (r *WizardRegistry[W]) sweepLocked() []W {
	var expired []W
	now := r.now()
	for id, e := range r.items {
		if now.Sub(e.lastUsed) > r.ttl {
			expired = append(expired, e.wizard)
			delete(r.items, id)
		}
	}
	return expired
}

func (r *WizardRegistry[W]) evict(ws []W) {
	if r.onEvict == nil {
		return
	}
	for _, w := range ws {
		r.onEvict(w)
	}
}
