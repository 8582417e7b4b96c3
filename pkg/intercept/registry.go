package intercept

import (
	"cmp"
	"log/slog"
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/getmockd/netmock/internal/matching"
	"github.com/getmockd/netmock/pkg/logging"
)

// Registry is the bookkeeping behind an Engine: scopes, their interceptors
// in registration order, and the active and pending views.
//
// Consumption is the only mutation made while requests are in flight, and
// it is committed under the registry lock after matching ran on a snapshot.
type Registry struct {
	mu     sync.RWMutex
	seq    uint64
	scopes []*Scope

	// active interceptors of exact-target scopes, by Target.Key
	byKey map[string][]*Interceptor
	// active interceptors of pattern scopes
	patterned []*Interceptor

	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		byKey:  make(map[string][]*Interceptor),
		logger: logging.Component(logger, "registry"),
	}
}

func (r *Registry) addScope(s *Scope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scopes = append(r.scopes, s)
}

// Register appends i to its scope and makes it active and pending.
func (r *Registry) Register(i *Interceptor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	i.seq = r.seq
	s := i.scope
	s.interceptors = append(s.interceptors, i)

	key := i.Key()
	s.pending[key] = append(s.pending[key], i)
	if s.pattern != nil {
		r.patterned = append(r.patterned, i)
	} else {
		tk := s.target.Key()
		r.byKey[tk] = append(r.byKey[tk], i)
	}

	r.logger.Debug("interceptor registered", "id", i.id, "key", key, "times", i.times, "persist", i.persist)
}

// Candidates returns a snapshot of the active interceptors addressing t,
// ordered by registration.
func (r *Registry) Candidates(t matching.Target) []*Interceptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := slices.Clone(r.byKey[t.Key()])
	out = append(out, lo.Filter(r.patterned, func(i *Interceptor, _ int) bool {
		return matching.MatchTarget(i.scope.target, i.scope.pattern, t)
	})...)
	slices.SortFunc(out, func(a, b *Interceptor) int {
		return cmp.Compare(a.seq, b.seq)
	})
	return out
}

// ScopesFor returns the scopes that address t and have declared at least
// one interceptor, exhausted or not.
func (r *Registry) ScopesFor(t matching.Target) []*Scope {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Filter(r.scopes, func(s *Scope, _ int) bool {
		return len(s.interceptors) > 0 && matching.MatchTarget(s.target, s.pattern, t)
	})
}

// Consume records one use of i. It reports false when i was exhausted or
// removed since the caller's snapshot was taken.
func (r *Registry) Consume(i *Interceptor) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i.removed || i.exhaustedLocked() {
		return false
	}
	i.counter++
	if i.exhaustedLocked() {
		r.deactivateLocked(i)
	}
	r.logger.Debug("interceptor consumed", "id", i.id, "key", i.Key(), "counter", i.counter)
	return true
}

// Remove deactivates i. It stays in its scope's history.
func (r *Registry) Remove(i *Interceptor) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i.removed || i.scope == nil || !lo.Contains(i.scope.interceptors, i) {
		return false
	}
	r.deactivateLocked(i)
	i.removed = true
	return true
}

func (r *Registry) deactivateLocked(i *Interceptor) {
	s := i.scope
	key := i.Key()
	s.pending[key] = lo.Without(s.pending[key], i)
	if len(s.pending[key]) == 0 {
		delete(s.pending, key)
	}
	if s.pattern != nil {
		r.patterned = lo.Without(r.patterned, i)
		return
	}
	tk := s.target.Key()
	r.byKey[tk] = lo.Without(r.byKey[tk], i)
	if len(r.byKey[tk]) == 0 {
		delete(r.byKey, tk)
	}
}

// PendingKeysFor lists the unsatisfied, non-persisted, non-optional
// interceptors of s in registration order.
func (r *Registry) PendingKeysFor(s *Scope) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pendingKeysLocked(s)
}

func (r *Registry) pendingKeysLocked(s *Scope) []string {
	pending := lo.Filter(s.interceptors, func(i *Interceptor, _ int) bool {
		return !i.optional && !i.persist && lo.Contains(s.pending[i.Key()], i)
	})
	return lo.Map(pending, func(i *Interceptor, _ int) string { return i.String() })
}

// ActiveKeysFor lists the interceptors of s that can still be consumed.
func (r *Registry) ActiveKeysFor(s *Scope) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeKeysLocked(s)
}

func (r *Registry) activeKeysLocked(s *Scope) []string {
	active := lo.Filter(s.interceptors, func(i *Interceptor, _ int) bool {
		return !i.removed && !i.exhaustedLocked()
	})
	return lo.Map(active, func(i *Interceptor, _ int) string { return i.String() })
}

// PendingKeys lists pending interceptors across every scope.
func (r *Registry) PendingKeys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.FlatMap(r.scopes, func(s *Scope, _ int) []string { return r.pendingKeysLocked(s) })
}

// ActiveKeys lists active interceptors across every scope.
func (r *Registry) ActiveKeys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.FlatMap(r.scopes, func(s *Scope, _ int) []string { return r.activeKeysLocked(s) })
}

// Scopes returns the registered scopes in creation order.
func (r *Registry) Scopes() []*Scope {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.scopes)
}

// ResetAll forgets every scope and interceptor. It is idempotent.
func (r *Registry) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.scopes {
		for _, i := range s.interceptors {
			i.removed = true
		}
		s.pending = make(map[string][]*Interceptor)
	}
	r.scopes = nil
	r.byKey = make(map[string][]*Interceptor)
	r.patterned = nil
}
