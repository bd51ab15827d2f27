// internal/adapters/memory/locker.go
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ammerola/salesflow-be/internal/core/domain"
	"github.com/ammerola/salesflow-be/internal/core/ports"
)

// KeyedLocker is an in-process lock manager with one mutex per product.
// Each mutex is a one-slot channel so waiting can honour the context and
// the timeout.
type KeyedLocker struct {
	mu      sync.Mutex
	entries map[int64]*lockEntry
	timeout time.Duration
}

type lockEntry struct {
	sem  chan struct{}
	refs int
}

var _ ports.LockManager = (*KeyedLocker)(nil)

// NewKeyedLocker creates a locker whose Acquire gives up after timeout.
// A zero timeout waits until the context is done.
func NewKeyedLocker(timeout time.Duration) *KeyedLocker {
	return &KeyedLocker{
		entries: make(map[int64]*lockEntry),
		timeout: timeout,
	}
}

// Acquire locks every product id in ascending order
func (l *KeyedLocker) Acquire(ctx context.Context, productIDs []int64) (func(), error) {
	ids := sortedUnique(productIDs)

	var timer <-chan time.Time
	if l.timeout > 0 {
		t := time.NewTimer(l.timeout)
		defer t.Stop()
		timer = t.C
	}

	held := make([]int64, 0, len(ids))
	for _, id := range ids {
		entry := l.ref(id)
		select {
		case entry.sem <- struct{}{}:
			held = append(held, id)
		case <-timer:
			l.unref(id)
			l.releaseAll(held)
			return nil, fmt.Errorf("product %d: %w", id, domain.ErrLockTimeout)
		case <-ctx.Done():
			l.unref(id)
			l.releaseAll(held)
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.releaseAll(held) })
	}, nil
}

// Held returns the number of products currently locked or waited on
func (l *KeyedLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *KeyedLocker) ref(id int64) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[id]
	if !ok {
		entry = &lockEntry{sem: make(chan struct{}, 1)}
		l.entries[id] = entry
	}
	entry.refs++
	return entry
}

func (l *KeyedLocker) unref(id int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[id]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, id)
	}
}

// releaseAll unlocks in reverse acquisition order
func (l *KeyedLocker) releaseAll(held []int64) {
	for i := len(held) - 1; i >= 0; i-- {
		id := held[i]
		l.mu.Lock()
		entry := l.entries[id]
		l.mu.Unlock()
		if entry != nil {
			<-entry.sem
		}
		l.unref(id)
	}
}

func sortedUnique(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
