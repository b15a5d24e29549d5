// internal/dedupe/dedupe.go
package dedupe

import (
	"context"
	"sync"

	"github.com/valpere/StoreScrapexter/internal/store"
)

// Filter answers "was this store already exported?". Seen marks the key as a
// side effect, so the first caller for a key gets false and everyone after true.
// Forget unmarks keys whose stores never made it to the output.
type Filter interface {
	Seen(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, keys ...string) error
	Close() error
}

// Key identifies a store for de-duplication.
func Key(s store.Store) string {
	return s.Key()
}

// MemoryFilter de-duplicates within one process.
type MemoryFilter struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewMemoryFilter creates an empty in-memory filter.
func NewMemoryFilter() *MemoryFilter {
	return &MemoryFilter{seen: make(map[string]struct{})}
}

// Seen implements Filter.
func (f *MemoryFilter) Seen(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.seen[key]; ok {
		return true, nil
	}
	f.seen[key] = struct{}{}
	return false, nil
}

// Forget implements Filter.
func (f *MemoryFilter) Forget(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.seen, key)
	}
	return nil
}

// Len returns the number of distinct keys seen.
func (f *MemoryFilter) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

// Close implements Filter.
func (f *MemoryFilter) Close() error { return nil }
