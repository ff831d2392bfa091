package service

import "sync"

// lockTable hands out per-ticket mutexes on demand. Entries are reference
// counted and reclaimed when the last holder releases, so the table stays
// proportional to in-flight actions rather than to tickets ever seen.
// Contention on the table itself is a map lookup; one slow ticket never
// stalls another.
type lockTable struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{entries: make(map[string]*lockEntry)}
}

// Acquire blocks until the caller holds the exclusive section for key and
// returns the release function. Release is safe to call exactly once and
// must run on every path, including panics (callers defer it).
func (t *lockTable) Acquire(key string) func() {
	t.mu.Lock()
	e, ok := t.entries[key]
	if !ok {
		e = &lockEntry{}
		t.entries[key] = e
	}
	e.refs++
	t.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			t.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(t.entries, key)
			}
			t.mu.Unlock()
		})
	}
}

// size reports how many keys currently have holders or waiters.
func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
