package lock

import (
	"context"
	"slices"
	"sync"
	"time"

	"docvault/internal/metrics"
)

// Mode selects shared or exclusive access to a container.
type Mode int

const (
	Read Mode = iota
	Write
)

func (m Mode) String() string {
	if m == Write {
		return "write"
	}
	return "read"
}

// Key identifies an item lock: a filename inside a container.
type Key struct {
	ContainerID string
	Name        string
}

// Less orders keys by container id, then name. Multi-key acquisition
// follows this order.
func (k Key) Less(o Key) bool {
	if k.ContainerID != o.ContainerID {
		return k.ContainerID < o.ContainerID
	}
	return k.Name < o.Name
}

func (k Key) compare(o Key) int {
	switch {
	case k.Less(o):
		return -1
	case o.Less(k):
		return 1
	}
	return 0
}

type entry[L any] struct {
	lock L
	refs int
}

// table maps keys to lazily created locks. An entry lives while someone
// holds or waits for it.
type table[K comparable, L any] struct {
	entries map[K]*entry[L]
	create  func() L
}

func newTable[K comparable, L any](create func() L) *table[K, L] {
	return &table[K, L]{entries: make(map[K]*entry[L]), create: create}
}

func (t *table[K, L]) ref(k K) L {
	e, ok := t.entries[k]
	if !ok {
		e = &entry[L]{lock: t.create()}
		t.entries[k] = e
	}
	e.refs++
	return e.lock
}

func (t *table[K, L]) unref(k K) {
	e, ok := t.entries[k]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(t.entries, k)
	}
}

// Registry hands out per-container reader-writer locks and per-item
// exclusive locks. Callers that need several locks go through Items, which
// acquires them in a global order.
type Registry struct {
	mu         sync.Mutex
	containers *table[string, *RWLock]
	items      *table[Key, *Mutex]
}

func NewRegistry() *Registry {
	return &Registry{
		containers: newTable[string](NewRWLock),
		items:      newTable[Key](NewMutex),
	}
}

// Container acquires the lock of one container in the given mode.
func (r *Registry) Container(ctx context.Context, id string, mode Mode) (Release, error) {
	r.mu.Lock()
	l := r.containers.ref(id)
	r.mu.Unlock()

	start := time.Now()
	var (
		rel Release
		err error
	)
	if mode == Write {
		rel, err = l.Write(ctx)
	} else {
		rel, err = l.Read(ctx)
	}
	metrics.LockWait.WithLabelValues("container").Observe(time.Since(start).Seconds())
	if err != nil {
		r.dropContainer(id)
		return nil, err
	}
	return once(func() {
		rel()
		r.dropContainer(id)
	}), nil
}

// Item acquires the exclusive lock of one item key. It does not touch the
// container lock; most callers want Items.
func (r *Registry) Item(ctx context.Context, key Key) (Release, error) {
	r.mu.Lock()
	m := r.items.ref(key)
	r.mu.Unlock()

	start := time.Now()
	rel, err := m.Lock(ctx)
	metrics.LockWait.WithLabelValues("item").Observe(time.Since(start).Seconds())
	if err != nil {
		r.dropItem(key)
		return nil, err
	}
	return once(func() {
		rel()
		r.dropItem(key)
	}), nil
}

// Items acquires a read lock on every container named by keys, in sorted
// id order, then the item locks in key order. Duplicates are acquired once.
// If any acquisition fails, the locks already held are released in reverse
// order and the error is returned.
func (r *Registry) Items(ctx context.Context, keys ...Key) (Release, error) {
	sorted := slices.Clone(keys)
	slices.SortFunc(sorted, Key.compare)
	sorted = slices.Compact(sorted)

	ids := make([]string, 0, len(sorted))
	for _, k := range sorted {
		ids = append(ids, k.ContainerID)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	held := make([]Release, 0, len(ids)+len(sorted))
	releaseAll := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i]()
		}
	}

	for _, id := range ids {
		rel, err := r.Container(ctx, id, Read)
		if err != nil {
			releaseAll()
			return nil, err
		}
		held = append(held, rel)
	}
	for _, k := range sorted {
		rel, err := r.Item(ctx, k)
		if err != nil {
			releaseAll()
			return nil, err
		}
		held = append(held, rel)
	}
	return once(releaseAll), nil
}

// Len reports how many container and item locks are currently tracked.
func (r *Registry) Len() (containers, items int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.containers.entries), len(r.items.entries)
}

func (r *Registry) dropContainer(id string) {
	r.mu.Lock()
	r.containers.unref(id)
	r.mu.Unlock()
}

func (r *Registry) dropItem(k Key) {
	r.mu.Lock()
	r.items.unref(k)
	r.mu.Unlock()
}
