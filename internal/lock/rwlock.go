// Package lock provides the process-local locks that serialize access to
// containers and items.
package lock

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// maxReaders bounds the number of concurrent readers of one RWLock.
// A writer acquires the full weight.
const maxReaders int64 = 1 << 30

// Release gives a held lock back. Calling it more than once is a no-op.
type Release func()

func once(fn func()) Release {
	var o sync.Once
	return func() { o.Do(fn) }
}

// RWLock is a reader-writer lock with writer preference: once a writer is
// waiting, readers that arrive later queue behind it while readers already
// holding the lock drain. Waiting honors context cancellation.
//
// The zero value is not usable; create one with NewRWLock.
type RWLock struct {
	sem *semaphore.Weighted
}

func NewRWLock() *RWLock {
	return &RWLock{sem: semaphore.NewWeighted(maxReaders)}
}

// Read acquires a shared hold.
func (l *RWLock) Read(ctx context.Context) (Release, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return once(func() { l.sem.Release(1) }), nil
}

// Write acquires an exclusive hold.
func (l *RWLock) Write(ctx context.Context) (Release, error) {
	if err := l.sem.Acquire(ctx, maxReaders); err != nil {
		return nil, err
	}
	return once(func() { l.sem.Release(maxReaders) }), nil
}

// Mutex is an exclusive lock whose acquisition can be cancelled.
type Mutex struct {
	sem *semaphore.Weighted
}

func NewMutex() *Mutex {
	return &Mutex{sem: semaphore.NewWeighted(1)}
}

// Lock acquires the mutex.
func (m *Mutex) Lock(ctx context.Context) (Release, error) {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return once(func() { m.sem.Release(1) }), nil
}
