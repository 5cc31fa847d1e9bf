package testutil

import (
	"context"
	"errors"
	"io"
	"sync"

	"docvault/internal/dv"
)

// ErrInjected is returned by injected faults.
var ErrInjected = errors.New("injected fault")

// FaultyStore wraps a ByteStore and fails selected calls. A hook returning
// a non-nil error makes the call fail with that error without touching the
// wrapped store.
type FaultyStore struct {
	dv.ByteStore

	mu       sync.Mutex
	onRename func(src, dst string) error
	onCopy   func(src, dst string) error
	onDelete func(path string) error
	onUpload func(path string) error
}

func NewFaultyStore(inner dv.ByteStore) *FaultyStore {
	return &FaultyStore{ByteStore: inner}
}

// FailRename installs a rename hook. Nil removes it.
func (s *FaultyStore) FailRename(fn func(src, dst string) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRename = fn
}

// FailCopy installs a copy hook. Nil removes it.
func (s *FaultyStore) FailCopy(fn func(src, dst string) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCopy = fn
}

// FailDelete installs a delete hook. Nil removes it.
func (s *FaultyStore) FailDelete(fn func(path string) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDelete = fn
}

// FailUpload installs an upload hook. Nil removes it.
func (s *FaultyStore) FailUpload(fn func(path string) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUpload = fn
}

func (s *FaultyStore) hook(get func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return get()
}

func (s *FaultyStore) Rename(src, dst string) error {
	if err := s.hook(func() error {
		if s.onRename == nil {
			return nil
		}
		return s.onRename(src, dst)
	}); err != nil {
		return err
	}
	return s.ByteStore.Rename(src, dst)
}

func (s *FaultyStore) Copy(src, dst string) error {
	if err := s.hook(func() error {
		if s.onCopy == nil {
			return nil
		}
		return s.onCopy(src, dst)
	}); err != nil {
		return err
	}
	return s.ByteStore.Copy(src, dst)
}

func (s *FaultyStore) Delete(path string) error {
	if err := s.hook(func() error {
		if s.onDelete == nil {
			return nil
		}
		return s.onDelete(path)
	}); err != nil {
		return err
	}
	return s.ByteStore.Delete(path)
}

func (s *FaultyStore) Upload(ctx context.Context, r io.Reader, path string) (int64, error) {
	if err := s.hook(func() error {
		if s.onUpload == nil {
			return nil
		}
		return s.onUpload(path)
	}); err != nil {
		return 0, err
	}
	return s.ByteStore.Upload(ctx, r, path)
}

// FaultyCatalog wraps a Catalog and can fail the next commits.
type FaultyCatalog struct {
	dv.Catalog

	mu          sync.Mutex
	skipCommits int
	failCommits int
}

func NewFaultyCatalog(inner dv.Catalog) *FaultyCatalog {
	return &FaultyCatalog{Catalog: inner}
}

// FailCommits makes the next n commits roll back and return ErrInjected.
func (c *FaultyCatalog) FailCommits(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skipCommits = 0
	c.failCommits = n
}

// FailCommitsAfter lets the next skip commits through and fails the n
// after them.
func (c *FaultyCatalog) FailCommitsAfter(skip, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skipCommits = skip
	c.failCommits = n
}

func (c *FaultyCatalog) Begin(ctx context.Context) (dv.Tx, error) {
	tx, err := c.Catalog.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &faultyTx{Tx: tx, catalog: c}, nil
}

func (c *FaultyCatalog) takeFailure() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.skipCommits > 0 {
		c.skipCommits--
		return false
	}
	if c.failCommits > 0 {
		c.failCommits--
		return true
	}
	return false
}

type faultyTx struct {
	dv.Tx
	catalog *FaultyCatalog
}

func (t *faultyTx) Commit() error {
	if t.catalog.takeFailure() {
		t.Tx.Rollback()
		return ErrInjected
	}
	return t.Tx.Commit()
}
