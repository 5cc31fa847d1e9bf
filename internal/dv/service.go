// Package dv is the document vault service. It keeps the catalog and the
// files under the storage roots consistent while many goroutines create,
// replace, move and delete items concurrently.
package dv

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"path/filepath"

	"docvault/internal/lock"
	"docvault/internal/metrics"
	"docvault/internal/model"
)

// Roots are the directories the service stores files under.
type Roots struct {
	Items      string // <items>/<container>/<filename> holds heads
	Revisions  string // <revisions>/<uuid> holds revision copies
	Thumbnails string // <thumbnails>/<uuid><ext> holds previews
}

// Options configure a Service.
type Options struct {
	Roots  Roots
	Policy RevisionPolicy
}

// Deps are the collaborators of a Service. Hooks, Thumbnailer and Cache
// may be nil.
type Deps struct {
	Catalog     Catalog
	Store       ByteStore
	Stager      Stager
	Cache       ReadCache
	Locks       *lock.Registry
	Thumbnailer Thumbnailer
	Hooks       Hooks
	Logger      Logger
	Clock       Clock
	IDs         IDGenerator
}

// Service coordinates the catalog, the byte store, the lock registry and
// the read cache. Every mutation holds the locks of the keys it touches
// for its whole duration; reads take no lock and verify checksums instead.
type Service struct {
	catalog Catalog
	store   ByteStore
	stager  Stager
	cache   ReadCache
	locks   *lock.Registry
	thumbs  Thumbnailer
	hooks   Hooks
	logger  Logger
	clock   Clock
	idgen   IDGenerator
	roots   Roots
	policy  RevisionPolicy
}

// NewService creates a Service. Missing optional dependencies are replaced
// by no-op implementations.
func NewService(opts Options, deps Deps) *Service {
	s := &Service{
		catalog: deps.Catalog,
		store:   deps.Store,
		stager:  deps.Stager,
		cache:   deps.Cache,
		locks:   deps.Locks,
		thumbs:  deps.Thumbnailer,
		hooks:   deps.Hooks,
		logger:  deps.Logger,
		clock:   deps.Clock,
		idgen:   deps.IDs,
		roots:   opts.Roots,
		policy:  opts.Policy,
	}
	if s.cache == nil {
		s.cache = nopCache{}
	}
	if s.locks == nil {
		s.locks = lock.NewRegistry()
	}
	if s.hooks == nil {
		s.hooks = NopHooks{}
	}
	if s.logger == nil {
		s.logger = NewNopLogger()
	}
	if s.clock == nil {
		s.clock = RealClock{}
	}
	if s.idgen == nil {
		s.idgen = UUIDGenerator{}
	}
	if s.policy == "" {
		s.policy = SkipIdentical
	}
	return s
}

// Locks exposes the lock registry, mainly for tests and diagnostics.
func (s *Service) Locks() *lock.Registry {
	return s.locks
}

// ClearCache drops every cached file.
func (s *Service) ClearCache() {
	s.cache.Clear()
}

func (s *Service) containerDir(name string) string {
	return filepath.Join(s.roots.Items, name)
}

func (s *Service) headPath(c *model.Container, filename string) string {
	return filepath.Join(s.roots.Items, c.Name, filename)
}

func (s *Service) revisionPath(uuid string) string {
	return filepath.Join(s.roots.Revisions, uuid)
}

func (s *Service) thumbnailPath(th *model.Thumbnail) string {
	return filepath.Join(s.roots.Thumbnails, th.Filename())
}

// resolveContainer finds a container by name before any lock is held.
func (s *Service) resolveContainer(ctx context.Context, name string) (*model.Container, error) {
	c, err := s.catalog.FindContainerByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("finding container: %w", err)
	}
	if c == nil {
		return nil, fmt.Errorf("%w: container %q", ErrNotFound, name)
	}
	return c, nil
}

// reloadContainer re-reads a container after its lock was acquired. It may
// have been deleted or renamed while the caller waited.
func (s *Service) reloadContainer(ctx context.Context, id, name string) (*model.Container, error) {
	c, err := s.catalog.FindContainerByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reloading container: %w", err)
	}
	if c == nil {
		return nil, fmt.Errorf("%w: container %q", ErrNotFound, name)
	}
	return c, nil
}

func writable(c *model.Container) error {
	if c.Readonly {
		return fmt.Errorf("%w: %q", ErrReadonly, c.Name)
	}
	return nil
}

func writeError(action, path string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrWrite, action, path, err)
}

// discard removes a file that may or may not exist. Failures are logged.
func (s *Service) discard(path string) {
	if err := s.store.Delete(path); err != nil && !errors.Is(err, iofs.ErrNotExist) {
		s.logger.Warn("removing file", "path", path, "error", err)
	}
}

// compensate runs a filesystem undo step and records its outcome. Its
// failure is logged, never returned: the caller reports the original error.
func (s *Service) compensate(action string, fn func() error, args ...any) {
	if err := fn(); err != nil {
		metrics.Compensations.WithLabelValues(action, "failed").Inc()
		s.logger.Error("compensation failed", append([]any{"action", action, "error", err}, args...)...)
		return
	}
	metrics.Compensations.WithLabelValues(action, "ok").Inc()
	s.logger.Warn("compensation applied", append([]any{"action", action}, args...)...)
}

func (s *Service) dispatch(ctx context.Context, ev Event) {
	for _, err := range s.hooks.Dispatch(ctx, ev) {
		s.logger.Warn("hook failed", "event", string(ev.Kind), "error", err)
	}
}

func recordWrite(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.Writes.WithLabelValues(op, outcome).Inc()
}

type nopCache struct{}

func (nopCache) Load(string, string) ([]byte, bool) { return nil, false }
func (nopCache) Save(string, string, []byte)        {}
func (nopCache) Delete(string)                      {}
func (nopCache) Clear()                             {}
