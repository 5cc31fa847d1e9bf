package dv_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"sync"
	"testing"

	"docvault/internal/cache"
	"docvault/internal/dv"
	"docvault/internal/fs"
	"docvault/internal/model"
	"docvault/internal/staging"
	"docvault/internal/testutil"
	"docvault/internal/thumbnail"
)

type harness struct {
	svc     *dv.Service
	store   *testutil.FaultyStore
	catalog *testutil.FaultyCatalog
	cache   *cache.Cache
	roots   dv.Roots
	clock   *testutil.StubClock
	events  *recorder
}

type harnessOption func(*dv.Options)

func withPolicy(p dv.RevisionPolicy) harnessOption {
	return func(o *dv.Options) { o.Policy = p }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	root := t.TempDir()
	roots := dv.Roots{
		Items:      filepath.Join(root, "items"),
		Revisions:  filepath.Join(root, "revisions"),
		Thumbnails: filepath.Join(root, "thumbnails"),
	}
	osStore, err := fs.NewOSByteStore(fs.SHA256)
	if err != nil {
		t.Fatalf("NewOSByteStore() error = %v", err)
	}
	for _, dir := range []string{roots.Items, roots.Revisions, roots.Thumbnails} {
		if err := osStore.Mkdir(dir); err != nil {
			t.Fatalf("Mkdir(%s) error = %v", dir, err)
		}
	}

	clock := testutil.FixedClock()
	area, err := staging.NewArea(filepath.Join(root, "tmp"), 1<<20, sha256.New,
		testutil.NewPrefixedIDGenerator("upload"), clock, dv.NewNopLogger())
	if err != nil {
		t.Fatalf("NewArea() error = %v", err)
	}
	c, err := cache.New(1<<20, 1<<16)
	if err != nil {
		t.Fatalf("cache.New() error = %v", err)
	}
	renderer, err := thumbnail.NewRenderer(64, 64, 80)
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}

	o := dv.Options{Roots: roots}
	for _, opt := range opts {
		opt(&o)
	}

	h := &harness{
		store:   testutil.NewFaultyStore(osStore),
		catalog: testutil.NewFaultyCatalog(testutil.NewTestCatalog(t)),
		cache:   c,
		roots:   roots,
		clock:   clock,
		events:  &recorder{},
	}
	h.svc = dv.NewService(o, dv.Deps{
		Catalog:     h.catalog,
		Store:       h.store,
		Stager:      area,
		Cache:       c,
		Thumbnailer: renderer,
		Hooks:       h.events,
		Logger:      dv.NewNopLogger(),
		Clock:       clock,
		IDs:         testutil.NewStubIDGenerator(),
	})
	return h
}

func (h *harness) container(t *testing.T, name string) *model.Container {
	t.Helper()
	c, err := h.svc.CreateContainer(context.Background(), dv.NewContainer{Owner: "alice", Name: name})
	if err != nil {
		t.Fatalf("CreateContainer(%q) error = %v", name, err)
	}
	return c
}

func (h *harness) put(t *testing.T, container, filename string, content []byte) *dv.PutResult {
	t.Helper()
	res, err := h.svc.Put(context.Background(), dv.PutParams{
		Container: container,
		Filename:  filename,
		Content:   bytes.NewReader(content),
		Creator:   "alice",
	})
	if err != nil {
		t.Fatalf("Put(%s/%s) error = %v", container, filename, err)
	}
	return res
}

func (h *harness) head(container, filename string) string {
	return filepath.Join(h.roots.Items, container, filename)
}

func (h *harness) revision(uuid string) string {
	return filepath.Join(h.roots.Revisions, uuid)
}

func (h *harness) thumbnail(th *model.Thumbnail) string {
	return filepath.Join(h.roots.Thumbnails, th.Filename())
}

func (h *harness) exists(t *testing.T, path string) bool {
	t.Helper()
	ok, err := h.store.IsFile(path)
	if err != nil {
		t.Fatalf("IsFile(%s) error = %v", path, err)
	}
	return ok
}

type recorder struct {
	mu     sync.Mutex
	events []dv.Event
}

func (r *recorder) Dispatch(_ context.Context, ev dv.Event) []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) kinds() []dv.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]dv.EventKind, len(r.events))
	for i, ev := range r.events {
		kinds[i] = ev.Kind
	}
	return kinds
}

func pngBytes(t *testing.T, w, h int, fill color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, fill)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}
