package dv_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"golang.org/x/sync/errgroup"

	"docvault/internal/dv"
	"docvault/internal/testutil"
)

func TestService_PutLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.container(t, "docs")

	created := h.put(t, "docs", "a.txt", []byte("hello"))
	if !created.Created {
		t.Errorf("Created = false, want true")
	}
	if created.Item.LatestRevisionNumber != 0 {
		t.Errorf("LatestRevisionNumber = %d, want 0", created.Item.LatestRevisionNumber)
	}
	h1 := testutil.SHA256Hex([]byte("hello"))
	if created.Item.Checksum != h1 {
		t.Errorf("Checksum = %s, want %s", created.Item.Checksum, h1)
	}
	if created.Item.Mimetype != "text/plain" {
		t.Errorf("Mimetype = %q, want text/plain", created.Item.Mimetype)
	}

	replaced := h.put(t, "docs", "a.txt", []byte("world"))
	if replaced.Created || replaced.Unchanged {
		t.Fatalf("replace result = %+v, want a plain replace", replaced)
	}
	if replaced.Item.LatestRevisionNumber != 1 {
		t.Errorf("LatestRevisionNumber = %d, want 1", replaced.Item.LatestRevisionNumber)
	}
	if replaced.Revision.RevisionNumber != 1 || replaced.Revision.Checksum != h1 {
		t.Errorf("Revision = %+v, want number 1 with checksum %s", replaced.Revision, h1)
	}
	if got, want := replaced.Item.Checksum, testutil.SHA256Hex([]byte("world")); got != want {
		t.Errorf("head Checksum = %s, want %s", got, want)
	}
	data, err := os.ReadFile(h.revision(replaced.Revision.UUID))
	if err != nil {
		t.Fatalf("reading revision file: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("revision content = %q, want hello", data)
	}

	_, err = h.svc.Put(ctx, dv.PutParams{
		Container: "docs",
		Filename:  "a.txt",
		Content:   bytes.NewReader(pngBytes(t, 4, 4, color.Black)),
	})
	if !errors.Is(err, dv.ErrConflict) {
		t.Fatalf("Put() with new mimetype error = %v, want ErrConflict", err)
	}
	head, _, err := h.svc.ReadItem(ctx, "docs", "a.txt")
	if err != nil {
		t.Fatalf("ReadItem() error = %v", err)
	}
	if string(head) != "world" {
		t.Errorf("head = %q, want world", head)
	}
	revs, err := h.svc.History(ctx, "docs", "a.txt")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(revs) != 1 {
		t.Errorf("len(History()) = %d, want 1", len(revs))
	}

	if err := h.svc.DeleteItem(ctx, "docs", "a.txt"); err != nil {
		t.Fatalf("DeleteItem() error = %v", err)
	}
	if h.exists(t, h.head("docs", "a.txt")) {
		t.Error("head file still exists after delete")
	}
	if h.exists(t, h.revision(replaced.Revision.UUID)) {
		t.Error("revision file still exists after delete")
	}
	if _, _, err := h.svc.GetItem(ctx, "docs", "a.txt"); !errors.Is(err, dv.ErrNotFound) {
		t.Errorf("GetItem() after delete error = %v, want ErrNotFound", err)
	}

	want := []dv.EventKind{dv.EventContainerCreated, dv.EventItemCreated, dv.EventItemUpdated, dv.EventItemDeleted}
	if got := h.events.kinds(); !slices.Equal(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestService_PutIdenticalContent(t *testing.T) {
	tests := []struct {
		name          string
		policy        dv.RevisionPolicy
		wantUnchanged bool
		wantLatest    int64
	}{
		{name: "skip identical", policy: dv.SkipIdentical, wantUnchanged: true, wantLatest: 0},
		{name: "always revision", policy: dv.AlwaysRevision, wantUnchanged: false, wantLatest: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, withPolicy(tt.policy))
			h.container(t, "docs")
			h.put(t, "docs", "a.txt", []byte("same"))

			res := h.put(t, "docs", "a.txt", []byte("same"))
			if res.Unchanged != tt.wantUnchanged {
				t.Errorf("Unchanged = %v, want %v", res.Unchanged, tt.wantUnchanged)
			}
			if res.Item.LatestRevisionNumber != tt.wantLatest {
				t.Errorf("LatestRevisionNumber = %d, want %d", res.Item.LatestRevisionNumber, tt.wantLatest)
			}
			revs, err := h.svc.History(context.Background(), "docs", "a.txt")
			if err != nil {
				t.Fatalf("History() error = %v", err)
			}
			if int64(len(revs)) != tt.wantLatest {
				t.Errorf("len(History()) = %d, want %d", len(revs), tt.wantLatest)
			}
		})
	}
}

func TestService_PutValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.container(t, "docs")
	if _, err := h.svc.CreateContainer(ctx, dv.NewContainer{Owner: "alice", Name: "frozen", Readonly: true}); err != nil {
		t.Fatalf("CreateContainer() error = %v", err)
	}

	tests := []struct {
		name    string
		params  dv.PutParams
		wantErr error
	}{
		{name: "missing container", params: dv.PutParams{Container: "nope", Filename: "a.txt"}, wantErr: dv.ErrNotFound},
		{name: "path in filename", params: dv.PutParams{Container: "docs", Filename: "../a.txt"}, wantErr: dv.ErrValidation},
		{name: "empty filename", params: dv.PutParams{Container: "docs"}, wantErr: dv.ErrValidation},
		{name: "bad tag", params: dv.PutParams{Container: "docs", Filename: "a.txt", Tags: []string{"a/b"}}, wantErr: dv.ErrValidation},
		{name: "readonly container", params: dv.PutParams{Container: "frozen", Filename: "a.txt"}, wantErr: dv.ErrReadonly},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.params.Content = bytes.NewReader([]byte("x"))
			if _, err := h.svc.Put(ctx, tt.params); !errors.Is(err, tt.wantErr) {
				t.Errorf("Put() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestService_PutUntrackedHead(t *testing.T) {
	h := newHarness(t)
	h.container(t, "docs")
	if err := os.WriteFile(h.head("docs", "stray.txt"), []byte("stray"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := h.svc.Put(context.Background(), dv.PutParams{
		Container: "docs",
		Filename:  "stray.txt",
		Content:   bytes.NewReader([]byte("new")),
	})
	if !errors.Is(err, dv.ErrConflict) {
		t.Fatalf("Put() error = %v, want ErrConflict", err)
	}
	data, err := os.ReadFile(h.head("docs", "stray.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "stray" {
		t.Errorf("untracked file = %q, want it untouched", data)
	}
}

func TestService_PutRollback(t *testing.T) {
	t.Run("create commit failure removes head", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		h.container(t, "docs")
		h.catalog.FailCommits(1)

		_, err := h.svc.Put(ctx, dv.PutParams{Container: "docs", Filename: "a.txt", Content: bytes.NewReader([]byte("hello"))})
		if !errors.Is(err, testutil.ErrInjected) {
			t.Fatalf("Put() error = %v, want ErrInjected", err)
		}
		if h.exists(t, h.head("docs", "a.txt")) {
			t.Error("head file left behind after failed create")
		}
		if _, _, err := h.svc.GetItem(ctx, "docs", "a.txt"); !errors.Is(err, dv.ErrNotFound) {
			t.Errorf("GetItem() error = %v, want ErrNotFound", err)
		}

		h.put(t, "docs", "a.txt", []byte("hello"))
	})

	t.Run("replace commit failure restores head", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		h.container(t, "docs")
		before := h.put(t, "docs", "a.txt", []byte("hello"))
		h.catalog.FailCommits(1)

		_, err := h.svc.Put(ctx, dv.PutParams{Container: "docs", Filename: "a.txt", Content: bytes.NewReader([]byte("world"))})
		if !errors.Is(err, testutil.ErrInjected) {
			t.Fatalf("Put() error = %v, want ErrInjected", err)
		}
		assertHead(t, h, "docs", "a.txt", "hello")
		assertNoRevisionFiles(t, h)

		_, it, err := h.svc.GetItem(ctx, "docs", "a.txt")
		if err != nil {
			t.Fatalf("GetItem() error = %v", err)
		}
		if it.Checksum != before.Item.Checksum || it.LatestRevisionNumber != 0 {
			t.Errorf("item = %+v, want it unchanged", it)
		}
	})

	t.Run("failed head restore keeps the commit error", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		h.container(t, "docs")
		h.put(t, "docs", "a.txt", []byte("hello"))
		errRestore := errors.New("restore failed")
		h.store.FailRename(func(src, _ string) error {
			if strings.HasPrefix(src, h.roots.Revisions+string(filepath.Separator)) {
				return errRestore
			}
			return nil
		})
		h.catalog.FailCommits(1)

		_, err := h.svc.Put(ctx, dv.PutParams{Container: "docs", Filename: "a.txt", Content: bytes.NewReader([]byte("world"))})
		if !errors.Is(err, testutil.ErrInjected) {
			t.Fatalf("Put() error = %v, want ErrInjected", err)
		}
		if errors.Is(err, errRestore) {
			t.Errorf("Put() error = %v, want the restore failure hidden", err)
		}

		entries, err := os.ReadDir(h.roots.Revisions)
		if err != nil {
			t.Fatalf("ReadDir() error = %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("revision root has %d files, want the old head kept", len(entries))
		}
		data, err := os.ReadFile(filepath.Join(h.roots.Revisions, entries[0].Name()))
		if err != nil {
			t.Fatalf("reading revision copy: %v", err)
		}
		if string(data) != "hello" {
			t.Errorf("revision copy = %q, want hello", data)
		}
	})

	t.Run("replace promotion failure keeps head", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		h.container(t, "docs")
		h.put(t, "docs", "a.txt", []byte("hello"))
		head := h.head("docs", "a.txt")
		h.store.FailRename(func(_, dst string) error {
			if dst == head {
				return testutil.ErrInjected
			}
			return nil
		})

		_, err := h.svc.Put(ctx, dv.PutParams{Container: "docs", Filename: "a.txt", Content: bytes.NewReader([]byte("world"))})
		if !errors.Is(err, dv.ErrWrite) {
			t.Fatalf("Put() error = %v, want ErrWrite", err)
		}
		h.store.FailRename(nil)

		assertHead(t, h, "docs", "a.txt", "hello")
		assertNoRevisionFiles(t, h)
		revs, err := h.svc.History(ctx, "docs", "a.txt")
		if err != nil {
			t.Fatalf("History() error = %v", err)
		}
		if len(revs) != 0 {
			t.Errorf("len(History()) = %d, want 0", len(revs))
		}
	})

	t.Run("revision copy failure changes nothing", func(t *testing.T) {
		h := newHarness(t)
		h.container(t, "docs")
		h.put(t, "docs", "a.txt", []byte("hello"))
		h.store.FailCopy(func(_, _ string) error { return testutil.ErrInjected })

		_, err := h.svc.Put(context.Background(), dv.PutParams{Container: "docs", Filename: "a.txt", Content: bytes.NewReader([]byte("world"))})
		if !errors.Is(err, dv.ErrWrite) {
			t.Fatalf("Put() error = %v, want ErrWrite", err)
		}
		assertHead(t, h, "docs", "a.txt", "hello")
		assertNoRevisionFiles(t, h)
	})
}

func TestService_PutConcurrentRevisions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.container(t, "docs")

	const writers = 16
	g, gctx := errgroup.WithContext(ctx)
	for i := range writers {
		g.Go(func() error {
			_, err := h.svc.Put(gctx, dv.PutParams{
				Container: "docs",
				Filename:  "shared.txt",
				Content:   bytes.NewReader([]byte(fmt.Sprintf("version %02d", i))),
			})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent Put() error = %v", err)
	}

	_, it, err := h.svc.GetItem(ctx, "docs", "shared.txt")
	if err != nil {
		t.Fatalf("GetItem() error = %v", err)
	}
	if it.LatestRevisionNumber != writers-1 {
		t.Errorf("LatestRevisionNumber = %d, want %d", it.LatestRevisionNumber, writers-1)
	}
	revs, err := h.svc.History(ctx, "docs", "shared.txt")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	for i, r := range revs {
		if want := int64(writers - 1 - i); r.RevisionNumber != want {
			t.Errorf("revs[%d].RevisionNumber = %d, want %d", i, r.RevisionNumber, want)
		}
		if !h.exists(t, h.revision(r.UUID)) {
			t.Errorf("revision %d file is missing", r.RevisionNumber)
		}
	}
	if _, _, err := h.svc.ReadItem(ctx, "docs", "shared.txt"); err != nil {
		t.Errorf("ReadItem() error = %v", err)
	}
	if containers, items := h.svc.Locks().Len(); containers != 0 || items != 0 {
		t.Errorf("Locks().Len() = %d, %d, want 0, 0", containers, items)
	}
}

func TestService_PutTags(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.container(t, "docs")

	_, err := h.svc.Put(ctx, dv.PutParams{
		Container: "docs",
		Filename:  "a.txt",
		Content:   bytes.NewReader([]byte("hello")),
		Tags:      []string{" Foo  Bar ", "foo-bar", "Zed"},
	})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	assertTags(t, h, "docs", "a.txt", []string{"foo-bar", "zed"})

	// Identical content still applies the new tag set.
	_, err = h.svc.Put(ctx, dv.PutParams{
		Container: "docs",
		Filename:  "a.txt",
		Content:   bytes.NewReader([]byte("hello")),
		Tags:      []string{"final"},
	})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	assertTags(t, h, "docs", "a.txt", []string{"final"})

	// Nil tags leave the set alone.
	h.put(t, "docs", "a.txt", []byte("changed"))
	assertTags(t, h, "docs", "a.txt", []string{"final"})
}

func assertHead(t *testing.T, h *harness, container, filename, want string) {
	t.Helper()
	data, err := os.ReadFile(h.head(container, filename))
	if err != nil {
		t.Fatalf("reading head: %v", err)
	}
	if string(data) != want {
		t.Errorf("head = %q, want %q", data, want)
	}
}

func assertNoRevisionFiles(t *testing.T, h *harness) {
	t.Helper()
	entries, err := os.ReadDir(h.roots.Revisions)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("revision root has %d files, want 0", len(entries))
	}
}

func assertTags(t *testing.T, h *harness, container, filename string, want []string) {
	t.Helper()
	got, err := h.svc.Tags(context.Background(), container, filename)
	if err != nil {
		t.Fatalf("Tags() error = %v", err)
	}
	if !slices.Equal(got, want) {
		t.Errorf("Tags() = %v, want %v", got, want)
	}
}
