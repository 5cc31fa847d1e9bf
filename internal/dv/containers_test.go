package dv_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"docvault/internal/dv"
	"docvault/internal/testutil"
)

func TestService_CreateContainer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	c := h.container(t, "docs")
	if c.Owner != "alice" || c.Name != "docs" {
		t.Errorf("container = %+v", c)
	}
	info, err := os.Stat(filepath.Join(h.roots.Items, "docs"))
	if err != nil || !info.IsDir() {
		t.Fatalf("container directory missing: %v", err)
	}

	tests := []struct {
		name    string
		params  dv.NewContainer
		wantErr error
	}{
		{name: "duplicate", params: dv.NewContainer{Owner: "bob", Name: "docs"}, wantErr: dv.ErrConflict},
		{name: "empty name", params: dv.NewContainer{Owner: "bob"}, wantErr: dv.ErrValidation},
		{name: "dot name", params: dv.NewContainer{Owner: "bob", Name: ".."}, wantErr: dv.ErrValidation},
		{name: "no owner", params: dv.NewContainer{Name: "other"}, wantErr: dv.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := h.svc.CreateContainer(ctx, tt.params); !errors.Is(err, tt.wantErr) {
				t.Errorf("CreateContainer() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	t.Run("leftover directory", func(t *testing.T) {
		if err := os.Mkdir(filepath.Join(h.roots.Items, "orphan"), 0o755); err != nil {
			t.Fatal(err)
		}
		if _, err := h.svc.CreateContainer(ctx, dv.NewContainer{Owner: "bob", Name: "orphan"}); !errors.Is(err, dv.ErrConflict) {
			t.Errorf("CreateContainer() error = %v, want ErrConflict", err)
		}
		if _, err := h.svc.GetContainer(ctx, "orphan"); !errors.Is(err, dv.ErrNotFound) {
			t.Errorf("GetContainer() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("commit failure removes directory", func(t *testing.T) {
		h.catalog.FailCommits(1)
		if _, err := h.svc.CreateContainer(ctx, dv.NewContainer{Owner: "bob", Name: "fresh"}); !errors.Is(err, testutil.ErrInjected) {
			t.Fatalf("CreateContainer() error = %v, want ErrInjected", err)
		}
		if _, err := os.Stat(filepath.Join(h.roots.Items, "fresh")); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("directory left behind: %v", err)
		}
	})
}

func TestService_ListContainers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.container(t, "b")
	h.container(t, "a")
	if _, err := h.svc.CreateContainer(ctx, dv.NewContainer{Owner: "bob", Name: "c"}); err != nil {
		t.Fatal(err)
	}

	all, err := h.svc.ListContainers(ctx, "")
	if err != nil {
		t.Fatalf("ListContainers() error = %v", err)
	}
	if len(all) != 3 || all[0].Name != "a" || all[1].Name != "b" {
		t.Errorf("ListContainers(\"\") = %d containers, want a, b, c", len(all))
	}
	bobs, err := h.svc.ListContainers(ctx, "bob")
	if err != nil {
		t.Fatalf("ListContainers() error = %v", err)
	}
	if len(bobs) != 1 || bobs[0].Name != "c" {
		t.Errorf("ListContainers(bob) = %d containers, want c", len(bobs))
	}
}

func TestService_RenameContainer(t *testing.T) {
	t.Run("moves directory and keeps items readable", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		h.container(t, "docs")
		h.put(t, "docs", "a.txt", []byte("hello"))
		if _, _, err := h.svc.ReadItem(ctx, "docs", "a.txt"); err != nil {
			t.Fatal(err)
		}

		name := "papers"
		c, err := h.svc.UpdateContainer(ctx, "docs", dv.ContainerUpdate{Name: &name})
		if err != nil {
			t.Fatalf("UpdateContainer() error = %v", err)
		}
		if c.Name != name {
			t.Errorf("Name = %q, want %q", c.Name, name)
		}
		if _, err := os.Stat(filepath.Join(h.roots.Items, "docs")); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("old directory still exists: %v", err)
		}
		data, _, err := h.svc.ReadItem(ctx, "papers", "a.txt")
		if err != nil {
			t.Fatalf("ReadItem() error = %v", err)
		}
		if string(data) != "hello" {
			t.Errorf("ReadItem() = %q, want hello", data)
		}
		if _, err := h.svc.GetContainer(ctx, "docs"); !errors.Is(err, dv.ErrNotFound) {
			t.Errorf("GetContainer(docs) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("name taken", func(t *testing.T) {
		h := newHarness(t)
		h.container(t, "docs")
		h.container(t, "taken")

		name := "taken"
		if _, err := h.svc.UpdateContainer(context.Background(), "docs", dv.ContainerUpdate{Name: &name}); !errors.Is(err, dv.ErrConflict) {
			t.Errorf("UpdateContainer() error = %v, want ErrConflict", err)
		}
	})

	t.Run("readonly", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		if _, err := h.svc.CreateContainer(ctx, dv.NewContainer{Owner: "alice", Name: "frozen", Readonly: true}); err != nil {
			t.Fatal(err)
		}

		name := "thawed"
		if _, err := h.svc.UpdateContainer(ctx, "frozen", dv.ContainerUpdate{Name: &name}); !errors.Is(err, dv.ErrReadonly) {
			t.Fatalf("UpdateContainer() error = %v, want ErrReadonly", err)
		}

		off := false
		c, err := h.svc.UpdateContainer(ctx, "frozen", dv.ContainerUpdate{Name: &name, Readonly: &off})
		if err != nil {
			t.Fatalf("UpdateContainer() clearing readonly error = %v", err)
		}
		if c.Readonly || c.Name != name {
			t.Errorf("container = %+v, want writable %q", c, name)
		}
	})

	t.Run("commit failure moves directory back", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		h.container(t, "docs")
		h.put(t, "docs", "a.txt", []byte("hello"))
		h.catalog.FailCommits(1)

		name := "papers"
		if _, err := h.svc.UpdateContainer(ctx, "docs", dv.ContainerUpdate{Name: &name}); !errors.Is(err, testutil.ErrInjected) {
			t.Fatalf("UpdateContainer() error = %v, want ErrInjected", err)
		}
		assertHead(t, h, "docs", "a.txt", "hello")
		if _, err := os.Stat(filepath.Join(h.roots.Items, "papers")); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("new directory left behind: %v", err)
		}
	})

	t.Run("failed rename back keeps the commit error", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		h.container(t, "docs")
		h.put(t, "docs", "a.txt", []byte("hello"))
		newDir := filepath.Join(h.roots.Items, "papers")
		errRenameBack := errors.New("rename back failed")
		h.store.FailRename(func(src, _ string) error {
			if src == newDir {
				return errRenameBack
			}
			return nil
		})
		h.catalog.FailCommits(1)

		name := "papers"
		_, err := h.svc.UpdateContainer(ctx, "docs", dv.ContainerUpdate{Name: &name})
		if !errors.Is(err, testutil.ErrInjected) {
			t.Fatalf("UpdateContainer() error = %v, want ErrInjected", err)
		}
		if errors.Is(err, errRenameBack) {
			t.Errorf("UpdateContainer() error = %v, want the rename back failure hidden", err)
		}
		assertHead(t, h, "papers", "a.txt", "hello")
		if _, err := h.svc.GetContainer(ctx, "docs"); err != nil {
			t.Errorf("GetContainer(docs) error = %v, want the catalog unchanged", err)
		}
	})
}

func TestService_UpdateContainerMetadata(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.container(t, "docs")

	summary := "scans"
	on := true
	c, err := h.svc.UpdateContainer(ctx, "docs", dv.ContainerUpdate{Summary: &summary, Readonly: &on})
	if err != nil {
		t.Fatalf("UpdateContainer() error = %v", err)
	}
	if c.Summary != summary || !c.Readonly {
		t.Errorf("container = %+v, want readonly with summary", c)
	}
	if err := h.svc.DeleteContainer(ctx, "docs"); !errors.Is(err, dv.ErrReadonly) {
		t.Errorf("DeleteContainer() error = %v, want ErrReadonly", err)
	}
}

func TestService_DeleteContainer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.container(t, "docs")
	h.put(t, "docs", "a.txt", []byte("hello"))
	res := h.put(t, "docs", "a.txt", []byte("world"))
	h.put(t, "docs", "b.txt", []byte("other"))
	// A missing head does not block a container delete.
	if err := os.Remove(h.head("docs", "b.txt")); err != nil {
		t.Fatal(err)
	}

	if err := h.svc.DeleteContainer(ctx, "docs"); err != nil {
		t.Fatalf("DeleteContainer() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(h.roots.Items, "docs")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("container directory still exists: %v", err)
	}
	if h.exists(t, h.revision(res.Revision.UUID)) {
		t.Error("revision file still exists")
	}
	if _, err := h.svc.GetContainer(ctx, "docs"); !errors.Is(err, dv.ErrNotFound) {
		t.Errorf("GetContainer() error = %v, want ErrNotFound", err)
	}
	if err := h.svc.DeleteContainer(ctx, "docs"); !errors.Is(err, dv.ErrNotFound) {
		t.Errorf("second DeleteContainer() error = %v, want ErrNotFound", err)
	}
}
