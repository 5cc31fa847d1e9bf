package dv_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"docvault/internal/dv"
)

func TestService_Check(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.container(t, "docs")
	h.put(t, "docs", "a.txt", []byte("hello"))
	res := h.put(t, "docs", "a.txt", []byte("world"))
	h.put(t, "docs", "b.txt", []byte("bytes"))

	problems, err := h.svc.Check(ctx, dv.CheckOptions{})
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if len(problems) != 0 {
		t.Fatalf("Check() on a clean vault = %v, want none", problems)
	}

	if err := os.WriteFile(h.head("docs", "a.txt"), []byte("WORLD"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(h.head("docs", "b.txt"), []byte("longer bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(h.revision(res.Revision.UUID)); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"stray.txt", ".DS_Store"} {
		if err := os.WriteFile(filepath.Join(h.roots.Items, "docs", name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	problems, err = h.svc.Check(ctx, dv.CheckOptions{
		Ignore: func(rel string) bool { return rel == ".DS_Store" },
	})
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}

	got := make(map[string]string)
	for _, p := range problems {
		got[filepath.Base(p.Path)] = p.Kind
	}
	want := map[string]string{
		"a.txt":           "checksum",
		"b.txt":           "size",
		res.Revision.UUID: "missing",
		"stray.txt":       "untracked",
	}
	if len(got) != len(want) {
		t.Errorf("Check() = %v, want %d problems", problems, len(want))
	}
	for name, kind := range want {
		if got[name] != kind {
			t.Errorf("problem for %s = %q, want %q", name, got[name], kind)
		}
	}
}

func TestService_CheckMissingContainerDirectory(t *testing.T) {
	h := newHarness(t)
	h.container(t, "docs")
	if err := os.Remove(filepath.Join(h.roots.Items, "docs")); err != nil {
		t.Fatal(err)
	}

	problems, err := h.svc.Check(context.Background(), dv.CheckOptions{})
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if len(problems) != 1 || problems[0].Kind != "missing" {
		t.Errorf("Check() = %v, want one missing directory", problems)
	}
}
