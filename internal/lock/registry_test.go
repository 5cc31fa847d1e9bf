package lock_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"docvault/internal/lock"
)

func TestKey_Less(t *testing.T) {
	tests := []struct {
		name string
		a, b lock.Key
		want bool
	}{
		{"container id first", lock.Key{ContainerID: "a", Name: "z"}, lock.Key{ContainerID: "b", Name: "a"}, true},
		{"then name", lock.Key{ContainerID: "a", Name: "x"}, lock.Key{ContainerID: "a", Name: "y"}, true},
		{"equal", lock.Key{ContainerID: "a", Name: "x"}, lock.Key{ContainerID: "a", Name: "x"}, false},
		{"greater", lock.Key{ContainerID: "b", Name: "a"}, lock.Key{ContainerID: "a", Name: "z"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Less(tt.b); got != tt.want {
				t.Errorf("Less() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRegistry_EvictsUnusedEntries(t *testing.T) {
	r := lock.NewRegistry()
	ctx := context.Background()

	rel, err := r.Items(ctx, lock.Key{ContainerID: "c1", Name: "b.txt"}, lock.Key{ContainerID: "c1", Name: "a.txt"}, lock.Key{ContainerID: "c1", Name: "a.txt"})
	if err != nil {
		t.Fatalf("Items() error = %v", err)
	}
	if c, i := r.Len(); c != 1 || i != 2 {
		t.Errorf("Len() while held = (%d, %d), want (1, 2)", c, i)
	}

	rel()
	rel()
	if c, i := r.Len(); c != 0 || i != 0 {
		t.Errorf("Len() after release = (%d, %d), want (0, 0)", c, i)
	}
}

func TestRegistry_ContainerWriteExcludesItems(t *testing.T) {
	r := lock.NewRegistry()

	w, err := r.Container(context.Background(), "c1", lock.Write)
	if err != nil {
		t.Fatalf("Container() error = %v", err)
	}

	if _, err := r.Items(shortContext(t), lock.Key{ContainerID: "c1", Name: "a.txt"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Items() under container write error = %v, want deadline exceeded", err)
	}
	if _, err := r.Items(shortContext(t), lock.Key{ContainerID: "c2", Name: "a.txt"}); err != nil {
		t.Errorf("Items() on another container error = %v", err)
	}
	w()

	rel, err := r.Items(shortContext(t), lock.Key{ContainerID: "c1", Name: "a.txt"})
	if err != nil {
		t.Fatalf("Items() after write release error = %v", err)
	}
	rel()
}

func TestRegistry_FailedAcquisitionReleasesHeldLocks(t *testing.T) {
	r := lock.NewRegistry()
	ctx := context.Background()
	first := lock.Key{ContainerID: "c1", Name: "a.txt"}
	second := lock.Key{ContainerID: "c2", Name: "b.txt"}

	blocker, err := r.Item(ctx, second)
	if err != nil {
		t.Fatalf("Item() error = %v", err)
	}

	if _, err := r.Items(shortContext(t), second, first); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Items() error = %v, want deadline exceeded", err)
	}
	blocker()

	if c, i := r.Len(); c != 0 || i != 0 {
		t.Errorf("Len() after failed acquisition = (%d, %d), want (0, 0)", c, i)
	}

	// Both containers must be free for a writer again.
	for _, id := range []string{"c1", "c2"} {
		w, err := r.Container(shortContext(t), id, lock.Write)
		if err != nil {
			t.Fatalf("Container(%s, Write) error = %v", id, err)
		}
		w()
	}
}

func TestRegistry_OppositeOrderDoesNotDeadlock(t *testing.T) {
	r := lock.NewRegistry()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := lock.Key{ContainerID: "c1", Name: "a.txt"}
	b := lock.Key{ContainerID: "c2", Name: "b.txt"}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < 8; i++ {
		keys := []lock.Key{a, b}
		if i%2 == 1 {
			keys = []lock.Key{b, a}
		}
		g.Go(func() error {
			for j := 0; j < 200; j++ {
				rel, err := r.Items(ctx, keys...)
				if err != nil {
					return err
				}
				rel()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("opposite-order acquisition error = %v", err)
	}
}

func TestRegistry_RandomMovesWithContainerWriters(t *testing.T) {
	r := lock.NewRegistry()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	containers := []string{"c1", "c2", "c3"}
	names := []string{"a", "b", "c"}

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < 6; w++ {
		g.Go(func() error {
			for i := 0; i < 100; i++ {
				src := lock.Key{ContainerID: containers[rand.IntN(3)], Name: names[rand.IntN(3)]}
				dst := lock.Key{ContainerID: containers[rand.IntN(3)], Name: names[rand.IntN(3)]}
				rel, err := r.Items(ctx, src, dst)
				if err != nil {
					return fmt.Errorf("moving %v to %v: %w", src, dst, err)
				}
				rel()
			}
			return nil
		})
	}
	g.Go(func() error {
		for i := 0; i < 50; i++ {
			rel, err := r.Container(ctx, containers[i%3], lock.Write)
			if err != nil {
				return err
			}
			rel()
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		t.Fatalf("stress error = %v", err)
	}
	if c, i := r.Len(); c != 0 || i != 0 {
		t.Errorf("Len() after stress = (%d, %d), want (0, 0)", c, i)
	}
}

func TestRegistry_ItemLockSerializesHolders(t *testing.T) {
	r := lock.NewRegistry()
	key := lock.Key{ContainerID: "c1", Name: "a.txt"}

	counter := 0
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 10; i++ {
		g.Go(func() error {
			for j := 0; j < 50; j++ {
				rel, err := r.Items(ctx, key)
				if err != nil {
					return err
				}
				v := counter
				time.Sleep(time.Microsecond)
				counter = v + 1
				rel()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Items() error = %v", err)
	}
	if counter != 500 {
		t.Errorf("counter = %d, want 500", counter)
	}
}
