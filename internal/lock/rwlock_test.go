package lock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"docvault/internal/lock"
)

func shortContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	t.Cleanup(cancel)
	return ctx
}

func TestRWLock_Readers(t *testing.T) {
	l := lock.NewRWLock()
	ctx := context.Background()

	r1, err := l.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	r2, err := l.Read(ctx)
	if err != nil {
		t.Fatalf("second Read() error = %v", err)
	}

	if _, err := l.Write(shortContext(t)); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Write() while readers hold error = %v, want deadline exceeded", err)
	}

	r1()
	r2()

	w, err := l.Write(ctx)
	if err != nil {
		t.Fatalf("Write() after readers released error = %v", err)
	}
	w()
}

func TestRWLock_WriterExcludesReaders(t *testing.T) {
	l := lock.NewRWLock()

	w, err := l.Write(context.Background())
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if _, err := l.Read(shortContext(t)); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Read() while writer holds error = %v, want deadline exceeded", err)
	}
	if _, err := l.Write(shortContext(t)); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Write() while writer holds error = %v, want deadline exceeded", err)
	}
	w()
}

func TestRWLock_WriterPreference(t *testing.T) {
	l := lock.NewRWLock()
	ctx := context.Background()

	reader, err := l.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	acquired := make(chan lock.Release)
	go func() {
		w, err := l.Write(ctx)
		if err != nil {
			close(acquired)
			return
		}
		acquired <- w
	}()

	// Give the writer time to queue behind the reader.
	time.Sleep(50 * time.Millisecond)

	if _, err := l.Read(shortContext(t)); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Read() with a waiting writer error = %v, want deadline exceeded", err)
	}

	select {
	case <-acquired:
		t.Fatal("writer acquired while a reader still holds the lock")
	default:
	}

	reader()

	var w lock.Release
	select {
	case w = <-acquired:
	case <-time.After(5 * time.Second):
		t.Fatal("writer did not acquire after the reader released")
	}
	if w == nil {
		t.Fatal("writer failed to acquire")
	}
	w()

	r, err := l.Read(shortContext(t))
	if err != nil {
		t.Fatalf("Read() after writer released error = %v", err)
	}
	r()
}

func TestRWLock_CancelledWaitLeavesLockUntouched(t *testing.T) {
	l := lock.NewRWLock()

	w, err := l.Write(context.Background())
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Read(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Read() with cancelled context error = %v, want canceled", err)
	}
	w()

	for i := 0; i < 3; i++ {
		r, err := l.Read(shortContext(t))
		if err != nil {
			t.Fatalf("Read() %d after cancelled waiter error = %v", i, err)
		}
		r()
	}
	w2, err := l.Write(shortContext(t))
	if err != nil {
		t.Fatalf("Write() after cancelled waiter error = %v", err)
	}
	w2()
}

func TestRWLock_ReleaseIsIdempotent(t *testing.T) {
	l := lock.NewRWLock()

	r, err := l.Read(context.Background())
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	r()
	r()

	w, err := l.Write(shortContext(t))
	if err != nil {
		t.Fatalf("Write() after double release error = %v", err)
	}
	w()
	w()
}

func TestMutex(t *testing.T) {
	m := lock.NewMutex()

	rel, err := m.Lock(context.Background())
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	if _, err := m.Lock(shortContext(t)); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("second Lock() error = %v, want deadline exceeded", err)
	}
	rel()

	rel, err = m.Lock(shortContext(t))
	if err != nil {
		t.Fatalf("Lock() after release error = %v", err)
	}
	rel()
}
