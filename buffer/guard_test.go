package buffer

import (
	"errors"
	"testing"

	"github.com/gogpu/ubershader/gpucore"
	"github.com/gogpu/ubershader/internal/gputest"
)

func TestGuardReleaseOnce(t *testing.T) {
	ctx := gputest.NewContext(t)
	ub := newBytes(t, ctx, 4, gpucore.UsageSoftware, false)

	outer, err := ub.Lock(gpucore.LockReadOnly)
	if err != nil {
		t.Fatal(err)
	}
	g, err := ub.LockScope(gpucore.LockWriteOnly)
	if err != nil {
		t.Fatal(err)
	}
	if &g.Data()[0] != &outer[0] {
		t.Fatal("expected guard to share the locked slice")
	}
	if err := g.Release(); err != nil {
		t.Fatal(err)
	}
	if err := g.Release(); err != nil {
		t.Fatalf("expected second Release to be a no-op, got %v", err)
	}
	if g.Data() != nil {
		t.Error("expected nil data after Release")
	}
	if ub.LockCount() != 1 {
		t.Fatalf("expected outer lock to remain, got count %d", ub.LockCount())
	}
}

func TestGuardNotAllocated(t *testing.T) {
	ctx := gputest.NewContext(t)
	ub := NewUniformBuffer(ctx, "empty")
	if _, err := ub.LockScope(gpucore.LockReadOnly); !errors.Is(err, ErrNotAllocated) {
		t.Fatalf("expected ErrNotAllocated, got %v", err)
	}
}

func TestWithLockUnlocksOnError(t *testing.T) {
	ctx := gputest.NewContext(t)
	ub := newBytes(t, ctx, 4, gpucore.UsageSoftware, false)
	errBoom := errors.New("boom")
	err := ub.WithLock(gpucore.LockReadWrite, func([]byte) error { return errBoom })
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected errBoom, got %v", err)
	}
	if ub.IsLocked() {
		t.Fatal("expected buffer unlocked after failing callback")
	}
}

func TestWithLockUnlocksOnPanic(t *testing.T) {
	ctx := gputest.NewContext(t)
	ub := newBytes(t, ctx, 4, gpucore.UsageSoftware, false)
	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = ub.WithLock(gpucore.LockReadWrite, func([]byte) error { panic("boom") })
	}()
	if ub.IsLocked() {
		t.Fatal("expected buffer unlocked after panic")
	}
}
