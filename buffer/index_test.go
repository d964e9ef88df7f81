package buffer

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/ubershader/gpucore"
	"github.com/gogpu/ubershader/internal/gputest"
)

func TestIndexTypeByMaximumIndex(t *testing.T) {
	tests := []struct {
		max  uint32
		want IndexType
	}{
		{0, Uint16},
		{0xFFFF, Uint16},
		{0x10000, Uint32},
	}
	for _, tt := range tests {
		ctx := gputest.NewContext(t)
		ib := NewIndexBuffer(ctx, "ib")
		if err := ib.SetElementTypeByMaximumIndex(tt.max); err != nil {
			t.Fatal(err)
		}
		if ib.ElementType() != tt.want {
			t.Errorf("max %d: expected %v, got %v", tt.max, tt.want, ib.ElementType())
		}
		if ib.Stride() != tt.want.Size() {
			t.Errorf("max %d: expected stride %d, got %d", tt.max, tt.want.Size(), ib.Stride())
		}
	}
}

func TestIndexTypeChangeWhileAllocated(t *testing.T) {
	ctx := gputest.NewContext(t)
	ib := NewIndexBuffer(ctx, "ib")
	if err := ib.Allocate(6, gpucore.UsageStatic, true, false); err != nil {
		t.Fatal(err)
	}
	if err := ib.SetElementType(Uint32); err == nil {
		t.Fatal("expected SetElementType to fail while allocated")
	}
}

func TestIndexReadWrite(t *testing.T) {
	for _, typ := range []IndexType{Uint16, Uint32} {
		t.Run(typ.String(), func(t *testing.T) {
			ctx := gputest.NewContext(t)
			ib := NewIndexBuffer(ctx, "ib")
			if err := ib.SetElementType(typ); err != nil {
				t.Fatal(err)
			}
			if err := ib.Allocate(4, gpucore.UsageDynamic, false, false); err != nil {
				t.Fatal(err)
			}
			want := []uint32{0, 1, 2, 0xFFFF}
			err := ib.WithLock(gpucore.LockReadWrite, func([]byte) error {
				for i, v := range want {
					if err := ib.SetIndex(i, v); err != nil {
						return err
					}
				}
				for i, v := range want {
					got, err := ib.Index(i)
					if err != nil {
						return err
					}
					if got != v {
						t.Errorf("index %d: expected %d, got %d", i, v, got)
					}
				}
				if _, err := ib.Index(4); !errors.Is(err, ErrOutOfRange) {
					t.Errorf("expected ErrOutOfRange, got %v", err)
				}
				return nil
			})
			if err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestIndexOverflowUint16(t *testing.T) {
	ctx := gputest.NewContext(t)
	ib := NewIndexBuffer(ctx, "ib")
	if err := ib.Allocate(1, gpucore.UsageSoftware, false, false); err != nil {
		t.Fatal(err)
	}
	g, err := ib.LockScope(gpucore.LockWriteOnly)
	if err != nil {
		t.Fatal(err)
	}
	defer g.Release()
	if err := ib.SetIndex(0, 0x10000); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
}

func TestIndexFormat(t *testing.T) {
	if Uint16.Format() != gputypes.IndexFormatUint16 || Uint32.Format() != gputypes.IndexFormatUint32 {
		t.Error("unexpected index formats")
	}
}

func TestUniformWriteRead(t *testing.T) {
	ctx := gputest.NewContext(t)
	ub := newBytes(t, ctx, 16, gpucore.UsageDynamic, true)
	if err := ub.Write(4, []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	got, err := ub.Read(3, 5)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0, 1, 2, 3, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if err := ub.Write(14, []byte{1, 2, 3}); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
	if _, err := ub.Read(-1, 2); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
}
