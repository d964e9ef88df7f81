package buffer

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/ubershader/gpucore"
)

// IndexType is the element type of an index buffer.
type IndexType int

// Index element types.
const (
	Uint16 IndexType = iota
	Uint32
)

// String returns the string representation of IndexType.
func (t IndexType) String() string {
	switch t {
	case Uint16:
		return "Uint16"
	case Uint32:
		return "Uint32"
	default:
		return fmt.Sprintf("Unknown(%d)", int(t))
	}
}

// Size returns the size of one index in bytes.
func (t IndexType) Size() int {
	if t == Uint32 {
		return 4
	}
	return 2
}

// Format returns the matching index format.
func (t IndexType) Format() gputypes.IndexFormat {
	if t == Uint32 {
		return gputypes.IndexFormatUint32
	}
	return gputypes.IndexFormatUint16
}

// IndexBuffer is a device buffer of 16- or 32-bit indices.
type IndexBuffer struct {
	DeviceBuffer
	typ IndexType
}

// NewIndexBuffer creates an empty index buffer with 16-bit elements.
func NewIndexBuffer(ctx *gpucore.Context, label string) *IndexBuffer {
	ib := &IndexBuffer{typ: Uint16}
	ib.init(ctx, gpucore.BufferIndex, label, Uint16.Size())
	return ib
}

// ElementType returns the index element type.
func (ib *IndexBuffer) ElementType() IndexType { return ib.typ }

// Format returns the index format used when binding the buffer.
func (ib *IndexBuffer) Format() gputypes.IndexFormat { return ib.typ.Format() }

// SetElementType changes the element type. It fails while allocated.
func (ib *IndexBuffer) SetElementType(t IndexType) error {
	if t != Uint16 && t != Uint32 {
		return fmt.Errorf("buffer: invalid index type %v", t)
	}
	if ib.allocated {
		return fmt.Errorf("buffer: set index type: %w", errAllocated)
	}
	ib.typ = t
	ib.stride = t.Size()
	return nil
}

// SetElementTypeByMaximumIndex picks the smallest element type able to hold
// maxIndex.
func (ib *IndexBuffer) SetElementTypeByMaximumIndex(maxIndex uint32) error {
	if maxIndex > 0xFFFF {
		return ib.SetElementType(Uint32)
	}
	return ib.SetElementType(Uint16)
}

// Index reads element i. The buffer must be locked.
func (ib *IndexBuffer) Index(i int) (uint32, error) {
	data, err := ib.element(i)
	if err != nil {
		return 0, err
	}
	if ib.typ == Uint32 {
		return binary.LittleEndian.Uint32(data), nil
	}
	return uint32(binary.LittleEndian.Uint16(data)), nil
}

// SetIndex writes element i. The buffer must be locked.
func (ib *IndexBuffer) SetIndex(i int, v uint32) error {
	data, err := ib.element(i)
	if err != nil {
		return err
	}
	if ib.typ == Uint32 {
		binary.LittleEndian.PutUint32(data, v)
		return nil
	}
	if v > 0xFFFF {
		return fmt.Errorf("%w: index %d does not fit %v", ErrOutOfRange, v, ib.typ)
	}
	binary.LittleEndian.PutUint16(data, uint16(v))
	return nil
}

func (ib *IndexBuffer) element(i int) ([]byte, error) {
	if ib.locked == nil {
		return nil, ErrNotLocked
	}
	if i < 0 || i >= ib.count {
		return nil, fmt.Errorf("%w: index %d of %d", ErrOutOfRange, i, ib.count)
	}
	return ib.locked[i*ib.stride : (i+1)*ib.stride], nil
}
