package buffer

import (
	"fmt"

	"github.com/gogpu/ubershader/gpucore"
)

// UniformBuffer is a byte-addressed device buffer backing a uniform block.
type UniformBuffer struct {
	DeviceBuffer
}

// NewUniformBuffer creates an empty uniform buffer. Its element size is one
// byte, so Allocate takes a byte count.
func NewUniformBuffer(ctx *gpucore.Context, label string) *UniformBuffer {
	ub := &UniformBuffer{}
	ub.init(ctx, gpucore.BufferUniform, label, 1)
	return ub
}

// Write copies data to offset.
func (ub *UniformBuffer) Write(offset int, data []byte) error {
	if offset < 0 || offset+len(data) > ub.size {
		return fmt.Errorf("%w: write [%d,%d) of %d bytes", ErrOutOfRange, offset, offset+len(data), ub.size)
	}
	return ub.WithLock(gpucore.LockWriteOnly, func(dst []byte) error {
		copy(dst[offset:], data)
		return nil
	})
}

// Read returns a copy of n bytes at offset.
func (ub *UniformBuffer) Read(offset, n int) ([]byte, error) {
	if offset < 0 || n < 0 || offset+n > ub.size {
		return nil, fmt.Errorf("%w: read [%d,%d) of %d bytes", ErrOutOfRange, offset, offset+n, ub.size)
	}
	out := make([]byte, n)
	err := ub.WithLock(gpucore.LockReadOnly, func(src []byte) error {
		copy(out, src[offset:offset+n])
		return nil
	})
	return out, err
}
