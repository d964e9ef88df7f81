package buffer

import (
	"errors"
	"fmt"
	"time"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/ubershader/gpucore"
)

// Buffer errors.
var (
	// ErrNotAllocated is returned when operating on a buffer without storage.
	ErrNotAllocated = errors.New("buffer: not allocated")

	// ErrInvalidSize is returned when the requested byte size is zero or negative.
	ErrInvalidSize = errors.New("buffer: invalid buffer size")

	// ErrNotLocked is returned by Unlock and element accessors outside a lock.
	ErrNotLocked = errors.New("buffer: not locked")

	// ErrLocked is returned when an operation needs the buffer to be unlocked.
	ErrLocked = errors.New("buffer: buffer is locked")

	// ErrDeviceLost is returned when device storage was backed up and has
	// not been restored yet.
	ErrDeviceLost = errors.New("buffer: device storage lost")

	// ErrOutOfRange is returned when an element index or byte range is out of bounds.
	ErrOutOfRange = errors.New("buffer: out of range")
)

// DeviceBuffer is the storage core shared by vertex, index and uniform buffers.
//
// Storage lives in host memory for [gpucore.UsageSoftware] buffers and in a
// HAL buffer otherwise. Managed device buffers also keep a host shadow copy;
// locks operate on the shadow and the next [DeviceBuffer.Upload] pushes it to
// the device. Unmanaged device buffers are never mapped: a lock reads them
// back through a staging buffer and the outermost Unlock after a write lock
// queues the bytes back.
//
// Locks nest. Every Lock must be paired with an Unlock. DeviceBuffer is not
// safe for concurrent use.
type DeviceBuffer struct {
	ctx   *gpucore.Context
	kind  gpucore.BufferKind
	label string

	stride  int
	count   int
	size    int
	usage   gpucore.Usage
	managed bool

	allocated bool
	host      []byte
	device    hal.Buffer
	dirty     bool

	backup []byte
	lost   bool

	lockCount  int
	lockMode   gpucore.LockMode
	lockWrites bool
	locked     []byte
	staged     bool
	lockStart  time.Time

	// relayout is called after every successful allocation so owners can
	// rebuild their offset tables.
	relayout func()
}

func (b *DeviceBuffer) init(ctx *gpucore.Context, kind gpucore.BufferKind, label string, stride int) {
	b.ctx = ctx
	b.kind = kind
	b.label = label
	b.stride = stride
	ctx.Register(b)
}

// Label returns the debug label.
func (b *DeviceBuffer) Label() string { return b.label }

// Count returns the number of allocated elements.
func (b *DeviceBuffer) Count() int { return b.count }

// Stride returns the size of one element in bytes.
func (b *DeviceBuffer) Stride() int { return b.stride }

// Size returns the allocated size in bytes.
func (b *DeviceBuffer) Size() int { return b.size }

// Usage returns the usage class of the current allocation.
func (b *DeviceBuffer) Usage() gpucore.Usage { return b.usage }

// Managed reports whether a host shadow copy is kept.
func (b *DeviceBuffer) Managed() bool { return b.managed }

// IsAllocated reports whether the buffer owns storage.
func (b *DeviceBuffer) IsAllocated() bool { return b.allocated }

// IsLocked reports whether at least one lock is held.
func (b *DeviceBuffer) IsLocked() bool { return b.lockCount > 0 }

// LockCount returns the current lock nesting depth.
func (b *DeviceBuffer) LockCount() int { return b.lockCount }

// LockMode returns the mode of the outermost lock.
func (b *DeviceBuffer) LockMode() gpucore.LockMode { return b.lockMode }

// Dirty reports whether the host shadow has changes not yet uploaded.
func (b *DeviceBuffer) Dirty() bool { return b.dirty }

// Handle returns the device storage, or nil for software buffers and while
// device storage is lost.
func (b *DeviceBuffer) Handle() hal.Buffer { return b.device }

// Data returns the locked bytes, or nil if the buffer is not locked.
func (b *DeviceBuffer) Data() []byte { return b.locked }

// Allocate (re)sizes the buffer to elementCount elements.
//
// It is a no-op when count, usage and managed already match the current
// allocation. With keepData the old bytes are carried over, truncated or
// zero-padded to the new size. On failure the previous allocation is left
// untouched.
func (b *DeviceBuffer) Allocate(elementCount int, usage gpucore.Usage, managed, keepData bool) error {
	size := elementCount * b.stride
	if b.allocated && elementCount == b.count && usage == b.usage && managed == b.managed && size == b.size {
		return nil
	}
	if size <= 0 {
		return fmt.Errorf("%w: %d elements of %d bytes", ErrInvalidSize, elementCount, b.stride)
	}
	if b.lockCount > 0 {
		return ErrLocked
	}

	var old []byte
	if keepData && b.allocated {
		var err error
		if old, err = b.readAll(); err != nil {
			return fmt.Errorf("buffer: keep data: %w", err)
		}
	}

	host, device, err := b.createStorage(size, usage, managed)
	if err != nil {
		return err
	}

	b.releaseStorage()
	b.host = host
	b.device = device
	b.count = elementCount
	b.size = size
	b.usage = usage
	b.managed = managed
	b.allocated = true
	b.dirty = false
	b.backup = nil
	b.lost = false
	b.ctx.Stats().BufferAllocated(b.kind, size)

	if old != nil {
		if err := b.writeAll(old); err != nil {
			gpucore.Logger().Warn("buffer: restoring kept data failed", "label", b.label, "err", err)
		}
	}
	if b.relayout != nil {
		b.relayout()
	}
	gpucore.Logger().Debug("buffer: allocated",
		"label", b.label, "kind", b.kind, "elements", elementCount, "bytes", size, "usage", usage, "managed", managed)
	return nil
}

// Lock grants access to the buffer bytes. Nested locks return the same slice
// without reading the device again.
func (b *DeviceBuffer) Lock(mode gpucore.LockMode) ([]byte, error) {
	if !b.allocated {
		return nil, ErrNotAllocated
	}
	if b.lockCount > 0 {
		b.lockCount++
		b.lockWrites = b.lockWrites || mode.Writes()
		return b.locked, nil
	}
	if b.lost && b.host == nil {
		return nil, ErrDeviceLost
	}

	b.lockCount = 1
	switch {
	case b.host != nil:
		b.locked = b.host
	default:
		data, err := b.readDevice()
		if err != nil {
			b.lockCount = 0
			return nil, err
		}
		b.locked = data
		b.staged = true
	}
	b.lockMode = mode
	b.lockWrites = mode.Writes()
	b.lockStart = time.Now()
	b.ctx.Stats().BufferLocked()
	return b.locked, nil
}

// Unlock releases one lock. If any lock in the sequence allowed writes, the
// outermost Unlock writes staged bytes back to device storage or marks a
// managed shadow dirty.
func (b *DeviceBuffer) Unlock() error {
	if b.lockCount == 0 {
		return ErrNotLocked
	}
	b.lockCount--
	if b.lockCount > 0 {
		return nil
	}

	var err error
	if b.staged {
		if b.lockWrites && b.device != nil {
			if werr := b.ctx.Queue().WriteBuffer(b.device, 0, b.locked[:cap(b.locked)]); werr != nil {
				err = fmt.Errorf("buffer: write back %q: %w", b.label, werr)
			}
		}
		b.staged = false
	} else if b.lockWrites && b.device != nil {
		b.dirty = true
	}
	b.ctx.Stats().BufferUnlocked(time.Since(b.lockStart))
	b.locked = nil
	b.lockWrites = false
	return err
}

// Clear releases all storage and resets the buffer to empty. Outstanding
// locks are dropped.
func (b *DeviceBuffer) Clear() error {
	if !b.allocated {
		return ErrNotAllocated
	}
	if b.lockCount > 0 {
		b.lockCount = 1
		if err := b.Unlock(); err != nil {
			gpucore.Logger().Warn("buffer: force unlock failed", "label", b.label, "err", err)
		}
	}
	b.releaseStorage()
	b.count = 0
	b.size = 0
	b.usage = gpucore.UsageStatic
	b.managed = false
	b.allocated = false
	b.dirty = false
	b.backup = nil
	b.lost = false
	return nil
}

// Release clears the buffer and removes it from device backup/restore.
func (b *DeviceBuffer) Release() {
	if b.allocated {
		_ = b.Clear()
	}
	b.ctx.Unregister(b)
}

// Upload pushes a dirty host shadow to device storage. It does nothing for
// software buffers and clean shadows.
func (b *DeviceBuffer) Upload() error {
	if !b.dirty || b.device == nil || b.host == nil {
		return nil
	}
	if b.lockCount > 0 {
		return ErrLocked
	}
	if err := b.ctx.Queue().WriteBuffer(b.device, 0, b.host[:cap(b.host)]); err != nil {
		return fmt.Errorf("buffer: upload %q: %w", b.label, err)
	}
	b.dirty = false
	return nil
}

// BackupDeviceData snapshots device-only bytes and destroys device storage.
// Managed buffers need no snapshot because the host shadow survives.
func (b *DeviceBuffer) BackupDeviceData() error {
	if !b.allocated || b.device == nil {
		return nil
	}
	if b.lockCount > 0 {
		gpucore.Logger().Warn("buffer: backing up a locked buffer", "label", b.label, "locks", b.lockCount)
		b.lockCount = 1
		_ = b.Unlock()
	}
	var err error
	if b.host == nil {
		if b.backup, err = b.readDevice(); err != nil {
			err = fmt.Errorf("buffer: backup %q: %w", b.label, err)
		}
	}
	b.ctx.Device().DestroyBuffer(b.device)
	b.device = nil
	b.lost = true
	return err
}

// RestoreDeviceData recreates device storage on the context's current device.
// A snapshot is written back; without one, managed buffers are marked dirty
// so the next Upload refills the device copy.
func (b *DeviceBuffer) RestoreDeviceData() error {
	if !b.lost {
		return nil
	}
	device, err := b.createDevice(b.size)
	if err != nil {
		return err
	}
	b.device = device
	b.lost = false
	switch {
	case b.backup != nil:
		data := b.backup
		b.backup = nil
		if err := b.ctx.Queue().WriteBuffer(device, 0, padTo(data, b.alignedSize(b.size))); err != nil {
			return fmt.Errorf("buffer: restore %q: %w", b.label, err)
		}
	case b.managed:
		b.dirty = true
	}
	return nil
}

// alignment returns the device size alignment for the buffer kind.
func (b *DeviceBuffer) alignment() int {
	if b.kind == gpucore.BufferUniform {
		return 16
	}
	return 4
}

func (b *DeviceBuffer) alignedSize(size int) int {
	a := b.alignment()
	return (size + a - 1) / a * a
}

// halUsage returns the device usage for the buffer kind. Map usages are only
// valid next to the matching copy usage, so device buffers are never mappable
// and host access goes through staging.
func (b *DeviceBuffer) halUsage() gputypes.BufferUsage {
	u := gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc
	switch b.kind {
	case gpucore.BufferVertex:
		u |= gputypes.BufferUsageVertex
	case gpucore.BufferIndex:
		u |= gputypes.BufferUsageIndex
	case gpucore.BufferUniform:
		u |= gputypes.BufferUsageUniform
	}
	return u
}

func (b *DeviceBuffer) createDevice(size int) (hal.Buffer, error) {
	buf, err := b.ctx.Device().CreateBuffer(&hal.BufferDescriptor{
		Label: b.label,
		Size:  uint64(b.alignedSize(size)),
		Usage: b.halUsage(),
	})
	if err != nil {
		return nil, fmt.Errorf("buffer: create %q: %w", b.label, err)
	}
	return buf, nil
}

// createStorage allocates storage for a new allocation without touching the
// current one.
func (b *DeviceBuffer) createStorage(size int, usage gpucore.Usage, managed bool) ([]byte, hal.Buffer, error) {
	if usage == gpucore.UsageSoftware {
		return make([]byte, size, b.alignedSize(size)), nil, nil
	}
	device, err := b.createDevice(size)
	if err != nil {
		return nil, nil, err
	}
	var host []byte
	if managed {
		host = make([]byte, size, b.alignedSize(size))
	}
	return host, device, nil
}

func (b *DeviceBuffer) releaseStorage() {
	if !b.allocated {
		return
	}
	if b.device != nil {
		b.ctx.Device().DestroyBuffer(b.device)
		b.device = nil
	}
	b.host = nil
	b.ctx.Stats().BufferReleased(b.kind, b.size)
}

// readDevice copies device storage into a new host slice through a
// MapRead staging buffer. It waits for the device to go idle.
func (b *DeviceBuffer) readDevice() ([]byte, error) {
	if b.device == nil {
		return nil, ErrDeviceLost
	}
	dev := b.ctx.Device()
	size := uint64(b.alignedSize(b.size))
	staging, err := dev.CreateBuffer(&hal.BufferDescriptor{
		Label: b.label + " readback",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("buffer: create staging for %q: %w", b.label, err)
	}
	defer dev.DestroyBuffer(staging)

	encoder, err := dev.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: b.label + " readback"})
	if err != nil {
		return nil, fmt.Errorf("buffer: readback %q: %w", b.label, err)
	}
	if err := encoder.BeginEncoding(b.label + " readback"); err != nil {
		encoder.DiscardEncoding()
		return nil, fmt.Errorf("buffer: readback %q: %w", b.label, err)
	}
	encoder.CopyBufferToBuffer(b.device, staging, []hal.BufferCopy{{Size: size}})
	cmd, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("buffer: readback %q: %w", b.label, err)
	}
	defer dev.FreeCommandBuffer(cmd)
	if _, err := b.ctx.Queue().Submit([]hal.CommandBuffer{cmd}); err != nil {
		return nil, fmt.Errorf("buffer: readback %q: %w", b.label, err)
	}
	if err := dev.WaitIdle(); err != nil {
		return nil, fmt.Errorf("buffer: readback %q: %w", b.label, err)
	}

	m, err := dev.MapBuffer(staging, 0, size)
	if err != nil {
		return nil, fmt.Errorf("buffer: map staging for %q: %w", b.label, err)
	}
	out := make([]byte, b.size, size)
	copy(out[:size], unsafe.Slice((*byte)(m.Ptr), size))
	if err := dev.UnmapBuffer(staging); err != nil {
		return nil, fmt.Errorf("buffer: unmap staging for %q: %w", b.label, err)
	}
	return out, nil
}

// readAll copies the current contents out of an unlocked buffer.
func (b *DeviceBuffer) readAll() ([]byte, error) {
	data, err := b.Lock(gpucore.LockReadOnly)
	if err != nil {
		return nil, err
	}
	out := append([]byte(nil), data...)
	return out, b.Unlock()
}

// writeAll copies src into the start of an unlocked buffer.
func (b *DeviceBuffer) writeAll(src []byte) error {
	return b.WithLock(gpucore.LockWriteOnly, func(dst []byte) error {
		copy(dst, src)
		return nil
	})
}

func padTo(data []byte, n int) []byte {
	if len(data) >= n {
		return data
	}
	out := make([]byte, n)
	copy(out, data)
	return out
}
