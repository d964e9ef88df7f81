package buffer

import "github.com/gogpu/ubershader/gpucore"

// Guard is a scoped lock token. Release performs the matching Unlock exactly
// once, so it can be deferred right after LockScope succeeds:
//
//	g, err := vb.LockScope(gpucore.LockWriteOnly)
//	if err != nil {
//	    return err
//	}
//	defer g.Release()
type Guard struct {
	b        *DeviceBuffer
	data     []byte
	released bool
}

// LockScope locks the buffer and returns a guard owning that lock.
func (b *DeviceBuffer) LockScope(mode gpucore.LockMode) (*Guard, error) {
	data, err := b.Lock(mode)
	if err != nil {
		return nil, err
	}
	return &Guard{b: b, data: data}, nil
}

// Data returns the locked bytes, or nil after Release.
func (g *Guard) Data() []byte {
	if g.released {
		return nil
	}
	return g.data
}

// Release unlocks the buffer. Calls after the first are no-ops.
func (g *Guard) Release() error {
	if g == nil || g.released {
		return nil
	}
	g.released = true
	g.data = nil
	return g.b.Unlock()
}

// WithLock runs fn with the buffer locked in mode. The lock is released on
// every exit path, including a panic in fn. An unlock error is returned only
// when fn succeeded.
func (b *DeviceBuffer) WithLock(mode gpucore.LockMode, fn func(data []byte) error) (err error) {
	g, err := b.LockScope(mode)
	if err != nil {
		return err
	}
	defer func() {
		if uerr := g.Release(); err == nil {
			err = uerr
		}
	}()
	return fn(g.Data())
}
