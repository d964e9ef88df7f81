package gpucore

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"
)

// Context errors.
var (
	// ErrNilDevice is returned when a context is built without a device or queue.
	ErrNilDevice = errors.New("gpucore: device or queue is nil")

	// ErrNoHALProvider is returned when a device provider does not expose HAL types.
	ErrNoHALProvider = errors.New("gpucore: provider does not expose HAL device and queue")

	// ErrBackupInProgress is returned when BackupDeviceData is called twice
	// without an intervening RestoreDeviceData.
	ErrBackupInProgress = errors.New("gpucore: device backup already in progress")

	// ErrNoBackup is returned when RestoreDeviceData is called without a
	// preceding BackupDeviceData.
	ErrNoBackup = errors.New("gpucore: no device backup to restore")
)

// Resource is implemented by every object that owns device storage and has to
// survive a device reset.
type Resource interface {
	// BackupDeviceData snapshots whatever host-readable state is needed to
	// rebuild the device objects and then releases them.
	BackupDeviceData() error

	// RestoreDeviceData recreates device objects on the context's current
	// device and copies any snapshot back.
	RestoreDeviceData() error
}

// ContextOption configures a Context.
type ContextOption func(*contextOptions)

type contextOptions struct {
	stats *ResourceStats
	info  gpucontext.AdapterInfo
}

func defaultContextOptions() contextOptions {
	return contextOptions{
		info: gpucontext.AdapterInfo{Type: gpucontext.AdapterTypeUnknown},
	}
}

// WithStats makes the context report into s instead of a private sink.
func WithStats(s *ResourceStats) ContextOption {
	return func(o *contextOptions) {
		o.stats = s
	}
}

// WithAdapterInfo records adapter metadata for diagnostics.
func WithAdapterInfo(info gpucontext.AdapterInfo) ContextOption {
	return func(o *contextOptions) {
		o.info = info
	}
}

// Context is the device context every buffer, shader and program is created on.
//
// Context is not safe for concurrent rendering. The resource list is guarded
// so that resources may be released from finalizers or other goroutines.
type Context struct {
	device hal.Device
	queue  hal.Queue
	stats  *ResourceStats
	info   gpucontext.AdapterInfo

	mu        sync.Mutex
	resources []Resource
	backedUp  bool
}

// NewContext creates a context on an already opened HAL device and queue.
func NewContext(device hal.Device, queue hal.Queue, opts ...ContextOption) (*Context, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	o := defaultContextOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.stats == nil {
		o.stats = &ResourceStats{}
	}
	return &Context{
		device: device,
		queue:  queue,
		stats:  o.stats,
		info:   o.info,
	}, nil
}

// FromProvider creates a context sharing the device of an external provider.
// The provider must also implement HalDevice() any and HalQueue() any
// returning hal.Device and hal.Queue.
func FromProvider(provider gpucontext.DeviceProvider, opts ...ContextOption) (*Context, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHALProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("gpucore: provider HalDevice is not hal.Device: %w", ErrNoHALProvider)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("gpucore: provider HalQueue is not hal.Queue: %w", ErrNoHALProvider)
	}
	opts = append([]ContextOption{WithAdapterInfo(provider.AdapterInfo())}, opts...)
	return NewContext(device, queue, opts...)
}

// Device returns the current HAL device.
func (c *Context) Device() hal.Device { return c.device }

// Queue returns the current HAL queue.
func (c *Context) Queue() hal.Queue { return c.queue }

// Stats returns the statistics sink owned by the context.
func (c *Context) Stats() *ResourceStats { return c.stats }

// AdapterInfo returns the adapter metadata the context was created with.
func (c *Context) AdapterInfo() gpucontext.AdapterInfo { return c.info }

// Register adds r to the backup/restore list. Registering the same resource
// twice has no effect.
func (c *Context) Register(r Resource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, x := range c.resources {
		if x == r {
			return
		}
	}
	c.resources = append(c.resources, r)
}

// Unregister removes r from the backup/restore list.
func (c *Context) Unregister(r Resource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, x := range c.resources {
		if x == r {
			c.resources = append(c.resources[:i], c.resources[i+1:]...)
			return
		}
	}
}

// Resources returns the number of registered resources.
func (c *Context) Resources() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.resources)
}

func (c *Context) snapshot() []Resource {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Resource(nil), c.resources...)
}

// BackupDeviceData backs up every registered resource, newest first, so that
// programs release their pipelines before the shaders and buffers they use.
// A failing resource does not stop the others. All errors are joined.
func (c *Context) BackupDeviceData() error {
	c.mu.Lock()
	if c.backedUp {
		c.mu.Unlock()
		return ErrBackupInProgress
	}
	c.backedUp = true
	c.mu.Unlock()

	res := c.snapshot()
	Logger().Info("gpucore: backing up device data", "resources", len(res))
	var errs []error
	for i := len(res) - 1; i >= 0; i-- {
		if err := res[i].BackupDeviceData(); err != nil {
			Logger().Warn("gpucore: resource backup failed", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RestoreDeviceData installs a replacement device and queue and restores
// every registered resource in registration order. Passing nil keeps the
// current device, which is useful when only the device objects were lost.
func (c *Context) RestoreDeviceData(device hal.Device, queue hal.Queue) error {
	c.mu.Lock()
	if !c.backedUp {
		c.mu.Unlock()
		return ErrNoBackup
	}
	c.backedUp = false
	if device != nil {
		c.device = device
	}
	if queue != nil {
		c.queue = queue
	}
	c.mu.Unlock()

	res := c.snapshot()
	Logger().Info("gpucore: restoring device data", "resources", len(res))
	var errs []error
	for _, r := range res {
		if err := r.RestoreDeviceData(); err != nil {
			Logger().Warn("gpucore: resource restore failed", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
