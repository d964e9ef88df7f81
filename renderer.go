package ubershader

import (
	"slices"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/ubershader/buffer"
	"github.com/gogpu/ubershader/deferred"
	"github.com/gogpu/ubershader/gpucore"
	"github.com/gogpu/ubershader/shader"
)

// Renderer owns a device context and the shader languages available on it.
// It creates buffers and lighting passes and drives device backup and
// restore for everything created through it.
//
// Renderer is not safe for concurrent rendering.
type Renderer struct {
	ctx       *gpucore.Context
	languages *gpucontext.Registry[*shader.Language]
}

// NewRenderer creates a renderer on an opened HAL device and queue.
func NewRenderer(device hal.Device, queue hal.Queue, opts ...Option) (*Renderer, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	ctx, err := gpucore.NewContext(device, queue, o.contextOptions()...)
	if err != nil {
		return nil, err
	}
	return newRenderer(ctx, o), nil
}

// NewRendererFromProvider creates a renderer sharing the device of an
// external provider, such as a windowing toolkit. The provider must expose
// its HAL device and queue.
func NewRendererFromProvider(provider gpucontext.DeviceProvider, opts ...Option) (*Renderer, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	ctx, err := gpucore.FromProvider(provider, o.contextOptions()...)
	if err != nil {
		return nil, err
	}
	return newRenderer(ctx, o), nil
}

func (o options) contextOptions() []gpucore.ContextOption {
	var opts []gpucore.ContextOption
	if o.stats != nil {
		opts = append(opts, gpucore.WithStats(o.stats))
	}
	if o.info != nil {
		opts = append(opts, gpucore.WithAdapterInfo(*o.info))
	}
	return opts
}

func newRenderer(ctx *gpucore.Context, o options) *Renderer {
	r := &Renderer{
		ctx:       ctx,
		languages: gpucontext.NewRegistry[*shader.Language](gpucontext.WithPriority(o.priority...)),
	}
	r.RegisterShaderLanguage(shader.NewWGSL(ctx, o.spirvVersion))
	if !o.disableGLSL {
		r.RegisterShaderLanguage(shader.NewGLSL(ctx, o.glslVersion))
	}
	info := ctx.AdapterInfo()
	Logger().Info("ubershader: renderer created",
		"adapter", info.Name, "languages", r.ShaderLanguages(), "default", r.DefaultShaderLanguage())
	return r
}

// Context returns the device context.
func (r *Renderer) Context() *gpucore.Context { return r.ctx }

// RegisterShaderLanguage makes l available under its name, replacing a
// language of the same name.
func (r *Renderer) RegisterShaderLanguage(l *shader.Language) {
	r.languages.Register(l.Name(), func() *shader.Language { return l })
	Logger().Debug("ubershader: shader language registered", "language", l.Name())
}

// ShaderLanguage returns the language registered under name, or nil. An
// empty name selects the default language.
func (r *Renderer) ShaderLanguage(name string) *shader.Language {
	if name == "" {
		return r.languages.Best()
	}
	return r.languages.Get(name)
}

// DefaultShaderLanguage returns the name of the highest priority registered
// language.
func (r *Renderer) DefaultShaderLanguage() string { return r.languages.BestName() }

// ShaderLanguages returns the registered language names, sorted.
func (r *Renderer) ShaderLanguages() []string {
	names := r.languages.Available()
	slices.Sort(names)
	return names
}

// CreateVertexBuffer returns an unallocated vertex buffer.
func (r *Renderer) CreateVertexBuffer(label string) *buffer.VertexBuffer {
	return buffer.NewVertexBuffer(r.ctx, label)
}

// CreateIndexBuffer returns an unallocated index buffer.
func (r *Renderer) CreateIndexBuffer(label string) *buffer.IndexBuffer {
	return buffer.NewIndexBuffer(r.ctx, label)
}

// CreateUniformBuffer returns an unallocated uniform buffer.
func (r *Renderer) CreateUniformBuffer(label string) *buffer.UniformBuffer {
	return buffer.NewUniformBuffer(r.ctx, label)
}

// NewLightingPass creates a deferred lighting pass on this renderer.
func (r *Renderer) NewLightingPass(opts ...deferred.Option) (*deferred.Pass, error) {
	return deferred.New(r, opts...)
}

// BackupDeviceData saves and releases the device objects of every buffer,
// shader, program and pass, for example before the device is lost.
func (r *Renderer) BackupDeviceData() error { return r.ctx.BackupDeviceData() }

// RestoreDeviceData recreates the device objects on device and queue. Nil
// keeps the current device.
func (r *Renderer) RestoreDeviceData(device hal.Device, queue hal.Queue) error {
	return r.ctx.RestoreDeviceData(device, queue)
}

// Stats returns a snapshot of the resource statistics.
func (r *Renderer) Stats() gpucore.StatsSnapshot { return r.ctx.Stats().Snapshot() }
