package ubershader

import (
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/naga/glsl"
	"github.com/gogpu/naga/spirv"

	"github.com/gogpu/ubershader/gpucore"
	"github.com/gogpu/ubershader/shader"
)

// Option configures a Renderer during creation.
//
// Example:
//
//	stats := &gpucore.ResourceStats{}
//	r, err := ubershader.NewRenderer(device, queue,
//	    ubershader.WithStats(stats),
//	    ubershader.WithGLSLVersion(glsl.VersionES300),
//	)
type Option func(*options)

type options struct {
	stats        *gpucore.ResourceStats
	info         *gpucontext.AdapterInfo
	spirvVersion spirv.Version
	glslVersion  glsl.Version
	disableGLSL  bool
	priority     []string
}

func defaultOptions() options {
	return options{
		spirvVersion: spirv.Version1_3,
		glslVersion:  glsl.Version430,
		priority:     []string{shader.LanguageWGSL, shader.LanguageGLSL},
	}
}

// WithStats makes the renderer report into s. Several renderers may share
// one sink.
func WithStats(s *gpucore.ResourceStats) Option {
	return func(o *options) {
		o.stats = s
	}
}

// WithAdapterInfo records adapter metadata for diagnostics. Renderers built
// from a gpucontext.DeviceProvider take it from the provider.
func WithAdapterInfo(info gpucontext.AdapterInfo) Option {
	return func(o *options) {
		o.info = &info
	}
}

// WithSPIRVVersion sets the SPIR-V version WGSL programs compile to when a
// shader gives no profile.
func WithSPIRVVersion(v spirv.Version) Option {
	return func(o *options) {
		o.spirvVersion = v
	}
}

// WithGLSLVersion sets the default GLSL dialect of the GLSL language.
func WithGLSLVersion(v glsl.Version) Option {
	return func(o *options) {
		o.glslVersion = v
	}
}

// WithoutGLSL registers only the WGSL language.
func WithoutGLSL() Option {
	return func(o *options) {
		o.disableGLSL = true
	}
}

// WithLanguagePriority sets the order in which DefaultShaderLanguage picks a
// registered language.
func WithLanguagePriority(names ...string) Option {
	return func(o *options) {
		o.priority = names
	}
}
