package deferred

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/ubershader/shader"
)

// Option configures a Pass.
type Option func(*options)

type options struct {
	flags           Flags
	language        string
	vertexProfile   string
	fragmentProfile string
	vertexSource    string
	fragmentSource  string
	format          gputypes.TextureFormat
	defaultCubeMap  hal.TextureView
	defaultSpotMap  hal.TextureView
}

func defaultOptions() options {
	return options{
		language:       shader.LanguageWGSL,
		vertexSource:   VertexShaderSource,
		fragmentSource: FragmentShaderSource,
		format:         gputypes.TextureFormatRGBA16Float,
	}
}

// WithFlags sets the initial pass flags.
func WithFlags(f Flags) Option {
	return func(o *options) {
		o.flags = f
	}
}

// WithShaderLanguage selects the shader language by name. The default is
// shader.LanguageWGSL.
func WithShaderLanguage(name string) Option {
	return func(o *options) {
		o.language = name
	}
}

// WithProfiles sets the vertex and fragment shader profiles. Empty strings
// select the language default.
func WithProfiles(vertex, fragment string) Option {
	return func(o *options) {
		o.vertexProfile = vertex
		o.fragmentProfile = fragment
	}
}

// WithShaderSource replaces the embedded lighting templates.
func WithShaderSource(vertex, fragment string) Option {
	return func(o *options) {
		o.vertexSource = vertex
		o.fragmentSource = fragment
	}
}

// WithTargetFormat sets the format of the light accumulation target. The
// default is RGBA16Float.
func WithTargetFormat(f gputypes.TextureFormat) Option {
	return func(o *options) {
		o.format = f
	}
}

// WithDefaultCubeMap sets the cube map projected by point lights without a
// texture of their own.
func WithDefaultCubeMap(v hal.TextureView) Option {
	return func(o *options) {
		o.defaultCubeMap = v
	}
}

// WithDefaultSpotMap sets the texture projected by spot lights without a
// texture of their own.
func WithDefaultSpotMap(v hal.TextureView) Option {
	return func(o *options) {
		o.defaultSpotMap = v
	}
}
