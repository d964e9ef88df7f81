package shader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/glsl"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/ubershader/gpucore"
)

// Language names.
const (
	LanguageWGSL = "WGSL"
	LanguageGLSL = "GLSL"
)

// Errors returned by languages, shaders and programs.
var (
	// ErrLanguageMismatch is returned when a shader of one language is
	// attached to a program of another.
	ErrLanguageMismatch = errors.New("shader: language mismatch")

	// ErrStageMismatch is returned when a shader is attached to the slot of
	// a different stage.
	ErrStageMismatch = errors.New("shader: stage mismatch")

	// ErrUnsupportedProfile is returned for a profile string the language
	// does not understand.
	ErrUnsupportedProfile = errors.New("shader: unsupported profile")

	// ErrNoSource is returned when compiling a shader without source code.
	ErrNoSource = errors.New("shader: no source code")

	// ErrNoEntryPoint is returned when the source has no entry point for the
	// shader's stage.
	ErrNoEntryPoint = errors.New("shader: no entry point for stage")

	// ErrCompile wraps parse, lowering, validation and translation failures.
	ErrCompile = errors.New("shader: compile failed")

	// ErrReleased is returned when a released shader or program is used.
	ErrReleased = errors.New("shader: released")
)

// Stage identifies the pipeline stage a shader runs in.
type Stage int

const (
	StageVertex Stage = iota
	StageFragment
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "Vertex"
	case StageFragment:
		return "Fragment"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

func (s Stage) irStage() ir.ShaderStage {
	if s == StageFragment {
		return ir.StageFragment
	}
	return ir.StageVertex
}

// target turns a validated module into device shader source.
type target interface {
	// translate returns the device source and, for text targets, the
	// generated text.
	translate(m *ir.Module, wgsl, entry, profile string) (hal.ShaderSource, string, error)

	// checkProfile validates a profile string.
	checkProfile(profile string) error

	// stripsPrecision reports whether precision qualifiers must be removed
	// from templates before compiling.
	stripsPrecision() bool
}

// Language is a named shader language bound to a device context. It creates
// the shaders and programs of that language.
type Language struct {
	name   string
	ctx    *gpucore.Context
	target target
}

// NewWGSL returns the WGSL language. Shaders are compiled to SPIR-V of the
// given default version, which applies when a shader has an empty profile.
func NewWGSL(ctx *gpucore.Context, defaultVersion spirv.Version) *Language {
	return &Language{
		name:   LanguageWGSL,
		ctx:    ctx,
		target: spirvTarget{def: defaultVersion},
	}
}

// NewGLSL returns the GLSL language. WGSL templates are cross-compiled to
// GLSL of the given default version; the device module is created from the
// WGSL source because the GL HAL translates it itself.
func NewGLSL(ctx *gpucore.Context, defaultVersion glsl.Version) *Language {
	return &Language{
		name:   LanguageGLSL,
		ctx:    ctx,
		target: glslTarget{def: defaultVersion},
	}
}

// Name returns the language name.
func (l *Language) Name() string { return l.name }

// Context returns the device context the language creates resources on.
func (l *Language) Context() *gpucore.Context { return l.ctx }

// NeedsPrecisionStrip reports whether precision qualifiers have to be
// removed from sources. Desktop GLSL targets need it; GLSL ES and SPIR-V
// do not.
func (l *Language) NeedsPrecisionStrip() bool { return l.target.stripsPrecision() }

// CheckProfile reports whether profile is understood by the language.
func (l *Language) CheckProfile(profile string) error { return l.target.checkProfile(profile) }

// CreateVertexShader returns a new empty vertex shader.
func (l *Language) CreateVertexShader() *Shader { return newShader(l, StageVertex) }

// CreateFragmentShader returns a new empty fragment shader.
func (l *Language) CreateFragmentShader() *Shader { return newShader(l, StageFragment) }

// CreateProgram returns a new program with no shaders attached.
func (l *Language) CreateProgram() *Program { return newProgram(l) }

type spirvTarget struct {
	def spirv.Version
}

var spirvProfiles = map[string]spirv.Version{
	"spirv1.0": spirv.Version1_0,
	"spirv1.1": spirv.Version1_1,
	"spirv1.2": spirv.Version1_2,
	"spirv1.3": spirv.Version1_3,
	"spirv1.4": spirv.Version1_4,
	"spirv1.5": spirv.Version1_5,
	"spirv1.6": spirv.Version1_6,
}

func (t spirvTarget) version(profile string) (spirv.Version, error) {
	if profile == "" {
		return t.def, nil
	}
	v, ok := spirvProfiles[strings.ToLower(profile)]
	if !ok {
		return spirv.Version{}, fmt.Errorf("%w: %q", ErrUnsupportedProfile, profile)
	}
	return v, nil
}

func (t spirvTarget) checkProfile(profile string) error {
	_, err := t.version(profile)
	return err
}

func (t spirvTarget) translate(m *ir.Module, _, _, profile string) (hal.ShaderSource, string, error) {
	v, err := t.version(profile)
	if err != nil {
		return hal.ShaderSource{}, "", err
	}
	b, err := naga.GenerateSPIRV(m, spirv.Options{Version: v})
	if err != nil {
		return hal.ShaderSource{}, "", fmt.Errorf("%w: spir-v: %w", ErrCompile, err)
	}
	return hal.ShaderSource{SPIRV: spirvWords(b)}, "", nil
}

func (spirvTarget) stripsPrecision() bool { return false }

// spirvWords converts little-endian SPIR-V bytes to words.
func spirvWords(b []byte) []uint32 {
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = uint32(b[i*4]) |
			uint32(b[i*4+1])<<8 |
			uint32(b[i*4+2])<<16 |
			uint32(b[i*4+3])<<24
	}
	return words
}

type glslTarget struct {
	def glsl.Version
}

var glslProfiles = map[string]glsl.Version{
	"330":   glsl.Version330,
	"400":   glsl.Version400,
	"410":   glsl.Version410,
	"420":   glsl.Version420,
	"430":   glsl.Version430,
	"450":   glsl.Version450,
	"460":   glsl.Version460,
	"300es": glsl.VersionES300,
	"310es": glsl.VersionES310,
	"320es": glsl.VersionES320,
}

// ParseGLSLVersion parses a GLSL profile such as "450", "300es" or "300 es".
func ParseGLSLVersion(profile string) (glsl.Version, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(profile)), " ", "")
	v, ok := glslProfiles[key]
	if !ok {
		return glsl.Version{}, fmt.Errorf("%w: %q", ErrUnsupportedProfile, profile)
	}
	return v, nil
}

func (t glslTarget) version(profile string) (glsl.Version, error) {
	if profile == "" {
		return t.def, nil
	}
	return ParseGLSLVersion(profile)
}

func (t glslTarget) checkProfile(profile string) error {
	_, err := t.version(profile)
	return err
}

func (t glslTarget) translate(m *ir.Module, wgsl, entry, profile string) (hal.ShaderSource, string, error) {
	v, err := t.version(profile)
	if err != nil {
		return hal.ShaderSource{}, "", err
	}
	text, _, err := glsl.Compile(m, glsl.Options{
		LangVersion:        v,
		EntryPoint:         entry,
		ForceHighPrecision: v.ES,
	})
	if err != nil {
		return hal.ShaderSource{}, "", fmt.Errorf("%w: glsl %s: %w", ErrCompile, v, err)
	}
	return hal.ShaderSource{WGSL: wgsl}, text, nil
}

func (t glslTarget) stripsPrecision() bool { return !t.def.ES }
