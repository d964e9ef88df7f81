package shader

import (
	"fmt"
	"time"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/ubershader/gpucore"
)

// Shader is one stage's source code and its compiled device module.
//
// Compilation is deferred until Compile (or the link of a program using the
// shader). The outcome, success or failure, is cached until the source
// changes.
type Shader struct {
	lang    *Language
	stage   Stage
	source  string
	profile string

	compiled   bool
	err        error
	module     *ir.Module
	entry      string
	device     hal.ShaderSource
	translated string
	handle     hal.ShaderModule
	lost       bool
	released   bool

	programs []*Program
}

func newShader(l *Language, stage Stage) *Shader {
	s := &Shader{lang: l, stage: stage}
	l.ctx.Register(s)
	l.ctx.Stats().ShaderCreated()
	return s
}

// Language returns the name of the shader's language.
func (s *Shader) Language() string { return s.lang.name }

// Stage returns the pipeline stage.
func (s *Shader) Stage() Stage { return s.stage }

// SourceCode returns the source text as set, before preprocessing.
func (s *Shader) SourceCode() string { return s.source }

// Profile returns the profile string.
func (s *Shader) Profile() string { return s.profile }

// IsCompiled reports whether Compile has run since the source last changed.
func (s *Shader) IsCompiled() bool { return s.compiled }

// Err returns the cached compile error, if any.
func (s *Shader) Err() error { return s.err }

// EntryPoint returns the compiled entry point name.
func (s *Shader) EntryPoint() string { return s.entry }

// Module returns the device shader module, or nil when not compiled.
func (s *Shader) Module() hal.ShaderModule { return s.handle }

// IR returns the validated module.
func (s *Shader) IR() *ir.Module { return s.module }

// Translated returns the generated text for text targets such as GLSL.
func (s *Shader) Translated() string { return s.translated }

// SPIRV returns the generated SPIR-V words for binary targets.
func (s *Shader) SPIRV() []uint32 { return s.device.SPIRV }

// SetSourceCode replaces the source and profile. Compilation is deferred.
// Setting identical values keeps the compiled module. Programs the shader is
// attached to become dirty.
func (s *Shader) SetSourceCode(source, profile string) {
	if source == s.source && profile == s.profile {
		return
	}
	s.source = source
	s.profile = profile
	s.reset()
	for _, p := range append([]*Program(nil), s.programs...) {
		p.shaderChanged(s)
	}
}

func (s *Shader) reset() {
	s.destroyModule()
	s.compiled = false
	s.err = nil
	s.module = nil
	s.entry = ""
	s.device = hal.ShaderSource{}
	s.translated = ""
}

// Compile preprocesses, validates and translates the source and creates the
// device module.
func (s *Shader) Compile() error {
	if s.released {
		return ErrReleased
	}
	if s.compiled {
		return s.err
	}
	start := time.Now()
	s.err = s.compile()
	s.compiled = true
	s.lang.ctx.Stats().ShaderCompiled(time.Since(start), s.err != nil)
	if s.err != nil {
		slogger().Warn("shader: compile failed",
			"language", s.lang.name, "stage", s.stage, "err", s.err)
	} else {
		slogger().Debug("shader: compiled",
			"language", s.lang.name, "stage", s.stage, "entry", s.entry,
			"elapsed", time.Since(start))
	}
	return s.err
}

func (s *Shader) compile() error {
	if s.source == "" {
		return ErrNoSource
	}
	if err := s.lang.CheckProfile(s.profile); err != nil {
		return err
	}
	src, err := Preprocess(s.source, nil)
	if err != nil {
		return err
	}
	ast, err := naga.Parse(src)
	if err != nil {
		return fmt.Errorf("%w: parse: %w", ErrCompile, err)
	}
	m, err := naga.LowerWithSource(ast, src)
	if err != nil {
		return fmt.Errorf("%w: lower: %w", ErrCompile, err)
	}
	verrs, err := naga.Validate(m)
	if err != nil {
		return fmt.Errorf("%w: validate: %w", ErrCompile, err)
	}
	if len(verrs) > 0 {
		return fmt.Errorf("%w: validation failed: %w", ErrCompile, verrs[0])
	}
	ep := findEntryPoint(m, s.stage)
	if ep == nil {
		return fmt.Errorf("%w: %s", ErrNoEntryPoint, s.stage)
	}
	source, text, err := s.lang.target.translate(m, src, ep.Name, s.profile)
	if err != nil {
		return err
	}
	s.module = m
	s.entry = ep.Name
	s.device = source
	s.translated = text
	return s.createModule()
}

func (s *Shader) createModule() error {
	h, err := s.lang.ctx.Device().CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  fmt.Sprintf("%s %s shader", s.lang.name, s.stage),
		Source: s.device,
	})
	if err != nil {
		return fmt.Errorf("shader: create module: %w", err)
	}
	s.handle = h
	return nil
}

func (s *Shader) destroyModule() {
	if s.handle != nil {
		s.lang.ctx.Device().DestroyShaderModule(s.handle)
		s.handle = nil
	}
}

func findEntryPoint(m *ir.Module, stage Stage) *ir.EntryPoint {
	want := stage.irStage()
	for i := range m.EntryPoints {
		if m.EntryPoints[i].Stage == want {
			return &m.EntryPoints[i]
		}
	}
	return nil
}

func (s *Shader) attach(p *Program) {
	for _, x := range s.programs {
		if x == p {
			return
		}
	}
	s.programs = append(s.programs, p)
}

func (s *Shader) detach(p *Program) {
	for i, x := range s.programs {
		if x == p {
			s.programs = append(s.programs[:i], s.programs[i+1:]...)
			return
		}
	}
}

// BackupDeviceData destroys the device module. The translated source is
// kept so the module can be recreated without recompiling.
func (s *Shader) BackupDeviceData() error {
	if s.handle != nil {
		s.destroyModule()
		s.lost = true
	}
	return nil
}

// RestoreDeviceData recreates the device module lost by BackupDeviceData.
func (s *Shader) RestoreDeviceData() error {
	if !s.lost {
		return nil
	}
	s.lost = false
	if err := s.createModule(); err != nil {
		s.err = err
		return err
	}
	return nil
}

// Release destroys the device module and unregisters the shader. A released
// shader cannot be compiled again.
func (s *Shader) Release() {
	if s.released {
		return
	}
	s.destroyModule()
	s.released = true
	s.programs = nil
	s.lang.ctx.Unregister(s)
	s.lang.ctx.Stats().ShaderReleased()
}

var _ gpucore.Resource = (*Shader)(nil)
