package shader

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/ubershader/buffer"
	"github.com/gogpu/ubershader/gpucore"
)

// Program errors.
var (
	// ErrNoVertexShader is returned when linking a program without a vertex shader.
	ErrNoVertexShader = errors.New("shader: program has no vertex shader")

	// ErrLink wraps link failures.
	ErrLink = errors.New("shader: link failed")

	// ErrNotLinked is returned by Bind when the program is not valid.
	ErrNotLinked = errors.New("shader: program is not valid")

	// ErrUnboundResource is returned by Bind when a texture or sampler slot
	// has nothing bound.
	ErrUnboundResource = errors.New("shader: resource not bound")

	// ErrUnboundAttribute is returned by Bind when a vertex input has no
	// vertex buffer attribute bound.
	ErrUnboundAttribute = errors.New("shader: vertex attribute not bound")
)

const (
	maxVertexAttributes = 16
	maxGroupBindings    = 16

	// Bind groups are cached per bound resource set. The cache is dropped
	// when it grows past this many entries.
	maxCachedBindGroups = 64
)

// PipelineState is the fixed-function state a program is drawn with.
type PipelineState struct {
	// Format is the color target format.
	Format gputypes.TextureFormat

	// Blend is used when BlendEnabled is set.
	Blend        gputypes.BlendState
	BlendEnabled bool

	// WriteMask selects the written channels. Zero writes all channels.
	WriteMask gputypes.ColorWriteMask

	Topology gputypes.PrimitiveTopology
	CullMode gputypes.CullMode
}

type pipelineKey struct {
	state  PipelineState
	stride uint64
	n      int
	attrs  [maxVertexAttributes]gputypes.VertexAttribute
}

type bindKey struct {
	group uint32
	res   [maxGroupBindings]any
}

// Program links a vertex and an optional fragment shader of one language
// and resolves named attributes, uniforms and uniform blocks.
//
// Linking is lazy: IsValid compiles both shaders and builds the layouts on
// first use after the shader set changed. Every resolved handle belongs to
// one link; when the program relinks, the dirty handler fires and handles
// must be resolved again.
type Program struct {
	lang     *Language
	vertex   *Shader
	fragment *Shader

	linked   bool
	valid    bool
	err      error
	lost     bool
	released bool
	onDirty  func(*Program)

	attributes []*Attribute
	attrByName map[string]*Attribute
	uniforms   map[string]*Uniform
	blocks     []*UniformBlock
	resources  []*resource

	groupRes     [][]*resource
	groupLayouts []hal.BindGroupLayout
	layout       hal.PipelineLayout
	pipelines    map[pipelineKey]hal.RenderPipeline
	bindGroups   map[bindKey]hal.BindGroup

	vertexBuffer *buffer.VertexBuffer
	vertexLayout map[uint32]gputypes.VertexAttribute
}

func newProgram(l *Language) *Program {
	p := &Program{
		lang:         l,
		vertexLayout: make(map[uint32]gputypes.VertexAttribute),
	}
	l.ctx.Register(p)
	l.ctx.Stats().ProgramCreated()
	return p
}

// Language returns the name of the program's language.
func (p *Program) Language() string { return p.lang.name }

// VertexShader returns the attached vertex shader.
func (p *Program) VertexShader() *Shader { return p.vertex }

// FragmentShader returns the attached fragment shader.
func (p *Program) FragmentShader() *Shader { return p.fragment }

// SetVertexShader attaches s to the vertex slot. Nil detaches.
func (p *Program) SetVertexShader(s *Shader) error {
	return p.setShader(&p.vertex, s, StageVertex)
}

// SetFragmentShader attaches s to the fragment slot. Nil detaches.
func (p *Program) SetFragmentShader(s *Shader) error {
	return p.setShader(&p.fragment, s, StageFragment)
}

func (p *Program) setShader(slot **Shader, s *Shader, stage Stage) error {
	if p.released {
		return ErrReleased
	}
	if s != nil {
		if s.lang.name != p.lang.name {
			return fmt.Errorf("%w: %s shader on %s program", ErrLanguageMismatch, s.lang.name, p.lang.name)
		}
		if s.stage != stage {
			return fmt.Errorf("%w: %s shader in %s slot", ErrStageMismatch, s.stage, stage)
		}
	}
	old := *slot
	if old == s {
		return nil
	}
	if old != nil {
		old.detach(p)
	}
	*slot = s
	if s != nil {
		s.attach(p)
	}
	p.unlink()
	if old != nil {
		p.fireDirty()
	}
	return nil
}

// SetDirtyHandler installs the callback fired whenever resolved handles
// become invalid. There is a single handler; nil removes it.
func (p *Program) SetDirtyHandler(fn func(*Program)) { p.onDirty = fn }

func (p *Program) fireDirty() {
	if p.onDirty != nil {
		p.onDirty(p)
	}
}

func (p *Program) shaderChanged(*Shader) {
	p.unlink()
	p.fireDirty()
}

// Invalidate drops the link and fires the dirty handler. The next IsValid
// relinks.
func (p *Program) Invalidate() {
	p.unlink()
	p.fireDirty()
}

// IsValid links the program if needed and reports whether it is usable.
func (p *Program) IsValid() bool {
	if p.released {
		return false
	}
	if p.linked {
		return p.valid
	}
	p.linked = true
	p.err = p.link()
	p.valid = p.err == nil
	p.lang.ctx.Stats().ProgramLinked(!p.valid)
	if p.valid {
		slogger().Debug("shader: program linked", "language", p.lang.name,
			"attributes", len(p.attributes), "uniforms", len(p.uniforms), "blocks", len(p.blocks))
	} else {
		p.releaseLink()
		slogger().Warn("shader: link failed", "language", p.lang.name, "err", p.err)
	}
	return p.valid
}

// Err returns the last compile or link error.
func (p *Program) Err() error { return p.err }

// GetAttribute returns the vertex input called name, or nil.
func (p *Program) GetAttribute(name string) *Attribute {
	if !p.IsValid() {
		return nil
	}
	return p.attrByName[name]
}

// GetUniform returns the uniform called name, or nil. Members of uniform
// blocks are found by member name.
func (p *Program) GetUniform(name string) *Uniform {
	if !p.IsValid() {
		return nil
	}
	return p.uniforms[name]
}

// GetUniformBlock returns the uniform block whose variable is called name,
// or nil.
func (p *Program) GetUniformBlock(name string) *UniformBlock {
	if !p.IsValid() {
		return nil
	}
	for _, b := range p.blocks {
		if b.name == name {
			return b
		}
	}
	return nil
}

// Attributes returns the vertex inputs in declaration order.
func (p *Program) Attributes() []*Attribute {
	if !p.IsValid() {
		return nil
	}
	return append([]*Attribute(nil), p.attributes...)
}

func (p *Program) link() error {
	if p.vertex == nil {
		return ErrNoVertexShader
	}
	if err := p.vertex.Compile(); err != nil {
		return fmt.Errorf("%w: vertex: %w", ErrLink, err)
	}
	vm := p.vertex.IR()
	vep := findEntryPoint(vm, StageVertex)
	vres, err := moduleResources(vm, StageVertex)
	if err != nil {
		return err
	}
	stages := [][]*resource{vres}

	if p.fragment != nil {
		if err := p.fragment.Compile(); err != nil {
			return fmt.Errorf("%w: fragment: %w", ErrLink, err)
		}
		fm := p.fragment.IR()
		fep := findEntryPoint(fm, StageFragment)
		written := make(map[uint32]bool)
		for _, out := range entryOutputs(vm, vep) {
			written[out.location] = true
		}
		for _, in := range entryInputs(fm, fep) {
			if !written[in.location] {
				return fmt.Errorf("%w: fragment input %q at location %d is not written by the vertex stage",
					ErrLink, in.name, in.location)
			}
		}
		fres, err := moduleResources(fm, StageFragment)
		if err != nil {
			return err
		}
		stages = append(stages, fres)
	}

	res, err := mergeResources(stages...)
	if err != nil {
		return err
	}
	p.resources = res

	p.attrByName = make(map[string]*Attribute)
	for _, in := range entryInputs(vm, vep) {
		a := &Attribute{name: in.name, location: in.location, program: p}
		p.attributes = append(p.attributes, a)
		p.attrByName[in.name] = a
	}
	if len(p.attributes) > maxVertexAttributes {
		return fmt.Errorf("%w: %d vertex inputs, at most %d supported", ErrLink, len(p.attributes), maxVertexAttributes)
	}

	if err := p.createLayouts(); err != nil {
		return err
	}
	return p.createUniforms()
}

func (p *Program) createLayouts() error {
	dev := p.lang.ctx.Device()
	groups := 0
	for _, r := range p.resources {
		if int(r.group)+1 > groups {
			groups = int(r.group) + 1
		}
	}
	p.groupRes = make([][]*resource, groups)
	for _, r := range p.resources {
		p.groupRes[r.group] = append(p.groupRes[r.group], r)
	}
	for g, rs := range p.groupRes {
		if len(rs) > maxGroupBindings {
			return fmt.Errorf("%w: group %d has %d bindings, at most %d supported", ErrLink, g, len(rs), maxGroupBindings)
		}
		entries := make([]gputypes.BindGroupLayoutEntry, len(rs))
		for i, r := range rs {
			entries[i] = r.entry
		}
		l, err := dev.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("program group %d", g),
			Entries: entries,
		})
		if err != nil {
			return fmt.Errorf("%w: bind group layout %d: %w", ErrLink, g, err)
		}
		p.groupLayouts = append(p.groupLayouts, l)
	}
	layout, err := dev.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "program layout",
		BindGroupLayouts: p.groupLayouts,
	})
	if err != nil {
		return fmt.Errorf("%w: pipeline layout: %w", ErrLink, err)
	}
	p.layout = layout
	return nil
}

func (p *Program) createUniforms() error {
	p.uniforms = make(map[string]*Uniform)
	add := func(u *Uniform) {
		if _, dup := p.uniforms[u.name]; !dup {
			p.uniforms[u.name] = u
		}
	}
	for _, r := range p.resources {
		switch r.kind {
		case resourceTexture:
			add(&Uniform{name: r.name, kind: UniformTexture, res: r})
		case resourceSampler:
			add(&Uniform{name: r.name, kind: UniformSampler, res: r})
		case resourceUniformBlock:
			size := int(ir.TypeSize(r.module, r.typ))
			ub := buffer.NewUniformBuffer(p.lang.ctx, r.name)
			if err := ub.Allocate(size, gpucore.UsageDynamic, true, false); err != nil {
				ub.Release()
				return fmt.Errorf("%w: uniform block %s: %w", ErrLink, r.name, err)
			}
			blk := &UniformBlock{name: r.name, res: r, size: size, buf: ub}
			r.block = blk
			p.blocks = append(p.blocks, blk)

			inner := r.module.Types[r.typ].Inner
			if st, ok := inner.(ir.StructType); ok {
				for _, m := range st.Members {
					add(&Uniform{
						name:   m.Name,
						kind:   UniformValue,
						res:    r,
						offset: int(m.Offset),
						inner:  r.module.Types[m.Type].Inner,
					})
				}
			} else {
				add(&Uniform{name: r.name, kind: UniformValue, res: r, inner: inner})
			}
		}
	}
	return nil
}

// Bind uploads pending uniform and vertex data and sets the pipeline, bind
// groups and vertex buffer on pass.
func (p *Program) Bind(pass hal.RenderPassEncoder, state PipelineState) error {
	if p.released {
		return ErrReleased
	}
	if !p.IsValid() {
		return fmt.Errorf("%w: %w", ErrNotLinked, p.err)
	}
	layouts, err := p.vertexBufferLayouts()
	if err != nil {
		return err
	}
	if layouts != nil {
		if err := p.vertexBuffer.Upload(); err != nil {
			return err
		}
		if p.vertexBuffer.Handle() == nil {
			return fmt.Errorf("shader: vertex buffer %q has no device storage", p.vertexBuffer.Label())
		}
	}
	for _, b := range p.blocks {
		if err := b.buf.Upload(); err != nil {
			return err
		}
	}
	pipeline, err := p.pipeline(state, layouts)
	if err != nil {
		return err
	}
	groups := make([]hal.BindGroup, len(p.groupLayouts))
	for g := range p.groupLayouts {
		bg, err := p.bindGroup(g)
		if err != nil {
			return err
		}
		groups[g] = bg
	}

	pass.SetPipeline(pipeline)
	for g, bg := range groups {
		pass.SetBindGroup(uint32(g), bg, nil)
	}
	if layouts != nil {
		pass.SetVertexBuffer(0, p.vertexBuffer.Handle(), 0)
	}
	return nil
}

func (p *Program) vertexBufferLayouts() ([]gputypes.VertexBufferLayout, error) {
	if len(p.attributes) == 0 {
		return nil, nil
	}
	attrs := make([]gputypes.VertexAttribute, 0, len(p.attributes))
	for _, a := range p.attributes {
		l, ok := p.vertexLayout[a.location]
		if !ok || p.vertexBuffer == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnboundAttribute, a.name)
		}
		attrs = append(attrs, l)
	}
	return []gputypes.VertexBufferLayout{{
		ArrayStride: uint64(p.vertexBuffer.VertexSize()),
		StepMode:    gputypes.VertexStepModeVertex,
		Attributes:  attrs,
	}}, nil
}

func (p *Program) pipeline(state PipelineState, layouts []gputypes.VertexBufferLayout) (hal.RenderPipeline, error) {
	if state.WriteMask == gputypes.ColorWriteMaskNone {
		state.WriteMask = gputypes.ColorWriteMaskAll
	}
	key := pipelineKey{state: state}
	if len(layouts) > 0 {
		key.stride = layouts[0].ArrayStride
		key.n = copy(key.attrs[:], layouts[0].Attributes)
	}
	if pl, ok := p.pipelines[key]; ok {
		return pl, nil
	}

	desc := &hal.RenderPipelineDescriptor{
		Label:  "program pipeline",
		Layout: p.layout,
		Vertex: hal.VertexState{
			Module:     p.vertex.Module(),
			EntryPoint: p.vertex.EntryPoint(),
			Buffers:    layouts,
		},
		Primitive: gputypes.PrimitiveState{
			Topology:  state.Topology,
			FrontFace: gputypes.FrontFaceCCW,
			CullMode:  state.CullMode,
		},
		Multisample: gputypes.DefaultMultisampleState(),
	}
	if p.fragment != nil {
		target := gputypes.ColorTargetState{Format: state.Format, WriteMask: state.WriteMask}
		if state.BlendEnabled {
			blend := state.Blend
			target.Blend = &blend
		}
		desc.Fragment = &hal.FragmentState{
			Module:     p.fragment.Module(),
			EntryPoint: p.fragment.EntryPoint(),
			Targets:    []gputypes.ColorTargetState{target},
		}
	}
	pl, err := p.lang.ctx.Device().CreateRenderPipeline(desc)
	if err != nil {
		return nil, fmt.Errorf("shader: create render pipeline: %w", err)
	}
	if p.pipelines == nil {
		p.pipelines = make(map[pipelineKey]hal.RenderPipeline)
	}
	p.pipelines[key] = pl
	slogger().Debug("shader: pipeline created", "language", p.lang.name,
		"format", state.Format, "topology", state.Topology, "pipelines", len(p.pipelines))
	return pl, nil
}

func (p *Program) bindGroup(g int) (hal.BindGroup, error) {
	key := bindKey{group: uint32(g)}
	rs := p.groupRes[g]
	entries := make([]gputypes.BindGroupEntry, 0, len(rs))
	for i, r := range rs {
		e := gputypes.BindGroupEntry{Binding: r.binding}
		switch r.kind {
		case resourceUniformBlock:
			h := r.block.buf.Handle()
			if h == nil {
				return nil, fmt.Errorf("%w: uniform block %s has no device storage", ErrUnboundResource, r.name)
			}
			key.res[i] = h
			e.Resource = gputypes.BufferBinding{Buffer: h.NativeHandle(), Size: uint64(r.block.size)}
		case resourceTexture:
			if r.texture == nil {
				return nil, fmt.Errorf("%w: texture %s", ErrUnboundResource, r.name)
			}
			key.res[i] = r.texture
			e.Resource = gputypes.TextureViewBinding{TextureView: r.texture.NativeHandle()}
		case resourceSampler:
			if r.sampler == nil {
				return nil, fmt.Errorf("%w: sampler %s", ErrUnboundResource, r.name)
			}
			key.res[i] = r.sampler
			e.Resource = gputypes.SamplerBinding{Sampler: r.sampler.NativeHandle()}
		}
		entries = append(entries, e)
	}
	if bg, ok := p.bindGroups[key]; ok {
		return bg, nil
	}
	dev := p.lang.ctx.Device()
	if len(p.bindGroups) >= maxCachedBindGroups {
		for _, bg := range p.bindGroups {
			dev.DestroyBindGroup(bg)
		}
		clear(p.bindGroups)
	}
	bg, err := dev.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   fmt.Sprintf("program group %d", g),
		Layout:  p.groupLayouts[g],
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("shader: create bind group %d: %w", g, err)
	}
	if p.bindGroups == nil {
		p.bindGroups = make(map[bindKey]hal.BindGroup)
	}
	p.bindGroups[key] = bg
	return bg, nil
}

// releaseLink destroys every object produced by a link.
func (p *Program) releaseLink() {
	dev := p.lang.ctx.Device()
	for _, bg := range p.bindGroups {
		dev.DestroyBindGroup(bg)
	}
	for _, pl := range p.pipelines {
		dev.DestroyRenderPipeline(pl)
	}
	if p.layout != nil {
		dev.DestroyPipelineLayout(p.layout)
	}
	for _, l := range p.groupLayouts {
		dev.DestroyBindGroupLayout(l)
	}
	for _, b := range p.blocks {
		b.buf.Release()
	}
	p.bindGroups = nil
	p.pipelines = nil
	p.layout = nil
	p.groupLayouts = nil
	p.groupRes = nil
	p.blocks = nil
	p.resources = nil
	p.uniforms = nil
	p.attributes = nil
	p.attrByName = nil
	p.vertexBuffer = nil
	clear(p.vertexLayout)
}

func (p *Program) unlink() {
	p.releaseLink()
	p.linked = false
	p.valid = false
	p.err = nil
}

// BackupDeviceData drops the link. Handles resolved before a device reset
// are invalid afterwards.
func (p *Program) BackupDeviceData() error {
	if p.linked {
		p.unlink()
		p.lost = true
	}
	return nil
}

// RestoreDeviceData fires the dirty handler for a program that was linked
// before the reset. The program relinks on next use.
func (p *Program) RestoreDeviceData() error {
	if p.lost {
		p.lost = false
		p.fireDirty()
	}
	return nil
}

// Release destroys the link, detaches both shaders and unregisters the
// program. The shaders themselves are not released.
func (p *Program) Release() {
	if p.released {
		return
	}
	p.unlink()
	if p.vertex != nil {
		p.vertex.detach(p)
		p.vertex = nil
	}
	if p.fragment != nil {
		p.fragment.detach(p)
		p.fragment = nil
	}
	p.onDirty = nil
	p.released = true
	p.lang.ctx.Unregister(p)
	p.lang.ctx.Stats().ProgramReleased()
}

var _ gpucore.Resource = (*Program)(nil)
