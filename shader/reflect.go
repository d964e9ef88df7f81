package shader

import (
	"fmt"
	"sort"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/wgpu/hal"
)

// varying is a user-defined stage input or output.
type varying struct {
	name     string
	location uint32
	typ      ir.TypeHandle
}

type resourceKind int

const (
	resourceUniformBlock resourceKind = iota
	resourceTexture
	resourceSampler
)

func (k resourceKind) String() string {
	switch k {
	case resourceUniformBlock:
		return "uniform block"
	case resourceTexture:
		return "texture"
	case resourceSampler:
		return "sampler"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// resource is one (group, binding) slot of a linked program.
type resource struct {
	name    string
	kind    resourceKind
	group   uint32
	binding uint32
	entry   gputypes.BindGroupLayoutEntry

	// Uniform block backing, or the bound texture/sampler.
	block   *UniformBlock
	texture hal.TextureView
	sampler hal.Sampler

	// Source module and type, for building uniform handles.
	module *ir.Module
	typ    ir.TypeHandle
}

func stageVisibility(s Stage) gputypes.ShaderStages {
	if s == StageFragment {
		return gputypes.ShaderStageFragment
	}
	return gputypes.ShaderStageVertex
}

func locationOf(b *ir.Binding) (uint32, bool) {
	if b == nil || *b == nil {
		return 0, false
	}
	switch v := (*b).(type) {
	case ir.LocationBinding:
		return v.Location, true
	case *ir.LocationBinding:
		return v.Location, true
	}
	return 0, false
}

// collectVaryings flattens location-bound values of one argument or result,
// descending one level into structs.
func collectVaryings(m *ir.Module, name string, typ ir.TypeHandle, b *ir.Binding, out []varying) []varying {
	if loc, ok := locationOf(b); ok {
		return append(out, varying{name: name, location: loc, typ: typ})
	}
	if b != nil && *b != nil {
		return out // builtin
	}
	if int(typ) >= len(m.Types) {
		return out
	}
	if st, ok := m.Types[typ].Inner.(ir.StructType); ok {
		for _, mem := range st.Members {
			if loc, ok := locationOf(mem.Binding); ok {
				out = append(out, varying{name: mem.Name, location: loc, typ: mem.Type})
			}
		}
	}
	return out
}

func entryInputs(m *ir.Module, ep *ir.EntryPoint) []varying {
	var out []varying
	for _, arg := range ep.Function.Arguments {
		out = collectVaryings(m, arg.Name, arg.Type, arg.Binding, out)
	}
	return out
}

func entryOutputs(m *ir.Module, ep *ir.EntryPoint) []varying {
	if ep.Function.Result == nil {
		return nil
	}
	r := ep.Function.Result
	return collectVaryings(m, "", r.Type, r.Binding, nil)
}

// moduleResources lists the bound uniform, texture and sampler globals of m.
func moduleResources(m *ir.Module, stage Stage) ([]*resource, error) {
	var out []*resource
	vis := stageVisibility(stage)
	for _, gv := range m.GlobalVariables {
		if gv.Binding == nil {
			continue
		}
		r := &resource{
			name:    gv.Name,
			group:   gv.Binding.Group,
			binding: gv.Binding.Binding,
			module:  m,
			typ:     gv.Type,
		}
		r.entry.Binding = gv.Binding.Binding
		r.entry.Visibility = vis
		switch gv.Space {
		case ir.SpaceUniform:
			r.kind = resourceUniformBlock
			r.entry.Buffer = &gputypes.BufferBindingLayout{
				Type:           gputypes.BufferBindingTypeUniform,
				MinBindingSize: uint64(ir.TypeSize(m, gv.Type)),
			}
		case ir.SpaceHandle:
			switch t := m.Types[gv.Type].Inner.(type) {
			case ir.SamplerType:
				r.kind = resourceSampler
				st := gputypes.SamplerBindingTypeFiltering
				if t.Comparison {
					st = gputypes.SamplerBindingTypeComparison
				}
				r.entry.Sampler = &gputypes.SamplerBindingLayout{Type: st}
			case ir.ImageType:
				r.kind = resourceTexture
				layout, err := textureLayout(t)
				if err != nil {
					return nil, fmt.Errorf("%w: %s: %w", ErrLink, gv.Name, err)
				}
				r.entry.Texture = layout
			default:
				return nil, fmt.Errorf("%w: %s: unsupported handle type %T", ErrLink, gv.Name, t)
			}
		default:
			return nil, fmt.Errorf("%w: %s: unsupported address space %d", ErrLink, gv.Name, gv.Space)
		}
		out = append(out, r)
	}
	return out, nil
}

func textureLayout(t ir.ImageType) (*gputypes.TextureBindingLayout, error) {
	l := &gputypes.TextureBindingLayout{Multisampled: t.Multisampled}
	switch t.Dim {
	case ir.Dim1D:
		l.ViewDimension = gputypes.TextureViewDimension1D
	case ir.Dim2D:
		l.ViewDimension = gputypes.TextureViewDimension2D
		if t.Arrayed {
			l.ViewDimension = gputypes.TextureViewDimension2DArray
		}
	case ir.Dim3D:
		l.ViewDimension = gputypes.TextureViewDimension3D
	case ir.DimCube:
		l.ViewDimension = gputypes.TextureViewDimensionCube
		if t.Arrayed {
			l.ViewDimension = gputypes.TextureViewDimensionCubeArray
		}
	}
	switch t.Class {
	case ir.ImageClassDepth:
		l.SampleType = gputypes.TextureSampleTypeDepth
	case ir.ImageClassSampled:
		switch t.SampledKind {
		case ir.ScalarSint:
			l.SampleType = gputypes.TextureSampleTypeSint
		case ir.ScalarUint:
			l.SampleType = gputypes.TextureSampleTypeUint
		default:
			l.SampleType = gputypes.TextureSampleTypeFloat
		}
	default:
		return nil, fmt.Errorf("unsupported image class %d", t.Class)
	}
	return l, nil
}

// mergeResources combines the resources of both stages. A slot declared by
// both must agree on its kind; its visibility becomes the union.
func mergeResources(stages ...[]*resource) ([]*resource, error) {
	type slot struct{ group, binding uint32 }
	bySlot := make(map[slot]*resource)
	var out []*resource
	for _, rs := range stages {
		for _, r := range rs {
			k := slot{r.group, r.binding}
			prev, ok := bySlot[k]
			if !ok {
				bySlot[k] = r
				out = append(out, r)
				continue
			}
			if prev.kind != r.kind {
				return nil, fmt.Errorf("%w: group %d binding %d is a %s in one stage and a %s in another",
					ErrLink, r.group, r.binding, prev.kind, r.kind)
			}
			prev.entry.Visibility |= r.entry.Visibility
			if prev.entry.Buffer != nil && r.entry.Buffer != nil &&
				r.entry.Buffer.MinBindingSize > prev.entry.Buffer.MinBindingSize {
				prev.entry.Buffer.MinBindingSize = r.entry.Buffer.MinBindingSize
				prev.module, prev.typ = r.module, r.typ
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].group != out[j].group {
			return out[i].group < out[j].group
		}
		return out[i].binding < out[j].binding
	})
	return out, nil
}
