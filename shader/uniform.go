package shader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/naga/ir"
	"github.com/gogpu/wgpu/hal"
	"golang.org/x/image/math/f32"

	"github.com/gogpu/ubershader/buffer"
)

// ErrTypeMismatch is returned when a setter does not match the declared
// type of a uniform.
var ErrTypeMismatch = errors.New("shader: uniform type mismatch")

// UniformKind tells what a Uniform handle refers to.
type UniformKind int

const (
	// UniformValue is a scalar, vector or matrix inside a uniform block.
	UniformValue UniformKind = iota
	// UniformTexture is a texture binding.
	UniformTexture
	// UniformSampler is a sampler binding.
	UniformSampler
)

// String returns the kind name.
func (k UniformKind) String() string {
	switch k {
	case UniformValue:
		return "Value"
	case UniformTexture:
		return "Texture"
	case UniformSampler:
		return "Sampler"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// UniformBlock is a var<uniform> binding backed by a managed uniform buffer.
type UniformBlock struct {
	name string
	res  *resource
	size int
	buf  *buffer.UniformBuffer
}

// Name returns the variable name of the block.
func (b *UniformBlock) Name() string { return b.name }

// Size returns the block size in bytes.
func (b *UniformBlock) Size() int { return b.size }

// Group returns the bind group index.
func (b *UniformBlock) Group() uint32 { return b.res.group }

// Binding returns the binding index within the group.
func (b *UniformBlock) Binding() uint32 { return b.res.binding }

// Buffer returns the backing uniform buffer.
func (b *UniformBlock) Buffer() *buffer.UniformBuffer { return b.buf }

// Write copies raw bytes into the block at offset.
func (b *UniformBlock) Write(offset int, data []byte) error {
	return b.buf.Write(offset, data)
}

// Uniform is a resolved handle to a named uniform value, texture or sampler.
// Handles are invalidated when the program relinks; the program's dirty
// handler is the signal to resolve them again.
type Uniform struct {
	name   string
	kind   UniformKind
	res    *resource
	offset int
	inner  ir.TypeInner
}

// Name returns the uniform name.
func (u *Uniform) Name() string { return u.name }

// Kind returns what the handle refers to.
func (u *Uniform) Kind() UniformKind { return u.kind }

// Block returns the uniform block containing a value uniform, or nil.
func (u *Uniform) Block() *UniformBlock {
	if u.kind != UniformValue {
		return nil
	}
	return u.res.block
}

// Offset returns the byte offset of a value uniform within its block.
func (u *Uniform) Offset() int { return u.offset }

// Set1f sets a f32 uniform.
func (u *Uniform) Set1f(x float32) error { return u.setFloats(x) }

// Set2f sets a vec2<f32> uniform.
func (u *Uniform) Set2f(x, y float32) error { return u.setFloats(x, y) }

// Set3f sets a vec3<f32> uniform.
func (u *Uniform) Set3f(x, y, z float32) error { return u.setFloats(x, y, z) }

// Set4f sets a vec4<f32> uniform.
func (u *Uniform) Set4f(x, y, z, w float32) error { return u.setFloats(x, y, z, w) }

// SetVec2 sets a vec2<f32> uniform.
func (u *Uniform) SetVec2(v f32.Vec2) error { return u.setFloats(v[0], v[1]) }

// SetVec3 sets a vec3<f32> uniform.
func (u *Uniform) SetVec3(v f32.Vec3) error { return u.setFloats(v[0], v[1], v[2]) }

// SetVec4 sets a vec4<f32> uniform.
func (u *Uniform) SetVec4(v f32.Vec4) error { return u.setFloats(v[0], v[1], v[2], v[3]) }

// Set1i sets an i32 or u32 uniform.
func (u *Uniform) Set1i(x int32) error { return u.setInts(x) }

// Set2i sets a vec2<i32> or vec2<u32> uniform.
func (u *Uniform) Set2i(x, y int32) error { return u.setInts(x, y) }

// SetMat3 sets a mat3x3<f32> uniform from a row-major matrix.
func (u *Uniform) SetMat3(m f32.Mat3) error {
	if err := u.checkMatrix(3); err != nil {
		return err
	}
	var b [48]byte
	for c := 0; c < 3; c++ {
		for r := 0; r < 3; r++ {
			putFloat(b[c*16+r*4:], m[r*3+c])
		}
	}
	return u.res.block.Write(u.offset, b[:])
}

// SetMat4 sets a mat4x4<f32> uniform from a row-major matrix.
func (u *Uniform) SetMat4(m f32.Mat4) error {
	if err := u.checkMatrix(4); err != nil {
		return err
	}
	var b [64]byte
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			putFloat(b[c*16+r*4:], m[r*4+c])
		}
	}
	return u.res.block.Write(u.offset, b[:])
}

// SetTexture binds a texture view. Nil unbinds it.
func (u *Uniform) SetTexture(v hal.TextureView) error {
	if u.kind != UniformTexture {
		return fmt.Errorf("%w: %s is a %s, not a texture", ErrTypeMismatch, u.name, u.kind)
	}
	u.res.texture = v
	return nil
}

// SetSampler binds a sampler. Nil unbinds it.
func (u *Uniform) SetSampler(s hal.Sampler) error {
	if u.kind != UniformSampler {
		return fmt.Errorf("%w: %s is a %s, not a sampler", ErrTypeMismatch, u.name, u.kind)
	}
	u.res.sampler = s
	return nil
}

// components returns the scalar kind and component count of a scalar or
// vector uniform.
func (u *Uniform) components() (ir.ScalarKind, int, bool) {
	switch t := u.inner.(type) {
	case ir.ScalarType:
		return t.Kind, 1, t.Width == 4
	case ir.VectorType:
		return t.Scalar.Kind, int(t.Size), t.Scalar.Width == 4
	}
	return 0, 0, false
}

func (u *Uniform) setFloats(v ...float32) error {
	if u.kind != UniformValue {
		return fmt.Errorf("%w: %s is a %s", ErrTypeMismatch, u.name, u.kind)
	}
	kind, n, ok := u.components()
	if !ok || kind != ir.ScalarFloat || n != len(v) {
		return fmt.Errorf("%w: %s does not take %d floats", ErrTypeMismatch, u.name, len(v))
	}
	var b [16]byte
	for i, x := range v {
		putFloat(b[i*4:], x)
	}
	return u.res.block.Write(u.offset, b[:len(v)*4])
}

func (u *Uniform) setInts(v ...int32) error {
	if u.kind != UniformValue {
		return fmt.Errorf("%w: %s is a %s", ErrTypeMismatch, u.name, u.kind)
	}
	kind, n, ok := u.components()
	if !ok || (kind != ir.ScalarSint && kind != ir.ScalarUint) || n != len(v) {
		return fmt.Errorf("%w: %s does not take %d integers", ErrTypeMismatch, u.name, len(v))
	}
	var b [16]byte
	for i, x := range v {
		binary.LittleEndian.PutUint32(b[i*4:], uint32(x))
	}
	return u.res.block.Write(u.offset, b[:len(v)*4])
}

func (u *Uniform) checkMatrix(n ir.VectorSize) error {
	if u.kind != UniformValue {
		return fmt.Errorf("%w: %s is a %s", ErrTypeMismatch, u.name, u.kind)
	}
	m, ok := u.inner.(ir.MatrixType)
	if !ok || m.Columns != n || m.Rows != n || m.Scalar.Kind != ir.ScalarFloat || m.Scalar.Width != 4 {
		return fmt.Errorf("%w: %s is not a mat%dx%d<f32>", ErrTypeMismatch, u.name, n, n)
	}
	return nil
}

func putFloat(b []byte, f float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(f))
}

// Attribute is a resolved handle to a vertex shader input.
type Attribute struct {
	name     string
	location uint32
	program  *Program
}

// Name returns the input name.
func (a *Attribute) Name() string { return a.name }

// Location returns the shader location.
func (a *Attribute) Location() uint32 { return a.location }

// Set feeds the attribute from the vertex buffer attribute declared for
// semantic and channel. All attributes of a program read from one vertex
// buffer; binding a different buffer drops the bindings made against the
// previous one.
func (a *Attribute) Set(vb *buffer.VertexBuffer, semantic buffer.Semantic, channel int) error {
	if vb == nil {
		return fmt.Errorf("shader: attribute %s: nil vertex buffer", a.name)
	}
	layout, ok := vb.AttributeLayout(semantic, channel, a.location)
	if !ok {
		return fmt.Errorf("%w: %s channel %d for %s", buffer.ErrAttributeNotFound, semantic, channel, a.name)
	}
	p := a.program
	if p.vertexBuffer != vb {
		p.vertexBuffer = vb
		clear(p.vertexLayout)
	}
	p.vertexLayout[a.location] = layout
	return nil
}
