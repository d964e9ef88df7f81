package buffer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image/color"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/x448/float16"

	"github.com/gogpu/ubershader/gpucore"
)

// Vertex attribute errors.
var (
	// ErrDuplicateAttribute is returned when a semantic/channel pair is declared twice.
	ErrDuplicateAttribute = errors.New("buffer: vertex attribute already defined")

	// ErrInvalidAttribute is returned when a semantic does not accept the
	// requested type or channel.
	ErrInvalidAttribute = errors.New("buffer: invalid vertex attribute")

	// ErrAttributeNotFound is returned when no attribute matches a semantic/channel pair.
	ErrAttributeNotFound = errors.New("buffer: vertex attribute not found")
)

// Semantic names the meaning of a vertex attribute.
type Semantic int

// Vertex attribute semantics.
const (
	Position Semantic = iota
	BlendWeight
	Normal
	Color
	FogCoord
	PointSize
	BlendIndices
	TexCoord
	Tangent
	Binormal
)

var semanticNames = [...]string{
	Position:     "Position",
	BlendWeight:  "BlendWeight",
	Normal:       "Normal",
	Color:        "Color",
	FogCoord:     "FogCoord",
	PointSize:    "PointSize",
	BlendIndices: "BlendIndices",
	TexCoord:     "TexCoord",
	Tangent:      "Tangent",
	Binormal:     "Binormal",
}

// String returns the string representation of Semantic.
func (s Semantic) String() string {
	if s >= 0 && int(s) < len(semanticNames) {
		return semanticNames[s]
	}
	return fmt.Sprintf("Unknown(%d)", int(s))
}

// AttributeType is the storage format of one vertex attribute.
type AttributeType int

// Vertex attribute storage types.
const (
	// TypeRGBA is four unsigned normalized bytes.
	TypeRGBA AttributeType = iota
	TypeFloat1
	TypeFloat2
	TypeFloat3
	TypeFloat4
	// TypeShort2 and TypeShort4 hold unsigned 16-bit integers.
	TypeShort2
	TypeShort4
	// TypeHalf2 and TypeHalf4 hold IEEE 754 half-precision floats.
	TypeHalf2
	TypeHalf4
)

type attributeTypeInfo struct {
	name       string
	size       int
	components int
	format     gputypes.VertexFormat
}

var attributeTypes = [...]attributeTypeInfo{
	TypeRGBA:   {"RGBA", 4, 4, gputypes.VertexFormatUnorm8x4},
	TypeFloat1: {"Float1", 4, 1, gputypes.VertexFormatFloat32},
	TypeFloat2: {"Float2", 8, 2, gputypes.VertexFormatFloat32x2},
	TypeFloat3: {"Float3", 12, 3, gputypes.VertexFormatFloat32x3},
	TypeFloat4: {"Float4", 16, 4, gputypes.VertexFormatFloat32x4},
	TypeShort2: {"Short2", 4, 2, gputypes.VertexFormatUint16x2},
	TypeShort4: {"Short4", 8, 4, gputypes.VertexFormatUint16x4},
	TypeHalf2:  {"Half2", 4, 2, gputypes.VertexFormatFloat16x2},
	TypeHalf4:  {"Half4", 8, 4, gputypes.VertexFormatFloat16x4},
}

func (t AttributeType) valid() bool { return t >= 0 && int(t) < len(attributeTypes) }

// String returns the string representation of AttributeType.
func (t AttributeType) String() string {
	if t.valid() {
		return attributeTypes[t].name
	}
	return fmt.Sprintf("Unknown(%d)", int(t))
}

// Size returns the size of one attribute value in bytes.
func (t AttributeType) Size() int {
	if t.valid() {
		return attributeTypes[t].size
	}
	return 0
}

// Components returns the number of components of one attribute value.
func (t AttributeType) Components() int {
	if t.valid() {
		return attributeTypes[t].components
	}
	return 0
}

// Format returns the matching vertex format.
func (t AttributeType) Format() gputypes.VertexFormat {
	if t.valid() {
		return attributeTypes[t].format
	}
	return gputypes.VertexFormatUndefined
}

// VertexAttribute describes one attribute inside a vertex.
type VertexAttribute struct {
	Semantic Semantic
	Channel  int
	Type     AttributeType
	Offset   int
}

// VertexBuffer is a device buffer of interleaved vertices.
type VertexBuffer struct {
	DeviceBuffer
	attributes []VertexAttribute
}

// NewVertexBuffer creates an empty vertex buffer on ctx.
func NewVertexBuffer(ctx *gpucore.Context, label string) *VertexBuffer {
	vb := &VertexBuffer{}
	vb.init(ctx, gpucore.BufferVertex, label, 0)
	return vb
}

// VertexSize returns the size of one vertex in bytes.
func (vb *VertexBuffer) VertexSize() int { return vb.stride }

// NumAttributes returns the number of declared attributes.
func (vb *VertexBuffer) NumAttributes() int { return len(vb.attributes) }

// Attributes returns a copy of the declared attributes in declaration order.
func (vb *VertexBuffer) Attributes() []VertexAttribute {
	return append([]VertexAttribute(nil), vb.attributes...)
}

// Attribute returns the attribute declared for semantic and channel.
func (vb *VertexBuffer) Attribute(semantic Semantic, channel int) (VertexAttribute, bool) {
	for _, a := range vb.attributes {
		if a.Semantic == semantic && a.Channel == channel {
			return a, true
		}
	}
	return VertexAttribute{}, false
}

// AddVertexAttribute appends an attribute to the vertex layout.
//
// Normal, Tangent and Binormal must be TypeFloat3 and Color must be TypeRGBA.
// Position and Normal accept channels 0 and 1, Color accepts channels 0 to 2.
// When the buffer is already allocated, existing vertices are moved into the
// new layout and the new attribute starts out zeroed.
func (vb *VertexBuffer) AddVertexAttribute(semantic Semantic, channel int, typ AttributeType) error {
	if err := validateAttribute(semantic, channel, typ); err != nil {
		return err
	}
	if _, ok := vb.Attribute(semantic, channel); ok {
		return fmt.Errorf("%w: %v channel %d", ErrDuplicateAttribute, semantic, channel)
	}
	if vb.lockCount > 0 {
		return ErrLocked
	}

	attr := VertexAttribute{Semantic: semantic, Channel: channel, Type: typ, Offset: vb.stride}
	if !vb.allocated {
		vb.attributes = append(vb.attributes, attr)
		vb.stride += typ.Size()
		return nil
	}

	oldStride := vb.stride
	old, err := vb.readAll()
	if err != nil {
		return fmt.Errorf("buffer: migrate vertices: %w", err)
	}
	vb.stride += typ.Size()
	if err := vb.Allocate(vb.count, vb.usage, vb.managed, false); err != nil {
		vb.stride = oldStride
		return err
	}
	vb.attributes = append(vb.attributes, attr)
	return vb.WithLock(gpucore.LockWriteOnly, func(dst []byte) error {
		for i := 0; i < vb.count; i++ {
			copy(dst[i*vb.stride:i*vb.stride+oldStride], old[i*oldStride:(i+1)*oldStride])
		}
		return nil
	})
}

// ClearVertexAttributes removes every attribute. It fails while the buffer
// is allocated.
func (vb *VertexBuffer) ClearVertexAttributes() error {
	if vb.allocated {
		return fmt.Errorf("buffer: clear vertex attributes: %w", errAllocated)
	}
	vb.attributes = nil
	vb.stride = 0
	return nil
}

var errAllocated = errors.New("buffer is allocated")

func validateAttribute(semantic Semantic, channel int, typ AttributeType) error {
	if !typ.valid() || channel < 0 || semantic < 0 || int(semantic) >= len(semanticNames) {
		return fmt.Errorf("%w: %v channel %d type %v", ErrInvalidAttribute, semantic, channel, typ)
	}
	switch semantic {
	case Normal, Tangent, Binormal:
		if typ != TypeFloat3 {
			return fmt.Errorf("%w: %v requires Float3, got %v", ErrInvalidAttribute, semantic, typ)
		}
	case Color:
		if typ != TypeRGBA {
			return fmt.Errorf("%w: Color requires RGBA, got %v", ErrInvalidAttribute, typ)
		}
	}
	switch semantic {
	case Position, Normal:
		if channel > 1 {
			return fmt.Errorf("%w: %v channel %d > 1", ErrInvalidAttribute, semantic, channel)
		}
	case Color:
		if channel > 2 {
			return fmt.Errorf("%w: Color channel %d > 2", ErrInvalidAttribute, channel)
		}
	}
	return nil
}

// AttributeData returns the bytes of one attribute of vertex index. The
// buffer must be locked.
func (vb *VertexBuffer) AttributeData(index int, semantic Semantic, channel int) ([]byte, error) {
	if vb.locked == nil {
		return nil, ErrNotLocked
	}
	a, ok := vb.Attribute(semantic, channel)
	if !ok {
		return nil, fmt.Errorf("%w: %v channel %d", ErrAttributeNotFound, semantic, channel)
	}
	if index < 0 || index >= vb.count {
		return nil, fmt.Errorf("%w: vertex %d of %d", ErrOutOfRange, index, vb.count)
	}
	start := index*vb.stride + a.Offset
	return vb.locked[start : start+a.Type.Size()], nil
}

// Float reads an attribute as up to four floats. Missing components are zero.
// Colors are returned as normalized [0,1] components.
func (vb *VertexBuffer) Float(index int, semantic Semantic, channel int) ([4]float32, error) {
	var v [4]float32
	data, err := vb.AttributeData(index, semantic, channel)
	if err != nil {
		return v, err
	}
	a, _ := vb.Attribute(semantic, channel)
	n := a.Type.Components()
	for i := 0; i < n; i++ {
		switch a.Type {
		case TypeRGBA:
			v[i] = float32(data[i]) / 255
		case TypeFloat1, TypeFloat2, TypeFloat3, TypeFloat4:
			v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		case TypeShort2, TypeShort4:
			v[i] = float32(binary.LittleEndian.Uint16(data[i*2:]))
		case TypeHalf2, TypeHalf4:
			v[i] = float16.Frombits(binary.LittleEndian.Uint16(data[i*2:])).Float32()
		}
	}
	return v, nil
}

// SetFloat writes up to four floats into an attribute. Extra components are
// ignored. Color components are clamped to [0,1].
func (vb *VertexBuffer) SetFloat(index int, semantic Semantic, channel int, v [4]float32) error {
	data, err := vb.AttributeData(index, semantic, channel)
	if err != nil {
		return err
	}
	a, _ := vb.Attribute(semantic, channel)
	n := a.Type.Components()
	for i := 0; i < n; i++ {
		switch a.Type {
		case TypeRGBA:
			data[i] = unorm8(v[i])
		case TypeFloat1, TypeFloat2, TypeFloat3, TypeFloat4:
			binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v[i]))
		case TypeShort2, TypeShort4:
			binary.LittleEndian.PutUint16(data[i*2:], uint16(clamp(v[i], 0, math.MaxUint16)))
		case TypeHalf2, TypeHalf4:
			binary.LittleEndian.PutUint16(data[i*2:], float16.Fromfloat32(v[i]).Bits())
		}
	}
	return nil
}

// Color reads a Color attribute.
func (vb *VertexBuffer) Color(index, channel int) (color.NRGBA, error) {
	data, err := vb.AttributeData(index, Color, channel)
	if err != nil {
		return color.NRGBA{}, err
	}
	return color.NRGBA{R: data[0], G: data[1], B: data[2], A: data[3]}, nil
}

// SetColor writes a Color attribute.
func (vb *VertexBuffer) SetColor(index, channel int, c color.NRGBA) error {
	data, err := vb.AttributeData(index, Color, channel)
	if err != nil {
		return err
	}
	data[0], data[1], data[2], data[3] = c.R, c.G, c.B, c.A
	return nil
}

// AttributeLayout returns the layout entry that feeds shader location from
// the attribute declared for semantic and channel.
func (vb *VertexBuffer) AttributeLayout(semantic Semantic, channel int, location uint32) (gputypes.VertexAttribute, bool) {
	a, ok := vb.Attribute(semantic, channel)
	if !ok {
		return gputypes.VertexAttribute{}, false
	}
	return gputypes.VertexAttribute{
		Format:         a.Type.Format(),
		Offset:         uint64(a.Offset),
		ShaderLocation: location,
	}, true
}

func unorm8(f float32) uint8 {
	return uint8(clamp(f, 0, 1)*255 + 0.5)
}

func clamp(f, lo, hi float32) float32 {
	if f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return f
}
