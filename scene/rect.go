package scene

import (
	"math"

	"github.com/chewxy/math32"
	"golang.org/x/image/math/f32"
)

// Rect is an axis-aligned rectangle in floating point coordinates.
type Rect struct {
	MinX, MinY float32
	MaxX, MaxY float32
}

// EmptyRect returns an empty rectangle that any point extends.
func EmptyRect() Rect {
	return Rect{
		MinX: math.MaxFloat32,
		MinY: math.MaxFloat32,
		MaxX: -math.MaxFloat32,
		MaxY: -math.MaxFloat32,
	}
}

// IsEmpty reports whether the rectangle has no area.
func (r Rect) IsEmpty() bool {
	return r.MinX >= r.MaxX || r.MinY >= r.MaxY
}

// UnionPoint returns the smallest rectangle containing r and the point.
func (r Rect) UnionPoint(x, y float32) Rect {
	return Rect{
		MinX: min(r.MinX, x),
		MinY: min(r.MinY, y),
		MaxX: max(r.MaxX, x),
		MaxY: max(r.MaxY, y),
	}
}

// Intersect returns the overlap of r and other.
func (r Rect) Intersect(other Rect) Rect {
	return Rect{
		MinX: max(r.MinX, other.MinX),
		MinY: max(r.MinY, other.MinY),
		MaxX: min(r.MaxX, other.MaxX),
		MaxY: min(r.MaxY, other.MaxY),
	}
}

// Width returns the width of the rectangle.
func (r Rect) Width() float32 {
	if r.IsEmpty() {
		return 0
	}
	return r.MaxX - r.MinX
}

// Height returns the height of the rectangle.
func (r Rect) Height() float32 {
	if r.IsEmpty() {
		return 0
	}
	return r.MaxY - r.MinY
}

// Viewport is a pixel rectangle with a top-left origin.
type Viewport struct {
	X, Y          uint32
	Width, Height uint32
}

// Empty reports whether the viewport covers no pixels.
func (v Viewport) Empty() bool { return v.Width == 0 || v.Height == 0 }

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min, Max f32.Vec3
}

// Corners returns the eight corners of the box.
func (b AABB) Corners() [8]f32.Vec3 {
	var c [8]f32.Vec3
	for i := range c {
		c[i] = b.Min
		if i&1 != 0 {
			c[i][0] = b.Max[0]
		}
		if i&2 != 0 {
			c[i][1] = b.Max[1]
		}
		if i&4 != 0 {
			c[i][2] = b.Max[2]
		}
	}
	return c
}

// minClipW is the smallest clip w treated as in front of the camera.
const minClipW = 1e-6

// ScreenRect returns the part of vp covered by box once projected with
// worldViewProjection. A box reaching behind the camera covers the whole
// viewport; a box outside the view volume covers nothing.
func ScreenRect(box AABB, worldViewProjection f32.Mat4, vp Viewport) Viewport {
	ndc := EmptyRect()
	for _, c := range box.Corners() {
		p := Transform(worldViewProjection, f32.Vec4{c[0], c[1], c[2], 1})
		if p[3] <= minClipW {
			return vp
		}
		ndc = ndc.UnionPoint(p[0]/p[3], p[1]/p[3])
	}
	ndc = ndc.Intersect(Rect{MinX: -1, MinY: -1, MaxX: 1, MaxY: 1})
	if ndc.IsEmpty() {
		return Viewport{X: vp.X, Y: vp.Y}
	}

	w, h := float32(vp.Width), float32(vp.Height)
	x0 := math32.Floor((ndc.MinX + 1) * 0.5 * w)
	x1 := math32.Ceil((ndc.MaxX + 1) * 0.5 * w)
	// NDC y points up, pixel rows go down.
	y0 := math32.Floor((1 - ndc.MaxY) * 0.5 * h)
	y1 := math32.Ceil((1 - ndc.MinY) * 0.5 * h)
	return Viewport{
		X:      vp.X + uint32(x0),
		Y:      vp.Y + uint32(y0),
		Width:  uint32(x1 - x0),
		Height: uint32(y1 - y0),
	}
}
