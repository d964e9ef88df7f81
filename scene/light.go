package scene

import (
	"fmt"

	"github.com/gogpu/wgpu/hal"
	"golang.org/x/image/math/f32"
)

// LightKind is the type of a light source.
type LightKind int

// Light kinds. Spot lights are point lights with a direction, so Range
// applies to every kind except DirectionalLight.
const (
	PointLight LightKind = iota
	ProjectivePointLight
	SpotLight
	ProjectiveSpotLight
	DirectionalLight
)

// String returns the string representation of LightKind.
func (k LightKind) String() string {
	switch k {
	case PointLight:
		return "Point"
	case ProjectivePointLight:
		return "ProjectivePoint"
	case SpotLight:
		return "Spot"
	case ProjectiveSpotLight:
		return "ProjectiveSpot"
	case DirectionalLight:
		return "Directional"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// LightFlags modify how a light is rendered.
type LightFlags uint32

const (
	// CastShadow requests shadow mapping for the light.
	CastShadow LightFlags = 1 << iota

	// NoProjection renders a projective light without its texture.
	NoProjection

	// NoCone renders a spot light without cone attenuation.
	NoCone
)

// Light is a light source.
type Light struct {
	Name  string
	Kind  LightKind
	Flags LightFlags

	// Color is the linear RGB light color.
	Color f32.Vec3

	// Range is the radius of influence. Unused for directional lights.
	Range float32

	// OuterAngle and InnerAngle are the full spot cone angles in degrees.
	OuterAngle float32
	InnerAngle float32

	// Transform maps light space to world space.
	Transform f32.Mat4

	// Projection and View are the spot light's frustum: View maps light
	// space to the spot's view space, Projection maps that to clip space.
	Projection f32.Mat4
	View       f32.Mat4

	// Bounds is the light's volume in light space.
	Bounds AABB

	// Texture is the projected texture of a projective light. Nil selects
	// the renderer's default map.
	Texture hal.TextureView
}

// IsBlack reports whether the light emits nothing.
func (l *Light) IsBlack() bool {
	return l.Color == f32.Vec3{}
}

// IsDirectional reports whether the light is directional.
func (l *Light) IsDirectional() bool { return l.Kind == DirectionalLight }

// IsSpot reports whether the light is a spot light of either kind.
func (l *Light) IsSpot() bool { return l.Kind == SpotLight || l.Kind == ProjectiveSpotLight }

// IsProjectivePoint reports whether the light projects a cube map.
func (l *Light) IsProjectivePoint() bool {
	return l.Kind == ProjectivePointLight && l.Flags&NoProjection == 0
}

// IsProjectiveSpot reports whether the light projects a texture.
func (l *Light) IsProjectiveSpot() bool {
	return l.Kind == ProjectiveSpotLight && l.Flags&NoProjection == 0
}

// HasCone reports whether a spot light uses cone attenuation.
func (l *Light) HasCone() bool { return l.IsSpot() && l.Flags&NoCone == 0 }

// HasSmoothCone reports whether the cone fades between the inner and the
// outer angle. The inner angle must be the smaller one.
func (l *Light) HasSmoothCone() bool { return l.HasCone() && l.OuterAngle > l.InnerAngle }

// VisibleLight is a light as seen from the current camera.
type VisibleLight struct {
	Light *Light

	// WorldView maps light space to view space.
	WorldView f32.Mat4

	// WorldViewProjection maps light space to clip space.
	WorldViewProjection f32.Mat4

	// DistanceSquared is the squared distance to the camera.
	DistanceSquared float32
}

// Camera holds the projection parameters a pass needs.
type Camera struct {
	// FOV is the vertical field of view in degrees. Zero means 45.
	FOV float32

	// Aspect is the width to height ratio. Zero means 1.
	Aspect float32
}

// FieldOfView returns FOV with its default applied.
func (c Camera) FieldOfView() float32 {
	if c.FOV == 0 {
		return 45
	}
	return c.FOV
}

// AspectRatio returns Aspect with its default applied.
func (c Camera) AspectRatio() float32 {
	if c.Aspect == 0 {
		return 1
	}
	return c.Aspect
}

// View is the visible part of a scene.
type View struct {
	Camera   Camera
	Viewport Viewport

	// Lights are the visible lights of this cell in draw order.
	Lights []VisibleLight

	// Cells are nested containers and cells seen through portals. Their
	// camera and viewport are those of the root view.
	Cells []*View
}

// NewVisibleLight places l in view with the given world-to-view and
// projection matrices.
func NewVisibleLight(l *Light, view, projection f32.Mat4) VisibleLight {
	wv := Mul(view, l.Transform)
	t := Translation(wv)
	return VisibleLight{
		Light:               l,
		WorldView:           wv,
		WorldViewProjection: Mul(projection, wv),
		DistanceSquared:     t[0]*t[0] + t[1]*t[1] + t[2]*t[2],
	}
}

// ShadowMap is a rendered shadow map.
type ShadowMap struct {
	View hal.TextureView

	// Size is the edge length in texels.
	Size uint32
}

// ShadowMaps renders shadow maps on demand.
type ShadowMaps interface {
	// UpdateShadowMap renders the shadow map of l. distanceSquared selects
	// the level of detail; zero requests full detail.
	UpdateShadowMap(l *VisibleLight, distanceSquared float32) error

	// SpotShadowMap returns the depth map of the last spot light update.
	SpotShadowMap() *ShadowMap

	// CubeShadowMap returns the packed distance cube map of the last point
	// light update.
	CubeShadowMap() *ShadowMap
}

// GBuffer exposes the render targets of a geometry pass.
//
// Target 0 holds albedo and ambient occlusion, target 1 the encoded normal
// and the view space depth, target 2 specular color and exponent.
type GBuffer interface {
	RenderTarget(i int) hal.TextureView
	Size() (width, height uint32)
}

// TextureGBuffer is a GBuffer over existing texture views.
type TextureGBuffer struct {
	Targets       [3]hal.TextureView
	Width, Height uint32
}

// RenderTarget returns target i, or nil.
func (g *TextureGBuffer) RenderTarget(i int) hal.TextureView {
	if i < 0 || i >= len(g.Targets) {
		return nil
	}
	return g.Targets[i]
}

// Size returns the target size in texels.
func (g *TextureGBuffer) Size() (width, height uint32) { return g.Width, g.Height }

// StaticShadowMaps serves fixed shadow maps and counts update requests.
type StaticShadowMaps struct {
	Spot, Cube *ShadowMap
	Updates    int
}

// UpdateShadowMap records the request.
func (s *StaticShadowMaps) UpdateShadowMap(*VisibleLight, float32) error {
	s.Updates++
	return nil
}

// SpotShadowMap returns Spot.
func (s *StaticShadowMaps) SpotShadowMap() *ShadowMap { return s.Spot }

// CubeShadowMap returns Cube.
func (s *StaticShadowMaps) CubeShadowMap() *ShadowMap { return s.Cube }
