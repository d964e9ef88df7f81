package scene

import (
	"testing"

	"golang.org/x/image/math/f32"
)

func TestLightPredicates(t *testing.T) {
	tests := []struct {
		name       string
		light      Light
		directional, spot, projPoint, projSpot, cone, smooth bool
	}{
		{name: "point", light: Light{Kind: PointLight}},
		{name: "directional", light: Light{Kind: DirectionalLight}, directional: true},
		{name: "projective point", light: Light{Kind: ProjectivePointLight}, projPoint: true},
		{name: "projective point without projection", light: Light{Kind: ProjectivePointLight, Flags: NoProjection}},
		{
			name:  "smooth spot",
			light: Light{Kind: SpotLight, OuterAngle: 45, InnerAngle: 30},
			spot:  true, cone: true, smooth: true,
		},
		{
			name:  "hard spot",
			light: Light{Kind: SpotLight, OuterAngle: 30, InnerAngle: 30},
			spot:  true, cone: true,
		},
		{
			name:  "spot without cone",
			light: Light{Kind: SpotLight, Flags: NoCone, OuterAngle: 45, InnerAngle: 30},
			spot:  true,
		},
		{
			name:  "projective spot",
			light: Light{Kind: ProjectiveSpotLight, OuterAngle: 45},
			spot:  true, projSpot: true, cone: true, smooth: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &tt.light
			got := [6]bool{l.IsDirectional(), l.IsSpot(), l.IsProjectivePoint(), l.IsProjectiveSpot(), l.HasCone(), l.HasSmoothCone()}
			want := [6]bool{tt.directional, tt.spot, tt.projPoint, tt.projSpot, tt.cone, tt.smooth}
			if got != want {
				t.Errorf("expected %v, got %v", want, got)
			}
		})
	}
}

func TestLightIsBlack(t *testing.T) {
	if !(&Light{}).IsBlack() {
		t.Error("expected zero color to be black")
	}
	if (&Light{Color: f32.Vec3{0, 0, 0.1}}).IsBlack() {
		t.Error("expected a blue light not to be black")
	}
}

func TestLightKindString(t *testing.T) {
	if got := SpotLight.String(); got != "Spot" {
		t.Errorf("expected Spot, got %q", got)
	}
	if got := LightKind(9).String(); got != "Unknown(9)" {
		t.Errorf("expected Unknown(9), got %q", got)
	}
}

func TestNewVisibleLight(t *testing.T) {
	l := &Light{Transform: Translate(3, 0, 0)}
	v := NewVisibleLight(l, Translate(0, 0, -4), Identity())
	if got := Translation(v.WorldView); got != (f32.Vec3{3, 0, -4}) {
		t.Errorf("expected view position (3,0,-4), got %v", got)
	}
	if v.DistanceSquared != 25 {
		t.Errorf("expected squared distance 25, got %v", v.DistanceSquared)
	}
	if v.WorldViewProjection != v.WorldView {
		t.Error("expected identity projection to keep the world-view matrix")
	}
}

func TestCameraDefaults(t *testing.T) {
	var c Camera
	if c.FieldOfView() != 45 || c.AspectRatio() != 1 {
		t.Errorf("expected defaults 45 and 1, got %v and %v", c.FieldOfView(), c.AspectRatio())
	}
	c = Camera{FOV: 60, Aspect: 2}
	if c.FieldOfView() != 60 || c.AspectRatio() != 2 {
		t.Errorf("expected 60 and 2, got %v and %v", c.FieldOfView(), c.AspectRatio())
	}
}

func TestStaticProviders(t *testing.T) {
	g := &TextureGBuffer{Width: 4, Height: 2}
	if g.RenderTarget(-1) != nil || g.RenderTarget(3) != nil {
		t.Error("expected out of range targets to be nil")
	}
	if w, h := g.Size(); w != 4 || h != 2 {
		t.Errorf("expected 4x2, got %dx%d", w, h)
	}

	spot := &ShadowMap{Size: 512}
	s := &StaticShadowMaps{Spot: spot}
	if err := s.UpdateShadowMap(nil, 0); err != nil {
		t.Fatalf("UpdateShadowMap failed: %v", err)
	}
	if s.Updates != 1 || s.SpotShadowMap() != spot || s.CubeShadowMap() != nil {
		t.Errorf("unexpected provider state: %+v", s)
	}
}
