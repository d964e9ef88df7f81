package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gogpu/ubershader/deferred"
	"github.com/gogpu/ubershader/internal/gputest"
	"github.com/gogpu/ubershader/scene"
)

const testScene = `
width = 320
height = 240
frames = 3
flags = "NoShadow|NoGammaCorrection"

[camera]
fov = 75
position = [0, 2, 8]

[[light]]
name = "key"
kind = "projective-spot"
color = [1, 0.5, 0.25]
position = [1, 3, 0]
pitch = 45
range = 9
outer_angle = 40
inner_angle = 20
cast_shadow = true

[[light]]
kind = "directional"
color = [0.2, 0.2, 0.2]
`

func TestParseConfig(t *testing.T) {
	cfg, err := parseConfig([]byte(testScene))
	if err != nil {
		t.Fatalf("parseConfig failed: %v", err)
	}
	if cfg.Width != 320 || cfg.Height != 240 || cfg.Frames != 3 {
		t.Errorf("expected 320x240 for 3 frames, got %dx%d for %d", cfg.Width, cfg.Height, cfg.Frames)
	}
	if cfg.Camera.FOV != 75 || cfg.Camera.Near != 0.1 || cfg.Camera.Far != 100 {
		t.Errorf("expected fov 75 with default range, got %+v", cfg.Camera)
	}
	flags, err := cfg.PassFlags()
	if err != nil || flags != deferred.NoShadow|deferred.NoGammaCorrection {
		t.Errorf("expected NoShadow|NoGammaCorrection, got %v (%v)", flags, err)
	}
	if len(cfg.Lights) != 2 {
		t.Fatalf("expected 2 lights, got %d", len(cfg.Lights))
	}

	key, err := cfg.Lights[0].Light()
	if err != nil {
		t.Fatalf("Light failed: %v", err)
	}
	if key.Kind != scene.ProjectiveSpotLight {
		t.Errorf("expected ProjectiveSpot, got %v", key.Kind)
	}
	if key.Flags != scene.CastShadow {
		t.Errorf("expected CastShadow, got %v", key.Flags)
	}
	if !key.HasSmoothCone() {
		t.Error("expected a smooth cone")
	}
	if key.Projection == (scene.Light{}).Projection {
		t.Error("expected a spot projection")
	}
	if got := scene.Translation(key.Transform); got[0] != 1 || got[1] != 3 || got[2] != 0 {
		t.Errorf("expected position (1, 3, 0), got %v", got)
	}

	sun, err := cfg.Lights[1].Light()
	if err != nil {
		t.Fatalf("Light failed: %v", err)
	}
	if !sun.IsDirectional() || sun.IsBlack() {
		t.Errorf("expected a lit directional light, got %v %v", sun.Kind, sun.Color)
	}
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"unknown field", "colour = 1", "strict mode"},
		{"zero size", "width = 0", "invalid size"},
		{"no frames", "frames = 0", "invalid frame count"},
		{"bad camera range", "[camera]\nnear = 5\nfar = 1", "invalid camera range"},
		{"unknown flag", `flags = "NoShadow|Sparkle"`, "Sparkle"},
		{"unknown kind", "[[light]]\nkind = \"area\"", "area"},
		{"malformed", "width = ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseConfig([]byte(tt.data))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if len(cfg.Lights) != len(demoLights) {
		t.Errorf("expected the demo scene, got %d lights", len(cfg.Lights))
	}

	path := filepath.Join(t.TempDir(), "scene.toml")
	if err := os.WriteFile(path, []byte("width = 0"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(path); err == nil || !strings.Contains(err.Error(), path) {
		t.Errorf("expected an error naming %s, got %v", path, err)
	}
	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.toml")); !os.IsNotExist(err) {
		t.Errorf("expected a not-exist error, got %v", err)
	}
}

func TestView(t *testing.T) {
	cfg := defaultConfig()
	cfg.Width, cfg.Height = 200, 100
	l := &scene.Light{Kind: scene.PointLight, Transform: scene.Identity()}
	v, err := cfg.View([]*scene.Light{l})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
	if v.Camera.Aspect != 2 || v.Viewport.Width != 200 || v.Viewport.Height != 100 {
		t.Errorf("expected aspect 2 on 200x100, got %v on %+v", v.Camera.Aspect, v.Viewport)
	}
	if len(v.Lights) != 1 {
		t.Fatalf("expected 1 visible light, got %d", len(v.Lights))
	}
	// The camera sits at z=10, so the light at the origin is 10 units away.
	if got := v.Lights[0].DistanceSquared; got < 99.9 || got > 100.1 {
		t.Errorf("expected squared distance 100, got %v", got)
	}
}

func TestRunDemoScene(t *testing.T) {
	device, queue := gputest.NoopDevice(t)
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	cfg.Width, cfg.Height, cfg.Frames = 64, 48, 4
	if err := run(device, queue, &cfg, "", 2); err != nil {
		t.Fatalf("run failed: %v", err)
	}
}

func TestRunUnknownLanguage(t *testing.T) {
	device, queue := gputest.NoopDevice(t)
	cfg := defaultConfig()
	cfg.Language = "HLSL"
	err := run(device, queue, &cfg, "", 0)
	if err == nil || !strings.Contains(err.Error(), "HLSL") {
		t.Errorf("expected an unknown language error, got %v", err)
	}
}
