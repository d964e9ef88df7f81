package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/image/math/f32"

	"github.com/gogpu/ubershader/deferred"
	"github.com/gogpu/ubershader/scene"
)

// Config describes a benchmark scene.
//
//	width = 1280
//	height = 720
//	frames = 60
//	flags = "NoSoftShadow|NoGammaCorrection"
//
//	[camera]
//	fov = 60
//	position = [0, 2, 10]
//
//	[[light]]
//	kind = "spot"
//	color = [1, 0.9, 0.8]
//	position = [2, 4, 0]
//	pitch = 60
//	range = 12
//	outer_angle = 50
//	inner_angle = 30
//	cast_shadow = true
type Config struct {
	Width    uint32        `toml:"width"`
	Height   uint32        `toml:"height"`
	Frames   int           `toml:"frames"`
	Language string        `toml:"language"`
	Flags    string        `toml:"flags"`
	Camera   CameraConfig  `toml:"camera"`
	Lights   []LightConfig `toml:"light"`
}

// CameraConfig places the camera. Angles are in degrees.
type CameraConfig struct {
	FOV      float32    `toml:"fov"`
	Near     float32    `toml:"near"`
	Far      float32    `toml:"far"`
	Position [3]float32 `toml:"position"`
	Yaw      float32    `toml:"yaw"`
	Pitch    float32    `toml:"pitch"`
}

// LightConfig describes one light. Angles are in degrees.
type LightConfig struct {
	Name         string     `toml:"name"`
	Kind         string     `toml:"kind"`
	Color        [3]float32 `toml:"color"`
	Position     [3]float32 `toml:"position"`
	Yaw          float32    `toml:"yaw"`
	Pitch        float32    `toml:"pitch"`
	Range        float32    `toml:"range"`
	OuterAngle   float32    `toml:"outer_angle"`
	InnerAngle   float32    `toml:"inner_angle"`
	CastShadow   bool       `toml:"cast_shadow"`
	NoCone       bool       `toml:"no_cone"`
	NoProjection bool       `toml:"no_projection"`
}

func defaultConfig() Config {
	return Config{
		Width:  640,
		Height: 480,
		Frames: 1,
		Camera: CameraConfig{
			FOV:      60,
			Near:     0.1,
			Far:      100,
			Position: [3]float32{0, 0, 10},
		},
	}
}

// demoLights is the scene used without a config file.
var demoLights = []LightConfig{
	{Name: "sun", Kind: "directional", Color: [3]float32{0.4, 0.4, 0.35}, Pitch: 45},
	{Name: "lamp", Kind: "point", Color: [3]float32{1, 0.8, 0.6}, Position: [3]float32{-2, 1, 0}, Range: 6, CastShadow: true},
	{Name: "globe", Kind: "projective_point", Color: [3]float32{0.6, 0.6, 1}, Position: [3]float32{2, 1, 2}, Range: 5},
	{Name: "torch", Kind: "spot", Color: [3]float32{1, 1, 1}, Position: [3]float32{0, 4, 0}, Pitch: 90, Range: 10, OuterAngle: 50, InnerAngle: 30, CastShadow: true},
	{Name: "slide", Kind: "projective_spot", Color: [3]float32{1, 1, 1}, Position: [3]float32{0, 1, -4}, Range: 12, OuterAngle: 40, InnerAngle: 40},
}

// loadConfig reads a scene from path. An empty path selects the demo scene.
func loadConfig(path string) (Config, error) {
	if path == "" {
		cfg := defaultConfig()
		cfg.Lights = demoLights
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg, err := parseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// parseConfig decodes a TOML scene over the defaults.
func parseConfig(data []byte) (Config, error) {
	cfg := defaultConfig()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Width == 0 || c.Height == 0 {
		return fmt.Errorf("invalid size %dx%d", c.Width, c.Height)
	}
	if c.Frames < 1 {
		return fmt.Errorf("invalid frame count %d", c.Frames)
	}
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		return fmt.Errorf("invalid camera range [%v, %v]", c.Camera.Near, c.Camera.Far)
	}
	if _, err := c.PassFlags(); err != nil {
		return err
	}
	for i := range c.Lights {
		if _, err := parseKind(c.Lights[i].Kind); err != nil {
			return fmt.Errorf("light %d: %w", i, err)
		}
	}
	return nil
}

// PassFlags parses Flags. Unknown names are an error.
func (c *Config) PassFlags() (deferred.Flags, error) {
	f, unknown := deferred.ParseFlags(c.Flags)
	if len(unknown) > 0 {
		return 0, fmt.Errorf("unknown flags %s", strings.Join(unknown, ", "))
	}
	return f, nil
}

func parseKind(s string) (scene.LightKind, error) {
	switch strings.ToLower(strings.ReplaceAll(s, "-", "_")) {
	case "", "point":
		return scene.PointLight, nil
	case "projective_point":
		return scene.ProjectivePointLight, nil
	case "spot":
		return scene.SpotLight, nil
	case "projective_spot":
		return scene.ProjectiveSpotLight, nil
	case "directional":
		return scene.DirectionalLight, nil
	}
	return 0, fmt.Errorf("unknown light kind %q", s)
}

func orientation(pos [3]float32, yaw, pitch float32) f32.Mat4 {
	return scene.Mul(scene.Translate(pos[0], pos[1], pos[2]), scene.Mul(scene.RotateY(yaw), scene.RotateX(pitch)))
}

// Light builds the scene light.
func (lc *LightConfig) Light() (*scene.Light, error) {
	kind, err := parseKind(lc.Kind)
	if err != nil {
		return nil, err
	}
	l := &scene.Light{
		Name:       lc.Name,
		Kind:       kind,
		Color:      f32.Vec3(lc.Color),
		Range:      lc.Range,
		OuterAngle: lc.OuterAngle,
		InnerAngle: lc.InnerAngle,
		Transform:  orientation(lc.Position, lc.Yaw, lc.Pitch),
		View:       scene.Identity(),
		Bounds: scene.AABB{
			Min: f32.Vec3{-lc.Range, -lc.Range, -lc.Range},
			Max: f32.Vec3{lc.Range, lc.Range, lc.Range},
		},
	}
	if lc.CastShadow {
		l.Flags |= scene.CastShadow
	}
	if lc.NoCone {
		l.Flags |= scene.NoCone
	}
	if lc.NoProjection {
		l.Flags |= scene.NoProjection
	}
	if l.IsSpot() {
		angle := lc.OuterAngle
		if angle <= 0 {
			angle = 90
		}
		l.Projection = scene.Perspective(angle, 1, 0.05, max(lc.Range, 0.1))
	}
	return l, nil
}

// View places lights in front of the configured camera.
func (c *Config) View(lights []*scene.Light) (*scene.View, error) {
	cam := c.Camera
	aspect := float32(c.Width) / float32(c.Height)
	view, ok := scene.Inverse(orientation(cam.Position, cam.Yaw, cam.Pitch))
	if !ok {
		return nil, fmt.Errorf("camera transform is singular")
	}
	proj := scene.Perspective(cam.FOV, aspect, cam.Near, cam.Far)
	v := &scene.View{
		Camera:   scene.Camera{FOV: cam.FOV, Aspect: aspect},
		Viewport: scene.Viewport{Width: c.Width, Height: c.Height},
	}
	for _, l := range lights {
		v.Lights = append(v.Lights, scene.NewVisibleLight(l, view, proj))
	}
	return v, nil
}
