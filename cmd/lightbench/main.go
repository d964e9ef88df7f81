// Command lightbench renders a configured light set through the deferred
// lighting pass on a headless device and reports per-frame statistics.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/ubershader"
	"github.com/gogpu/ubershader/deferred"
	"github.com/gogpu/ubershader/reload"
	"github.com/gogpu/ubershader/scene"
)

func main() {
	var (
		configPath = flag.String("config", "", "scene file (TOML); the demo scene if empty")
		frames     = flag.Int("frames", 0, "frame count, overrides the scene file")
		language   = flag.String("lang", "", "shader language, overrides the scene file")
		watchDir   = flag.String("watch", "", "directory with lighting_vs.wgsl and lighting_fs.wgsl to hot reload")
		resetEvery = flag.Int("reset", 0, "simulate a device reset every n frames")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	ubershader.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load scene: %v", err)
	}
	if *frames > 0 {
		cfg.Frames = *frames
	}
	if *language != "" {
		cfg.Language = *language
	}

	device, queue, closeDevice, err := openDevice()
	if err != nil {
		log.Fatalf("Failed to open device: %v", err)
	}
	defer closeDevice()

	if err := run(device, queue, &cfg, *watchDir, *resetEvery); err != nil {
		log.Fatalf("lightbench: %v", err)
	}
}

func run(device hal.Device, queue hal.Queue, cfg *Config, watchDir string, resetEvery int) error {
	r, err := ubershader.NewRenderer(device, queue)
	if err != nil {
		return err
	}
	lang := cfg.Language
	if lang == "" {
		lang = r.DefaultShaderLanguage()
	}
	if r.ShaderLanguage(lang) == nil {
		return fmt.Errorf("unknown shader language %q (have %v)", lang, r.ShaderLanguages())
	}
	flags, err := cfg.PassFlags()
	if err != nil {
		return err
	}

	res, err := newResources(device, cfg.Width, cfg.Height)
	if err != nil {
		return err
	}
	defer res.release(device)

	pass, err := r.NewLightingPass(
		deferred.WithFlags(flags),
		deferred.WithShaderLanguage(lang),
		deferred.WithDefaultCubeMap(res.cubeMap),
		deferred.WithDefaultSpotMap(res.spotMap),
	)
	if err != nil {
		return err
	}
	defer pass.Release()

	var watcher *reload.Watcher
	if watchDir != "" {
		watcher, err = reload.New(
			filepath.Join(watchDir, "lighting_vs.wgsl"),
			filepath.Join(watchDir, "lighting_fs.wgsl"),
			pass.SetShaderSource,
		)
		if err != nil {
			return err
		}
		defer watcher.Close()
		if err := watcher.Load(); err != nil {
			return err
		}
	}

	lights := make([]*scene.Light, 0, len(cfg.Lights))
	for i := range cfg.Lights {
		l, err := cfg.Lights[i].Light()
		if err != nil {
			return fmt.Errorf("light %d: %w", i, err)
		}
		lights = append(lights, l)
	}
	view, err := cfg.View(lights)
	if err != nil {
		return err
	}
	frame := deferred.Frame{
		Target:     res.target,
		View:       view,
		GBuffer:    &scene.TextureGBuffer{Targets: res.gbuffer, Width: cfg.Width, Height: cfg.Height},
		ShadowMaps: res.shadows,
	}

	log.Printf("Rendering %d lights for %d frames (%s, %v)", len(lights), cfg.Frames, lang, flags)
	var total deferred.FrameStats
	start := time.Now()
	for i := 0; i < cfg.Frames; i++ {
		if watcher != nil {
			if applied, err := watcher.Poll(); err != nil {
				log.Printf("Reload failed: %v", err)
			} else if applied {
				log.Printf("Reloaded lighting templates")
			}
		}
		if resetEvery > 0 && i > 0 && i%resetEvery == 0 {
			if err := r.BackupDeviceData(); err != nil {
				return fmt.Errorf("backup: %w", err)
			}
			if err := r.RestoreDeviceData(device, queue); err != nil {
				return fmt.Errorf("restore: %w", err)
			}
		}
		stats, err := pass.Draw(frame)
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		total.Lights += stats.Lights
		total.Drawn += stats.Drawn
		total.Skipped += stats.Skipped
		total.Failed += stats.Failed
	}
	elapsed := time.Since(start)

	log.Printf("Frames: %d in %v (%v/frame)", cfg.Frames, elapsed, elapsed/time.Duration(cfg.Frames))
	log.Printf("Lights: %v", total)
	log.Printf("Programs: %v", pass.Generator().Stats())
	log.Printf("Shadow map updates: %d", res.shadows.Updates)
	log.Printf("%v", r.Stats())
	return nil
}

func openDevice() (hal.Device, hal.Queue, func(), error) {
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		return nil, nil, nil, err
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, nil, nil, fmt.Errorf("no adapters")
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, nil, nil, err
	}
	return openDev.Device, openDev.Queue, func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}, nil
}

const shadowMapSize = 512

// resources are the textures a headless frame renders from and into.
type resources struct {
	textures []hal.Texture
	views    []hal.TextureView

	target  hal.TextureView
	gbuffer [3]hal.TextureView
	cubeMap hal.TextureView
	spotMap hal.TextureView
	shadows *scene.StaticShadowMaps
}

func newResources(device hal.Device, width, height uint32) (*resources, error) {
	res := &resources{}
	var err error
	view := func(label string, w, h, layers uint32, format gputypes.TextureFormat, dim gputypes.TextureViewDimension) hal.TextureView {
		if err != nil {
			return nil
		}
		var tex hal.Texture
		tex, err = device.CreateTexture(&hal.TextureDescriptor{
			Label:         label,
			Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: layers},
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     gputypes.TextureDimension2D,
			Format:        format,
			Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding,
		})
		if err != nil {
			err = fmt.Errorf("create %s: %w", label, err)
			return nil
		}
		res.textures = append(res.textures, tex)
		var v hal.TextureView
		v, err = device.CreateTextureView(tex, &hal.TextureViewDescriptor{Label: label, Format: format, Dimension: dim})
		if err != nil {
			err = fmt.Errorf("create %s view: %w", label, err)
			return nil
		}
		res.views = append(res.views, v)
		return v
	}

	res.target = view("light accumulation", width, height, 1, gputypes.TextureFormatRGBA16Float, gputypes.TextureViewDimension2D)
	res.gbuffer[0] = view("albedo", width, height, 1, gputypes.TextureFormatRGBA8Unorm, gputypes.TextureViewDimension2D)
	res.gbuffer[1] = view("normal depth", width, height, 1, gputypes.TextureFormatRGBA16Float, gputypes.TextureViewDimension2D)
	res.gbuffer[2] = view("specular", width, height, 1, gputypes.TextureFormatRGBA8Unorm, gputypes.TextureViewDimension2D)
	res.cubeMap = view("default cube map", 64, 64, 6, gputypes.TextureFormatRGBA8UnormSrgb, gputypes.TextureViewDimensionCube)
	res.spotMap = view("default spot map", 64, 64, 1, gputypes.TextureFormatRGBA8UnormSrgb, gputypes.TextureViewDimension2D)
	spotShadow := view("spot shadow map", shadowMapSize, shadowMapSize, 1, gputypes.TextureFormatDepth32Float, gputypes.TextureViewDimension2D)
	cubeShadow := view("cube shadow map", shadowMapSize, shadowMapSize, 6, gputypes.TextureFormatRGBA8Unorm, gputypes.TextureViewDimensionCube)
	if err != nil {
		res.release(device)
		return nil, err
	}
	res.shadows = &scene.StaticShadowMaps{
		Spot: &scene.ShadowMap{View: spotShadow, Size: shadowMapSize},
		Cube: &scene.ShadowMap{View: cubeShadow, Size: shadowMapSize},
	}
	return res, nil
}

func (r *resources) release(device hal.Device) {
	for _, v := range r.views {
		device.DestroyTextureView(v)
	}
	for _, t := range r.textures {
		device.DestroyTexture(t)
	}
	r.views, r.textures = nil, nil
}
