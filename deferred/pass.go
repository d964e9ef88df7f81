package deferred

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"golang.org/x/image/math/f32"

	"github.com/gogpu/ubershader/buffer"
	"github.com/gogpu/ubershader/gpucore"
	"github.com/gogpu/ubershader/progen"
	"github.com/gogpu/ubershader/scene"
	"github.com/gogpu/ubershader/shader"
)

// Pass errors.
var (
	// ErrReleased is returned when drawing with a released pass.
	ErrReleased = errors.New("deferred: pass released")

	// ErrNoTarget is returned when a frame has no color target.
	ErrNoTarget = errors.New("deferred: frame has no render target")

	// ErrNoView is returned when a frame has no view.
	ErrNoView = errors.New("deferred: frame has no view")
)

// Renderer provides the shader languages and the device context of a pass.
// ubershader.Renderer implements it.
type Renderer interface {
	progen.LanguageProvider
	Context() *gpucore.Context
}

// Frame is the input of one lighting pass.
type Frame struct {
	// Target receives the accumulated light. It is loaded, not cleared.
	Target hal.TextureView

	View *scene.View

	// GBuffer holds the geometry pass output. Without render targets 0 and
	// 1 nothing is drawn.
	GBuffer scene.GBuffer

	// ShadowMaps may be nil, which disables shadow mapping.
	ShadowMaps scene.ShadowMaps
}

// FrameStats counts what happened to the visible lights of a frame.
type FrameStats struct {
	Lights  int
	Drawn   int
	Skipped int

	// Failed counts lights whose program variant was unavailable.
	Failed int
}

// String returns a one line summary of the stats.
func (s FrameStats) String() string {
	return fmt.Sprintf("lights=%d drawn=%d skipped=%d failed=%d", s.Lights, s.Drawn, s.Skipped, s.Failed)
}

type samplers struct {
	projectivePoint hal.Sampler
	projectiveSpot  hal.Sampler
	shadowSpot      hal.Sampler
	shadowCube      hal.Sampler
}

// Pass renders the lights of a view over a geometry buffer, one full screen
// quad per light, additively blended into the target.
//
// Program variants come from a progen.Generator over the lighting
// templates. Resolved uniform handles live in each variant's UserData and
// are rebuilt after the program relinks.
//
// Pass is not safe for concurrent use.
type Pass struct {
	ctx    *gpucore.Context
	flags  Flags
	format gputypes.TextureFormat
	gen    *progen.Generator
	quad   *buffer.VertexBuffer

	samplers       samplers
	defaultCubeMap hal.TextureView
	defaultSpotMap hal.TextureView

	programFlags progen.Flags
	released     bool
}

// New creates a lighting pass. The shader language must be available from r.
func New(r Renderer, opts ...Option) (*Pass, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	lang := r.ShaderLanguage(o.language)
	if lang == nil {
		return nil, fmt.Errorf("deferred: %w: %q", progen.ErrUnknownLanguage, o.language)
	}

	ctx := r.Context()
	p := &Pass{
		ctx:            ctx,
		flags:          o.flags,
		format:         o.format,
		defaultCubeMap: o.defaultCubeMap,
		defaultSpotMap: o.defaultSpotMap,
	}
	quad, err := newQuad(ctx)
	if err != nil {
		return nil, err
	}
	p.quad = quad
	if err := p.createSamplers(); err != nil {
		quad.Release()
		return nil, err
	}
	p.gen = progen.New(r, o.language,
		o.vertexSource, o.vertexProfile,
		o.fragmentSource, o.fragmentProfile,
		lang.NeedsPrecisionStrip())
	ctx.Register(p)

	slogger().Debug("deferred: pass created", "language", o.language, "flags", o.flags, "format", o.format)
	return p, nil
}

// quadVertices is a triangle strip over the whole viewport with texture
// coordinates running top left to bottom right.
var quadVertices = [4]struct{ pos, uv [4]float32 }{
	{pos: [4]float32{-1, 1, 0, 1}, uv: [4]float32{0, 0}},
	{pos: [4]float32{1, 1, 0, 1}, uv: [4]float32{1, 0}},
	{pos: [4]float32{-1, -1, 0, 1}, uv: [4]float32{0, 1}},
	{pos: [4]float32{1, -1, 0, 1}, uv: [4]float32{1, 1}},
}

func newQuad(ctx *gpucore.Context) (*buffer.VertexBuffer, error) {
	vb := buffer.NewVertexBuffer(ctx, "deferred quad")
	if err := vb.AddVertexAttribute(buffer.Position, 0, buffer.TypeFloat4); err != nil {
		vb.Release()
		return nil, err
	}
	if err := vb.AddVertexAttribute(buffer.TexCoord, 0, buffer.TypeFloat2); err != nil {
		vb.Release()
		return nil, err
	}
	if err := vb.Allocate(len(quadVertices), gpucore.UsageStatic, true, false); err != nil {
		vb.Release()
		return nil, fmt.Errorf("deferred: allocate quad: %w", err)
	}
	err := vb.WithLock(gpucore.LockWriteOnly, func([]byte) error {
		for i, v := range quadVertices {
			if err := vb.SetFloat(i, buffer.Position, 0, v.pos); err != nil {
				return err
			}
			if err := vb.SetFloat(i, buffer.TexCoord, 0, v.uv); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		vb.Release()
		return nil, fmt.Errorf("deferred: fill quad: %w", err)
	}
	return vb, nil
}

func (p *Pass) createSamplers() error {
	dev := p.ctx.Device()
	create := func(label string, address gputypes.AddressMode, compare gputypes.CompareFunction) (hal.Sampler, error) {
		s, err := dev.CreateSampler(&hal.SamplerDescriptor{
			Label:        label,
			AddressModeU: address,
			AddressModeV: address,
			AddressModeW: address,
			MagFilter:    gputypes.FilterModeLinear,
			MinFilter:    gputypes.FilterModeLinear,
			MipmapFilter: gputypes.FilterModeNearest,
			LodMaxClamp:  32,
			Compare:      compare,
			Anisotropy:   1,
		})
		if err != nil {
			return nil, fmt.Errorf("deferred: create sampler %q: %w", label, err)
		}
		return s, nil
	}

	var s samplers
	var err error
	if s.projectivePoint, err = create("deferred projective point", gputypes.AddressModeRepeat, gputypes.CompareFunctionUndefined); err != nil {
		return err
	}
	if s.projectiveSpot, err = create("deferred projective spot", gputypes.AddressModeClampToEdge, gputypes.CompareFunctionUndefined); err != nil {
		dev.DestroySampler(s.projectivePoint)
		return err
	}
	if s.shadowSpot, err = create("deferred spot shadow", gputypes.AddressModeClampToEdge, gputypes.CompareFunctionLessEqual); err != nil {
		dev.DestroySampler(s.projectivePoint)
		dev.DestroySampler(s.projectiveSpot)
		return err
	}
	if s.shadowCube, err = create("deferred cube shadow", gputypes.AddressModeClampToEdge, gputypes.CompareFunctionUndefined); err != nil {
		dev.DestroySampler(s.projectivePoint)
		dev.DestroySampler(s.projectiveSpot)
		dev.DestroySampler(s.shadowSpot)
		return err
	}
	p.samplers = s
	return nil
}

func (p *Pass) destroySamplers() {
	dev := p.ctx.Device()
	for _, s := range []hal.Sampler{p.samplers.projectivePoint, p.samplers.projectiveSpot, p.samplers.shadowSpot, p.samplers.shadowCube} {
		if s != nil {
			dev.DestroySampler(s)
		}
	}
	p.samplers = samplers{}
}

// Flags returns the pass flags.
func (p *Pass) Flags() Flags { return p.flags }

// SetFlags replaces the pass flags. Variants for the new flags are built on
// demand; variants already built stay cached.
func (p *Pass) SetFlags(f Flags) { p.flags = f }

// Generator returns the program generator of the pass.
func (p *Pass) Generator() *progen.Generator { return p.gen }

// SetShaderSource replaces the lighting templates and drops every built
// variant.
func (p *Pass) SetShaderSource(vertex, fragment string) {
	p.gen.SetSourceCode(vertex, fragment)
	slogger().Info("deferred: lighting templates replaced")
}

// BackupDeviceData destroys the samplers. The generator's programs and the
// quad buffer back themselves up.
func (p *Pass) BackupDeviceData() error {
	p.destroySamplers()
	return nil
}

// RestoreDeviceData recreates the samplers on the current device.
func (p *Pass) RestoreDeviceData() error {
	if p.released {
		return nil
	}
	return p.createSamplers()
}

// Release frees the variants, the quad and the samplers.
func (p *Pass) Release() {
	if p.released {
		return
	}
	p.released = true
	p.ctx.Unregister(p)
	p.gen.Release()
	p.quad.Release()
	p.destroySamplers()
}

// Draw renders every light of frame.View and of its cells. Lights that
// contribute nothing are skipped; lights whose variant is unavailable are
// counted as failed and skipped. Device errors abort the frame.
func (p *Pass) Draw(frame Frame) (FrameStats, error) {
	var stats FrameStats
	if p.released {
		return stats, ErrReleased
	}
	if frame.Target == nil {
		return stats, ErrNoTarget
	}
	if frame.View == nil {
		return stats, ErrNoView
	}
	if frame.GBuffer == nil || frame.GBuffer.RenderTarget(0) == nil || frame.GBuffer.RenderTarget(1) == nil {
		slogger().Debug("deferred: geometry buffer incomplete, nothing drawn")
		return stats, nil
	}

	vp := frame.View.Viewport
	if vp.Empty() {
		w, h := frame.GBuffer.Size()
		vp = scene.Viewport{Width: w, Height: h}
	}
	err := p.drawView(&frame, frame.View, vp, &stats)
	slogger().Debug("deferred: frame drawn", "stats", stats.String())
	return stats, err
}

func (p *Pass) drawView(frame *Frame, v *scene.View, vp scene.Viewport, stats *FrameStats) error {
	for i := range v.Lights {
		if err := p.drawLight(frame, &v.Lights[i], vp, stats); err != nil {
			return err
		}
	}
	for _, cell := range v.Cells {
		if cell == nil {
			continue
		}
		if err := p.drawView(frame, cell, vp, stats); err != nil {
			return err
		}
	}
	return nil
}

// skipReason returns why vl contributes nothing, or "".
func skipReason(vl *scene.VisibleLight) string {
	l := vl.Light
	switch {
	case l == nil:
		return "no light"
	case l.IsBlack():
		return "black"
	case !l.IsDirectional() && l.Range <= 0:
		return "no range"
	}
	return ""
}

// scissorRect returns the pixels lit by vl within vp.
func scissorRect(vl *scene.VisibleLight, vp scene.Viewport) scene.Viewport {
	if vl.Light.IsDirectional() {
		return vp
	}
	return scene.ScreenRect(vl.Light.Bounds, vl.WorldViewProjection, vp)
}

func (p *Pass) drawLight(frame *Frame, vl *scene.VisibleLight, vp scene.Viewport, stats *FrameStats) error {
	stats.Lights++
	if reason := skipReason(vl); reason != "" {
		stats.Skipped++
		slogger().Debug("deferred: light skipped", "reason", reason)
		return nil
	}
	l := vl.Light
	scissor := scissorRect(vl, vp)
	if scissor.Empty() {
		stats.Skipped++
		slogger().Debug("deferred: light skipped", "light", l.Name, "reason", "off screen")
		return nil
	}

	shadowMap := p.shadowMap(frame, vl)
	projectiveMap := p.projectiveMap(l)
	v := variantOf(l, p.flags, projectiveMap != nil, shadowMap != nil)

	p.programFlags.Reset()
	addShaderFlags(&p.programFlags, v, p.flags)
	gp := p.gen.GetProgram(&p.programFlags)
	if gp == nil {
		stats.Failed++
		slogger().Warn("deferred: lighting variant unavailable",
			"light", l.Name, "key", p.programFlags.Key(), "err", p.gen.Failure(p.programFlags.Key()))
		return nil
	}

	h, _ := gp.UserData.(*handles)
	if h == nil {
		var err error
		if h, err = resolveHandles(gp.Program, p.quad); err != nil {
			stats.Failed++
			slogger().Warn("deferred: binding lighting variant failed", "light", l.Name, "err", err)
			return nil
		}
		gp.UserData = h
	}

	if err := p.setUniforms(h, frame, vl, v, projectiveMap, shadowMap); err != nil {
		stats.Failed++
		slogger().Warn("deferred: setting light parameters failed", "light", l.Name, "err", err)
		return nil
	}

	drawn, err := p.encode(frame.Target, gp.Program, vp, scissor)
	if err != nil {
		return err
	}
	if !drawn {
		stats.Failed++
		return nil
	}
	stats.Drawn++
	return nil
}

// shadowMap updates and returns the shadow map of vl, or nil when the light
// is drawn unshadowed.
func (p *Pass) shadowMap(frame *Frame, vl *scene.VisibleLight) *scene.ShadowMap {
	if frame.ShadowMaps == nil || !wantsShadow(vl.Light, p.flags) {
		return nil
	}
	lod := vl.DistanceSquared
	if p.flags&NoShadowLOD != 0 {
		lod = 0
	}
	if err := frame.ShadowMaps.UpdateShadowMap(vl, lod); err != nil {
		slogger().Warn("deferred: shadow map update failed", "light", vl.Light.Name, "err", err)
		return nil
	}
	var sm *scene.ShadowMap
	if vl.Light.IsSpot() {
		sm = frame.ShadowMaps.SpotShadowMap()
	} else {
		sm = frame.ShadowMaps.CubeShadowMap()
	}
	if sm == nil || sm.View == nil {
		return nil
	}
	return sm
}

// projectiveMap returns the texture projected by l, or nil.
func (p *Pass) projectiveMap(l *scene.Light) hal.TextureView {
	if !wantsProjectiveMap(l, p.flags) {
		return nil
	}
	if l.Texture != nil {
		return l.Texture
	}
	if l.IsProjectivePoint() {
		return p.defaultCubeMap
	}
	return p.defaultSpotMap
}

// uniformWriter keeps the first error of a sequence of uniform writes.
// Writes to handles the variant does not declare are ignored.
type uniformWriter struct {
	err error
}

func (w *uniformWriter) do(u *shader.Uniform, set func(*shader.Uniform) error) {
	if w.err != nil || u == nil {
		return
	}
	if err := set(u); err != nil {
		w.err = fmt.Errorf("%s: %w", u.Name(), err)
	}
}

func (w *uniformWriter) f1(u *shader.Uniform, x float32) {
	w.do(u, func(u *shader.Uniform) error { return u.Set1f(x) })
}

func (w *uniformWriter) f2(u *shader.Uniform, x, y float32) {
	w.do(u, func(u *shader.Uniform) error { return u.Set2f(x, y) })
}

func (w *uniformWriter) i2(u *shader.Uniform, x, y int32) {
	w.do(u, func(u *shader.Uniform) error { return u.Set2i(x, y) })
}

func (w *uniformWriter) vec3(u *shader.Uniform, v f32.Vec3) {
	w.do(u, func(u *shader.Uniform) error { return u.SetVec3(v) })
}

func (w *uniformWriter) mat3(u *shader.Uniform, m f32.Mat3) {
	w.do(u, func(u *shader.Uniform) error { return u.SetMat3(m) })
}

func (w *uniformWriter) mat4(u *shader.Uniform, m f32.Mat4) {
	w.do(u, func(u *shader.Uniform) error { return u.SetMat4(m) })
}

func (w *uniformWriter) texture(u *shader.Uniform, v hal.TextureView) {
	w.do(u, func(u *shader.Uniform) error { return u.SetTexture(v) })
}

func (w *uniformWriter) sampler(u *shader.Uniform, s hal.Sampler) {
	w.do(u, func(u *shader.Uniform) error { return u.SetSampler(s) })
}

func (p *Pass) setUniforms(h *handles, frame *Frame, vl *scene.VisibleLight, v lightVariant, projectiveMap hal.TextureView, shadowMap *scene.ShadowMap) error {
	var w uniformWriter
	l := vl.Light

	width, height := frame.GBuffer.Size()
	w.i2(h.textureSize, int32(width), int32(height))
	fx, fy := invFocalLen(frame.View.Camera, width, height)
	w.f2(h.invFocalLen, fx, fy)

	w.texture(h.renderTarget[0], frame.GBuffer.RenderTarget(0))
	w.texture(h.renderTarget[1], frame.GBuffer.RenderTarget(1))
	w.texture(h.renderTarget[2], frame.GBuffer.RenderTarget(2))

	w.vec3(h.lightColor, l.Color)
	if v.directional {
		w.vec3(h.lightDirection, scene.Normalize(scene.Negate(scene.ZAxis(vl.WorldView))))
		return w.err
	}

	w.vec3(h.lightPosition, scene.Translation(vl.WorldView))
	w.f1(h.lightRadius, l.Range)
	viewToLight, _ := scene.Inverse(vl.WorldView)

	switch {
	case v.projectivePoint:
		w.texture(h.projectivePointCubeMap, projectiveMap)
		w.sampler(h.projectiveMapSampler, p.samplers.projectivePoint)
		w.mat3(h.viewSpaceToCubeMapSpace, scene.Upper3(viewToLight))
	case v.spot:
		w.vec3(h.lightDirection, scene.Normalize(scene.ZAxis(vl.WorldView)))
		if v.projectiveSpot {
			w.texture(h.projectiveSpotMap, projectiveMap)
			w.sampler(h.projectiveMapSampler, p.samplers.projectiveSpot)
			w.mat4(h.viewSpaceToSpotMapSpace, scene.Mul(scene.Mul(scene.ClipToTexture, l.Projection), viewToLight))
		}
		if v.cone {
			outer := math32.Cos(l.OuterAngle * scene.DegToRad * 0.5)
			if v.smoothCone {
				w.f2(h.spotConeCos, outer, math32.Cos(l.InnerAngle*scene.DegToRad*0.5))
			} else {
				w.f1(h.spotConeCos, outer)
			}
		}
	}

	if v.shadowMapping {
		w.texture(h.shadowMap, shadowMap.View)
		if v.spot {
			w.sampler(h.shadowMapSampler, p.samplers.shadowSpot)
			m := scene.Mul(scene.ClipToTexture, l.Projection)
			m = scene.Mul(m, l.View)
			m = scene.Mul(m, l.Transform)
			w.mat4(h.viewSpaceToShadowMapSpace, scene.Mul(m, viewToLight))
		} else {
			w.sampler(h.shadowMapSampler, p.samplers.shadowCube)
			w.mat3(h.viewSpaceToShadowCubeMapSpace, scene.Upper3(scene.Mul(l.Transform, viewToLight)))
			w.f1(h.invLightRadius, 1/l.Range)
		}
		if p.flags&NoSoftShadow == 0 && shadowMap.Size > 0 {
			w.f1(h.texelSize, 0.5/float32(shadowMap.Size))
		}
	}
	return w.err
}

// invFocalLen returns the reciprocal focal lengths used to reconstruct view
// space positions from depth.
func invFocalLen(c scene.Camera, width, height uint32) (x, y float32) {
	if width == 0 || height == 0 {
		return 0, 0
	}
	fly := 1 / math32.Tan(c.FieldOfView()*scene.DegToRad*0.5)
	flx := fly * (float32(height) * c.AspectRatio() / float32(width))
	return 1 / flx, 1 / fly
}

var additive = gputypes.BlendState{
	Color: gputypes.BlendComponent{
		SrcFactor: gputypes.BlendFactorOne,
		DstFactor: gputypes.BlendFactorOne,
		Operation: gputypes.BlendOperationAdd,
	},
	Alpha: gputypes.BlendComponent{
		SrcFactor: gputypes.BlendFactorOne,
		DstFactor: gputypes.BlendFactorOne,
		Operation: gputypes.BlendOperationAdd,
	},
}

func (p *Pass) pipelineState() shader.PipelineState {
	return shader.PipelineState{
		Format:       p.format,
		Blend:        additive,
		BlendEnabled: true,
		WriteMask:    gputypes.ColorWriteMaskRed | gputypes.ColorWriteMaskGreen | gputypes.ColorWriteMaskBlue,
		Topology:     gputypes.PrimitiveTopologyTriangleStrip,
		CullMode:     gputypes.CullModeNone,
	}
}

// encode records and submits one light. It reports false when the program
// could not be bound, which leaves the target untouched.
func (p *Pass) encode(target hal.TextureView, prog *shader.Program, vp, scissor scene.Viewport) (bool, error) {
	dev := p.ctx.Device()
	encoder, err := dev.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "deferred_light"})
	if err != nil {
		return false, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("deferred_light"); err != nil {
		encoder.DiscardEncoding()
		return false, fmt.Errorf("begin encoding: %w", err)
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "deferred_light_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:    target,
			LoadOp:  gputypes.LoadOpLoad,
			StoreOp: gputypes.StoreOpStore,
		}},
	})
	if err := prog.Bind(rp, p.pipelineState()); err != nil {
		rp.End()
		encoder.DiscardEncoding()
		slogger().Warn("deferred: bind lighting program failed", "err", err)
		return false, nil
	}
	rp.SetViewport(float32(vp.X), float32(vp.Y), float32(vp.Width), float32(vp.Height), 0, 1)
	rp.SetScissorRect(scissor.X, scissor.Y, scissor.Width, scissor.Height)
	rp.Draw(uint32(len(quadVertices)), 1, 0, 0)
	rp.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return false, fmt.Errorf("end encoding: %w", err)
	}
	defer dev.FreeCommandBuffer(cmdBuf)

	if _, err := p.ctx.Queue().Submit([]hal.CommandBuffer{cmdBuf}); err != nil {
		return false, fmt.Errorf("submit: %w", err)
	}
	return true, nil
}
