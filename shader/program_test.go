package shader

import (
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga/glsl"
	"golang.org/x/image/math/f32"

	"github.com/gogpu/ubershader/buffer"
	"github.com/gogpu/ubershader/gpucore"
	"github.com/gogpu/ubershader/internal/gputest"
)

func compiledShader(t *testing.T, lang *Language, stage Stage, src string) *Shader {
	t.Helper()
	s := newShader(lang, stage)
	s.SetSourceCode(src, "")
	return s
}

func linkedProgram(t *testing.T) (*Program, *gpucore.Context) {
	t.Helper()
	lang, ctx := newWGSL(t)
	p := lang.CreateProgram()
	if err := p.SetVertexShader(compiledShader(t, lang, StageVertex, gputest.VertexWGSL)); err != nil {
		t.Fatalf("SetVertexShader failed: %v", err)
	}
	if err := p.SetFragmentShader(compiledShader(t, lang, StageFragment, gputest.FragmentWGSL)); err != nil {
		t.Fatalf("SetFragmentShader failed: %v", err)
	}
	if !p.IsValid() {
		t.Fatalf("program did not link: %v", p.Err())
	}
	return p, ctx
}

func quad(t *testing.T, ctx *gpucore.Context) *buffer.VertexBuffer {
	t.Helper()
	vb := buffer.NewVertexBuffer(ctx, "quad")
	if err := vb.AddVertexAttribute(buffer.Position, 0, buffer.TypeFloat4); err != nil {
		t.Fatalf("AddVertexAttribute failed: %v", err)
	}
	if err := vb.AddVertexAttribute(buffer.TexCoord, 0, buffer.TypeFloat2); err != nil {
		t.Fatalf("AddVertexAttribute failed: %v", err)
	}
	if err := vb.Allocate(4, gpucore.UsageStatic, true, false); err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	return vb
}

func floatAt(t *testing.T, b *UniformBlock, offset int) float32 {
	t.Helper()
	raw, err := b.Buffer().Read(offset, 4)
	if err != nil {
		t.Fatalf("Read(%d) failed: %v", offset, err)
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(raw))
}

func TestProgramReflection(t *testing.T) {
	p, _ := linkedProgram(t)

	attrs := []struct {
		name string
		loc  uint32
	}{
		{"position", 0},
		{"texcoord", 1},
	}
	for _, a := range attrs {
		h := p.GetAttribute(a.name)
		if h == nil {
			t.Fatalf("attribute %s not found", a.name)
		}
		if h.Location() != a.loc {
			t.Errorf("attribute %s: expected location %d, got %d", a.name, a.loc, h.Location())
		}
	}
	if p.GetAttribute("uv") != nil {
		t.Error("vertex outputs should not be attributes")
	}

	kinds := map[string]UniformKind{
		"TextureSize":    UniformValue,
		"InvFocalLen":    UniformValue,
		"LightColor":     UniformValue,
		"Transform":      UniformValue,
		"Rotation":       UniformValue,
		"Intensity":      UniformValue,
		"albedo":         UniformTexture,
		"albedo_sampler": UniformSampler,
	}
	for name, kind := range kinds {
		u := p.GetUniform(name)
		if u == nil {
			t.Errorf("uniform %s not found", name)
			continue
		}
		if u.Kind() != kind {
			t.Errorf("uniform %s: expected kind %s, got %s", name, kind, u.Kind())
		}
	}
	if p.GetUniform("Missing") != nil {
		t.Error("expected nil for an unknown uniform")
	}
	if p.GetUniform("Tint") != nil {
		t.Error("Tint is only declared when TINTED is defined")
	}

	light := p.GetUniformBlock("light")
	if light == nil {
		t.Fatal("uniform block light not found")
	}
	if light.Binding() != 1 || light.Group() != 0 {
		t.Errorf("expected light at group 0 binding 1, got %d/%d", light.Group(), light.Binding())
	}
	if light.Size() < 144 {
		t.Errorf("expected light block of at least 144 bytes, got %d", light.Size())
	}
	if p.GetUniform("LightColor").Block() != light {
		t.Error("LightColor should live in the light block")
	}

	for _, r := range p.resources {
		if r.name != "frame" {
			continue
		}
		want := gputypes.ShaderStageVertex | gputypes.ShaderStageFragment
		if r.entry.Visibility != want {
			t.Errorf("frame: expected visibility %v, got %v", want, r.entry.Visibility)
		}
	}
	if len(p.groupLayouts) != 1 || p.layout == nil {
		t.Errorf("expected one bind group layout and a pipeline layout, got %d", len(p.groupLayouts))
	}
}

func TestProgramSetShaderMismatch(t *testing.T) {
	lang, ctx := newWGSL(t)
	gl := NewGLSL(ctx, glsl.Version330)
	p := lang.CreateProgram()

	if err := p.SetVertexShader(gl.CreateVertexShader()); !errors.Is(err, ErrLanguageMismatch) {
		t.Errorf("expected ErrLanguageMismatch, got %v", err)
	}
	if err := p.SetVertexShader(lang.CreateFragmentShader()); !errors.Is(err, ErrStageMismatch) {
		t.Errorf("expected ErrStageMismatch, got %v", err)
	}
	if err := p.SetFragmentShader(lang.CreateVertexShader()); !errors.Is(err, ErrStageMismatch) {
		t.Errorf("expected ErrStageMismatch, got %v", err)
	}
	if p.VertexShader() != nil || p.FragmentShader() != nil {
		t.Error("failed attach should leave the program unchanged")
	}
}

func TestProgramLinkErrors(t *testing.T) {
	tests := []struct {
		name     string
		vertex   string
		fragment string
		want     error
		msg      string
	}{
		{"no vertex shader", "", gputest.FragmentWGSL, ErrNoVertexShader, ""},
		{"broken fragment", gputest.VertexWGSL, gputest.BrokenWGSL, ErrCompile, ""},
		{"interface mismatch", gputest.VertexWGSL, gputest.MismatchedFragmentWGSL, ErrLink, "location 3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lang, ctx := newWGSL(t)
			p := lang.CreateProgram()
			if tt.vertex != "" {
				_ = p.SetVertexShader(compiledShader(t, lang, StageVertex, tt.vertex))
			}
			_ = p.SetFragmentShader(compiledShader(t, lang, StageFragment, tt.fragment))
			if p.IsValid() {
				t.Fatal("expected link to fail")
			}
			if !errors.Is(p.Err(), tt.want) {
				t.Errorf("expected %v, got %v", tt.want, p.Err())
			}
			if tt.msg != "" && !strings.Contains(p.Err().Error(), tt.msg) {
				t.Errorf("expected error mentioning %q, got %v", tt.msg, p.Err())
			}
			if p.GetUniform("LightColor") != nil {
				t.Error("invalid program should not resolve handles")
			}
			if snap := ctx.Stats().Snapshot(); snap.LinkFailures != 1 {
				t.Errorf("expected one link failure, got %d", snap.LinkFailures)
			}
		})
	}
}

func TestUniformSetters(t *testing.T) {
	p, _ := linkedProgram(t)
	light := p.GetUniformBlock("light")

	color := p.GetUniform("LightColor")
	if err := color.SetVec3(f32.Vec3{0.25, 0.5, 1}); err != nil {
		t.Fatalf("SetVec3 failed: %v", err)
	}
	for i, want := range []float32{0.25, 0.5, 1} {
		if got := floatAt(t, light, color.Offset()+i*4); got != want {
			t.Errorf("LightColor[%d]: expected %v, got %v", i, want, got)
		}
	}

	intensity := p.GetUniform("Intensity")
	if err := intensity.Set1f(3); err != nil {
		t.Fatalf("Set1f failed: %v", err)
	}
	if got := floatAt(t, light, intensity.Offset()); got != 3 {
		t.Errorf("Intensity: expected 3, got %v", got)
	}

	// Row-major input, column-major storage.
	transform := p.GetUniform("Transform")
	m4 := f32.Mat4{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16,
	}
	if err := transform.SetMat4(m4); err != nil {
		t.Fatalf("SetMat4 failed: %v", err)
	}
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			if got := floatAt(t, light, transform.Offset()+c*16+r*4); got != m4[r*4+c] {
				t.Errorf("Transform col %d row %d: expected %v, got %v", c, r, m4[r*4+c], got)
			}
		}
	}

	rotation := p.GetUniform("Rotation")
	m3 := f32.Mat3{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	}
	if err := rotation.SetMat3(m3); err != nil {
		t.Fatalf("SetMat3 failed: %v", err)
	}
	for c := 0; c < 3; c++ {
		for r := 0; r < 3; r++ {
			if got := floatAt(t, light, rotation.Offset()+c*16+r*4); got != m3[r*3+c] {
				t.Errorf("Rotation col %d row %d: expected %v, got %v", c, r, m3[r*3+c], got)
			}
		}
		if pad := floatAt(t, light, rotation.Offset()+c*16+12); pad != 0 {
			t.Errorf("Rotation col %d padding: expected 0, got %v", c, pad)
		}
	}

	size := p.GetUniform("TextureSize")
	if err := size.Set2i(640, 480); err != nil {
		t.Fatalf("Set2i failed: %v", err)
	}
	raw, err := p.GetUniformBlock("frame").Buffer().Read(size.Offset(), 8)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if w, h := binary.LittleEndian.Uint32(raw), binary.LittleEndian.Uint32(raw[4:]); w != 640 || h != 480 {
		t.Errorf("TextureSize: expected 640x480, got %dx%d", w, h)
	}
}

func TestUniformTypeMismatch(t *testing.T) {
	p, ctx := linkedProgram(t)
	tests := []struct {
		name string
		set  func() error
	}{
		{"vec3 as vec2", func() error { return p.GetUniform("LightColor").Set2f(1, 2) }},
		{"float vector as ints", func() error { return p.GetUniform("InvFocalLen").Set2i(1, 2) }},
		{"int vector as floats", func() error { return p.GetUniform("TextureSize").Set2f(1, 2) }},
		{"mat4 as mat3", func() error { return p.GetUniform("Transform").SetMat3(f32.Mat3{}) }},
		{"scalar as mat4", func() error { return p.GetUniform("Intensity").SetMat4(f32.Mat4{}) }},
		{"texture as value", func() error { return p.GetUniform("albedo").Set1f(1) }},
		{"value as texture", func() error { return p.GetUniform("Intensity").SetTexture(gputest.TextureView(t, ctx)) }},
		{"texture as sampler", func() error { return p.GetUniform("albedo").SetSampler(gputest.Sampler(t, ctx)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.set(); !errors.Is(err, ErrTypeMismatch) {
				t.Errorf("expected ErrTypeMismatch, got %v", err)
			}
		})
	}
}

func TestProgramDirtyHandler(t *testing.T) {
	lang, ctx := newWGSL(t)
	vs := compiledShader(t, lang, StageVertex, gputest.VertexWGSL)
	fs := compiledShader(t, lang, StageFragment, gputest.FragmentWGSL)
	p := lang.CreateProgram()
	fired := 0
	p.SetDirtyHandler(func(got *Program) {
		if got != p {
			t.Error("dirty handler called with the wrong program")
		}
		fired++
	})

	_ = p.SetVertexShader(vs)
	_ = p.SetFragmentShader(fs)
	if fired != 0 {
		t.Fatalf("first attach should not fire, fired %d", fired)
	}
	if !p.IsValid() {
		t.Fatalf("link failed: %v", p.Err())
	}
	_ = p.SetFragmentShader(fs)
	if fired != 0 {
		t.Fatalf("re-attaching the same shader should not fire, fired %d", fired)
	}

	steps := []struct {
		name string
		do   func()
	}{
		{"replace fragment shader", func() {
			_ = p.SetFragmentShader(compiledShader(t, lang, StageFragment, "#define TINTED\n"+gputest.FragmentWGSL))
		}},
		{"change vertex source", func() { vs.SetSourceCode(gputest.VertexWGSL+"\n", "") }},
		{"invalidate", p.Invalidate},
		{"device reset", func() {
			if err := ctx.BackupDeviceData(); err != nil {
				t.Fatalf("BackupDeviceData failed: %v", err)
			}
			if err := ctx.RestoreDeviceData(nil, nil); err != nil {
				t.Fatalf("RestoreDeviceData failed: %v", err)
			}
		}},
	}
	for i, s := range steps {
		if !p.IsValid() {
			t.Fatalf("%s: program not valid before step: %v", s.name, p.Err())
		}
		s.do()
		if fired != i+1 {
			t.Fatalf("%s: expected %d notifications, got %d", s.name, i+1, fired)
		}
		if p.linked {
			t.Fatalf("%s: program should be unlinked", s.name)
		}
	}
	if !p.IsValid() {
		t.Fatalf("relink failed: %v", p.Err())
	}
	if p.GetUniform("Tint") == nil {
		t.Error("replacement fragment shader should expose Tint")
	}
}

func TestProgramBind(t *testing.T) {
	p, ctx := linkedProgram(t)
	pass := gputest.RenderPass(t, ctx)
	state := PipelineState{
		Format:       gputypes.TextureFormatRGBA8Unorm,
		Blend:        gputypes.BlendStateReplace(),
		BlendEnabled: true,
		Topology:     gputypes.PrimitiveTopologyTriangleStrip,
	}

	if err := p.Bind(pass, state); !errors.Is(err, ErrUnboundAttribute) {
		t.Fatalf("expected ErrUnboundAttribute, got %v", err)
	}

	vb := quad(t, ctx)
	if err := p.GetAttribute("position").Set(vb, buffer.Position, 0); err != nil {
		t.Fatalf("Set position failed: %v", err)
	}
	if err := p.GetAttribute("texcoord").Set(vb, buffer.Normal, 0); !errors.Is(err, buffer.ErrAttributeNotFound) {
		t.Fatalf("expected ErrAttributeNotFound, got %v", err)
	}
	if err := p.GetAttribute("texcoord").Set(vb, buffer.TexCoord, 0); err != nil {
		t.Fatalf("Set texcoord failed: %v", err)
	}

	if err := p.Bind(pass, state); !errors.Is(err, ErrUnboundResource) {
		t.Fatalf("expected ErrUnboundResource, got %v", err)
	}
	_ = p.GetUniform("albedo").SetTexture(gputest.TextureView(t, ctx))
	_ = p.GetUniform("albedo_sampler").SetSampler(gputest.Sampler(t, ctx))
	_ = p.GetUniform("Intensity").Set1f(1)

	if err := p.Bind(pass, state); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if p.GetUniformBlock("light").Buffer().Dirty() {
		t.Error("Bind should upload dirty uniform blocks")
	}
	if err := p.Bind(pass, state); err != nil {
		t.Fatalf("second Bind failed: %v", err)
	}
	if len(p.pipelines) != 1 || len(p.bindGroups) != 1 {
		t.Errorf("expected pipeline and bind group reuse, got %d pipelines, %d bind groups",
			len(p.pipelines), len(p.bindGroups))
	}

	state.WriteMask = gputypes.ColorWriteMaskRed | gputypes.ColorWriteMaskGreen | gputypes.ColorWriteMaskBlue
	if err := p.Bind(pass, state); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if len(p.pipelines) != 2 || len(p.bindGroups) != 1 {
		t.Errorf("expected a second pipeline sharing the bind group, got %d pipelines, %d bind groups",
			len(p.pipelines), len(p.bindGroups))
	}

	_ = p.GetUniform("albedo").SetTexture(&gputest.DistinctView{Name: "albedo 2"})
	if err := p.Bind(pass, state); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if len(p.pipelines) != 2 || len(p.bindGroups) != 2 {
		t.Errorf("expected a second bind group for the new texture, got %d pipelines, %d bind groups",
			len(p.pipelines), len(p.bindGroups))
	}
}

func TestProgramReleaseAndRestore(t *testing.T) {
	p, ctx := linkedProgram(t)
	if err := ctx.BackupDeviceData(); err != nil {
		t.Fatalf("BackupDeviceData failed: %v", err)
	}
	if err := ctx.RestoreDeviceData(nil, nil); err != nil {
		t.Fatalf("RestoreDeviceData failed: %v", err)
	}
	if !p.IsValid() {
		t.Fatalf("relink after restore failed: %v", p.Err())
	}
	snap := ctx.Stats().Snapshot()
	if snap.Links != 2 || snap.Compiles != 2 {
		t.Errorf("expected 2 links and 2 compiles, got %s", snap)
	}

	shaders := 2
	p.Release()
	if ctx.Resources() != shaders {
		t.Errorf("expected only the %d shaders to stay registered, got %d", shaders, ctx.Resources())
	}
	if p.IsValid() {
		t.Error("released program should not be valid")
	}
	if err := p.SetVertexShader(nil); !errors.Is(err, ErrReleased) {
		t.Errorf("expected ErrReleased, got %v", err)
	}
	if snap := ctx.Stats().Snapshot(); snap.Programs != 0 {
		t.Errorf("expected 0 live programs, got %d", snap.Programs)
	}
}
