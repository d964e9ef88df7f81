package ubershader

import (
	"errors"
	"reflect"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga/glsl"

	"github.com/gogpu/ubershader/buffer"
	"github.com/gogpu/ubershader/deferred"
	"github.com/gogpu/ubershader/gpucore"
	"github.com/gogpu/ubershader/internal/gputest"
	"github.com/gogpu/ubershader/shader"
)

func noopRenderer(t *testing.T, opts ...Option) *Renderer {
	t.Helper()
	device, queue := gputest.NoopDevice(t)
	r, err := NewRenderer(device, queue, opts...)
	if err != nil {
		t.Fatalf("NewRenderer failed: %v", err)
	}
	return r
}

func TestRendererLanguages(t *testing.T) {
	r := noopRenderer(t)

	if got := r.ShaderLanguages(); !reflect.DeepEqual(got, []string{shader.LanguageGLSL, shader.LanguageWGSL}) {
		t.Errorf("expected GLSL and WGSL, got %v", got)
	}
	if got := r.DefaultShaderLanguage(); got != shader.LanguageWGSL {
		t.Errorf("expected WGSL as default, got %q", got)
	}
	if l := r.ShaderLanguage(""); l == nil || l.Name() != shader.LanguageWGSL {
		t.Errorf("expected the default language for an empty name, got %v", l)
	}
	if l := r.ShaderLanguage(shader.LanguageGLSL); l == nil || l.Context() != r.Context() {
		t.Error("expected GLSL on the renderer context")
	}
	if l := r.ShaderLanguage("HLSL"); l != nil {
		t.Errorf("expected nil for an unknown language, got %v", l.Name())
	}
	if l := r.ShaderLanguage(shader.LanguageWGSL); l != r.ShaderLanguage(shader.LanguageWGSL) {
		t.Error("expected the same language instance on every lookup")
	}
}

func TestRendererOptions(t *testing.T) {
	tests := []struct {
		name      string
		opts      []Option
		languages []string
		def       string
	}{
		{"without GLSL", []Option{WithoutGLSL()}, []string{shader.LanguageWGSL}, shader.LanguageWGSL},
		{
			"GLSL first",
			[]Option{WithLanguagePriority(shader.LanguageGLSL, shader.LanguageWGSL)},
			[]string{shader.LanguageGLSL, shader.LanguageWGSL},
			shader.LanguageGLSL,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := noopRenderer(t, tt.opts...)
			if got := r.ShaderLanguages(); !reflect.DeepEqual(got, tt.languages) {
				t.Errorf("expected %v, got %v", tt.languages, got)
			}
			if got := r.DefaultShaderLanguage(); got != tt.def {
				t.Errorf("expected default %q, got %q", tt.def, got)
			}
		})
	}
}

func TestRendererGLSLVersion(t *testing.T) {
	if !noopRenderer(t).ShaderLanguage(shader.LanguageGLSL).NeedsPrecisionStrip() {
		t.Error("expected desktop GLSL to strip precision qualifiers")
	}
	r := noopRenderer(t, WithGLSLVersion(glsl.VersionES300))
	if r.ShaderLanguage(shader.LanguageGLSL).NeedsPrecisionStrip() {
		t.Error("expected GLSL ES to keep precision qualifiers")
	}
}

func TestRendererStats(t *testing.T) {
	stats := &gpucore.ResourceStats{}
	r := noopRenderer(t, WithStats(stats), WithAdapterInfo(gpucontext.AdapterInfo{Name: "test adapter"}))

	if got := r.Context().AdapterInfo().Name; got != "test adapter" {
		t.Errorf("expected adapter name %q, got %q", "test adapter", got)
	}

	vb := r.CreateVertexBuffer("stats")
	if err := vb.AddVertexAttribute(buffer.Position, 0, buffer.TypeFloat3); err != nil {
		t.Fatalf("AddVertexAttribute failed: %v", err)
	}
	if err := vb.Allocate(8, gpucore.UsageStatic, true, false); err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	defer vb.Release()

	if got := r.Stats().TotalBuffers(); got != 1 {
		t.Errorf("expected 1 live buffer, got %d", got)
	}
	if got := stats.Snapshot().TotalBufferBytes(); got != 8*12 {
		t.Errorf("expected %d bytes in the shared sink, got %d", 8*12, got)
	}
}

func TestRendererBuffers(t *testing.T) {
	r := noopRenderer(t)

	ib := r.CreateIndexBuffer("indices")
	if err := ib.SetElementType(buffer.Uint32); err != nil {
		t.Fatalf("SetElementType failed: %v", err)
	}
	if ib.Format() != gputypes.IndexFormatUint32 {
		t.Errorf("expected uint32 indices, got %v", ib.Format())
	}
	ub := r.CreateUniformBuffer("uniforms")
	if ub.IsAllocated() {
		t.Error("expected an unallocated uniform buffer")
	}
}

func TestRendererBackupRestore(t *testing.T) {
	r := noopRenderer(t)
	vb := r.CreateVertexBuffer("managed")
	if err := vb.AddVertexAttribute(buffer.Position, 0, buffer.TypeFloat4); err != nil {
		t.Fatalf("AddVertexAttribute failed: %v", err)
	}
	if err := vb.Allocate(2, gpucore.UsageStatic, true, false); err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	defer vb.Release()
	want := [4]float32{1, 2, 3, 4}
	err := vb.WithLock(gpucore.LockWriteOnly, func([]byte) error {
		return vb.SetFloat(1, buffer.Position, 0, want)
	})
	if err != nil {
		t.Fatalf("SetFloat failed: %v", err)
	}

	if err := r.BackupDeviceData(); err != nil {
		t.Fatalf("BackupDeviceData failed: %v", err)
	}
	if err := r.BackupDeviceData(); !errors.Is(err, gpucore.ErrBackupInProgress) {
		t.Errorf("expected ErrBackupInProgress, got %v", err)
	}
	if err := r.RestoreDeviceData(nil, nil); err != nil {
		t.Fatalf("RestoreDeviceData failed: %v", err)
	}

	if !vb.IsAllocated() {
		t.Fatal("expected the buffer allocated after restore")
	}
	var got [4]float32
	err = vb.WithLock(gpucore.LockReadOnly, func([]byte) error {
		var ferr error
		got, ferr = vb.Float(1, buffer.Position, 0)
		return ferr
	})
	if err != nil {
		t.Fatalf("Float failed: %v", err)
	}
	if got != want {
		t.Errorf("expected %v after restore, got %v", want, got)
	}
}

func TestRendererLightingPass(t *testing.T) {
	r := noopRenderer(t)
	pass, err := r.NewLightingPass(deferred.WithFlags(deferred.NoSpecular))
	if err != nil {
		t.Fatalf("NewLightingPass failed: %v", err)
	}
	defer pass.Release()
	if pass.Flags() != deferred.NoSpecular {
		t.Errorf("expected NoSpecular, got %v", pass.Flags())
	}
	if got := pass.Generator().ShaderLanguage(); got != shader.LanguageWGSL {
		t.Errorf("expected WGSL variants, got %q", got)
	}

	if _, err := r.NewLightingPass(deferred.WithShaderLanguage("HLSL")); err == nil {
		t.Error("expected an error for an unknown language")
	}
}

func TestNewRendererErrors(t *testing.T) {
	if _, err := NewRenderer(nil, nil); !errors.Is(err, gpucore.ErrNilDevice) {
		t.Errorf("expected ErrNilDevice, got %v", err)
	}
	if _, err := NewRendererFromProvider(plainProvider{}); !errors.Is(err, gpucore.ErrNoHALProvider) {
		t.Errorf("expected ErrNoHALProvider, got %v", err)
	}
}

// plainProvider exposes no HAL device.
type plainProvider struct{}

func (plainProvider) Device() gpucontext.Device             { return nil }
func (plainProvider) Queue() gpucontext.Queue               { return nil }
func (plainProvider) Adapter() gpucontext.Adapter           { return nil }
func (plainProvider) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatUndefined }
func (plainProvider) AdapterInfo() gpucontext.AdapterInfo   { return gpucontext.AdapterInfo{} }
