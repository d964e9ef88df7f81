package progen

import (
	"errors"
	"fmt"

	"github.com/gogpu/ubershader/internal/cache"
	"github.com/gogpu/ubershader/shader"
)

// ErrUnknownLanguage is recorded when the generator's language is not
// available from its provider.
var ErrUnknownLanguage = errors.New("progen: unknown shader language")

// LanguageProvider resolves shader languages by name. ubershader.Renderer
// implements it.
type LanguageProvider interface {
	ShaderLanguage(name string) *shader.Language
}

// Releaser is implemented by user data that holds resources of its own.
type Releaser interface {
	Release()
}

// GeneratedProgram is a cached program variant together with the flag words
// it was built from and a slot for consumer data.
type GeneratedProgram struct {
	Program       *shader.Program
	VertexFlags   uint32
	FragmentFlags uint32

	// UserData belongs to the consumer. The generator releases it (calling
	// Release when the value implements Releaser) and sets it to nil when the
	// program becomes dirty or the cache is cleared.
	UserData any
}

func (gp *GeneratedProgram) releaseUserData() {
	if r, ok := gp.UserData.(Releaser); ok {
		r.Release()
	}
	gp.UserData = nil
}

// Generator builds programs from one vertex and one fragment template for
// any combination of flags, caching shaders per stage and programs per
// flag pair.
//
// Generator is not safe for concurrent use.
type Generator struct {
	languages       LanguageProvider
	languageName    string
	vertexSource    string
	vertexProfile   string
	fragmentSource  string
	fragmentProfile string

	programs        *cache.Store[Key, *GeneratedProgram]
	vertexShaders   *cache.Store[uint32, *shader.Shader]
	fragmentShaders *cache.Store[uint32, *shader.Shader]
	failures        map[Key]error

	stats Stats
}

// New creates a generator for the named language. When languageName is
// "GLSL" and applyGLSLHack is set, precision qualifiers are stripped from
// both templates (see ApplyGLSLHacks).
func New(languages LanguageProvider, languageName, vertexSource, vertexProfile, fragmentSource, fragmentProfile string, applyGLSLHack bool) *Generator {
	if languageName == shader.LanguageGLSL && applyGLSLHack {
		vertexSource = ApplyGLSLHacks(vertexSource)
		fragmentSource = ApplyGLSLHacks(fragmentSource)
	}
	return &Generator{
		languages:       languages,
		languageName:    languageName,
		vertexSource:    vertexSource,
		vertexProfile:   vertexProfile,
		fragmentSource:  fragmentSource,
		fragmentProfile: fragmentProfile,
		programs:        cache.New[Key, *GeneratedProgram](),
		vertexShaders:   cache.New[uint32, *shader.Shader](),
		fragmentShaders: cache.New[uint32, *shader.Shader](),
		failures:        make(map[Key]error),
	}
}

// ShaderLanguage returns the language name the generator builds for.
func (g *Generator) ShaderLanguage() string { return g.languageName }

// VertexShaderSourceCode returns the vertex template after any hacks.
func (g *Generator) VertexShaderSourceCode() string { return g.vertexSource }

// FragmentShaderSourceCode returns the fragment template after any hacks.
func (g *Generator) FragmentShaderSourceCode() string { return g.fragmentSource }

// GetProgram returns the program for flags, building it on first use.
//
// A nil result means the variant cannot be built: the language is missing
// or a shader failed to compile or link. The failure is remembered and the
// variant is not retried until ClearCache; Failure reports the reason.
func (g *Generator) GetProgram(flags *Flags) *GeneratedProgram {
	key := flags.Key()
	if gp, ok := g.programs.Get(key); ok {
		g.stats.Hits++
		return gp
	}
	if _, failed := g.failures[key]; failed {
		g.stats.Hits++
		return nil
	}
	g.stats.Misses++
	slogger().Debug("progen: building program", "language", g.languageName, "key", key,
		"vertex", flags.VertexDefines(), "fragment", flags.FragmentDefines())

	gp, err := g.build(flags)
	if err != nil {
		g.failures[key] = err
		g.stats.Failures++
		slogger().Warn("progen: program variant failed", "language", g.languageName, "key", key, "err", err)
		return nil
	}
	g.programs.Put(key, gp)
	g.stats.ProgramsBuilt++
	return gp
}

func (g *Generator) build(flags *Flags) (*GeneratedProgram, error) {
	var lang *shader.Language
	if g.languages != nil {
		lang = g.languages.ShaderLanguage(g.languageName)
	}
	if lang == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLanguage, g.languageName)
	}
	vs, err := g.shader(lang, shader.StageVertex, flags.VertexKey(), flags.VertexDefines())
	if err != nil {
		return nil, err
	}
	fs, err := g.shader(lang, shader.StageFragment, flags.FragmentKey(), flags.FragmentDefines())
	if err != nil {
		return nil, err
	}

	p := lang.CreateProgram()
	if err := p.SetVertexShader(vs); err != nil {
		p.Release()
		return nil, err
	}
	if err := p.SetFragmentShader(fs); err != nil {
		p.Release()
		return nil, err
	}
	if !p.IsValid() {
		err := p.Err()
		p.Release()
		return nil, err
	}
	gp := &GeneratedProgram{
		Program:       p,
		VertexFlags:   flags.VertexKey(),
		FragmentFlags: flags.FragmentKey(),
	}
	p.SetDirtyHandler(g.OnProgramDirty)
	return gp, nil
}

// shader returns the cached shader for a stage's flag word or compiles a
// new one. Only successfully compiled shaders are cached.
func (g *Generator) shader(lang *shader.Language, stage shader.Stage, word uint32, defines []string) (*shader.Shader, error) {
	store, src, profile := g.vertexShaders, g.vertexSource, g.vertexProfile
	if stage == shader.StageFragment {
		store, src, profile = g.fragmentShaders, g.fragmentSource, g.fragmentProfile
	}
	if s, ok := store.Get(word); ok {
		return s, nil
	}
	var s *shader.Shader
	if stage == shader.StageFragment {
		s = lang.CreateFragmentShader()
	} else {
		s = lang.CreateVertexShader()
	}
	s.SetSourceCode(composeSource(defines, src), profile)
	if err := s.Compile(); err != nil {
		s.Release()
		return nil, fmt.Errorf("progen: %s shader %#x: %w", stage, word, err)
	}
	store.Put(word, s)
	g.stats.ShadersBuilt++
	return s, nil
}

// Failure returns the remembered error for key, or nil.
func (g *Generator) Failure(key Key) error { return g.failures[key] }

// OnProgramDirty releases the user data of the entry owning p. The entry
// and its program stay cached. It is installed as every generated
// program's dirty handler.
func (g *Generator) OnProgramDirty(p *shader.Program) {
	_, gp, ok := g.programs.Find(func(_ Key, gp *GeneratedProgram) bool {
		return gp.Program == p
	})
	if !ok {
		return
	}
	gp.releaseUserData()
	slogger().Debug("progen: program dirty, user data released",
		"vertex", gp.VertexFlags, "fragment", gp.FragmentFlags)
}

// ClearCache releases every program with its user data, then every
// fragment shader, then every vertex shader, each in creation order, and
// forgets remembered failures.
func (g *Generator) ClearCache() {
	n := g.programs.Len()
	g.programs.Clear(func(_ Key, gp *GeneratedProgram) {
		gp.releaseUserData()
		gp.Program.Release()
	})
	release := func(_ uint32, s *shader.Shader) { s.Release() }
	g.fragmentShaders.Clear(release)
	g.vertexShaders.Clear(release)
	clear(g.failures)
	if n > 0 {
		slogger().Debug("progen: cache cleared", "language", g.languageName, "programs", n)
	}
}

// SetSourceCode replaces both templates and clears the cache. It is used to
// hot reload templates.
func (g *Generator) SetSourceCode(vertexSource, fragmentSource string) {
	g.ClearCache()
	g.vertexSource = vertexSource
	g.fragmentSource = fragmentSource
}

// Release clears the cache.
func (g *Generator) Release() { g.ClearCache() }

// Stats returns generator statistics.
func (g *Generator) Stats() Stats {
	s := g.stats
	s.Programs = g.programs.Len()
	s.VertexShaders = g.vertexShaders.Len()
	s.FragmentShaders = g.fragmentShaders.Len()
	return s
}

// Stats holds generator counters.
type Stats struct {
	// Hits counts GetProgram calls answered from the cache, including
	// remembered failures.
	Hits uint64
	// Misses counts GetProgram calls that tried to build a program.
	Misses uint64
	// ShadersBuilt and ProgramsBuilt count successful constructions.
	ShadersBuilt  uint64
	ProgramsBuilt uint64
	// Failures counts variants that could not be built.
	Failures uint64

	// Current cache sizes.
	Programs        int
	VertexShaders   int
	FragmentShaders int
}

// String returns a one-line summary.
func (s Stats) String() string {
	return fmt.Sprintf("ProgramGenerator[%d programs, %d+%d shaders, %d hits, %d misses, %d failures]",
		s.Programs, s.VertexShaders, s.FragmentShaders, s.Hits, s.Misses, s.Failures)
}
