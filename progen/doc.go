// Package progen generates shader program variants ("uber shaders") from a
// pair of templates.
//
// A variant is selected by a [Flags] value: one bit word per stage, plus the
// preprocessor defines those bits stand for. The [Generator] prepends the
// defines to the stage template, compiles each stage once per flag word and
// links one program per word pair:
//
//	var f progen.Flags
//	f.AddVertexFlag(flagSkinned, "SKINNED")
//	f.AddFragmentFlag(flagShadow, "SHADOWMAPPING")
//	gp := gen.GetProgram(&f)
//	if gp == nil {
//		// variant unavailable, see gen.Failure(f.Key())
//	}
//
// Shaders are shared between programs: two programs with the same fragment
// word use the same fragment shader. A variant that fails to build is
// remembered and not retried until [Generator.ClearCache].
//
// Every [GeneratedProgram] carries a UserData slot for consumer state
// derived from the program, such as resolved uniform handles. The generator
// drops it whenever the program goes dirty, so consumers rebuild it lazily.
package progen
