// Package shader compiles shader templates and links them into programs.
//
// A [Language] is bound to a [gpucore.Context] and creates [Shader] and
// [Program] instances. Two languages exist:
//
//   - "WGSL": sources are compiled by naga to SPIR-V. The shader profile
//     selects the SPIR-V version ("spirv1.0" through "spirv1.6").
//   - "GLSL": sources are cross-compiled by naga to GLSL text. The profile
//     selects the GLSL version ("330", "450", "300es", ...).
//
// Sources are WGSL with C-style conditionals resolved by [Preprocess]
// before compilation:
//
//	#ifdef SPOT_SMOOTHCONE
//	    SpotConeCos: vec2<f32>,
//	#else
//	    SpotConeCos: f32,
//	#endif
//
// # Linking
//
// Program.IsValid compiles the attached shaders, checks that every fragment
// input is written by the vertex stage and merges the resource bindings of
// both stages. Each var<uniform> gets its own managed uniform buffer.
// Named handles are then available:
//
//	u := prog.GetUniform("LightColor")
//	_ = u.SetVec3(f32.Vec3{1, 1, 1})
//
// Handles are invalidated whenever the program relinks. The program's
// dirty handler fires at that point so callers can drop cached handles.
//
// # Drawing
//
// Program.Bind uploads pending uniform data, creates or reuses the render
// pipeline for a [PipelineState] and sets pipeline, bind groups and the
// vertex buffer on a render pass.
package shader
