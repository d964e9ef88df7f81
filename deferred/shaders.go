package deferred

import (
	_ "embed"
)

// VertexShaderSource is the embedded WGSL template of the lighting vertex
// stage.
//
//go:embed shaders/lighting_vs.wgsl
var VertexShaderSource string

// FragmentShaderSource is the embedded WGSL template of the lighting
// fragment stage. Its variants are selected by the defines documented in
// the package overview.
//
//go:embed shaders/lighting_fs.wgsl
var FragmentShaderSource string
