package gputest

// VertexWGSL is a vertex template with two attributes and a uniform block
// shared with FragmentWGSL.
const VertexWGSL = `
struct Frame {
    TextureSize: vec2<i32>,
    InvFocalLen: vec2<f32>,
}

@group(0) @binding(0) var<uniform> frame: Frame;

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
}

@vertex
fn vs_main(@location(0) position: vec4<f32>, @location(1) texcoord: vec2<f32>) -> VertexOutput {
    var out: VertexOutput;
    out.position = position;
    out.uv = texcoord * frame.InvFocalLen;
    return out;
}
`

// FragmentWGSL samples a texture and scales it by a light block. Defining
// TINTED adds a Tint member to the block.
const FragmentWGSL = `
struct Frame {
    TextureSize: vec2<i32>,
    InvFocalLen: vec2<f32>,
}

struct Light {
    LightColor: vec3<f32>,
    Transform: mat4x4<f32>,
    Rotation: mat3x3<f32>,
    Intensity: f32,
#ifdef TINTED
    Tint: vec4<f32>,
#endif
}

@group(0) @binding(0) var<uniform> frame: Frame;
@group(0) @binding(1) var<uniform> light: Light;
@group(0) @binding(2) var albedo: texture_2d<f32>;
@group(0) @binding(3) var albedo_sampler: sampler;

@fragment
fn fs_main(@location(0) uv: vec2<f32>) -> @location(0) vec4<f32> {
    let c = textureSample(albedo, albedo_sampler, uv);
    var rgb = c.rgb * light.LightColor * light.Intensity;
#ifdef TINTED
    rgb = rgb * light.Tint.rgb;
#endif
    let alpha = f32(frame.TextureSize.x) * frame.InvFocalLen.x;
    return vec4<f32>(rgb + light.Transform[0].xyz + light.Rotation[0], alpha);
}
`

// MismatchedFragmentWGSL reads a location the vertex template never writes.
const MismatchedFragmentWGSL = `
@fragment
fn fs_main(@location(3) extra: vec4<f32>) -> @location(0) vec4<f32> {
    return extra;
}
`

// BrokenWGSL does not parse.
const BrokenWGSL = `
@fragment
fn fs_main( -> @location(0) vec4<f32> {
    return vec4<f32>(1.0);
}
`
