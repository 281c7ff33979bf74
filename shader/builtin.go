package shader

// Uniform block shared by the built-in programs (group 0):
//
//	binding 0: Uniforms (96 bytes)
//	binding 1: texture_2d<f32>
//	binding 2: sampler
//
// Vertex inputs are position @location(0), uv @location(1) and
// color @location(2). Mesh vertices also carry a normal at @location(3).
const uniformBlock = `
struct Uniforms {
    mvp: mat4x4<f32>,
    tint: vec4<f32>,
    screen: vec4<f32>,
}

@group(0) @binding(0) var<uniform> u: Uniforms;
@group(0) @binding(1) var tex: texture_2d<f32>;
@group(0) @binding(2) var samp: sampler;

struct VertexInput {
    @location(0) position: vec3<f32>,
    @location(1) uv: vec2<f32>,
    @location(2) color: vec4<f32>,
}

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
    @location(1) color: vec4<f32>,
}
`

// UniformSize is the byte size of the Uniforms block.
const UniformSize = 96

// TexturedWGSL transforms by the MVP uniform and outputs
// texture * vertex color * tint.
const TexturedWGSL = uniformBlock + `
@vertex
fn vs_main(in: VertexInput) -> VertexOutput {
    var out: VertexOutput;
    out.position = u.mvp * vec4<f32>(in.position, 1.0);
    out.uv = in.uv;
    out.color = in.color;
    return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    return textureSample(tex, samp, in.uv) * in.color * u.tint;
}
`

// ScreenWGSL maps pixel positions (origin top left) to clip space using the
// target size in u.screen.xy and outputs texture * vertex color.
const ScreenWGSL = uniformBlock + `
@vertex
fn vs_main(in: VertexInput) -> VertexOutput {
    var out: VertexOutput;
    let ndc = vec2<f32>(
        in.position.x / u.screen.x * 2.0 - 1.0,
        1.0 - in.position.y / u.screen.y * 2.0,
    );
    out.position = vec4<f32>(ndc, 0.0, 1.0);
    out.uv = in.uv;
    out.color = in.color;
    return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    return textureSample(tex, samp, in.uv) * in.color;
}
`

// SolidWGSL transforms by the MVP uniform and outputs u.tint, which devices
// load with ProgramDescriptor.SolidColor.
const SolidWGSL = uniformBlock + `
@vertex
fn vs_main(in: VertexInput) -> VertexOutput {
    var out: VertexOutput;
    out.position = u.mvp * vec4<f32>(in.position, 1.0);
    out.uv = in.uv;
    out.color = in.color;
    return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    return u.tint;
}
`

// Magenta is the output color of the fallback program.
var Magenta = [4]float32{1, 0, 1, 1}
