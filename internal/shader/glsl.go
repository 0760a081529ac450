package shader

// VertexSource draws a fullscreen quad with interleaved x,y,u,v attributes.
const VertexSource = `#version 330 core
layout (location = 0) in vec2 aPos;
layout (location = 1) in vec2 aTexCoord;
out vec2 vUV;
void main() {
	vUV = aTexCoord;
	gl_Position = vec4(aPos, 0.0, 1.0);
}
` + "\x00"

// FragmentSource mirrors Fragment on the GPU.
const FragmentSource = `#version 330 core
in vec2 vUV;
out vec4 FragColor;
uniform sampler2D uFrame;
uniform float uTime;
uniform float uDistortion;
uniform float uChroma;
void main() {
	vec2 uv = vUV;
	uv.x += sin(uv.y * 10.0 + uTime * 2.0) * uDistortion;
	float r = texture(uFrame, uv + vec2(uChroma, 0.0)).r;
	float g = texture(uFrame, uv).g;
	float b = texture(uFrame, uv - vec2(uChroma, 0.0)).b;
	FragColor = vec4(r, g, b, 1.0);
}
` + "\x00"

// WebGLVertexSource and WebGLFragmentSource are the GLSL ES 1.0 variants
// used by browser hosts.
const WebGLVertexSource = `attribute vec2 aPos;
attribute vec2 aTexCoord;
varying vec2 vUV;
void main() {
	vUV = aTexCoord;
	gl_Position = vec4(aPos, 0.0, 1.0);
}
`

const WebGLFragmentSource = `precision mediump float;
varying vec2 vUV;
uniform sampler2D uFrame;
uniform float uTime;
uniform float uDistortion;
uniform float uChroma;
void main() {
	vec2 uv = vUV;
	uv.x += sin(uv.y * 10.0 + uTime * 2.0) * uDistortion;
	float r = texture2D(uFrame, uv + vec2(uChroma, 0.0)).r;
	float g = texture2D(uFrame, uv).g;
	float b = texture2D(uFrame, uv - vec2(uChroma, 0.0)).b;
	gl_FragColor = vec4(r, g, b, 1.0);
}
`

// QuadVertices is the fullscreen quad: x, y, u, v per vertex.
var QuadVertices = []float32{
	-1, -1, 0, 1,
	1, -1, 1, 1,
	1, 1, 1, 0,
	-1, 1, 0, 0,
}

// QuadIndices triangulates QuadVertices.
var QuadIndices = []uint32{0, 1, 2, 2, 3, 0}
