//go:build js

package browser

import (
	"fmt"

	"github.com/gopherjs/gopherjs/js"

	"github.com/guidoenr/reflectube/internal/shader"
)

// WebGL constants used below.
const (
	glArrayBuffer        = 0x8892
	glElementArrayBuffer = 0x8893
	glStaticDraw         = 0x88E4
	glFloat              = 0x1406
	glUnsignedShort      = 0x1403
	glTriangles          = 0x0004
	glColorBufferBit     = 0x4000
	glTexture2D          = 0x0DE1
	glTexture0           = 0x84C0
	glRGBA               = 0x1908
	glUnsignedByte       = 0x1401
	glLinear             = 0x2601
	glClampToEdge        = 0x812F
	glTexMinFilter       = 0x2801
	glTexMagFilter       = 0x2800
	glTexWrapS           = 0x2802
	glTexWrapT           = 0x2803
	glVertexShader       = 0x8B31
	glFragmentShader     = 0x8B30
	glCompileStatus      = 0x8B81
	glLinkStatus         = 0x8B82
)

// WebGL draws the distortion shader into an overlay canvas.
type WebGL struct {
	canvas *Canvas
	gl     *js.Object

	program  *js.Object
	texture  *js.Object
	uTime    *js.Object
	uDist    *js.Object
	uChroma  *js.Object
	uFrame   *js.Object
	texW     int
	texH     int
	released bool
}

// WebGLFactory acquires a WebGL context on a fresh overlay canvas.
func WebGLFactory() shader.DeviceFactory {
	return func(w, h int) (shader.Device, error) {
		return NewWebGL(w, h)
	}
}

// NewWebGL compiles the program and uploads the quad.
func NewWebGL(w, h int) (dev *WebGL, err error) {
	defer func() {
		if r := recover(); r != nil {
			dev, err = nil, fmt.Errorf("%w: %v", shader.ErrGPUUnavailable, r)
		}
	}()
	c := overlay(nil)
	c.el.Set("width", w)
	c.el.Set("height", h)
	gl := c.el.Call("getContext", "webgl")
	if isNull(gl) {
		c.Close()
		return nil, fmt.Errorf("%w: webgl context", shader.ErrGPUUnavailable)
	}
	d := &WebGL{canvas: c, gl: gl}
	if err := d.link(); err != nil {
		c.Close()
		return nil, err
	}
	d.createQuad()
	d.createTexture()
	gl.Call("viewport", 0, 0, w, h)
	return d, nil
}

func (d *WebGL) compile(kind int, src string) (*js.Object, error) {
	s := d.gl.Call("createShader", kind)
	d.gl.Call("shaderSource", s, src)
	d.gl.Call("compileShader", s)
	if !d.gl.Call("getShaderParameter", s, glCompileStatus).Bool() {
		log := d.gl.Call("getShaderInfoLog", s).String()
		d.gl.Call("deleteShader", s)
		return nil, fmt.Errorf("shader: compile: %s", log)
	}
	return s, nil
}

func (d *WebGL) link() error {
	vs, err := d.compile(glVertexShader, shader.WebGLVertexSource)
	if err != nil {
		return err
	}
	fs, err := d.compile(glFragmentShader, shader.WebGLFragmentSource)
	if err != nil {
		return err
	}
	p := d.gl.Call("createProgram")
	d.gl.Call("attachShader", p, vs)
	d.gl.Call("attachShader", p, fs)
	d.gl.Call("linkProgram", p)
	d.gl.Call("deleteShader", vs)
	d.gl.Call("deleteShader", fs)
	if !d.gl.Call("getProgramParameter", p, glLinkStatus).Bool() {
		return fmt.Errorf("shader: link: %s", d.gl.Call("getProgramInfoLog", p).String())
	}
	d.program = p
	d.uTime = d.gl.Call("getUniformLocation", p, "uTime")
	d.uDist = d.gl.Call("getUniformLocation", p, "uDistortion")
	d.uChroma = d.gl.Call("getUniformLocation", p, "uChroma")
	d.uFrame = d.gl.Call("getUniformLocation", p, "uFrame")
	return nil
}

func (d *WebGL) createQuad() {
	vbo := d.gl.Call("createBuffer")
	d.gl.Call("bindBuffer", glArrayBuffer, vbo)
	d.gl.Call("bufferData", glArrayBuffer, js.Global.Get("Float32Array").New(shader.QuadVertices), glStaticDraw)

	// WebGL 1 has no 32-bit element indices without an extension.
	idx := make([]uint16, len(shader.QuadIndices))
	for i, v := range shader.QuadIndices {
		idx[i] = uint16(v)
	}
	ebo := d.gl.Call("createBuffer")
	d.gl.Call("bindBuffer", glElementArrayBuffer, ebo)
	d.gl.Call("bufferData", glElementArrayBuffer, js.Global.Get("Uint16Array").New(idx), glStaticDraw)

	pos := d.gl.Call("getAttribLocation", d.program, "aPos").Int()
	uv := d.gl.Call("getAttribLocation", d.program, "aTexCoord").Int()
	d.gl.Call("vertexAttribPointer", pos, 2, glFloat, false, 16, 0)
	d.gl.Call("enableVertexAttribArray", pos)
	d.gl.Call("vertexAttribPointer", uv, 2, glFloat, false, 16, 8)
	d.gl.Call("enableVertexAttribArray", uv)
}

func (d *WebGL) createTexture() {
	d.texture = d.gl.Call("createTexture")
	d.gl.Call("bindTexture", glTexture2D, d.texture)
	d.gl.Call("texParameteri", glTexture2D, glTexMinFilter, glLinear)
	d.gl.Call("texParameteri", glTexture2D, glTexMagFilter, glLinear)
	d.gl.Call("texParameteri", glTexture2D, glTexWrapS, glClampToEdge)
	d.gl.Call("texParameteri", glTexture2D, glTexWrapT, glClampToEdge)
}

// Upload replaces the frame texture.
func (d *WebGL) Upload(frame shader.Texture) error {
	if d.released {
		return shader.ErrGPUUnavailable
	}
	if frame.Width < 1 || frame.Height < 1 || len(frame.Pix) < frame.Width*frame.Height*4 {
		return fmt.Errorf("shader: malformed texture %dx%d", frame.Width, frame.Height)
	}
	pix := typedView("Uint8Array", frame.Pix[:frame.Width*frame.Height*4])
	d.gl.Call("bindTexture", glTexture2D, d.texture)
	if frame.Width != d.texW || frame.Height != d.texH {
		d.gl.Call("texImage2D", glTexture2D, 0, glRGBA, frame.Width, frame.Height, 0, glRGBA, glUnsignedByte, pix)
		d.texW, d.texH = frame.Width, frame.Height
		return nil
	}
	d.gl.Call("texSubImage2D", glTexture2D, 0, 0, 0, frame.Width, frame.Height, glRGBA, glUnsignedByte, pix)
	return nil
}

// Draw runs the fragment program over the quad.
func (d *WebGL) Draw(u shader.Uniforms) error {
	if d.released || d.gl.Call("isContextLost").Bool() {
		return fmt.Errorf("%w: context lost", shader.ErrGPUUnavailable)
	}
	d.gl.Call("clearColor", 0, 0, 0, 1)
	d.gl.Call("clear", glColorBufferBit)
	d.gl.Call("useProgram", d.program)
	d.gl.Call("uniform1f", d.uTime, u.Time)
	d.gl.Call("uniform1f", d.uDist, u.Distortion)
	d.gl.Call("uniform1f", d.uChroma, u.Chroma)
	d.gl.Call("uniform1i", d.uFrame, 0)
	d.gl.Call("activeTexture", glTexture0)
	d.gl.Call("bindTexture", glTexture2D, d.texture)
	d.gl.Call("drawElements", glTriangles, len(shader.QuadIndices), glUnsignedShort, 0)
	return nil
}

// Close releases the program and removes the overlay.
func (d *WebGL) Close() error {
	if d.released {
		return nil
	}
	d.released = true
	d.gl.Call("deleteTexture", d.texture)
	d.gl.Call("deleteProgram", d.program)
	return d.canvas.Close()
}
