//go:build gl

package shader

import (
	"fmt"
	"image"

	"github.com/go-gl/gl/v3.3-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// GL renders through an OpenGL 3.3 core context. All methods must be called
// from the goroutine that created the device, with its OS thread locked.
type GL struct {
	window  *glfw.Window
	program uint32
	vao     uint32
	vbo     uint32
	ebo     uint32
	texture uint32
	width   int
	height  int

	uTime       int32
	uDistortion int32
	uChroma     int32
	uFrame      int32

	texW, texH int
}

// GLFactory returns a DeviceFactory that opens a glfw window. Hidden
// windows render offscreen and are read back with Output.
func GLFactory(title string, visible bool) DeviceFactory {
	return func(w, h int) (Device, error) {
		return NewGL(title, w, h, visible)
	}
}

// NewGL creates the context, compiles the program and uploads the quad.
func NewGL(title string, w, h int, visible bool) (*GL, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("%w: glfw init: %v", ErrGPUUnavailable, err)
	}
	glfw.WindowHint(glfw.Resizable, glfw.False)
	glfw.WindowHint(glfw.ContextVersionMajor, 3)
	glfw.WindowHint(glfw.ContextVersionMinor, 3)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	if !visible {
		glfw.WindowHint(glfw.Visible, glfw.False)
	}

	window, err := glfw.CreateWindow(w, h, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("%w: create window: %v", ErrGPUUnavailable, err)
	}
	window.MakeContextCurrent()
	if err := gl.Init(); err != nil {
		window.Destroy()
		glfw.Terminate()
		return nil, fmt.Errorf("%w: gl init: %v", ErrGPUUnavailable, err)
	}

	program, err := newProgram(VertexSource, FragmentSource)
	if err != nil {
		window.Destroy()
		glfw.Terminate()
		return nil, err
	}

	d := &GL{window: window, program: program, width: w, height: h}
	d.createQuad()
	d.createTexture()
	d.uTime = gl.GetUniformLocation(program, gl.Str("uTime\x00"))
	d.uDistortion = gl.GetUniformLocation(program, gl.Str("uDistortion\x00"))
	d.uChroma = gl.GetUniformLocation(program, gl.Str("uChroma\x00"))
	d.uFrame = gl.GetUniformLocation(program, gl.Str("uFrame\x00"))
	gl.Viewport(0, 0, int32(w), int32(h))
	return d, nil
}

// Upload replaces the frame texture.
func (d *GL) Upload(frame Texture) error {
	if frame.Width < 1 || frame.Height < 1 || len(frame.Pix) < frame.Width*frame.Height*4 {
		return fmt.Errorf("shader: malformed texture %dx%d", frame.Width, frame.Height)
	}
	gl.BindTexture(gl.TEXTURE_2D, d.texture)
	if frame.Width != d.texW || frame.Height != d.texH {
		gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA, int32(frame.Width), int32(frame.Height), 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(frame.Pix))
		d.texW, d.texH = frame.Width, frame.Height
		return nil
	}
	gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, int32(frame.Width), int32(frame.Height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(frame.Pix))
	return nil
}

// Draw runs the fragment program over the quad and presents the result.
func (d *GL) Draw(u Uniforms) error {
	if d.window.ShouldClose() {
		return fmt.Errorf("%w: window closed", ErrGPUUnavailable)
	}
	gl.ClearColor(0, 0, 0, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT)

	gl.UseProgram(d.program)
	gl.Uniform1f(d.uTime, u.Time)
	gl.Uniform1f(d.uDistortion, u.Distortion)
	gl.Uniform1f(d.uChroma, u.Chroma)
	gl.Uniform1i(d.uFrame, 0)

	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, d.texture)
	gl.BindVertexArray(d.vao)
	gl.DrawElements(gl.TRIANGLES, int32(len(QuadIndices)), gl.UNSIGNED_INT, gl.PtrOffset(0))
	gl.BindVertexArray(0)

	d.window.SwapBuffers()
	glfw.PollEvents()
	return nil
}

// Output reads the back buffer into an image.
func (d *GL) Output() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, d.width, d.height))
	gl.ReadPixels(0, 0, int32(d.width), int32(d.height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(img.Pix))
	return img
}

// Close releases GL objects and the window.
func (d *GL) Close() error {
	gl.DeleteTextures(1, &d.texture)
	gl.DeleteBuffers(1, &d.vbo)
	gl.DeleteBuffers(1, &d.ebo)
	gl.DeleteVertexArrays(1, &d.vao)
	gl.DeleteProgram(d.program)
	d.window.Destroy()
	glfw.Terminate()
	return nil
}

func (d *GL) createQuad() {
	gl.GenVertexArrays(1, &d.vao)
	gl.GenBuffers(1, &d.vbo)
	gl.GenBuffers(1, &d.ebo)

	gl.BindVertexArray(d.vao)

	gl.BindBuffer(gl.ARRAY_BUFFER, d.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(QuadVertices)*4, gl.Ptr(QuadVertices), gl.STATIC_DRAW)

	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, d.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(QuadIndices)*4, gl.Ptr(QuadIndices), gl.STATIC_DRAW)

	gl.VertexAttribPointer(0, 2, gl.FLOAT, false, 4*4, gl.PtrOffset(0))
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(1, 2, gl.FLOAT, false, 4*4, gl.PtrOffset(2*4))
	gl.EnableVertexAttribArray(1)

	gl.BindVertexArray(0)
}

func (d *GL) createTexture() {
	gl.GenTextures(1, &d.texture)
	gl.BindTexture(gl.TEXTURE_2D, d.texture)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
}

func compileShader(source string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csources, free := gl.Strs(source)
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		logBytes := make([]byte, logLength+1)
		gl.GetShaderInfoLog(shader, logLength, nil, &logBytes[0])
		gl.DeleteShader(shader)
		kind := "vertex"
		if shaderType == gl.FRAGMENT_SHADER {
			kind = "fragment"
		}
		return 0, fmt.Errorf("%w: compile %s shader: %s", ErrGPUUnavailable, kind, string(logBytes))
	}
	return shader, nil
}

func newProgram(vertexSrc, fragmentSrc string) (uint32, error) {
	vertexShader, err := compileShader(vertexSrc, gl.VERTEX_SHADER)
	if err != nil {
		return 0, err
	}
	fragmentShader, err := compileShader(fragmentSrc, gl.FRAGMENT_SHADER)
	if err != nil {
		gl.DeleteShader(vertexShader)
		return 0, err
	}

	program := gl.CreateProgram()
	gl.AttachShader(program, vertexShader)
	gl.AttachShader(program, fragmentShader)
	gl.LinkProgram(program)

	gl.DeleteShader(vertexShader)
	gl.DeleteShader(fragmentShader)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)
		logBytes := make([]byte, logLength+1)
		gl.GetProgramInfoLog(program, logLength, nil, &logBytes[0])
		gl.DeleteProgram(program)
		return 0, fmt.Errorf("%w: link program: %s", ErrGPUUnavailable, string(logBytes))
	}
	return program, nil
}
