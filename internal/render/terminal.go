package render

import (
	"bufio"
	"image"
	"io"
	"math"
	"runtime"
	"strconv"
	"strings"
	"sync"

	xdraw "golang.org/x/image/draw"
)

var (
	resetANSI       = "\x1b[0m"
	precomputedANSI [256]string
)

func init() {
	for i := range precomputedANSI {
		precomputedANSI[i] = "\x1b[38;5;" + strconv.Itoa(i) + "m"
	}
}

// TerminalOptions configure a Terminal display.
type TerminalOptions struct {
	Width      int
	Height     int
	Palette    string
	UseANSI    bool
	ShowStatus bool
	// Label is appended to the status bar, e.g. the capture device.
	Label string
}

// Terminal draws presentations as colored glyphs, one cell per sample.
type Terminal struct {
	mu        sync.Mutex
	out       *bufio.Writer
	width     int
	height    int
	palette   []rune
	useANSI   bool
	status    bool
	label     string
	hidden    bool
	cells     *image.RGBA
	layer     *image.RGBA
	lines     []string
	statusBuf strings.Builder
	presents  int
}

// NewTerminal returns a display writing to w.
func NewTerminal(w io.Writer, opts TerminalOptions) *Terminal {
	t := &Terminal{
		out:     bufio.NewWriterSize(w, 64*1024),
		palette: Palette(opts.Palette),
		useANSI: opts.UseANSI,
		status:  opts.ShowStatus,
		label:   opts.Label,
	}
	t.Resize(opts.Width, opts.Height)
	return t
}

// Resize changes the cell grid. Non-positive values keep the current size.
func (t *Terminal) Resize(width, height int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if width <= 0 {
		width = t.width
	}
	if height <= 0 && t.height > 0 {
		height = t.height
		if t.status {
			height++
		}
	}
	if width <= 0 {
		width = 80
	}
	if height <= 0 {
		height = 24
	}
	rows := height
	if t.status && rows > 1 {
		rows--
	}
	if width == t.width && rows == t.height && t.cells != nil {
		return
	}
	t.width, t.height = width, rows
	t.cells = image.NewRGBA(image.Rect(0, 0, width, rows))
	t.layer = image.NewRGBA(image.Rect(0, 0, width, rows))
	t.lines = make([]string, rows)
}

// Size is the cell grid excluding the status bar.
func (t *Terminal) Size() (int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.width, t.height
}

// Presents counts frames written.
func (t *Terminal) Presents() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.presents
}

// Present composites the layers into the cell grid and writes one frame.
func (t *Terminal) Present(p Presentation) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.hidden = false
	t.composite(p)
	if p.Visualizer != nil {
		p.Visualizer.Draw(t.cells, t.cells.Bounds())
	}
	t.renderLines(p.Hue)

	t.out.WriteString("\x1b[H")
	for _, line := range t.lines {
		t.out.WriteString(line)
		t.out.WriteByte('\n')
	}
	if t.status {
		t.out.WriteString(statusBar(t.buildStatus(p), t.width))
	}
	t.presents++
	return t.out.Flush()
}

// Hide blanks the screen once until the next Present.
func (t *Terminal) Hide() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.hidden {
		return
	}
	t.hidden = true
	t.out.WriteString("\x1b[2J\x1b[H")
	_ = t.out.Flush()
}

// Close resets terminal colors.
func (t *Terminal) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.out.WriteString(resetANSI)
	return t.out.Flush()
}

func (t *Terminal) composite(p Presentation) {
	composeLayers(t.cells, t.layer, p)
}

// composeLayers zooms every visible layer by the presentation scale into
// scratch and mixes it into dst by opacity.
func composeLayers(dst, scratch *image.RGBA, p Presentation) {
	for i := range dst.Pix {
		dst.Pix[i] = 0
	}
	zoom := p.Scale / 100
	if zoom <= 0 {
		zoom = 1
	}
	for _, l := range p.Layers {
		if l.Opacity <= 0 || l.View == nil {
			continue
		}
		l.View(func(img *image.RGBA) {
			if img == nil {
				return
			}
			xdraw.ApproxBiLinear.Scale(scratch, scratch.Bounds(), img, zoomRect(img.Bounds(), zoom), xdraw.Src, nil)
		})
		mixInto(dst, scratch, l.Opacity)
	}
}

// renderLines converts cells to glyph rows, one worker per CPU.
func (t *Terminal) renderLines(hue float64) {
	width, height := t.width, t.height
	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers > height {
		numWorkers = height
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	var wg sync.WaitGroup
	rowJobs := make(chan int, numWorkers)
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for y := range rowJobs {
				var builder strings.Builder
				builder.Grow(width * 8)
				lastColor := -1
				row := t.cells.Pix[y*t.cells.Stride:]
				for x := 0; x < width; x++ {
					r := float64(row[x*4]) / 255
					g := float64(row[x*4+1]) / 255
					b := float64(row[x*4+2]) / 255
					if hue != 0 {
						r, g, b = rotateHue(r, g, b, hue)
					}
					if t.useANSI {
						if c := rgbToANSI(r, g, b); c != lastColor {
							builder.WriteString(colorCode(c))
							lastColor = c
						}
					}
					builder.WriteRune(t.glyph(r, g, b))
				}
				if t.useANSI {
					builder.WriteString(resetANSI)
				}
				t.lines[y] = builder.String()
			}
		}()
	}
	for y := 0; y < height; y++ {
		rowJobs <- y
	}
	close(rowJobs)
	wg.Wait()
}

func (t *Terminal) glyph(r, g, b float64) rune {
	lum := clamp01(0.2126*r + 0.7152*g + 0.0722*b)
	index := clampInt(int(lum*float64(len(t.palette)-1)+0.5), 0, len(t.palette)-1)
	return t.palette[index]
}

func (t *Terminal) buildStatus(p Presentation) string {
	builder := &t.statusBuf
	builder.Reset()
	builder.Grow(128)
	builder.WriteString(strings.ToUpper(p.Mode))
	builder.WriteString(" | scale ")
	appendFloat(builder, p.Scale, 1)
	builder.WriteString("% loud ")
	appendFloat(builder, p.Loudness, 1)
	builder.WriteString(" | ambient ")
	builder.WriteString(p.Color.CSS())
	if p.Hue != 0 {
		builder.WriteString(" hue ")
		appendFloat(builder, p.Hue, 0)
	}
	builder.WriteString(" | fps ")
	appendFloat(builder, p.FPS, 1)
	if t.label != "" {
		builder.WriteString(" | ")
		builder.WriteString(t.label)
	}
	return builder.String()
}

// zoomRect is the centered region of b that fills the frame at zoom.
func zoomRect(b image.Rectangle, zoom float64) image.Rectangle {
	if zoom <= 1 {
		return b
	}
	w := int(float64(b.Dx()) / zoom)
	h := int(float64(b.Dy()) / zoom)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	x0 := b.Min.X + (b.Dx()-w)/2
	y0 := b.Min.Y + (b.Dy()-h)/2
	return image.Rect(x0, y0, x0+w, y0+h)
}

func mixInto(dst, src *image.RGBA, opacity float64) {
	if opacity >= 1 {
		copy(dst.Pix, src.Pix)
		return
	}
	for i := 0; i < len(dst.Pix); i++ {
		dst.Pix[i] = uint8(float64(dst.Pix[i])*(1-opacity) + float64(src.Pix[i])*opacity)
	}
}

func statusBar(text string, width int) string {
	if width <= 0 {
		return text
	}
	if len(text) >= width {
		return text[:width]
	}
	return text + strings.Repeat(" ", width-len(text))
}

func colorCode(index int) string {
	if index < 0 {
		index = 0
	} else if index >= len(precomputedANSI) {
		index = len(precomputedANSI) - 1
	}
	return precomputedANSI[index]
}

// rotateHue turns an RGB color by deg degrees around the hue circle.
func rotateHue(r, g, b, deg float64) (float64, float64, float64) {
	h, s, v := rgbToHSV(r, g, b)
	h = math.Mod(h+deg/360, 1)
	if h < 0 {
		h++
	}
	return hsvToRGB(h, s, v)
}

// rotateImage applies rotateHue to every pixel of img in place.
func rotateImage(img *image.RGBA, deg float64) {
	for i := 0; i+3 < len(img.Pix); i += 4 {
		r, g, b := rotateHue(float64(img.Pix[i])/255, float64(img.Pix[i+1])/255, float64(img.Pix[i+2])/255, deg)
		img.Pix[i] = uint8(clamp01(r)*255 + 0.5)
		img.Pix[i+1] = uint8(clamp01(g)*255 + 0.5)
		img.Pix[i+2] = uint8(clamp01(b)*255 + 0.5)
	}
}

func rgbToHSV(r, g, b float64) (float64, float64, float64) {
	maxC := math.Max(r, math.Max(g, b))
	minC := math.Min(r, math.Min(g, b))
	v := maxC
	d := maxC - minC
	if maxC == 0 || d == 0 {
		return 0, 0, v
	}
	s := d / maxC
	var h float64
	switch maxC {
	case r:
		h = (g - b) / d
		if g < b {
			h += 6
		}
	case g:
		h = (b-r)/d + 2
	default:
		h = (r-g)/d + 4
	}
	return h / 6, s, v
}

func hsvToRGB(h, s, v float64) (float64, float64, float64) {
	h = clamp01(h)
	s = clamp01(s)
	v = clamp01(v)

	if s == 0 {
		return v, v, v
	}

	hv := h * 6.0
	i := math.Floor(hv)
	f := hv - i
	p := v * (1.0 - s)
	q := v * (1.0 - s*f)
	t := v * (1.0 - s*(1.0-f))

	switch int(i) % 6 {
	case 0:
		return v, t, p
	case 1:
		return q, v, p
	case 2:
		return p, v, t
	case 3:
		return p, q, v
	case 4:
		return t, p, v
	default:
		return v, p, q
	}
}

func rgbToANSI(r, g, b float64) int {
	r = clamp01(r)
	g = clamp01(g)
	b = clamp01(b)

	// grayscale ramp for near-neutral colors
	if math.Abs(r-g) < 0.02 && math.Abs(g-b) < 0.02 {
		gray := int(clampFloat(math.Round(r*23), 0, 23))
		return 232 + gray
	}

	ri := int(clampFloat(r*5+0.5, 0, 5))
	gi := int(clampFloat(g*5+0.5, 0, 5))
	bi := int(clampFloat(b*5+0.5, 0, 5))

	return 16 + 36*ri + 6*gi + bi
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func appendFloat(builder *strings.Builder, value float64, precision int) {
	var buf [32]byte
	b := strconv.AppendFloat(buf[:0], value, 'f', precision, 64)
	builder.Write(b)
}
