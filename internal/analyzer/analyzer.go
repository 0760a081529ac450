package analyzer

import (
	"math"
	"sync"

	"github.com/mjibson/go-dsp/fft"
)

const (
	DefaultFFTSize     = 512
	DefaultSmoothing   = 0.85
	DefaultMinDecibels = -100.0
	DefaultMaxDecibels = -30.0
)

// Config controls Analyser behavior.
type Config struct {
	SampleRate  float64
	FFTSize     int
	Smoothing   float64
	MinDecibels float64
	MaxDecibels float64
}

// Analyser turns time-domain samples into smoothed byte frequency bins, the
// same shape a browser AnalyserNode reports: FFTSize/2 bins scaled 0..255
// over the [MinDecibels, MaxDecibels] range.
type Analyser struct {
	cfg Config

	mu       sync.Mutex
	input    []float64
	buffer   []complex128
	window   []float64
	smoothed []float64
	bins     []byte
}

// New creates an Analyser with defaults matching a 512-point browser analyser.
func New(cfg Config) *Analyser {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 44_100
	}
	if cfg.FFTSize <= 0 {
		cfg.FFTSize = DefaultFFTSize
	}
	cfg.FFTSize = nextPow2(cfg.FFTSize)
	if cfg.FFTSize < 32 {
		cfg.FFTSize = 32
	}
	if cfg.Smoothing < 0 || cfg.Smoothing >= 1 {
		cfg.Smoothing = DefaultSmoothing
	}
	if cfg.MinDecibels == 0 && cfg.MaxDecibels == 0 {
		cfg.MinDecibels = DefaultMinDecibels
		cfg.MaxDecibels = DefaultMaxDecibels
	}
	if cfg.MaxDecibels <= cfg.MinDecibels {
		cfg.MaxDecibels = cfg.MinDecibels + 70
	}

	a := &Analyser{
		cfg:      cfg,
		input:    make([]float64, cfg.FFTSize),
		buffer:   make([]complex128, cfg.FFTSize),
		window:   make([]float64, cfg.FFTSize),
		smoothed: make([]float64, cfg.FFTSize/2),
		bins:     make([]byte, cfg.FFTSize/2),
	}
	size := float64(cfg.FFTSize)
	for i := range a.window {
		a.window[i] = blackman(float64(i), size)
	}
	return a
}

// FFTSize returns the transform size.
func (a *Analyser) FFTSize() int { return a.cfg.FFTSize }

// BinCount returns the number of usable frequency bins.
func (a *Analyser) BinCount() int { return a.cfg.FFTSize / 2 }

// SampleRate returns the rate the analyser assumes for its input.
func (a *Analyser) SampleRate() float64 { return a.cfg.SampleRate }

// Process analyses the most recent FFTSize samples and updates the bins.
// Shorter inputs are zero padded at the front.
func (a *Analyser) Process(samples []float32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	size := a.cfg.FFTSize
	if len(samples) > size {
		samples = samples[len(samples)-size:]
	}
	pad := size - len(samples)
	for i := 0; i < pad; i++ {
		a.input[i] = 0
	}
	for i, s := range samples {
		a.input[pad+i] = float64(s)
	}

	for i := 0; i < size; i++ {
		a.buffer[i] = complex(a.input[i]*a.window[i], 0)
	}
	spectrum := fft.FFT(a.buffer)

	tau := a.cfg.Smoothing
	span := a.cfg.MaxDecibels - a.cfg.MinDecibels
	scale := 1.0 / float64(size)
	for k := range a.smoothed {
		mag := cmag(spectrum[k]) * scale
		a.smoothed[k] = tau*a.smoothed[k] + (1-tau)*mag

		db := math.Inf(-1)
		if a.smoothed[k] > 0 {
			db = 20 * math.Log10(a.smoothed[k])
		}
		v := 255 * (db - a.cfg.MinDecibels) / span
		a.bins[k] = byte(clamp(math.Floor(v), 0, 255))
	}
}

// ByteFrequencyData copies the current bins into dst and returns the number
// of bins written.
func (a *Analyser) ByteFrequencyData(dst []byte) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return copy(dst, a.bins)
}

// Reset clears smoothing history.
func (a *Analyser) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.smoothed {
		a.smoothed[i] = 0
		a.bins[i] = 0
	}
}

func blackman(i, size float64) float64 {
	const alpha = 0.16
	a0 := 0.5 * (1 - alpha)
	a1 := 0.5
	a2 := 0.5 * alpha
	x := i / size
	return a0 - a1*math.Cos(2*math.Pi*x) + a2*math.Cos(4*math.Pi*x)
}

func cmag(c complex128) float64 {
	return math.Sqrt(real(c)*real(c) + imag(c)*imag(c))
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func nextPow2(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	return n + 1
}

func clamp(v, minVal, maxVal float64) float64 {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}
