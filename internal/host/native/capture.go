package native

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// Capture wraps a PortAudio input stream and keeps the latest mono samples
// in a ring buffer.
type Capture struct {
	stream     *portaudio.Stream
	sampleRate float64
	channels   int
	device     *portaudio.DeviceInfo

	mu     sync.RWMutex
	buffer []float32
	mono   []float32
	index  int
	closed bool
}

// CaptureConfig controls how a Capture is opened.
type CaptureConfig struct {
	DeviceName string
	BufferSize int
	Channels   int
}

const defaultBufferSize = 4096

// NewCapture opens and starts a PortAudio input stream. Initialize must
// have been called.
func NewCapture(cfg CaptureConfig) (*Capture, error) {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}

	device, err := findDevice(cfg.DeviceName)
	if err != nil {
		return nil, err
	}
	if device.MaxInputChannels < cfg.Channels {
		cfg.Channels = device.MaxInputChannels
	}

	inParams := portaudio.StreamDeviceParameters{
		Device:   device,
		Channels: cfg.Channels,
		Latency:  device.DefaultLowInputLatency,
	}

	c := &Capture{
		sampleRate: device.DefaultSampleRate,
		buffer:     make([]float32, cfg.BufferSize),
		channels:   cfg.Channels,
		device:     device,
	}

	framesPerBuffer := len(c.buffer) / cfg.Channels
	if framesPerBuffer < 64 {
		framesPerBuffer = portaudio.FramesPerBufferUnspecified
	}

	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input:           inParams,
		Output:          portaudio.StreamDeviceParameters{},
		SampleRate:      c.sampleRate,
		FramesPerBuffer: framesPerBuffer,
	}, c.process)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	c.stream = stream

	if err := c.stream.Start(); err != nil {
		_ = c.stream.Close()
		return nil, fmt.Errorf("start stream: %w", err)
	}
	return c, nil
}

// Close stops and closes the stream.
func (c *Capture) Close() error {
	c.mu.Lock()
	if c.closed || c.stream == nil {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if err := c.stream.Stop(); err != nil && !isInvalidStreamState(err) {
		return err
	}
	return c.stream.Close()
}

// SampleRate is the stream sample rate.
func (c *Capture) SampleRate() float64 { return c.sampleRate }

// DeviceName is the capture device label.
func (c *Capture) DeviceName() string {
	if c.device == nil {
		return ""
	}
	return c.device.Name
}

// Samples copies the ring buffer into dst in chronological order, growing
// dst if needed.
func (c *Capture) Samples(dst []float32) []float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return unroll(dst, c.buffer, c.index)
}

func (c *Capture) process(in []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channels > 1 {
		c.mono = downmix(c.mono, in, c.channels)
		c.index = mixIntoRing(c.buffer, c.index, c.mono)
		return
	}
	c.index = mixIntoRing(c.buffer, c.index, in)
}

// downmix averages interleaved channels into dst.
func downmix(dst, in []float32, channels int) []float32 {
	n := len(in) / channels
	if cap(dst) < n {
		dst = make([]float32, n)
	}
	dst = dst[:n]
	for i := range dst {
		sum := float32(0)
		base := i * channels
		for ch := 0; ch < channels; ch++ {
			sum += in[base+ch]
		}
		dst[i] = sum / float32(channels)
	}
	return dst
}

// mixIntoRing writes in at index and returns the next write index.
func mixIntoRing(ring []float32, index int, in []float32) int {
	if len(in) == 0 || len(ring) == 0 {
		return index
	}
	if len(in) >= len(ring) {
		copy(ring, in[len(in)-len(ring):])
		return 0
	}
	if index+len(in) <= len(ring) {
		copy(ring[index:], in)
		index += len(in)
		if index == len(ring) {
			index = 0
		}
		return index
	}
	remaining := len(ring) - index
	copy(ring[index:], in[:remaining])
	copy(ring, in[remaining:])
	return len(in) - remaining
}

// unroll returns ring in chronological order, oldest sample first.
func unroll(dst, ring []float32, index int) []float32 {
	if cap(dst) < len(ring) {
		dst = make([]float32, len(ring))
	}
	dst = dst[:len(ring)]
	n := copy(dst, ring[index:])
	copy(dst[n:], ring[:index])
	return dst
}

func findDevice(name string) (*portaudio.DeviceInfo, error) {
	if name != "" {
		return findDeviceByName(name)
	}
	if dev, err := portaudio.DefaultInputDevice(); err == nil && dev != nil && dev.MaxInputChannels > 0 {
		return dev, nil
	}
	if host, err := portaudio.DefaultHostApi(); err == nil {
		if host != nil && host.DefaultInputDevice != nil && host.DefaultInputDevice.MaxInputChannels > 0 {
			return host.DefaultInputDevice, nil
		}
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}
	if candidate := pickBestDevice(devices); candidate != nil {
		return candidate, nil
	}
	return nil, fmt.Errorf("no suitable audio input device found")
}

func findDeviceByName(name string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}
	name = strings.ToLower(name)
	for _, device := range devices {
		if device.MaxInputChannels == 0 {
			continue
		}
		if strings.Contains(strings.ToLower(device.Name), name) {
			return device, nil
		}
	}
	return nil, fmt.Errorf("audio device %q not found", name)
}

// loopbackKeywords mark devices that capture what the system is playing,
// which is what a mirrored video sounds like.
var loopbackKeywords = []string{"monitor", "loopback", "stereo mix", "what u hear", "mix"}

func pickBestDevice(devices []*portaudio.DeviceInfo) *portaudio.DeviceInfo {
	defaultInput := -1
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		defaultInput = def.Index
	}
	defaultHost := -1
	if host, err := portaudio.DefaultHostApi(); err == nil && host != nil && host.DefaultInputDevice != nil {
		defaultHost = host.DefaultInputDevice.Index
	}

	candidates := make([]scoredDevice, 0, len(devices))
	for _, d := range devices {
		if d == nil || d.MaxInputChannels <= 0 {
			continue
		}
		candidates = append(candidates, scoredDevice{
			dev:   d,
			score: scoreDevice(d.Name, d.MaxInputChannels, d.Index == defaultInput, d.Index == defaultHost),
		})
	}
	if len(candidates) == 0 {
		return nil
	}
	sortDevices(candidates)
	return candidates[0].dev
}

type scoredDevice struct {
	dev   *portaudio.DeviceInfo
	score int
}

// scoreDevice ranks an input device. Loopback devices win over plain
// microphones because they carry the page audio.
func scoreDevice(name string, inputs int, isDefaultInput, isDefaultHost bool) int {
	score := inputs
	if isDefaultInput {
		score += 50
	}
	if isDefaultHost {
		score += 40
	}
	lower := strings.ToLower(name)
	for _, kw := range loopbackKeywords {
		if strings.Contains(lower, kw) {
			score += 60
			break
		}
	}
	if strings.Contains(lower, "default") {
		score += 10
	}
	return score
}

func sortDevices(results []scoredDevice) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].score == results[j].score {
			return strings.ToLower(results[i].dev.Name) < strings.ToLower(results[j].dev.Name)
		}
		return results[i].score > results[j].score
	})
}

// isInvalidStreamState reports whether err stems from stopping an already
// stopped stream.
func isInvalidStreamState(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "PaErrorCode -9986")
}

// AutoDetectDevice returns the input device NewCapture would pick.
func AutoDetectDevice() (*portaudio.DeviceInfo, error) {
	return findDevice("")
}
