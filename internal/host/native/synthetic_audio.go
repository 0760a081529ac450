package native

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

const (
	toneBass   = 80.0
	toneMid    = 660.0
	toneTreble = 5200.0
)

// SyntheticTap generates a drifting three-band signal with a pulsing beat,
// for running without a capture device.
type SyntheticTap struct {
	rate  float64
	size  int
	clock func() time.Time

	mu    sync.Mutex
	rng   *rand.Rand
	start time.Time
}

// NewSyntheticTap returns a tap that renders size samples per read at rate.
// A nil clock uses time.Now.
func NewSyntheticTap(rate float64, size int, seed int64, clock func() time.Time) *SyntheticTap {
	if rate <= 0 {
		rate = 44_100
	}
	if size <= 0 {
		size = defaultBufferSize
	}
	if clock == nil {
		clock = time.Now
	}
	return &SyntheticTap{
		rate:  rate,
		size:  size,
		clock: clock,
		rng:   rand.New(rand.NewSource(seed)),
		start: clock(),
	}
}

// SampleRate is the generated rate.
func (s *SyntheticTap) SampleRate() float64 { return s.rate }

// Samples renders the window that ends at the current clock time.
func (s *SyntheticTap) Samples(dst []float32) []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cap(dst) < s.size {
		dst = make([]float32, s.size)
	}
	dst = dst[:s.size]

	now := s.clock().Sub(s.start).Seconds()
	bass, mid, treble := bandLevels(now)
	beat := math.Max(0, math.Sin(now*1.4))
	dt := 1 / s.rate
	t0 := now - float64(s.size)*dt
	for i := range dst {
		t := t0 + float64(i)*dt
		v := bass*(0.6+0.4*beat)*math.Sin(2*math.Pi*toneBass*t) +
			mid*math.Sin(2*math.Pi*toneMid*t) +
			treble*math.Sin(2*math.Pi*toneTreble*t) +
			(s.rng.Float64()-0.5)*0.01
		dst[i] = float32(v / 3)
	}
	return dst
}

// bandLevels drifts the three band amplitudes at different rates.
func bandLevels(t float64) (bass, mid, treble float64) {
	bass = clamp01(0.5 + 0.5*math.Sin(t*0.7))
	mid = clamp01(0.4 + 0.4*math.Sin(t*1.2+0.5))
	treble = clamp01(0.3 + 0.3*math.Sin(t*2.1+1.0))
	return bass, mid, treble
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
