package compositor

import (
	"sync"
	"time"
)

// FPSCounter counts loop invocations and publishes a rate once per second.
type FPSCounter struct {
	mu         sync.Mutex
	frames     int
	total      int
	lastUpdate time.Time
	current    float64
}

// Tick records one invocation at now.
func (f *FPSCounter) Tick(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames++
	f.total++
	if f.lastUpdate.IsZero() {
		f.lastUpdate = now
		return
	}
	elapsed := now.Sub(f.lastUpdate)
	if elapsed >= time.Second {
		f.current = float64(f.frames) / elapsed.Seconds()
		f.frames = 0
		f.lastUpdate = now
	}
}

// FPS is the rate measured over the last full second.
func (f *FPSCounter) FPS() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// Total is the number of invocations since creation.
func (f *FPSCounter) Total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.total
}

// Reset clears the counter.
func (f *FPSCounter) Reset() {
	f.mu.Lock()
	f.frames = 0
	f.total = 0
	f.current = 0
	f.lastUpdate = time.Time{}
	f.mu.Unlock()
}
