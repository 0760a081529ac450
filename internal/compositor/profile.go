package compositor

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Profiler appends per-section frame timings as CSV. A nil *Profiler is a
// valid no-op.
type Profiler struct {
	mu    sync.Mutex
	w     io.WriteCloser
	start time.Time
	last  time.Time
}

// OpenProfiler appends to path. An empty path or an open failure returns nil
// so callers can use the result unconditionally.
func OpenProfiler(path string, logger zerolog.Logger) *Profiler {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("profiler disabled")
		return nil
	}
	return NewProfiler(f)
}

// NewProfiler writes to w.
func NewProfiler(w io.WriteCloser) *Profiler {
	p := &Profiler{w: w}
	fmt.Fprintln(w, "timestamp,section,delta_ms")
	return p
}

func (p *Profiler) beginFrame() {
	if p == nil {
		return
	}
	now := time.Now()
	p.start = now
	p.last = now
	p.log(now, "frame_start", 0)
}

func (p *Profiler) mark(section string) {
	if p == nil {
		return
	}
	now := time.Now()
	delta := now.Sub(p.last).Seconds() * 1000
	p.last = now
	p.log(now, section, delta)
}

func (p *Profiler) endFrame() {
	if p == nil {
		return
	}
	now := time.Now()
	p.log(now, "frame_total", now.Sub(p.start).Seconds()*1000)
}

// Close closes the underlying writer.
func (p *Profiler) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.w == nil {
		return nil
	}
	err := p.w.Close()
	p.w = nil
	return err
}

func (p *Profiler) log(now time.Time, section string, deltaMs float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.w == nil {
		return
	}
	fmt.Fprintf(p.w, "%s,%s,%.3f\n", now.Format(time.RFC3339Nano), section, deltaMs)
}
