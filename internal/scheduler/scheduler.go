// Package scheduler runs per-refresh callback chains. Each chain re-arms
// itself on every frame until its liveness token is cleared.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Frames is a display refresh source. RequestFrame schedules cb once on the
// next refresh, the way requestAnimationFrame does.
type Frames interface {
	RequestFrame(cb func(now time.Time))
}

// Token is the liveness flag for one callback chain. It dies when Cancel is
// called or when its parent context ends.
type Token struct {
	id       uuid.UUID
	ctx      context.Context
	canceled atomic.Bool
}

// NewToken returns a live token bound to ctx.
func NewToken(ctx context.Context) *Token {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Token{id: uuid.New(), ctx: ctx}
}

// ID identifies the chain in logs and telemetry.
func (t *Token) ID() string { return t.id.String() }

// Alive reports whether the chain should keep running.
func (t *Token) Alive() bool {
	if t.canceled.Load() {
		return false
	}
	return t.ctx.Err() == nil
}

// Cancel clears the token. Pending invocations become no-ops.
func (t *Token) Cancel() { t.canceled.Store(true) }

// TornDown reports whether the parent context ended, as opposed to an
// explicit Cancel.
func (t *Token) TornDown() bool { return !t.canceled.Load() && t.ctx.Err() != nil }

// Chain is a running callback chain.
type Chain struct {
	token *Token
	ticks atomic.Int64
	done  chan struct{}
	once  sync.Once
}

// Token returns the chain's liveness token.
func (c *Chain) Token() *Token { return c.token }

// Ticks counts invocations that ran fn.
func (c *Chain) Ticks() int64 { return c.ticks.Load() }

// Done is closed once the chain has observed its dead token.
func (c *Chain) Done() <-chan struct{} { return c.done }

// Start schedules fn on every refresh while tok is alive. The chain re-arms
// before calling fn so a slow or failing callback never breaks it. When the
// chain first sees a dead token it calls onExit (if set) exactly once and
// stops re-arming.
func Start(frames Frames, tok *Token, fn func(now time.Time), onExit func(tok *Token)) *Chain {
	c := &Chain{token: tok, done: make(chan struct{})}
	var tick func(now time.Time)
	tick = func(now time.Time) {
		if !tok.Alive() {
			c.once.Do(func() {
				if onExit != nil {
					onExit(tok)
				}
				close(c.done)
			})
			return
		}
		frames.RequestFrame(tick)
		c.ticks.Add(1)
		fn(now)
	}
	frames.RequestFrame(tick)
	return c
}

// Loop is the native refresh source: a ticker that runs every requested
// callback once per refresh on the goroutine calling Run.
type Loop struct {
	interval time.Duration
	log      zerolog.Logger

	mu      sync.Mutex
	pending []func(now time.Time)
	panics  int
}

// NewLoop refreshes every interval; zero means 60 Hz.
func NewLoop(interval time.Duration, logger zerolog.Logger) *Loop {
	if interval <= 0 {
		interval = time.Second / 60
	}
	return &Loop{
		interval: interval,
		log:      logger.With().Str("component", "scheduler").Logger(),
	}
}

// Interval is the refresh period.
func (l *Loop) Interval() time.Duration { return l.interval }

// RequestFrame queues cb for the next refresh.
func (l *Loop) RequestFrame(cb func(now time.Time)) {
	l.mu.Lock()
	l.pending = append(l.pending, cb)
	l.mu.Unlock()
}

// Pending is the number of callbacks waiting for the next refresh.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Panics counts callbacks that panicked and were recovered.
func (l *Loop) Panics() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.panics
}

// Step runs one refresh at now and returns how many callbacks ran.
// Callbacks requested during the step run on the next one.
func (l *Loop) Step(now time.Time) int {
	l.mu.Lock()
	batch := l.pending
	l.pending = nil
	l.mu.Unlock()

	for _, cb := range batch {
		l.invoke(cb, now)
	}
	return len(batch)
}

func (l *Loop) invoke(cb func(now time.Time), now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			l.mu.Lock()
			l.panics++
			l.mu.Unlock()
			l.log.Error().Err(fmt.Errorf("frame callback panic: %v", r)).Msg("recovered")
		}
	}()
	cb(now)
}

// Run drives refreshes until ctx ends, then gives pending chains one last
// refresh so they can observe their dead tokens.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			l.Step(time.Now())
			return ctx.Err()
		case now := <-ticker.C:
			l.Step(now)
		}
	}
}
