package audio

import (
	"sync"

	"github.com/guidoenr/reflectube/internal/analyzer"
	"github.com/guidoenr/reflectube/internal/config"
)

// Classifier decides whether the current content is music. Hosts that cannot
// tell pass nil, which counts as music.
type Classifier interface {
	IsMusic() bool
}

// ClassifierFunc adapts a plain function to Classifier.
type ClassifierFunc func() bool

func (f ClassifierFunc) IsMusic() bool { return f() }

// Interactions delivers user gestures (click, keypress). The returned cancel
// function removes the subscription.
type Interactions interface {
	OnInteraction(fn func()) (cancel func())
}

// Reactivity derives the loudness metric and frequency features from the
// shared graph, gated by the audio toggles of the current configuration.
type Reactivity struct {
	graph      *Graph
	classifier Classifier

	mu   sync.Mutex
	last float64

	once   sync.Once
	cancel func()
}

// NewReactivity wraps graph. When interactions is non-nil every gesture
// resumes a suspended graph.
func NewReactivity(graph *Graph, classifier Classifier, interactions Interactions) *Reactivity {
	r := &Reactivity{graph: graph, classifier: classifier}
	if interactions != nil {
		r.cancel = interactions.OnInteraction(graph.Resume)
	}
	return r
}

// Graph returns the underlying shared graph.
func (r *Reactivity) Graph() *Graph { return r.graph }

// Connect routes src into the graph.
func (r *Reactivity) Connect(src Source) { r.graph.Connect(src) }

// Resume wakes the graph.
func (r *Reactivity) Resume() { r.graph.Resume() }

// FrequencyData reads the current byte bins into dst.
func (r *Reactivity) FrequencyData(dst []byte) []byte { return r.graph.FrequencyData(dst) }

// Active reports whether audio should drive visuals under cfg.
func (r *Reactivity) Active(cfg config.Config) bool {
	if !cfg.AudioEnabled {
		return false
	}
	if !cfg.MusicOnly || r.classifier == nil {
		return true
	}
	return r.classifier.IsMusic()
}

// Sample reads the analyser once into dst and returns the bins together with
// the loudness for cfg. The loudness is remembered for LastLoudness.
func (r *Reactivity) Sample(cfg config.Config, dst []byte) ([]byte, float64) {
	bins := r.graph.FrequencyData(dst)
	l := r.LoudnessOf(cfg, bins)
	r.mu.Lock()
	r.last = l
	r.mu.Unlock()
	return bins, l
}

// Loudness samples fresh bins and returns the metric for cfg, zero when audio
// is gated off or the graph is inert.
func (r *Reactivity) Loudness(cfg config.Config) float64 {
	_, l := r.Sample(cfg, nil)
	return l
}

// LoudnessOf computes the metric for bins already read by the caller.
func (r *Reactivity) LoudnessOf(cfg config.Config, bins []byte) float64 {
	if !r.Active(cfg) {
		return 0
	}
	return analyzer.Loudness(bins, cfg.Sensitivity)
}

// LastLoudness is the value computed by the most recent Sample.
func (r *Reactivity) LastLoudness() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// FeaturesOf returns band energies of bins, zero when gated off.
func (r *Reactivity) FeaturesOf(cfg config.Config, bins []byte) analyzer.Features {
	if !r.Active(cfg) {
		return analyzer.Features{}
	}
	return analyzer.FeaturesFromBins(bins, r.graph.SampleRate(), r.graph.FFTSize())
}

// Close drops the interaction subscription. The graph itself is left alone.
func (r *Reactivity) Close() {
	r.once.Do(func() {
		if r.cancel != nil {
			r.cancel()
		}
	})
}
