package obs

import (
	"sort"
	"strings"
	"sync"
)

// Label is a key/value pair attached to measurements.
type Label struct {
	Key   string
	Value string
}

// Meter is a very small interface for emitting counters/histograms.
// Implementations may no-op or bridge to a metrics system.
type Meter interface {
	Counter(name string, value float64, labels ...Label)
	Histogram(name string, value float64, labels ...Label)
}

// NopMeter is a Meter that discards all measurements.
type NopMeter struct{}

func (NopMeter) Counter(name string, value float64, labels ...Label)   {}
func (NopMeter) Histogram(name string, value float64, labels ...Label) {}

// Recorder keeps measurements in memory. Series are keyed by name plus
// the sorted label set, e.g. `wsx_frames_total{dir=in,op=text}`.
type Recorder struct {
	mu       sync.Mutex
	counters map[string]float64
	samples  map[string][]float64
}

func NewRecorder() *Recorder {
	return &Recorder{counters: map[string]float64{}, samples: map[string][]float64{}}
}

func (r *Recorder) Counter(name string, value float64, labels ...Label) {
	r.mu.Lock()
	r.counters[seriesKey(name, labels)] += value
	r.mu.Unlock()
}

func (r *Recorder) Histogram(name string, value float64, labels ...Label) {
	k := seriesKey(name, labels)
	r.mu.Lock()
	r.samples[k] = append(r.samples[k], value)
	r.mu.Unlock()
}

// Count returns the accumulated counter value for a series key.
func (r *Recorder) Count(key string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[key]
}

// Samples returns a copy of the histogram samples for a series key.
func (r *Recorder) Samples(key string) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.samples[key]...)
}

// Snapshot returns all counters.
func (r *Recorder) Snapshot() map[string]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]float64, len(r.counters))
	for k, v := range r.counters {
		out[k] = v
	}
	return out
}

func seriesKey(name string, labels []Label) string {
	if len(labels) == 0 {
		return name
	}
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		parts = append(parts, l.Key+"="+l.Value)
	}
	sort.Strings(parts)
	return name + "{" + strings.Join(parts, ",") + "}"
}
