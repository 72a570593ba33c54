// Package metrics exposes run timings as Prometheus gauges.
//
// A run is a short-lived batch job, so nothing is served over HTTP. The
// registry is written once, in text exposition format, to a file that a
// node_exporter textfile collector can pick up.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "halo"

// Phase names used as the "phase" label.
const (
	PhaseTotal         = "total"
	PhaseIO            = "io"
	PhaseComputation   = "computation"
	PhaseCommunication = "communication"
)

// Recorder holds the gauges of one run in a private registry.
type Recorder struct {
	registry *prometheus.Registry

	phaseDuration *prometheus.GaugeVec
	members       prometheus.Gauge
	imageBytes    prometheus.Gauge
	outputsSaved  prometheus.Counter
}

// NewRecorder creates a Recorder with an empty registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		phaseDuration: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Wall-clock time spent in each phase of the last run, measured on rank 0.",
		}, []string{"phase"}),
		members: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "group_members",
			Help:      "Number of members in the process group.",
		}),
		imageBytes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "image_bytes",
			Help:      "Size of the input raster in bytes.",
		}),
		outputsSaved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outputs_saved_total",
			Help:      "Output files written successfully.",
		}),
	}
}

// ObservePhase records the duration of phase.
func (r *Recorder) ObservePhase(phase string, d time.Duration) {
	r.phaseDuration.WithLabelValues(phase).Set(d.Seconds())
}

// SetRun records the group size and the input size.
func (r *Recorder) SetRun(members, imageBytes int) {
	r.members.Set(float64(members))
	r.imageBytes.Set(float64(imageBytes))
}

// AddOutputs counts n saved output files.
func (r *Recorder) AddOutputs(n int) {
	r.outputsSaved.Add(float64(n))
}

// WriteFile writes every metric to path in text exposition format. The file
// is replaced atomically.
func (r *Recorder) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
