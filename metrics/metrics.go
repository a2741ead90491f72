// Package metrics exposes prometheus collectors for parse, render, detect and
// stream extraction outcomes.
package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const namespace = "harmony"

// Outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Recorder owns a private registry and the collectors registered on it.
type Recorder struct {
	registry *prometheus.Registry

	parses         *prometheus.CounterVec
	tokens         prometheus.Counter
	renders        *prometheus.CounterVec
	detections     *prometheus.CounterVec
	streamUpdates  prometheus.Counter
	streamResets   *prometheus.CounterVec
	streamComplete prometheus.Counter
	bufferBytes    prometheus.Gauge
	chunkBytes     prometheus.Histogram
}

// NewRecorder creates a Recorder with all collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		parses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_total",
			Help:      "Strict parses by outcome and error kind.",
		}, []string{"outcome", "kind"}),
		tokens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_total",
			Help:      "Tokens produced by the tokenizer.",
		}),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_total",
			Help:      "Conversation renders by outcome.",
		}, []string{"outcome"}),
		detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detect_total",
			Help:      "Format detections by result.",
		}, []string{"result"}),
		streamUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "updates_total",
			Help:      "Chunks added to stream extractors.",
		}),
		streamResets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "resets_total",
			Help:      "Extractor resets by reason.",
		}, []string{"reason"}),
		streamComplete: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "complete_total",
			Help:      "Snapshots that reported a complete buffer.",
		}),
		bufferBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "buffer_bytes",
			Help:      "Size of the most recently updated extractor buffer.",
		}),
		chunkBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "chunk_bytes",
			Help:      "Size of chunks added to extractors.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}

	r.registry.MustRegister(
		r.parses, r.tokens, r.renders, r.detections,
		r.streamUpdates, r.streamResets, r.streamComplete, r.bufferBytes, r.chunkBytes,
	)
	return r
}

// Registry returns the registry holding the collectors
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveParse records a strict parse. kind is empty on success.
func (r *Recorder) ObserveParse(tokenCount int, kind string) {
	r.tokens.Add(float64(tokenCount))
	if kind == "" {
		r.parses.WithLabelValues(OutcomeOK, "").Inc()
		return
	}
	r.parses.WithLabelValues(OutcomeError, kind).Inc()
}

// ObserveRender records a render attempt
func (r *Recorder) ObserveRender(err error) {
	if err != nil {
		r.renders.WithLabelValues(OutcomeError).Inc()
		return
	}
	r.renders.WithLabelValues(OutcomeOK).Inc()
}

// ObserveDetect records a format detection result
func (r *Recorder) ObserveDetect(harmony bool) {
	if harmony {
		r.detections.WithLabelValues("harmony").Inc()
		return
	}
	r.detections.WithLabelValues("plain").Inc()
}

// ObserveStreamUpdate records one extractor Add
func (r *Recorder) ObserveStreamUpdate(chunkBytes, bufferBytes int, complete bool) {
	r.streamUpdates.Inc()
	r.chunkBytes.Observe(float64(chunkBytes))
	r.bufferBytes.Set(float64(bufferBytes))
	if complete {
		r.streamComplete.Inc()
	}
}

// ObserveStreamReset records an extractor reset with its reason
func (r *Recorder) ObserveStreamReset(reason string) {
	r.streamResets.WithLabelValues(reason).Inc()
}

// WriteText writes every collected metric in the text exposition format.
func (r *Recorder) WriteText(w io.Writer) error {
	families, err := r.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
