// Package promsink is a domain-stack addition (SPEC_FULL.md §4.10): a
// profiler.SinkFunc that exposes per-frame counters as Prometheus
// collectors, grounded on aistore's prometheus/client_golang usage in its
// stats package.
/*
 * Copyright (c) 2024, scomesh contributors. All rights reserved.
 */
package promsink

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/scomesh/puffin/frame"
)

// Metrics holds the collectors registered by New. New returns only the sink
// function, not this value; callers reach the collectors through the
// registerer they passed in.
type Metrics struct {
	Frames          prometheus.Counter
	FrameDurationNS prometheus.Histogram
	ScopesPerFrame  prometheus.Histogram
}

// New registers a frame counter, a frame-duration histogram (nanoseconds)
// and a scopes-per-frame histogram with registerer, and returns a sink
// function that updates them from every frame it observes.
func New(registerer prometheus.Registerer) (func(*frame.FrameData), error) {
	m := &Metrics{
		Frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "puffin",
			Name:      "frames_total",
			Help:      "Total number of profiler frames observed.",
		}),
		FrameDurationNS: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "puffin",
			Name:      "frame_duration_nanoseconds",
			Help:      "Wall-clock span of each profiler frame, in nanoseconds.",
			Buckets:   prometheus.ExponentialBuckets(1_000, 4, 12),
		}),
		ScopesPerFrame: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "puffin",
			Name:      "frame_scopes",
			Help:      "Number of scopes recorded per profiler frame.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 16),
		}),
	}

	for _, c := range []prometheus.Collector{m.Frames, m.FrameDurationNS, m.ScopesPerFrame} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}

	return m.observe, nil
}

func (m *Metrics) observe(fd *frame.FrameData) {
	if fd == nil {
		return
	}
	meta := fd.Meta()
	m.Frames.Inc()
	m.ScopesPerFrame.Observe(float64(meta.NumScopes))
	if !meta.Range.IsEmpty() {
		m.FrameDurationNS.Observe(float64(meta.Range.Max - meta.Range.Min))
	}
}
