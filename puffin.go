// Package puffin is the public API surface (§4.9): instrumentation entry
// points, frame production, sink registration, and a default
// history-backed frame view, wired together at init() the way the
// original library's lib.rs pairs GlobalProfiler with a default
// GlobalFrameView.
/*
 * Copyright (c) 2024, scomesh contributors. All rights reserved.
 */
package puffin

import (
	"sync"

	"github.com/scomesh/puffin/cmn/nlog"
	"github.com/scomesh/puffin/frame"
	"github.com/scomesh/puffin/history"
	"github.com/scomesh/puffin/profiler"
	"github.com/scomesh/puffin/recorder"
	"github.com/scomesh/puffin/registry"
)

// SinkId and SinkFunc alias the profiler package's types so callers never
// need to import profiler directly just to register a sink.
type (
	SinkId   = profiler.SinkId
	SinkFunc = profiler.SinkFunc
)

var (
	globalViewMu     sync.Mutex
	globalView       *history.FrameView
	globalViewSinkID SinkId
)

func init() {
	profiler.Install()
	resetGlobalView(history.Options{})
}

// NewFrame swaps out the in-progress per-goroutine streams and fans the
// resulting FrameData to every sink, including the default frame view
// (§4.4, §4.9). Returns nil if no scopes were recorded since the last call.
func NewFrame() *frame.FrameData { return profiler.NewFrame() }

// SetScopesOn flips the master enable switch checked by ProfileFunction and
// ProfileScope before any recording (§5, §6 Configuration).
func SetScopesOn(on bool) { recorder.SetScopesOn(on) }

// ScopesOn reports the current master enable state.
func ScopesOn() bool { return recorder.ScopesOn() }

// AddSink registers fn to be called with every future frame, in
// registration order, and returns an id for RemoveSink.
func AddSink(fn SinkFunc) SinkId { return profiler.AddSink(fn) }

// RemoveSink unregisters the sink added under id.
func RemoveSink(id SinkId) (SinkFunc, bool) { return profiler.RemoveSink(id) }

// RequestScopeSnapshot asks that the next NewFrame() call carry every known
// ScopeId in its delta, not just the ones registered since the previous
// frame, for a sink that starts observing after the process has been
// running for a while (§4.4, §5 supplemented features).
func RequestScopeSnapshot() { profiler.RequestScopeSnapshot() }

// ScopeCollection exposes the process-wide scope registry (§4.3), mostly
// useful to tools resolving a ScopeId's name/location.
func ScopeCollection() *registry.Collection { return profiler.ScopeCollection() }

// GlobalFrameView returns the default sink-backed FrameView installed at
// init() (§4.9).
func GlobalFrameView() *history.FrameView {
	globalViewMu.Lock()
	defer globalViewMu.Unlock()
	return globalView
}

func resetGlobalView(opts history.Options) {
	globalViewMu.Lock()
	defer globalViewMu.Unlock()

	if globalView != nil {
		if globalViewSinkID != 0 {
			profiler.RemoveSink(globalViewSinkID)
		}
		if err := globalView.Close(); err != nil {
			nlog.Warningf("puffin: closing previous frame view: %v", err)
		}
	}

	v, err := history.New(opts)
	if err != nil {
		nlog.Errorf("puffin: opening frame view (archive dir %q): %v; falling back to in-memory only", opts.ArchiveDir, err)
		opts.ArchiveDir = ""
		v, _ = history.New(opts)
	}
	globalView = v
	globalViewSinkID = profiler.AddSink(globalView.Sink())
}
