// Package profiler implements the global frame aggregator (§4.4): a
// process-wide singleton that collects per-goroutine streams as their
// outermost scope closes, and emits one FrameData per new_frame() call to
// every registered sink. Exposed only through package-level functions
// (never a raw pointer to the singleton) so that, per SPEC_FULL.md §4.4 /
// Design Notes §9, mutation without going through the lock is impossible.
/*
 * Copyright (c) 2024, scomesh contributors. All rights reserved.
 */
package profiler

import (
	"sync"

	shortid "github.com/teris-io/shortid"

	"github.com/scomesh/puffin/cmn/nlog"
	"github.com/scomesh/puffin/frame"
	"github.com/scomesh/puffin/recorder"
	"github.com/scomesh/puffin/registry"
	"github.com/scomesh/puffin/stream"
)

// SinkId identifies a registered sink for later removal.
type SinkId uint64

// SinkFunc receives one FrameData per published frame, synchronously, in
// sink-registration order (§4.4, §6).
type SinkFunc func(*frame.FrameData)

type sinkEntry struct {
	id SinkId
	fn SinkFunc
}

type singleton struct {
	mu sync.Mutex

	currentFrameIndex uint64
	currentFrame      map[stream.ThreadInfo]stream.StreamInfo
	pendingDetails    []recorder.PendingScope

	nextSinkID uint64
	sinks      []sinkEntry

	snapshotRequested bool

	scopes *registry.Collection
	runID  string
}

var global = newSingleton()

func newSingleton() *singleton {
	id, err := shortid.Generate()
	if err != nil {
		id = "run"
	}
	return &singleton{
		currentFrame: make(map[stream.ThreadInfo]stream.StreamInfo),
		scopes:       registry.New(512),
		runID:        id,
	}
}

// Install wires this package's Report function in as the process-wide
// default reporter for every recorder.ThreadRecorder (§4.2 step 5's
// "sole publication point"). Call once during process/library init.
func Install() {
	recorder.SetDefault(nil, Report)
}

// ScopeCollection exposes the shared, reader/writer-locked registry (§4.3):
// safe to hand out directly since Collection synchronizes itself.
func ScopeCollection() *registry.Collection { return global.scopes }

// RunID returns the short id stamped into every FrameData built by this
// process (SPEC_FULL.md §4.5).
func RunID() string { return global.runID }

// Report is invoked by a ThreadRecorder when its outermost scope closes
// (§4.2 step 5, §4.4 "report"). It merges the finished stream into the
// in-progress frame and queues the new scope details for the next
// new_frame() call.
func Report(info stream.ThreadInfo, newDetails []recorder.PendingScope, si stream.StreamInfo) {
	global.mu.Lock()
	defer global.mu.Unlock()

	if existing, ok := global.currentFrame[info]; ok {
		global.currentFrame[info] = existing.Merge(si)
	} else {
		global.currentFrame[info] = si
	}
	global.pendingDetails = append(global.pendingDetails, newDetails...)
}

// AddSink registers callback to be invoked on every future NewFrame() call,
// in registration order, and returns an id for later removal (§4.4).
func AddSink(fn SinkFunc) SinkId {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.nextSinkID++
	id := SinkId(global.nextSinkID)
	global.sinks = append(global.sinks, sinkEntry{id: id, fn: fn})
	return id
}

// RemoveSink removes and returns the sink registered under id, if present.
func RemoveSink(id SinkId) (SinkFunc, bool) {
	global.mu.Lock()
	defer global.mu.Unlock()
	for i, e := range global.sinks {
		if e.id == id {
			global.sinks = append(global.sinks[:i:i], global.sinks[i+1:]...)
			return e.fn, true
		}
	}
	return nil, false
}

// RequestScopeSnapshot asks that the next NewFrame() call include every
// known ScopeId in its scope delta rather than just the ids registered
// since the previous frame (§4.4 "Snapshot propagation"), for a sink that
// starts listening after the process has been running a while.
func RequestScopeSnapshot() {
	global.mu.Lock()
	global.snapshotRequested = true
	global.mu.Unlock()
}

// NewFrame is called once per application frame on exactly one goroutine
// (§4.4). It swaps out the in-progress per-thread streams, builds a
// FrameData, and fans it out to every sink in registration order. A frame
// with no recorded streams is silently discarded (§7 "Empty"), returning
// nil.
func NewFrame() *frame.FrameData {
	global.mu.Lock()

	idx := global.currentFrameIndex
	global.currentFrameIndex++

	streams := global.currentFrame
	global.currentFrame = make(map[stream.ThreadInfo]stream.StreamInfo)

	if len(streams) == 0 {
		global.mu.Unlock()
		return nil
	}

	scopeDelta := make([]registry.ScopeId, 0, len(global.pendingDetails))
	for _, p := range global.pendingDetails {
		global.scopes.Insert(p.Id, p.Details)
		scopeDelta = append(scopeDelta, p.Id)
	}
	if global.snapshotRequested {
		scopeDelta = global.scopes.Snapshot()
		global.snapshotRequested = false
	}
	global.pendingDetails = nil

	rangeNS := stream.EmptyRange()
	var numBytes, numScopes uint64
	for _, si := range streams {
		rangeNS = rangeNS.Merge(si.Range)
		numBytes += uint64(len(si.Data))
		numScopes += si.NumScopes
	}

	meta := frame.FrameMeta{
		FrameIndex: idx,
		Range:      rangeNS,
		NumBytes:   numBytes,
		NumScopes:  numScopes,
		RunID:      global.runID,
	}
	fd := frame.New(meta, streams, scopeDelta)

	// Copy the sink list under the lock, then invoke outside it (Design
	// Notes §9's documented relaxation) so a slow sink never blocks the
	// next Report() call; order is still preserved.
	sinks := make([]sinkEntry, len(global.sinks))
	copy(sinks, global.sinks)
	global.mu.Unlock()

	for _, e := range sinks {
		invokeSinkSafely(e, fd)
	}
	return fd
}

// invokeSinkSafely isolates a panicking sink so one bad callback doesn't
// take down the caller of NewFrame (§7 "sinks are contractually required
// not to panic").
func invokeSinkSafely(e sinkEntry, fd *frame.FrameData) {
	defer func() {
		if r := recover(); r != nil {
			nlog.Errorf("profiler: sink %d panicked: %v", e.id, r)
		}
	}()
	e.fn(fd)
}

// CurrentFrameIndex returns the index NewFrame() will assign to the next
// frame it builds.
func CurrentFrameIndex() uint64 {
	global.mu.Lock()
	defer global.mu.Unlock()
	return global.currentFrameIndex
}
