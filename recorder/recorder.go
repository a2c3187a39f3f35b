// Package recorder implements the per-goroutine scope recorder (§4.2): the
// hot-path accumulator that instrumentation macros call into on
// begin/end-scope, and the sole publication point (depth returning to zero)
// that hands a finished stream over to the global profiler.
//
// Go has no goroutine-local storage, so "one recorder per thread" (§4.2) is
// realized as "one recorder per goroutine id" (cmn/goid) stored in a
// sync.Map, exactly the reinterpretation documented in SPEC_FULL.md §4.2.
/*
 * Copyright (c) 2024, scomesh contributors. All rights reserved.
 */
package recorder

import (
	"sync"
	"sync/atomic"

	"github.com/scomesh/puffin/cmn/debug"
	"github.com/scomesh/puffin/cmn/goid"
	"github.com/scomesh/puffin/cmn/mono"
	"github.com/scomesh/puffin/cmn/nlog"
	"github.com/scomesh/puffin/registry"
	"github.com/scomesh/puffin/stream"
)

// scopesOn is the single global enable flag (§5): a relaxed atomic bool
// checked before anything else on the hot path.
var scopesOn atomic.Bool

// SetScopesOn flips the master enable switch.
func SetScopesOn(on bool) { scopesOn.Store(on) }

// ScopesOn reports the current master enable state.
func ScopesOn() bool { return scopesOn.Load() }

// TimeSource returns the current time in nanoseconds from a monotonic,
// process-local epoch (§6 "time source hook").
type TimeSource func() stream.NanoSecond

// Reporter receives a finished stream when a goroutine's outermost scope
// closes (§4.2 step 5, §4.4 report()).
type Reporter func(info stream.ThreadInfo, newDetails []PendingScope, si stream.StreamInfo)

// PendingScope pairs a newly allocated ScopeId with its details, queued on
// a recorder until the next depth-zero flush (§4.2's "pending list").
type PendingScope struct {
	Id      registry.ScopeId
	Details registry.ScopeDetails
}

var (
	defaultTimeSource TimeSource = func() stream.NanoSecond { return mono.NanoTime() }
	defaultReporter   atomic.Value // holds a Reporter
)

// SetDefault installs the process-wide default time source and reporter
// used by every recorder created after the call (§6 initialize(now_ns,
// reporter)). Existing recorders keep whatever they were created with.
func SetDefault(ts TimeSource, r Reporter) {
	if ts != nil {
		defaultTimeSource = ts
	}
	if r != nil {
		defaultReporter.Store(r)
	}
}

func currentDefaultReporter() Reporter {
	v := defaultReporter.Load()
	if v == nil {
		return func(stream.ThreadInfo, []PendingScope, stream.StreamInfo) {}
	}
	return v.(Reporter)
}

// ThreadRecorder accumulates one goroutine's scope stream between flushes.
// It owns all of its state; nothing here is synchronized because exactly
// one goroutine ever touches a given ThreadRecorder (§5).
type ThreadRecorder struct {
	goroutineID uint64
	name        string

	timeSource TimeSource
	reporter   Reporter

	writer  *stream.Writer
	pending []PendingScope

	depth      int
	maxDepth   int
	numScopes  uint64
	rangeNS    stream.RangeNS
	firstStart stream.NanoSecond
	hasFirst   bool
}

var recorders sync.Map // goroutine id -> *ThreadRecorder

// Get returns the ThreadRecorder for the calling goroutine, creating it
// lazily on first use (§4.2).
func Get() *ThreadRecorder {
	id := goid.Get()
	if v, ok := recorders.Load(id); ok {
		return v.(*ThreadRecorder)
	}
	r := &ThreadRecorder{
		goroutineID: id,
		timeSource:  defaultTimeSource,
		reporter:    currentDefaultReporter(),
		writer:      stream.NewWriter(make([]byte, 0, 4096)),
		rangeNS:     stream.EmptyRange(),
	}
	actual, _ := recorders.LoadOrStore(id, r)
	return actual.(*ThreadRecorder)
}

// SetName labels the calling goroutine's recorder for display purposes
// (becomes ThreadInfo.Name).
func SetName(name string) { Get().name = name }

// Initialize replaces the calling goroutine's time source and reporter
// (§6's per-thread initialize(now_ns, reporter) hook).
func Initialize(ts TimeSource, r Reporter) {
	rec := Get()
	if ts != nil {
		rec.timeSource = ts
	}
	if r != nil {
		rec.reporter = r
	}
}

// GoroutineID returns the id this recorder belongs to, used by debug builds
// to assert a scope handle is ended on the thread it began on.
func (r *ThreadRecorder) GoroutineID() uint64 { return r.goroutineID }

// BeginScope opens a new scope (§4.2 begin_scope). Callers on the disabled
// path should never reach this: see the puffin package's macros, which
// check ScopesOn() first.
func (r *ThreadRecorder) BeginScope(id registry.ScopeId, data string) (offset int) {
	r.depth++
	now := r.timeSource()
	offset = r.writer.BeginScope(id, now, data)

	r.rangeNS.Min = min64(r.rangeNS.Min, now)
	if !r.hasFirst {
		r.firstStart = now
		r.hasFirst = true
	}
	if r.depth > r.maxDepth {
		r.maxDepth = r.depth
	}
	return offset
}

// EndScope closes the scope opened at offset (§4.2 end_scope). On reaching
// depth zero it flushes the accumulated stream to the reporter, the sole
// publication point, amortizing handoff cost across the outermost scope.
func (r *ThreadRecorder) EndScope(offset int) {
	if r.depth == 0 {
		nlog.Warningf("recorder: end_scope called with depth already 0 (goroutine %d)", r.goroutineID)
		return
	}
	now := r.timeSource()
	r.writer.EndScope(offset, now)
	r.numScopes++
	r.rangeNS.Max = max64(r.rangeNS.Max, now)

	r.depth--
	if r.depth == 0 {
		r.flush()
	}
}

// QueueRegistration appends a newly-seen ScopeId/details pair to the
// pending list, drained on the next depth-zero flush (§4.2 "Scope
// registration").
func (r *ThreadRecorder) QueueRegistration(id registry.ScopeId, d registry.ScopeDetails) {
	r.pending = append(r.pending, PendingScope{Id: id, Details: d})
}

func (r *ThreadRecorder) flush() {
	data := r.writer.Take(make([]byte, 0, cap(r.writer.Bytes())))
	si := stream.StreamInfo{
		Data:      data,
		NumScopes: r.numScopes,
		Depth:     r.maxDepth,
		Range:     r.rangeNS,
	}
	pending := r.pending

	info := stream.ThreadInfo{Name: r.name}
	if r.hasFirst {
		info.StartTimeNS = r.firstStart
		info.HasStartTimeNS = true
	}

	r.pending = nil
	r.numScopes = 0
	r.maxDepth = 0
	r.rangeNS = stream.EmptyRange()

	debug.Assert(r.depth == 0, "flush at nonzero depth")
	r.reporter(info, pending, si)
}

func min64(a, b stream.NanoSecond) stream.NanoSecond {
	if a < b {
		return a
	}
	return b
}

func max64(a, b stream.NanoSecond) stream.NanoSecond {
	if a > b {
		return a
	}
	return b
}
