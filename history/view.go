// Package history implements the frame view (§4.6): a bounded recent ring
// plus a slowest-K min-heap, with .puffin file export/import and an
// optional on-disk archive for the slowest set.
/*
 * Copyright (c) 2024, scomesh contributors. All rights reserved.
 */
package history

import (
	"container/heap"
	"sort"
	"sync"

	"github.com/scomesh/puffin/cmn/nlog"
	"github.com/scomesh/puffin/frame"
)

const (
	// DefaultMaxRecent is §4.6's default recent-ring capacity (~54,000
	// frames, close to 15 minutes at 60 fps).
	DefaultMaxRecent = 54_000
	// DefaultMaxSlow is §4.6's default slowest-K capacity.
	DefaultMaxSlow = 256
)

// FrameView holds the bounded recent-and-slowest history (§4.6). The zero
// value is not usable; construct with New.
type FrameView struct {
	mu sync.Mutex

	maxRecent int
	maxSlow   int

	recent []*frame.FrameData // oldest first
	slow   slowestHeap
	seq    uint64

	archive *archive // nil unless Options.ArchiveDir was set
}

// Options configures a FrameView (§6 Configuration).
type Options struct {
	MaxRecent int
	MaxSlow   int
	// ArchiveDir, if non-empty, opens a buntdb-backed on-disk mirror of
	// the slowest-K set so it survives a process restart (SPEC_FULL.md
	// §4.6, an explicit extension beyond the in-memory-only original).
	ArchiveDir string
}

// New constructs a FrameView, applying defaults for zero fields in opts.
func New(opts Options) (*FrameView, error) {
	if opts.MaxRecent <= 0 {
		opts.MaxRecent = DefaultMaxRecent
	}
	if opts.MaxSlow <= 0 {
		opts.MaxSlow = DefaultMaxSlow
	}
	v := &FrameView{maxRecent: opts.MaxRecent, maxSlow: opts.MaxSlow}
	if opts.ArchiveDir != "" {
		a, err := openArchive(opts.ArchiveDir)
		if err != nil {
			return nil, err
		}
		v.archive = a
	}
	return v, nil
}

// Sink returns a profiler.SinkFunc-compatible callback that feeds every
// frame into AddFrame (the "Frame view subscribes as a sink" wiring, §2).
func (v *FrameView) Sink() func(*frame.FrameData) {
	return v.AddFrame
}

// AddFrame implements the add_frame protocol (§4.6):
//  1. a frame index <= the back of recent means the source restarted or
//     rewound, so both collections are cleared first;
//  2. the slowest-K set is updated by straight comparison against its
//     current minimum;
//  3. recent gets the new frame appended, then trimmed from the front.
func (v *FrameView) AddFrame(fd *frame.FrameData) {
	if fd == nil {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	if n := len(v.recent); n > 0 && fd.Meta().FrameIndex <= v.recent[n-1].Meta().FrameIndex {
		nlog.Warningf("history: frame index %d did not advance past %d; resetting view",
			fd.Meta().FrameIndex, v.recent[n-1].Meta().FrameIndex)
		v.recent = nil
		v.slow = nil
		v.seq = 0
	}

	v.addSlowLocked(fd)

	v.recent = append(v.recent, fd)
	for len(v.recent) > v.maxRecent {
		v.recent = v.recent[1:]
	}
}

func (v *FrameView) addSlowLocked(fd *frame.FrameData) {
	dur := durationOf(fd)
	item := slowItem{fd: fd, duration: dur, seq: v.seq}
	v.seq++

	switch {
	case len(v.slow) < v.maxSlow:
		heap.Push(&v.slow, item)
	case dur > v.slow.min():
		heap.Pop(&v.slow)
		heap.Push(&v.slow, item)
	default:
		return
	}
	if v.archive != nil {
		if err := v.archive.put(fd); err != nil {
			nlog.Warningf("history: archive put failed: %v", err)
		}
	}
}

// LatestFrame returns the most recently added frame, or nil if empty.
func (v *FrameView) LatestFrame() *frame.FrameData {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.recent) == 0 {
		return nil
	}
	return v.recent[len(v.recent)-1]
}

// RecentFrames returns the recent ring, oldest first.
func (v *FrameView) RecentFrames() []*frame.FrameData {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]*frame.FrameData, len(v.recent))
	copy(out, v.recent)
	return out
}

// SlowestFramesChronological returns the current slowest-K set sorted by
// frame index (§4.6 "Queries").
func (v *FrameView) SlowestFramesChronological() []*frame.FrameData {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]*frame.FrameData, len(v.slow))
	for i, it := range v.slow {
		out[i] = it.fd
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Meta().FrameIndex < out[j].Meta().FrameIndex
	})
	return out
}

// Close releases any archive resources.
func (v *FrameView) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.archive != nil {
		return v.archive.close()
	}
	return nil
}
