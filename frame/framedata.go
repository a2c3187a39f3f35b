// Package frame implements FrameData and its lazy compression (§4.5): the
// per-frame container holding one thread-keyed set of streams, which may be
// held either parsed, compressed, or both, with decompression errors cached
// so repeated reads never redo failed work.
/*
 * Copyright (c) 2024, scomesh contributors. All rights reserved.
 */
package frame

import (
	"fmt"
	"sync"

	"github.com/scomesh/puffin/registry"
	"github.com/scomesh/puffin/stream"
)

// unpackedState holds the parsed form plus a cached decode error, so a
// packed-only FrameData that fails to decompress doesn't retry on every
// subsequent Unpacked() call (§7 "Decompression failure").
type unpackedState struct {
	streams map[stream.ThreadInfo]stream.StreamInfo
	err     error
}

// FrameData is a per-frame container (§3, §4.5). It is shared-owned: the
// frame view and every sink that retained a reference may hold the same
// *FrameData concurrently; the mutex below is purely for the
// pack/unpack interior-mutability slots (§5 "resource sharing").
type FrameData struct {
	mu sync.RWMutex

	meta       FrameMeta
	scopeDelta []registry.ScopeId

	unpacked *unpackedState
	packed   []byte
}

// New constructs a FrameData in the "unpacked only" state.
func New(meta FrameMeta, streams map[stream.ThreadInfo]stream.StreamInfo, scopeDelta []registry.ScopeId) *FrameData {
	return &FrameData{
		meta:       meta,
		scopeDelta: scopeDelta,
		unpacked:   &unpackedState{streams: streams},
	}
}

// FromPacked constructs a FrameData in the "packed only" state, as produced
// by reading a PFD2 frame off disk or a byte sink (§4.5 wire format).
func FromPacked(meta FrameMeta, packed []byte, scopeDelta []registry.ScopeId) *FrameData {
	return &FrameData{meta: meta, packed: packed, scopeDelta: scopeDelta}
}

// Meta returns the frame's summary metadata.
func (f *FrameData) Meta() FrameMeta {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.meta
}

// ScopeDelta returns the ScopeIds first seen in this frame (§3, §4.4 step 2).
func (f *FrameData) ScopeDelta() []registry.ScopeId {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]registry.ScopeId, len(f.scopeDelta))
	copy(out, f.scopeDelta)
	return out
}

// Unpacked returns the parsed per-thread streams, decompressing the packed
// blob on demand if only that form is present (§4.5). The error from a
// failed decompression is cached: every subsequent call returns the same
// error without retrying.
func (f *FrameData) Unpacked() (map[stream.ThreadInfo]stream.StreamInfo, error) {
	f.mu.RLock()
	if f.unpacked != nil {
		u := f.unpacked
		f.mu.RUnlock()
		return u.streams, u.err
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unpacked != nil { // lost the race to another caller
		return f.unpacked.streams, f.unpacked.err
	}

	raw, err := lz4Decompress(f.packed)
	if err != nil {
		f.unpacked = &unpackedState{err: fmt.Errorf("frame: decompress: %w", err)}
		return nil, f.unpacked.err
	}
	streams, err := decodeThreadStreams(raw)
	if err != nil {
		err = fmt.Errorf("frame: decode thread streams: %w", err)
	}
	f.unpacked = &unpackedState{streams: streams, err: err}
	return streams, err
}

// Pack compresses the thread streams into a single blob and drops the
// parsed form (§4.5). Idempotent: if a packed blob already exists, Pack
// only drops any cached parsed form and returns nil.
func (f *FrameData) Pack() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.packed != nil {
		f.unpacked = nil
		return nil
	}
	if f.unpacked == nil || f.unpacked.err != nil {
		return fmt.Errorf("frame: pack: no valid unpacked form to compress")
	}

	raw := encodeThreadStreams(f.unpacked.streams)
	compressed, err := lz4Compress(raw)
	if err != nil {
		return fmt.Errorf("frame: compress: %w", err)
	}
	f.packed = compressed
	f.unpacked = nil
	return nil
}

// IsPacked reports whether a compressed blob is currently held (used by
// tests and by the history package to decide whether re-encoding for the
// .puffin format needs to Pack first).
func (f *FrameData) IsPacked() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.packed != nil
}

// packedBytes exposes the raw compressed blob for the wire encoder (frame
// package internal use only; external callers go through Pack()+Encode()).
func (f *FrameData) packedBytes() ([]byte, error) {
	if err := f.Pack(); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.packed, nil
}
