// Package stream is the single source of truth for the profiler's binary
// scope format (§4.1): a sentinel-framed, length-prefixed, offset-addressable
// encoding of a tree of timed scopes, modeled on aistore transport/pdu.go's
// offset bookkeeping (read/write offsets into a reused byte buffer, a "done"
// flag, a patched placeholder length).
/*
 * Copyright (c) 2024, scomesh contributors. All rights reserved.
 */
package stream

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// ScopeId identifies a registration site (§3). Zero is reserved/invalid.
type ScopeId uint32

// NanoSecond is a signed monotonic nanosecond count from an arbitrary epoch.
type NanoSecond = int64

const (
	sentinelBegin byte = '(' // 0x28
	sentinelEnd   byte = ')' // 0x29

	maxDataLen = 127

	sizePlaceholder = ^uint64(0) // u64::MAX, patched at EndScope
)

// Error kinds (§4.1, §7). Created with github.com/pkg/errors and returned
// unwrapped by the Reader, so callers can compare against them directly.
var (
	ErrPrematureEnd   = errors.New("stream: premature end")
	ErrInvalidStream  = errors.New("stream: invalid stream (bad sentinel or stop < start)")
	ErrUnfinishedScope = errors.New("stream: unfinished scope (placeholder still max)")
	ErrInvalidOffset  = errors.New("stream: reader constructed past end")
)

// Record is the parsed leaf payload of one scope (§3).
type Record struct {
	StartNS    NanoSecond
	DurationNS NanoSecond
	Id         ScopeId
	Location   string
	Data       string
}

// Scope is a parsed view of one scope occurrence plus the offsets a reader
// needs to descend into its children or skip to its next sibling in O(1)
// without touching any bytes in between (§3, §4.1 "why offset-based").
type Scope struct {
	Id                  ScopeId
	Record              Record
	ChildBeginPosition  int
	ChildEndPosition    int
	NextSiblingPosition int
}

// clampData truncates s to at most maxDataLen bytes, backing off to the
// nearest earlier UTF-8 rune boundary rather than splitting a multi-byte
// sequence (§4.1).
func clampData(s string) string {
	if len(s) <= maxDataLen {
		return s
	}
	cut := maxDataLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Writer appends scope-begin/scope-end frames to a growable byte buffer. It
// owns no synchronization: one Writer belongs to exactly one recorder
// (§4.2, §5 "hot path concurrency").
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with buf as initial backing storage (len 0,
// whatever capacity buf carries); passing a reused buffer across frames
// avoids repeated allocation on the hot path.
func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf[:0]}
}

// Bytes returns the accumulated stream so far. The returned slice aliases
// the Writer's internal buffer and must not be retained across a Reset.
func (w *Writer) Bytes() []byte { return w.buf }

// Len is the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// Reset empties the buffer, keeping its capacity for reuse.
func (w *Writer) Reset() { w.buf = w.buf[:0] }

// Take hands the accumulated buffer to the caller and starts a fresh empty
// one backed by newBuf (used at the depth-zero flush point, §4.2 step 5,
// so the just-published bytes are not concurrently mutated by the next
// scope while a reporter callback still holds them).
func (w *Writer) Take(newBuf []byte) []byte {
	out := w.buf
	w.buf = newBuf[:0]
	return out
}

// BeginScope appends a scope-begin frame and returns the offset of the
// scope_size placeholder, to be passed back to EndScope. data is clamped to
// 127 bytes on a UTF-8 boundary (§4.1).
func (w *Writer) BeginScope(id ScopeId, startNS NanoSecond, data string) (offset int) {
	data = clampData(data)

	w.buf = append(w.buf, sentinelBegin)
	w.buf = appendU32(w.buf, uint32(id))
	w.buf = appendI64(w.buf, startNS)
	w.buf = append(w.buf, byte(len(data)))
	w.buf = append(w.buf, data...)

	offset = len(w.buf)
	w.buf = appendU64(w.buf, sizePlaceholder)
	return offset
}

// EndScope patches the scope_size placeholder at offset and appends the
// scope-end frame. stopNS must be >= the corresponding BeginScope's startNS;
// the codec does not itself check this (the reader does, on parse).
func (w *Writer) EndScope(offset int, stopNS NanoSecond) {
	childBytes := uint64(len(w.buf) - (offset + 8))
	binary.LittleEndian.PutUint64(w.buf[offset:offset+8], childBytes)
	w.buf = append(w.buf, sentinelEnd)
	w.buf = appendI64(w.buf, stopNS)
}

func appendU32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendU64(b []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendI64(b []byte, v int64) []byte {
	return appendU64(b, uint64(v))
}
