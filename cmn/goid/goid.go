// Package goid extracts the current goroutine's numeric id. Go gives
// goroutines no public identity and no thread-local storage; profiling
// libraries that need "one recorder per thread of execution" (§4.2) use the
// goroutine id as the closest stand-in, parsed once from the runtime's own
// stack dump the way several Go instrumentation/APM libraries do. This is
// the one place in the module that falls back to a raw standard-library
// technique rather than a third-party dependency: no library in the example
// pack provides goroutine-local storage, and the scope-recorder hot path
// (§4.2) cannot afford a channel round-trip to a owning goroutine instead.
/*
 * Copyright (c) 2024, scomesh contributors. All rights reserved.
 */
package goid

import (
	"bytes"
	"runtime"
	"strconv"
)

// Get parses and returns the id of the calling goroutine. It is not cheap
// (allocates a small stack buffer) and callers are expected to cache the
// result for the lifetime of their goroutine, not call this per scope.
func Get() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	// "goroutine 123 [running]:\n..."
	const prefix = "goroutine "
	if !bytes.HasPrefix(b, []byte(prefix)) {
		return 0
	}
	b = b[len(prefix):]
	i := bytes.IndexByte(b, ' ')
	if i < 0 {
		return 0
	}
	id, err := strconv.ParseUint(string(b[:i]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
