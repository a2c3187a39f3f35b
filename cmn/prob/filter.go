// Package prob implements a small probabilistic set-membership filter used
// as a fast pre-check in front of mutex/rwmutex-protected maps: a "probably
// not present" answer lets a caller skip the write lock entirely, the way
// aistore's own cmn/prob backs its dedup fast paths.
/*
 * Copyright (c) 2024, scomesh contributors. All rights reserved.
 */
package prob

import (
	cuckoo "github.com/seiflotfy/cuckoofilter"
)

// Filter wraps a cuckoo filter with a capacity that grows by rebuilding once
// the load factor gets too high, since cuckoofilter.Filter has no native
// resize and the registry's scope count is unbounded over a long-running
// process. keys retains every inserted key so a rebuild can replay them all
// into the new, larger filter: without this, a grow would silently drop
// previously-added keys and MaybeContains could wrongly report "never seen"
// for something that was, breaking the "false means definitely absent"
// contract below.
type Filter struct {
	cf       *cuckoo.Filter
	keys     [][]byte
	capacity uint
}

// New creates a Filter sized for roughly capacity distinct items before a
// rebuild is needed.
func New(capacity uint) *Filter {
	if capacity == 0 {
		capacity = 1024
	}
	return &Filter{cf: cuckoo.NewFilter(capacity), capacity: capacity}
}

// MaybeContains reports whether key was possibly inserted before. A false
// result is a hard guarantee of absence; a true result may be a false
// positive and must be confirmed against the authoritative map.
func (f *Filter) MaybeContains(key []byte) bool {
	return f.cf.Lookup(key)
}

// Add records key, rebuilding at 2x capacity if the underlying filter is
// saturated (InsertUnique returning false for a key that Lookup still does
// not find indicates this), replaying every
// previously-added key into the grown filter so none of them silently stop
// being "seen".
func (f *Filter) Add(key []byte) {
	if f.cf.InsertUnique(key) {
		f.keys = append(f.keys, append([]byte(nil), key...))
		return
	}
	if f.cf.Lookup(key) {
		// InsertUnique also refuses a key that is already present (or
		// collides with one); that is not saturation, so no rebuild.
		f.keys = append(f.keys, append([]byte(nil), key...))
		return
	}
	f.capacity *= 2
	grown := cuckoo.NewFilter(f.capacity)
	for _, k := range f.keys {
		grown.InsertUnique(k)
	}
	grown.InsertUnique(key)
	f.cf = grown
	f.keys = append(f.keys, append([]byte(nil), key...))
}

// Reset clears the filter, for use when the authoritative map it guards is
// cleared.
func (f *Filter) Reset() {
	f.cf = cuckoo.NewFilter(f.capacity)
	f.keys = nil
}

func (f *Filter) Count() int { return len(f.keys) }
