// Package registry implements the scope registry (§4.3): a process-wide,
// read-mostly, two-way mapping between ScopeId and ScopeDetails, plus the
// monotonic ScopeId allocator (§4.8). Modeled on aistore's shared,
// reader/writer-locked registries (cmn/cos, cluster/bck-style) guarded by
// sync.RWMutex so visualizer-style readers never block recording threads
// for long.
/*
 * Copyright (c) 2024, scomesh contributors. All rights reserved.
 */
package registry

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/OneOfOne/xxhash"
	"golang.org/x/sync/singleflight"

	"github.com/scomesh/puffin/cmn/prob"
	"github.com/scomesh/puffin/stream"
)

// ScopeId re-exports stream.ScopeId so callers outside this package never
// need to import stream just to hold an id.
type ScopeId = stream.ScopeId

// ScopeDetails is the static-ish metadata recorded once per registration
// site (§3). Created once, never mutated thereafter.
type ScopeDetails struct {
	ScopeName string // may be empty
	Function  string
	File      string // shortened path
	Line      uint32
	Location  string // "file:line"
}

func newDetails(scopeName, function, file string, line uint32) ScopeDetails {
	return ScopeDetails{
		ScopeName: scopeName,
		Function:  function,
		File:      file,
		Line:      line,
		Location:  fmt.Sprintf("%s:%d", file, line),
	}
}

var idCounter uint32 // atomic, monotonic, starts allocating at 1

// NextScopeId allocates and returns the next process-wide unique ScopeId.
// Sequentially consistent (§5): a single atomic counter.
func NextScopeId() ScopeId {
	return ScopeId(atomic.AddUint32(&idCounter, 1))
}

// Collection is the shared ScopeId<->ScopeDetails registry (§4.3). The zero
// value is not usable; construct with New.
type Collection struct {
	mu     sync.RWMutex
	byId   map[ScopeId]ScopeDetails
	byName map[string][]ScopeId

	seen *prob.Filter // probabilistic "have we already registered this name" prefilter
	sf   singleflight.Group
}

// New returns an empty Collection sized for an expected number of distinct
// registration sites.
func New(expectedSites int) *Collection {
	if expectedSites <= 0 {
		expectedSites = 256
	}
	return &Collection{
		byId:   make(map[ScopeId]ScopeDetails, expectedSites),
		byName: make(map[string][]ScopeId, expectedSites),
		seen:   prob.New(uint(expectedSites) * 2),
	}
}

// Insert idempotently records details for id, keyed by ScopeId (§3 invariant:
// "A ScopeDetails entry for a given ScopeId is written once and never
// mutated"). Calling Insert twice for the same id is a no-op on the second
// call (the caller is expected never to do this; it is not an error because
// thread recorders flush pending registrations independently and a reporter
// replaying from more than one source could double-insert after a restart).
func (c *Collection) Insert(id ScopeId, d ScopeDetails) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.byId[id]; exists {
		return
	}
	c.byId[id] = d
	if d.ScopeName != "" {
		c.byName[d.ScopeName] = append(c.byName[d.ScopeName], id)
		c.seen.Add(hashName(d.ScopeName))
	}
}

// Details returns the ScopeDetails for id, and whether it was found (used
// by tooltips / the merger to resolve location and name).
func (c *Collection) Details(id ScopeId) (ScopeDetails, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.byId[id]
	return d, ok
}

// ByName returns every ScopeId registered under name (distinct sites sharing
// a name each keep their own id, §9 Open Question (b)).
func (c *Collection) ByName(name string) []ScopeId {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := c.byName[name]
	out := make([]ScopeId, len(ids))
	copy(out, ids)
	return out
}

// MaybeRegistered is a cheap probabilistic check under the read lock: false
// is a hard guarantee the name was never registered; true may be a false
// positive. Used by instrumentation helpers that want to skip a registry
// round-trip for names they already know about.
func (c *Collection) MaybeRegistered(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.seen.MaybeContains(hashName(name))
}

// Snapshot returns every known ScopeId, used to implement "emit a full
// snapshot" for late-registering sinks (§4.4).
func (c *Collection) Snapshot() []ScopeId {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]ScopeId, 0, len(c.byId))
	for id := range c.byId {
		ids = append(ids, id)
	}
	return ids
}

// Len reports the number of distinct registered sites.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byId)
}

// RegisterFunctionScope allocates a new ScopeId for a function-level
// instrumentation site and returns it along with its details, ready to be
// queued on a recorder, handed to the profiler at the next depth-zero flush
// and inserted into the Collection by the profiler's next NewFrame (§4.2).
// It does not itself mutate the Collection: allocation and publication are
// deliberately separate so the hot path never takes the registry's lock.
func RegisterFunctionScope(function, file string, line uint32) (ScopeId, ScopeDetails) {
	id := NextScopeId()
	return id, newDetails("", function, file, line)
}

// RegisterScope is RegisterFunctionScope's named-scope counterpart.
func RegisterScope(scopeName, function, file string, line uint32) (ScopeId, ScopeDetails) {
	id := NextScopeId()
	return id, newDetails(scopeName, function, file, line)
}

// RegisterDynamic is an escape hatch for call sites that cannot cache a
// ScopeId in a static per-site slot (e.g. a scope name built at runtime
// from user data). Concurrent calls with the same key collapse onto one
// singleflight.Group call so a registration burst under a name never
// allocates more than one id for the group in flight, then Insert publishes
// it; subsequent distinct calls still get their own id per §9 Open
// Question (b) semantics once the in-flight call has resolved.
func (c *Collection) RegisterDynamic(key, scopeName, function, file string, line uint32) (ScopeId, error) {
	v, err, _ := c.sf.Do(key, func() (any, error) {
		id, details := RegisterScope(scopeName, function, file, line)
		c.Insert(id, details)
		return id, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(ScopeId), nil
}

func hashName(name string) []byte {
	h := xxhash.ChecksumString64(name)
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(h >> (8 * i))
	}
	return b
}
