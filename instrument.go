package puffin

import (
	"runtime"
	"sync"

	"github.com/scomesh/puffin/cmn/debug"
	"github.com/scomesh/puffin/cmn/goid"
	"github.com/scomesh/puffin/recorder"
	"github.com/scomesh/puffin/registry"
)

// scopeHandle caches the ScopeId resolved for one call site, the Go
// stand-in for the macro-cached "process-static slot initialized with a
// thread-safe one-time initializer" (§6, §4.9): a sync.Once guarding
// the registry round-trip, keyed by program counter rather than by a
// compile-time-generated static, since Go has no procedural macros.
type scopeHandle struct {
	once sync.Once
	id   registry.ScopeId
}

var scopeHandles sync.Map // uintptr program counter -> *scopeHandle

func handleFor(pc uintptr, scopeName string) *scopeHandle {
	v, _ := scopeHandles.LoadOrStore(pc, &scopeHandle{})
	h := v.(*scopeHandle)
	h.once.Do(func() {
		function, file, line := "unknown", "unknown", 0
		if fn := runtime.FuncForPC(pc); fn != nil {
			function = fn.Name()
			file, line = fn.FileLine(pc)
		}
		id, details := registry.RegisterScope(scopeName, function, file, uint32(line))
		h.id = id
		recorder.Get().QueueRegistration(id, details)
	})
	return h
}

// ProfileFunction begins a scope named after the calling function and
// returns a closure that ends it. Call as `defer puffin.ProfileFunction()()`.
// data, if given, is attached to the scope; unlike the original macro form,
// it is always evaluated eagerly (Go has no compile-time macros to gate the
// evaluation on ScopesOn(), so callers with an expensive data string should
// check ScopesOn() themselves first).
func ProfileFunction(data ...string) func() {
	return profileAt(2, "", firstOrEmpty(data))
}

// ProfileScope is ProfileFunction's explicitly-named counterpart: `defer
// puffin.ProfileScope("parse")()`.
func ProfileScope(name string, data ...string) func() {
	return profileAt(2, name, firstOrEmpty(data))
}

func firstOrEmpty(data []string) string {
	if len(data) == 0 {
		return ""
	}
	return data[0]
}

func profileAt(skip int, scopeName, data string) func() {
	if !recorder.ScopesOn() {
		return noop
	}
	pc, _, _, ok := runtime.Caller(skip)
	if !ok {
		return noop
	}
	h := handleFor(pc, scopeName)

	rec := recorder.Get()
	owner := rec.GoroutineID()
	offset := rec.BeginScope(h.id, data)

	return func() {
		debug.AssertOwnerThread(owner, goid.Get())
		rec.EndScope(offset)
	}
}

func noop() {}
