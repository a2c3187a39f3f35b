//go:build debug

package debug

import "fmt"

func ON() bool { return true }

func Assert(cond bool, args ...any) {
	if !cond {
		panic(fmt.Sprintln(append([]any{"assertion failed:"}, args...)...))
	}
}

func Assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("assertion failed: "+format, args...))
	}
}

func AssertNoErr(err error) {
	if err != nil {
		panic(fmt.Sprintf("assertion failed: unexpected error: %v", err))
	}
}

func AssertFunc(f func() bool, args ...any) {
	Assert(f(), args...)
}

func AssertOwnerThread(owner, current uint64) {
	Assertf(owner == current, "scope handle used on goroutine %d, opened on %d", current, owner)
}
