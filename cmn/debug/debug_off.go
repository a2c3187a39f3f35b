//go:build !debug

// Package debug provides assertions that compile away entirely in
// non-debug builds. Build with -tags debug to enable them.
/*
 * Copyright (c) 2024, scomesh contributors. All rights reserved.
 */
package debug

func ON() bool { return false }

func Assert(_ bool, _ ...any)            {}
func Assertf(_ bool, _ string, _ ...any) {}
func AssertNoErr(_ error)                {}
func AssertFunc(_ func() bool, _ ...any) {}

// AssertOwnerThread is a no-op here; in debug builds it verifies the calling
// goroutine matches the one a scope handle was opened on (see cmn/goid).
func AssertOwnerThread(_, _ uint64) {}
