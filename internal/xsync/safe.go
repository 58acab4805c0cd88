// Package xsync provides the two concurrency primitives the scheduler's
// background workers are built on: a panic-safe goroutine launcher and
// a semaphore-style concurrency limiter. Both are adapted from
// Tangerg/lynx's pkg/safe and pkg/sync packages — the teacher's own
// house style for spawning goroutines it does not want to crash the
// process.
package xsync

import (
	"fmt"
	"runtime/debug"
)

// PanicError wraps a recovered panic with its stack trace, so a panic
// inside a background worker surfaces as an ordinary error instead of
// taking down the process.
type PanicError struct {
	Info  any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v\n%s", e.Info, e.Stack)
}

// Go launches fn in a new goroutine with panic recovery. Any recovered
// panic is reported to each of panicFns (if any); with none given, the
// panic is otherwise silently contained — callers that need to observe
// it should pass a handler.
func Go(fn func(), panicFns ...func(error)) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				err := &PanicError{Info: r, Stack: debug.Stack()}
				for _, h := range panicFns {
					h(err)
				}
			}
		}()
		fn()
	}()
}
