package cdc

import (
	"runtime"

	"github.com/ardnew/cdcserial/device/hal"
)

// Thread is the execution context of an ordinary goroutine: it may always
// wait, and waits by yielding to the Go scheduler.
var Thread hal.ExecContext = threadContext{}

type threadContext struct{}

func (threadContext) InInterrupt() bool { return false }
func (threadContext) Yield()            { runtime.Gosched() }

// Interrupt is the execution context of code that must never wait.
var Interrupt hal.ExecContext = interruptContext{}

type interruptContext struct{}

func (interruptContext) InInterrupt() bool { return true }
func (interruptContext) Yield()            {}
