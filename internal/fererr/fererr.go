// Package fererr defines the two error shapes Fer surfaces to callers:
// compile-time diagnostics accumulated by the compiler, and a runtime
// error carrying a call-stack trace.
package fererr

import (
	"fmt"
	"strings"
)

// CompileError wraps every diagnostic the compiler accumulated in one
// pass: panic-mode recovery means there can be several.
type CompileError struct {
	Messages []string
}

func (e *CompileError) Error() string {
	return strings.Join(e.Messages, "\n")
}

// Frame is one entry of a runtime stack trace: the function name (or
// "script" for the top-level) and the source line active in that frame
// when the error was raised.
type Frame struct {
	Name string
	Line int
}

// RuntimeError is raised by the VM's dispatch loop. Error() renders the
// message, then a backtrace with the most recent call first.
type RuntimeError struct {
	Message string
	Frames  []Frame
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	for i := len(e.Frames) - 1; i >= 0; i-- {
		f := e.Frames[i]
		fmt.Fprintf(&b, "\n[line %d] in %s", f.Line, f.Name)
	}
	return b.String()
}

// New builds a RuntimeError already carrying the given backtrace.
func New(message string, frames []Frame) *RuntimeError {
	return &RuntimeError{Message: message, Frames: frames}
}
