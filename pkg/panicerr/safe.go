// Package panicerr converts panics raised inside callbacks into errors so one
// misbehaving subscriber or goroutine cannot take the process down.
package panicerr

import (
	"context"

	"github.com/sourcegraph/conc/panics"
)

// Call runs fn and returns the recovered panic, if any, as an error carrying
// the panic value and stack.
func Call(fn func()) error {
	var catcher panics.Catcher
	catcher.Try(fn)
	return catcher.Recovered().AsError()
}

// SafeContext wraps fn so that a panic is reported like any returned error.
func SafeContext(fn func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		var err error
		if perr := Call(func() { err = fn(ctx) }); perr != nil {
			return perr
		}
		return err
	}
}
