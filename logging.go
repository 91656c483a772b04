package debra

import (
	"io"
	"os"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// NewLogger builds a logiface logger backed by stumpy, the JSON "model"
// logger for the logiface ecosystem. Use it with WithLogger to give a
// Manager structured logging; omitting WithLogger leaves the Manager with
// a no-op logger (newNoopLogger below), so logging is always optional.
func NewLogger(w io.Writer, opts ...stumpy.Option) *logiface.Logger[*stumpy.Event] {
	if w == nil {
		w = os.Stderr
	}
	allOpts := make([]stumpy.Option, 0, len(opts)+1)
	allOpts = append(allOpts, stumpy.WithWriter(w))
	allOpts = append(allOpts, opts...)
	return stumpy.L.New(stumpy.L.WithStumpy(allOpts...))
}

// newNoopLogger returns a logiface logger configured with no backend
// options, which logiface treats as disabled (every Build call returns a
// disabled Builder that discards fields and never writes). This is the
// Manager's default so that never calling WithLogger is always safe.
func newNoopLogger() *logiface.Logger[*stumpy.Event] {
	return stumpy.L.New()
}
