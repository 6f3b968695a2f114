// Package speech owns the speech-capture lifecycle: one Session wrapping a
// pluggable Recognizer, with typed events for the UI.
package speech

import (
	"context"
	"errors"
)

// Result is one piece of recognized text. Interim results may be revised;
// final results are settled segments.
type Result struct {
	Text  string
	Final bool
}

// Stream is one listening cycle of a Recognizer. Results is closed when the
// cycle ends, either on Stop or on the recognizer's own decision (trailing
// silence, failure). Err is valid once Results is closed.
type Stream interface {
	Results() <-chan Result
	Err() error
	Stop()
}

type Recognizer interface {
	Name() string
	// Available reports why the capability cannot be used, or nil.
	Available() error
	Start(ctx context.Context, lang string) (Stream, error)
	Close() error
}

// Unavailable is the recognizer used when speech capture is switched off.
type Unavailable struct {
	Reason string
}

func (u Unavailable) Name() string { return "none" }

func (u Unavailable) Available() error {
	if u.Reason == "" {
		return errors.New("speech capture disabled")
	}
	return errors.New(u.Reason)
}

func (u Unavailable) Start(context.Context, string) (Stream, error) { return nil, u.Available() }

func (u Unavailable) Close() error { return nil }
