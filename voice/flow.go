// Package voice connects speech capture, transcript confirmation and
// command dispatch, and reports every outcome to a Sink.
package voice

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var (
	ErrNothingPending      = errors.New("no transcript is waiting for confirmation")
	ErrConfirmationPending = errors.New("confirm or cancel the last transcript first")
)

// Flow holds at most one transcript between recognition and the user's
// decision. It is either idle or pending; every decision returns it to idle.
type Flow struct {
	submit func(ctx context.Context, text string) error

	mu      sync.Mutex
	text    string
	pending bool
}

func NewFlow(submit func(ctx context.Context, text string) error) *Flow {
	return &Flow{submit: submit}
}

// Offer holds text for confirmation. It refuses blank text and does not
// replace a transcript that is already pending.
func (f *Flow) Offer(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending {
		return false
	}
	f.text, f.pending = text, true
	return true
}

func (f *Flow) Pending() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.text, f.pending
}

// Confirm submits the held transcript unchanged.
func (f *Flow) Confirm(ctx context.Context) error {
	text, ok := f.take()
	if !ok {
		return ErrNothingPending
	}
	return f.submit(ctx, text)
}

// Edit hands the held transcript back for manual correction.
func (f *Flow) Edit() (string, bool) {
	return f.take()
}

func (f *Flow) Cancel() bool {
	_, ok := f.take()
	return ok
}

func (f *Flow) take() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.pending {
		return "", false
	}
	text := f.text
	f.text, f.pending = "", false
	return text, true
}
