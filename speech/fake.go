package speech

import (
	"context"
	"sync"
)

// FakeRecognizer is a scripted recognizer for tests and headless mode. Text
// can be queued before Start (the cycle then ends by itself) or pushed into
// the live stream with Say and Interim.
type FakeRecognizer struct {
	mu          sync.Mutex
	unavailable error
	startErr    error
	script      []Result
	scriptErr   error
	current     *fakeStream
	languages   []string
}

func NewFakeRecognizer() *FakeRecognizer {
	return &FakeRecognizer{}
}

func (f *FakeRecognizer) Name() string { return "fake" }

func (f *FakeRecognizer) Available() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unavailable
}

func (f *FakeRecognizer) SetUnavailable(err error) {
	f.mu.Lock()
	f.unavailable = err
	f.mu.Unlock()
}

func (f *FakeRecognizer) FailNextStart(err error) {
	f.mu.Lock()
	f.startErr = err
	f.mu.Unlock()
}

// Script queues final segments for the next cycle, which ends after
// delivering them. A non-nil err ends it as a recognizer failure.
func (f *FakeRecognizer) Script(err error, segments ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.script = nil
	for _, s := range segments {
		f.script = append(f.script, Result{Text: s, Final: true})
	}
	f.scriptErr = err
	if err != nil && len(segments) == 0 {
		f.script = []Result{}
	}
}

func (f *FakeRecognizer) Start(_ context.Context, lang string) (Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.startErr != nil {
		err := f.startErr
		f.startErr = nil
		return nil, err
	}
	f.languages = append(f.languages, lang)

	st := &fakeStream{results: make(chan Result, 64)}
	if f.script != nil {
		for _, r := range f.script {
			st.results <- r
		}
		st.err = f.scriptErr
		st.closed = true
		close(st.results)
		f.script, f.scriptErr = nil, nil
		return st, nil
	}
	f.current = st
	return st, nil
}

// Say delivers a final segment to the live cycle. It reports false when no
// cycle is listening.
func (f *FakeRecognizer) Say(text string) bool {
	return f.push(Result{Text: text, Final: true})
}

func (f *FakeRecognizer) Interim(text string) bool {
	return f.push(Result{Text: text})
}

// Fail ends the live cycle with err.
func (f *FakeRecognizer) Fail(err error) bool {
	f.mu.Lock()
	st := f.current
	f.mu.Unlock()
	if st == nil {
		return false
	}
	return st.finish(err)
}

// Languages lists the language of every started cycle, oldest first.
func (f *FakeRecognizer) Languages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.languages...)
}

func (f *FakeRecognizer) Close() error {
	f.mu.Lock()
	st := f.current
	f.current = nil
	f.mu.Unlock()
	if st != nil {
		st.finish(nil)
	}
	return nil
}

func (f *FakeRecognizer) push(r Result) bool {
	f.mu.Lock()
	st := f.current
	f.mu.Unlock()
	if st == nil {
		return false
	}
	return st.send(r)
}

type fakeStream struct {
	mu      sync.Mutex
	results chan Result
	err     error
	closed  bool
}

func (s *fakeStream) Results() <-chan Result { return s.results }

func (s *fakeStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *fakeStream) Stop() { s.finish(nil) }

func (s *fakeStream) send(r Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.results <- r
	return true
}

func (s *fakeStream) finish(err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	s.err = err
	close(s.results)
	return true
}
