package speech

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"shopvox/log"
)

// Events are invoked from the session's goroutine, never while the session
// lock is held. Nil callbacks are skipped.
type Events struct {
	OnSessionStart    func()
	OnInterim         func(text string)
	OnFinalTranscript func(text string)
	// OnSessionEnd receives the finalized segments joined by single spaces.
	// err is a *RecognitionError when the recognizer failed mid-session.
	OnSessionEnd func(transcript string, err error)
}

// Session is the single owner of the speech capability. Only one listening
// cycle may be active at a time, and each cycle starts with an empty
// accumulator.
type Session struct {
	rec    Recognizer
	events Events

	mu       sync.Mutex
	lang     string
	gen      uint64
	active   bool
	closed   bool
	stream   Stream
	segments []string
	done     chan struct{}
}

func NewSession(rec Recognizer, lang string, events Events) *Session {
	return &Session{rec: rec, lang: lang, events: events}
}

func (s *Session) Recognizer() string { return s.rec.Name() }

// Start begins listening in the currently selected language.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.active {
		s.mu.Unlock()
		return ErrAlreadyRecording
	}
	if err := s.rec.Available(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrCapabilityUnavailable, err)
	}

	s.segments = nil
	s.gen++
	gen, lang := s.gen, s.lang

	stream, err := s.rec.Start(ctx, lang)
	if err != nil {
		s.mu.Unlock()
		return asRecognitionError("start", err)
	}
	s.active = true
	s.stream = stream
	done := make(chan struct{})
	s.done = done
	s.mu.Unlock()

	log.RecordingStart(gen, s.rec.Name(), lang)
	if s.events.OnSessionStart != nil {
		s.events.OnSessionStart()
	}
	go s.run(gen, stream, done)
	return nil
}

// Stop asks the active cycle to end. Segments already captured are still
// delivered before OnSessionEnd fires.
func (s *Session) Stop() {
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()
	if stream != nil {
		stream.Stop()
	}
}

func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// SetLanguage applies from the next Start; a running cycle keeps its language.
func (s *Session) SetLanguage(code string) {
	s.mu.Lock()
	s.lang = code
	s.mu.Unlock()
}

func (s *Session) Language() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lang
}

// Close ends any active cycle, waits for its final event and releases the
// recognizer.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	stream, done := s.stream, s.done
	s.mu.Unlock()

	if stream != nil {
		stream.Stop()
	}
	if done != nil {
		<-done
	}
	return s.rec.Close()
}

func (s *Session) run(gen uint64, stream Stream, done chan struct{}) {
	defer close(done)

	for r := range stream.Results() {
		text := strings.TrimSpace(r.Text)
		if text == "" {
			continue
		}
		if !r.Final {
			if s.events.OnInterim != nil {
				s.events.OnInterim(text)
			}
			continue
		}

		s.mu.Lock()
		stale := s.gen != gen
		if !stale {
			s.segments = append(s.segments, text)
		}
		s.mu.Unlock()
		if stale {
			continue
		}

		log.TranscriptFinal(gen, text)
		if s.events.OnFinalTranscript != nil {
			s.events.OnFinalTranscript(text)
		}
	}

	var err error
	if serr := stream.Err(); serr != nil {
		err = asRecognitionError("recognizer", serr)
	}

	s.mu.Lock()
	transcript := JoinSegments(s.segments)
	segments := len(s.segments)
	s.stream = nil
	s.mu.Unlock()

	log.RecordingStop(gen, segments, len(transcript), err)
	if s.events.OnSessionEnd != nil {
		s.events.OnSessionEnd(transcript, err)
	}

	// Cleared only after the end event so a new cycle cannot begin before
	// listeners have seen this one finish.
	s.mu.Lock()
	if s.gen == gen {
		s.active = false
	}
	s.mu.Unlock()
}

// JoinSegments joins finalized segments in arrival order with single spaces.
func JoinSegments(segments []string) string {
	return strings.TrimSpace(strings.Join(segments, " "))
}
