package speech

import "testing"

func feedN(s *segmenter, voiced bool, n int) SegmentEvent {
	var last SegmentEvent
	for i := 0; i < n; i++ {
		last = s.Tick(voiced)
	}
	return last
}

func TestSegmentCutAfterPause(t *testing.T) {
	s := newSegmenter()
	feedN(s, true, 5)
	// 7 ticks of pause: utterance still open
	for i := 0; i < 7; i++ {
		if ev := s.Tick(false); ev != SegmentNone {
			t.Fatalf("unexpected event at pause tick %d: %d", i, ev)
		}
	}
	if ev := s.Tick(false); ev != SegmentCut {
		t.Fatalf("expected SegmentCut after 800ms pause, got %d", ev)
	}
	if s.InSpeech() {
		t.Fatal("utterance should be closed after cut")
	}
}

func TestSegmentEndAfterTrailingSilence(t *testing.T) {
	s := newSegmenter()
	feedN(s, true, 3)
	feedN(s, false, 8) // cut
	if ev := feedN(s, false, 11); ev != SegmentNone {
		t.Fatalf("ended too early: %d", ev)
	}
	if ev := s.Tick(false); ev != SegmentEnd {
		t.Fatalf("expected SegmentEnd after 2s of silence, got %d", ev)
	}
}

func TestSegmentSpeechResumesAfterCut(t *testing.T) {
	s := newSegmenter()
	feedN(s, true, 3)
	feedN(s, false, 10)
	feedN(s, true, 2)
	if !s.InSpeech() {
		t.Fatal("expected a new utterance")
	}
	for i := 0; i < 7; i++ {
		if ev := s.Tick(false); ev != SegmentNone {
			t.Fatalf("unexpected event %d", ev)
		}
	}
	if ev := s.Tick(false); ev != SegmentCut {
		t.Fatalf("expected second cut, got %d", ev)
	}
}

func TestSegmentTimeoutWithoutSpeech(t *testing.T) {
	s := newSegmenter()
	if ev := feedN(s, false, 79); ev != SegmentNone {
		t.Fatalf("timed out early: %d", ev)
	}
	if ev := s.Tick(false); ev != SegmentTimeout {
		t.Fatalf("expected SegmentTimeout at 8s, got %d", ev)
	}
}

func TestSegmentMaxLength(t *testing.T) {
	s := newSegmenter()
	if ev := feedN(s, true, 299); ev != SegmentNone {
		t.Fatalf("cut early: %d", ev)
	}
	if ev := s.Tick(true); ev != SegmentCut {
		t.Fatalf("expected forced cut at 30s, got %d", ev)
	}
}

func TestRMS(t *testing.T) {
	if rms(nil) != 0 {
		t.Fatal("rms of nothing should be 0")
	}
	if got := rms([]int16{1000, -1000, 1000, -1000}); got != 1000 {
		t.Fatalf("rms = %v, want 1000", got)
	}
}
