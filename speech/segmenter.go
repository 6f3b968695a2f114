package speech

import (
	"math"
	"time"
)

const (
	tickInterval    = 100 * time.Millisecond
	pauseCut        = 800 * time.Millisecond
	endSilence      = 2 * time.Second
	noSpeechTimeout = 8 * time.Second
	maxSegment      = 30 * time.Second
	preRoll         = 300 * time.Millisecond

	// speechRMS is the 16-bit RMS level above which a tick counts as voiced.
	speechRMS = 500
)

type SegmentEvent int

const (
	SegmentNone    SegmentEvent = iota
	SegmentCut                  // a pause closed an utterance
	SegmentEnd                  // trailing silence after speech
	SegmentTimeout              // nothing was said at all
)

// segmenter turns a stream of voiced/unvoiced ticks into utterance
// boundaries. One tick covers tickInterval of audio.
type segmenter struct {
	pauseTicks   int
	endTicks     int
	timeoutTicks int
	maxTicks     int

	ticks     int
	silentRun int
	segTicks  int
	inSpeech  bool
	spoke     bool
}

func newSegmenter() *segmenter {
	return &segmenter{
		pauseTicks:   int(pauseCut / tickInterval),
		endTicks:     int(endSilence / tickInterval),
		timeoutTicks: int(noSpeechTimeout / tickInterval),
		maxTicks:     int(maxSegment / tickInterval),
	}
}

func (s *segmenter) Tick(voiced bool) SegmentEvent {
	s.ticks++
	if voiced {
		s.silentRun = 0
		s.inSpeech = true
		s.spoke = true
	} else {
		s.silentRun++
	}
	if s.inSpeech {
		s.segTicks++
	}

	if s.inSpeech && (s.silentRun >= s.pauseTicks || s.segTicks >= s.maxTicks) {
		s.inSpeech = false
		s.segTicks = 0
		return SegmentCut
	}
	if !s.spoke && s.ticks >= s.timeoutTicks {
		return SegmentTimeout
	}
	if s.spoke && !s.inSpeech && s.silentRun >= s.endTicks {
		return SegmentEnd
	}
	return SegmentNone
}

// InSpeech reports whether an utterance is open.
func (s *segmenter) InSpeech() bool { return s.inSpeech }

func rms(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range samples {
		f := float64(v)
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(samples)))
}
