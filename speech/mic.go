package speech

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"shopvox/api"
	"shopvox/audio"
	"shopvox/encoder"
	"shopvox/log"
)

// Transcriber converts one encoded utterance to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename, lang string) (api.Transcription, error)
}

type MicConfig struct {
	// Open creates the platform audio context on first use.
	Open        func() (audio.Context, error)
	Device      *audio.DeviceInfo
	Format      string // encoder.FormatWAV or encoder.FormatFLAC
	Gain        int
	Transcriber Transcriber
}

// MicRecognizer records from the microphone, cuts the recording into
// utterances at pauses and has the backend transcribe each one in order.
type MicRecognizer struct {
	cfg MicConfig

	mu      sync.Mutex
	ctx     audio.Context
	openErr error
}

func NewMic(cfg MicConfig) *MicRecognizer {
	if cfg.Format == "" {
		cfg.Format = encoder.FormatWAV
	}
	return &MicRecognizer{cfg: cfg}
}

func (m *MicRecognizer) Name() string { return "mic" }

func (m *MicRecognizer) Available() error {
	actx, err := m.context()
	if err != nil {
		return err
	}
	devices, err := actx.Devices()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		return errors.New("no microphone found")
	}
	return nil
}

func (m *MicRecognizer) context() (audio.Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx != nil {
		return m.ctx, nil
	}
	if m.openErr != nil {
		return nil, m.openErr
	}
	if m.cfg.Open == nil {
		m.openErr = errors.New("no audio backend configured")
		return nil, m.openErr
	}
	actx, err := m.cfg.Open()
	if err != nil {
		m.openErr = err
		return nil, err
	}
	m.ctx = actx
	return actx, nil
}

func (m *MicRecognizer) Start(ctx context.Context, lang string) (Stream, error) {
	actx, err := m.context()
	if err != nil {
		return nil, err
	}
	capture, err := actx.NewCapture(m.cfg.Device, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
		Gain:       m.cfg.Gain,
	})
	if err != nil {
		return nil, &RecognitionError{Code: "device", Err: err}
	}

	st := &micStream{
		ctx:         ctx,
		lang:        lang,
		format:      m.cfg.Format,
		transcriber: m.cfg.Transcriber,
		capture:     capture,
		chunks:      make(chan []int16, 256),
		stop:        make(chan struct{}),
		segments:    make(chan []int16, 16),
		results:     make(chan Result, 16),
	}
	capture.SetCallback(st.feed)
	if err := capture.Start(); err != nil {
		capture.ClearCallback()
		capture.Close()
		return nil, &RecognitionError{Code: "device", Err: err}
	}

	go st.segment()
	go st.upload()
	return st, nil
}

func (m *MicRecognizer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx != nil {
		m.ctx.Close()
		m.ctx = nil
	}
	return nil
}

type micStream struct {
	ctx         context.Context
	lang        string
	format      string
	transcriber Transcriber
	capture     audio.CaptureDevice

	chunks   chan []int16
	stop     chan struct{}
	stopOnce sync.Once
	segments chan []int16
	results  chan Result

	mu  sync.Mutex
	err error
}

func (s *micStream) Results() <-chan Result { return s.results }

func (s *micStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *micStream) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *micStream) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	s.Stop()
}

// feed runs on the capture thread.
func (s *micStream) feed(data []byte, _ uint32) {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	select {
	case s.chunks <- samples:
	default:
		log.Warn("mic: capture buffer full, dropping audio")
	}
}

// segment groups captured audio into ticks, runs the pause detector and
// hands finished utterances to the upload worker.
func (s *micStream) segment() {
	defer close(s.segments)
	defer func() {
		s.capture.ClearCallback()
		s.capture.Stop()
		s.capture.Close()
	}()

	seg := newSegmenter()
	tickSamples := int(encoder.SampleRate * tickInterval / time.Second)
	preRollSamples := int(encoder.SampleRate * preRoll / time.Second)
	var pending, utterance []int16

	flush := func() {
		if len(utterance) > 0 {
			s.segments <- utterance
		}
		utterance = nil
	}

	for {
		select {
		case <-s.stop:
			if seg.InSpeech() {
				flush()
			}
			return
		case chunk := <-s.chunks:
			pending = append(pending, chunk...)
		}

		for len(pending) >= tickSamples {
			tick := pending[:tickSamples:tickSamples]
			pending = pending[tickSamples:]
			utterance = append(utterance, tick...)

			switch seg.Tick(rms(tick) >= speechRMS) {
			case SegmentCut:
				flush()
			case SegmentEnd:
				return
			case SegmentTimeout:
				log.Info("mic: no speech detected, ending session")
				return
			}
			if !seg.InSpeech() && len(utterance) > preRollSamples {
				utterance = append([]int16(nil), utterance[len(utterance)-preRollSamples:]...)
			}
		}
	}
}

// upload transcribes utterances one at a time so results keep speech order.
func (s *micStream) upload() {
	defer close(s.results)
	filename := "utterance." + s.format

	for samples := range s.segments {
		if s.Err() != nil {
			continue
		}
		enc, err := encoder.Encode(s.format, samples)
		if err != nil {
			s.fail(&RecognitionError{Code: "encode", Err: err})
			continue
		}
		data := enc.Bytes()
		t, err := s.transcriber.Transcribe(s.ctx, data, filename, s.lang)
		log.SegmentUpload(enc.Format(), encoder.Duration(enc.TotalFrames()), len(data), enc.EncodeTime(), len(t.Text), err)
		if err != nil {
			s.fail(&RecognitionError{Code: "transcribe", Err: fmt.Errorf("transcribe utterance: %w", err)})
			continue
		}
		if t.Text != "" {
			s.results <- Result{Text: t.Text, Final: true}
		}
	}
}
