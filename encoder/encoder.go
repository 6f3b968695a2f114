// Package encoder turns 16 kHz mono PCM into upload-ready audio files.
package encoder

import (
	"fmt"
	"sync"
	"time"
)

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

const (
	FormatWAV  = "wav"
	FormatFLAC = "flac"
)

type Encoder interface {
	Format() string
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
	EncodeTime() time.Duration
}

func New(format string) (Encoder, error) {
	switch format {
	case FormatWAV, "":
		return NewWav(), nil
	case FormatFLAC:
		return NewFlac()
	default:
		return nil, fmt.Errorf("unknown audio format %q", format)
	}
}

// Encode runs samples through a fresh encoder of the given format in
// BlockSize blocks and returns the finished file.
func Encode(format string, samples []int16) (Encoder, error) {
	enc, err := New(format)
	if err != nil {
		return nil, err
	}
	for i := 0; i < len(samples); i += BlockSize {
		end := min(i+BlockSize, len(samples))
		start := time.Now()
		if err := enc.EncodeBlock(samples[i:end]); err != nil {
			return nil, err
		}
		if t, ok := enc.(interface{ addEncodeTime(time.Duration) }); ok {
			t.addEncodeTime(time.Since(start))
		}
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return enc, nil
}

// Duration is the audio length of n frames.
func Duration(frames uint64) time.Duration {
	return time.Duration(frames) * time.Second / SampleRate
}

type encodeTimer struct {
	mu sync.Mutex
	d  time.Duration
}

func (t *encodeTimer) addEncodeTime(d time.Duration) {
	t.mu.Lock()
	t.d += d
	t.mu.Unlock()
}

func (t *encodeTimer) EncodeTime() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.d
}
