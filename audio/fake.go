package audio

import (
	"fmt"
	"os"
	"sync"
	"time"
)

const (
	fakeFrameSize     = 1024
	fakeBytesPerFrame = 2 // 16-bit mono
	wavHeaderSize     = 44
)

// FakeContext replays fixed PCM as if it came from a microphone, followed
// by endless silence until the capture is stopped.
type FakeContext struct {
	pcm      []byte
	realtime bool
}

func NewFakeContext(pcm []byte, realtime bool) *FakeContext {
	return &FakeContext{pcm: pcm, realtime: realtime}
}

// NewFakeContextFromWAV loads a 16 kHz mono 16-bit WAV file.
func NewFakeContextFromWAV(path string, realtime bool) (*FakeContext, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) < wavHeaderSize || string(data[:4]) != "RIFF" {
		return nil, fmt.Errorf("%s: not a WAV file", path)
	}
	return NewFakeContext(data[wavHeaderSize:], realtime), nil
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "Fake microphone"}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	rate := config.SampleRate
	if rate == 0 {
		rate = 16000
	}
	return &FakeCapture{pcm: f.pcm, realtime: f.realtime, rate: rate}, nil
}

type FakeCapture struct {
	pcm      []byte
	realtime bool
	rate     uint32

	mu       sync.Mutex
	cb       DataCallback
	stopCh   chan struct{}
	feedDone chan struct{}
}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) callback() DataCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

func (f *FakeCapture) feedChunk(cb DataCallback, pos, chunkBytes int) int {
	end := min(pos+chunkBytes, len(f.pcm))
	chunk := make([]byte, end-pos)
	copy(chunk, f.pcm[pos:end])
	cb(chunk, uint32(len(chunk)/fakeBytesPerFrame))
	return end
}

// Start feeds the recording. Without realtime pacing the whole recording
// is delivered before Start returns and silence follows every millisecond.
func (f *FakeCapture) Start() error {
	f.mu.Lock()
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})
	stopCh, feedDone := f.stopCh, f.feedDone
	f.mu.Unlock()

	chunkBytes := fakeFrameSize * fakeBytesPerFrame
	interval := time.Millisecond
	pos := 0
	if f.realtime {
		interval = time.Duration(fakeFrameSize) * time.Second / time.Duration(f.rate)
	} else if cb := f.callback(); cb != nil {
		for pos < len(f.pcm) {
			pos = f.feedChunk(cb, pos, chunkBytes)
		}
	}

	go func() {
		defer close(feedDone)
		silence := make([]byte, chunkBytes)
		for {
			select {
			case <-stopCh:
				return
			case <-time.After(interval):
			}
			cb := f.callback()
			if cb == nil {
				continue
			}
			if pos < len(f.pcm) {
				pos = f.feedChunk(cb, pos, chunkBytes)
			} else {
				cb(silence, fakeFrameSize)
			}
		}
	}()
	return nil
}

func (f *FakeCapture) Stop() {
	f.mu.Lock()
	stopCh, feedDone := f.stopCh, f.feedDone
	if stopCh != nil {
		select {
		case <-stopCh:
		default:
			close(stopCh)
		}
	}
	f.mu.Unlock()
	if feedDone != nil {
		<-feedDone
	}
}

func (f *FakeCapture) Close() { f.Stop() }
