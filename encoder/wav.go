package encoder

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sync"
)

const WAVHeaderSize = 44

// WavEncoder writes LINEAR16 PCM with a canonical 44-byte RIFF header, the
// format the backend transcriber expects by default.
type WavEncoder struct {
	encodeTimer
	mu          sync.Mutex
	pcm         bytes.Buffer
	out         []byte
	totalFrames uint64
	closed      bool
}

func NewWav() *WavEncoder {
	return &WavEncoder{}
}

func (e *WavEncoder) Format() string { return FormatWAV }

func (e *WavEncoder) EncodeBlock(block []int16) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errors.New("wav encoder closed")
	}
	binary.Write(&e.pcm, binary.LittleEndian, block)
	e.totalFrames += uint64(len(block))
	return nil
}

func (e *WavEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.out = append(WAVHeader(uint32(e.pcm.Len())), e.pcm.Bytes()...)
	return nil
}

// Bytes is the complete file once Close has been called.
func (e *WavEncoder) Bytes() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.out
}

func (e *WavEncoder) TotalFrames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalFrames
}

// WAVHeader returns the RIFF header for dataSize bytes of 16 kHz mono PCM.
func WAVHeader(dataSize uint32) []byte {
	const blockAlign = Channels * BitsPerSample / 8
	h := make([]byte, WAVHeaderSize)
	copy(h[0:], "RIFF")
	binary.LittleEndian.PutUint32(h[4:], 36+dataSize)
	copy(h[8:], "WAVE")
	copy(h[12:], "fmt ")
	binary.LittleEndian.PutUint32(h[16:], 16)
	binary.LittleEndian.PutUint16(h[20:], 1) // PCM
	binary.LittleEndian.PutUint16(h[22:], Channels)
	binary.LittleEndian.PutUint32(h[24:], SampleRate)
	binary.LittleEndian.PutUint32(h[28:], SampleRate*blockAlign)
	binary.LittleEndian.PutUint16(h[32:], blockAlign)
	binary.LittleEndian.PutUint16(h[34:], BitsPerSample)
	copy(h[36:], "data")
	binary.LittleEndian.PutUint32(h[40:], dataSize)
	return h
}
