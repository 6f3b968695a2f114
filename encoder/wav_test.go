package encoder

import (
	"encoding/binary"
	"testing"
	"time"
)

func TestWavHeader(t *testing.T) {
	h := WAVHeader(3200)
	if len(h) != WAVHeaderSize {
		t.Fatalf("header len = %d", len(h))
	}
	if string(h[0:4]) != "RIFF" || string(h[8:12]) != "WAVE" || string(h[36:40]) != "data" {
		t.Fatalf("bad chunk ids: %q", h)
	}
	if got := binary.LittleEndian.Uint32(h[4:]); got != 36+3200 {
		t.Errorf("riff size = %d", got)
	}
	if got := binary.LittleEndian.Uint32(h[24:]); got != SampleRate {
		t.Errorf("sample rate = %d", got)
	}
	if got := binary.LittleEndian.Uint32(h[28:]); got != SampleRate*2 {
		t.Errorf("byte rate = %d", got)
	}
	if got := binary.LittleEndian.Uint32(h[40:]); got != 3200 {
		t.Errorf("data size = %d", got)
	}
}

func TestEncodeWav(t *testing.T) {
	samples := tone(BlockSize*2 + 10)
	enc, err := Encode(FormatWAV, samples)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	data := enc.Bytes()
	if len(data) != WAVHeaderSize+len(samples)*2 {
		t.Fatalf("len = %d, want %d", len(data), WAVHeaderSize+len(samples)*2)
	}
	if got := int16(binary.LittleEndian.Uint16(data[WAVHeaderSize+2:])); got != samples[1] {
		t.Errorf("sample[1] = %d, want %d", got, samples[1])
	}
	if enc.TotalFrames() != uint64(len(samples)) {
		t.Errorf("TotalFrames = %d", enc.TotalFrames())
	}
	if enc.Format() != FormatWAV {
		t.Errorf("Format = %q", enc.Format())
	}
}

func TestEncodeFlac(t *testing.T) {
	enc, err := Encode(FormatFLAC, tone(SampleRate/2))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(enc.Bytes()[:4]) != "fLaC" {
		t.Fatal("missing FLAC magic")
	}
}

func TestNewUnknownFormat(t *testing.T) {
	if _, err := New("mp3"); err == nil {
		t.Fatal("expected error for mp3")
	}
}

func TestWavWriteAfterClose(t *testing.T) {
	enc := NewWav()
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	if len(enc.Bytes()) != WAVHeaderSize {
		t.Errorf("empty wav len = %d", len(enc.Bytes()))
	}
	if err := enc.EncodeBlock([]int16{1}); err == nil {
		t.Error("expected error after close")
	}
}

func TestDuration(t *testing.T) {
	if got := Duration(SampleRate * 3 / 2); got != 1500*time.Millisecond {
		t.Errorf("Duration = %v", got)
	}
}
