package audio

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestIsBluetooth(t *testing.T) {
	cases := map[string]bool{
		"AirPods Pro":                true,
		"Jabra Evolve2 65":           true,
		"Built-in Audio Analog":      false,
		"USB Microphone":             false,
		"Headset (WH-1000XM4) BT":    true,
		"Monitor of Built-in Output": false,
	}
	for name, want := range cases {
		if got := IsBluetooth(name); got != want {
			t.Errorf("IsBluetooth(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestPickerKey(t *testing.T) {
	next, done, abort := pickerKey([]byte{0x1b, '[', 'B'}, 0, 3)
	if next != 1 || done || abort {
		t.Fatalf("down: %d %v %v", next, done, abort)
	}
	next, _, _ = pickerKey([]byte{0x1b, '[', 'A'}, 0, 3)
	if next != 0 {
		t.Fatalf("up at top moved to %d", next)
	}
	next, _, _ = pickerKey([]byte("j"), 2, 3)
	if next != 2 {
		t.Fatalf("down at bottom moved to %d", next)
	}
	if _, done, _ := pickerKey([]byte("\r"), 1, 3); !done {
		t.Fatal("enter should select")
	}
	if _, _, abort := pickerKey([]byte{3}, 1, 3); !abort {
		t.Fatal("ctrl+c should abort")
	}
}

func TestFakeCaptureDeliversPCMThenSilence(t *testing.T) {
	pcm := make([]byte, 4096)
	for i := 0; i < len(pcm); i += 2 {
		binary.LittleEndian.PutUint16(pcm[i:], 1000)
	}
	ctx := NewFakeContext(pcm, false)
	dev, err := ctx.NewCapture(nil, CaptureConfig{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var got []byte
	silent := make(chan struct{}, 1)
	dev.SetCallback(func(data []byte, _ uint32) {
		mu.Lock()
		defer mu.Unlock()
		if len(got) >= len(pcm) {
			select {
			case silent <- struct{}{}:
			default:
			}
			return
		}
		got = append(got, data...)
	})

	if err := dev.Start(); err != nil {
		t.Fatal(err)
	}
	select {
	case <-silent:
	case <-time.After(2 * time.Second):
		t.Fatal("no silence after recording")
	}
	dev.Stop()
	dev.Stop()

	mu.Lock()
	defer mu.Unlock()
	if string(got) != string(pcm) {
		t.Fatalf("got %d bytes, want the %d recorded bytes", len(got), len(pcm))
	}
}

func TestFakeContextFromWAV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.wav")
	data := append([]byte("RIFF"), make([]byte, 40)...)
	data = append(data, 1, 2, 3, 4)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	ctx, err := NewFakeContextFromWAV(path, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(ctx.pcm) != 4 {
		t.Fatalf("pcm len = %d", len(ctx.pcm))
	}

	bad := filepath.Join(dir, "b.wav")
	os.WriteFile(bad, []byte("nope"), 0o644)
	if _, err := NewFakeContextFromWAV(bad, false); err == nil {
		t.Fatal("expected error for non-wav")
	}

	dev, err := FindDevice(ctx, "fake")
	if err != nil || dev == nil || dev.ID != "fake" {
		t.Fatalf("FindDevice = %v, %v", dev, err)
	}
}
