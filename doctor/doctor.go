// Package doctor runs the -doctor diagnostics: backend reachability,
// microphone capture through the server's transcriber, push-to-talk and
// clipboard export.
package doctor

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"shopvox/api"
	"shopvox/audio"
	"shopvox/clipboard"
	"shopvox/encoder"
	"shopvox/hotkey"
	"shopvox/shopping"
	"shopvox/shutdown"
)

type Options struct {
	Client    *api.Client
	OpenAudio func() (audio.Context, error)
	Device    string
	Format    string
	Language  string
	Record    time.Duration
	// Interactive asks the user to confirm the transcription.
	Interactive bool
	CheckHotkey bool
	In          io.Reader
	Out         io.Writer
}

type check struct {
	name string
	run  func(ctx context.Context, o *Options) bool
}

// Run executes every check and returns an exit code (0 = all pass).
// Later checks are skipped once the backend is unreachable.
func Run(ctx context.Context, o Options) int {
	if o.Record <= 0 {
		o.Record = 3 * time.Second
	}
	if o.Format == "" {
		o.Format = encoder.FormatWAV
	}
	if o.Interactive {
		resetTerminal()
		exitOnInterrupt(o.Out)
	}

	checks := []check{
		{"Backend", checkBackend},
		{"Microphone and transcription", checkMic},
		{"Clipboard export", checkClipboard},
	}
	if o.CheckHotkey {
		checks = append(checks, check{"Push-to-talk hotkey", checkHotkey})
	}

	fmt.Fprintln(o.Out, "shopvox doctor - system diagnostics")
	fmt.Fprintln(o.Out, "===================================")

	allPass := true
	for i, c := range checks {
		fmt.Fprintln(o.Out)
		fmt.Fprintf(o.Out, "[%d/%d] %s\n", i+1, len(checks), c.name)
		if !c.run(ctx, &o) {
			allPass = false
			if i == 0 {
				fmt.Fprintln(o.Out, "  Skipping remaining checks: the backend is required.")
				break
			}
		}
	}

	fmt.Fprintln(o.Out)
	if allPass {
		fmt.Fprintln(o.Out, "All checks passed!")
		return 0
	}
	fmt.Fprintln(o.Out, "Some checks failed. See details above.")
	return 1
}

// exitOnInterrupt ends the process on a signal. Prompts block on stdin,
// where context cancellation cannot reach them.
func exitOnInterrupt(out io.Writer) {
	ch := make(chan os.Signal, 1)
	shutdown.Notify(ch)
	go func() {
		<-ch
		resetTerminal()
		fmt.Fprintln(out, "\nInterrupted")
		os.Exit(1)
	}()
}

func checkBackend(ctx context.Context, o *Options) bool {
	fmt.Fprintf(o.Out, "  Server: %s\n", o.Client.BaseURL())

	items, err := o.Client.List(ctx)
	if err != nil {
		fmt.Fprintf(o.Out, "  FAIL: cannot list items: %v\n", err)
		return false
	}
	fmt.Fprintf(o.Out, "  PASS: list has %d item(s)\n", len(items))

	langs, err := o.Client.Languages(ctx)
	if err != nil {
		fmt.Fprintf(o.Out, "  FAIL: cannot load languages: %v\n", err)
		return false
	}
	codes := make([]string, 0, len(langs))
	for code := range langs {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	fmt.Fprintf(o.Out, "  PASS: %d language(s): %s\n", len(codes), strings.Join(codes, ", "))
	if o.Language != "" {
		if _, ok := langs[o.Language]; !ok {
			fmt.Fprintf(o.Out, "  Warning: configured language %s is not offered by the server\n", o.Language)
		}
	}
	return true
}

func checkMic(ctx context.Context, o *Options) bool {
	if o.OpenAudio == nil {
		fmt.Fprintln(o.Out, "  SKIP: voice input disabled")
		return true
	}
	actx, err := o.OpenAudio()
	if err != nil {
		fmt.Fprintf(o.Out, "  FAIL: cannot connect to audio: %v\n", err)
		return false
	}
	defer actx.Close()

	device, err := pickDevice(actx, o.Device)
	if err != nil {
		fmt.Fprintf(o.Out, "  FAIL: %v\n", err)
		return false
	}
	if device != nil {
		fmt.Fprintf(o.Out, "  Using device: %s\n", device.Name)
		if audio.IsBluetooth(device.Name) {
			fmt.Fprintln(o.Out, "  Warning: Bluetooth headsets record in low quality while the mic is open")
		}
	}

	var reader *bufio.Reader
	if o.Interactive {
		reader = bufio.NewReader(o.In)
		fmt.Fprintf(o.Out, "  Press Enter and say a command (e.g. \"add two apples\") for %s...", o.Record)
		reader.ReadString('\n')
	}

	stop := make(chan struct{})
	timer := time.AfterFunc(o.Record, func() { close(stop) })
	defer timer.Stop()

	samples, err := recordAudio(actx, device, stop, o.Out)
	if err != nil {
		fmt.Fprintf(o.Out, "  FAIL: recording error: %v\n", err)
		return false
	}
	if len(samples) == 0 {
		fmt.Fprintln(o.Out, "  FAIL: no audio captured")
		return false
	}

	enc, err := encoder.Encode(o.Format, samples)
	if err != nil {
		fmt.Fprintf(o.Out, "  FAIL: encode error: %v\n", err)
		return false
	}
	data := enc.Bytes()
	fmt.Fprintf(o.Out, "  Recorded %.1fs, %.1f KB %s, transcribing...\n",
		encoder.Duration(enc.TotalFrames()).Seconds(), float64(len(data))/1024, enc.Format())

	tr, err := o.Client.Transcribe(ctx, data, "doctor."+enc.Format(), o.Language)
	if err != nil {
		fmt.Fprintf(o.Out, "  FAIL: transcription error: %v\n", err)
		return false
	}
	text := strings.TrimSpace(tr.Text)
	if text == "" {
		fmt.Fprintln(o.Out, "  FAIL: no speech detected")
		return false
	}
	fmt.Fprintf(o.Out, "\n  Transcribed text: %s (confidence %.2f)\n\n", text, tr.Confidence)

	if !o.Interactive {
		fmt.Fprintln(o.Out, "  PASS: transcription received")
		return true
	}
	fmt.Fprint(o.Out, "  Is this correct? [y/n]: ")
	confirm, _ := reader.ReadString('\n')
	confirm = strings.TrimSpace(strings.ToLower(confirm))
	if confirm == "y" || confirm == "yes" {
		fmt.Fprintln(o.Out, "  PASS: transcription verified by user")
		return true
	}
	fmt.Fprintln(o.Out, "  FAIL: transcription not confirmed")
	return false
}

func pickDevice(actx audio.Context, name string) (*audio.DeviceInfo, error) {
	if name != "" {
		d, err := audio.FindDevice(actx, name)
		if err != nil {
			return nil, fmt.Errorf("cannot list devices: %w", err)
		}
		if d == nil {
			return nil, fmt.Errorf("no capture device matches %q", name)
		}
		return d, nil
	}
	devices, err := actx.Devices()
	if err != nil {
		return nil, fmt.Errorf("cannot list devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no capture devices found")
	}
	return &devices[0], nil
}

func recordAudio(actx audio.Context, device *audio.DeviceInfo, stop <-chan struct{}, out io.Writer) ([]int16, error) {
	var (
		samples []int16
		mu      sync.Mutex
		stopped bool
	)

	capture, err := actx.NewCapture(device, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		return nil, err
	}
	defer capture.Close()

	capture.SetCallback(func(data []byte, _ uint32) {
		mu.Lock()
		defer mu.Unlock()
		if stopped {
			return
		}
		for i := 0; i+1 < len(data); i += 2 {
			samples = append(samples, int16(binary.LittleEndian.Uint16(data[i:])))
		}
	})
	if err := capture.Start(); err != nil {
		return nil, err
	}

	fmt.Fprint(out, "  Recording")
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
loop:
	for {
		select {
		case <-stop:
			break loop
		case <-ticker.C:
			fmt.Fprint(out, ".")
		}
	}
	capture.ClearCallback()
	capture.Stop()
	fmt.Fprintln(out, " done")

	mu.Lock()
	defer mu.Unlock()
	stopped = true
	return samples, nil
}

func checkClipboard(_ context.Context, o *Options) bool {
	if !clipboard.Available() {
		fmt.Fprintln(o.Out, "  FAIL: no clipboard tool found (install xclip, xsel or wl-clipboard)")
		return false
	}
	prev, _ := clipboard.Read()
	defer clipboard.Copy(prev)

	sample := []shopping.Item{{ID: "0", Name: "shopvox-doctor-test", Category: "dairy", Quantity: 1}}
	text, err := clipboard.CopyList(sample)
	if err != nil {
		fmt.Fprintf(o.Out, "  FAIL: clipboard copy failed: %v\n", err)
		return false
	}
	got, err := clipboard.Read()
	if err != nil {
		fmt.Fprintf(o.Out, "  FAIL: clipboard read failed: %v\n", err)
		return false
	}
	if got != text {
		fmt.Fprintf(o.Out, "  FAIL: clipboard returned %q, want %q\n", got, text)
		return false
	}
	fmt.Fprintln(o.Out, "  PASS: list export works")
	return true
}

func checkHotkey(ctx context.Context, o *Options) bool {
	info, err := hotkey.Diagnose()
	if err != nil {
		fmt.Fprintf(o.Out, "  FAIL: %v\n", err)
		return false
	}
	fmt.Fprintf(o.Out, "  %s\n", info)
	if !o.Interactive {
		fmt.Fprintln(o.Out, "  PASS: hotkey available")
		return true
	}

	fmt.Fprintf(o.Out, "  Press %s...\n", hotkey.Combo)
	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		fmt.Fprintf(o.Out, "  FAIL: could not register hotkey: %v\n", err)
		return false
	}
	defer hk.Unregister()

	select {
	case <-hk.Keydown():
		fmt.Fprintln(o.Out, "  PASS: hotkey detected")
		select {
		case <-hk.Keyup():
		case <-time.After(5 * time.Second):
		}
		// evdev reads can leave the terminal in raw mode
		resetTerminal()
		return true
	case <-time.After(10 * time.Second):
		fmt.Fprintln(o.Out, "  FAIL: timeout waiting for hotkey")
		return false
	case <-ctx.Done():
		return false
	}
}
