package doctor

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"net/http"
	"strings"
	"testing"
	"time"

	"shopvox/api"
	"shopvox/api/apitest"
	"shopvox/audio"
	"shopvox/shopping"
)

func tonePCM(seconds float64) []byte {
	n := int(seconds * 16000)
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := int16(8000 * math.Sin(2*math.Pi*440*float64(i)/16000))
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return buf
}

func testOptions(t *testing.T, srv *apitest.Server) (*Options, *bytes.Buffer) {
	t.Helper()
	client, err := api.New(srv.BaseURL())
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	return &Options{
		Client:    client,
		OpenAudio: func() (audio.Context, error) { return audio.NewFakeContext(tonePCM(0.5), false), nil },
		Format:    "wav",
		Language:  "en-US",
		Record:    50 * time.Millisecond,
		Out:       &out,
	}, &out
}

func TestCheckBackend(t *testing.T) {
	srv := apitest.NewServer(shopping.Item{ID: "1", Name: "milk"})
	defer srv.Close()
	o, out := testOptions(t, srv)

	if !checkBackend(context.Background(), o) {
		t.Fatalf("backend check failed:\n%s", out)
	}
	if !strings.Contains(out.String(), "list has 1 item(s)") {
		t.Errorf("missing item count:\n%s", out)
	}
	if !strings.Contains(out.String(), "de-DE, en-US, es-ES, fr-FR") {
		t.Errorf("languages not sorted:\n%s", out)
	}
}

func TestCheckBackendWarnsUnknownLanguage(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	o, out := testOptions(t, srv)
	o.Language = "pt-BR"

	if !checkBackend(context.Background(), o) {
		t.Fatal("unknown language should only warn")
	}
	if !strings.Contains(out.String(), "pt-BR is not offered") {
		t.Errorf("missing warning:\n%s", out)
	}
}

func TestRunStopsWhenBackendDown(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	srv.Fail("GET /api/shopping/list", http.StatusInternalServerError, "boom")
	o, out := testOptions(t, srv)

	if code := Run(context.Background(), *o); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(out.String(), "Skipping remaining checks") {
		t.Errorf("expected skip notice:\n%s", out)
	}
	if strings.Contains(out.String(), "[2/3]") {
		t.Errorf("later checks ran:\n%s", out)
	}
}

func TestCheckMicTranscribes(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	srv.QueueTranscripts("add two apples")
	o, out := testOptions(t, srv)

	if !checkMic(context.Background(), o) {
		t.Fatalf("mic check failed:\n%s", out)
	}
	if !strings.Contains(out.String(), "Transcribed text: add two apples") {
		t.Errorf("missing transcript:\n%s", out)
	}
}

func TestCheckMicInteractiveConfirm(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	srv.QueueTranscripts("remove milk", "remove milk")
	o, out := testOptions(t, srv)
	o.Interactive = true

	o.In = strings.NewReader("\ny\n")
	if !checkMic(context.Background(), o) {
		t.Fatalf("confirmed transcript should pass:\n%s", out)
	}

	o.In = strings.NewReader("\nn\n")
	if checkMic(context.Background(), o) {
		t.Fatal("rejected transcript should fail")
	}
}

func TestCheckMicNoSpeech(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	o, out := testOptions(t, srv)

	if checkMic(context.Background(), o) {
		t.Fatal("expected failure without speech")
	}
	if !strings.Contains(out.String(), "no speech detected") {
		t.Errorf("missing message:\n%s", out)
	}
}

func TestCheckMicAudioErrors(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	o, out := testOptions(t, srv)

	o.OpenAudio = func() (audio.Context, error) { return nil, errors.New("pulse down") }
	if checkMic(context.Background(), o) {
		t.Fatal("expected failure")
	}
	if !strings.Contains(out.String(), "pulse down") {
		t.Errorf("missing error:\n%s", out)
	}

	o.OpenAudio = func() (audio.Context, error) { return audio.NewFakeContext(nil, false), nil }
	o.Device = "usb headset"
	if checkMic(context.Background(), o) {
		t.Fatal("expected unknown device to fail")
	}
}

func TestCheckMicDisabled(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	o, out := testOptions(t, srv)
	o.OpenAudio = nil
	if !checkMic(context.Background(), o) {
		t.Fatal("disabled voice input is not a failure")
	}
	if !strings.Contains(out.String(), "SKIP") {
		t.Errorf("missing skip:\n%s", out)
	}
}
