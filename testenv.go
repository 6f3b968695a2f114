package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"shopvox/api"
	"shopvox/audio"
	"shopvox/config"
	"shopvox/log"
	"shopvox/shopping"
	"shopvox/speech"
	"shopvox/voice"
)

const testWait = 10 * time.Second

// printSink writes every pipeline event as one line on stdout.
type printSink struct {
	mu      sync.Mutex
	out     io.Writer
	stopped chan struct{}
	offered chan struct{}
}

func newPrintSink(out io.Writer) *printSink {
	return &printSink{
		out:     out,
		stopped: make(chan struct{}, 16),
		offered: make(chan struct{}, 16),
	}
}

func notifyOne(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (s *printSink) wait(ch chan struct{}, what string) {
	select {
	case <-ch:
	case <-time.After(testWait):
		s.printf("TIMEOUT waiting for %s", what)
	}
}

func (s *printSink) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format+"\n", args...)
}

func (s *printSink) RecordingChanged(on bool) {
	if on {
		s.printf("RECORDING on")
		return
	}
	s.printf("RECORDING off")
	notifyOne(s.stopped)
}

func (s *printSink) Interim(text string) { s.printf("INTERIM %s", text) }

func (s *printSink) ConfirmationRequested(text string) {
	s.printf("CONFIRM? %s", text)
	notifyOne(s.offered)
}

func (s *printSink) InputReplaced(text string) { s.printf("INPUT %s", text) }

func (s *printSink) CommandInterpreted(cmd shopping.Command) {
	s.printf("PROCESSING %s %s", cmd.Kind, cmd.Label())
}

func (s *printSink) ListChanged(items []shopping.Item) { s.printf("LIST %s", formatItems(items)) }

func (s *printSink) SuggestionsChanged(sugg []shopping.Suggestion) {
	names := make([]string, len(sugg))
	for i, sg := range sugg {
		names[i] = sg.Item
	}
	s.printf("SUGGESTIONS %s", strings.Join(names, ", "))
}

func (s *printSink) HistoryChanged(h []shopping.HistoryEntry) {
	parts := make([]string, len(h))
	for i, e := range h {
		parts[i] = fmt.Sprintf("%s x%d", e.ItemName, e.Frequency)
	}
	s.printf("HISTORY %s", strings.Join(parts, ", "))
}

func (s *printSink) LanguagesChanged(langs []voice.Language, current string) {
	s.printf("LANGUAGE %s (%d available)", current, len(langs))
}

func (s *printSink) BusyChanged(busy bool) { s.printf("BUSY %t", busy) }

func (s *printSink) Error(msg string) { s.printf("ERROR %s", msg) }

func (s *printSink) Notice(msg string) { s.printf("NOTICE %s", msg) }

func formatItems(items []shopping.Item) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = it.Name
		if q := it.QuantityLabel(); q != "" {
			parts[i] += " (" + q + ")"
		}
	}
	return strings.Join(parts, ", ")
}

// runTestMode drives the pipeline from stdin commands. With a WAV path the
// microphone path runs over a replayed recording, otherwise SAY lines are
// fed through a scripted recognizer.
func runTestMode(ctx context.Context, client *api.Client, cfg *config.Config, wavPath string) int {
	var (
		rec  speech.Recognizer
		fake *speech.FakeRecognizer
	)
	if wavPath != "" {
		fakeCtx, err := audio.NewFakeContextFromWAV(wavPath, true)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
			return 1
		}
		rec = speech.NewMic(speech.MicConfig{
			Open:        func() (audio.Context, error) { return fakeCtx, nil },
			Format:      cfg.Format,
			Gain:        cfg.Gain,
			Transcriber: client,
		})
	} else {
		fake = speech.NewFakeRecognizer()
		rec = fake
	}

	sink := newPrintSink(os.Stdout)
	log.SessionStart(client.BaseURL(), rec.Name(), cfg.Language)
	p := voice.New(voice.Config{
		Recognizer: rec,
		Backend:    client,
		Language:   cfg.Language,
		Sink:       sink,
	})
	defer p.Close()

	if err := p.Bootstrap(ctx); err != nil {
		log.Warnf("bootstrap: %v", err)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return 1
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cmd, arg, _ := strings.Cut(line, " ")
		switch strings.ToUpper(cmd) {
		case "START":
			p.StartRecording()
		case "STOP":
			p.StopRecording()
		case "SAY":
			if fake == nil || !fake.Say(arg) {
				sink.printf("SAY ignored: not recording")
			}
		case "INTERIM":
			if fake != nil {
				fake.Interim(arg)
			}
		case "WAIT":
			sink.wait(sink.stopped, "recording to stop")
		case "WAIT_CONFIRM":
			sink.wait(sink.offered, "a transcript")
		case "CONFIRM":
			p.Confirm(ctx)
		case "EDIT":
			p.Edit()
		case "CANCEL":
			p.Cancel()
		case "TYPE":
			p.SubmitText(ctx, arg)
		case "COMPLETE", "DELETE":
			id := shopping.ItemID(arg)
			if strings.EqualFold(cmd, "COMPLETE") {
				p.CompleteItem(ctx, id)
			} else {
				p.RemoveItem(ctx, id)
			}
		case "QTY":
			id, qty, _ := strings.Cut(arg, " ")
			q, err := strconv.ParseFloat(qty, 64)
			if err != nil {
				sink.printf("QTY needs a number, got %q", qty)
				continue
			}
			p.UpdateQuantity(ctx, shopping.ItemID(id), q)
		case "SUGGEST":
			p.LoadSuggestions(ctx)
		case "HISTORY":
			p.LoadHistory(ctx)
		case "UPLOAD":
			p.UploadDataset(ctx, arg)
		case "LANG":
			p.SetLanguage(arg)
		case "NEXTLANG":
			p.NextLanguage()
		case "LIST":
			sink.printf("ITEMS %s", formatItems(p.Items()))
		case "SLEEP":
			if ms, err := strconv.Atoi(arg); err == nil {
				time.Sleep(time.Duration(ms) * time.Millisecond)
			}
		case "QUIT":
			return 0
		default:
			sink.printf("UNKNOWN %s", cmd)
		}
	}
	return 0
}
