package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"shopvox/api"
	"shopvox/audio"
	"shopvox/config"
	"shopvox/doctor"
	"shopvox/hotkey"
	"shopvox/log"
	"shopvox/shutdown"
	"shopvox/speech"
	"shopvox/voice"
)

var version = "dev"

type options struct {
	overrides config.Overrides
	setup     bool
	test      bool
	doctor    bool
	version   bool
	upload    string
	longPress time.Duration
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.overrides.ConfigPath, "config", "", "Config file (default: $SHOPVOX_CONFIG or the user config dir)")
	flag.StringVar(&o.overrides.BaseURL, "api", "", "Backend base URL, e.g. http://localhost:5000/api")
	flag.StringVar(&o.overrides.Language, "lang", "", "Recognition language code (e.g. en-US, es-ES)")
	flag.StringVar(&o.overrides.Recognizer, "recognizer", "", "Speech capture: mic or none")
	flag.StringVar(&o.overrides.Format, "format", "", "Audio upload format: wav or flac")
	flag.StringVar(&o.overrides.Device, "device", "", "Use named microphone device")
	flag.IntVar(&o.overrides.Gain, "gain", 0, "Microphone gain multiplier (1-10)")
	flag.BoolVar(&o.overrides.PushToTalk, "ptt", false, "Enable the global push-to-talk hotkey ("+hotkey.Combo+")")
	flag.StringVar(&o.overrides.LogPath, "logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	flag.DurationVar(&o.longPress, "longpress", hotkey.DefaultLongPress, "Hold threshold separating push-to-talk from a tap")
	flag.BoolVar(&o.setup, "setup", false, "Select microphone device (otherwise uses system default)")
	flag.BoolVar(&o.test, "test", false, "Test mode (headless, stdin-driven)")
	flag.BoolVar(&o.doctor, "doctor", false, "Run system diagnostics and exit")
	flag.StringVar(&o.upload, "upload", "", "Upload a CSV or JSON transaction dataset for suggestions and exit")
	flag.BoolVar(&o.version, "version", false, "Print version and exit")
	flag.Parse()
	return o
}

func run() {
	o := parseFlags()

	if o.version {
		fmt.Printf("shopvox %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load(o.overrides)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Resolve log directory early
	logPath, err := log.ResolveDir(cfg.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
	initCrashLog()

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	client, err := api.New(cfg.BaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := shutdown.Context(context.Background())
	defer stop()

	if o.doctor {
		opts := doctor.Options{
			Client:      client,
			Device:      cfg.Device,
			Format:      cfg.Format,
			Language:    cfg.Language,
			Interactive: true,
			CheckHotkey: cfg.PushToTalk,
			In:          os.Stdin,
			Out:         os.Stdout,
		}
		if cfg.Recognizer == "mic" {
			opts.OpenAudio = audio.NewContext
		}
		os.Exit(doctor.Run(ctx, opts))
	}

	if o.upload != "" {
		os.Exit(runUpload(ctx, client, o.upload))
	}

	if o.test {
		os.Exit(runTestMode(ctx, client, cfg, flag.Arg(0)))
	}

	// Resolve -setup into a device name before the TUI takes the terminal
	if o.setup && cfg.Device == "" {
		actx, err := audio.NewContext()
		if err != nil {
			fmt.Printf("Error initializing audio: %v\n", err)
			os.Exit(1)
		}
		dev, err := audio.SelectDevice(actx)
		switch {
		case errors.Is(err, audio.ErrSelectionAborted):
			actx.Close()
			os.Exit(0)
		case err != nil:
			fmt.Printf("Error: %v\n", err)
		case dev != nil:
			cfg.Device = dev.Name
		}
		actx.Close()
	}

	rec := newRecognizer(cfg, client)
	log.SessionStart(client.BaseURL(), rec.Name(), cfg.Language)

	var program *tea.Program
	pipeline := voice.New(voice.Config{
		Recognizer: rec,
		Backend:    client,
		Language:   cfg.Language,
		Sink:       teaSink{send: func(msg tea.Msg) { program.Send(msg) }},
	})
	defer pipeline.Close()

	program = tea.NewProgram(newTUIModel(pipeline, cfg.Language, cfg.PushToTalk), tea.WithAltScreen(), tea.WithContext(ctx))

	if cfg.Path != "" {
		w, err := config.Watch(cfg, o.overrides)
		if err != nil {
			log.Warnf("config watch disabled: %v", err)
		} else {
			defer w.Close()
			w.OnChange(func(old, next *config.Config) {
				if next.Language != old.Language {
					pipeline.SetLanguage(next.Language)
				}
				program.Send(StatusMsg{Text: "Configuration reloaded"})
			})
		}
	}

	if cfg.PushToTalk {
		ptt := hotkey.NewPushToTalk(hotkey.New(), pipeline, o.longPress)
		go func() {
			if err := ptt.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Errorf("push-to-talk: %v", err)
				program.Send(NoticeMsg{Text: fmt.Sprintf("Push-to-talk is unavailable (%v). Use ctrl+r instead.", err)})
			}
		}()
	}

	go pipeline.Bootstrap(ctx)

	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRecognizer builds the configured speech capture. A microphone that
// cannot be opened turns into an unavailable recognizer so the first
// recording attempt explains why.
func newRecognizer(cfg *config.Config, client *api.Client) speech.Recognizer {
	if cfg.Recognizer == "none" {
		return speech.Unavailable{Reason: "speech capture disabled in configuration"}
	}
	actx, err := audio.NewContext()
	if err != nil {
		log.Warnf("audio init failed: %v", err)
		return speech.Unavailable{Reason: "no audio backend: " + err.Error()}
	}
	var device *audio.DeviceInfo
	if cfg.Device != "" {
		device, err = audio.FindDevice(actx, cfg.Device)
		if err != nil || device == nil {
			log.Warnf("device %q not found, using system default", cfg.Device)
			device = nil
		}
	}
	return speech.NewMic(speech.MicConfig{
		Open:        func() (audio.Context, error) { return actx, nil },
		Device:      device,
		Format:      cfg.Format,
		Gain:        cfg.Gain,
		Transcriber: client,
	})
}

func runUpload(ctx context.Context, client *api.Client, path string) int {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer f.Close()

	res, err := client.UploadDataset(ctx, filepath.Base(path), f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", voice.Describe(err))
		return 1
	}
	log.DatasetUploaded(filepath.Base(path), res.RulesCount)
	fmt.Printf("%s (%d rules)\n", res.Message, res.RulesCount)
	return 0
}

func initCrashLog() {
	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(crashFile, debug.CrashOptions{})
}
