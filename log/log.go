package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog     zerolog.Logger
	diagFile    *os.File
	commandFile *os.File
	logMu       sync.Mutex
	logReady    bool
	pid         int
	dir         string
)

// Request carries the timing of one backend call.
type Request struct {
	Method     string
	Path       string
	RequestID  string
	Status     int
	DNSMs      float64
	TLSMs      float64
	TTFBMs     float64
	TotalMs    float64
	ConnReused bool
	Err        error
}

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		return absolute(flagPath)
	}

	// Priority 2: SHOPVOX_LOG_PATH environment variable
	if envPath := os.Getenv("SHOPVOX_LOG_PATH"); envPath != "" {
		return absolute(envPath)
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func absolute(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	commandPath := filepath.Join(dir, "commands_log.txt")
	commandFile, err = os.OpenFile(commandPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if commandFile != nil {
		commandFile.Close()
		commandFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func SessionStart(baseURL, recognizer, lang string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("api", baseURL).
		Str("recognizer", recognizer).
		Str("lang", lang).
		Msg("session_start")
}

func SessionEnd(commands int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("commands", commands).
		Msg("session_end")
}

func RecordingStart(gen uint64, recognizer, lang string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Uint64("gen", gen).
		Str("recognizer", recognizer).
		Str("lang", lang).
		Msg("recording_start")
}

func RecordingStop(gen uint64, segments, chars int, err error) {
	if !logReady {
		return
	}
	ev := diagLog.Info()
	if err != nil {
		ev = diagLog.Warn().Err(err)
	}
	ev.Uint64("gen", gen).
		Int("segments", segments).
		Int("chars", chars).
		Msg("recording_stop")
}

func SegmentUpload(format string, audio time.Duration, size int, encode time.Duration, chars int, err error) {
	if !logReady {
		return
	}
	ev := diagLog.Info()
	if err != nil {
		ev = diagLog.Warn().Err(err)
	}
	ev.Str("format", format).
		Float64("audio_s", audio.Seconds()).
		Float64("size_kb", float64(size)/1024).
		Int64("encode_ms", encode.Milliseconds()).
		Int("chars", chars).
		Msg("segment_upload")
}

func TranscriptFinal(gen uint64, text string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Uint64("gen", gen).
		Int("chars", len(text)).
		Msg("transcript_final")
}

func Command(kind, item string, quantity float64, unit string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("kind", kind).
		Str("item", item).
		Float64("quantity", quantity).
		Str("unit", unit).
		Msg("command")
}

func CommandUnrecognized(kind, text string) {
	if !logReady {
		return
	}
	diagLog.Warn().
		Str("kind", kind).
		Str("text", text).
		Msg("command_unrecognized")
}

func RemoveNoMatch(name string, listLen int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("item", name).
		Int("list_len", listLen).
		Msg("remove_no_match")
}

func HTTPRequest(r Request) {
	if !logReady {
		return
	}

	connStatus := "new"
	if r.ConnReused {
		connStatus = "reused"
	}

	ev := diagLog.Info()
	if r.Err != nil {
		ev = diagLog.Error().Err(r.Err)
	}
	ev.Str("method", r.Method).
		Str("path", r.Path).
		Str("request_id", r.RequestID).
		Int("status", r.Status).
		Str("conn", connStatus).
		Float64("dns_ms", r.DNSMs).
		Float64("tls_ms", r.TLSMs).
		Float64("ttfb_ms", r.TTFBMs).
		Float64("total_ms", r.TotalMs).
		Msg("http_request")
}

func ConfigReloaded(path string, changed []string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("path", path).
		Strs("changed", changed).
		Msg("config_reloaded")
}

func DatasetUploaded(filename string, rules int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("file", filename).
		Int("rules", rules).
		Msg("dataset_uploaded")
}

// CommandText appends a submitted command to commands_log.txt.
func CommandText(source, text string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	line := fmt.Sprintf("%s\t[%d]\t%s\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, source, text)
	commandFile.WriteString(line)
}
