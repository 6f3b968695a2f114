package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupLogDir(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	SetDir(tmp)
	t.Cleanup(func() { Close(); SetDir("") })
	return tmp
}

func TestResolveDirFlag(t *testing.T) {
	got, err := ResolveDir("/tmp/mylog")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/mylog" {
		t.Errorf("got %q, want /tmp/mylog", got)
	}
}

func TestResolveDirFlagRelative(t *testing.T) {
	got, err := ResolveDir("logs")
	if err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(wd, "logs")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveDirEnv(t *testing.T) {
	t.Setenv("SHOPVOX_LOG_PATH", "/tmp/shopvox-env-log")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/shopvox-env-log" {
		t.Errorf("got %q, want /tmp/shopvox-env-log", got)
	}
}

func TestResolveDirDefault(t *testing.T) {
	t.Setenv("SHOPVOX_LOG_PATH", "")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got == "" {
		t.Error("expected non-empty default directory")
	}
}

func TestInitCreatesFiles(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"diagnostics_log.txt", "commands_log.txt"} {
		path := filepath.Join(tmp, name)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
}

func TestCommandText(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	CommandText("voice", "remove milk")

	data, err := os.ReadFile(filepath.Join(tmp, "commands_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	line := string(data)
	if !strings.Contains(line, "remove milk") {
		t.Errorf("commands_log.txt missing text, got: %q", line)
	}
	// format: "2006-01-02 15:04:05\t[pid]\tsource\ttext\n"
	if got := strings.Count(line, "\t"); got != 3 {
		t.Errorf("expected 3 tabs, got %d in %q", got, line)
	}
}

func TestEventsBeforeInitAreNoops(t *testing.T) {
	setupLogDir(t)

	Info("ignored")
	CommandText("typed", "ignored")
	HTTPRequest(Request{Method: "GET", Path: "/shopping/list"})
}

func TestHTTPRequestWritten(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	HTTPRequest(Request{Method: "POST", Path: "/voice/process", Status: 200, RequestID: "abc"})
	Close()

	data, err := os.ReadFile(filepath.Join(tmp, "diagnostics_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"http_request", "/voice/process", "request_id=abc"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("diagnostics_log.txt missing %q, got: %q", want, data)
		}
	}
}

func TestCloseIdempotent(t *testing.T) {
	setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	Close()
	Close() // should not panic
}

func TestDatasetUploadedWritten(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	DatasetUploaded("tx.csv", 17)
	Close()

	data, err := os.ReadFile(filepath.Join(tmp, "diagnostics_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"dataset_uploaded", "file=tx.csv", "rules=17"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("diagnostics_log.txt missing %q, got: %q", want, data)
		}
	}
}
