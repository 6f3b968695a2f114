//go:build integration

package test_test

import (
	"encoding/binary"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopvox/api/apitest"
	"shopvox/shopping"
)

var testBinary string

func TestMain(m *testing.M) {
	testBinary = os.Getenv("SHOPVOX_TEST_BIN")
	if testBinary == "" {
		fmt.Fprintln(os.Stderr, "SHOPVOX_TEST_BIN not set; build the binary and point the variable at it")
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func cmds(parts ...string) string {
	return strings.Join(parts, "\n") + "\n"
}

type run struct {
	logDir string
	out    string
}

func runShopvox(t *testing.T, server *apitest.Server, stdin string, args ...string) run {
	t.Helper()
	logDir := t.TempDir()
	home := t.TempDir()
	cmdArgs := append([]string{"-test", "-logpath", logDir, "-api", server.BaseURL()}, args...)

	cmd := exec.Command(testBinary, cmdArgs...)
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Env = append(os.Environ(),
		"HOME="+home,
		"XDG_CONFIG_HOME="+home,
		"SHOPVOX_CONFIG=",
		"SHOPVOX_API_URL=",
		"VITE_API_URL=",
		"SHOPVOX_LANG=",
	)

	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "output: %s", out)
	return run{logDir: logDir, out: string(out)}
}

func readLog(t *testing.T, logDir, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(logDir, filename))
	if os.IsNotExist(err) {
		return ""
	}
	require.NoError(t, err)
	return string(data)
}

func names(items []shopping.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Name
	}
	return out
}

func TestVoiceRemoveConfirmed(t *testing.T) {
	server := apitest.NewServer(
		shopping.Item{ID: "1", Name: "milk", Category: "dairy", Quantity: 2},
		shopping.Item{ID: "2", Name: "bread", Category: "bakery"},
	)
	defer server.Close()

	r := runShopvox(t, server, cmds("START", "SAY remove milk", "STOP", "WAIT_CONFIRM", "CONFIRM", "LIST", "QUIT"))

	assert.Contains(t, r.out, "CONFIRM? remove milk")
	assert.Contains(t, r.out, "ITEMS bread")
	assert.Equal(t, []string{"bread"}, names(server.Items()))
	assert.Contains(t, server.Requests(), "DELETE /api/shopping/1")

	commands := readLog(t, r.logDir, "commands_log.txt")
	assert.Contains(t, commands, "voice\tremove milk")
	assert.Contains(t, readLog(t, r.logDir, "diagnostics_log.txt"), "session_start")
}

func TestVoiceCancelChangesNothing(t *testing.T) {
	server := apitest.NewServer(shopping.Item{ID: "1", Name: "milk"})
	defer server.Close()

	r := runShopvox(t, server, cmds("START", "SAY remove milk", "STOP", "WAIT_CONFIRM", "CANCEL", "QUIT"))

	assert.Equal(t, []string{"milk"}, names(server.Items()))
	assert.NotContains(t, server.Requests(), "POST /api/voice/process")
	assert.Empty(t, strings.TrimSpace(readLog(t, r.logDir, "commands_log.txt")))
}

func TestSegmentsJoinIntoOneTranscript(t *testing.T) {
	server := apitest.NewServer()
	defer server.Close()

	r := runShopvox(t, server, cmds("START", "SAY add three", "SAY apples", "STOP", "WAIT_CONFIRM", "CONFIRM", "QUIT"))

	assert.Contains(t, r.out, "CONFIRM? add three apples")
	items := server.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "apples", items[0].Name)
	assert.Equal(t, 3.0, items[0].Quantity)
}

func TestTypedCommands(t *testing.T) {
	server := apitest.NewServer()
	defer server.Close()

	r := runShopvox(t, server, cmds("TYPE add 2 milk", "TYPE add bread", "TYPE remove bread", "LIST", "QUIT"))

	assert.Contains(t, r.out, "ITEMS milk (2)")
	assert.Contains(t, r.out, "PROCESSING add milk (2)")
	assert.Equal(t, []string{"milk"}, names(server.Items()))
	commands := readLog(t, r.logDir, "commands_log.txt")
	assert.Equal(t, 3, strings.Count(commands, "typed\t"))
}

func TestBackendFailureReportedOnce(t *testing.T) {
	server := apitest.NewServer()
	defer server.Close()
	server.Fail("POST /api/shopping/add", http.StatusInternalServerError, "database locked")

	r := runShopvox(t, server, cmds("TYPE add eggs", "LIST", "QUIT"))

	assert.Equal(t, 1, strings.Count(r.out, "ERROR "))
	assert.Contains(t, r.out, "ITEMS \n")
	assert.Empty(t, server.Items())
}

func TestLanguageSwitch(t *testing.T) {
	server := apitest.NewServer()
	defer server.Close()

	r := runShopvox(t, server, cmds("LANG es-ES", "QUIT"), "-lang", "en-US")

	assert.Contains(t, r.out, "LANGUAGE en-US")
	assert.Contains(t, r.out, "LANGUAGE es-ES")
}

func TestMicFromWAV(t *testing.T) {
	server := apitest.NewServer(shopping.Item{ID: "1", Name: "milk"})
	defer server.Close()
	server.QueueTranscripts("remove milk")

	wav := filepath.Join(t.TempDir(), "speech.wav")
	require.NoError(t, writeToneWAV(wav, 16000, 1.0))

	r := runShopvox(t, server, cmds("START", "SLEEP 1800", "STOP", "WAIT_CONFIRM", "CONFIRM", "QUIT"), wav)

	assert.Contains(t, r.out, "CONFIRM? remove milk")
	assert.Empty(t, server.Items())
	assert.Contains(t, server.Requests(), "POST /api/voice/transcribe")
}

// writeToneWAV writes a loud 440 Hz tone so the pause detector sees speech.
func writeToneWAV(path string, sampleRate int, durationS float64) error {
	const headerSize = 44
	numSamples := int(float64(sampleRate) * durationS)
	dataSize := numSamples * 2

	buf := make([]byte, headerSize+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(headerSize-8+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)  // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16) // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	for i := 0; i < numSamples; i++ {
		v := int16(12000 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
		binary.LittleEndian.PutUint16(buf[headerSize+i*2:], uint16(v))
	}
	return os.WriteFile(path, buf, 0644)
}

func TestHistoryAndUploadCommands(t *testing.T) {
	server := apitest.NewServer()
	defer server.Close()
	csv := filepath.Join(t.TempDir(), "tx.csv")
	require.NoError(t, os.WriteFile(csv, []byte("milk,cereal\n"), 0644))

	r := runShopvox(t, server, cmds("HISTORY", "UPLOAD "+csv, "QUIT"))

	assert.GreaterOrEqual(t, strings.Count(r.out, "HISTORY milk x5"), 2)
	assert.Contains(t, r.out, "NOTICE Dataset processed (1 rules)")
	assert.Contains(t, r.out, "cereal")
}

func TestUploadFlag(t *testing.T) {
	server := apitest.NewServer()
	defer server.Close()
	dir := t.TempDir()
	csv := filepath.Join(dir, "tx.csv")
	require.NoError(t, os.WriteFile(csv, []byte("milk,cereal\nchips,salsa\n"), 0644))

	cmd := exec.Command(testBinary, "-logpath", dir, "-api", server.BaseURL(), "-upload", csv)
	cmd.Env = append(os.Environ(), "HOME="+dir, "XDG_CONFIG_HOME="+dir, "SHOPVOX_CONFIG=")
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "output: %s", out)
	assert.Contains(t, string(out), "Dataset processed (2 rules)")
	assert.Contains(t, server.Requests(), "POST /api/suggestions/apriori/upload")

	bad := filepath.Join(dir, "tx.txt")
	require.NoError(t, os.WriteFile(bad, []byte("milk"), 0644))
	cmd = exec.Command(testBinary, "-logpath", dir, "-api", server.BaseURL(), "-upload", bad)
	cmd.Env = append(os.Environ(), "HOME="+dir, "XDG_CONFIG_HOME="+dir, "SHOPVOX_CONFIG=")
	out, err = cmd.CombinedOutput()
	assert.Error(t, err)
	assert.Contains(t, string(out), ".csv or .json")
}
