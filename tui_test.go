package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"shopvox/api"
	"shopvox/shopping"
	"shopvox/voice"
)

type fakeController struct {
	mu    sync.Mutex
	calls []string
	busy  bool
}

func (f *fakeController) record(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeController) ToggleRecording() error { f.record("toggle"); return nil }
func (f *fakeController) Confirm(context.Context) error {
	f.record("confirm")
	return nil
}
func (f *fakeController) Edit() bool   { f.record("edit"); return true }
func (f *fakeController) Cancel() bool { f.record("cancel"); return true }
func (f *fakeController) SubmitText(_ context.Context, text string) error {
	f.record("submit %s", text)
	return nil
}
func (f *fakeController) AddSuggestion(_ context.Context, s shopping.Suggestion) error {
	f.record("suggest %s", s.Item)
	return nil
}
func (f *fakeController) RemoveItem(_ context.Context, id shopping.ItemID) error {
	f.record("remove %s", id)
	return nil
}
func (f *fakeController) CompleteItem(_ context.Context, id shopping.ItemID) error {
	f.record("complete %s", id)
	return nil
}
func (f *fakeController) UpdateQuantity(_ context.Context, id shopping.ItemID, q float64) error {
	f.record("qty %s %g", id, q)
	return nil
}
func (f *fakeController) LoadSuggestions(context.Context) error {
	f.record("suggestions")
	return nil
}
func (f *fakeController) LoadHistory(context.Context) error {
	f.record("history")
	return nil
}
func (f *fakeController) UploadDataset(_ context.Context, path string) (api.DatasetResult, error) {
	f.record("upload %s", path)
	return api.DatasetResult{}, nil
}
func (f *fakeController) NextLanguage() { f.record("language") }
func (f *fakeController) Busy() bool    { return f.busy }

func (f *fakeController) log() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "ctrl+r":
		return tea.KeyMsg{Type: tea.KeyCtrlR}
	case "ctrl+l":
		return tea.KeyMsg{Type: tea.KeyCtrlL}
	case "ctrl+o":
		return tea.KeyMsg{Type: tea.KeyCtrlO}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// send feeds msgs through Update and runs the returned commands. Pipeline
// calls finish at once; a cursor blink command would sleep, so commands get
// a short deadline instead of being awaited.
func send(t *testing.T, m tuiModel, msgs ...tea.Msg) tuiModel {
	t.Helper()
	for _, msg := range msgs {
		next, cmd := m.Update(msg)
		m = next.(tuiModel)
		if cmd == nil {
			continue
		}
		done := make(chan struct{})
		go func() {
			defer close(done)
			cmd()
		}()
		select {
		case <-done:
		case <-time.After(50 * time.Millisecond):
		}
	}
	return m
}

func testItems() []shopping.Item {
	return []shopping.Item{
		{ID: "1", Name: "milk", Category: "dairy", Quantity: 2},
		{ID: "2", Name: "apples", Category: "produce", Quantity: 3},
		{ID: "3", Name: "cheese", Category: "dairy"},
	}
}

func newTestModel() (tuiModel, *fakeController) {
	ctl := &fakeController{}
	m := newTUIModel(ctl, "en-US", false)
	m.width, m.height = 100, 40
	return m, ctl
}

func TestConfirmationKeys(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"y", "confirm"},
		{"enter", "confirm"},
		{"e", "edit"},
		{"n", "cancel"},
		{"esc", "cancel"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			m, ctl := newTestModel()
			m = send(t, m, ConfirmationMsg{Text: "remove milk"})
			if !strings.Contains(m.View(), `Heard: "remove milk"`) {
				t.Fatalf("confirmation not shown:\n%s", m.View())
			}
			m = send(t, m, keyMsg(tt.key))
			if got := ctl.log(); len(got) != 1 || got[0] != tt.want {
				t.Errorf("calls = %v, want [%s]", got, tt.want)
			}
			if m.pending != "" {
				t.Error("dialog still open")
			}
		})
	}
}

func TestPendingSwallowsOtherKeys(t *testing.T) {
	m, ctl := newTestModel()
	m = send(t, m, ConfirmationMsg{Text: "add bread"}, keyMsg("x"), keyMsg("ctrl+r"))
	if len(ctl.log()) != 0 {
		t.Errorf("unexpected calls %v", ctl.log())
	}
	if m.pending != "add bread" {
		t.Errorf("pending = %q", m.pending)
	}
}

func TestSubmitTypedText(t *testing.T) {
	m, ctl := newTestModel()
	m = send(t, m, keyMsg("add eggs"))
	m = send(t, m, keyMsg("enter"))
	if got := ctl.log(); len(got) != 1 || got[0] != "submit add eggs" {
		t.Errorf("calls = %v", got)
	}
	if m.input.Value() != "" {
		t.Errorf("input not cleared: %q", m.input.Value())
	}
}

func TestBusyIgnoresMutations(t *testing.T) {
	m, ctl := newTestModel()
	m = send(t, m, ListMsg{Items: testItems()}, BusyMsg{Busy: true})
	m = send(t, m, keyMsg("add eggs"), keyMsg("enter"))
	m = send(t, m, keyMsg("tab"), keyMsg("d"), keyMsg("+"))
	if len(ctl.log()) != 0 {
		t.Errorf("mutations while busy: %v", ctl.log())
	}
	m = send(t, m, BusyMsg{Busy: false}, keyMsg("d"))
	if got := ctl.log(); len(got) != 1 {
		t.Errorf("calls = %v", got)
	}
}

func TestListKeysFollowDisplayOrder(t *testing.T) {
	m, ctl := newTestModel()
	m = send(t, m, ListMsg{Items: testItems()}, keyMsg("tab"))
	if m.focus != focusList {
		t.Fatalf("focus = %d", m.focus)
	}
	// dairy groups milk and cheese before produce
	m = send(t, m, keyMsg("down"), keyMsg("d"))
	m = send(t, m, keyMsg("down"), keyMsg("c"))
	m = send(t, m, keyMsg("+"), keyMsg("-"))
	want := []string{"remove 3", "complete 2", "qty 2 4", "qty 2 2"}
	got := ctl.log()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestQuantityOfUnquantifiedItem(t *testing.T) {
	m, ctl := newTestModel()
	m = send(t, m, ListMsg{Items: []shopping.Item{{ID: "9", Name: "salt"}}}, keyMsg("tab"), keyMsg("-"))
	if got := ctl.log(); len(got) != 1 || got[0] != "qty 9 0" {
		t.Errorf("calls = %v", got)
	}
}

func TestAddSuggestion(t *testing.T) {
	m, ctl := newTestModel()
	m = send(t, m, SuggestionsMsg{Suggestions: []shopping.Suggestion{
		{Item: "bread", Type: "history_based"},
		{Item: "strawberries", Type: "seasonal"},
	}})
	m = send(t, m, keyMsg("tab"), keyMsg("tab"), keyMsg("down"), keyMsg("enter"))
	if got := ctl.log(); len(got) != 1 || got[0] != "suggest strawberries" {
		t.Errorf("calls = %v", got)
	}
}

func TestNoticeBlocksUntilDismissed(t *testing.T) {
	m, ctl := newTestModel()
	m = send(t, m, NoticeMsg{Text: "Voice input is unavailable"})
	m = send(t, m, keyMsg("ctrl+r"))
	if len(ctl.log()) != 0 {
		t.Errorf("calls behind notice: %v", ctl.log())
	}
	m = send(t, m, keyMsg("enter"), keyMsg("ctrl+r"))
	if got := ctl.log(); len(got) != 1 || got[0] != "toggle" {
		t.Errorf("calls = %v", got)
	}
}

func TestBannerDismiss(t *testing.T) {
	m, _ := newTestModel()
	m = send(t, m, ErrorMsg{Text: "Failed to add item: boom"})
	if !strings.Contains(m.View(), "Failed to add item: boom") {
		t.Fatal("banner not shown")
	}
	m = send(t, m, keyMsg("esc"))
	if m.banner != "" {
		t.Error("banner not dismissed")
	}
}

func TestInputReplacedFocusesInput(t *testing.T) {
	m, _ := newTestModel()
	m = send(t, m, keyMsg("tab"), InputReplacedMsg{Text: "add tree apples"})
	if m.focus != focusInput {
		t.Errorf("focus = %d", m.focus)
	}
	if m.input.Value() != "add tree apples" {
		t.Errorf("input = %q", m.input.Value())
	}
}

func TestLanguageAndRecordingHeader(t *testing.T) {
	m, ctl := newTestModel()
	m = send(t, m,
		LanguagesMsg{Languages: []voice.Language{{Code: "en-US", Name: "English (US)"}}, Current: "en-US"},
		RecordingMsg{On: true},
		InterimMsg{Text: "remove mi"},
	)
	view := m.View()
	for _, want := range []string{"English (US)", "REC", "remove mi"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
	send(t, m, keyMsg("ctrl+l"))
	if got := ctl.log(); len(got) != 1 || got[0] != "language" {
		t.Errorf("calls = %v", got)
	}
}

func TestEmptyListView(t *testing.T) {
	m, _ := newTestModel()
	if !strings.Contains(m.View(), "No items yet") {
		t.Error("missing empty state")
	}
	m = send(t, m, ListMsg{Items: testItems()})
	view := m.View()
	if !strings.Contains(view, "🥛 dairy (2)") || !strings.Contains(view, "🥬 produce (1)") {
		t.Errorf("categories not rendered:\n%s", view)
	}
}

func TestEmojiFor(t *testing.T) {
	if emojiFor("Dairy") != "🥛" {
		t.Error("category lookup should ignore case")
	}
	if emojiFor("tools") != "📦" {
		t.Error("unknown category should use the box")
	}
}

func TestCtrlCQuits(t *testing.T) {
	m, _ := newTestModel()
	_, cmd := m.Update(keyMsg("ctrl+c"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestProcessingLineUnderInput(t *testing.T) {
	m, _ := newTestModel()
	if strings.Contains(m.View(), "Processing:") {
		t.Error("processing line shown before any command")
	}
	m = send(t, m, CommandMsg{Command: shopping.Command{Kind: shopping.CommandAdd, ItemName: "milk", Quantity: 2, Unit: "l"}})
	view := m.View()
	if !strings.Contains(view, "Processing: milk (2 l)") {
		t.Errorf("missing processing line:\n%s", view)
	}
	input := strings.Index(view, "›")
	if input < 0 || strings.Index(view, "Processing:") < input {
		t.Error("processing line should follow the input")
	}
}

func TestUploadTypedInInput(t *testing.T) {
	m, ctl := newTestModel()
	m = send(t, m, keyMsg("/upload /tmp/tx.csv"))
	send(t, m, keyMsg("enter"))
	if got := ctl.log(); len(got) != 1 || got[0] != "upload /tmp/tx.csv" {
		t.Errorf("calls = %v", got)
	}
}

func TestUploadPath(t *testing.T) {
	tests := []struct {
		text string
		path string
		ok   bool
	}{
		{"/upload tx.csv", "tx.csv", true},
		{"/upload   my data.json ", "my data.json", true},
		{"/upload", "", false},
		{"/uploads tx.csv", "", false},
		{"add milk", "", false},
	}
	for _, tt := range tests {
		path, ok := uploadPath(tt.text)
		if path != tt.path || ok != tt.ok {
			t.Errorf("uploadPath(%q) = %q, %v", tt.text, path, ok)
		}
	}
}

func TestHistoryLineAndReload(t *testing.T) {
	m, ctl := newTestModel()
	m = send(t, m, HistoryMsg{History: []shopping.HistoryEntry{
		{ItemName: "milk", Frequency: 5},
		{ItemName: "bread", Frequency: 3},
	}})
	if view := m.View(); !strings.Contains(view, "Recent: milk ×5, bread ×3") {
		t.Errorf("history not rendered:\n%s", view)
	}
	send(t, m, keyMsg("ctrl+o"))
	if got := ctl.log(); len(got) != 1 || got[0] != "history" {
		t.Errorf("calls = %v", got)
	}
}
