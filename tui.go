package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"shopvox/api"
	"shopvox/clipboard"
	"shopvox/hotkey"
	"shopvox/shopping"
	"shopvox/voice"
)

// controller is what the TUI asks of the voice pipeline.
type controller interface {
	ToggleRecording() error
	Confirm(ctx context.Context) error
	Edit() bool
	Cancel() bool
	SubmitText(ctx context.Context, text string) error
	AddSuggestion(ctx context.Context, s shopping.Suggestion) error
	RemoveItem(ctx context.Context, id shopping.ItemID) error
	CompleteItem(ctx context.Context, id shopping.ItemID) error
	UpdateQuantity(ctx context.Context, id shopping.ItemID, quantity float64) error
	LoadSuggestions(ctx context.Context) error
	LoadHistory(ctx context.Context) error
	UploadDataset(ctx context.Context, path string) (api.DatasetResult, error)
	NextLanguage()
	Busy() bool
}

type tickMsg time.Time

type focus int

const (
	focusInput focus = iota
	focusList
	focusSuggestions
	focusCount
)

type tuiModel struct {
	ctl   controller
	input textinput.Model
	focus focus

	items       []shopping.Item
	suggestions []shopping.Suggestion
	history     []shopping.HistoryEntry
	languages   []voice.Language
	language    string
	listCursor  int
	suggCursor  int

	recording      bool
	recordingStart time.Time
	interim        string
	pending        string // transcript awaiting confirmation
	processing     string // last interpreted command
	busy           bool
	banner         string
	notice         string
	status         string
	pushToTalk     bool

	frame         int
	width, height int
}

var categoryEmoji = map[string]string{
	"dairy":     "🥛",
	"produce":   "🥬",
	"meat":      "🥩",
	"snacks":    "🍪",
	"beverages": "🥤",
	"pantry":    "🍞",
	"bakery":    "🥖",
	"frozen":    "🧊",
	"household": "🧻",
}

var suggestionIcon = map[string]string{
	"history_based": "📊",
	"seasonal":      "🌱",
	"substitute":    "🔄",
	"apriori":       "🔗",
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	helpKeyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	recStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	busyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	interimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	cursorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("51")).Bold(true)
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("246")).Bold(true)
	bannerStyle  = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Background(lipgloss.Color("124")).
			Padding(0, 1)
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 1)
	noticeBoxStyle = boxStyle.BorderForeground(lipgloss.Color("208"))
)

func newTUIModel(ctl controller, language string, pushToTalk bool) tuiModel {
	ti := textinput.New()
	ti.Placeholder = `Type a command, e.g. "add 2 liters of milk"`
	ti.Prompt = "› "
	ti.CharLimit = 200
	ti.Focus()
	return tuiModel{ctl: ctl, input: ti, language: language, pushToTalk: pushToTalk}
}

func tuiTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, tuiTick())
}

// do runs a pipeline call off the UI goroutine. Results arrive as sink
// messages.
func do(fn func()) tea.Cmd {
	return func() tea.Msg {
		fn()
		return nil
	}
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = max(20, msg.Width-6)
		return m, nil

	case tickMsg:
		m.frame++
		return m, tuiTick()

	case tea.KeyMsg:
		return m.handleKey(msg)

	case RecordingMsg:
		m.recording = msg.On
		if msg.On {
			m.recordingStart = time.Now()
			m.banner = ""
		}
		m.interim = ""
	case InterimMsg:
		m.interim = msg.Text
	case ConfirmationMsg:
		m.pending = msg.Text
	case InputReplacedMsg:
		m.input.SetValue(msg.Text)
		m.input.CursorEnd()
		cmd := m.setFocus(focusInput)
		return m, cmd
	case CommandMsg:
		m.processing = msg.Command.Label()
	case ListMsg:
		m.items = msg.Items
		m.listCursor = clamp(m.listCursor, len(m.items))
	case SuggestionsMsg:
		m.suggestions = msg.Suggestions
		m.suggCursor = clamp(m.suggCursor, len(m.suggestions))
	case HistoryMsg:
		m.history = msg.History
	case LanguagesMsg:
		m.languages = msg.Languages
		m.language = msg.Current
	case BusyMsg:
		m.busy = msg.Busy
	case ErrorMsg:
		m.banner = msg.Text
	case NoticeMsg:
		m.notice = msg.Text
	case StatusMsg:
		m.status = msg.Text
	}

	if m.focus == focusInput {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m, tea.Quit
	}

	// blocking notice
	if m.notice != "" {
		if key == "enter" || key == "esc" {
			m.notice = ""
		}
		return m, nil
	}

	if m.pending != "" {
		switch key {
		case "y", "enter":
			m.pending = ""
			return m, do(func() { m.ctl.Confirm(context.Background()) })
		case "e":
			m.pending = ""
			return m, do(func() { m.ctl.Edit() })
		case "n", "esc":
			m.pending = ""
			return m, do(func() { m.ctl.Cancel() })
		}
		return m, nil
	}

	switch key {
	case "esc":
		if m.banner != "" {
			m.banner = ""
			return m, nil
		}
	case "ctrl+r":
		return m, do(func() { m.ctl.ToggleRecording() })
	case "ctrl+l":
		return m, do(m.ctl.NextLanguage)
	case "ctrl+s":
		return m, do(func() { m.ctl.LoadSuggestions(context.Background()) })
	case "ctrl+o":
		return m, do(func() { m.ctl.LoadHistory(context.Background()) })
	case "ctrl+y":
		items := m.items
		return m, func() tea.Msg {
			if _, err := clipboard.CopyList(items); err != nil {
				return ErrorMsg{Text: "Could not copy the list: " + err.Error()}
			}
			return StatusMsg{Text: fmt.Sprintf("Copied %d item(s) to the clipboard", len(items))}
		}
	case "tab":
		cmd := m.setFocus((m.focus + 1) % focusCount)
		return m, cmd
	case "shift+tab":
		cmd := m.setFocus((m.focus + focusCount - 1) % focusCount)
		return m, cmd
	}

	switch m.focus {
	case focusInput:
		if key == "enter" {
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.busy {
				return m, nil
			}
			m.input.Reset()
			if path, ok := uploadPath(text); ok {
				return m, do(func() { m.ctl.UploadDataset(context.Background(), path) })
			}
			return m, do(func() { m.ctl.SubmitText(context.Background(), text) })
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case focusList:
		return m.handleListKey(key)

	case focusSuggestions:
		switch key {
		case "up", "k":
			m.suggCursor = clamp(m.suggCursor-1, len(m.suggestions))
		case "down", "j":
			m.suggCursor = clamp(m.suggCursor+1, len(m.suggestions))
		case "enter":
			if m.busy || len(m.suggestions) == 0 {
				return m, nil
			}
			s := m.suggestions[m.suggCursor]
			return m, do(func() { m.ctl.AddSuggestion(context.Background(), s) })
		}
	}
	return m, nil
}

func (m tuiModel) handleListKey(key string) (tea.Model, tea.Cmd) {
	order := displayOrder(m.items)
	switch key {
	case "up", "k":
		m.listCursor = clamp(m.listCursor-1, len(order))
		return m, nil
	case "down", "j":
		m.listCursor = clamp(m.listCursor+1, len(order))
		return m, nil
	}
	if m.busy || len(order) == 0 {
		return m, nil
	}

	it := order[m.listCursor]
	ctx := context.Background()
	switch key {
	case "d", "delete":
		return m, do(func() { m.ctl.RemoveItem(ctx, it.ID) })
	case "c":
		return m, do(func() { m.ctl.CompleteItem(ctx, it.ID) })
	case "+", "=":
		return m, do(func() { m.ctl.UpdateQuantity(ctx, it.ID, currentQuantity(it)+1) })
	case "-":
		return m, do(func() { m.ctl.UpdateQuantity(ctx, it.ID, currentQuantity(it)-1) })
	}
	return m, nil
}

// uploadPath recognizes "/upload FILE" typed into the input.
func uploadPath(text string) (string, bool) {
	rest, ok := strings.CutPrefix(text, "/upload")
	if !ok || rest != "" && rest[0] != ' ' {
		return "", false
	}
	rest = strings.TrimSpace(rest)
	return rest, rest != ""
}

// An item without a quantity counts as one.
func currentQuantity(it shopping.Item) float64 {
	if it.Quantity <= 0 {
		return 1
	}
	return it.Quantity
}

func (m *tuiModel) setFocus(f focus) tea.Cmd {
	m.focus = f
	if f == focusInput {
		return m.input.Focus()
	}
	m.input.Blur()
	return nil
}

// displayOrder is the order items are drawn in: grouped by category.
func displayOrder(items []shopping.Item) []shopping.Item {
	var out []shopping.Item
	for _, g := range shopping.GroupByCategory(items) {
		out = append(out, g.Items...)
	}
	return out
}

func clamp(i, n int) int {
	if n == 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func emojiFor(category string) string {
	if e, ok := categoryEmoji[strings.ToLower(category)]; ok {
		return e
	}
	return "📦"
}

func (m tuiModel) View() string {
	var b strings.Builder

	b.WriteString(m.headerLine())
	b.WriteString("\n\n")

	if m.banner != "" {
		b.WriteString(bannerStyle.Render("⚠ "+m.banner) + dimStyle.Render("  (esc to dismiss)"))
		b.WriteString("\n\n")
	}

	if m.notice != "" {
		b.WriteString(noticeBoxStyle.Render(m.notice + "\n\n" + dimStyle.Render("enter to continue")))
		b.WriteString("\n\n")
	}

	if m.pending != "" {
		prompt := fmt.Sprintf("Heard: %q\n\n", m.pending) +
			helpKeyStyle.Render("y") + helpStyle.Render(" confirm  ") +
			helpKeyStyle.Render("e") + helpStyle.Render(" edit  ") +
			helpKeyStyle.Render("n") + helpStyle.Render(" cancel")
		b.WriteString(boxStyle.Render(prompt))
		b.WriteString("\n\n")
	} else if m.recording && m.interim != "" {
		b.WriteString(interimStyle.Render("… " + m.interim))
		b.WriteString("\n\n")
	}

	b.WriteString(m.input.View())
	b.WriteString("\n")
	if m.processing != "" {
		b.WriteString(dimStyle.Render("Processing: " + m.processing))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(m.listView())
	b.WriteString("\n")
	b.WriteString(m.suggestionsView())
	if h := m.historyLine(); h != "" {
		b.WriteString(h)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.status != "" {
		b.WriteString(dimStyle.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(m.helpLine())
	return b.String()
}

func (m tuiModel) headerLine() string {
	title := titleStyle.Render("🛒 Shopping List")
	lang := dimStyle.Render("[" + m.languageName() + "]")

	var state string
	switch {
	case m.recording:
		dot := "●"
		if m.frame/5%2 == 1 {
			dot = "○"
		}
		state = recStyle.Render(fmt.Sprintf("%s REC %.1fs", dot, time.Since(m.recordingStart).Seconds()))
	case m.busy:
		state = busyStyle.Render("⏳ working…")
	default:
		state = dimStyle.Render("○ ready")
	}
	return title + "  " + lang + "  " + state
}

func (m tuiModel) languageName() string {
	for _, l := range m.languages {
		if l.Code == m.language {
			return l.Name
		}
	}
	return m.language
}

func (m tuiModel) listView() string {
	var b strings.Builder
	b.WriteString(m.sectionTitle("Items", focusList, len(m.items)))
	b.WriteString("\n")
	if len(m.items) == 0 {
		b.WriteString(dimStyle.Render("  No items yet. Add some using voice commands!"))
		b.WriteString("\n")
		return b.String()
	}

	idx := 0
	for _, g := range shopping.GroupByCategory(m.items) {
		b.WriteString(headerStyle.Render(fmt.Sprintf("  %s %s (%d)", emojiFor(g.Category), g.Category, len(g.Items))))
		b.WriteString("\n")
		for _, it := range g.Items {
			line := "    " + it.Name
			if q := it.QuantityLabel(); q != "" {
				line += dimStyle.Render("  × " + q)
			}
			if m.focus == focusList && idx == m.listCursor {
				line = cursorStyle.Render("  ▶ ") + it.Name
				if q := it.QuantityLabel(); q != "" {
					line += dimStyle.Render("  × " + q)
				}
			}
			b.WriteString(line)
			b.WriteString("\n")
			idx++
		}
	}
	return b.String()
}

func (m tuiModel) suggestionsView() string {
	var b strings.Builder
	b.WriteString(m.sectionTitle("Suggestions", focusSuggestions, len(m.suggestions)))
	b.WriteString("\n")
	if len(m.suggestions) == 0 {
		b.WriteString(dimStyle.Render("  No suggestions right now"))
		b.WriteString("\n")
		return b.String()
	}
	for i, s := range m.suggestions {
		icon, ok := suggestionIcon[s.Type]
		if !ok {
			icon = "💡"
		}
		prefix := "    "
		if m.focus == focusSuggestions && i == m.suggCursor {
			prefix = cursorStyle.Render("  ▶ ")
		}
		b.WriteString(prefix + icon + " " + s.Item)
		if s.Reason != "" {
			b.WriteString(dimStyle.Render("  " + s.Reason))
		}
		b.WriteString("\n")
	}
	return b.String()
}

const historyShown = 5

func (m tuiModel) historyLine() string {
	if len(m.history) == 0 {
		return ""
	}
	var parts []string
	for i, e := range m.history {
		if i == historyShown {
			break
		}
		parts = append(parts, fmt.Sprintf("%s ×%d", e.ItemName, e.Frequency))
	}
	return dimStyle.Render("  Recent: " + strings.Join(parts, ", "))
}

func (m tuiModel) sectionTitle(name string, f focus, n int) string {
	style := headerStyle
	if m.focus == f {
		style = cursorStyle
	}
	return style.Render(fmt.Sprintf("%s (%d)", name, n))
}

func (m tuiModel) helpLine() string {
	var parts []string
	add := func(key, what string) {
		parts = append(parts, helpKeyStyle.Render(key)+helpStyle.Render(" "+what))
	}
	add("ctrl+r", "record")
	if m.pushToTalk {
		add(hotkey.Combo, "push-to-talk")
	}
	add("tab", "focus")
	switch m.focus {
	case focusList:
		add("d", "remove")
		add("c", "done")
		add("+/-", "qty")
	case focusSuggestions:
		add("enter", "add")
	default:
		add("enter", "send")
	}
	add("ctrl+o", "history")
	add("ctrl+l", "language")
	add("ctrl+y", "copy")
	add("ctrl+c", "quit")
	return strings.Join(parts, helpStyle.Render("  "))
}
