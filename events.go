package main

import (
	tea "github.com/charmbracelet/bubbletea"

	"shopvox/shopping"
	"shopvox/voice"
)

// Pipeline events as Bubble Tea messages.
type RecordingMsg struct{ On bool }
type InterimMsg struct{ Text string }
type ConfirmationMsg struct{ Text string }
type InputReplacedMsg struct{ Text string }
type CommandMsg struct{ Command shopping.Command }
type ListMsg struct{ Items []shopping.Item }
type SuggestionsMsg struct{ Suggestions []shopping.Suggestion }
type HistoryMsg struct{ History []shopping.HistoryEntry }
type LanguagesMsg struct {
	Languages []voice.Language
	Current   string
}
type BusyMsg struct{ Busy bool }
type ErrorMsg struct{ Text string }
type NoticeMsg struct{ Text string }
type StatusMsg struct{ Text string } // transient footer text

// teaSink forwards pipeline events to the running program. Sends happen
// on pipeline goroutines, never inside Update.
type teaSink struct {
	send func(tea.Msg)
}

func (s teaSink) RecordingChanged(on bool) {
	s.send(RecordingMsg{On: on})
}

func (s teaSink) Interim(text string) {
	s.send(InterimMsg{Text: text})
}

func (s teaSink) ConfirmationRequested(text string) {
	s.send(ConfirmationMsg{Text: text})
}

func (s teaSink) InputReplaced(text string) {
	s.send(InputReplacedMsg{Text: text})
}

func (s teaSink) CommandInterpreted(cmd shopping.Command) {
	s.send(CommandMsg{Command: cmd})
}

func (s teaSink) ListChanged(items []shopping.Item) {
	s.send(ListMsg{Items: items})
}

func (s teaSink) SuggestionsChanged(sugg []shopping.Suggestion) {
	s.send(SuggestionsMsg{Suggestions: sugg})
}

func (s teaSink) HistoryChanged(h []shopping.HistoryEntry) {
	s.send(HistoryMsg{History: h})
}

func (s teaSink) LanguagesChanged(langs []voice.Language, current string) {
	s.send(LanguagesMsg{Languages: langs, Current: current})
}

func (s teaSink) BusyChanged(busy bool) {
	s.send(BusyMsg{Busy: busy})
}

func (s teaSink) Error(msg string) {
	s.send(ErrorMsg{Text: msg})
}

func (s teaSink) Notice(msg string) {
	s.send(NoticeMsg{Text: msg})
}
