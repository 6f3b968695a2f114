package voice

import "shopvox/shopping"

// Sink receives pipeline state changes. Methods may be called from any
// goroutine.
type Sink interface {
	RecordingChanged(recording bool)
	Interim(text string)
	ConfirmationRequested(transcript string)
	InputReplaced(text string)
	// CommandInterpreted reports what the interpreter made of a submitted
	// text, before the list changes.
	CommandInterpreted(cmd shopping.Command)
	ListChanged(items []shopping.Item)
	SuggestionsChanged(suggestions []shopping.Suggestion)
	HistoryChanged(history []shopping.HistoryEntry)
	LanguagesChanged(languages []Language, current string)
	BusyChanged(busy bool)
	// Error is a dismissible banner.
	Error(msg string)
	// Notice blocks the UI until acknowledged.
	Notice(msg string)
}

type Language struct {
	Code string
	Name string
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) RecordingChanged(bool)                    {}
func (NopSink) Interim(string)                           {}
func (NopSink) ConfirmationRequested(string)             {}
func (NopSink) InputReplaced(string)                     {}
func (NopSink) CommandInterpreted(shopping.Command)      {}
func (NopSink) ListChanged([]shopping.Item)              {}
func (NopSink) SuggestionsChanged([]shopping.Suggestion) {}
func (NopSink) HistoryChanged([]shopping.HistoryEntry)   {}
func (NopSink) LanguagesChanged([]Language, string)      {}
func (NopSink) BusyChanged(bool)                         {}
func (NopSink) Error(string)                             {}
func (NopSink) Notice(string)                            {}
