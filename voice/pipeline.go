package voice

import (
	"context"
	"errors"
	"io"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"shopvox/api"
	"shopvox/dispatch"
	"shopvox/log"
	"shopvox/shopping"
	"shopvox/speech"
)

// Backend is everything the pipeline needs from the server.
type Backend interface {
	dispatch.Backend
	Suggestions(ctx context.Context) ([]shopping.Suggestion, error)
	Languages(ctx context.Context) (map[string]string, error)
	History(ctx context.Context) ([]shopping.HistoryEntry, error)
	UploadDataset(ctx context.Context, filename string, r io.Reader) (api.DatasetResult, error)
}

type Config struct {
	Recognizer speech.Recognizer
	Backend    Backend
	Store      *shopping.Store
	Language   string
	Sink       Sink
}

// Pipeline owns the one speech Session of the application, the
// confirmation Flow and the Dispatcher.
type Pipeline struct {
	backend    Backend
	sink       Sink
	session    *speech.Session
	flow       *Flow
	dispatcher *dispatch.Dispatcher

	// mu orders recording starts against transcripts entering the flow.
	mu        sync.Mutex
	langMu    sync.Mutex
	lang      string
	languages []Language
	commands  atomic.Int64
}

func New(cfg Config) *Pipeline {
	sink := cfg.Sink
	if sink == nil {
		sink = NopSink{}
	}
	store := cfg.Store
	if store == nil {
		store = shopping.NewStore()
	}

	p := &Pipeline{
		backend:    cfg.Backend,
		sink:       sink,
		lang:       cfg.Language,
		dispatcher: dispatch.New(cfg.Backend, store),
	}
	p.dispatcher.SetLanguage(cfg.Language)
	p.dispatcher.OnBusyChange(sink.BusyChanged)
	p.flow = NewFlow(func(ctx context.Context, text string) error {
		log.CommandText("voice", text)
		return p.submit(ctx, text)
	})
	p.session = speech.NewSession(cfg.Recognizer, cfg.Language, speech.Events{
		OnSessionStart:    func() { sink.RecordingChanged(true) },
		OnInterim:         sink.Interim,
		OnFinalTranscript: sink.Interim,
		OnSessionEnd:      p.sessionEnded,
	})
	return p
}

// StartRecording begins a speech session. It is refused while a transcript
// is waiting for confirmation.
func (p *Pipeline) StartRecording() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, pending := p.flow.Pending(); pending {
		p.sink.Error(ErrConfirmationPending.Error())
		return ErrConfirmationPending
	}
	err := p.session.Start(context.Background())
	switch {
	case err == nil, errors.Is(err, speech.ErrAlreadyRecording):
	case errors.Is(err, speech.ErrCapabilityUnavailable):
		p.sink.Notice(fmt.Sprintf("Voice input is unavailable (%v). Type your commands instead.", err))
	default:
		p.report(err)
	}
	return err
}

func (p *Pipeline) StopRecording() { p.session.Stop() }

func (p *Pipeline) ToggleRecording() error {
	if p.session.Active() {
		p.session.Stop()
		return nil
	}
	return p.StartRecording()
}

func (p *Pipeline) Recording() bool { return p.session.Active() }

func (p *Pipeline) sessionEnded(transcript string, err error) {
	p.sink.RecordingChanged(false)
	if err != nil {
		p.report(err)
	}
	if transcript == "" {
		return
	}

	p.mu.Lock()
	offered := p.flow.Offer(transcript)
	p.mu.Unlock()
	if offered {
		p.sink.ConfirmationRequested(transcript)
	}
}

// Pending returns the transcript awaiting confirmation.
func (p *Pipeline) Pending() (string, bool) { return p.flow.Pending() }

func (p *Pipeline) Confirm(ctx context.Context) error {
	return p.flow.Confirm(ctx)
}

// Edit moves the pending transcript into the text input.
func (p *Pipeline) Edit() bool {
	text, ok := p.flow.Edit()
	if ok {
		p.sink.InputReplaced(text)
	}
	return ok
}

func (p *Pipeline) Cancel() bool { return p.flow.Cancel() }

// SubmitText dispatches typed text.
func (p *Pipeline) SubmitText(ctx context.Context, text string) error {
	log.CommandText("typed", text)
	return p.submit(ctx, text)
}

func (p *Pipeline) submit(ctx context.Context, text string) error {
	res, err := p.dispatcher.Submit(ctx, text)
	if res.Command.Known() && res.Command.ItemName != "" {
		p.sink.CommandInterpreted(res.Command)
	}
	if err != nil {
		p.report(err)
		return err
	}
	if res.Action == dispatch.ActionNone {
		return nil
	}
	p.commands.Add(1)
	if res.Action == dispatch.ActionAdded || res.Action == dispatch.ActionRemoved {
		p.listChanged(ctx)
	}
	return nil
}

// AddSuggestion puts a suggested item on the list.
func (p *Pipeline) AddSuggestion(ctx context.Context, s shopping.Suggestion) error {
	_, err := p.dispatcher.AddItem(ctx, api.AddRequest{ItemName: s.Item, Category: s.Category, Quantity: 1})
	return p.afterAction(ctx, err)
}

func (p *Pipeline) RemoveItem(ctx context.Context, id shopping.ItemID) error {
	return p.afterAction(ctx, p.dispatcher.RemoveItem(ctx, id))
}

func (p *Pipeline) CompleteItem(ctx context.Context, id shopping.ItemID) error {
	return p.afterAction(ctx, p.dispatcher.CompleteItem(ctx, id))
}

func (p *Pipeline) UpdateQuantity(ctx context.Context, id shopping.ItemID, quantity float64) error {
	return p.afterAction(ctx, p.dispatcher.UpdateQuantity(ctx, id, quantity))
}

func (p *Pipeline) afterAction(ctx context.Context, err error) error {
	if err != nil {
		p.report(err)
		return err
	}
	p.listChanged(ctx)
	return nil
}

func (p *Pipeline) listChanged(ctx context.Context) {
	p.sink.ListChanged(p.dispatcher.Items())
	p.LoadSuggestions(ctx)
}

func (p *Pipeline) Items() []shopping.Item { return p.dispatcher.Items() }

func (p *Pipeline) Busy() bool { return p.dispatcher.Busy() }

// Refresh reloads the list from the server.
func (p *Pipeline) Refresh(ctx context.Context) error {
	if err := p.refresh(ctx); err != nil {
		p.report(err)
		return err
	}
	return nil
}

func (p *Pipeline) refresh(ctx context.Context) error {
	items, err := p.dispatcher.Refresh(ctx)
	if err != nil {
		return err
	}
	p.sink.ListChanged(items)
	return nil
}

func (p *Pipeline) LoadSuggestions(ctx context.Context) error {
	if err := p.loadSuggestions(ctx); err != nil {
		p.report(err)
		return err
	}
	return nil
}

func (p *Pipeline) loadSuggestions(ctx context.Context) error {
	s, err := p.backend.Suggestions(ctx)
	if err != nil {
		return err
	}
	p.sink.SuggestionsChanged(s)
	return nil
}

// LoadHistory fetches the purchase history behind history-based
// suggestions.
func (p *Pipeline) LoadHistory(ctx context.Context) error {
	if err := p.loadHistory(ctx); err != nil {
		p.report(err)
		return err
	}
	return nil
}

func (p *Pipeline) loadHistory(ctx context.Context) error {
	h, err := p.backend.History(ctx)
	if err != nil {
		return err
	}
	p.sink.HistoryChanged(h)
	return nil
}

// UploadDataset sends the transaction file at path to train association
// rules, then reloads suggestions. The result is shown as a notice.
func (p *Pipeline) UploadDataset(ctx context.Context, path string) (api.DatasetResult, error) {
	f, err := os.Open(path)
	if err != nil {
		p.report(err)
		return api.DatasetResult{}, err
	}
	defer f.Close()

	name := filepath.Base(path)
	res, err := p.backend.UploadDataset(ctx, name, f)
	if err != nil {
		p.report(err)
		return api.DatasetResult{}, err
	}
	log.DatasetUploaded(name, res.RulesCount)
	p.sink.Notice(fmt.Sprintf("%s (%d rules)", res.Message, res.RulesCount))
	p.LoadSuggestions(ctx)
	return res, nil
}

func (p *Pipeline) LoadLanguages(ctx context.Context) error {
	if err := p.loadLanguages(ctx); err != nil {
		p.report(err)
		return err
	}
	return nil
}

func (p *Pipeline) loadLanguages(ctx context.Context) error {
	m, err := p.backend.Languages(ctx)
	if err != nil {
		return err
	}
	langs := make([]Language, 0, len(m))
	for code, name := range m {
		langs = append(langs, Language{Code: code, Name: name})
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i].Code < langs[j].Code })

	p.langMu.Lock()
	p.languages = langs
	current := p.lang
	p.langMu.Unlock()
	p.sink.LanguagesChanged(langs, current)
	return nil
}

// Bootstrap loads the list, the language table, suggestions and purchase
// history concurrently. Only the first failure is reported.
func (p *Pipeline) Bootstrap(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return p.refresh(ctx) })
	g.Go(func() error { return p.loadLanguages(ctx) })
	g.Go(func() error { return p.loadSuggestions(ctx) })
	g.Go(func() error { return p.loadHistory(ctx) })
	if err := g.Wait(); err != nil {
		p.report(err)
		return err
	}
	return nil
}

// SetLanguage selects the language for the next recording and for
// interpreter hints. A recording in progress keeps its language.
func (p *Pipeline) SetLanguage(code string) {
	p.langMu.Lock()
	if code == p.lang {
		p.langMu.Unlock()
		return
	}
	p.lang = code
	langs := p.languages
	p.langMu.Unlock()

	p.session.SetLanguage(code)
	p.dispatcher.SetLanguage(code)
	log.Info("language set to " + code)
	p.sink.LanguagesChanged(langs, code)
}

// NextLanguage cycles through the server's language table.
func (p *Pipeline) NextLanguage() {
	p.langMu.Lock()
	langs, current := p.languages, p.lang
	p.langMu.Unlock()
	if len(langs) == 0 {
		return
	}
	next := langs[0].Code
	for i, l := range langs {
		if l.Code == current {
			next = langs[(i+1)%len(langs)].Code
			break
		}
	}
	p.SetLanguage(next)
}

func (p *Pipeline) Language() string {
	p.langMu.Lock()
	defer p.langMu.Unlock()
	return p.lang
}

// Close releases the speech session. The pipeline is unusable afterwards.
func (p *Pipeline) Close() error {
	err := p.session.Close()
	log.SessionEnd(int(p.commands.Load()))
	return err
}

func (p *Pipeline) report(err error) {
	log.Errorf("%v", err)
	p.sink.Error(Describe(err))
}

// Describe turns an error into the single message shown to the user.
func Describe(err error) string {
	var ne *api.NetworkError
	var re *speech.RecognitionError
	switch {
	case errors.As(err, &ne):
		if ne.Status == 0 {
			return fmt.Sprintf("Could not reach the server (%s). Please try again.", ne.Op)
		}
		return fmt.Sprintf("Failed to %s: %v", ne.Op, ne.Err)
	case errors.As(err, &re):
		return fmt.Sprintf("Speech recognition failed (%s). Please try again or type the command.", re.Code)
	default:
		return err.Error()
	}
}
