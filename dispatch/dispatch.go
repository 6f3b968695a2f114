// Package dispatch turns free text and list actions into backend calls and
// reconciles the results into the local list.
package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"shopvox/api"
	"shopvox/log"
	"shopvox/shopping"
)

// ErrNoMatch means a remove command named nothing on the list. It is never
// shown to the user.
var ErrNoMatch = errors.New("no matching item")

type Interpreter interface {
	Interpret(ctx context.Context, text, lang string) (shopping.Command, error)
}

type ListService interface {
	List(ctx context.Context) ([]shopping.Item, error)
	Add(ctx context.Context, req api.AddRequest) (shopping.Item, error)
	Remove(ctx context.Context, id shopping.ItemID) error
	Complete(ctx context.Context, id shopping.ItemID) error
	Update(ctx context.Context, id shopping.ItemID, req api.UpdateRequest) (shopping.Item, error)
}

type Backend interface {
	Interpreter
	ListService
}

type Action int

const (
	ActionNone Action = iota
	ActionAdded
	ActionRemoved
	ActionNoMatch
	ActionUnrecognized
)

func (a Action) String() string {
	switch a {
	case ActionAdded:
		return "added"
	case ActionRemoved:
		return "removed"
	case ActionNoMatch:
		return "no-match"
	case ActionUnrecognized:
		return "unrecognized"
	default:
		return "none"
	}
}

// Result describes what one submitted text did.
type Result struct {
	Command shopping.Command
	Action  Action
	Item    shopping.Item
}

// Dispatcher runs one mutation at a time, so responses are applied in the
// order the calls were made.
type Dispatcher struct {
	backend Backend
	store   *shopping.Store

	mu      sync.Mutex
	pending atomic.Int32
	lang    atomic.Value
	onBusy  atomic.Pointer[func(bool)]

	// busyMu orders busy notifications; busySent is the last value sent.
	busyMu   sync.Mutex
	busySent bool
}

func New(backend Backend, store *shopping.Store) *Dispatcher {
	d := &Dispatcher{backend: backend, store: store}
	d.lang.Store("")
	return d
}

// SetLanguage sets the hint sent to the interpreter.
func (d *Dispatcher) SetLanguage(lang string) { d.lang.Store(lang) }

func (d *Dispatcher) language() string { return d.lang.Load().(string) }

// OnBusyChange registers fn to be called when the first mutation starts and
// when the last one finishes.
func (d *Dispatcher) OnBusyChange(fn func(busy bool)) { d.onBusy.Store(&fn) }

// Busy reports whether any mutation is running or queued.
func (d *Dispatcher) Busy() bool { return d.pending.Load() > 0 }

func (d *Dispatcher) Items() []shopping.Item { return d.store.Snapshot() }

func (d *Dispatcher) begin() {
	d.pending.Add(1)
	d.notifyBusy()
	d.mu.Lock()
}

func (d *Dispatcher) end() {
	d.mu.Unlock()
	d.pending.Add(-1)
	d.notifyBusy()
}

// notifyBusy sends the current busy state, not the transition that
// triggered the call, so a late notification can never overwrite a newer one.
func (d *Dispatcher) notifyBusy() {
	d.busyMu.Lock()
	defer d.busyMu.Unlock()
	busy := d.Busy()
	if busy == d.busySent {
		return
	}
	d.busySent = busy
	if fn := d.onBusy.Load(); fn != nil {
		(*fn)(busy)
	}
}

// Submit interprets text and applies the resulting command. Blank text is
// ignored without a network call. On error the local list is unchanged.
func (d *Dispatcher) Submit(ctx context.Context, text string) (Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, nil
	}

	d.begin()
	defer d.end()

	cmd, err := d.backend.Interpret(ctx, text, d.language())
	if err != nil {
		return Result{}, err
	}
	res := Result{Command: cmd}

	if !cmd.Known() || strings.TrimSpace(cmd.ItemName) == "" {
		log.CommandUnrecognized(string(cmd.Kind), text)
		res.Action = ActionUnrecognized
		return res, nil
	}
	log.Command(string(cmd.Kind), cmd.ItemName, cmd.Quantity, cmd.Unit)

	switch cmd.Kind {
	case shopping.CommandAdd:
		item, err := d.add(ctx, api.AddRequest{
			ItemName: cmd.ItemName,
			Category: cmd.Category,
			Quantity: cmd.Quantity,
			Unit:     cmd.Unit,
		})
		if err != nil {
			return res, err
		}
		res.Action, res.Item = ActionAdded, item

	case shopping.CommandRemove:
		item, err := d.removeByName(ctx, cmd.ItemName)
		if errors.Is(err, ErrNoMatch) {
			res.Action = ActionNoMatch
			return res, nil
		}
		if err != nil {
			return res, err
		}
		res.Action, res.Item = ActionRemoved, item
	}
	return res, nil
}

// AddItem adds directly, bypassing the interpreter.
func (d *Dispatcher) AddItem(ctx context.Context, req api.AddRequest) (shopping.Item, error) {
	d.begin()
	defer d.end()
	return d.add(ctx, req)
}

// RemoveItem deletes id. An id no longer on the list is a no-op.
func (d *Dispatcher) RemoveItem(ctx context.Context, id shopping.ItemID) error {
	d.begin()
	defer d.end()
	return d.remove(ctx, id)
}

// CompleteItem marks id purchased; completed items leave the list.
func (d *Dispatcher) CompleteItem(ctx context.Context, id shopping.ItemID) error {
	d.begin()
	defer d.end()

	if _, ok := d.store.Get(id); !ok {
		return nil
	}
	if err := d.backend.Complete(ctx, id); err != nil {
		return err
	}
	d.store.Remove(id)
	return nil
}

// UpdateQuantity stores a new quantity. Anything below 1 removes the item.
func (d *Dispatcher) UpdateQuantity(ctx context.Context, id shopping.ItemID, quantity float64) error {
	d.begin()
	defer d.end()

	if quantity < 1 {
		return d.remove(ctx, id)
	}
	if _, ok := d.store.Get(id); !ok {
		return nil
	}
	item, err := d.backend.Update(ctx, id, api.UpdateRequest{Quantity: &quantity})
	if err != nil {
		return err
	}
	d.store.Apply(item)
	return nil
}

// Refresh replaces the local list with the server's.
func (d *Dispatcher) Refresh(ctx context.Context) ([]shopping.Item, error) {
	d.begin()
	defer d.end()

	items, err := d.backend.List(ctx)
	if err != nil {
		return nil, err
	}
	return d.store.Replace(items), nil
}

func (d *Dispatcher) add(ctx context.Context, req api.AddRequest) (shopping.Item, error) {
	item, err := d.backend.Add(ctx, req)
	if err != nil {
		return shopping.Item{}, err
	}
	d.store.Apply(item)
	return item, nil
}

func (d *Dispatcher) removeByName(ctx context.Context, name string) (shopping.Item, error) {
	items := d.store.Snapshot()
	item, ok := shopping.FindByName(items, name)
	if !ok {
		log.RemoveNoMatch(name, len(items))
		return shopping.Item{}, ErrNoMatch
	}
	if err := d.backend.Remove(ctx, item.ID); err != nil {
		return shopping.Item{}, err
	}
	d.store.Remove(item.ID)
	return item, nil
}

func (d *Dispatcher) remove(ctx context.Context, id shopping.ItemID) error {
	if _, ok := d.store.Get(id); !ok {
		return nil
	}
	if err := d.backend.Remove(ctx, id); err != nil {
		return err
	}
	d.store.Remove(id)
	return nil
}
