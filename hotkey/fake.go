package hotkey

// FakeHotkey is driven by the test through Press and Release.
type FakeHotkey struct {
	keydown    chan struct{}
	keyup      chan struct{}
	registered chan struct{}
	err        error
}

func NewFake() *FakeHotkey {
	return &FakeHotkey{
		keydown:    make(chan struct{}, 1),
		keyup:      make(chan struct{}, 1),
		registered: make(chan struct{}, 1),
	}
}

// FailRegister makes Register return err.
func (f *FakeHotkey) FailRegister(err error) { f.err = err }

func (f *FakeHotkey) Register() error {
	if f.err != nil {
		return f.err
	}
	select {
	case f.registered <- struct{}{}:
	default:
	}
	return nil
}

func (f *FakeHotkey) Unregister()              {}
func (f *FakeHotkey) Keydown() <-chan struct{} { return f.keydown }
func (f *FakeHotkey) Keyup() <-chan struct{}   { return f.keyup }

// Registered is signalled once Register succeeded.
func (f *FakeHotkey) Registered() <-chan struct{} { return f.registered }

func (f *FakeHotkey) Press()   { f.keydown <- struct{}{} }
func (f *FakeHotkey) Release() { f.keyup <- struct{}{} }
