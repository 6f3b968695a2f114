// Package hotkey provides the global Ctrl+Shift+Space push-to-talk key.
package hotkey

// Hotkey delivers press and release of the push-to-talk combination.
type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

const Combo = "Ctrl+Shift+Space"
