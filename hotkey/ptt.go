package hotkey

import (
	"context"
	"sync/atomic"
	"time"
)

type Mode string

const (
	ModeIdle   Mode = "idle"
	ModePTT    Mode = "ptt"
	ModeToggle Mode = "toggle"
)

// DefaultLongPress separates a tap from a hold.
const DefaultLongPress = 350 * time.Millisecond

// Recorder is the part of the voice pipeline the hotkey drives.
type Recorder interface {
	StartRecording() error
	StopRecording()
}

// PushToTalk turns the hotkey into recording commands. Holding the combo
// records until release; a short tap starts a recording that the next
// press ends.
type PushToTalk struct {
	hk        Hotkey
	rec       Recorder
	longPress time.Duration
	mode      atomic.Value
}

func NewPushToTalk(hk Hotkey, rec Recorder, longPress time.Duration) *PushToTalk {
	if longPress <= 0 {
		longPress = DefaultLongPress
	}
	p := &PushToTalk{hk: hk, rec: rec, longPress: longPress}
	p.mode.Store(ModeIdle)
	return p
}

func (p *PushToTalk) Mode() Mode { return p.mode.Load().(Mode) }

// Run registers the hotkey and handles presses until ctx is done.
func (p *PushToTalk) Run(ctx context.Context) error {
	if err := p.hk.Register(); err != nil {
		return err
	}
	defer p.hk.Unregister()

	for {
		if !p.wait(ctx, p.hk.Keydown()) {
			return nil
		}

		if err := p.rec.StartRecording(); err != nil {
			// refused, e.g. a confirmation is pending
			if !p.wait(ctx, p.hk.Keyup()) {
				return nil
			}
			continue
		}
		p.mode.Store(ModePTT)

		timer := time.NewTimer(p.longPress)
		select {
		case <-ctx.Done():
			timer.Stop()
			p.stop()
			return nil
		case <-timer.C:
			if !p.wait(ctx, p.hk.Keyup()) {
				p.stop()
				return nil
			}
			p.stop()
		case <-p.hk.Keyup():
			timer.Stop()
			p.mode.Store(ModeToggle)
			if !p.wait(ctx, p.hk.Keydown()) || !p.wait(ctx, p.hk.Keyup()) {
				p.stop()
				return nil
			}
			p.stop()
		}
	}
}

func (p *PushToTalk) stop() {
	p.rec.StopRecording()
	p.mode.Store(ModeIdle)
}

func (p *PushToTalk) wait(ctx context.Context, ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	case <-ctx.Done():
		return false
	}
}
