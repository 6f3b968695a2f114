package audio

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"
)

var ErrSelectionAborted = errors.New("device selection aborted")

// SelectDevice shows an arrow-key picker on the terminal. With a single
// device no prompt is shown.
func SelectDevice(ctx Context) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	switch len(devices) {
	case 0:
		return nil, errors.New("no capture devices found")
	case 1:
		return &devices[0], nil
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	cursor := 0
	render := func() {
		fmt.Print("\r\x1b[J")
		fmt.Print("Microphone for voice commands (↑/↓, Enter to confirm, q to cancel):\r\n\r\n")
		for i, d := range devices {
			note := ""
			if IsBluetooth(d.Name) {
				note = " \x1b[33m[bluetooth: lower accuracy]\x1b[0m"
			}
			if i == cursor {
				fmt.Printf("  \x1b[1;36m▶ %s%s\x1b[0m\r\n", d.Name, note)
			} else {
				fmt.Printf("    %s%s\r\n", d.Name, note)
			}
		}
	}
	render()

	buf := make([]byte, 3)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}
		cursor, done, abort := pickerKey(buf[:n], cursor, len(devices))
		if abort {
			fmt.Print("\r\n")
			return nil, ErrSelectionAborted
		}
		if done {
			fmt.Print("\r\n")
			return &devices[cursor], nil
		}
		fmt.Printf("\x1b[%dA", len(devices)+2)
		render()
	}
}

// pickerKey applies one keypress to the cursor.
func pickerKey(key []byte, cursor, n int) (next int, done, abort bool) {
	if len(key) == 1 {
		switch key[0] {
		case '\r':
			return cursor, true, false
		case 3, 'q': // ctrl+c
			return cursor, false, true
		case 'j':
			return min(cursor+1, n-1), false, false
		case 'k':
			return max(cursor-1, 0), false, false
		}
	}
	if len(key) == 3 && key[0] == 0x1b && key[1] == '[' {
		switch key[2] {
		case 'A':
			return max(cursor-1, 0), false, false
		case 'B':
			return min(cursor+1, n-1), false, false
		}
	}
	return cursor, false, false
}
