//go:build !linux

package main

import (
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

// The global hotkey needs the main thread on macOS, so the app runs
// beside it.
func main() {
	mainthread.Init(run)
}
