//go:build windows

package doctor

func resetTerminal() {}
