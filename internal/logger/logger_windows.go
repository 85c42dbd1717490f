//go:build windows

package logger

import (
	"os"

	"golang.org/x/sys/windows"
)

const SupportsColorEscapes = true

func GetTerminalInfo(file *os.File) (info TerminalInfo) {
	fd := windows.Handle(file.Fd())

	var mode uint32
	if err := windows.GetConsoleMode(fd, &mode); err == nil {
		info.IsTTY = true

		// Enable virtual terminal sequences so ANSI color escapes work. If the
		// console is too old for that, fall back to monochrome output.
		if err := windows.SetConsoleMode(fd, mode|windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING); err == nil {
			info.UseColorEscapes = !hasNoColorEnvironmentVariable()
		}

		var screen windows.ConsoleScreenBufferInfo
		if err := windows.GetConsoleScreenBufferInfo(fd, &screen); err == nil {
			info.Width = int(screen.Window.Right - screen.Window.Left + 1)
		}
	}

	return
}

func writeStringWithColor(file *os.File, text string) {
	file.WriteString(text)
}
