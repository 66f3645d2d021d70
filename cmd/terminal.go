package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"
	"golang.org/x/term"
)

// terminalSize returns the terminal dimensions, preferring COLUMNS/LINES.
func terminalSize() (int, int) {
	if c, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil {
		if r, err := strconv.Atoi(os.Getenv("LINES")); err == nil {
			return c, r
		}
	}
	w, h, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0, 0
	}
	return w, h
}

// canInitializeTUI tests whether tcell can take over the terminal.
func canInitializeTUI() bool {
	if !term.IsTerminal(int(os.Stdout.Fd())) || !term.IsTerminal(int(os.Stdin.Fd())) {
		return false
	}
	screen, err := tcell.NewScreen()
	if err != nil {
		return false
	}
	if err := screen.Init(); err != nil {
		return false
	}
	screen.Fini()
	return true
}

// terminalInfo describes the terminal for the startup log.
func terminalInfo() string {
	var info []string
	if t := os.Getenv("TERM"); t != "" {
		info = append(info, "TERM="+t)
	} else {
		info = append(info, "TERM=<not set>")
	}
	if ct := os.Getenv("COLORTERM"); ct != "" {
		info = append(info, "COLORTERM="+ct)
	}
	if w, h := terminalSize(); w > 0 && h > 0 {
		info = append(info, fmt.Sprintf("size=%dx%d", w, h))
	}
	return strings.Join(info, " ")
}
