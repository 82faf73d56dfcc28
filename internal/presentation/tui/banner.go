package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{"   __ _  ___  / _| | _____      __", "#34d399"},
	{"  / _` |/ _ \\| |_| |/ _ \\ \\ /\\ / /", "#2dd4bf"},
	{" | (_| | (_) |  _| | (_) \\ V  V / ", "#22d3ee"},
	{"  \\__, |\\___/|_| |_|\\___/ \\_/\\_/  ", "#38bdf8"},
	{"  |___/                           ", "#60a5fa"},
}

// PrintBanner writes the goflow banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
