package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the vine ASCII banner, colored when w supports it.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	lines := []struct {
		text, color string
	}{
		{` __   __ _              `, "#4ade80"},
		{` \ \ / /(_) _ __   ___ `, "#34d399"},
		{`  \ V / | || '_ \ / _ \`, "#2dd4bf"},
		{`   \_/  |_||_| |_|\___/`, "#22d3ee"},
	}
	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w)
}
