// Package textbanner renders the loader's fallback boot banner — a
// line of text centered within a fixed-width terminal — for platforms
// or configurations where no graphical video mode was requested or
// none could be picked. It measures text the way go/ui's terminal code
// handles display width, using github.com/mattn/go-runewidth and
// github.com/rivo/uniseg instead of counting runes, since box-drawing
// and multi-byte glyphs in a banner don't occupy one terminal column.
package textbanner

import (
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
)

// DisplayWidth returns how many terminal columns s occupies, grouping
// combining characters into their base grapheme first (uniseg) and
// then measuring each grapheme's column width (runewidth) — a plain
// len(s) or utf8.RuneCountInString undercounts wide CJK glyphs and
// overcounts combining accents.
func DisplayWidth(s string) int {
	width := 0
	gr := uniseg.NewGraphemes(s)
	for gr.Next() {
		cluster := gr.Runes()
		w := runewidth.RuneWidth(cluster[0])
		if w == 0 {
			w = 1
		}
		width += w
	}
	return width
}

// Center pads s with spaces on both sides so it appears centered in a
// line cols columns wide. s is returned unpadded if it doesn't fit.
func Center(s string, cols int) string {
	w := DisplayWidth(s)
	if w >= cols {
		return s
	}
	left := (cols - w) / 2
	right := cols - w - left
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", right)
}

// Line renders one framed banner line: "| " + centered text + " |",
// the whole thing exactly cols wide (cols must be >= 4).
func Line(s string, cols int) string {
	inner := cols - 4
	if inner < 0 {
		inner = 0
	}
	return "| " + Center(s, inner) + " |"
}

// Frame renders lines inside a fixed-width box of the given column
// count, bracketed by a border row of '-' the width of the box.
func Frame(lines []string, cols int) string {
	border := "+" + strings.Repeat("-", cols-2) + "+"
	out := make([]string, 0, len(lines)+2)
	out = append(out, border)
	for _, l := range lines {
		out = append(out, Line(l, cols))
	}
	out = append(out, border)
	return strings.Join(out, "\n")
}
