// Package ansi cleans raw terminal output before cue matching. Stripping is
// best effort: matched escape sequences and control bytes are removed,
// anything unmatched or malformed is left in place.
package ansi

import (
	"regexp"
	"strings"
)

// escapeRe covers CSI sequences (colors, cursor movement, erase, modes) and
// OSC sequences (window titles, hyperlinks) terminated by BEL or ST.
var escapeRe = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]|\x1b\][^\a\x1b]*(\a|\x1b\\)`)

// redrawRe matches sequences that rewrite the whole screen: erase-display
// (ED 2/3), full reset (RIS), and alternate-screen switches. Text before
// the last of these no longer reflects what the terminal shows.
var redrawRe = regexp.MustCompile(`\x1b(?:\[(?:2J|3J|\?(?:47|1047|1049)[hl])|c)`)

// Strip removes recognized escape sequences and stray control characters
// from text. Newlines and tabs survive; so does any ESC byte that does not
// begin a recognized sequence.
func Strip(text string) string {
	if !needsStrip(text) {
		return text
	}
	cleaned := escapeRe.ReplaceAllString(text, "")
	var b strings.Builder
	b.Grow(len(cleaned))
	for _, r := range cleaned {
		if r == '\n' || r == '\t' || r == '\x1b' || (r >= 0x20 && r != 0x7f) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func needsStrip(text string) bool {
	for i := 0; i < len(text); i++ {
		c := text[i]
		if (c < 0x20 && c != '\n' && c != '\t') || c == 0x7f {
			return true
		}
	}
	return false
}

// LastRedraw returns the byte index just past the last full-screen-redraw
// sequence in text, or -1 when none occurs. Callers use it to discard
// context the terminal no longer displays.
func LastRedraw(text string) int {
	locs := redrawRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return -1
	}
	return locs[len(locs)-1][1]
}
