package lexer

import "strings"

// Position returns the 1-based column of the byte at offset, counted from the
// last newline before it (or from the start of text when there is none).
// Offsets past the end of text are clamped.
func Position(text string, offset int) int {
	if offset < 0 {
		offset = 0
	}

	end := offset + 1
	if end > len(text) {
		end = len(text)
	}

	lastNewline := strings.LastIndexByte(text[:end], '\n')
	return (offset + 1) - (lastNewline + 1)
}
