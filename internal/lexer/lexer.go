// Package lexer extracts IPv4 addresses from free-form text.
//
// Whitespace, the punctuation in ignoreChars and runs of ASCII letters are
// discarded, so prose can surround the addresses. Anything else stops the
// scan with an *Error carrying the line and column of the offending byte.
package lexer

import (
	"unicode/utf8"

	"github.com/charmbracelet/log"
)

const ignoreChars = " .,!\t\r"

type scanner struct {
	text   string
	pos    int
	line   int
	tokens []Token
}

// Scan tokenizes text and returns every IPv4 address in left-to-right order.
// On failure no tokens are returned.
func Scan(text string) ([]Token, error) {
	s := &scanner{
		text:   text,
		line:   1,
		tokens: make([]Token, 0, len(text)/16),
	}

	if err := s.run(); err != nil {
		return nil, err
	}

	log.Debug("scan complete", "bytes", len(text), "tokens", len(s.tokens))
	return s.tokens, nil
}

func (s *scanner) run() error {
	for s.pos < len(s.text) {
		c := s.text[s.pos]
		switch {
		case isIgnored(c):
			s.pos++
		case isLetter(c):
			s.skipWhile(isLetter)
		case c == '\n':
			start := s.pos
			s.skipWhile(func(b byte) bool { return b == '\n' })
			s.line += s.pos - start
		case isDigit(c):
			if err := s.scanAddress(); err != nil {
				return err
			}
		default:
			_, size := utf8.DecodeRuneInString(s.text[s.pos:])
			return s.errorAt(s.pos, s.text[s.pos:s.pos+size], nil)
		}
	}
	return nil
}

func (s *scanner) scanAddress() error {
	start := s.pos
	end, ok := matchAddress(s.text, start)
	if !ok {
		return s.errorAt(start, s.text[start:start+1], nil)
	}

	candidate := s.text[start:end]
	value, err := Normalize(candidate)
	if err != nil {
		return s.errorAt(start, candidate, err)
	}

	s.tokens = append(s.tokens, Token{
		Kind:   IPv4Address,
		Value:  value,
		Line:   s.line,
		Column: Position(s.text, start),
		Offset: start,
	})
	s.pos = end
	return nil
}

// matchAddress matches four groups of 1-3 digits separated by single dots
// starting at start and returns the end offset of the match.
func matchAddress(text string, start int) (int, bool) {
	pos := start
	for group := 0; group < 4; group++ {
		if group > 0 {
			if pos >= len(text) || text[pos] != '.' {
				return 0, false
			}
			pos++
		}

		digits := 0
		for pos < len(text) && digits < 3 && isDigit(text[pos]) {
			pos++
			digits++
		}
		if digits == 0 {
			return 0, false
		}
	}
	return pos, true
}

func (s *scanner) skipWhile(pred func(byte) bool) {
	for s.pos < len(s.text) && pred(s.text[s.pos]) {
		s.pos++
	}
}

func (s *scanner) errorAt(offset int, value string, cause error) *Error {
	return &Error{
		Value:  value,
		Line:   s.line,
		Column: Position(s.text, offset),
		Offset: offset,
		Err:    cause,
	}
}

func isIgnored(c byte) bool {
	for i := 0; i < len(ignoreChars); i++ {
		if ignoreChars[i] == c {
			return true
		}
	}
	return false
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
