package lexer

import (
	"errors"
	"fmt"
)

// Kind identifies what a Token represents.
type Kind int

const (
	// IPv4Address is a canonical dotted-decimal IPv4 address.
	IPv4Address Kind = iota
)

func (k Kind) String() string {
	switch k {
	case IPv4Address:
		return "IP4ADDR"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Token is a recognized unit of the scanned text.
type Token struct {
	Kind   Kind
	Value  string
	Line   int
	Column int
	Offset int
}

// ErrInvalidAddress is returned when a digit-dot candidate is not a valid
// IPv4 address.
var ErrInvalidAddress = errors.New("lexer: invalid ipv4 address")

// Error reports input the scanner could not classify. Line and Column are
// 1-based, Offset is the 0-based byte offset into the scanned text.
type Error struct {
	Value  string
	Line   int
	Column int
	Offset int
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("illegal character at line: '%d' position: '%d' value: '%s'", e.Line, e.Column, e.Value)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}
