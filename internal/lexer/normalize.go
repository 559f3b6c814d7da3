package lexer

import (
	"fmt"
	"strconv"
	"strings"
)

// Normalize validates a dotted-decimal candidate and returns it in canonical
// form. Leading zeros are dropped, so "010.001.0.1" becomes "10.1.0.1".
func Normalize(candidate string) (string, error) {
	parts := strings.Split(candidate, ".")
	if len(parts) != 4 {
		return "", fmt.Errorf("%w: %q has %d octets", ErrInvalidAddress, candidate, len(parts))
	}

	octets := make([]string, 0, len(parts))
	for _, part := range parts {
		if len(part) == 0 || len(part) > 3 || !allDigits(part) {
			return "", fmt.Errorf("%w: %q has malformed octet %q", ErrInvalidAddress, candidate, part)
		}

		value, err := strconv.Atoi(part)
		if err != nil || value > 255 {
			return "", fmt.Errorf("%w: %q has octet %q out of range", ErrInvalidAddress, candidate, part)
		}
		octets = append(octets, strconv.Itoa(value))
	}

	return strings.Join(octets, "."), nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}
