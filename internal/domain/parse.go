package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// The parse helpers below coerce bulk-ingested string fields. An empty value
// is never an error: it yields nil, false or 0.

func ParseOptionalInt(value string) (*int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func ParseOptionalUint32(value string) (*uint32, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return nil, err
	}
	v := uint32(parsed)
	return &v, nil
}

func ParseOptionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

// ParseFlag accepts 0/1 as well as the spellings strconv.ParseBool knows.
func ParseFlag(value string) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return false, nil
	}
	if n, err := strconv.Atoi(value); err == nil {
		return n != 0, nil
	}
	return strconv.ParseBool(value)
}

func ParseCoordinate(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	return strconv.ParseFloat(value, 64)
}

type fieldErrors []error

func (f *fieldErrors) add(column string, err error) {
	if err != nil {
		*f = append(*f, fmt.Errorf("%s: %w", column, err))
	}
}

func (f fieldErrors) err(kind string) error {
	if len(f) == 0 {
		return nil
	}
	return fmt.Errorf("domain: %s: %w", kind, errors.Join(f...))
}
