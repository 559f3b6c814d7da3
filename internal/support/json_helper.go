package support

import (
	"bytes"
	"encoding/json"
	"strings"
)

// EncodeJSON writes v as indented JSON without HTML escaping, so non-ASCII
// text stays readable in the output.
func EncodeJSON(buf *bytes.Buffer, v any) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ToJSON renders v the way EncodeJSON does, without the trailing newline.
func ToJSON(v any) (string, error) {
	var buf bytes.Buffer
	if err := EncodeJSON(&buf, v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
