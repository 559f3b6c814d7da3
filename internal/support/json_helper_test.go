package support

import "testing"

func TestToJSON(t *testing.T) {
	data := map[string]any{"name": "Zürich <office>", "age": 2}

	got, err := ToJSON(data)
	if err != nil {
		t.Fatalf("ToJSON returned error: %v", err)
	}

	want := "{\n  \"age\": 2,\n  \"name\": \"Zürich <office>\"\n}"
	if got != want {
		t.Fatalf("ToJSON returned %q, want %q", got, want)
	}
}
