package support

import (
	"reflect"
	"testing"
)

func TestSortKey(t *testing.T) {
	tests := []struct {
		addr string
		want uint32
	}{
		{"0.0.0.0", 0},
		{"0.0.0.1", 1},
		{"1.2.3.4", 1<<24 | 2<<16 | 3<<8 | 4},
		{"10.0.0.0", 10 << 24},
		{"255.255.255.255", 0xFFFFFFFF},
	}

	for _, tt := range tests {
		got, err := SortKey(tt.addr)
		if err != nil {
			t.Fatalf("SortKey(%q) returned error: %v", tt.addr, err)
		}
		if got != tt.want {
			t.Fatalf("SortKey(%q) = %d, want %d", tt.addr, got, tt.want)
		}
	}

	for _, bad := range []string{"", "1.2.3", "::1", "300.1.1.1"} {
		if _, err := SortKey(bad); err == nil {
			t.Fatalf("SortKey(%q) expected error, got nil", bad)
		}
	}
}

func TestSortKeyOrdersNumerically(t *testing.T) {
	two, _ := SortKey("2.0.0.0")
	ten, _ := SortKey("10.0.0.0")
	if !(two < ten) {
		t.Fatalf("expected 2.0.0.0 (%d) to sort before 10.0.0.0 (%d)", two, ten)
	}
	if !("10.0.0.0" < "2.0.0.0") {
		t.Fatal("lexicographic order is expected to disagree with numeric order")
	}
}

func TestSortAddresses(t *testing.T) {
	input := []string{"10.0.0.1", "2.0.0.0", "192.168.1.1", "1.2.3.4", "10.0.0.0", "2.0.0.0"}
	want := []string{"1.2.3.4", "2.0.0.0", "2.0.0.0", "10.0.0.0", "10.0.0.1", "192.168.1.1"}

	got, err := SortAddresses(input)
	if err != nil {
		t.Fatalf("SortAddresses returned error: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SortAddresses returned %v, want %v", got, want)
	}
	if input[0] != "10.0.0.1" {
		t.Fatal("SortAddresses must not modify its input")
	}

	if _, err := SortAddresses([]string{"1.2.3.4", "nope"}); err == nil {
		t.Fatal("expected error for invalid address, got nil")
	}
}

func TestUniqueAddresses(t *testing.T) {
	got := UniqueAddresses([]string{"1.2.3.4", "5.6.7.8", "1.2.3.4", "9.9.9.9", "5.6.7.8"})
	want := []string{"1.2.3.4", "5.6.7.8", "9.9.9.9"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("UniqueAddresses returned %v, want %v", got, want)
	}
}
