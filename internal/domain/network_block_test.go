package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestNewASNBlockFromStrings(t *testing.T) {
	block, err := NewASNBlock(map[string]string{
		"network":                        "223.255.254.0/24",
		"autonomous_system_number":       "55415",
		"autonomous_system_organization": "MARINA BAY SANDS PTE LTD",
	})
	if err != nil {
		t.Fatalf("NewASNBlock returned error: %v", err)
	}

	if len(block.ID) != 32 {
		t.Fatalf("expected 32 character id, got %q", block.ID)
	}
	if block.AutonomousSystemNumber == nil || *block.AutonomousSystemNumber != 55415 {
		t.Fatalf("unexpected autonomous system number: %v", block.AutonomousSystemNumber)
	}
	if block.AutonomousSystemOrganization == nil || *block.AutonomousSystemOrganization != "MARINA BAY SANDS PTE LTD" {
		t.Fatalf("unexpected organization: %v", block.AutonomousSystemOrganization)
	}
	if block.NetworkStart != 0xDFFFFE00 || block.NetworkEnd != 0xDFFFFEFF {
		t.Fatalf("unexpected bounds %08x-%08x", block.NetworkStart, block.NetworkEnd)
	}
	if block.Table() != TableASN || block.CIDR() != "223.255.254.0/24" || block.BlockID() != block.ID {
		t.Fatal("NetworkBlock accessors returned unexpected values")
	}
}

func TestNewASNBlockEmptyFields(t *testing.T) {
	block, err := NewASNBlock(map[string]string{"network": "1.0.0.0/24", "autonomous_system_number": ""})
	if err != nil {
		t.Fatalf("NewASNBlock returned error: %v", err)
	}
	if block.AutonomousSystemNumber != nil || block.AutonomousSystemOrganization != nil {
		t.Fatal("expected empty fields to decode as nil")
	}
}

func TestNewASNBlockRejectsBadInput(t *testing.T) {
	cases := []map[string]string{
		{"network": "not-a-cidr"},
		{"network": "2001:db8::/32"},
		{"network": "1.0.0.0/24", "autonomous_system_number": "-3"},
		{},
	}
	for _, row := range cases {
		if _, err := NewASNBlock(row); err == nil {
			t.Fatalf("expected error for row %v, got nil", row)
		}
	}
}

func TestNewCityBlockFromStrings(t *testing.T) {
	block, err := NewCityBlock(map[string]string{
		"network":                        "1.0.0.0/24",
		"geoname_id":                     "8349238",
		"registered_country_geoname_id":  "2077456",
		"represented_country_geoname_id": "",
		"is_anonymous_proxy":             "0",
		"is_satellite_provider":          "1",
		"postal_code":                    "5107",
		"latitude":                       "-34.7825",
		"longitude":                      "138.6106",
		"accuracy_radius":                "100",
		"is_anycast":                     "",
	})
	if err != nil {
		t.Fatalf("NewCityBlock returned error: %v", err)
	}

	if block.GeonameID == nil || *block.GeonameID != 8349238 {
		t.Fatalf("unexpected geoname id: %v", block.GeonameID)
	}
	if block.RegisteredCountryGeonameID == nil || *block.RegisteredCountryGeonameID != 2077456 {
		t.Fatalf("unexpected registered country: %v", block.RegisteredCountryGeonameID)
	}
	if block.RepresentedCountryGeonameID != nil {
		t.Fatalf("expected nil represented country, got %v", *block.RepresentedCountryGeonameID)
	}
	if block.IsAnonymousProxy || !block.IsSatelliteProvider {
		t.Fatal("unexpected flag values")
	}
	if block.PostalCode == nil || *block.PostalCode != "5107" {
		t.Fatalf("unexpected postal code: %v", block.PostalCode)
	}
	if block.Latitude != -34.7825 || block.Longitude != 138.6106 {
		t.Fatalf("unexpected coordinates %v,%v", block.Latitude, block.Longitude)
	}
	if block.AccuracyRadius == nil || *block.AccuracyRadius != 100 {
		t.Fatalf("unexpected accuracy radius: %v", block.AccuracyRadius)
	}
}

func TestNewCityBlockEmptyCoordinates(t *testing.T) {
	block, err := NewCityBlock(map[string]string{
		"network":                       "5.145.149.142/32",
		"latitude":                      "",
		"longitude":                     "3.141592654",
		"registered_country_geoname_id": "6252001",
		"is_satellite_provider":         "true",
	})
	if err != nil {
		t.Fatalf("NewCityBlock returned error: %v", err)
	}
	if block.Latitude != 0 || block.Longitude != 3.141592654 {
		t.Fatalf("unexpected coordinates %v,%v", block.Latitude, block.Longitude)
	}
	if !block.IsSatelliteProvider {
		t.Fatal("expected satellite provider flag to be set")
	}
	if block.NetworkStart != block.NetworkEnd {
		t.Fatal("a /32 block should start and end on the same address")
	}
}

func TestNewCityBlockCollectsFieldErrors(t *testing.T) {
	_, err := NewCityBlock(map[string]string{
		"network":            "1.0.0.0/24",
		"latitude":           "north",
		"is_anonymous_proxy": "maybe",
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	for _, column := range []string{"latitude", "is_anonymous_proxy"} {
		if !strings.Contains(err.Error(), column) {
			t.Fatalf("error %q does not mention %s", err, column)
		}
	}
}

func TestBlockString(t *testing.T) {
	asn := &ASNBlock{ID: "abc"}
	if got := asn.String(); got != `ASNBlock(id="abc")` {
		t.Fatalf("String returned %s", got)
	}
	city := &CityBlock{}
	if got := city.String(); got != `CityBlock(id="")` {
		t.Fatalf("String returned %s", got)
	}
}

func TestParseNetwork(t *testing.T) {
	prefix, err := ParseNetwork("1.2.3.4/24")
	if err != nil {
		t.Fatalf("ParseNetwork returned error: %v", err)
	}
	if prefix.String() != "1.2.3.0/24" {
		t.Fatalf("ParseNetwork returned %s, want 1.2.3.0/24", prefix)
	}
}

func TestParseTable(t *testing.T) {
	if table, err := ParseTable(" ASN "); err != nil || table != TableASN {
		t.Fatalf("ParseTable returned %q, %v", table, err)
	}
	if table, err := ParseTable("city"); err != nil || table != TableCity {
		t.Fatalf("ParseTable returned %q, %v", table, err)
	}
	if _, err := ParseTable("country"); !errors.Is(err, ErrUnknownTable) {
		t.Fatalf("expected ErrUnknownTable, got %v", err)
	}
}

func TestParseFlag(t *testing.T) {
	cases := map[string]bool{"": false, "0": false, "1": true, "2": true, "true": true, "False": false}
	for in, want := range cases {
		got, err := ParseFlag(in)
		if err != nil {
			t.Fatalf("ParseFlag(%q) returned error: %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseFlag(%q) = %t, want %t", in, got, want)
		}
	}
}
