package database

import (
	"os"
	"strings"
	"testing"
)

func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("unset %s: %v", key, err)
		}
	}
}

func TestStoreKeyFollowsResolvedTarget(t *testing.T) {
	unsetEnv(t, "DB_DRIVER", "DB_PATH")

	first, err := StoreKey(DriverSQLite, "a.sqlite3")
	if err != nil {
		t.Fatalf("StoreKey returned error: %v", err)
	}
	again, err := StoreKey("", "a.sqlite3")
	if err != nil {
		t.Fatalf("StoreKey returned error: %v", err)
	}
	if first != again {
		t.Fatalf("same store produced keys %q and %q", first, again)
	}

	other, err := StoreKey(DriverSQLite, "b.sqlite3")
	if err != nil {
		t.Fatalf("StoreKey returned error: %v", err)
	}
	if other == first {
		t.Fatalf("different sqlite paths share key %q", first)
	}

	t.Setenv("DB_PATH", "b.sqlite3")
	overridden, err := StoreKey(DriverSQLite, "a.sqlite3")
	if err != nil {
		t.Fatalf("StoreKey returned error: %v", err)
	}
	if overridden != other {
		t.Fatalf("DB_PATH override produced %q, want %q", overridden, other)
	}
}

func TestStoreKeyPostgres(t *testing.T) {
	unsetEnv(t, "DB_NAME")
	t.Setenv("DB_DRIVER", DriverPostgres)
	t.Setenv("DB_PASSWORD", "s3cret")

	key, err := StoreKey(DriverSQLite, "a.sqlite3")
	if err != nil {
		t.Fatalf("StoreKey returned error: %v", err)
	}
	if strings.Contains(key, "s3cret") {
		t.Fatalf("store key %q leaks the dsn", key)
	}

	t.Setenv("DB_NAME", "other")
	otherDB, err := StoreKey(DriverSQLite, "a.sqlite3")
	if err != nil {
		t.Fatalf("StoreKey returned error: %v", err)
	}
	if otherDB == key {
		t.Fatalf("different postgres databases share key %q", key)
	}
}

func TestStoreKeyUnsupportedDriver(t *testing.T) {
	unsetEnv(t, "DB_DRIVER")

	if _, err := StoreKey("mysql", "x"); err == nil {
		t.Fatal("expected error for unsupported driver, got nil")
	}
	if _, err := Dialector("mysql", "x"); err == nil {
		t.Fatal("expected error for unsupported driver from Dialector, got nil")
	}
}
