package support

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestGetRedisClient(t *testing.T) {
	server := miniredis.RunT(t)
	t.Setenv("REDIS_URL", "redis://"+server.Addr())
	t.Cleanup(func() { _ = CloseRedisClient() })

	if !RedisConfigured() {
		t.Fatal("expected RedisConfigured to report true")
	}

	client, err := GetRedisClient(context.Background())
	if err != nil {
		t.Fatalf("GetRedisClient returned error: %v", err)
	}

	again, err := GetRedisClient(context.Background())
	if err != nil {
		t.Fatalf("second GetRedisClient returned error: %v", err)
	}
	if client != again {
		t.Fatal("GetRedisClient should reuse the connected client")
	}

	if err := CloseRedisClient(); err != nil {
		t.Fatalf("CloseRedisClient returned error: %v", err)
	}
}

func TestGetRedisClientInvalidURL(t *testing.T) {
	t.Setenv("REDIS_URL", "not-a-url://")
	t.Cleanup(func() { _ = CloseRedisClient() })

	if _, err := GetRedisClient(context.Background()); err == nil {
		t.Fatal("expected error for invalid redis url, got nil")
	}
}
