package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/feeddrop/feeddrop/pkg/config"
)

func TestNamespaceKey(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		expected string
	}{
		{
			name:     "simple key",
			key:      "u1",
			expected: "feeddrop:avatar:u1",
		},
		{
			name:     "key with colon",
			key:      "user:1",
			expected: "feeddrop:avatar:user:1",
		},
		{
			name:     "empty key",
			key:      "",
			expected: "feeddrop:avatar:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := namespaceKey(tt.key); got != tt.expected {
				t.Errorf("namespaceKey(%q) = %q, want %q", tt.key, got, tt.expected)
			}
		})
	}
}

func TestAvatarCache_Disabled(t *testing.T) {
	cache, err := NewAvatarCache(&config.RedisConfig{Enabled: false})
	if err != nil {
		t.Fatalf("Disabled cache should not error: %v", err)
	}
	if cache != nil {
		t.Fatal("Disabled cache should be nil")
	}

	ctx := context.Background()

	// All operations on a nil cache behave as a permanent miss
	if _, err := cache.Get(ctx, "u1"); !errors.Is(err, ErrCacheDisabled) {
		t.Errorf("Expected ErrCacheDisabled from Get, got: %v", err)
	}
	if err := cache.Set(ctx, "u1", []byte("img")); !errors.Is(err, ErrCacheDisabled) {
		t.Errorf("Expected ErrCacheDisabled from Set, got: %v", err)
	}
	if err := cache.Delete(ctx, "u1"); !errors.Is(err, ErrCacheDisabled) {
		t.Errorf("Expected ErrCacheDisabled from Delete, got: %v", err)
	}
	if err := cache.Close(); err != nil {
		t.Errorf("Close on nil cache should not error: %v", err)
	}
}
