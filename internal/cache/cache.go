// Package cache stores short-lived JSON values such as search results and
// verified tokens.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound     = errors.New("key not found in cache")
	ErrInvalidValue = errors.New("invalid value for cache")
)

type Cache interface {
	// Get decodes the value stored under key into dst, or returns
	// ErrNotFound.
	Get(ctx context.Context, key string, dst any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Health(ctx context.Context) map[string]any
	Close() error
}

// SearchKey derives the cache key of a search from its vertical and the
// request parts. Parts are trimmed and lowercased so equivalent requests
// share a key.
func SearchKey(vertical string, parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(strings.ToLower(strings.TrimSpace(p))))
		h.Write([]byte{0x1f})
	}
	return "search:" + vertical + ":" + hex.EncodeToString(h.Sum(nil)[:12])
}

// TokenKey is the cache key of a verified bearer token.
func TokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "auth:token:" + hex.EncodeToString(sum[:16])
}
