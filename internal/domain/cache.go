package domain

import (
	"encoding/json"
	"time"
)

// CacheEntry is a single cached resource stored under a logical key.
// The payload is opaque to the cache; typed decoding happens at the
// store layer.
type CacheEntry struct {
	Key      string          `json:"key"`
	Payload  json.RawMessage `json:"payload"`
	StoredAt time.Time       `json:"stored_at"`
	// TTL of zero means the entry never expires on its own.
	TTL time.Duration `json:"ttl"`
}

// Fresh reports whether the entry is within its expiry window at the
// given instant. Entries without a TTL are always fresh.
func (e *CacheEntry) Fresh(now time.Time) bool {
	if e.TTL <= 0 {
		return true
	}
	return now.Sub(e.StoredAt) < e.TTL
}

// Age returns how long ago the entry was stored.
func (e *CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.StoredAt)
}

// CacheKeyStats describes a single cached key for diagnostics.
type CacheKeyStats struct {
	Key       string    `json:"key"`
	Size      int       `json:"size_bytes"`
	SizeHuman string    `json:"size"`
	StoredAt  time.Time `json:"stored_at"`
	Age       string    `json:"age"`
	ItemCount int       `json:"item_count"`
	Fresh     bool      `json:"fresh"`
}

// CacheStats aggregates per-key statistics for the whole cache.
type CacheStats struct {
	Keys       []CacheKeyStats `json:"keys"`
	TotalKeys  int             `json:"total_keys"`
	TotalSize  int             `json:"total_size_bytes"`
	TotalHuman string          `json:"total_size"`
}
