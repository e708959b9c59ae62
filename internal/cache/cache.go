package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache is a byte-oriented key-value store. A ttl of 0 means no expiry.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key builds a cache key for one artifact kind under one task identifier.
// The task id is hashed so arbitrary ids stay filesystem-safe.
func Key(kind, taskID string) string {
	hash := sha256.Sum256([]byte(taskID))
	return "arbiter:v1:" + kind + ":" + hex.EncodeToString(hash[:])
}
