// Package cache stores rendered artifacts (frames, movement networks) so
// repeated requests for the same dataset, step and progress skip the
// layout and render work.
//
// Every backend implements [Cache]: [FileCache] for the CLI, [RedisCache]
// for the server, [NullCache] to disable caching. [Compressed] wraps any of
// them with zstd. Keys come from a [Keyer] and embed a hash of everything
// that influences the artifact.
package cache

import (
	"context"
	"strings"
	"time"
)

// Cache is a byte store with per-entry expiry.
type Cache interface {
	// Get returns the value of key and whether it was found. A miss is not
	// an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the backend.
	Close() error
}

// Entry lifetimes.
const (
	TTLFrame   = 24 * time.Hour
	TTLNetwork = 7 * 24 * time.Hour
)

// Key types, the first segment of every key.
const (
	KeyTypeFrame   = "frame"
	KeyTypeNetwork = "network"
)

// Keyer builds cache keys.
type Keyer interface {
	FrameKey(datasetHash string, opts FrameKeyOpts) string
	NetworkKey(datasetHash string, opts NetworkKeyOpts) string
}

// FrameKeyOpts is everything besides the dataset that shapes a rendered
// frame.
type FrameKeyOpts struct {
	Metric      string  `json:"metric"`
	Step        int     `json:"step"`
	Progress    float64 `json:"progress"`
	Direction   string  `json:"direction"`
	Format      string  `json:"format"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	Scale       float64 `json:"scale,omitempty"`
	Interactive bool    `json:"interactive,omitempty"`
	Seed        uint64  `json:"seed"`
}

// NetworkKeyOpts shapes a rendered movement network.
type NetworkKeyOpts struct {
	Step     int    `json:"step"`
	Format   string `json:"format"`
	Detailed bool   `json:"detailed,omitempty"`
	Metric   string `json:"metric,omitempty"`
}

// DefaultKeyer hashes key options into fixed-length keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns a [DefaultKeyer].
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// FrameKey returns the key of a rendered frame.
func (DefaultKeyer) FrameKey(datasetHash string, opts FrameKeyOpts) string {
	return hashKey(KeyTypeFrame, datasetHash, opts)
}

// NetworkKey returns the key of a rendered movement network.
func (DefaultKeyer) NetworkKey(datasetHash string, opts NetworkKeyOpts) string {
	return hashKey(KeyTypeNetwork, datasetHash, opts)
}

// KeyType extracts the key type from a key built by a [Keyer], ignoring
// any scope prefix.
func KeyType(key string) string {
	for _, t := range []string{KeyTypeFrame, KeyTypeNetwork} {
		if strings.HasPrefix(key, t+":") || strings.Contains(key, ":"+t+":") {
			return t
		}
	}
	return "other"
}
