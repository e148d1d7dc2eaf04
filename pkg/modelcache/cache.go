// Package modelcache memoizes loaded meshes by a fingerprint of everything
// that affects the loaded result.
package modelcache

import (
	"fmt"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"
)

// DefaultCapacity is the number of entries kept when New is given capacity <= 0
const DefaultCapacity = 4

// Fingerprint identifies a cache entry. Two fingerprints are equal exactly
// when the parts they were built from encode to the same YAML.
type Fingerprint string

// NewFingerprint builds a fingerprint from the canonical YAML encoding of parts.
// Map keys are sorted by the encoder, so equal values always give equal
// fingerprints.
func NewFingerprint(parts ...any) (Fingerprint, error) {
	var b strings.Builder
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	for i, part := range parts {
		if err := enc.Encode(part); err != nil {
			return "", fmt.Errorf("fingerprint part %d: %w", i, err)
		}
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return Fingerprint(b.String()), nil
}

// Stats counts cache lookups
type Stats struct {
	Hits   uint64
	Misses uint64
	Loads  uint64 // Calls to compute, collapsed misses count once
}

// Cache is a bounded, thread-safe memo table. Only successful computations
// are stored.
type Cache[V any] struct {
	entries *lru.Cache[Fingerprint, V]
	group   singleflight.Group

	hits   atomic.Uint64
	misses atomic.Uint64
	loads  atomic.Uint64
}

// New creates a cache holding at most capacity entries
func New[V any](capacity int) *Cache[V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	entries, err := lru.New[Fingerprint, V](capacity)
	if err != nil {
		// Only returned for a non-positive size
		panic(err)
	}
	return &Cache[V]{entries: entries}
}

// GetOrCompute returns the value stored for fp, calling compute to produce it
// on a miss. Concurrent misses for the same fingerprint share one compute
// call. A failed compute leaves no entry behind, so the next call retries.
func (c *Cache[V]) GetOrCompute(fp Fingerprint, compute func() (V, error)) (V, error) {
	if v, ok := c.entries.Get(fp); ok {
		c.hits.Add(1)
		return v, nil
	}
	c.misses.Add(1)

	result, err, _ := c.group.Do(string(fp), func() (any, error) {
		// Another caller may have stored it between our miss and Do
		if v, ok := c.entries.Get(fp); ok {
			return v, nil
		}
		c.loads.Add(1)
		v, err := compute()
		if err != nil {
			c.entries.Remove(fp)
			return nil, err
		}
		c.entries.Add(fp, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return result.(V), nil
}

// Len returns the number of stored entries
func (c *Cache[V]) Len() int {
	return c.entries.Len()
}

// Purge drops every entry
func (c *Cache[V]) Purge() {
	c.entries.Purge()
}

// Stats returns a snapshot of the lookup counters
func (c *Cache[V]) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Loads:  c.loads.Load(),
	}
}
