package modelcache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type meshKey struct {
	Path  string  `yaml:"path"`
	Name  string  `yaml:"name"`
	Scale float64 `yaml:"scale"`
}

func mustFingerprint(t *testing.T, parts ...any) Fingerprint {
	t.Helper()
	fp, err := NewFingerprint(parts...)
	require.NoError(t, err)
	return fp
}

func TestNewFingerprint(t *testing.T) {
	base := mustFingerprint(t, meshKey{Path: "models", Name: "bunny.obj", Scale: 1})

	tests := []struct {
		name  string
		parts []any
		equal bool
	}{
		{name: "same value", parts: []any{meshKey{Path: "models", Name: "bunny.obj", Scale: 1}}, equal: true},
		{name: "different path", parts: []any{meshKey{Path: "other", Name: "bunny.obj", Scale: 1}}},
		{name: "different name", parts: []any{meshKey{Path: "models", Name: "dragon.obj", Scale: 1}}},
		{name: "different scale", parts: []any{meshKey{Path: "models", Name: "bunny.obj", Scale: 2}}},
		{name: "extra part", parts: []any{meshKey{Path: "models", Name: "bunny.obj", Scale: 1}, "extra"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp := mustFingerprint(t, tt.parts...)
			if tt.equal {
				assert.Equal(t, base, fp)
			} else {
				assert.NotEqual(t, base, fp)
			}
		})
	}
}

func TestNewFingerprint_MapOrderIsCanonical(t *testing.T) {
	a := mustFingerprint(t, map[string]int{"a": 1, "b": 2, "c": 3})
	b := mustFingerprint(t, map[string]int{"c": 3, "b": 2, "a": 1})
	assert.Equal(t, a, b)
}

func TestCache_LoadsOncePerFingerprint(t *testing.T) {
	cache := New[string](4)
	fp := mustFingerprint(t, "bunny")
	calls := 0
	compute := func() (string, error) {
		calls++
		return "mesh", nil
	}

	for i := 0; i < 3; i++ {
		v, err := cache.GetOrCompute(fp, compute)
		require.NoError(t, err)
		assert.Equal(t, "mesh", v)
	}
	assert.Equal(t, 1, calls)
	assert.Equal(t, Stats{Hits: 2, Misses: 1, Loads: 1}, cache.Stats())

	// Any change to the fingerprint reloads
	_, err := cache.GetOrCompute(mustFingerprint(t, "bunny", "scaled"), compute)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCache_FailureIsNotCached(t *testing.T) {
	cache := New[int](4)
	fp := mustFingerprint(t, "broken.obj")
	loadErr := errors.New("file not found")

	_, err := cache.GetOrCompute(fp, func() (int, error) { return 0, loadErr })
	require.ErrorIs(t, err, loadErr)
	assert.Equal(t, 0, cache.Len())

	v, err := cache.GetOrCompute(fp, func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, 1, cache.Len())
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	cache := New[int](2)
	calls := map[string]int{}
	get := func(name string) {
		_, err := cache.GetOrCompute(mustFingerprint(t, name), func() (int, error) {
			calls[name]++
			return len(name), nil
		})
		require.NoError(t, err)
	}

	get("a")
	get("b")
	get("a") // a is now the most recent
	get("c") // evicts b
	get("a")
	get("b")

	assert.Equal(t, 1, calls["a"])
	assert.Equal(t, 2, calls["b"])
	assert.Equal(t, 1, calls["c"])
	assert.Equal(t, 2, cache.Len())
}

func TestCache_ConcurrentMissesShareCompute(t *testing.T) {
	cache := New[int](4)
	fp := mustFingerprint(t, "slow")
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := cache.GetOrCompute(fp, func() (int, error) {
				calls.Add(1)
				<-release
				return 42, nil
			})
			assert.NoError(t, err)
			results[i] = v
		}()
	}

	// Let every goroutine reach the cache before the load finishes
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
}

func TestCache_UnrelatedKeysDoNotWait(t *testing.T) {
	cache := New[int](4)
	slow := mustFingerprint(t, "slow")
	fast := mustFingerprint(t, "fast")
	release := make(chan struct{})
	defer close(release)

	go func() {
		_, _ = cache.GetOrCompute(slow, func() (int, error) {
			<-release
			return 1, nil
		})
	}()

	done := make(chan int)
	go func() {
		v, _ := cache.GetOrCompute(fast, func() (int, error) { return 2, nil })
		done <- v
	}()

	select {
	case v := <-done:
		assert.Equal(t, 2, v)
	case <-time.After(5 * time.Second):
		t.Fatal("unrelated key blocked behind a slow load")
	}
}

func TestCache_Purge(t *testing.T) {
	cache := New[int](0)
	for _, name := range []string{"a", "b", "c"} {
		_, err := cache.GetOrCompute(mustFingerprint(t, name), func() (int, error) { return 1, nil })
		require.NoError(t, err)
	}
	assert.Equal(t, 3, cache.Len())

	cache.Purge()
	assert.Equal(t, 0, cache.Len())
}
