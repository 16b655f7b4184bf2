package keylock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyLock_AcquireRelease(t *testing.T) {
	kl := New()

	require.True(t, kl.TryAcquire("user-1"))
	assert.True(t, kl.Held("user-1"))

	// Second acquire on the same key fails fast.
	assert.False(t, kl.TryAcquire("user-1"))

	// Different key is independent.
	assert.True(t, kl.TryAcquire("user-2"))

	kl.Release("user-1")
	assert.False(t, kl.Held("user-1"))
	assert.True(t, kl.TryAcquire("user-1"))
}

func TestKeyLock_ReleaseUnheldIsNoop(t *testing.T) {
	kl := New()

	kl.Release("never-acquired")
	assert.False(t, kl.Held("never-acquired"))
	assert.True(t, kl.TryAcquire("never-acquired"))
}

func TestKeyLock_ConcurrentAcquire(t *testing.T) {
	kl := New()

	const goroutines = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	acquired := 0

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if kl.TryAcquire("contended") {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Exactly one goroutine wins the key.
	assert.Equal(t, 1, acquired)
	assert.True(t, kl.Held("contended"))
}
