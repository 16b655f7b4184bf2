// Package keylock provides per-key in-flight markers for serializing
// mutating operations on the same aggregate. A second caller on a held
// key fails fast instead of queueing, which keeps handler latency flat
// and makes reentrancy impossible at the process level.
// No external dependencies - uses only standard library.
package keylock

import "sync"

// KeyLock tracks keys that currently have an operation in flight.
// The zero value is not usable; use New.
type KeyLock struct {
	mu     sync.Mutex
	active map[string]struct{}
}

// New creates an empty KeyLock.
func New() *KeyLock {
	return &KeyLock{active: make(map[string]struct{})}
}

// TryAcquire marks the key as in flight. Returns false if the key is
// already held by another operation.
func (k *KeyLock) TryAcquire(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, held := k.active[key]; held {
		return false
	}
	k.active[key] = struct{}{}
	return true
}

// Release clears the in-flight marker for the key. Releasing a key that
// is not held is a no-op.
func (k *KeyLock) Release(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.active, key)
}

// Held reports whether the key currently has an operation in flight.
func (k *KeyLock) Held(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, held := k.active[key]
	return held
}
