// Package mutex provides per-key locking.
package mutex

import "sync"

// KeyedRWMutex provides one RWMutex per key, used to serialize
// per-tenant work without a global lock. Entries live for the process
// lifetime; key cardinality is bounded by the tenant count.
type KeyedRWMutex[K comparable] struct {
	table sync.Map // map[K]*sync.RWMutex
}

func (m *KeyedRWMutex[K]) entry(key K) *sync.RWMutex {
	v, _ := m.table.LoadOrStore(key, &sync.RWMutex{})
	return v.(*sync.RWMutex)
}

func (m *KeyedRWMutex[K]) Lock(key K)    { m.entry(key).Lock() }
func (m *KeyedRWMutex[K]) Unlock(key K)  { m.entry(key).Unlock() }
func (m *KeyedRWMutex[K]) RLock(key K)   { m.entry(key).RLock() }
func (m *KeyedRWMutex[K]) RUnlock(key K) { m.entry(key).RUnlock() }
