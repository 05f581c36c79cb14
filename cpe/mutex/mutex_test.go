package mutex

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedRWMutex_serializesPerKey(t *testing.T) {

	var m KeyedRWMutex[string]
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Lock("tenant-1")
			defer m.Unlock("tenant-1")
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
}

func TestKeyedRWMutex_independentKeys(t *testing.T) {

	var m KeyedRWMutex[string]

	m.Lock("tenant-1")
	defer m.Unlock("tenant-1")

	done := make(chan struct{})
	go func() {
		m.Lock("tenant-2")
		m.Unlock("tenant-2")
		close(done)
	}()
	<-done // must not deadlock while tenant-1 is held
}

func TestKeyedRWMutex_readersShare(t *testing.T) {

	var m KeyedRWMutex[int]

	m.RLock(1)
	m.RLock(1) // a second reader must not block
	m.RUnlock(1)
	m.RUnlock(1)
}
