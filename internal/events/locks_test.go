package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := newKeyedMutex()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := km.lock("post:1")
			defer release()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
}

func TestKeyedMutex_IndependentKeys(t *testing.T) {
	km := newKeyedMutex()

	releaseA := km.lock("a")
	defer releaseA()

	done := make(chan struct{})
	go func() {
		release := km.lock("b")
		release()
		close(done)
	}()
	<-done // must not deadlock while "a" is held
}

func TestKeyedMutex_EntriesCleanedUp(t *testing.T) {
	km := newKeyedMutex()

	release := km.lock("x")
	release()

	km.mu.Lock()
	defer km.mu.Unlock()
	assert.Empty(t, km.entries)
}
