package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := newKeyedMutex()

	var mu sync.Mutex
	counter := 0
	max := 0
	active := 0

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			km.Lock("tenant-1:year-1")
			defer km.Unlock("tenant-1:year-1")

			mu.Lock()
			active++
			if active > max {
				max = active
			}
			counter++
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, counter)
	assert.Equal(t, 1, max, "only one holder at a time per key")
}

func TestKeyedMutex_IndependentKeysDoNotBlock(t *testing.T) {
	km := newKeyedMutex()

	km.Lock("tenant-1:year-1")
	defer km.Unlock("tenant-1:year-1")

	done := make(chan struct{})
	go func() {
		km.Lock("tenant-1:year-2")
		km.Unlock("tenant-1:year-2")
		close(done)
	}()

	<-done
}

func TestKeyedMutex_DropsIdleLocks(t *testing.T) {
	km := newKeyedMutex()

	km.Lock("k")
	km.Unlock("k")

	km.mu.Lock()
	defer km.mu.Unlock()
	assert.Empty(t, km.locks)
}
