package concurrency

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockManager(t *testing.T) {
	t.Run("serializes per key", func(t *testing.T) {
		lm := NewLockManager()
		counter := 0
		var wg sync.WaitGroup

		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock := lm.Lock("game-1")
				defer unlock()
				current := counter
				counter = current + 1
			}()
		}
		wg.Wait()

		assert.Equal(t, 100, counter)
		assert.Equal(t, 0, lm.Len())
	})

	t.Run("different keys do not block each other", func(t *testing.T) {
		lm := NewLockManager()
		unlockFirst := lm.Lock("game-1")
		defer unlockFirst()

		done := make(chan struct{})
		go func() {
			unlock := lm.Lock("game-2")
			unlock()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("lock on game-2 blocked behind game-1")
		}
	})

	t.Run("entry is dropped after release", func(t *testing.T) {
		lm := NewLockManager()

		for i := 0; i < 50; i++ {
			unlock := lm.Lock("game-missing")
			unlock()
		}

		assert.Equal(t, 0, lm.Len())
	})

	t.Run("entry survives while a waiter is queued", func(t *testing.T) {
		lm := NewLockManager()
		unlock := lm.Lock("game-1")

		acquired := make(chan func())
		go func() {
			acquired <- lm.Lock("game-1")
		}()

		require.Eventually(t, func() bool {
			lm.mu.Lock()
			defer lm.mu.Unlock()
			return lm.locks["game-1"].refs == 2
		}, time.Second, time.Millisecond)

		unlock()
		second := <-acquired
		assert.Equal(t, 1, lm.Len())

		second()
		assert.Equal(t, 0, lm.Len())
	})

	t.Run("double release is a no-op", func(t *testing.T) {
		lm := NewLockManager()
		unlock := lm.Lock("game-1")

		unlock()
		unlock()

		assert.Equal(t, 0, lm.Len())
		relock := lm.Lock("game-1")
		relock()
	})
}
