package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	m := NewKeyedMutex()
	var inside int32
	var maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := m.Acquire(context.Background(), "week:8:A:2025-11-03")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, m.Len())
}

func TestKeyedMutexDifferentKeysDoNotBlock(t *testing.T) {
	m := NewKeyedMutex()
	releaseA, err := m.Acquire(context.Background(), "a")
	require.NoError(t, err)
	defer releaseA()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	releaseB, err := m.Acquire(ctx, "b")
	require.NoError(t, err)
	releaseB()
}

func TestKeyedMutexTimesOut(t *testing.T) {
	m := NewKeyedMutex()
	release, err := m.Acquire(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.Acquire(ctx, "a")
	assert.ErrorIs(t, err, ErrLockTimeout)

	release()
	release()
	assert.Equal(t, 0, m.Len())
}
