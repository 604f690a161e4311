package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLockers(t *testing.T) map[string]Locker {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return map[string]Locker{
		"keyed mutex": NewKeyedMutex(),
		"redis":       NewRedisLocker(client, time.Second),
	}
}

func TestLockerMutualExclusion(t *testing.T) {
	for name, locker := range testLockers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				inside  int
				maxSeen int
			)

			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					release, err := locker.Lock(ctx, "event:1")
					if !assert.NoError(t, err) {
						return
					}
					mu.Lock()
					inside++
					if inside > maxSeen {
						maxSeen = inside
					}
					mu.Unlock()

					time.Sleep(2 * time.Millisecond)

					mu.Lock()
					inside--
					mu.Unlock()
					release()
				}()
			}
			wg.Wait()

			assert.Equal(t, 1, maxSeen)
		})
	}
}

func TestLockerRespectsContext(t *testing.T) {
	for name, locker := range testLockers(t) {
		t.Run(name, func(t *testing.T) {
			release, err := locker.Lock(context.Background(), "event:2")
			require.NoError(t, err)
			defer release()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
			defer cancel()

			_, err = locker.Lock(ctx, "event:2")
			assert.ErrorIs(t, err, context.DeadlineExceeded)
		})
	}
}

func TestLockerIndependentKeys(t *testing.T) {
	for name, locker := range testLockers(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			releaseA, err := locker.Lock(ctx, "event:a")
			require.NoError(t, err)
			releaseB, err := locker.Lock(ctx, "event:b")
			require.NoError(t, err)

			releaseA()
			releaseB()
			releaseA()
		})
	}
}

func TestKeyedMutexDropsIdleKeys(t *testing.T) {
	m := NewKeyedMutex()
	release, err := m.Lock(context.Background(), "event:3")
	require.NoError(t, err)
	assert.Len(t, m.locks, 1)

	release()
	assert.Empty(t, m.locks)
}
