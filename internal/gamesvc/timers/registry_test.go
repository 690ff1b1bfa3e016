package timers

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type key struct {
	game, user int64
}

func TestScheduleFires(t *testing.T) {
	r := NewRegistry[key]()
	var fired atomic.Int32

	r.Schedule(key{1, 2}, 10*time.Millisecond, func() { fired.Add(1) })
	require.True(t, r.Active(key{1, 2}))

	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.False(t, r.Active(key{1, 2}))
	require.Equal(t, 0, r.Len())
}

func TestCancelPreventsFire(t *testing.T) {
	r := NewRegistry[key]()
	var fired atomic.Int32

	r.Schedule(key{1, 2}, 20*time.Millisecond, func() { fired.Add(1) })
	require.True(t, r.Cancel(key{1, 2}))
	require.False(t, r.Cancel(key{1, 2}))

	time.Sleep(60 * time.Millisecond)
	require.Equal(t, int32(0), fired.Load())
}

func TestScheduleReplaces(t *testing.T) {
	r := NewRegistry[key]()
	var first, second atomic.Int32

	r.Schedule(key{1, 2}, 20*time.Millisecond, func() { first.Add(1) })
	r.Schedule(key{1, 2}, 30*time.Millisecond, func() { second.Add(1) })
	require.Equal(t, 1, r.Len())

	require.Eventually(t, func() bool { return second.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, int32(0), first.Load())
}

func TestKeysAreIndependent(t *testing.T) {
	r := NewRegistry[key]()
	var fired atomic.Int32

	r.Schedule(key{1, 2}, 10*time.Millisecond, func() { fired.Add(1) })
	r.Schedule(key{1, 3}, 10*time.Millisecond, func() { fired.Add(1) })
	r.Cancel(key{1, 3})

	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, int32(1), fired.Load())
}

func TestConcurrentScheduleCancel(t *testing.T) {
	r := NewRegistry[key]()
	var fired atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Schedule(key{1, 1}, 5*time.Millisecond, func() { fired.Add(1) })
		}()
		go func() {
			defer wg.Done()
			r.Cancel(key{1, 1})
		}()
	}
	wg.Wait()
	r.Stop()
	time.Sleep(10 * time.Millisecond)

	after := fired.Load()
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, 0, r.Len())
	require.Equal(t, after, fired.Load(), "no timer may fire after Stop")
}
