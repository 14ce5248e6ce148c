package lock

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smallbiznis/turfkeeper/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoryLocker_Exclusive(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, RecalcKey("1"), time.Minute, 0)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, RecalcKey("1"), time.Minute, 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrNotAcquired)

	other, err := l.Acquire(ctx, RecalcKey("2"), time.Minute, 0)
	require.NoError(t, err)
	require.NoError(t, other(ctx))

	require.NoError(t, release(ctx))
	require.NoError(t, release(ctx))

	again, err := l.Acquire(ctx, RecalcKey("1"), time.Minute, 0)
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestMemoryLocker_WaitsForHolder(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "k", time.Minute, 0)
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = release(ctx)
	}()

	next, err := l.Acquire(ctx, "k", time.Minute, time.Second)
	require.NoError(t, err)
	require.NoError(t, next(ctx))
}

func TestMemoryLocker_ContextCancel(t *testing.T) {
	l := NewMemoryLocker()
	release, err := l.Acquire(context.Background(), "k", time.Minute, 0)
	require.NoError(t, err)
	defer release(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Acquire(ctx, "k", time.Minute, time.Second)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestMemoryLocker_SingleHolder(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	var (
		inside  int32
		maxSeen int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, "k", time.Minute, 5*time.Second)
			if err != nil {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				seen := atomic.LoadInt32(&maxSeen)
				if n <= seen || atomic.CompareAndSwapInt32(&maxSeen, seen, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			_ = release(ctx)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxSeen)
}

func TestMemoryLocker_DropsIdleSlots(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		release, err := l.Acquire(ctx, RecalcKey(strconv.Itoa(i)), time.Minute, 0)
		require.NoError(t, err)
		require.NoError(t, release(ctx))
	}
	assert.Zero(t, l.size())

	release, err := l.Acquire(ctx, "k", time.Minute, 0)
	require.NoError(t, err)
	_, err = l.Acquire(ctx, "k", time.Minute, 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrNotAcquired)
	assert.Equal(t, 1, l.size())

	require.NoError(t, release(ctx))
	assert.Zero(t, l.size())
}

func TestMemoryLocker_EmptyKey(t *testing.T) {
	_, err := NewMemoryLocker().Acquire(context.Background(), "", time.Minute, 0)
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestNew_FallsBackToMemory(t *testing.T) {
	l := New(config.Config{AppName: "turfkeeper"}, nil, zap.NewNop())
	_, ok := l.(*MemoryLocker)
	assert.True(t, ok)
}
