package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker serializes holders inside one process. A key's slot lives
// only while someone holds or waits on it.
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[string]*memorySlot
}

type memorySlot struct {
	ch   chan struct{}
	refs int
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{slots: make(map[string]*memorySlot)}
}

func (l *MemoryLocker) ref(key string) *memorySlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &memorySlot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *MemoryLocker) unref(key string, s *memorySlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 && l.slots[key] == s {
		delete(l.slots, key)
	}
}

func (l *MemoryLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string, _ time.Duration, wait time.Duration) (Release, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	s := l.ref(key)

	acquired := func() Release {
		var once sync.Once
		return func(context.Context) error {
			once.Do(func() {
				<-s.ch
				l.unref(key, s)
			})
			return nil
		}
	}

	select {
	case s.ch <- struct{}{}:
		return acquired(), nil
	default:
	}
	if wait <= 0 {
		l.unref(key, s)
		return nil, ErrNotAcquired
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case s.ch <- struct{}{}:
		return acquired(), nil
	case <-timer.C:
		l.unref(key, s)
		return nil, ErrNotAcquired
	case <-ctx.Done():
		l.unref(key, s)
		return nil, ctx.Err()
	}
}
