package rollup

import (
	"context"
	"fmt"
	"sync"
)

// Locker serializes rebuilds per key. The returned unlock func must be called
// exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// keyedMutex is the default Locker: one in-process mutex per key, dropped
// when nobody holds or waits for it.
type keyedMutex struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch      chan struct{}
	waiters int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{slots: make(map[string]*slot)}
}

func (k *keyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	sl, ok := k.slots[key]
	if !ok {
		sl = &slot{ch: make(chan struct{}, 1)}
		k.slots[key] = sl
	}
	sl.waiters++
	k.mu.Unlock()

	select {
	case sl.ch <- struct{}{}:
	case <-ctx.Done():
		k.leave(key, sl)
		return nil, fmt.Errorf("wait for %s: %w", key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-sl.ch
			k.leave(key, sl)
		})
	}, nil
}

func (k *keyedMutex) leave(key string, sl *slot) {
	k.mu.Lock()
	defer k.mu.Unlock()
	sl.waiters--
	if sl.waiters == 0 {
		delete(k.slots, key)
	}
}
