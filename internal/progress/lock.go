package progress

import (
	"context"
	"sync"
)

// Locker serializes operations on a single learner.
type Locker interface {
	// Lock blocks until the learner is free or ctx is done.
	Lock(ctx context.Context, learnerID int64) (unlock func(), err error)
}

// KeyedMutex is an in-process Locker.
type KeyedMutex struct {
	mu    sync.Mutex
	slots map[int64]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewKeyedMutex creates an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{slots: make(map[int64]*slot)}
}

// Lock acquires the learner's slot.
func (k *KeyedMutex) Lock(ctx context.Context, learnerID int64) (func(), error) {
	k.mu.Lock()
	s, ok := k.slots[learnerID]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		k.slots[learnerID] = s
	}
	s.refs++
	k.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(learnerID, s)
		return nil, &Error{Kind: ErrLearnerLocked, Op: "Lock", Err: ctx.Err()}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			k.release(learnerID, s)
		})
	}, nil
}

func (k *KeyedMutex) release(learnerID int64, s *slot) {
	k.mu.Lock()
	defer k.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(k.slots, learnerID)
	}
}
