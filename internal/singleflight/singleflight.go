package singleflight

import (
	"context"
	"sync"
)

// Group coalesces concurrent calls for the same key into one execution.
// The first caller for a key becomes the owner and runs fn; every caller
// that arrives while the owner is still running waits for the owner's
// outcome and receives the identical value or error.
//
// Completed calls stay in the map until Forget is called, so callers that
// want re-execution after completion must forget the key explicitly. This
// differs from the usual singleflight contract on purpose: it lets a
// coordinator fuse "in-flight" and "cached" into one lookup and reset both
// with a single Forget.
type Group[T any] struct {
	mu sync.Mutex
	m  map[string]*call[T]
}

// call is an active or completed execution.
type call[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// New creates an empty Group.
func New[T any]() *Group[T] {
	return &Group[T]{
		m: make(map[string]*call[T]),
	}
}

// Do executes fn for key unless a call for key is already in flight or has
// completed, in which case the caller waits for (or immediately receives)
// that call's outcome. The shared result reports whether the value came
// from another caller's execution. Waiting is bounded by ctx; a cancelled
// waiter returns ctx.Err() without disturbing the owner.
func (g *Group[T]) Do(ctx context.Context, key string, fn func() (T, error)) (v T, shared bool, err error) {
	g.mu.Lock()
	if c, ok := g.m[key]; ok {
		g.mu.Unlock()
		select {
		case <-c.done:
			return c.val, true, c.err
		case <-ctx.Done():
			var zero T
			return zero, true, ctx.Err()
		}
	}

	c := &call[T]{done: make(chan struct{})}
	g.m[key] = c
	g.mu.Unlock()

	c.val, c.err = fn()
	close(c.done)

	if c.err != nil {
		// Failed calls are not kept; the next caller retries.
		g.mu.Lock()
		if g.m[key] == c {
			delete(g.m, key)
		}
		g.mu.Unlock()
	}

	return c.val, false, c.err
}

// Forget removes key from the group. A completed call's value is dropped
// and the next Do for key executes fn again. An in-flight call keeps
// running and still resolves its existing waiters, but new callers start
// a fresh execution.
func (g *Group[T]) Forget(key string) {
	g.mu.Lock()
	delete(g.m, key)
	g.mu.Unlock()
}
