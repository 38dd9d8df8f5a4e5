package client

import (
	"context"
	"errors"
)

// Callback receives the outcome of an asynchronous unary call.
type Callback[T any] func(resp *T, err error)

// StreamObserver receives a stream: OnNext per chunk, then exactly one of
// OnCompleted or OnError.
type StreamObserver[T any] interface {
	OnNext(msg *T)
	OnError(err error)
	OnCompleted()
}

// ObserverFuncs adapts functions to a StreamObserver. Nil fields are skipped.
type ObserverFuncs[T any] struct {
	Next      func(msg *T)
	Error     func(err error)
	Completed func()
}

func (o ObserverFuncs[T]) OnNext(msg *T) {
	if o.Next != nil {
		o.Next(msg)
	}
}

func (o ObserverFuncs[T]) OnError(err error) {
	if o.Error != nil {
		o.Error(err)
	}
}

func (o ObserverFuncs[T]) OnCompleted() {
	if o.Completed != nil {
		o.Completed()
	}
}

// ErrNotReady is returned by Future.TryGet before the call completes.
var ErrNotReady = errors.New("future not ready")

// Future holds the result of a unary call running in the background.
type Future[T any] struct {
	done  chan struct{}
	value *T
	err   error
}

// NewFuture runs fn on a new goroutine.
func NewFuture[T any](fn func() (*T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.value, f.err = fn()
	}()
	return f
}

// Get waits for the result or for ctx to end.
func (f *Future[T]) Get(ctx context.Context) (*T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// TryGet returns the result without blocking, or ErrNotReady.
func (f *Future[T]) TryGet() (*T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	default:
		return nil, ErrNotReady
	}
}
