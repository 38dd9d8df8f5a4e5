package client

import (
	"context"
	"errors"
	"io"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	gatewayv1 "dev.helix.gateway/pkg/api/gateway/v1"
)

// StreamReader pulls chunks from a streaming call.
type StreamReader struct {
	stream grpc.ServerStreamingClient[gatewayv1.StreamingPromptResponse]
	cancel context.CancelFunc

	mu  sync.Mutex
	err error
}

// Next blocks for the next chunk. It returns io.EOF after the last chunk
// and the call's status error on failure. Once terminated, every further
// call returns the same error.
func (r *StreamReader) Next() (*gatewayv1.StreamingPromptResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return nil, r.err
	}

	msg, err := r.stream.Recv()
	if err != nil {
		r.err = err
		r.cancel()
		return nil, err
	}
	return msg, nil
}

// Header returns the response header metadata.
func (r *StreamReader) Header() (metadata.MD, error) {
	return r.stream.Header()
}

// Close cancels the call. Later Next calls return the cancellation error.
func (r *StreamReader) Close() {
	r.cancel()
}

// Drain reads reader to the end, pushing every chunk to observer followed
// by exactly one OnCompleted or OnError.
func Drain[T any](reader interface{ Next() (*T, error) }, observer StreamObserver[T]) {
	for {
		msg, err := reader.Next()
		if errors.Is(err, io.EOF) {
			observer.OnCompleted()
			return
		}
		if err != nil {
			observer.OnError(err)
			return
		}
		observer.OnNext(msg)
	}
}
