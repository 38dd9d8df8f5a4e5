// Package client is a Go client for the APIGatewayService. Every operation
// is offered blocking, with a callback or observer, and (for unary calls)
// as a future.
package client

import (
	"context"

	"google.golang.org/grpc"

	gatewayv1 "dev.helix.gateway/pkg/api/gateway/v1"
)

// Client wraps a generated APIGatewayServiceClient.
type Client struct {
	api  gatewayv1.APIGatewayServiceClient
	conn *grpc.ClientConn
}

// New creates a client on an existing connection. The caller keeps
// ownership of cc.
func New(cc grpc.ClientConnInterface) *Client {
	return &Client{api: gatewayv1.NewAPIGatewayServiceClient(cc)}
}

// Dial connects to target with NewConnection. Close releases the connection.
func Dial(target string, opts ...Option) (*Client, error) {
	conn, err := NewConnection(target, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{api: gatewayv1.NewAPIGatewayServiceClient(conn), conn: conn}, nil
}

// Close closes the connection opened by Dial.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// RequestPromptConfig returns the variables the application's prompt expects.
func (c *Client) RequestPromptConfig(
	ctx context.Context,
	req *gatewayv1.PromptConfigRequest,
	opts ...grpc.CallOption,
) (*gatewayv1.PromptConfigResponse, error) {
	return c.api.RequestPromptConfig(ctx, req, opts...)
}

// RequestPrompt performs a completion and waits for the result.
func (c *Client) RequestPrompt(
	ctx context.Context,
	req *gatewayv1.PromptRequest,
	opts ...grpc.CallOption,
) (*gatewayv1.PromptResponse, error) {
	return c.api.RequestPrompt(ctx, req, opts...)
}

// RequestStreamingPrompt opens a stream. The returned reader must be read
// until it fails or be closed.
func (c *Client) RequestStreamingPrompt(
	ctx context.Context,
	req *gatewayv1.PromptRequest,
	opts ...grpc.CallOption,
) (*StreamReader, error) {
	ctx, cancel := context.WithCancel(ctx)
	stream, err := c.api.RequestStreamingPrompt(ctx, req, opts...)
	if err != nil {
		cancel()
		return nil, err
	}
	return &StreamReader{stream: stream, cancel: cancel}, nil
}

// RequestPromptConfigAsync calls callback from a new goroutine.
func (c *Client) RequestPromptConfigAsync(
	ctx context.Context,
	req *gatewayv1.PromptConfigRequest,
	callback Callback[gatewayv1.PromptConfigResponse],
	opts ...grpc.CallOption,
) {
	go func() {
		callback(c.RequestPromptConfig(ctx, req, opts...))
	}()
}

// RequestPromptAsync calls callback from a new goroutine.
func (c *Client) RequestPromptAsync(
	ctx context.Context,
	req *gatewayv1.PromptRequest,
	callback Callback[gatewayv1.PromptResponse],
	opts ...grpc.CallOption,
) {
	go func() {
		callback(c.RequestPrompt(ctx, req, opts...))
	}()
}

// RequestStreamingPromptAsync pushes the stream to observer from a new
// goroutine. The returned function cancels the call.
func (c *Client) RequestStreamingPromptAsync(
	ctx context.Context,
	req *gatewayv1.PromptRequest,
	observer StreamObserver[gatewayv1.StreamingPromptResponse],
	opts ...grpc.CallOption,
) context.CancelFunc {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		defer cancel()

		reader, err := c.RequestStreamingPrompt(ctx, req, opts...)
		if err != nil {
			observer.OnError(err)
			return
		}
		Drain(reader, observer)
	}()
	return cancel
}

// RequestPromptConfigFuture starts the call and returns its future.
func (c *Client) RequestPromptConfigFuture(
	ctx context.Context,
	req *gatewayv1.PromptConfigRequest,
	opts ...grpc.CallOption,
) *Future[gatewayv1.PromptConfigResponse] {
	return NewFuture(func() (*gatewayv1.PromptConfigResponse, error) {
		return c.RequestPromptConfig(ctx, req, opts...)
	})
}

// RequestPromptFuture starts the call and returns its future.
func (c *Client) RequestPromptFuture(
	ctx context.Context,
	req *gatewayv1.PromptRequest,
	opts ...grpc.CallOption,
) *Future[gatewayv1.PromptResponse] {
	return NewFuture(func() (*gatewayv1.PromptResponse, error) {
		return c.RequestPrompt(ctx, req, opts...)
	})
}
