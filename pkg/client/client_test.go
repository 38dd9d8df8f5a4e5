package client

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	gatewayv1 "dev.helix.gateway/pkg/api/gateway/v1"
)

// scriptedServer answers with fixed data and records the metadata it saw.
type scriptedServer struct {
	gatewayv1.UnimplementedAPIGatewayServiceServer

	mu       sync.Mutex
	lastAuth []string
	release  chan struct{}
	chunks   []string
	failWith error
}

func (s *scriptedServer) RequestPromptConfig(ctx context.Context, req *gatewayv1.PromptConfigRequest) (*gatewayv1.PromptConfigResponse, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	s.mu.Lock()
	s.lastAuth = md.Get("authorization")
	s.mu.Unlock()

	if req.GetApplicationId() == "" {
		return nil, status.Error(codes.InvalidArgument, "application_id is required")
	}
	return &gatewayv1.PromptConfigResponse{ExpectedPromptVariables: []string{"user_name", "topic", "user_name"}}, nil
}

func (s *scriptedServer) RequestPrompt(ctx context.Context, req *gatewayv1.PromptRequest) (*gatewayv1.PromptResponse, error) {
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &gatewayv1.PromptResponse{Content: "hello " + req.GetTemplateVariables()["user_name"], RequestTokens: 3, ResponseTokens: 2}, nil
}

func (s *scriptedServer) RequestStreamingPrompt(_ *gatewayv1.PromptRequest, stream gatewayv1.APIGatewayService_RequestStreamingPromptServer) error {
	for _, chunk := range s.chunks {
		if err := stream.Send(&gatewayv1.StreamingPromptResponse{Content: chunk}); err != nil {
			return err
		}
	}
	if s.failWith != nil {
		return s.failWith
	}
	done := "done"
	return stream.Send(&gatewayv1.StreamingPromptResponse{FinishReason: &done})
}

func startServer(t *testing.T, srv *scriptedServer, opts ...Option) *Client {
	t.Helper()

	server := grpc.NewServer()
	gatewayv1.RegisterAPIGatewayServiceServer(server, srv)
	lis := bufconn.Listen(1024 * 1024)
	go func() {
		_ = server.Serve(lis)
	}()

	opts = append(opts, WithDialOptions(grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})))
	client, err := Dial("passthrough:///bufnet", opts...)
	require.NoError(t, err)

	t.Cleanup(func() {
		client.Close()
		server.Stop()
	})
	return client
}

type recordingObserver struct {
	mu        sync.Mutex
	events    []string
	messages  []string
	err       error
	finished  chan struct{}
	terminals int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{finished: make(chan struct{})}
}

func (o *recordingObserver) OnNext(msg *gatewayv1.StreamingPromptResponse) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, "next")
	o.messages = append(o.messages, msg.GetContent())
}

func (o *recordingObserver) OnError(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, "error")
	o.err = err
	o.terminals++
	close(o.finished)
}

func (o *recordingObserver) OnCompleted() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, "completed")
	o.terminals++
	close(o.finished)
}

func (o *recordingObserver) wait(t *testing.T) {
	t.Helper()
	select {
	case <-o.finished:
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not terminate")
	}
}

func TestBlocking(t *testing.T) {
	client := startServer(t, &scriptedServer{chunks: []string{"a", "b", "c"}})
	ctx := context.Background()

	t.Run("RequestPromptConfigKeepsOrderAndDuplicates", func(t *testing.T) {
		resp, err := client.RequestPromptConfig(ctx, &gatewayv1.PromptConfigRequest{ApplicationId: "app"})
		require.NoError(t, err)
		assert.Equal(t, []string{"user_name", "topic", "user_name"}, resp.GetExpectedPromptVariables())
	})

	t.Run("RequestPromptConfigError", func(t *testing.T) {
		_, err := client.RequestPromptConfig(ctx, &gatewayv1.PromptConfigRequest{})
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})

	t.Run("RequestPrompt", func(t *testing.T) {
		resp, err := client.RequestPrompt(ctx, &gatewayv1.PromptRequest{TemplateVariables: map[string]string{"user_name": "Ada"}})
		require.NoError(t, err)
		assert.Equal(t, "hello Ada", resp.GetContent())
		assert.Equal(t, uint32(3), resp.GetRequestTokens())
	})

	t.Run("StreamThreeChunksThenEOF", func(t *testing.T) {
		reader, err := client.RequestStreamingPrompt(ctx, &gatewayv1.PromptRequest{})
		require.NoError(t, err)

		var contents []string
		var finish string
		for {
			msg, err := reader.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			require.NoError(t, err)
			if msg.FinishReason != nil {
				finish = msg.GetFinishReason()
				continue
			}
			contents = append(contents, msg.GetContent())
		}

		assert.Equal(t, []string{"a", "b", "c"}, contents)
		assert.Equal(t, "done", finish)

		_, err = reader.Next()
		assert.ErrorIs(t, err, io.EOF, "terminal error is sticky")
	})
}

func TestStreamReader_ErrorIsSticky(t *testing.T) {
	client := startServer(t, &scriptedServer{chunks: []string{"a"}, failWith: status.Error(codes.Internal, "error communicating with AI provider")})

	reader, err := client.RequestStreamingPrompt(context.Background(), &gatewayv1.PromptRequest{})
	require.NoError(t, err)

	msg, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, "a", msg.GetContent())

	_, err = reader.Next()
	assert.Equal(t, codes.Internal, status.Code(err))
	_, again := reader.Next()
	assert.Equal(t, err, again)
}

func TestStreamReader_Close(t *testing.T) {
	srv := &scriptedServer{}
	client := startServer(t, srv)

	reader, err := client.RequestStreamingPrompt(context.Background(), &gatewayv1.PromptRequest{})
	require.NoError(t, err)
	reader.Close()

	_, err = reader.Next()
	if err != nil && !errors.Is(err, io.EOF) {
		assert.Equal(t, codes.Canceled, status.Code(err))
	}
}

func TestCallbacks(t *testing.T) {
	client := startServer(t, &scriptedServer{chunks: []string{"one", "two", "three"}})

	t.Run("RequestPromptConfigAsync", func(t *testing.T) {
		done := make(chan *gatewayv1.PromptConfigResponse, 1)
		client.RequestPromptConfigAsync(context.Background(), &gatewayv1.PromptConfigRequest{ApplicationId: "app"},
			func(resp *gatewayv1.PromptConfigResponse, err error) {
				assert.NoError(t, err)
				done <- resp
			})

		select {
		case resp := <-done:
			assert.Len(t, resp.GetExpectedPromptVariables(), 3)
		case <-time.After(5 * time.Second):
			t.Fatal("callback not invoked")
		}
	})

	t.Run("RequestPromptAsyncError", func(t *testing.T) {
		done := make(chan error, 1)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		client.RequestPromptAsync(ctx, &gatewayv1.PromptRequest{}, func(resp *gatewayv1.PromptResponse, err error) {
			assert.Nil(t, resp)
			done <- err
		})

		select {
		case err := <-done:
			assert.Equal(t, codes.Canceled, status.Code(err))
		case <-time.After(5 * time.Second):
			t.Fatal("callback not invoked")
		}
	})

	t.Run("ObserverOrder", func(t *testing.T) {
		observer := newRecordingObserver()
		client.RequestStreamingPromptAsync(context.Background(), &gatewayv1.PromptRequest{}, observer)
		observer.wait(t)

		observer.mu.Lock()
		defer observer.mu.Unlock()
		assert.Equal(t, []string{"next", "next", "next", "next", "completed"}, observer.events)
		assert.Equal(t, []string{"one", "two", "three", ""}, observer.messages)
		assert.Equal(t, 1, observer.terminals)
	})
}

func TestObserver_Error(t *testing.T) {
	client := startServer(t, &scriptedServer{chunks: []string{"partial"}, failWith: status.Error(codes.Internal, "boom")})

	observer := newRecordingObserver()
	client.RequestStreamingPromptAsync(context.Background(), &gatewayv1.PromptRequest{}, observer)
	observer.wait(t)

	observer.mu.Lock()
	defer observer.mu.Unlock()
	assert.Equal(t, []string{"next", "error"}, observer.events)
	assert.Equal(t, codes.Internal, status.Code(observer.err))
}

func TestObserverFuncs(t *testing.T) {
	var got []string
	observer := ObserverFuncs[gatewayv1.StreamingPromptResponse]{
		Next: func(msg *gatewayv1.StreamingPromptResponse) { got = append(got, msg.GetContent()) },
	}
	observer.OnNext(&gatewayv1.StreamingPromptResponse{Content: "x"})
	observer.OnError(errors.New("ignored"))
	observer.OnCompleted()
	assert.Equal(t, []string{"x"}, got)
}

func TestFutures(t *testing.T) {
	srv := &scriptedServer{release: make(chan struct{})}
	client := startServer(t, srv)

	t.Run("TryGetBeforeAndAfter", func(t *testing.T) {
		future := client.RequestPromptFuture(context.Background(), &gatewayv1.PromptRequest{TemplateVariables: map[string]string{"user_name": "Bo"}})

		_, err := future.TryGet()
		assert.ErrorIs(t, err, ErrNotReady)

		close(srv.release)
		select {
		case <-future.Done():
		case <-time.After(5 * time.Second):
			t.Fatal("future did not complete")
		}

		resp, err := future.TryGet()
		require.NoError(t, err)
		assert.Equal(t, "hello Bo", resp.GetContent())

		resp, err = future.Get(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "hello Bo", resp.GetContent())
	})

	t.Run("RequestPromptConfigFuture", func(t *testing.T) {
		resp, err := client.RequestPromptConfigFuture(context.Background(), &gatewayv1.PromptConfigRequest{ApplicationId: "app"}).
			Get(context.Background())
		require.NoError(t, err)
		assert.Len(t, resp.GetExpectedPromptVariables(), 3)
	})

	t.Run("GetHonoursContext", func(t *testing.T) {
		future := NewFuture(func() (*gatewayv1.PromptResponse, error) {
			time.Sleep(time.Second)
			return &gatewayv1.PromptResponse{}, nil
		})

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err := future.Get(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestNewConnection(t *testing.T) {
	t.Run("BearerTokenAndCompression", func(t *testing.T) {
		srv := &scriptedServer{}
		client := startServer(t, srv, WithBearerToken("secret-token"), WithCompression("br"))

		_, err := client.RequestPromptConfig(context.Background(), &gatewayv1.PromptConfigRequest{ApplicationId: "app"})
		require.NoError(t, err)

		srv.mu.Lock()
		defer srv.mu.Unlock()
		assert.Equal(t, []string{"bearer secret-token"}, srv.lastAuth)
	})

	t.Run("TLSFromEnvironment", func(t *testing.T) {
		t.Setenv(UseTLSEnv, "1")
		conn, err := NewConnection("localhost:443", WithBearerToken("t"))
		require.NoError(t, err)
		assert.NoError(t, conn.Close())
	})

	t.Run("CloseWithoutConnection", func(t *testing.T) {
		assert.NoError(t, New(nil).Close())
	})
}

func TestAuthorityFor(t *testing.T) {
	tests := []struct {
		target    string
		authority string
		ok        bool
	}{
		{"localhost:50051", "localhost:50051", true},
		{"gateway.internal:443", "gateway.internal:443", true},
		{"[::1]:50051", "[::1]:50051", true},
		{"dns:gateway.internal:443", "", false},
		{"dns:///gateway.internal:443", "", false},
		{"unix:/var/run/gateway.sock", "", false},
		{"unix:gateway.sock", "", false},
		{"passthrough:///bufnet", "", false},
		{":50051", "", false},
		{"localhost", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			authority, ok := authorityFor(tt.target)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.authority, authority)
		})
	}

	t.Run("UnixTargetConnects", func(t *testing.T) {
		conn, err := NewConnection("unix:/tmp/gateway-test.sock")
		require.NoError(t, err)
		assert.NoError(t, conn.Close())
	})
}
