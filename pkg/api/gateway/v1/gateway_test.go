package gatewayv1_test

import (
	"context"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"

	gatewayv1 "dev.helix.gateway/pkg/api/gateway/v1"
)

func strPtr(s string) *string { return &s }
func u32Ptr(v uint32) *uint32 { return &v }

func TestMessages_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  proto.Message
	}{
		{"PromptConfigRequest", &gatewayv1.PromptConfigRequest{ApplicationId: "0b8a6bd4-3c0c-4b3c-9bb5-6a3e0a3f3f10"}},
		{"PromptConfigResponse", &gatewayv1.PromptConfigResponse{ExpectedPromptVariables: []string{"user_name", "topic"}}},
		{"PromptRequest", &gatewayv1.PromptRequest{
			TemplateVariables: map[string]string{"user_name": "Ada", "topic": "engines"},
			PromptConfigId:    strPtr("c7a5c2a4-2f5e-4ad6-9d0c-3e2c4f5b6a7d"),
		}},
		{"PromptRequestWithoutConfigID", &gatewayv1.PromptRequest{TemplateVariables: map[string]string{"a": ""}}},
		{"PromptResponse", &gatewayv1.PromptResponse{Content: "hello", RequestTokens: 12, ResponseTokens: 34, RequestDuration: 560}},
		{"StreamingPromptResponseChunk", &gatewayv1.StreamingPromptResponse{Content: "partial"}},
		{"StreamingPromptResponseFinal", &gatewayv1.StreamingPromptResponse{
			FinishReason:   strPtr("done"),
			RequestTokens:  u32Ptr(10),
			ResponseTokens: u32Ptr(0),
			StreamDuration: u32Ptr(1200),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := proto.Marshal(tt.msg)
			require.NoError(t, err)

			decoded := tt.msg.ProtoReflect().New().Interface()
			require.NoError(t, proto.Unmarshal(data, decoded))
			assert.True(t, proto.Equal(tt.msg, decoded), "decoded %v, want %v", decoded, tt.msg)
		})
	}
}

func TestPromptConfigResponse_PreservesOrderAndDuplicates(t *testing.T) {
	original := &gatewayv1.PromptConfigResponse{
		ExpectedPromptVariables: []string{"user_name", "topic", "user_name"},
	}

	data, err := proto.Marshal(original)
	require.NoError(t, err)

	decoded := &gatewayv1.PromptConfigResponse{}
	require.NoError(t, proto.Unmarshal(data, decoded))
	assert.Equal(t, []string{"user_name", "topic", "user_name"}, decoded.GetExpectedPromptVariables())
}

func TestStreamingPromptResponse_OptionalPresence(t *testing.T) {
	t.Run("unset optional fields stay absent", func(t *testing.T) {
		data, err := proto.Marshal(&gatewayv1.StreamingPromptResponse{Content: "x"})
		require.NoError(t, err)

		decoded := &gatewayv1.StreamingPromptResponse{}
		require.NoError(t, proto.Unmarshal(data, decoded))
		assert.Nil(t, decoded.FinishReason)
		assert.Nil(t, decoded.RequestTokens)
		assert.Equal(t, "", decoded.GetFinishReason())
	})

	t.Run("zero values keep presence", func(t *testing.T) {
		data, err := proto.Marshal(&gatewayv1.StreamingPromptResponse{ResponseTokens: u32Ptr(0)})
		require.NoError(t, err)

		decoded := &gatewayv1.StreamingPromptResponse{}
		require.NoError(t, proto.Unmarshal(data, decoded))
		require.NotNil(t, decoded.ResponseTokens)
		assert.Equal(t, uint32(0), decoded.GetResponseTokens())
	})
}

func TestServiceDescriptor(t *testing.T) {
	sd := gatewayv1.File_gateway_v1_gateway_proto.Services().ByName("APIGatewayService")
	require.NotNil(t, sd)
	assert.Equal(t, "gateway.v1.APIGatewayService", string(sd.FullName()))

	streaming := sd.Methods().ByName("RequestStreamingPrompt")
	require.NotNil(t, streaming)
	assert.True(t, streaming.IsStreamingServer())
	assert.False(t, streaming.IsStreamingClient())

	for _, name := range []string{"RequestPromptConfig", "RequestPrompt"} {
		m := sd.Methods().ByName(protoreflect.Name(name))
		require.NotNil(t, m, name)
		assert.False(t, m.IsStreamingServer(), name)
	}
}

type unimplementedServer struct {
	gatewayv1.UnimplementedAPIGatewayServiceServer
}

func TestUnimplementedServer(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	gatewayv1.RegisterAPIGatewayServiceServer(srv, unimplementedServer{})
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer conn.Close()

	client := gatewayv1.NewAPIGatewayServiceClient(conn)
	ctx := context.Background()

	t.Run("RequestPromptConfig", func(t *testing.T) {
		resp, err := client.RequestPromptConfig(ctx, &gatewayv1.PromptConfigRequest{})
		assert.Nil(t, resp)
		assert.Equal(t, codes.Unimplemented, status.Code(err))
	})

	t.Run("RequestPrompt", func(t *testing.T) {
		resp, err := client.RequestPrompt(ctx, &gatewayv1.PromptRequest{})
		assert.Nil(t, resp)
		assert.Equal(t, codes.Unimplemented, status.Code(err))
	})

	t.Run("RequestStreamingPrompt", func(t *testing.T) {
		stream, err := client.RequestStreamingPrompt(ctx, &gatewayv1.PromptRequest{})
		require.NoError(t, err)

		msg, err := stream.Recv()
		assert.Nil(t, msg)
		assert.Equal(t, codes.Unimplemented, status.Code(err))

		_, err = stream.Recv()
		assert.NotEqual(t, io.EOF, err)
	})
}
