// Package middleware provides the gRPC server interceptors of the gateway.
package middleware

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// isHealthCheck reports whether fullMethod belongs to the grpc health service.
func isHealthCheck(fullMethod string) bool {
	return strings.HasPrefix(fullMethod, "/"+grpc_health_v1.Health_ServiceDesc.ServiceName+"/")
}

// wrappedStream overrides the context of a server stream.
type wrappedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedStream) Context() context.Context {
	return w.ctx
}

func wrapStream(ctx context.Context, ss grpc.ServerStream) grpc.ServerStream {
	if w, ok := ss.(*wrappedStream); ok {
		w.ctx = ctx
		return w
	}
	return &wrappedStream{ServerStream: ss, ctx: ctx}
}
