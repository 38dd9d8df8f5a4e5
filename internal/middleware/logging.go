package middleware

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// RequestIDHeader is the metadata key of the request id, read from the
// incoming call and echoed in the response header.
const RequestIDHeader = "x-request-id"

type requestIDKey struct{}

// RequestIDFromContext returns the id assigned by the logging interceptor.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func requestID(ctx context.Context) string {
	if values := metadata.ValueFromIncomingContext(ctx, RequestIDHeader); len(values) > 0 && values[0] != "" {
		return values[0]
	}
	return uuid.New().String()
}

// CodeToLevel maps a status code to the level its completion is logged at.
func CodeToLevel(code codes.Code) logrus.Level {
	switch code {
	case codes.OK, codes.Canceled, codes.InvalidArgument, codes.NotFound,
		codes.AlreadyExists, codes.Unauthenticated:
		return logrus.InfoLevel
	case codes.DeadlineExceeded, codes.PermissionDenied, codes.ResourceExhausted,
		codes.FailedPrecondition, codes.Aborted, codes.OutOfRange, codes.Unavailable:
		return logrus.WarnLevel
	default:
		return logrus.ErrorLevel
	}
}

func logFinish(entry *logrus.Entry, start time.Time, err error) {
	code := status.Code(err)
	entry = entry.WithFields(logrus.Fields{
		"grpc.code":    code.String(),
		"grpc.time_ms":  time.Since(start).Milliseconds(),
	})
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Log(CodeToLevel(code), "finished call")
}

// UnaryLogging assigns a request id and logs the start and end of each call.
func UnaryLogging(log *logrus.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		id := requestID(ctx)
		ctx = context.WithValue(ctx, requestIDKey{}, id)
		if err := grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, id)); err != nil {
			log.WithError(err).Debug("Failed to set request id header")
		}

		entry := log.WithFields(logrus.Fields{
			"request_id":  id,
			"grpc.method": info.FullMethod,
			"grpc.kind":   "unary",
		})
		entry.Debug("started call")

		start := time.Now()
		resp, err := handler(ctx, req)
		logFinish(entry, start, err)
		return resp, err
	}
}

// StreamLogging is the streaming counterpart of UnaryLogging.
func StreamLogging(log *logrus.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx := ss.Context()
		id := requestID(ctx)
		ctx = context.WithValue(ctx, requestIDKey{}, id)
		if err := ss.SetHeader(metadata.Pairs(RequestIDHeader, id)); err != nil {
			log.WithError(err).Debug("Failed to set request id header")
		}

		entry := log.WithFields(logrus.Fields{
			"request_id":  id,
			"grpc.method": info.FullMethod,
			"grpc.kind":   "server_stream",
		})
		entry.Debug("started call")

		start := time.Now()
		err := handler(srv, wrapStream(ctx, ss))
		logFinish(entry, start, err)
		return err
	}
}
