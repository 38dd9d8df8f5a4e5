package middleware

import (
	"runtime/debug"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RecoveryHandler logs the panic with its stack and hides it from the caller.
func RecoveryHandler(log *logrus.Logger) recovery.RecoveryHandlerFunc {
	return func(p any) error {
		log.WithFields(logrus.Fields{
			"panic": p,
			"stack": string(debug.Stack()),
		}).Error("Panic triggered in gRPC handler")
		return status.Error(codes.Internal, "an internal error occurred")
	}
}

func UnaryRecovery(log *logrus.Logger) grpc.UnaryServerInterceptor {
	return recovery.UnaryServerInterceptor(recovery.WithRecoveryHandler(RecoveryHandler(log)))
}

func StreamRecovery(log *logrus.Logger) grpc.StreamServerInterceptor {
	return recovery.StreamServerInterceptor(recovery.WithRecoveryHandler(RecoveryHandler(log)))
}
