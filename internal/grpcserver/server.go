// Package grpcserver builds the gateway's gRPC server with its interceptor
// chain, health service and reflection.
package grpcserver

import (
	"context"
	"fmt"
	"net"
	"sort"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	// Registers the "br" compressor.
	_ "dev.helix.gateway/internal/compression/brotli"
	"dev.helix.gateway/internal/middleware"
)

// ServiceRegistrar registers a service with a grpc server.
type ServiceRegistrar func(s grpc.ServiceRegistrar)

// Options configures New.
type Options struct {
	// Environment is "test", "development" or "production". The interceptor
	// chain is skipped in "test".
	Environment string
	// ServiceName is reported through the health service.
	ServiceName       string
	ServiceRegistrars []ServiceRegistrar
	// Authenticator, RateLimiter and Metrics are optional.
	Authenticator    *middleware.Authenticator
	RateLimiter      *middleware.RateLimiter
	Metrics          *middleware.Metrics
	EnableReflection bool
	TLSCertFile      string
	TLSKeyFile       string
	MaxRecvMsgSize   int
}

// Server wraps a *grpc.Server together with its health service.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	opts   Options
	log    *logrus.Logger
}

// Interceptors returns the unary and stream chains in the order recovery,
// logging, metrics, auth, rate limit.
func Interceptors(opts Options, log *logrus.Logger) ([]grpc.UnaryServerInterceptor, []grpc.StreamServerInterceptor) {
	unary := []grpc.UnaryServerInterceptor{
		middleware.UnaryRecovery(log),
		middleware.UnaryLogging(log),
	}
	stream := []grpc.StreamServerInterceptor{
		middleware.StreamRecovery(log),
		middleware.StreamLogging(log),
	}

	if opts.Metrics != nil {
		unary = append(unary, opts.Metrics.Unary())
		stream = append(stream, opts.Metrics.Stream())
	}
	if opts.Authenticator != nil {
		unary = append(unary, opts.Authenticator.Unary())
		stream = append(stream, opts.Authenticator.Stream())
	}
	if opts.RateLimiter != nil {
		unary = append(unary, opts.RateLimiter.Unary())
		stream = append(stream, opts.RateLimiter.Stream())
	}
	return unary, stream
}

// New creates a server, registers the given services, the health service
// and, when enabled, reflection.
func New(opts Options, log *logrus.Logger, serverOpts ...grpc.ServerOption) (*Server, error) {
	if log == nil {
		log = logrus.New()
	}

	if opts.TLSCertFile != "" || opts.TLSKeyFile != "" {
		tlsConfig, err := TLSConfig(opts.TLSCertFile, opts.TLSKeyFile)
		if err != nil {
			return nil, err
		}
		serverOpts = append(serverOpts, grpc.Creds(credentials.NewTLS(tlsConfig)))
	}
	if opts.MaxRecvMsgSize > 0 {
		serverOpts = append(serverOpts, grpc.MaxRecvMsgSize(opts.MaxRecvMsgSize))
	}

	if opts.Environment != "test" {
		unary, stream := Interceptors(opts, log)
		serverOpts = append(serverOpts,
			grpc.ChainUnaryInterceptor(unary...),
			grpc.ChainStreamInterceptor(stream...),
		)
	}

	server := grpc.NewServer(serverOpts...)
	for _, registrar := range opts.ServiceRegistrars {
		registrar(server)
	}

	healthServer := health.NewServer()
	healthServer.SetServingStatus(opts.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	grpc_health_v1.RegisterHealthServer(server, healthServer)

	if opts.EnableReflection {
		reflection.Register(server)
	}

	return &Server{grpc: server, health: healthServer, opts: opts, log: log}, nil
}

// GRPC returns the underlying server.
func (s *Server) GRPC() *grpc.Server {
	return s.grpc
}

// Health returns the health service.
func (s *Server) Health() *health.Server {
	return s.health
}

// Serve blocks until the server stops.
func (s *Server) Serve(lis net.Listener) error {
	s.log.WithFields(logrus.Fields{
		"address": lis.Addr().String(),
		"tls":     s.opts.TLSCertFile != "",
	}).Info("gRPC server listening")

	if err := s.grpc.Serve(lis); err != nil {
		return fmt.Errorf("grpc server stopped: %w", err)
	}
	return nil
}

// Shutdown stops accepting calls and waits for in-flight calls until ctx
// ends, then closes the remaining connections.
func (s *Server) Shutdown(ctx context.Context) {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("Graceful shutdown timed out, forcing stop")
		s.grpc.Stop()
		<-done
	}
}

// Info describes the server configuration.
func (s *Server) Info() map[string]any {
	services := make([]string, 0)
	for name := range s.grpc.GetServiceInfo() {
		services = append(services, name)
	}
	sort.Strings(services)

	return map[string]any{
		"service_name":       s.opts.ServiceName,
		"environment":        s.opts.Environment,
		"tls_enabled":        s.opts.TLSCertFile != "",
		"reflection_enabled": s.opts.EnableReflection,
		"interceptors":       s.opts.Environment != "test",
		"services":           services,
	}
}
