package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	// Registers the "br" compressor for WithCompression.
	_ "dev.helix.gateway/internal/compression/brotli"
)

// UseTLSEnv switches NewConnection to TLS with the system roots when set.
const UseTLSEnv = "GRPC_USE_TLS"

type options struct {
	token       string
	compressor  string
	tlsConfig   *tls.Config
	dialOptions []grpc.DialOption
}

// Option configures NewConnection.
type Option func(*options)

// WithBearerToken sends "authorization: bearer <token>" on every call.
func WithBearerToken(token string) Option {
	return func(o *options) {
		o.token = token
	}
}

// WithCompression compresses every call with the named compressor, e.g. "br".
func WithCompression(name string) Option {
	return func(o *options) {
		o.compressor = name
	}
}

// WithTLSConfig forces TLS with the given configuration.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(o *options) {
		o.tlsConfig = cfg
	}
}

// WithDialOptions appends raw grpc dial options.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(o *options) {
		o.dialOptions = append(o.dialOptions, opts...)
	}
}

// bearerCredentials implements credentials.PerRPCCredentials.
type bearerCredentials struct {
	token string
	// secure requires a TLS transport before the token is sent.
	secure bool
}

func (b bearerCredentials) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "bearer " + b.token}, nil
}

func (b bearerCredentials) RequireTransportSecurity() bool {
	return b.secure
}

// NewConnection creates a client connection to target. TLS is used when
// WithTLSConfig is given or GRPC_USE_TLS is set, otherwise the connection
// is insecure. Plain host:port targets are also sent as the authority.
func NewConnection(target string, opts ...Option) (*grpc.ClientConn, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	var dialOptions []grpc.DialOption
	if authority, ok := authorityFor(target); ok {
		dialOptions = append(dialOptions, grpc.WithAuthority(authority))
	}
	dialOptions = append(dialOptions, o.dialOptions...)

	tlsConfig := o.tlsConfig
	if tlsConfig == nil && os.Getenv(UseTLSEnv) != "" {
		roots, err := x509.SystemCertPool()
		if err != nil {
			return nil, fmt.Errorf("failed to load system cert pool: %w", err)
		}
		tlsConfig = &tls.Config{RootCAs: roots, MinVersion: tls.VersionTLS12}
	}

	if tlsConfig != nil {
		dialOptions = append(dialOptions, grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig)))
	} else {
		dialOptions = append(dialOptions, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	if o.token != "" {
		dialOptions = append(dialOptions, grpc.WithPerRPCCredentials(bearerCredentials{
			token:  o.token,
			secure: tlsConfig != nil,
		}))
	}
	if o.compressor != "" {
		dialOptions = append(dialOptions, grpc.WithDefaultCallOptions(grpc.UseCompressor(o.compressor)))
	}

	conn, err := grpc.NewClient(target, dialOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection to %s: %w", target, err)
	}
	return conn, nil
}

// authorityFor returns target when it is a plain host:port. Resolver
// targets such as "dns:host:port", "unix:/path" or "passthrough:///x" keep
// the authority grpc derives for them.
func authorityFor(target string) (string, bool) {
	host, port, err := net.SplitHostPort(target)
	if err != nil || host == "" {
		return "", false
	}
	if _, err := strconv.ParseUint(port, 10, 16); err != nil {
		return "", false
	}
	return target, true
}
