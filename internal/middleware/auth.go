package middleware

import (
	"context"

	grpcauth "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"dev.helix.gateway/internal/auth"
)

// ApplicationIDHeader carries the caller's application ID when token
// validation is disabled.
const ApplicationIDHeader = "x-application-id"

// Authenticator puts the calling application's ID in the request context.
type Authenticator struct {
	issuer *auth.TokenIssuer
	log    *logrus.Logger
}

// NewAuthenticator creates an Authenticator. A nil issuer trusts the
// x-application-id metadata instead of verifying a token.
func NewAuthenticator(issuer *auth.TokenIssuer, log *logrus.Logger) *Authenticator {
	if log == nil {
		log = logrus.New()
	}
	return &Authenticator{issuer: issuer, log: log}
}

// HandleAuth implements grpcauth.AuthFunc.
func (a *Authenticator) HandleAuth(ctx context.Context) (context.Context, error) {
	if method, ok := grpc.Method(ctx); ok && isHealthCheck(method) {
		return ctx, nil
	}

	if a.issuer == nil {
		values := metadata.ValueFromIncomingContext(ctx, ApplicationIDHeader)
		if len(values) == 0 || values[0] == "" {
			return nil, status.Error(codes.Unauthenticated, "missing application id")
		}
		return auth.WithApplicationID(ctx, values[0]), nil
	}

	token, err := grpcauth.AuthFromMD(ctx, "bearer")
	if err != nil {
		return nil, err
	}

	appID, err := a.issuer.ApplicationID(token)
	if err != nil {
		a.log.WithError(err).Debug("Rejected bearer token")
		return nil, status.Error(codes.Unauthenticated, "invalid auth token")
	}

	return auth.WithApplicationID(ctx, appID), nil
}

func (a *Authenticator) Unary() grpc.UnaryServerInterceptor {
	return grpcauth.UnaryServerInterceptor(a.HandleAuth)
}

func (a *Authenticator) Stream() grpc.StreamServerInterceptor {
	return grpcauth.StreamServerInterceptor(a.HandleAuth)
}
