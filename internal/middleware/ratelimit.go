package middleware

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"dev.helix.gateway/internal/auth"
)

// KeyFunc derives the rate limit key of a call.
type KeyFunc func(ctx context.Context) string

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64       // Sustained rate per key
	Burst             int           // Bucket size
	IdleTTL           time.Duration // Limiters unused for this long are evicted
	KeyFunc           KeyFunc       // Function to generate rate limit key
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per key.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	config   RateLimitConfig
	log      *logrus.Logger
	now      func() time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(config RateLimitConfig, log *logrus.Logger) *RateLimiter {
	if log == nil {
		log = logrus.New()
	}
	if config.KeyFunc == nil {
		config.KeyFunc = DefaultKeyFunc
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = 10 * time.Minute
	}
	return &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		config:   config,
		log:      log,
		now:      time.Now,
	}
}

// Allow consumes one token from the bucket of key.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	entry, exists := rl.limiters[key]
	if !exists {
		entry = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.Burst)}
		rl.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// Len returns the number of tracked keys.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// EvictIdle drops limiters that have not been used within IdleTTL and
// returns how many were removed.
func (rl *RateLimiter) EvictIdle() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.config.IdleTTL)
	evicted := 0
	for key, entry := range rl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.limiters, key)
			evicted++
		}
	}
	return evicted
}

// StartEvictionWorker runs EvictIdle every interval until ctx ends.
func (rl *RateLimiter) StartEvictionWorker(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if evicted := rl.EvictIdle(); evicted > 0 {
					rl.log.WithField("evicted", evicted).Debug("Evicted idle rate limiters")
				}
			}
		}
	}()
}

func (rl *RateLimiter) check(ctx context.Context, fullMethod string) error {
	if isHealthCheck(fullMethod) {
		return nil
	}
	key := rl.config.KeyFunc(ctx)
	if !rl.Allow(key) {
		rl.log.WithFields(logrus.Fields{
			"key":    key,
			"method": fullMethod,
		}).Warn("Rate limit exceeded")
		return status.Error(codes.ResourceExhausted, "rate limit exceeded")
	}
	return nil
}

func (rl *RateLimiter) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if err := rl.check(ctx, info.FullMethod); err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

func (rl *RateLimiter) Stream() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if err := rl.check(ss.Context(), info.FullMethod); err != nil {
			return err
		}
		return handler(srv, ss)
	}
}

// DefaultKeyFunc keys by application ID, falling back to the peer address.
func DefaultKeyFunc(ctx context.Context) string {
	if appID, ok := auth.ApplicationIDFromContext(ctx); ok {
		return "app:" + appID
	}
	return ByPeer(ctx)
}

// ByPeer keys by the remote host of the connection.
func ByPeer(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "peer:unknown"
	}
	addr := p.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return "peer:" + addr
}
