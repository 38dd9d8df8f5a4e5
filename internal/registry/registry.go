// Package registry announces gateway instances in etcd so that clients and
// load balancers can discover them.
//
// Each instance is stored under /services/<name>/<id> with a lease. When the
// process dies the lease expires and the entry disappears.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// KeyPrefix is the root of every service key.
const KeyPrefix = "/services/"

var (
	// ErrAlreadyRegistered is returned when Register is called twice.
	ErrAlreadyRegistered = errors.New("instance already registered")
	// ErrNotRegistered is returned when Deregister has nothing to remove.
	ErrNotRegistered = errors.New("instance not registered")
)

// Instance describes one running gateway.
type Instance struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Address      string            `json:"address"`
	Version      string            `json:"version,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	RegisteredAt time.Time         `json:"registered_at"`
}

// Key returns the etcd key for a service instance.
func Key(name, id string) string {
	return ServicePrefix(name) + id
}

// ServicePrefix returns the key prefix that holds every instance of name.
func ServicePrefix(name string) string {
	return KeyPrefix + name + "/"
}

// Client is the subset of *clientv3.Client the registry uses.
type Client interface {
	clientv3.KV
	clientv3.Lease
	clientv3.Watcher
	Close() error
}

// Config configures the etcd connection.
type Config struct {
	Endpoints   []string
	DialTimeout time.Duration
	TTL         time.Duration
	LogLevel    string
}

// EtcdRegistry registers a single instance and resolves others.
type EtcdRegistry struct {
	client Client
	ttl    time.Duration
	log    *logrus.Logger

	mu       sync.Mutex
	instance *Instance
	leaseID  clientv3.LeaseID
	cancel   context.CancelFunc
	done     chan struct{}
}

// New connects to etcd. The etcd client logs through zap at the given level.
func New(cfg Config, log *logrus.Logger) (*EtcdRegistry, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, errors.New("at least one etcd endpoint is required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}

	zl, err := newZapLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd logger: %w", err)
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
		Logger:      zl,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	return NewWithClient(client, cfg.TTL, log), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client Client, ttl time.Duration, log *logrus.Logger) *EtcdRegistry {
	if log == nil {
		log = logrus.New()
	}
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &EtcdRegistry{
		client: client,
		ttl:    ttl,
		log:    log,
	}
}

func newZapLogger(level string) (*zap.Logger, error) {
	zapLevel := zapcore.WarnLevel
	if level != "" {
		if err := zapLevel.Set(level); err != nil {
			return nil, err
		}
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	return cfg.Build()
}

// Register stores inst under a fresh lease and keeps the lease alive until
// Deregister or Close. An empty ID is filled with a UUID.
func (r *EtcdRegistry) Register(ctx context.Context, inst Instance) (*Instance, error) {
	if inst.Name == "" || inst.Address == "" {
		return nil, errors.New("instance name and address are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.instance != nil {
		return nil, ErrAlreadyRegistered
	}

	if inst.ID == "" {
		inst.ID = uuid.New().String()
	}
	inst.RegisteredAt = time.Now().UTC()

	leaseID, err := r.put(ctx, &inst)
	if err != nil {
		return nil, err
	}

	keepCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r.instance = &inst
	r.leaseID = leaseID
	r.cancel = cancel
	r.done = done

	go r.keepAlive(keepCtx, leaseID, done)

	r.log.WithFields(logrus.Fields{
		"key":     Key(inst.Name, inst.ID),
		"address": inst.Address,
		"ttl":     r.ttl,
	}).Info("Registered service instance")

	registered := inst
	return &registered, nil
}

func (r *EtcdRegistry) put(ctx context.Context, inst *Instance) (clientv3.LeaseID, error) {
	lease, err := r.client.Grant(ctx, r.leaseSeconds())
	if err != nil {
		return 0, fmt.Errorf("failed to grant lease: %w", err)
	}

	value, err := json.Marshal(inst)
	if err != nil {
		return 0, fmt.Errorf("failed to encode instance: %w", err)
	}

	if _, err := r.client.Put(ctx, Key(inst.Name, inst.ID), string(value), clientv3.WithLease(lease.ID)); err != nil {
		return 0, fmt.Errorf("failed to put instance: %w", err)
	}
	return lease.ID, nil
}

// leaseSeconds rounds the TTL up to whole seconds, the granularity of etcd
// leases.
func (r *EtcdRegistry) leaseSeconds() int64 {
	seconds := int64((r.ttl + time.Second - 1) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}

// keepAlive renews the lease. If etcd drops the lease the instance is
// written again under a new one.
func (r *EtcdRegistry) keepAlive(ctx context.Context, leaseID clientv3.LeaseID, done chan struct{}) {
	defer close(done)

	retry := r.ttl / 3
	for {
		ch, err := r.client.KeepAlive(ctx, leaseID)
		if err == nil {
			for range ch {
			}
		}
		if ctx.Err() != nil {
			return
		}
		r.log.WithError(err).Warn("Lost etcd lease, registering again")

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(retry):
			}

			r.mu.Lock()
			inst := r.instance
			r.mu.Unlock()
			if inst == nil {
				return
			}

			newID, err := r.put(ctx, inst)
			if err != nil {
				r.log.WithError(err).Warn("Failed to register again")
				continue
			}

			r.mu.Lock()
			r.leaseID = newID
			r.mu.Unlock()
			leaseID = newID
			break
		}
	}
}

// Deregister removes the instance and revokes its lease.
func (r *EtcdRegistry) Deregister(ctx context.Context) error {
	r.mu.Lock()
	inst := r.instance
	leaseID := r.leaseID
	cancel := r.cancel
	done := r.done
	r.instance = nil
	r.cancel = nil
	r.done = nil
	r.mu.Unlock()

	if inst == nil {
		return ErrNotRegistered
	}

	cancel()
	<-done

	var errs []error
	if _, err := r.client.Delete(ctx, Key(inst.Name, inst.ID)); err != nil {
		errs = append(errs, fmt.Errorf("failed to delete instance: %w", err))
	}
	if _, err := r.client.Revoke(ctx, leaseID); err != nil {
		errs = append(errs, fmt.Errorf("failed to revoke lease: %w", err))
	}

	r.log.WithField("key", Key(inst.Name, inst.ID)).Info("Deregistered service instance")
	return errors.Join(errs...)
}

// Resolve lists every registered instance of name. Malformed entries are
// skipped.
func (r *EtcdRegistry) Resolve(ctx context.Context, name string) ([]Instance, error) {
	resp, err := r.client.Get(ctx, ServicePrefix(name), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}

	instances := make([]Instance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var inst Instance
		if err := json.Unmarshal(kv.Value, &inst); err != nil {
			r.log.WithField("key", string(kv.Key)).Debug("Skipping malformed instance entry")
			continue
		}
		if inst.ID == "" {
			inst.ID = strings.TrimPrefix(string(kv.Key), ServicePrefix(name))
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

// Watch emits the full instance list of name whenever it changes. The
// channel closes when ctx is done.
func (r *EtcdRegistry) Watch(ctx context.Context, name string) <-chan []Instance {
	out := make(chan []Instance, 1)

	go func() {
		defer close(out)
		events := r.client.Watch(ctx, ServicePrefix(name), clientv3.WithPrefix())
		for range events {
			instances, err := r.Resolve(ctx, name)
			if err != nil {
				r.log.WithError(err).Debug("Failed to resolve after watch event")
				continue
			}
			select {
			case out <- instances:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// Close deregisters if needed and closes the etcd client.
func (r *EtcdRegistry) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if err := r.Deregister(ctx); err != nil && !errors.Is(err, ErrNotRegistered) {
		errs = append(errs, err)
	}
	if err := r.client.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close etcd client: %w", err))
	}
	return errors.Join(errs...)
}
