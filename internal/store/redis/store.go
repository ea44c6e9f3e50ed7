// Package redis provides a Redis-backed session store built on redigo.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/DTPriya20/click-gait/internal/store"
	"github.com/DTPriya20/click-gait/pkg/models"
)

// DefaultPrefix namespaces session keys.
const DefaultPrefix = "gait:session:"

// Config holds connection settings.
type Config struct {
	Addr      string        // host:port
	Password  string        // optional AUTH password
	DB        int           // logical database
	MaxIdle   int           // idle connections kept in the pool (default: 4)
	TTL       time.Duration // key expiry, refreshed on every Put; 0 disables expiry
	KeyPrefix string        // defaults to DefaultPrefix
}

// Store keeps CBOR-encoded states under prefixed keys.
type Store struct {
	pool   *redis.Pool
	ttl    time.Duration
	prefix string
}

// NewStore builds the pool and verifies connectivity.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	maxIdle := cfg.MaxIdle
	if maxIdle <= 0 {
		maxIdle = 4
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultPrefix
	}

	pool := &redis.Pool{
		MaxIdle:     maxIdle,
		IdleTimeout: 5 * time.Minute,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			opts := []redis.DialOption{
				redis.DialDatabase(cfg.DB),
				redis.DialConnectTimeout(5 * time.Second),
			}
			if cfg.Password != "" {
				opts = append(opts, redis.DialPassword(cfg.Password))
			}
			return redis.DialContext(ctx, "tcp", cfg.Addr, opts...)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}

	s := &Store{pool: pool, ttl: cfg.TTL, prefix: prefix}
	if err := s.Ping(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return s, nil
}

// Ping verifies the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = redis.DoContext(conn, ctx, "PING")
	return err
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, key string) (*models.SessionState, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	defer conn.Close()

	data, err := redis.Bytes(redis.DoContext(conn, ctx, "GET", s.prefix+key))
	if errors.Is(err, redis.ErrNil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return store.DecodeStateCBOR(data)
}

// Put implements store.Store.
func (s *Store) Put(ctx context.Context, key string, state *models.SessionState) error {
	data, err := store.EncodeStateCBOR(state)
	if err != nil {
		return err
	}
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	defer conn.Close()

	args := redis.Args{}.Add(s.prefix+key, data)
	if s.ttl > 0 {
		args = args.Add("PX", s.ttl.Milliseconds())
	}
	if _, err := redis.DoContext(conn, ctx, "SET", args...); err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// Delete implements store.Store.
func (s *Store) Delete(ctx context.Context, key string) error {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	defer conn.Close()

	if _, err := redis.DoContext(conn, ctx, "DEL", s.prefix+key); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}
