// Package cache implements the credential cache on Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

const userKeyPrefix = "user:"

// DefaultUserTTL is how long a cached user entry lives.
const DefaultUserTTL = 86400 * time.Second

type Storage struct {
	client  *redis.Client
	ttl     time.Duration
	timeout time.Duration
}

// Options configure New.
type Options struct {
	Addr     string
	Password string
	// TTL applies to PutUser; zero means DefaultUserTTL.
	TTL time.Duration
	// Timeout bounds every call; zero leaves only the caller's deadline.
	Timeout time.Duration
}

func New(opts Options) *Storage {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       0,
	})
	return NewWithClient(client, opts.TTL, opts.Timeout)
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, ttl, timeout time.Duration) *Storage {
	if ttl <= 0 {
		ttl = DefaultUserTTL
	}
	return &Storage{client: client, ttl: ttl, timeout: timeout}
}

func UserKey(email string) string {
	return userKeyPrefix + email
}

func (s *Storage) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Get returns the raw value at key or common.ErrCacheMiss.
func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	const op = "cache.redis.Get"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrCacheMiss
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return data, nil
}

// SetWithTTL stores value at key, replacing any previous value.
func (s *Storage) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	const op = "cache.redis.SetWithTTL"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// GetUser reads the cached entry for email. A corrupt entry is reported as an
// error, not a miss, so the caller logs it and falls back to the store.
func (s *Storage) GetUser(ctx context.Context, email string) (*models.UserRecord, error) {
	const op = "cache.redis.GetUser"

	data, err := s.Get(ctx, UserKey(email))
	if err != nil {
		return nil, err
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := entry.UserRecord()
	if err != nil {
		return nil, fmt.Errorf("%s: bad id: %w", op, err)
	}

	return user, nil
}

// PutUser caches user under its email for the configured TTL.
func (s *Storage) PutUser(ctx context.Context, user *models.UserRecord) error {
	const op = "cache.redis.PutUser"

	data, err := json.Marshal(user.ToCacheEntry())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return s.SetWithTTL(ctx, UserKey(user.Email), data, s.ttl)
}

// Ping succeeds only on a literal PONG reply.
func (s *Storage) Ping(ctx context.Context) error {
	const op = "cache.redis.Ping"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	reply, err := s.client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if reply != "PONG" {
		return fmt.Errorf("%s: unexpected reply %q", op, reply)
	}

	return nil
}

func (s *Storage) Close() error {
	const op = "cache.redis.Close"

	if err := s.client.Close(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
