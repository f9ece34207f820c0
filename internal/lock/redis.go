// Package lock provides a redis-backed learner lock for deployments running
// more than one server instance against the same database.
package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pavelanni/comunizika/internal/progress"
)

// releaseScript deletes the key only if it still holds our token, so a lock
// that expired and was taken by another instance is left alone.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Config holds redis lock settings.
type Config struct {
	Addr     string
	Password string
	DB       int

	// TTL bounds how long a crashed holder can block a learner.
	TTL time.Duration
	// Retry is the polling interval while the lock is held elsewhere.
	Retry time.Duration
	// Prefix namespaces the lock keys.
	Prefix string
}

// DefaultConfig returns the defaults used by the serve command.
func DefaultConfig() Config {
	return Config{
		Addr:   "localhost:6379",
		TTL:    10 * time.Second,
		Retry:  25 * time.Millisecond,
		Prefix: "comunizika:learner-lock:",
	}
}

// Redis implements progress.Locker with SET NX PX.
type Redis struct {
	client *redis.Client
	cfg    Config
}

var _ progress.Locker = (*Redis)(nil)

// NewRedis connects to redis and verifies the connection.
func NewRedis(ctx context.Context, cfg Config) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return &Redis{client: client, cfg: cfg}, nil
}

// Close closes the redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Key returns the redis key guarding a learner.
func (c Config) Key(learnerID int64) string {
	return fmt.Sprintf("%s%d", c.Prefix, learnerID)
}

// Lock polls until the key is acquired or ctx is done.
func (r *Redis) Lock(ctx context.Context, learnerID int64) (func(), error) {
	key := r.cfg.Key(learnerID)
	token := uuid.NewString()

	ticker := time.NewTicker(r.cfg.Retry)
	defer ticker.Stop()
	for {
		ok, err := r.client.SetNX(ctx, key, token, r.cfg.TTL).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, locked(ctx)
			}
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, locked(ctx)
		case <-ticker.C:
		}
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.TTL)
		defer cancel()
		if err := releaseScript.Run(ctx, r.client, []string{key}, token).Err(); err != nil {
			slog.Warn("failed to release learner lock", "key", key, "error", err)
		}
	}, nil
}

func locked(ctx context.Context) error {
	return &progress.Error{Kind: progress.ErrLearnerLocked, Op: "Lock", Err: ctx.Err()}
}
