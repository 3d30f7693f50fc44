package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "booking:session:"

// SessionGuardRepository records which checkout sessions already produced a
// confirmed booking.
type SessionGuardRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionGuardRepository(client *redis.Client, ttl time.Duration) *SessionGuardRepository {
	return &SessionGuardRepository{client: client, ttl: ttl}
}

// NewRedisClient parses a redis:// URL and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("error parsing REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("error connecting to redis: %w", err)
	}
	return client, nil
}

// Claim marks the session as booked. It returns false when another request
// already holds the claim.
func (r *SessionGuardRepository) Claim(ctx context.Context, sessionID string) (bool, error) {
	ok, err := r.client.SetNX(ctx, sessionKeyPrefix+sessionID, time.Now().UTC().Format(time.RFC3339), r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("error claiming session %s: %w", sessionID, err)
	}
	return ok, nil
}

// Release drops a claim so the same session can be submitted again.
func (r *SessionGuardRepository) Release(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, sessionKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("error releasing session %s: %w", sessionID, err)
	}
	return nil
}
