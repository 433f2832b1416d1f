// Package redis provides the Redis-backed collaborator ports: the
// usage counters feeding the impact assessor and the pub/sub channel
// that tells live game servers a skill changed.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/bidvictrix/skillforge/internal/config"
)

// NewClient connects a go-redis client from the given configuration.
//
// Precondition: cfg.Addr must be non-empty.
// Postcondition: Returns a connected client or a non-nil error. The
// caller owns the client and must Close it.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}
