package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// usageKeyPrefix namespaces the per-skill usage counters. Game servers
// increment these as players learn and unlearn skills; the governance
// side only ever reads them.
const usageKeyPrefix = "skill:usage:"

// UsageKey returns the counter key for a skill id.
func UsageKey(skillID string) string {
	return usageKeyPrefix + skillID
}

// UsageStore reads per-skill usage counters. It implements the
// engine's usage-count port.
type UsageStore struct {
	client *redis.Client
}

// NewUsageStore creates a UsageStore on the given client.
//
// Precondition: client must be non-nil and connected.
func NewUsageStore(client *redis.Client) *UsageStore {
	return &UsageStore{client: client}
}

// UsageCount returns how many players currently have the skill. A
// missing counter means nobody has it yet and reads as zero.
//
// Postcondition: Returns a count >= 0, or an error on connection
// failure or a malformed counter value.
func (u *UsageStore) UsageCount(ctx context.Context, skillID string) (int, error) {
	val, err := u.client.Get(ctx, UsageKey(skillID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading usage counter for %q: %w", skillID, err)
	}

	count, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("malformed usage counter for %q: %w", skillID, err)
	}
	if count < 0 {
		count = 0
	}
	return count, nil
}
