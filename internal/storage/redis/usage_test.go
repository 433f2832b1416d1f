package redis_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bidvictrix/skillforge/internal/storage/redis"
)

func TestUsageKey(t *testing.T) {
	assert.Equal(t, "skill:usage:fireball", redis.UsageKey("fireball"))
	assert.Equal(t, "skill:usage:", redis.UsageKey(""))
}
