package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/bidvictrix/skillforge/internal/skill"
)

// DefaultChannel is the pub/sub channel used when the configuration
// does not name one.
const DefaultChannel = "skill.updates"

// updateMessage is the wire shape published on the update channel.
type updateMessage struct {
	SkillID string       `json:"skill_id"`
	Skill   *skill.Skill `json:"skill"`
}

// Publisher broadcasts skill changes over Redis pub/sub. It implements
// the engine's notification port; delivery is fire-and-forget and
// subscribers that miss a message reconcile from the skill store.
type Publisher struct {
	client  *redis.Client
	channel string
}

// NewPublisher creates a Publisher on the given client.
//
// Precondition: client must be non-nil and connected. An empty channel
// uses DefaultChannel.
func NewPublisher(client *redis.Client, channel string) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{client: client, channel: channel}
}

// Channel returns the pub/sub channel name.
func (p *Publisher) Channel() string {
	return p.channel
}

// Notify publishes the updated skill definition.
//
// Postcondition: Returns an error on encoding or publish failure; the
// engine logs it and the mutation stands.
func (p *Publisher) Notify(ctx context.Context, skillID string, s *skill.Skill) error {
	payload, err := json.Marshal(updateMessage{SkillID: skillID, Skill: s})
	if err != nil {
		return fmt.Errorf("encoding update for %q: %w", skillID, err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publishing update for %q: %w", skillID, err)
	}
	return nil
}
