package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"contest-portal/internal/contest"

	"github.com/redis/go-redis/v9"
)

// Publisher is the subset of *redis.Client the notifier needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisNotifier publishes each new submission on a Redis channel for bots
// and other subscribers.
type RedisNotifier struct {
	pub      Publisher
	channel  string
	platform string
	now      func() time.Time
}

// NewRedisClient connects to addr and verifies the connection.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

// NewRedisNotifier publishes to channel through pub.
func NewRedisNotifier(pub Publisher, channel string) *RedisNotifier {
	return &RedisNotifier{pub: pub, channel: channel, platform: DefaultPlatform, now: time.Now}
}

// Notify implements contest.Notifier.
func (n *RedisNotifier) Notify(ctx context.Context, s contest.Submission) error {
	body, err := json.Marshal(NewPayload(n.platform, s, n.now()))
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if err := n.pub.Publish(ctx, n.channel, body).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", n.channel, err)
	}
	return nil
}
