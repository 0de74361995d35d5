package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type redisPublishClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher PUBLISHes events on a pub/sub channel so every API
// instance can push them to its websocket clients.
type RedisPublisher struct {
	client  redisPublishClient
	channel string
}

func NewRedisPublisher(client redisPublishClient, channel string) *RedisPublisher {
	if channel == "" {
		channel = Channel
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", e.Type, err)
	}
	return nil
}

// Subscribe forwards every event received on channel to handle until ctx is
// done. Malformed payloads are logged and skipped.
func Subscribe(ctx context.Context, client *redis.Client, channel string, handle func(Event)) {
	if channel == "" {
		channel = Channel
	}
	sub := client.Subscribe(ctx, channel)
	ch := sub.Channel()
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				e, err := Decode([]byte(msg.Payload))
				if err != nil {
					zap.L().Warn("dropping malformed event", zap.String("channel", channel), zap.Error(err))
					continue
				}
				handle(e)
			}
		}
	}()
}
