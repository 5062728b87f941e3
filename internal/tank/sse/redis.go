package sse

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBridge fans events out to every instance subscribed to the channel.
// Each instance, the publisher included, re-broadcasts on its own hub.
type RedisBridge struct {
	rdb     *redis.Client
	channel string
	hub     *Hub
	logger  *zap.Logger
}

func NewRedisBridge(rdb *redis.Client, channel string, hub *Hub, logger *zap.Logger) *RedisBridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBridge{rdb: rdb, channel: channel, hub: hub, logger: logger}
}

// Publish sends the event through redis, falling back to the local hub
// when redis is unreachable.
func (b *RedisBridge) Publish(ctx context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err == nil {
		err = b.rdb.Publish(ctx, b.channel, payload).Err()
	}
	if err != nil {
		b.logger.Warn("redis publish failed, broadcasting locally", zap.String("event", event.EventType), zap.Error(err))
		b.hub.Broadcast(event)
	}
}

// Run subscribes to the channel and blocks until ctx is done.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	b.logger.Info("subscribed to board channel", zap.String("channel", b.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Warn("dropping malformed board message", zap.Error(err))
				continue
			}
			b.hub.Broadcast(event)
		}
	}
}
