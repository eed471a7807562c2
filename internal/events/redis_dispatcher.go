package events

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// redisDispatcher fans events out to every API instance through Redis pub/sub.
type redisDispatcher struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisDispatcher creates a dispatcher publishing on "<prefix>:<topic>" channels.
func NewRedisDispatcher(client *redis.Client, prefix string, logger *zap.Logger) Dispatcher {
	return &redisDispatcher{client: client, prefix: prefix, logger: logger}
}

func (d *redisDispatcher) channel(topic Topic) string {
	return d.prefix + ":" + string(topic)
}

// Publish serializes the event and publishes it on the topic channel.
func (d *redisDispatcher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return d.client.Publish(ctx, d.channel(event.Topic), payload).Err()
}

// Subscribe opens a pub/sub connection for topic and feeds handler from it.
func (d *redisDispatcher) Subscribe(topic Topic, handler EventHandler) func() {
	ctx, cancel := context.WithCancel(context.Background())
	ps := d.client.Subscribe(ctx, d.channel(topic))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range ps.Channel() {
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				d.logger.Warn("dropping malformed event", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			if err := handler(ctx, event); err != nil {
				d.logger.Debug("event handler failed", zap.String("topic", string(topic)), zap.Error(err))
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			if err := ps.Close(); err != nil {
				d.logger.Debug("closing pubsub", zap.Error(err))
			}
			<-done
		})
	}
}
