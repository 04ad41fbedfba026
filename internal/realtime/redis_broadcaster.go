package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"campusnotify/internal/logger"
)

// DefaultRedisChannel carries realtime frames between processes.
const DefaultRedisChannel = "campusnotify:realtime"

// redisEnvelope is the Pub/Sub message: a room plus the encoded frame.
type redisEnvelope struct {
	Room   string          `json:"room"`
	Frame  json.RawMessage `json:"frame"`
	SentAt time.Time       `json:"sent_at"`
}

// RedisBroadcaster publishes every event on a Redis Pub/Sub channel; each
// process subscribes and replays what it receives into its local rooms.
// A user connected to any process therefore gets events emitted by any other.
type RedisBroadcaster struct {
	local   *LocalBroadcaster
	client  *redis.Client
	channel string
	log     logrus.FieldLogger
}

func NewRedisBroadcaster(client *redis.Client, channel string, log logrus.FieldLogger) *RedisBroadcaster {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisBroadcaster{
		local:   NewLocalBroadcaster(),
		client:  client,
		channel: channel,
		log:     logger.Component(log, "realtime-redis"),
	}
}

func (b *RedisBroadcaster) JoinRoom(sub Subscriber, room string) { b.local.JoinRoom(sub, room) }

func (b *RedisBroadcaster) LeaveAll(sub Subscriber) { b.local.LeaveAll(sub) }

func (b *RedisBroadcaster) RoomSize(room string) int { return b.local.RoomSize(room) }

// Publish sends ev to room on every process, this one included.
func (b *RedisBroadcaster) Publish(ctx context.Context, room string, ev Event) error {
	frame, err := encode(ev)
	if err != nil {
		return err
	}
	body, err := json.Marshal(redisEnvelope{Room: room, Frame: frame, SentAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, body).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Run subscribes to the channel and fans messages into local rooms until ctx
// is cancelled. ready, if non-nil, is closed once the subscription is live.
func (b *RedisBroadcaster) Run(ctx context.Context, ready chan<- struct{}) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.log.WithField("channel", b.channel).Info("Realtime bridge subscribed")
	if ready != nil {
		close(ready)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env redisEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.log.WithError(err).Warn("Dropping undecodable realtime message")
				continue
			}
			if env.Room == "" || len(env.Frame) == 0 {
				continue
			}
			b.local.Deliver(env.Room, env.Frame)
		}
	}
}
