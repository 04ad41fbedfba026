package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"campusnotify/internal/logger"
	"campusnotify/internal/model"
)

// Publisher defines the interface for publishing events to a stream.
type Publisher interface {
	// Publish adds an event to the specified stream.
	// Returns the message ID assigned by Redis.
	Publish(ctx context.Context, stream string, event NoticeEvent) (messageID string, err error)
}

// RedisPublisher implements Publisher using Redis Streams.
type RedisPublisher struct {
	client *redis.Client
	log    logrus.FieldLogger
}

// NewPublisher creates a new Publisher backed by Redis Streams.
func NewPublisher(client *redis.Client, log logrus.FieldLogger) *RedisPublisher {
	return &RedisPublisher{client: client, log: logger.Component(log, "publisher")}
}

// Publish adds an event to the stream using XADD with an auto-generated ID.
func (p *RedisPublisher) Publish(ctx context.Context, stream string, event NoticeEvent) (string, error) {
	startTime := time.Now()
	log := p.log.WithFields(logrus.Fields{
		"stream":    stream,
		"type":      event.Type,
		"notice_id": event.NoticeID,
	})

	values, err := event.ToMap()
	if err != nil {
		log.WithError(err).Error("Publish failed")
		return "", fmt.Errorf("serialize event: %w", err)
	}

	messageID, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: values,
	}).Result()
	if err != nil {
		log.WithError(err).Error("Publish failed")
		return "", fmt.Errorf("xadd to stream: %w", err)
	}

	log.WithFields(logrus.Fields{
		"msg_id":   messageID,
		"duration": time.Since(startTime).String(),
	}).Info("Publish OK")
	return messageID, nil
}

// PublishNotice enqueues a fan-out for a published notice. Publishing the
// same notice again is safe: delivery records are idempotent.
func (p *RedisPublisher) PublishNotice(ctx context.Context, n model.NoticePublished) (string, error) {
	return p.Publish(ctx, StreamNotices, NewNoticePublishedEvent(n))
}

// PublishRetraction enqueues the withdrawal of a notice.
func (p *RedisPublisher) PublishRetraction(ctx context.Context, noticeID int64) (string, error) {
	return p.Publish(ctx, StreamNotices, NewNoticeRetractedEvent(noticeID))
}
