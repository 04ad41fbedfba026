package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"campusnotify/internal/logger"
	"campusnotify/internal/model"
	"campusnotify/internal/queue"
)

// NoticeFanout is the part of the fan-out service the worker drives.
type NoticeFanout interface {
	Publish(ctx context.Context, ev model.NoticePublished) model.FanoutReport
	Retract(ctx context.Context, noticeID int64) error
}

// Handler processes notice events from the queue.
type Handler struct {
	fanout NoticeFanout
	log    logrus.FieldLogger
}

// NewHandler creates a new event handler.
func NewHandler(fanout NoticeFanout, log logrus.FieldLogger) *Handler {
	return &Handler{fanout: fanout, log: logger.Component(log, "worker")}
}

// HandleEvent routes an event to the appropriate handler based on type.
func (h *Handler) HandleEvent(ctx context.Context, event queue.NoticeEvent) error {
	startTime := time.Now()
	var err error

	switch event.Type {
	case queue.EventNoticePublished:
		h.fanout.Publish(ctx, event.Published())
	case queue.EventNoticeRetracted:
		err = h.fanout.Retract(ctx, event.NoticeID)
	default:
		err = fmt.Errorf("unknown event type: %s", event.Type)
	}

	log := h.log.WithFields(logrus.Fields{
		"type":      event.Type,
		"notice_id": event.NoticeID,
		"duration":  time.Since(startTime).String(),
	})
	if err != nil {
		log.WithError(err).Warn("HandleEvent failed")
		return err
	}
	log.Debug("HandleEvent OK")
	return nil
}
