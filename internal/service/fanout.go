package service

import (
	"context"
	"strconv"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"campusnotify/internal/logger"
	"campusnotify/internal/metrics"
	"campusnotify/internal/model"
	"campusnotify/internal/repository"
)

const (
	fallbackNoticeTitle = "New notice"

	// liveEmitConcurrency bounds the per-user presence and unread count
	// lookups made while emitting a notice live.
	liveEmitConcurrency = 8
)

// RealtimeNotifier pushes events to connected users.
type RealtimeNotifier interface {
	IsOnline(ctx context.Context, userID int64) bool
	EmitToUser(ctx context.Context, userID int64, event string, data interface{}) error
	// Broadcast reaches every connected user.
	Broadcast(ctx context.Context, event string, data interface{}) error
}

// FanoutService runs the publish pipeline of a notice: resolve, filter,
// record, emit live, push. A failing stage is logged and never stops the
// stages after it.
type FanoutService struct {
	resolver   *RecipientResolver
	prefs      *PreferenceService
	ledger     *NotificationService
	notices    repository.NoticeRepository
	deliveries repository.DeliveryRepository
	notifier   RealtimeNotifier
	push       *PushDispatcher
	log        logrus.FieldLogger
}

func NewFanoutService(
	resolver *RecipientResolver,
	prefs *PreferenceService,
	ledger *NotificationService,
	notices repository.NoticeRepository,
	deliveries repository.DeliveryRepository,
	notifier RealtimeNotifier,
	push *PushDispatcher,
	log logrus.FieldLogger,
) *FanoutService {
	return &FanoutService{
		resolver:   resolver,
		prefs:      prefs,
		ledger:     ledger,
		notices:    notices,
		deliveries: deliveries,
		notifier:   notifier,
		push:       push,
		log:        logger.Component(log, "fanout"),
	}
}

// Publish fans a published notice out to its audience.
//
// Delivery records are written for every resolved recipient before anything
// is emitted, whatever their preferences; preferences only decide who is
// alerted.
func (s *FanoutService) Publish(ctx context.Context, ev model.NoticePublished) model.FanoutReport {
	report := model.FanoutReport{NoticeID: ev.NoticeID}
	log := s.log.WithField("notice_id", ev.NoticeID)
	degraded := false

	payload := model.NewNoticePayload{
		NoticeID: ev.NoticeID,
		Title:    fallbackNoticeTitle,
		Category: ev.Category,
		Priority: ev.Priority,
	}
	if notice, err := s.notices.GetByID(ctx, ev.NoticeID); err != nil {
		log.WithError(err).Warn("Publish: notice lookup failed, using fallback title")
		degraded = true
	} else {
		payload.Title = notice.Title
		payload.Content = notice.Content
		payload.PublishedAt = notice.PublishedAt
		if payload.Category == "" {
			payload.Category = notice.Category
		}
		if payload.Priority == "" {
			payload.Priority = notice.Priority
		}
	}

	recipients, err := s.resolver.Resolve(ctx, ev.Target)
	if err != nil {
		log.WithError(err).Warn("Publish: recipient resolution partially failed")
		degraded = true
	}
	report.Resolved = len(recipients)
	if len(recipients) == 0 {
		log.Info("Publish: no recipients")
		s.finish(report, degraded)
		return report
	}

	alertable, pushable := s.prefs.FilterForPush(ctx, recipients, payload.Category)
	report.Alertable = len(alertable)

	recorded, err := s.deliveries.BulkEnsureDelivered(ctx, ev.NoticeID, recipients)
	if err != nil {
		log.WithError(err).Error("Publish: recording deliveries failed")
		degraded = true
	}
	report.Recorded = recorded

	if s.notifier != nil {
		report.RealtimeSent = s.emitLive(ctx, log, alertable, payload)
	}

	if s.push != nil && s.push.Enabled() && len(pushable) > 0 {
		msg := model.PushMessage{Title: payload.Title, Body: payload.Content}
		data := map[string]string{
			"type":      model.EventNewNotice,
			"notice_id": strconv.FormatInt(ev.NoticeID, 10),
			"category":  string(payload.Category),
		}
		pushReport, err := s.push.SendToUsers(ctx, pushable, msg, data)
		if err != nil {
			log.WithError(err).Warn("Publish: push dispatch failed")
			degraded = true
		}
		report.PushSucceeded = pushReport.SuccessCount
		report.PushFailed = pushReport.FailureCount
	}

	log.WithFields(logrus.Fields{
		"resolved":       report.Resolved,
		"recorded":       report.Recorded,
		"alertable":      report.Alertable,
		"realtime_sent":  report.RealtimeSent,
		"push_succeeded": report.PushSucceeded,
		"push_failed":    report.PushFailed,
	}).Info("Notice fanned out")

	s.finish(report, degraded)
	return report
}

// emitLive sends new_notice and a fresh unread_count to each online user,
// at most liveEmitConcurrency users at a time.
func (s *FanoutService) emitLive(ctx context.Context, log logrus.FieldLogger, userIDs []int64, payload model.NewNoticePayload) int {
	var sent atomic.Int64
	var g errgroup.Group
	g.SetLimit(liveEmitConcurrency)
	for _, userID := range userIDs {
		g.Go(func() error {
			if !s.notifier.IsOnline(ctx, userID) {
				return nil
			}
			if err := s.notifier.EmitToUser(ctx, userID, model.EventNewNotice, payload); err != nil {
				log.WithError(err).WithField("user_id", userID).Warn("Publish: realtime emit failed")
				return nil
			}
			sent.Add(1)

			if s.ledger == nil {
				return nil
			}
			count, err := s.ledger.UnreadCount(ctx, userID, "")
			if err != nil {
				log.WithError(err).WithField("user_id", userID).Warn("Publish: unread count failed")
				return nil
			}
			if err := s.notifier.EmitToUser(ctx, userID, model.EventUnreadCount, count); err != nil {
				log.WithError(err).WithField("user_id", userID).Warn("Publish: unread count emit failed")
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(sent.Load())
}

func (s *FanoutService) finish(report model.FanoutReport, degraded bool) {
	outcome := "ok"
	if degraded {
		outcome = "partial"
	}
	metrics.FanoutsTotal.WithLabelValues(outcome).Inc()
	metrics.FanoutRecipients.WithLabelValues("resolved").Add(float64(report.Resolved))
	metrics.FanoutRecipients.WithLabelValues("recorded").Add(float64(report.Recorded))
	metrics.FanoutRecipients.WithLabelValues("alertable").Add(float64(report.Alertable))
	metrics.FanoutRecipients.WithLabelValues("realtime").Add(float64(report.RealtimeSent))
}

// Retract tells connected clients that a notice was withdrawn so they drop it
// and refresh their counts. Delivery records stay; the notice simply stops
// being eligible.
func (s *FanoutService) Retract(ctx context.Context, noticeID int64) error {
	if s.notifier == nil {
		return nil
	}
	s.log.WithField("notice_id", noticeID).Info("Notice retracted")
	return s.notifier.Broadcast(ctx, model.EventNoticeRetracted, model.NoticeRefPayload{NoticeID: noticeID})
}
