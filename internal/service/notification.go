package service

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"

	"campusnotify/internal/logger"
	"campusnotify/internal/model"
	"campusnotify/internal/repository"
)

const (
	defaultInboxLimit = 20
	maxInboxLimit     = 100
)

// NotificationService is the read side of the Delivery Ledger: counts,
// inbox listing and read marking for a single viewer.
//
// Totals are computed against the notices the viewer is eligible for right
// now, not against delivery rows, so users who joined a class after a notice
// was published still see it.
type NotificationService struct {
	resolver   *RecipientResolver
	deliveries repository.DeliveryRepository
	log        logrus.FieldLogger
}

func NewNotificationService(
	resolver *RecipientResolver,
	deliveries repository.DeliveryRepository,
	log logrus.FieldLogger,
) *NotificationService {
	return &NotificationService{
		resolver:   resolver,
		deliveries: deliveries,
		log:        logger.Component(log, "ledger"),
	}
}

// ListForUser returns the viewer's eligible notices, newest first, with read state.
func (s *NotificationService) ListForUser(ctx context.Context, userID int64, role model.Role, limit int) ([]model.InboxItem, error) {
	if limit <= 0 {
		limit = defaultInboxLimit
	}
	if limit > maxInboxLimit {
		limit = maxInboxLimit
	}

	notices, err := s.resolver.EligibleNotices(ctx, userID, role)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(notices, func(i, j int) bool {
		return notices[i].PublishedAt.After(notices[j].PublishedAt)
	})
	if len(notices) > limit {
		notices = notices[:limit]
	}

	readAt, err := s.deliveries.ReadAt(ctx, userID, noticeIDs(notices))
	if err != nil {
		return nil, err
	}

	items := make([]model.InboxItem, len(notices))
	for i, n := range notices {
		items[i] = model.InboxItem{Notice: n}
		if at, ok := readAt[n.ID]; ok {
			at := at
			items[i].IsRead = true
			items[i].ReadAt = &at
		}
	}
	return items, nil
}

// UnreadCount returns the badge numbers. Unread never exceeds Total.
func (s *NotificationService) UnreadCount(ctx context.Context, userID int64, role model.Role) (model.UnreadCount, error) {
	stats, err := s.Stats(ctx, userID, role)
	if err != nil {
		return model.UnreadCount{}, err
	}
	return model.UnreadCount{Unread: stats.Unread, Total: stats.Total}, nil
}

// Stats returns total, read and unread over the viewer's eligible notices.
func (s *NotificationService) Stats(ctx context.Context, userID int64, role model.Role) (model.NotificationStats, error) {
	notices, err := s.resolver.EligibleNotices(ctx, userID, role)
	if err != nil {
		return model.NotificationStats{}, err
	}
	if len(notices) == 0 {
		return model.NotificationStats{}, nil
	}

	readAt, err := s.deliveries.ReadAt(ctx, userID, noticeIDs(notices))
	if err != nil {
		return model.NotificationStats{}, err
	}

	read := 0
	for _, n := range notices {
		if _, ok := readAt[n.ID]; ok {
			read++
		}
	}
	return model.NotificationStats{
		Total:  len(notices),
		Read:   read,
		Unread: len(notices) - read,
	}, nil
}

// MarkRead records that userID has read noticeID. Marking twice is harmless.
func (s *NotificationService) MarkRead(ctx context.Context, userID, noticeID int64) error {
	return s.deliveries.MarkRead(ctx, userID, noticeID)
}

// BulkMarkRead marks every visible notice in noticeIDs as read; unknown or
// expired ids are skipped and show up as Marked < Requested.
func (s *NotificationService) BulkMarkRead(ctx context.Context, userID int64, noticeIDs []int64) (*model.BulkMarkReadResult, error) {
	ids := dedupe(noticeIDs)
	marked, err := s.deliveries.BulkMarkRead(ctx, userID, ids)
	if err != nil {
		return nil, err
	}
	if marked < int64(len(ids)) {
		s.log.WithFields(logrus.Fields{
			"user_id":   userID,
			"requested": len(ids),
			"marked":    marked,
		}).Debug("BulkMarkRead: some notices skipped")
	}
	return &model.BulkMarkReadResult{
		NoticeIDs: ids,
		Requested: len(ids),
		Marked:    marked,
	}, nil
}

// MarkAllRead marks every currently eligible unread notice as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID int64, role model.Role) (*model.BulkMarkReadResult, error) {
	notices, err := s.resolver.EligibleNotices(ctx, userID, role)
	if err != nil {
		return nil, err
	}
	ids := noticeIDs(notices)

	readAt, err := s.deliveries.ReadAt(ctx, userID, ids)
	if err != nil {
		return nil, err
	}
	unread := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := readAt[id]; !ok {
			unread = append(unread, id)
		}
	}
	if len(unread) == 0 {
		return &model.BulkMarkReadResult{NoticeIDs: unread}, nil
	}
	return s.BulkMarkRead(ctx, userID, unread)
}

func noticeIDs(notices []model.Notice) []int64 {
	ids := make([]int64, len(notices))
	for i, n := range notices {
		ids[i] = n.ID
	}
	return ids
}
