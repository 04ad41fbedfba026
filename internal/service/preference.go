package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"campusnotify/internal/logger"
	"campusnotify/internal/model"
	"campusnotify/internal/repository"
)

// PreferenceService owns notification preferences and the alerting decision.
// Its verdicts gate push and in-app alerts only; delivery bookkeeping never
// consults it.
type PreferenceService struct {
	repo repository.PreferenceRepository
	now  func() time.Time
	log  logrus.FieldLogger
}

func NewPreferenceService(repo repository.PreferenceRepository, log logrus.FieldLogger) *PreferenceService {
	return &PreferenceService{
		repo: repo,
		now:  time.Now,
		log:  logger.Component(log, "preferences"),
	}
}

// WithClock replaces the wall clock used for quiet hours.
func (s *PreferenceService) WithClock(now func() time.Time) *PreferenceService {
	s.now = now
	return s
}

// ShouldNotify decides whether userID should be alerted about a notice of
// category right now. Users without a preference row are notified.
func (s *PreferenceService) ShouldNotify(ctx context.Context, userID int64, category model.Category) bool {
	pref, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, model.ErrPreferenceNotFound) {
			s.log.WithError(err).WithField("user_id", userID).Warn("ShouldNotify: preference lookup failed, defaulting to notify")
		}
		return true
	}
	return Allows(pref, category, s.now())
}

// FilterForPush returns the subset of userIDs that should be alerted,
// preserving order, and the part of it that also accepts push. Preferences are
// fetched in one query.
func (s *PreferenceService) FilterForPush(ctx context.Context, userIDs []int64, category model.Category) (alertable, push []int64) {
	alertable = make([]int64, 0, len(userIDs))
	push = make([]int64, 0, len(userIDs))

	prefs, err := s.repo.GetByUserIDs(ctx, userIDs)
	if err != nil {
		s.log.WithError(err).WithField("count", len(userIDs)).Warn("FilterForPush: preference lookup failed, defaulting to notify")
		prefs = nil
	}

	now := s.now()
	for _, id := range userIDs {
		pref, ok := prefs[id]
		if !ok {
			alertable = append(alertable, id)
			push = append(push, id)
			continue
		}
		if Allows(pref, category, now) {
			alertable = append(alertable, id)
			if pref.PushEnabled {
				push = append(push, id)
			}
		}
	}
	return alertable, push
}

// Allows applies the alerting rules in order, short-circuiting on the first
// that suppresses: in-app channel, category toggle, urgent-only, quiet hours.
//
// Urgent-only lets EXAM through regardless of the notice's priority.
func Allows(pref *model.NotificationPreference, category model.Category, now time.Time) bool {
	if !pref.InAppEnabled {
		return false
	}
	if !pref.CategoryEnabled(category) {
		return false
	}
	if pref.UrgentOnly && category != model.CategoryExam {
		return false
	}
	if pref.InQuietHours(model.ClockTimeOf(now)) {
		return false
	}
	return true
}

// Get returns the user's preferences, creating the default row on first access.
func (s *PreferenceService) Get(ctx context.Context, userID int64) (*model.NotificationPreference, error) {
	return s.repo.GetOrCreate(ctx, userID)
}

// Update applies a partial update and persists the result.
func (s *PreferenceService) Update(ctx context.Context, userID int64, req *model.UpdatePreferencesRequest) (*model.NotificationPreference, error) {
	pref, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := req.Apply(pref); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, pref); err != nil {
		return nil, err
	}

	s.log.WithField("user_id", userID).Info("Preferences updated")
	return pref, nil
}
