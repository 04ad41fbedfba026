package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"campusnotify/internal/logger"
	"campusnotify/internal/model"
	"campusnotify/internal/repository"
)

// RecipientResolver turns targeting descriptors into user sets, and users
// into the set of notices currently addressed to them.
type RecipientResolver struct {
	directory repository.Directory
	notices   repository.NoticeRepository
	now       func() time.Time
	log       logrus.FieldLogger
}

func NewRecipientResolver(directory repository.Directory, notices repository.NoticeRepository, log logrus.FieldLogger) *RecipientResolver {
	return &RecipientResolver{
		directory: directory,
		notices:   notices,
		now:       time.Now,
		log:       logger.Component(log, "resolver"),
	}
}

// Resolve returns the deduplicated, sorted recipients of target.
//
// Structural fields are ANDed: each set field is resolved for the target's
// audience role and the results are intersected. A failing sub-query
// contributes an empty set; its error is joined into the returned error so
// callers can log it while still using the partial result.
func (r *RecipientResolver) Resolve(ctx context.Context, target model.NoticeTarget) ([]int64, error) {
	if target.IsGlobal() {
		ids, err := r.directory.ActiveUserIDs(ctx)
		if err != nil {
			return []int64{}, fmt.Errorf("resolve global: %w", err)
		}
		return dedupe(ids), nil
	}

	role, _ := target.AudienceRole()
	if !target.IsStructural() {
		ids, err := r.directory.UsersByRole(ctx, role)
		if err != nil {
			return []int64{}, fmt.Errorf("resolve role %s: %w", role, err)
		}
		return dedupe(ids), nil
	}

	var (
		sets []map[int64]struct{}
		errs []error
	)
	lookup := func(kind string, id int64, fn func(context.Context, int64, model.Role) ([]int64, error)) {
		ids, err := fn(ctx, id, role)
		if err != nil {
			errs = append(errs, fmt.Errorf("resolve %s %d: %w", kind, id, err))
			ids = nil
		}
		sets = append(sets, toSet(ids))
	}
	if target.ClassID != nil {
		lookup("class", *target.ClassID, r.directory.ClassMembers)
	}
	if target.BatchID != nil {
		lookup("batch", *target.BatchID, r.directory.BatchMembers)
	}
	if target.ModuleID != nil {
		lookup("module", *target.ModuleID, r.directory.ModuleMembers)
	}

	return sortedKeys(intersect(sets)), errors.Join(errs...)
}

// AudienceFor derives the viewer's current memberships. Each axis degrades to
// empty on failure so a broken batch lookup never hides class-level notices.
func (r *RecipientResolver) AudienceFor(ctx context.Context, userID int64, role model.Role) model.Audience {
	audience := model.Audience{UserID: userID, Role: role, ClassIDs: []int64{}, ModuleIDs: []int64{}}
	log := r.log.WithField("user_id", userID)

	if audience.Role == "" {
		dbRole, err := r.directory.UserRole(ctx, userID)
		if err != nil {
			log.WithError(err).Warn("AudienceFor: role lookup failed")
		}
		audience.Role = dbRole
	}

	if ids, err := r.directory.ClassIDsForUser(ctx, userID); err != nil {
		log.WithError(err).Warn("AudienceFor: class lookup failed, treating as none")
	} else {
		audience.ClassIDs = ids
	}

	if batchID, err := r.directory.BatchIDForUser(ctx, userID); err != nil {
		log.WithError(err).Warn("AudienceFor: batch lookup failed, treating as none")
	} else {
		audience.BatchID = batchID
	}

	if ids, err := r.directory.ModuleIDsForUser(ctx, userID); err != nil {
		log.WithError(err).Warn("AudienceFor: module lookup failed, treating as none")
	} else {
		audience.ModuleIDs = ids
	}

	return audience
}

// EligibleNotices is the union of global, role-targeted and every structural
// target the viewer belongs to right now, newest first, without duplicates.
// It is evaluated per call so membership changes since publish time apply.
func (r *RecipientResolver) EligibleNotices(ctx context.Context, userID int64, role model.Role) ([]model.Notice, error) {
	audience := r.AudienceFor(ctx, userID, role)

	candidates, err := r.notices.ListVisibleFor(ctx, audience, r.now())
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{}, len(candidates))
	eligible := make([]model.Notice, 0, len(candidates))
	for _, n := range candidates {
		if _, dup := seen[n.ID]; dup {
			continue
		}
		if !n.NoticeTarget.Matches(audience) {
			continue
		}
		seen[n.ID] = struct{}{}
		eligible = append(eligible, n)
	}
	return eligible, nil
}

func toSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func intersect(sets []map[int64]struct{}) map[int64]struct{} {
	if len(sets) == 0 {
		return map[int64]struct{}{}
	}
	result := sets[0]
	for _, s := range sets[1:] {
		next := make(map[int64]struct{})
		for id := range result {
			if _, ok := s[id]; ok {
				next[id] = struct{}{}
			}
		}
		result = next
	}
	return result
}

func sortedKeys(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func dedupe(ids []int64) []int64 {
	return sortedKeys(toSet(ids))
}
