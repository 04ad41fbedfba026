package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"campusnotify/internal/model"
)

// =============================================================================
// MOCK REPOSITORIES
// =============================================================================
//
// Each mock holds optional function fields; tests set only what they need.
// Unset functions return empty results.

var errTest = errors.New("test failure")

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func int64Ptr(v int64) *int64 { return &v }

func rolePtr(r model.Role) *model.Role { return &r }

func clockPtr(s string) *model.ClockTime {
	c, err := model.ParseClockTime(s)
	if err != nil {
		panic(err)
	}
	return &c
}

func at(hhmm string) time.Time {
	c, err := model.ParseClockTime(hhmm)
	if err != nil {
		panic(err)
	}
	return time.Date(2026, 3, 10, int(c)/60, int(c)%60, 0, 0, time.Local)
}

type mockDirectory struct {
	activeUserIDsFn    func(ctx context.Context) ([]int64, error)
	usersByRoleFn      func(ctx context.Context, role model.Role) ([]int64, error)
	classMembersFn     func(ctx context.Context, classID int64, role model.Role) ([]int64, error)
	batchMembersFn     func(ctx context.Context, batchID int64, role model.Role) ([]int64, error)
	moduleMembersFn    func(ctx context.Context, moduleID int64, role model.Role) ([]int64, error)
	userRoleFn         func(ctx context.Context, userID int64) (model.Role, error)
	classIDsForUserFn  func(ctx context.Context, userID int64) ([]int64, error)
	batchIDForUserFn   func(ctx context.Context, userID int64) (*int64, error)
	moduleIDsForUserFn func(ctx context.Context, userID int64) ([]int64, error)
}

func (m *mockDirectory) ActiveUserIDs(ctx context.Context) ([]int64, error) {
	if m.activeUserIDsFn != nil {
		return m.activeUserIDsFn(ctx)
	}
	return []int64{}, nil
}

func (m *mockDirectory) UsersByRole(ctx context.Context, role model.Role) ([]int64, error) {
	if m.usersByRoleFn != nil {
		return m.usersByRoleFn(ctx, role)
	}
	return []int64{}, nil
}

func (m *mockDirectory) ClassMembers(ctx context.Context, classID int64, role model.Role) ([]int64, error) {
	if m.classMembersFn != nil {
		return m.classMembersFn(ctx, classID, role)
	}
	return []int64{}, nil
}

func (m *mockDirectory) BatchMembers(ctx context.Context, batchID int64, role model.Role) ([]int64, error) {
	if m.batchMembersFn != nil {
		return m.batchMembersFn(ctx, batchID, role)
	}
	return []int64{}, nil
}

func (m *mockDirectory) ModuleMembers(ctx context.Context, moduleID int64, role model.Role) ([]int64, error) {
	if m.moduleMembersFn != nil {
		return m.moduleMembersFn(ctx, moduleID, role)
	}
	return []int64{}, nil
}

func (m *mockDirectory) UserRole(ctx context.Context, userID int64) (model.Role, error) {
	if m.userRoleFn != nil {
		return m.userRoleFn(ctx, userID)
	}
	return model.RoleStudent, nil
}

func (m *mockDirectory) ClassIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	if m.classIDsForUserFn != nil {
		return m.classIDsForUserFn(ctx, userID)
	}
	return []int64{}, nil
}

func (m *mockDirectory) BatchIDForUser(ctx context.Context, userID int64) (*int64, error) {
	if m.batchIDForUserFn != nil {
		return m.batchIDForUserFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockDirectory) ModuleIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	if m.moduleIDsForUserFn != nil {
		return m.moduleIDsForUserFn(ctx, userID)
	}
	return []int64{}, nil
}

// mockNoticeRepository returns every visible notice from its list and lets
// the resolver apply the matching predicate, like the SQL prefilter would.
type mockNoticeRepository struct {
	notices   []model.Notice
	getByIDFn func(ctx context.Context, id int64) (*model.Notice, error)
	listErr   error
}

func (m *mockNoticeRepository) GetByID(ctx context.Context, id int64) (*model.Notice, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	for i := range m.notices {
		if m.notices[i].ID == id {
			n := m.notices[i]
			return &n, nil
		}
	}
	return nil, model.ErrNoticeNotFound
}

func (m *mockNoticeRepository) ListVisibleFor(ctx context.Context, audience model.Audience, now time.Time) ([]model.Notice, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := []model.Notice{}
	for _, n := range m.notices {
		if n.Visible(now) {
			out = append(out, n)
		}
	}
	return out, nil
}

// memDeliveries is an in-memory ledger keyed like the real table.
type memDeliveries struct {
	mu      sync.Mutex
	records map[[2]int64]*model.DeliveryRecord
	visible func(noticeID int64) bool
	now     func() time.Time

	bulkEnsureErr error
	ensureCalls   int
}

func newMemDeliveries(visible func(int64) bool) *memDeliveries {
	return &memDeliveries{
		records: map[[2]int64]*model.DeliveryRecord{},
		visible: visible,
		now:     time.Now,
	}
}

func (m *memDeliveries) BulkEnsureDelivered(ctx context.Context, noticeID int64, userIDs []int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureCalls++
	if m.bulkEnsureErr != nil {
		return 0, m.bulkEnsureErr
	}
	var inserted int64
	for _, uid := range userIDs {
		key := [2]int64{noticeID, uid}
		if _, ok := m.records[key]; ok {
			continue
		}
		m.records[key] = &model.DeliveryRecord{
			NoticeID:       noticeID,
			UserID:         uid,
			DeliveryStatus: model.DeliveryStatusDelivered,
			DeliveredAt:    m.now(),
		}
		inserted++
	}
	return inserted, nil
}

func (m *memDeliveries) markLocked(userID, noticeID int64) bool {
	if m.visible != nil && !m.visible(noticeID) {
		return false
	}
	now := m.now()
	key := [2]int64{noticeID, userID}
	rec, ok := m.records[key]
	if !ok {
		rec = &model.DeliveryRecord{NoticeID: noticeID, UserID: userID, DeliveryStatus: model.DeliveryStatusDelivered, DeliveredAt: now}
		m.records[key] = rec
	}
	rec.ReadAt = &now
	return true
}

func (m *memDeliveries) MarkRead(ctx context.Context, userID, noticeID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.markLocked(userID, noticeID) {
		return model.ErrNoticeNotFound
	}
	return nil
}

func (m *memDeliveries) BulkMarkRead(ctx context.Context, userID int64, noticeIDs []int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var marked int64
	for _, id := range noticeIDs {
		if m.markLocked(userID, id) {
			marked++
		}
	}
	return marked, nil
}

func (m *memDeliveries) ReadAt(ctx context.Context, userID int64, noticeIDs []int64) (map[int64]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[int64]time.Time{}
	for _, id := range noticeIDs {
		if rec, ok := m.records[[2]int64{id, userID}]; ok && rec.ReadAt != nil {
			out[id] = *rec.ReadAt
		}
	}
	return out, nil
}

func (m *memDeliveries) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

type mockPreferenceRepository struct {
	prefs     map[int64]*model.NotificationPreference
	getErr    error
	saveCalls int
}

func (m *mockPreferenceRepository) GetByUserID(ctx context.Context, userID int64) (*model.NotificationPreference, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if p, ok := m.prefs[userID]; ok {
		return p, nil
	}
	return nil, model.ErrPreferenceNotFound
}

func (m *mockPreferenceRepository) GetByUserIDs(ctx context.Context, userIDs []int64) (map[int64]*model.NotificationPreference, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	out := map[int64]*model.NotificationPreference{}
	for _, id := range userIDs {
		if p, ok := m.prefs[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *mockPreferenceRepository) GetOrCreate(ctx context.Context, userID int64) (*model.NotificationPreference, error) {
	if m.prefs == nil {
		m.prefs = map[int64]*model.NotificationPreference{}
	}
	if p, ok := m.prefs[userID]; ok {
		return p, nil
	}
	p := model.DefaultPreference(userID)
	m.prefs[userID] = p
	return p, nil
}

func (m *mockPreferenceRepository) Save(ctx context.Context, pref *model.NotificationPreference) error {
	m.saveCalls++
	if m.prefs == nil {
		m.prefs = map[int64]*model.NotificationPreference{}
	}
	m.prefs[pref.UserID] = pref
	return nil
}

// memTokens is an in-memory device_tokens table with a unique token column.
type memTokens struct {
	mu     sync.Mutex
	rows   map[string]*model.DeviceToken
	nextID int64
}

func newMemTokens() *memTokens {
	return &memTokens{rows: map[string]*model.DeviceToken{}}
}

func (m *memTokens) Upsert(ctx context.Context, userID int64, req *model.RegisterTokenRequest) (*model.DeviceToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	row, ok := m.rows[req.Token]
	if !ok {
		m.nextID++
		row = &model.DeviceToken{ID: m.nextID, Token: req.Token, CreatedAt: now}
		m.rows[req.Token] = row
	}
	row.UserID = userID
	row.Platform = req.Platform
	if req.DeviceID != nil {
		row.DeviceID = req.DeviceID
	}
	if req.AppVersion != nil {
		row.AppVersion = req.AppVersion
	}
	row.IsActive = true
	row.LastUsed = now
	row.UpdatedAt = now
	cp := *row
	return &cp, nil
}

func (m *memTokens) ListByUserID(ctx context.Context, userID int64) ([]model.DeviceToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.DeviceToken{}
	for _, r := range m.rows {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memTokens) ActiveTokensForUsers(ctx context.Context, userIDs []int64) ([]model.DeviceToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := toSet(userIDs)
	out := []model.DeviceToken{}
	for _, r := range m.rows {
		if _, ok := want[r.UserID]; ok && r.IsActive {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memTokens) Deactivate(ctx context.Context, userID int64, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[token]
	if !ok || r.UserID != userID {
		return model.ErrTokenNotFound
	}
	r.IsActive = false
	return nil
}

func (m *memTokens) DeactivateTokens(ctx context.Context, tokens []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, t := range tokens {
		if r, ok := m.rows[t]; ok && r.IsActive {
			r.IsActive = false
			n++
		}
	}
	return n, nil
}

func (m *memTokens) TouchTokens(ctx context.Context, tokens []string) error {
	return nil
}

func (m *memTokens) active(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[token]
	return ok && r.IsActive
}

// =============================================================================
// MOCK PUSH PROVIDER / NOTIFIER
// =============================================================================

type mockProvider struct {
	name      string
	maxBatch  int
	accepts   func(token string) bool
	permanent map[string]bool
	transient map[string]bool
	batchErr  error

	mu      sync.Mutex
	batches [][]string
}

func (p *mockProvider) Name() string  { return p.name }
func (p *mockProvider) MaxBatch() int { return p.maxBatch }

func (p *mockProvider) Accepts(token string) bool {
	if p.accepts == nil {
		return true
	}
	return p.accepts(token)
}

func (p *mockProvider) SendMulticast(ctx context.Context, tokens []string, msg model.PushMessage, data map[string]string) ([]model.PushResult, error) {
	p.mu.Lock()
	p.batches = append(p.batches, append([]string(nil), tokens...))
	p.mu.Unlock()

	if p.batchErr != nil {
		return nil, p.batchErr
	}
	results := make([]model.PushResult, len(tokens))
	for i, t := range tokens {
		results[i] = model.PushResult{Token: t, Success: true}
		if p.permanent[t] {
			results[i] = model.PushResult{Token: t, Permanent: true, Err: errTest}
		}
		if p.transient[t] {
			results[i] = model.PushResult{Token: t, Err: errTest}
		}
	}
	return results, nil
}

func (p *mockProvider) sentTokens() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, b := range p.batches {
		out = append(out, b...)
	}
	return out
}

type emitted struct {
	UserID int64
	Event  string
	Data   interface{}
}

type mockNotifier struct {
	mu         sync.Mutex
	online     map[int64]bool
	events     []emitted
	broadcasts []emitted
}

func (n *mockNotifier) IsOnline(ctx context.Context, userID int64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.online[userID]
}

func (n *mockNotifier) EmitToUser(ctx context.Context, userID int64, event string, data interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, emitted{UserID: userID, Event: event, Data: data})
	return nil
}

func (n *mockNotifier) Broadcast(ctx context.Context, event string, data interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.broadcasts = append(n.broadcasts, emitted{Event: event, Data: data})
	return nil
}

func (n *mockNotifier) eventsFor(userID int64, event string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e.UserID == userID && e.Event == event {
			c++
		}
	}
	return c
}
