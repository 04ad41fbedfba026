package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusnotify/internal/model"
)

type recordingSub struct {
	id     string
	mu     sync.Mutex
	frames [][]byte
	full   bool
}

func (s *recordingSub) ID() string { return s.id }

func (s *recordingSub) Send(frame []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.full {
		return false
	}
	s.frames = append(s.frames, frame)
	return true
}

func (s *recordingSub) events(t *testing.T) []string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.frames))
	for _, f := range s.frames {
		var ev inbound
		require.NoError(t, json.Unmarshal(f, &ev))
		names = append(names, ev.Event)
	}
	return names
}

func TestLocalBroadcaster_PublishReachesRoomMembersOnly(t *testing.T) {
	b := NewLocalBroadcaster()
	alice := &recordingSub{id: "a"}
	bob := &recordingSub{id: "b"}
	b.JoinRoom(alice, UserRoom(1))
	b.JoinRoom(alice, RoleRoom(model.RoleStudent))
	b.JoinRoom(bob, UserRoom(2))

	require.NoError(t, b.Publish(context.Background(), UserRoom(1), Event{Event: model.EventNewNotice}))

	assert.Equal(t, []string{model.EventNewNotice}, alice.events(t))
	assert.Empty(t, bob.events(t))
}

func TestLocalBroadcaster_JoinIsIdempotent(t *testing.T) {
	b := NewLocalBroadcaster()
	sub := &recordingSub{id: "a"}
	b.JoinRoom(sub, UserRoom(1))
	b.JoinRoom(sub, UserRoom(1))

	assert.Equal(t, 1, b.RoomSize(UserRoom(1)))
	assert.Equal(t, 1, b.Deliver(UserRoom(1), []byte(`{"event":"x"}`)))
}

func TestLocalBroadcaster_LeaveAllRemovesEmptyRooms(t *testing.T) {
	b := NewLocalBroadcaster()
	a := &recordingSub{id: "a"}
	c := &recordingSub{id: "c"}
	b.JoinRoom(a, UserRoom(1))
	b.JoinRoom(a, RoleRoom(model.RoleTeacher))
	b.JoinRoom(c, RoleRoom(model.RoleTeacher))

	b.LeaveAll(a)

	assert.Equal(t, 0, b.RoomSize(UserRoom(1)))
	assert.Equal(t, 1, b.RoomSize(RoleRoom(model.RoleTeacher)))
	assert.Equal(t, 0, b.Deliver(UserRoom(1), []byte(`{}`)))
}

func TestLocalBroadcaster_SlowSubscriberDoesNotBlockOthers(t *testing.T) {
	b := NewLocalBroadcaster()
	slow := &recordingSub{id: "slow", full: true}
	fast := &recordingSub{id: "fast"}
	b.JoinRoom(slow, RoleRoom(model.RoleStudent))
	b.JoinRoom(fast, RoleRoom(model.RoleStudent))

	delivered := b.Deliver(RoleRoom(model.RoleStudent), []byte(`{"event":"new_notice"}`))

	assert.Equal(t, 1, delivered)
	assert.Len(t, fast.events(t), 1)
}

func TestRooms(t *testing.T) {
	assert.Equal(t, "user:42", UserRoom(42))
	assert.Equal(t, "role:ADMIN", RoleRoom(model.RoleAdmin))
}

func TestEncode_Shape(t *testing.T) {
	frame, err := encode(Event{Event: model.EventUnreadCount, Data: model.UnreadCount{Unread: 2, Total: 5}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"unread_count","data":{"unread":2,"total":5}}`, string(frame))
}

func TestLocalPresence_CountsConnections(t *testing.T) {
	ctx := context.Background()
	p := NewLocalPresence()

	require.NoError(t, p.Connect(ctx, 7))
	require.NoError(t, p.Connect(ctx, 7))
	require.NoError(t, p.Disconnect(ctx, 7))
	online, err := p.IsOnline(ctx, 7)
	require.NoError(t, err)
	assert.True(t, online)

	require.NoError(t, p.Disconnect(ctx, 7))
	online, err = p.IsOnline(ctx, 7)
	require.NoError(t, err)
	assert.False(t, online)
}
