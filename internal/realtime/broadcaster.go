package realtime

import (
	"context"
	"sync"
)

// Subscriber is a connection that can receive encoded frames.
type Subscriber interface {
	ID() string
	// Send queues a frame without blocking; false means it was dropped.
	Send(frame []byte) bool
}

// Broadcaster groups subscribers into rooms and publishes events to them.
// The Hub only talks to this interface, so rooms can live in-process or be
// bridged across processes.
type Broadcaster interface {
	JoinRoom(sub Subscriber, room string)
	LeaveAll(sub Subscriber)
	Publish(ctx context.Context, room string, ev Event) error
	// RoomSize is the number of local subscribers in room.
	RoomSize(room string) int
}

// LocalBroadcaster keeps rooms in memory for a single process.
type LocalBroadcaster struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]Subscriber
	joined map[string][]string // subscriber id -> rooms
}

func NewLocalBroadcaster() *LocalBroadcaster {
	return &LocalBroadcaster{
		rooms:  make(map[string]map[string]Subscriber),
		joined: make(map[string][]string),
	}
}

func (b *LocalBroadcaster) JoinRoom(sub Subscriber, room string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	members, ok := b.rooms[room]
	if !ok {
		members = make(map[string]Subscriber)
		b.rooms[room] = members
	}
	if _, already := members[sub.ID()]; already {
		return
	}
	members[sub.ID()] = sub
	b.joined[sub.ID()] = append(b.joined[sub.ID()], room)
}

func (b *LocalBroadcaster) LeaveAll(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, room := range b.joined[sub.ID()] {
		members := b.rooms[room]
		delete(members, sub.ID())
		if len(members) == 0 {
			delete(b.rooms, room)
		}
	}
	delete(b.joined, sub.ID())
}

func (b *LocalBroadcaster) Publish(ctx context.Context, room string, ev Event) error {
	frame, err := encode(ev)
	if err != nil {
		return err
	}
	b.Deliver(room, frame)
	return nil
}

// Deliver sends an already encoded frame to every member of room and returns
// how many accepted it. Slow subscribers are skipped, never waited on.
func (b *LocalBroadcaster) Deliver(room string, frame []byte) int {
	b.mu.RLock()
	members := make([]Subscriber, 0, len(b.rooms[room]))
	for _, sub := range b.rooms[room] {
		members = append(members, sub)
	}
	b.mu.RUnlock()

	delivered := 0
	for _, sub := range members {
		if sub.Send(frame) {
			delivered++
		}
	}
	return delivered
}

func (b *LocalBroadcaster) RoomSize(room string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms[room])
}
