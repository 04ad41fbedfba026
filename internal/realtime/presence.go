package realtime

import (
	"context"
	"sync"
)

// Presence tracks which users have at least one open connection.
type Presence interface {
	Connect(ctx context.Context, userID int64) error
	Disconnect(ctx context.Context, userID int64) error
	// Refresh extends a live user's presence; called on every pong.
	Refresh(ctx context.Context, userID int64) error
	IsOnline(ctx context.Context, userID int64) (bool, error)
}

// LocalPresence counts connections per user in this process.
type LocalPresence struct {
	mu     sync.Mutex
	counts map[int64]int
}

func NewLocalPresence() *LocalPresence {
	return &LocalPresence{counts: make(map[int64]int)}
}

func (p *LocalPresence) Connect(ctx context.Context, userID int64) error {
	p.mu.Lock()
	p.counts[userID]++
	p.mu.Unlock()
	return nil
}

func (p *LocalPresence) Disconnect(ctx context.Context, userID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.counts[userID] <= 1 {
		delete(p.counts, userID)
		return nil
	}
	p.counts[userID]--
	return nil
}

func (p *LocalPresence) Refresh(ctx context.Context, userID int64) error {
	return nil
}

func (p *LocalPresence) IsOnline(ctx context.Context, userID int64) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[userID] > 0, nil
}
