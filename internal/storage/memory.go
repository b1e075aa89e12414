package storage

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process Store. It backs tests and ephemeral runs and keeps
// the same enumeration contract as the sqlite driver (ascending user id).
type Memory struct {
	mu     sync.Mutex
	users  map[int64]struct{}
	promos map[int64]Promotion
	nextID int64
}

func NewMemory() *Memory {
	return &Memory{
		users:  map[int64]struct{}{},
		promos: map[int64]Promotion{},
	}
}

func (m *Memory) AddRecipient(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID] = struct{}{}
	return nil
}

func (m *Memory) RemoveRecipient(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, userID)
	return nil
}

func (m *Memory) CountRecipients(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.users)), nil
}

func (m *Memory) ListRecipients(_ context.Context, limit int) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int64, 0, len(m.users))
	for id := range m.users {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) CreatePromotion(_ context.Context, requesterID int64, content string, audienceLimit int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.promos[id] = Promotion{
		ID:            id,
		RequesterID:   requesterID,
		Content:       content,
		AudienceLimit: audienceLimit,
	}
	return id, nil
}

func (m *Memory) GetPromotion(_ context.Context, id int64) (Promotion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.promos[id]
	if !ok {
		return Promotion{}, ErrNotFound
	}
	return p, nil
}

func (m *Memory) DeletePromotion(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.promos[id]; !ok {
		return ErrNotFound
	}
	delete(m.promos, id)
	return nil
}

func (m *Memory) Close() error { return nil }
