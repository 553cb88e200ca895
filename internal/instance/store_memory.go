package instance

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"credbridge/pkg/platform/sentinel"
)

// MemoryStore keeps instances in memory for tests and local development.
type MemoryStore struct {
	mu        sync.RWMutex
	instances map[int64]Instance
	nextID    int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{instances: make(map[int64]Instance), nextID: 1}
}

func (s *MemoryStore) Create(_ context.Context, inst *Instance) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	stored := *inst
	stored.ID = id
	s.instances[id] = stored
	return id, nil
}

func (s *MemoryStore) Update(_ context.Context, inst *Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.instances[inst.ID]; !ok {
		return fmt.Errorf("instance %d: %w", inst.ID, sentinel.ErrNotFound)
	}
	s.instances[inst.ID] = *inst
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id int64) (Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.instances[id]
	if !ok {
		return Instance{}, fmt.Errorf("instance %d: %w", id, sentinel.ErrNotFound)
	}
	return inst, nil
}

func (s *MemoryStore) ListByCourse(_ context.Context, courseID int64) ([]Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Instance
	for _, inst := range s.instances {
		if inst.Course == courseID {
			out = append(out, inst)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
