// Package memory keeps tool runs in process for installs without a database
package memory

import (
	"context"
	"sort"
	"sync"

	"curiesuite/domain/core"
	"curiesuite/domain/run"
	"curiesuite/internal/errors"
	"curiesuite/ports"
)

// RunRepository is a bounded in-memory run store. The oldest runs are
// evicted once Capacity is exceeded.
type RunRepository struct {
	mu       sync.RWMutex
	runs     map[core.RunID]*run.Run
	capacity int
}

var _ ports.RunRepository = (*RunRepository)(nil)

// NewRunRepository creates a store holding at most capacity runs (0 means
// 500)
func NewRunRepository(capacity int) *RunRepository {
	if capacity <= 0 {
		capacity = 500
	}
	return &RunRepository{runs: make(map[core.RunID]*run.Run), capacity: capacity}
}

func (m *RunRepository) Save(_ context.Context, r *run.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[r.ID] = clone(r, true)
	m.evict()
	return nil
}

func (m *RunRepository) Get(_ context.Context, id core.RunID) (*run.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, errors.WithCode(errors.CodeNotFound, core.NewNotFoundError("run", id.String()))
	}
	return clone(r, true), nil
}

func (m *RunRepository) ListRecent(_ context.Context, limit int) ([]*run.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*run.Run, 0, len(m.runs))
	for _, r := range m.sorted() {
		if len(out) == limit {
			break
		}
		out = append(out, clone(r, false))
	}
	return out, nil
}

func (m *RunRepository) Delete(_ context.Context, id core.RunID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[id]; !ok {
		return errors.WithCode(errors.CodeNotFound, core.NewNotFoundError("run", id.String()))
	}
	delete(m.runs, id)
	return nil
}

// sorted returns runs newest first; callers hold the lock
func (m *RunRepository) sorted() []*run.Run {
	all := make([]*run.Run, 0, len(m.runs))
	for _, r := range m.runs {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return all
}

func (m *RunRepository) evict() {
	if len(m.runs) <= m.capacity {
		return
	}
	all := m.sorted()
	for _, r := range all[m.capacity:] {
		delete(m.runs, r.ID)
	}
}

func clone(r *run.Run, withData bool) *run.Run {
	c := *r
	c.Params = append([]byte(nil), r.Params...)
	c.Summary = append([]string(nil), r.Summary...)
	c.Artifacts = make([]run.Artifact, len(r.Artifacts))
	for i, a := range r.Artifacts {
		c.Artifacts[i] = run.Artifact{Name: a.Name, MediaType: a.MediaType}
		if withData {
			c.Artifacts[i].Data = append([]byte(nil), a.Data...)
		}
	}
	return &c
}
