package curriculum

import (
	"context"
	"sync"

	"github.com/pavelanni/comunizika/internal/model"
	"github.com/pavelanni/comunizika/internal/progress"
)

// MemoryLearners keeps learner progress in memory. It is used by the
// validate command's dry run and by tests.
type MemoryLearners struct {
	mu       sync.Mutex
	progress map[int64]model.Progress
}

var _ progress.Learners = (*MemoryLearners)(nil)

// NewMemoryLearners creates an empty store.
func NewMemoryLearners() *MemoryLearners {
	return &MemoryLearners{progress: make(map[int64]model.Progress)}
}

// LoadProgress returns a deep copy of the stored progress.
func (m *MemoryLearners) LoadProgress(_ context.Context, learnerID int64) (*model.Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.progress[learnerID]
	if !ok {
		return nil, progress.LearnerNotFound("LoadProgress", learnerID)
	}
	return copyProgress(p), nil
}

// SaveProgress stores p when its version matches.
func (m *MemoryLearners) SaveProgress(_ context.Context, p *model.Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.progress[p.LearnerID]
	if (!ok && p.Version != 0) || (ok && stored.Version != p.Version) {
		return progress.ConcurrentUpdate("SaveProgress", p.Version)
	}
	p.Version++
	m.progress[p.LearnerID] = *copyProgress(*p)
	return nil
}

func copyProgress(p model.Progress) *model.Progress {
	c := p
	c.Box = p.Box.Clone()
	c.History = make([]model.HistoryEntry, len(p.History))
	for i, h := range p.History {
		c.History[i] = h
		c.History[i].Box = *h.Box.Clone()
	}
	return &c
}
