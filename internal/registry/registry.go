// Package registry is the job table shared between the submitting path,
// the background pipeline run, and concurrent polling reads. Writes are
// whole-state checkpoints so a reader can never observe a torn state.
package registry

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/factura-labs/invoice-pipeline/internal/common"
	"github.com/factura-labs/invoice-pipeline/internal/state"
)

// Store maps job IDs to their latest checkpoint.
type Store interface {
	Put(ctx context.Context, st state.PipelineState) error
	Get(ctx context.Context, jobID uuid.UUID) (state.PipelineState, error)
	List(ctx context.Context, limit int) ([]state.PipelineState, error)
	Delete(ctx context.Context, jobID uuid.UUID) error
	Close() error
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithTTL sets how long terminal jobs are retained.
func WithTTL(d time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithMaxEntries caps the number of retained jobs.
func WithMaxEntries(n int) MemoryOption {
	return func(s *MemoryStore) {
		if n > 0 {
			s.maxEntries = n
		}
	}
}

// WithJanitorInterval sets how often expired entries are swept.
func WithJanitorInterval(d time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		if d > 0 {
			s.sweepEvery = d
		}
	}
}

// MemoryStore is the in-process default. Terminal jobs are evicted after a
// TTL and the table is capped; running jobs are never evicted.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]state.PipelineState

	ttl        time.Duration
	maxEntries int
	sweepEvery time.Duration

	logger *slog.Logger
	stop   chan struct{}
	once   sync.Once
}

// NewMemoryStore builds a MemoryStore and starts its eviction janitor.
func NewMemoryStore(logger *slog.Logger, opts ...MemoryOption) *MemoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &MemoryStore{
		jobs:       make(map[uuid.UUID]state.PipelineState),
		ttl:        24 * time.Hour,
		maxEntries: 1000,
		sweepEvery: time.Minute,
		logger:     logger,
		stop:       make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	go s.janitor()
	return s
}

func (s *MemoryStore) Put(_ context.Context, st state.PipelineState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[st.JobID] = st.Clone()
	if len(s.jobs) > s.maxEntries {
		s.evictOldestLocked(len(s.jobs) - s.maxEntries)
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, jobID uuid.UUID) (state.PipelineState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.jobs[jobID]
	if !ok {
		return state.PipelineState{}, common.ErrJobNotFound
	}
	return st.Clone(), nil
}

func (s *MemoryStore) List(_ context.Context, limit int) ([]state.PipelineState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]state.PipelineState, 0, len(s.jobs))
	for _, st := range s.jobs {
		out = append(out, st.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, jobID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[jobID]; !ok {
		return common.ErrJobNotFound
	}
	delete(s.jobs, jobID)
	return nil
}

// Close stops the eviction janitor.
func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}

func (s *MemoryStore) janitor() {
	ticker := time.NewTicker(s.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *MemoryStore) sweep() {
	cutoff := time.Now().UTC().Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, st := range s.jobs {
		if st.Terminal() && st.UpdatedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("registry sweep", "evicted", removed, "remaining", len(s.jobs))
	}
}

// evictOldestLocked drops the n oldest terminal entries. Caller holds mu.
func (s *MemoryStore) evictOldestLocked(n int) {
	type aged struct {
		id uuid.UUID
		at time.Time
	}
	var terminal []aged
	for id, st := range s.jobs {
		if st.Terminal() {
			terminal = append(terminal, aged{id: id, at: st.UpdatedAt})
		}
	}
	sort.Slice(terminal, func(i, j int) bool { return terminal[i].at.Before(terminal[j].at) })
	for i := 0; i < n && i < len(terminal); i++ {
		delete(s.jobs, terminal[i].id)
	}
}
