package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/readiness-backend/internal/data/aggregates"
	domainagg "github.com/yungbote/readiness-backend/internal/domain/aggregates"
	"github.com/yungbote/readiness-backend/internal/domain/assessment"
)

// MemoryStore keeps assessments in process memory. Values are cloned on the
// way in and out, so callers never alias stored state.
type MemoryStore struct {
	mu    sync.RWMutex
	rows  map[uuid.UUID]*assessment.Assessment
	hooks aggregates.Hooks
	now   func() time.Time
}

func NewMemoryStore(hooks aggregates.Hooks) *MemoryStore {
	if hooks == nil {
		hooks = aggregates.NoopHooks()
	}
	return &MemoryStore{
		rows:  map[uuid.UUID]*assessment.Assessment{},
		hooks: hooks,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*assessment.Assessment, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, aggregates.Track(s.hooks, opGet, start, err)
	}
	s.mu.RLock()
	row, ok := s.rows[id]
	s.mu.RUnlock()
	if !ok {
		return nil, aggregates.Track(s.hooks, opGet, start, notFound(opGet, id))
	}
	_ = aggregates.Track(s.hooks, opGet, start, nil)
	return row.Clone(), nil
}

func (s *MemoryStore) Create(ctx context.Context, a *assessment.Assessment) (*assessment.Assessment, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, aggregates.Track(s.hooks, opCreate, start, err)
	}
	if a == nil {
		return nil, aggregates.Track(s.hooks, opCreate, start, aggregates.ValidationError("assessment is required"))
	}
	row := a.Clone()
	row.ID = uuid.New()
	stampCreate(row, s.now())

	s.mu.Lock()
	s.rows[row.ID] = row
	s.mu.Unlock()
	_ = aggregates.Track(s.hooks, opCreate, start, nil)
	return row.Clone(), nil
}

func (s *MemoryStore) CompareAndSwap(ctx context.Context, id uuid.UUID, expectedVersion int, mutated *assessment.Assessment) (*assessment.Assessment, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, aggregates.Track(s.hooks, opCAS, start, err)
	}
	if mutated == nil {
		return nil, aggregates.Track(s.hooks, opCAS, start, aggregates.ValidationError("mutated assessment is required"))
	}

	s.mu.Lock()
	current, ok := s.rows[id]
	if !ok {
		s.mu.Unlock()
		return nil, aggregates.Track(s.hooks, opCAS, start, notFound(opCAS, id))
	}
	if err := aggregates.RequireVersionMatch(current.Version, expectedVersion); err != nil {
		s.mu.Unlock()
		return nil, aggregates.Track(s.hooks, opCAS, start, err)
	}
	next := mutated.Clone()
	next.ID = id
	next.CreatedAt = current.CreatedAt
	next.Version = expectedVersion + 1
	s.rows[id] = next
	out := next.Clone()
	s.mu.Unlock()

	_ = aggregates.Track(s.hooks, opCAS, start, nil)
	return out, nil
}

func (s *MemoryStore) ListByStatusBefore(ctx context.Context, status assessment.Status, cutoff time.Time, limit int) ([]*assessment.Assessment, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, aggregates.Track(s.hooks, opList, start, err)
	}
	s.mu.RLock()
	var out []*assessment.Assessment
	for _, row := range s.rows {
		if row.Status == status && row.UpdatedAt.Before(cutoff) {
			out = append(out, row.Clone())
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	_ = aggregates.Track(s.hooks, opList, start, nil)
	return out, nil
}

func stampCreate(a *assessment.Assessment, now time.Time) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = a.CreatedAt
	}
	if a.Answers == nil {
		a.Answers = map[int]assessment.Answer{}
	}
}

func notFound(op string, id uuid.UUID) error {
	return domainagg.Errorf(domainagg.CodeNotFound, op, "assessment %s not found", id)
}
