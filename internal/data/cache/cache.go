package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/readiness-backend/internal/domain/assessment"
	"github.com/yungbote/readiness-backend/internal/scoring"
)

// ErrMiss is returned by Get when no entry exists for the id.
var ErrMiss = errors.New("cache miss")

// Entry is a cached results view. Only SCORED or ARCHIVED assessments are
// cached; their scores never change once written.
type Entry struct {
	AssessmentID uuid.UUID         `json:"assessment_id"`
	Status       assessment.Status `json:"status"`
	Version      int               `json:"version"`
	Result       scoring.Result    `json:"result"`
	CachedAt     time.Time         `json:"cached_at"`
}

// ResultCache is a look-aside cache for assessment results.
type ResultCache interface {
	Get(ctx context.Context, id uuid.UUID) (*Entry, error)
	Set(ctx context.Context, e *Entry) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type noop struct{}

// Noop never stores anything; every Get is a miss.
func Noop() ResultCache { return noop{} }

// IsNoop reports whether c is the cache returned by Noop.
func IsNoop(c ResultCache) bool {
	_, ok := c.(noop)
	return ok
}

func (noop) Get(context.Context, uuid.UUID) (*Entry, error) { return nil, ErrMiss }
func (noop) Set(context.Context, *Entry) error              { return nil }
func (noop) Delete(context.Context, uuid.UUID) error        { return nil }
