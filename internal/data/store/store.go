package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/readiness-backend/internal/domain/assessment"
)

// Store persists assessments. CompareAndSwap is linearizable per id: of any
// number of concurrent swaps against the same expected version, exactly one
// succeeds and the rest fail with version_conflict.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (*assessment.Assessment, error)
	// Create assigns a fresh id and missing timestamps and returns the stored copy.
	Create(ctx context.Context, a *assessment.Assessment) (*assessment.Assessment, error)
	// CompareAndSwap replaces the stored assessment with mutated when the
	// stored version equals expectedVersion. The stored version becomes
	// expectedVersion+1 regardless of mutated.Version.
	CompareAndSwap(ctx context.Context, id uuid.UUID, expectedVersion int, mutated *assessment.Assessment) (*assessment.Assessment, error)
	// ListByStatusBefore returns up to limit assessments in status whose
	// updated_at is before cutoff, oldest first. limit <= 0 means no limit.
	ListByStatusBefore(ctx context.Context, status assessment.Status, cutoff time.Time, limit int) ([]*assessment.Assessment, error)
}

const (
	opGet    = "store.get"
	opCreate = "store.create"
	opCAS    = "store.cas"
	opList   = "store.list_by_status"
)
