package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	domainagg "github.com/yungbote/readiness-backend/internal/domain/aggregates"
	"github.com/yungbote/readiness-backend/internal/domain/assessment"
)

// runContract exercises the Store behaviour every implementation must share.
func runContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("create assigns id and timestamps", func(t *testing.T) {
		s := newStore(t)
		in := draft()
		created, err := s.Create(context.Background(), in)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if created.ID == uuid.Nil {
			t.Fatalf("expected store-assigned id")
		}
		if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
			t.Fatalf("expected timestamps, got created=%v updated=%v", created.CreatedAt, created.UpdatedAt)
		}
		if in.ID != uuid.Nil {
			t.Fatalf("Create must not mutate its input")
		}
		got, err := s.Get(context.Background(), created.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Email != in.Email || got.Status != assessment.StatusDraft || got.Version != 0 {
			t.Fatalf("unexpected stored assessment: %+v", got)
		}
		if got.OverallScore != nil || len(got.DimensionScores) != 0 {
			t.Fatalf("draft should carry no scores: %+v", got)
		}
	})

	t.Run("get unknown id", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Get(context.Background(), uuid.New()); !domainagg.IsCode(err, domainagg.CodeNotFound) {
			t.Fatalf("want not_found, got=%v", err)
		}
	})

	t.Run("compare and swap", func(t *testing.T) {
		s := newStore(t)
		created, err := s.Create(context.Background(), draft())
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		next := created.Clone()
		next.Status = assessment.StatusInProgress
		next.Answers[101] = assessment.Answer{QuestionID: 101, Value: 4, AnsweredAt: time.Now().UTC()}
		next.UpdatedAt = time.Now().UTC()
		swapped, err := s.CompareAndSwap(context.Background(), created.ID, 0, next)
		if err != nil {
			t.Fatalf("CompareAndSwap: %v", err)
		}
		if swapped.Version != 1 || swapped.Status != assessment.StatusInProgress {
			t.Fatalf("unexpected swap result: version=%d status=%s", swapped.Version, swapped.Status)
		}
		if swapped.Answers[101].Value != 4 {
			t.Fatalf("answer not persisted: %+v", swapped.Answers)
		}

		stale := created.Clone()
		stale.Status = assessment.StatusSubmitted
		if _, err := s.CompareAndSwap(context.Background(), created.ID, 0, stale); !domainagg.IsCode(err, domainagg.CodeVersionConflict) {
			t.Fatalf("stale swap: want version_conflict got=%v", err)
		}
		got, err := s.Get(context.Background(), created.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Version != 1 || got.Status != assessment.StatusInProgress {
			t.Fatalf("stale swap mutated state: version=%d status=%s", got.Version, got.Status)
		}
		if _, err := s.CompareAndSwap(context.Background(), uuid.New(), 0, next); !domainagg.IsCode(err, domainagg.CodeNotFound) {
			t.Fatalf("unknown id swap: want not_found got=%v", err)
		}
	})

	t.Run("scores round trip", func(t *testing.T) {
		s := newStore(t)
		created, err := s.Create(context.Background(), draft())
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		next := created.Clone()
		overall := 62.5
		now := time.Now().UTC()
		next.Status = assessment.StatusScored
		next.DimensionScores = map[int]float64{1: 75, 2: 50}
		next.OverallScore = &overall
		next.ScoredAt = &now
		if _, err := s.CompareAndSwap(context.Background(), created.ID, 0, next); err != nil {
			t.Fatalf("CompareAndSwap: %v", err)
		}
		got, err := s.Get(context.Background(), created.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.OverallScore == nil || *got.OverallScore != 62.5 || got.DimensionScores[1] != 75 || got.ScoredAt == nil {
			t.Fatalf("scores not persisted: %+v", got)
		}
	})

	t.Run("concurrent swaps have one winner", func(t *testing.T) {
		s := newStore(t)
		created, err := s.Create(context.Background(), draft())
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		const n = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			wins      int
			conflicts int
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(v int) {
				defer wg.Done()
				next := created.Clone()
				next.Status = assessment.StatusInProgress
				next.Answers[101] = assessment.Answer{QuestionID: 101, Value: 1 + v%5}
				_, err := s.CompareAndSwap(context.Background(), created.ID, 0, next)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					wins++
				case domainagg.IsCode(err, domainagg.CodeVersionConflict):
					conflicts++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		wg.Wait()
		if wins != 1 || conflicts != n-1 {
			t.Fatalf("want 1 winner and %d conflicts, got wins=%d conflicts=%d", n-1, wins, conflicts)
		}
	})

	t.Run("list by status before", func(t *testing.T) {
		s := newStore(t)
		old := time.Now().UTC().Add(-48 * time.Hour)
		var oldIDs []uuid.UUID
		for i := 0; i < 3; i++ {
			a := draft()
			a.Status = assessment.StatusScored
			a.CreatedAt = old.Add(time.Duration(i) * time.Minute)
			a.UpdatedAt = a.CreatedAt
			created, err := s.Create(context.Background(), a)
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			oldIDs = append(oldIDs, created.ID)
		}
		if _, err := s.Create(context.Background(), draft()); err != nil {
			t.Fatalf("Create draft: %v", err)
		}
		fresh := draft()
		fresh.Status = assessment.StatusScored
		if _, err := s.Create(context.Background(), fresh); err != nil {
			t.Fatalf("Create fresh: %v", err)
		}

		cutoff := time.Now().UTC().Add(-24 * time.Hour)
		got, err := s.ListByStatusBefore(context.Background(), assessment.StatusScored, cutoff, 0)
		if err != nil {
			t.Fatalf("ListByStatusBefore: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("want 3 old scored assessments, got=%d", len(got))
		}
		for i, a := range got {
			if a.ID != oldIDs[i] {
				t.Fatalf("position %d: want=%s got=%s", i, oldIDs[i], a.ID)
			}
		}
		limited, err := s.ListByStatusBefore(context.Background(), assessment.StatusScored, cutoff, 2)
		if err != nil {
			t.Fatalf("ListByStatusBefore limited: %v", err)
		}
		if len(limited) != 2 {
			t.Fatalf("limit: want=2 got=%d", len(limited))
		}
	})
}

func draft() *assessment.Assessment {
	return &assessment.Assessment{
		OrganizationName: "Acme",
		Email:            "ops@acme.test",
		Industry:         "manufacturing",
		Type:             assessment.TypeQuick,
		Tier:             assessment.TierFree,
		Status:           assessment.StatusDraft,
		Answers:          map[int]assessment.Answer{},
	}
}
