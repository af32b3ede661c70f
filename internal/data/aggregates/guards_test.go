package aggregates

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/readiness-backend/internal/platform/dbctx"
)

func TestRequireVersionMatch(t *testing.T) {
	if err := RequireVersionMatch(3, 3); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := RequireVersionMatch(2, 3); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict error, got=%v", err)
	}
	if err := RequireVersionMatch(0, -1); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got=%v", err)
	}
}

func TestRequireCASSuccess(t *testing.T) {
	if err := RequireCASSuccess(true, "ok"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := RequireCASSuccess(false, "stale"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict error, got=%v", err)
	}
}

func TestUpdateByVersionRequiresDB(t *testing.T) {
	_, err := NewCASGuard(nil).UpdateByVersion(dbctx.Context{}, "assessments", uuid.New(), 0, nil)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error without db, got=%v", err)
	}
}
