package aggregates

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	domainagg "github.com/yungbote/readiness-backend/internal/domain/aggregates"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want domainagg.ErrorCode
	}{
		{"validation", ValidationError("bad input"), domainagg.CodeValidation},
		{"conflict", ConflictError("stale"), domainagg.CodeVersionConflict},
		{"unavailable", UnavailableError("down"), domainagg.CodeStoreUnavailable},
		{"record not found", gorm.ErrRecordNotFound, domainagg.CodeNotFound},
		{"wrapped not found", fmt.Errorf("load: %w", gorm.ErrRecordNotFound), domainagg.CodeNotFound},
		{"deadline", context.DeadlineExceeded, domainagg.CodeStoreUnavailable},
		{"canceled", context.Canceled, domainagg.CodeStoreUnavailable},
		{"serialization", &pgconn.PgError{Code: "40001"}, domainagg.CodeStoreUnavailable},
		{"connection class", &pgconn.PgError{Code: "08006"}, domainagg.CodeStoreUnavailable},
		{"unique violation", &pgconn.PgError{Code: "23505"}, domainagg.CodeInternal},
		{"sqlite busy", errors.New("database is locked"), domainagg.CodeStoreUnavailable},
		{"refused", errors.New("dial tcp: connection refused"), domainagg.CodeStoreUnavailable},
		{"other", errors.New("boom"), domainagg.CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := MapError("op", tc.in)
			if !domainagg.IsCode(err, tc.want) {
				t.Fatalf("want=%s got=%q (%v)", tc.want, domainagg.CodeOf(err), err)
			}
		})
	}
}

func TestMapErrorPassthroughCodedError(t *testing.T) {
	in := domainagg.NewError(domainagg.CodeNotFound, "op", "missing", errors.New("boom"))
	if out := MapError("other", in); out != in {
		t.Fatalf("expected passthrough coded error")
	}
	if MapError("op", nil) != nil {
		t.Fatalf("nil should map to nil")
	}
}
