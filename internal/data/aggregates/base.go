package aggregates

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	domainagg "github.com/yungbote/readiness-backend/internal/domain/aggregates"
	"github.com/yungbote/readiness-backend/internal/platform/dbctx"
	"github.com/yungbote/readiness-backend/internal/platform/logger"
)

type BaseDeps struct {
	DB       *gorm.DB
	Log      *logger.Logger
	Runner   TxRunner
	Hooks    Hooks
	CASGuard CASGuard
	// Timeout bounds each operation; zero means the caller's context only.
	Timeout time.Duration
}

func (d BaseDeps) withDefaults() BaseDeps {
	if d.Runner == nil {
		d.Runner = NewGormTxRunner(d.DB)
	}
	if d.Hooks == nil {
		d.Hooks = noopHooks{}
	}
	if d.CASGuard.db == nil {
		d.CASGuard = NewCASGuard(d.DB)
	}
	return d
}

// ExecuteWrite runs fn in a transaction, maps its error and reports it.
func ExecuteWrite(ctx context.Context, deps BaseDeps, op string, fn func(dbc dbctx.Context) error) error {
	deps = deps.withDefaults()
	ctx, cancel := withTimeout(ctx, deps.Timeout)
	defer cancel()
	start := time.Now()
	return Track(deps.Hooks, normalizeOp(op, "store.write"), start, deps.Runner.InTx(ctx, fn))
}

// ExecuteRead runs fn outside a transaction, maps its error and reports it.
func ExecuteRead(ctx context.Context, deps BaseDeps, op string, fn func(dbc dbctx.Context) error) error {
	deps = deps.withDefaults()
	ctx, cancel := withTimeout(ctx, deps.Timeout)
	defer cancel()
	start := time.Now()
	return Track(deps.Hooks, normalizeOp(op, "store.read"), start, fn(dbctx.Context{Ctx: ctx}))
}

// Track maps err for op and reports status, duration and counters to hooks.
func Track(hooks Hooks, op string, start time.Time, err error) error {
	if hooks == nil {
		hooks = noopHooks{}
	}
	mapped := MapError(op, err)
	status := "success"
	if mapped != nil {
		status = errorStatus(mapped)
		switch domainagg.CodeOf(mapped) {
		case domainagg.CodeVersionConflict:
			hooks.IncConflict(op)
		case domainagg.CodeStoreUnavailable:
			hooks.IncUnavailable(op)
		}
	}
	hooks.ObserveOperation(op, status, time.Since(start))
	return mapped
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

func normalizeOp(op, fallback string) string {
	op = strings.TrimSpace(op)
	if op == "" {
		return fallback
	}
	return op
}

func errorStatus(err error) string {
	if err == nil {
		return "success"
	}
	code := strings.TrimSpace(string(domainagg.CodeOf(err)))
	if code == "" {
		code = strings.TrimSpace(string(domainagg.CodeOf(MapError("store.status", err))))
	}
	if code == "" {
		return "failure"
	}
	return code
}
