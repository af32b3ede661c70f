package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/readiness-backend/internal/platform/dbctx"
)

func TestInjectedTxRunnerCommitsOnSuccess(t *testing.T) {
	r := &InjectedTxRunner{}
	called := false
	if err := r.InTx(context.Background(), func(_ dbctx.Context) error {
		called = true
		return nil
	}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !called {
		t.Fatalf("expected callback to run")
	}
	if r.BeginCalls != 1 || r.CommitCalls != 1 || r.RollbackCalls != 0 {
		t.Fatalf("unexpected counters begin=%d commit=%d rollback=%d", r.BeginCalls, r.CommitCalls, r.RollbackCalls)
	}
}

func TestInjectedTxRunnerRollsBack(t *testing.T) {
	bodyErr := errors.New("boom")
	r := &InjectedTxRunner{}
	if err := r.InTx(context.Background(), func(_ dbctx.Context) error { return bodyErr }); !errors.Is(err, bodyErr) {
		t.Fatalf("expected body err, got %v", err)
	}
	commitErr := errors.New("commit failed")
	r2 := &InjectedTxRunner{FailCommit: commitErr}
	if err := r2.InTx(context.Background(), func(_ dbctx.Context) error { return nil }); !errors.Is(err, commitErr) {
		t.Fatalf("expected commit err, got %v", err)
	}
	if r.RollbackCalls != 1 || r2.RollbackCalls != 1 || r2.CommitCalls != 0 {
		t.Fatalf("unexpected rollback counters r=%d r2=%d", r.RollbackCalls, r2.RollbackCalls)
	}
}

func TestInjectedTxRunnerFailBeginSkipsBody(t *testing.T) {
	beginErr := errors.New("no conn")
	r := &InjectedTxRunner{FailBegin: beginErr}
	called := false
	if err := r.InTx(context.Background(), func(_ dbctx.Context) error {
		called = true
		return nil
	}); !errors.Is(err, beginErr) {
		t.Fatalf("expected begin err, got %v", err)
	}
	if called {
		t.Fatalf("body must not run when begin fails")
	}
}
