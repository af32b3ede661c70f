package testutil

import (
	"testing"
	"time"
)

func TestHooksRecorderCapturesSignals(t *testing.T) {
	h := &HooksRecorder{}
	h.ObserveOperation("store.cas", "success", 10*time.Millisecond)
	h.ObserveOperation("store.get", "not_found", time.Millisecond)
	h.ObserveOperation("store.cas", "version_conflict", time.Millisecond)
	h.IncConflict("store.cas")
	h.IncUnavailable("store.get")

	statuses := h.Statuses("store.cas")
	if len(statuses) != 2 || statuses[0] != "success" || statuses[1] != "version_conflict" {
		t.Fatalf("unexpected statuses: %v", statuses)
	}
	if len(h.Conflicts) != 1 || h.Conflicts[0] != "store.cas" {
		t.Fatalf("unexpected conflicts: %+v", h.Conflicts)
	}
	if len(h.Unavailable) != 1 || h.Unavailable[0] != "store.get" {
		t.Fatalf("unexpected unavailable: %+v", h.Unavailable)
	}
}
