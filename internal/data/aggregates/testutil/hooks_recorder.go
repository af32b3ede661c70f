package testutil

import (
	"sync"
	"time"

	"github.com/yungbote/readiness-backend/internal/data/aggregates"
)

// HooksRecorder captures store hook signals in tests.
type HooksRecorder struct {
	mu sync.Mutex

	Operations  []OperationEvent
	Conflicts   []string
	Unavailable []string
}

type OperationEvent struct {
	Name     string
	Status   string
	Duration time.Duration
}

var _ aggregates.Hooks = (*HooksRecorder)(nil)

func (h *HooksRecorder) ObserveOperation(name, status string, dur time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Operations = append(h.Operations, OperationEvent{Name: name, Status: status, Duration: dur})
}

func (h *HooksRecorder) IncConflict(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Conflicts = append(h.Conflicts, name)
}

func (h *HooksRecorder) IncUnavailable(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Unavailable = append(h.Unavailable, name)
}

// Statuses returns the recorded statuses for op, in order.
func (h *HooksRecorder) Statuses(op string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, ev := range h.Operations {
		if ev.Name == op {
			out = append(out, ev.Status)
		}
	}
	return out
}
