package tools

import (
	"sync"

	"github.com/yairfalse/tagvet/types"
)

// maxSnapshots bounds trend history so a long-lived process does not
// grow without limit.
const maxSnapshots = 500

// history retains recent compliance snapshots for trend queries.
// Violations are dropped from retained snapshots; the trend only needs
// scores and timestamps.
type history struct {
	mu    sync.Mutex
	items []types.ComplianceResult
}

func newHistory() *history {
	return &history{}
}

func (h *history) append(result types.ComplianceResult) {
	result.Violations = nil

	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = append(h.items, result)
	if len(h.items) > maxSnapshots {
		h.items = h.items[len(h.items)-maxSnapshots:]
	}
}

func (h *history) snapshots() []types.ComplianceResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]types.ComplianceResult(nil), h.items...)
}
