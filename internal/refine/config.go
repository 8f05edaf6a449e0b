// Package refine implements the core orchestration engine: the
// classifier -> supervisor -> specialist fan-out -> moderator -> finalizer
// state machine described by the component design, grounded on the
// teacher's internal/multiagent orchestrator/supervisor/swarm trio.
package refine

import (
	"time"

	"github.com/haasonsaas/refinequery/internal/retry"
)

// Config bundles the per-request tunables from the configuration section:
// history window, analyzer/request deadlines, and retry policy. The
// duplicate_window option lives on the MemoryStore constructor instead of
// here: duplicate tagging is a store-side write guard (§4.7), not something
// the orchestrator itself evaluates.
type Config struct {
	HistoryContextLimit int
	AnalyzerTimeout     time.Duration
	RequestTimeout      time.Duration
	Retry               retry.Config
}

// DefaultConfig matches the documented defaults: K=10 history entries,
// 45s analyzer timeout, 180s request timeout, 3 attempts at 250ms base.
func DefaultConfig() Config {
	return Config{
		HistoryContextLimit: 10,
		AnalyzerTimeout:     45 * time.Second,
		RequestTimeout:      180 * time.Second,
		Retry:               retry.SpecialistConfig(),
	}
}
