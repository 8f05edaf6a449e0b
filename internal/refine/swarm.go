package refine

import (
	"context"
	"sync"

	"github.com/haasonsaas/refinequery/internal/analyzer"
	"github.com/haasonsaas/refinequery/pkg/models"
)

// SpecialistResult is one fan-out completion signal: a role paired with
// either its rendered text or the terminal error it failed with.
type SpecialistResult struct {
	Role models.Role
	Text string
	Err  error
}

// FanOut runs one Analyzer call per role concurrently and streams each
// completion as soon as it lands, in completion order rather than role
// order. The returned channel is buffered to len(roles) and closed once
// every goroutine has reported, mirroring the teacher's swarm.go
// bounded-channel barrier (there every stage's dependents read until N
// signals drain; here the four specialists have no dependency graph
// between them, so the barrier degenerates to a flat size-4 fan-out).
func FanOut(ctx context.Context, a analyzer.Analyzer, cfg Config, query, history string, roles []models.Role) <-chan SpecialistResult {
	out := make(chan SpecialistResult, len(roles))
	var wg sync.WaitGroup
	wg.Add(len(roles))
	for _, role := range roles {
		go func(role models.Role) {
			defer wg.Done()
			text, err := RunSpecialist(ctx, a, cfg, role, query, history)
			out <- SpecialistResult{Role: role, Text: text, Err: err}
		}(role)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// Drain collects every signal off a FanOut channel, splitting succeeded
// text outputs from the roles that failed. Call this when the caller only
// needs the final aggregate rather than per-completion events.
func Drain(results <-chan SpecialistResult) (outputs map[models.Role]string, failed map[models.Role]error) {
	outputs = map[models.Role]string{}
	failed = map[models.Role]error{}
	for r := range results {
		if r.Err != nil {
			failed[r.Role] = r.Err
			continue
		}
		outputs[r.Role] = r.Text
	}
	return outputs, failed
}
