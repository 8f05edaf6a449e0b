// Package analyzer defines the abstract LLM boundary used by specialists
// and the moderator: a role-specific prompt plus rendered context goes in,
// text comes out. Production and test implementations are interchangeable
// by construction, following the teacher's agent.LLMProvider split between
// interface and concrete providers.
package analyzer

import (
	"context"

	"github.com/haasonsaas/refinequery/pkg/models"
)

// Request is a single analyzer invocation: a role-bound system prompt and
// the rendered user-facing content (query plus history).
type Request struct {
	Role    models.Role
	System  string
	Content string
}

// Analyzer maps (prompt, context) to text. Implementations may fail
// transiently; callers are expected to retry via internal/retry.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (string, error)

	// Name identifies the backend for logging and metrics.
	Name() string
}
