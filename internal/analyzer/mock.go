package analyzer

import (
	"context"
	"fmt"
	"sync"

	"github.com/haasonsaas/refinequery/pkg/models"
)

// Mock is a deterministic Analyzer returning canned text keyed by role,
// used by tests and local development without a live LLM backend. Roles
// absent from Responses get a synthesized default. Setting Fail[role]
// makes that role's call return Err (or a generic failure).
type Mock struct {
	mu sync.Mutex

	Responses map[models.Role]string
	Fail      map[models.Role]bool
	Err       error

	// Calls records every role invoked, in invocation order, for test
	// assertions about concurrency and retry behavior.
	Calls []models.Role
}

// NewMock builds a Mock with the given canned responses.
func NewMock(responses map[models.Role]string) *Mock {
	return &Mock{Responses: responses}
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) Analyze(ctx context.Context, req Request) (string, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req.Role)
	fail := m.Fail[req.Role]
	resp, ok := m.Responses[req.Role]
	m.mu.Unlock()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	if fail {
		if m.Err != nil {
			return "", m.Err
		}
		return "", fmt.Errorf("mock: %s analyzer unavailable", req.Role)
	}
	if !ok {
		resp = fmt.Sprintf("[%s] analysis of: %s", req.Role, req.Content)
	}
	return resp, nil
}
