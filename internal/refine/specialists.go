package refine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/haasonsaas/refinequery/internal/analyzer"
	"github.com/haasonsaas/refinequery/internal/refineerr"
	"github.com/haasonsaas/refinequery/internal/retry"
	"github.com/haasonsaas/refinequery/pkg/models"
)

// systemPrompts holds the role-specific framing injected ahead of the
// rendered query and history. Kept terse and declarative, matching the
// teacher's role-prompt tables in internal/agent/roles.
var systemPrompts = map[models.Role]string{
	models.RoleDomain:    "You are a domain and market-fit analyst. Evaluate the request for business-model soundness, competitive positioning, and regulatory fit.",
	models.RoleUXUI:      "You are a UX/UI analyst. Evaluate the request for usability, accessibility, and interaction design concerns.",
	models.RoleTechnical: "You are a technical architecture analyst. Evaluate the request for feasibility, scalability, and implementation risk.",
	models.RoleRevenue:   "You are a revenue and monetization analyst. Evaluate the request for pricing, margin, and monetization impact.",
}

const moderatorSystemPrompt = "You are the moderator reconciling specialist analyses into a single, prioritized narrative. " +
	"When specialists conflict, prefer technical feasibility over domain fit, domain fit over UX concerns, and UX concerns over " +
	"revenue framing for implementation questions; prefer domain fit over revenue, revenue over UX, and UX over technical detail " +
	"for strategic questions. End your response with a line starting exactly \"Final Answer:\" followed by the synthesized answer."

// RenderHistory formats up to limit most-recent entries as the
// "[timestamp] Q: ... / A: ..." transcript, entries separated by a blank
// line, fed to specialists and the moderator as conversational grounding.
// entries must already be
// most-recent-first; RenderHistory reverses them back to chronological
// order before rendering.
func RenderHistory(entries []*models.MemoryEntry, limit int) string {
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	if len(entries) == 0 {
		return ""
	}
	var b strings.Builder
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		fmt.Fprintf(&b, "[%s] Q: %s / A: %s\n\n", e.Timestamp.UTC().Format(time.RFC3339), e.UserQuery, e.Response)
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderContent joins the query and rendered history into the single
// user-facing content block sent to the analyzer.
func renderContent(query, history string) string {
	if history == "" {
		return query
	}
	return fmt.Sprintf("Conversation so far:\n%s\n\nCurrent request: %s", history, query)
}

// RunSpecialist invokes a on behalf of role, retrying per cfg.Retry and
// bounding each attempt by cfg.AnalyzerTimeout. Errors are classified into
// refineerr.KindCancelled (ctx was cancelled), refineerr.KindTimeout (a
// deadline expired), or refineerr.KindUpstreamUnavailable (retries
// exhausted).
func RunSpecialist(ctx context.Context, a analyzer.Analyzer, cfg Config, role models.Role, query, history string) (string, error) {
	req := analyzer.Request{
		Role:    role,
		System:  systemPrompts[role],
		Content: renderContent(query, history),
	}
	return runAnalyzer(ctx, a, cfg, req)
}

// RunModerator invokes a over the rendered specialist outputs, producing
// the aggregated narrative the finalizer extracts a final answer from.
func RunModerator(ctx context.Context, a analyzer.Analyzer, cfg Config, query string, outputs map[models.Role]string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Original request: %s\n\n", query)
	for _, role := range models.Roles {
		text, ok := outputs[role]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%s analysis:\n%s\n\n", role, text)
	}
	req := analyzer.Request{
		Role:    models.RoleModerator,
		System:  moderatorSystemPrompt,
		Content: strings.TrimRight(b.String(), "\n"),
	}
	return runAnalyzer(ctx, a, cfg, req)
}

func runAnalyzer(ctx context.Context, a analyzer.Analyzer, cfg Config, req analyzer.Request) (string, error) {
	text, result := retry.DoWithValue(ctx, cfg.Retry, func() (string, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, cfg.AnalyzerTimeout)
		defer cancel()
		text, err := a.Analyze(attemptCtx, req)
		if err != nil && attemptCtx.Err() == context.DeadlineExceeded {
			return "", retry.Permanent(fmt.Errorf("%s: %w", req.Role, attemptCtx.Err()))
		}
		return text, err
	})
	if result.Err == nil {
		return text, nil
	}
	if ctx.Err() == context.Canceled {
		return "", refineerr.Wrap(refineerr.KindCancelled, fmt.Sprintf("%s analysis cancelled", req.Role), result.Err)
	}
	if errors.Is(result.Err, context.DeadlineExceeded) {
		return "", refineerr.Wrap(refineerr.KindTimeout, fmt.Sprintf("%s analysis timed out", req.Role), result.Err)
	}
	return "", refineerr.Wrap(refineerr.KindUpstreamUnavailable, fmt.Sprintf("%s analysis failed after %d attempts", req.Role, result.Attempts), result.Err)
}
