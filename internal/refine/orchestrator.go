package refine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/refinequery/internal/analyzer"
	"github.com/haasonsaas/refinequery/internal/classify"
	"github.com/haasonsaas/refinequery/internal/memory"
	"github.com/haasonsaas/refinequery/internal/refineerr"
	"github.com/haasonsaas/refinequery/pkg/models"
)

// Orchestrator drives the classifier -> supervisor -> specialist fan-out ->
// moderator -> finalizer state machine for one query at a time. Memory
// reads happen at entry (classification needs history length) and once
// more right after the finalizer's append, to pick up the store's
// duplicate tag; writes happen only in the finalizer, so there is no
// back-edge from memory into analyzers.
type Orchestrator struct {
	cfg      Config
	analyzer analyzer.Analyzer
	store    memory.Store
	logger   *slog.Logger
	metrics  *Metrics
}

// New builds an Orchestrator. logger and metrics may be nil; a nil logger
// falls back to slog.Default, and a nil Metrics makes every observation a
// no-op.
func New(cfg Config, a analyzer.Analyzer, store memory.Store, logger *slog.Logger, metrics *Metrics) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{cfg: cfg, analyzer: a, store: store, logger: logger, metrics: metrics}
}

// Run starts processing q and returns a channel of events in the documented
// order: classification -> supervisor_plan -> specialist_* -> moderator_* ->
// final_answer -> complete (or cancelled/error in place of complete). A
// single-specialist shortcut run emits no supervisor_plan event. The
// channel is closed once the run ends. Run itself only returns an error
// synchronously for validation failures (empty query) and for a failure to
// read the thread's history; everything else is reported on the stream.
func (o *Orchestrator) Run(ctx context.Context, q models.Query) (<-chan models.Event, error) {
	threadID := q.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}

	var history []*models.MemoryEntry
	if q.ThreadID != "" {
		h, err := o.store.List(ctx, threadID, o.cfg.HistoryContextLimit)
		if err != nil {
			return nil, refineerr.Wrap(refineerr.KindStorageError, "list thread history", err)
		}
		history = h
	}

	verdict, err := classify.Classify(q.Text, len(history), q.FocusHint)
	if err != nil {
		return nil, err
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if o.cfg.RequestTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, o.cfg.RequestTimeout)
	}

	events := make(chan models.Event, 64)
	go o.run(runCtx, cancel, q, threadID, history, verdict, events)
	return events, nil
}

func (o *Orchestrator) run(ctx context.Context, cancel context.CancelFunc, q models.Query, threadID string, history []*models.MemoryEntry, verdict classify.Verdict, events chan models.Event) {
	defer close(events)
	if cancel != nil {
		defer cancel()
	}
	start := time.Now()
	logger := o.logger.With("thread_id", threadID)

	events <- models.Event{
		Type:           models.EventClassification,
		QueryKind:      verdict.QueryKind,
		IsFollowup:     verdict.IsFollowup,
		ShortcutTarget: verdict.ShortcutTarget,
	}

	plan := Supervise(verdict)
	renderedHistory := RenderHistory(history, o.cfg.HistoryContextLimit)

	var priorOutputs map[models.Role]string
	if plan.Mode == ModeModeratorOnly {
		priorOutputs = findPriorSpecialistOutputs(history)
		if len(priorOutputs) == 0 {
			// No prior full-pipeline entry to aggregate: degrade to a full
			// run rather than aggregating nothing.
			plan = Plan{Mode: ModeFullPipeline, Roles: append([]models.Role(nil), models.Roles...), NeedModerator: true}
		}
	}

	if plan.Mode != ModeShortcut {
		events <- models.Event{Type: models.EventSupervisorPlan, RouteDecision: plan.RouteDecision(), PlannedRoles: plan.Roles}
	}

	entry := &models.ConversationEntry{
		EntryID:           uuid.NewString(),
		ThreadID:          threadID,
		Timestamp:         time.Now().UTC(),
		UserQuery:         q.Text,
		QueryKind:         verdict.QueryKind,
		IsFollowup:        verdict.IsFollowup,
		RouteDecision:     plan.RouteDecision(),
		SpecialistOutputs: map[models.Role]string{},
	}

	var finalText string
	switch plan.Mode {
	case ModeShortcut:
		role := plan.Roles[0]
		events <- models.Event{Type: models.EventSpecialistStart, Role: role}
		text, err := RunSpecialist(ctx, o.analyzer, o.cfg, role, q.Text, renderedHistory)
		events <- models.Event{Type: models.EventSpecialistResult, Role: role, Text: text, Err: err}
		if err != nil {
			o.metrics.observeSpecialistCall(string(role), "error")
			if ctx.Err() != nil {
				o.emitCtxOutcome(ctx, events)
				return
			}
			o.metrics.observeError(string(refineerr.KindOf(err)))
			o.emitError(events, logger, err)
			return
		}
		o.metrics.observeSpecialistCall(string(role), "ok")
		entry.SpecialistOutputs[role] = text
		finalText = text

	case ModeModeratorOnly:
		events <- models.Event{Type: models.EventModeratorStart}
		modText, err := RunModerator(ctx, o.analyzer, o.cfg, q.Text, priorOutputs)
		entry.SpecialistOutputs = priorOutputs
		if err != nil {
			logger.Warn("moderator failed on moderator-only shortcut; falling back to carried specialist text", "err", err)
			finalText = firstByRoleOrder(priorOutputs)
			entry.ModeratorOutput = finalText
			entry.HasModeratorOutput = true
		} else {
			events <- models.Event{Type: models.EventModeratorResult, Text: modText}
			entry.ModeratorOutput = modText
			entry.HasModeratorOutput = true
			finalText = ExtractFinalAnswer(modText)
		}

	case ModeFullPipeline:
		for _, role := range plan.Roles {
			events <- models.Event{Type: models.EventSpecialistStart, Role: role}
		}
		results := FanOut(ctx, o.analyzer, o.cfg, q.Text, renderedHistory, plan.Roles)
		for r := range results {
			events <- models.Event{Type: models.EventSpecialistResult, Role: r.Role, Text: r.Text, Err: r.Err}
			if r.Err != nil {
				o.metrics.observeSpecialistCall(string(r.Role), "error")
				continue
			}
			o.metrics.observeSpecialistCall(string(r.Role), "ok")
			entry.SpecialistOutputs[r.Role] = r.Text
		}
		if ctx.Err() != nil {
			// A whole-request deadline/cancellation takes priority over the
			// all-specialists-failed classification: if every specialist
			// failed only because the run context expired, the outcome is
			// a timeout/cancellation, not an upstream-availability problem.
			o.emitCtxOutcome(ctx, events)
			return
		}
		if len(entry.SpecialistOutputs) == 0 {
			err := refineerr.New(refineerr.KindUpstreamUnavailable, "all specialists failed")
			o.metrics.observeError(string(refineerr.KindUpstreamUnavailable))
			o.emitError(events, logger, err)
			return
		}
		events <- models.Event{Type: models.EventModeratorStart}
		modText, err := RunModerator(ctx, o.analyzer, o.cfg, q.Text, entry.SpecialistOutputs)
		if err != nil {
			logger.Warn("moderator failed; falling back to first successful specialist", "err", err)
			finalText = firstByRoleOrder(entry.SpecialistOutputs)
			entry.ModeratorOutput = finalText
			entry.HasModeratorOutput = true
		} else {
			events <- models.Event{Type: models.EventModeratorResult, Text: modText}
			entry.ModeratorOutput = modText
			entry.HasModeratorOutput = true
			finalText = ExtractFinalAnswer(modText)
		}
	}

	if ctx.Err() != nil {
		o.emitCtxOutcome(ctx, events)
		return
	}

	entry.FinalAnswer = finalText
	entry.ProcessingTimeMS = time.Since(start).Milliseconds()
	events <- models.Event{Type: models.EventFinalAnswer, Text: finalText}

	if err := entry.Validate(); err != nil {
		logger.Error("built an invalid conversation entry", "err", err)
		o.metrics.observeError(string(refineerr.KindInternal))
		o.emitError(events, logger, refineerr.Wrap(refineerr.KindInternal, "invalid conversation entry", err))
		return
	}

	memEntry := models.EntryFromConversation(entry)
	if err := o.store.Append(ctx, memEntry); err != nil {
		werr := refineerr.Wrap(refineerr.KindStorageError, "append conversation entry", err)
		logger.Error("failed to persist conversation entry", "err", werr)
		o.metrics.observeError(string(refineerr.KindStorageError))
		o.emitError(events, logger, werr)
		return
	}
	if refreshed, rerr := o.store.List(ctx, threadID, 1); rerr == nil && len(refreshed) > 0 && refreshed[0].EntryID == entry.EntryID {
		if dup, ok := refreshed[0].Context["duplicate"].(bool); ok {
			entry.Duplicate = dup
		}
	}

	o.metrics.observeRequest(entry.RouteDecision.String())
	events <- models.Event{Type: models.EventComplete, Entry: entry}
}

// emitCtxOutcome reports why ctx ended: a deadline overrun is a timeout
// error, any other cancellation (client disconnect, parent cancel) is a
// bare cancelled event with no ConversationEntry.
func (o *Orchestrator) emitCtxOutcome(ctx context.Context, events chan<- models.Event) {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		events <- models.Event{Type: models.EventError, Kind: string(refineerr.KindTimeout), Message: "request deadline exceeded"}
		o.metrics.observeError(string(refineerr.KindTimeout))
		return
	}
	events <- models.Event{Type: models.EventCancelled}
}

func (o *Orchestrator) emitError(events chan<- models.Event, logger *slog.Logger, err error) {
	kind := refineerr.KindOf(err)
	logger.Error("request failed", "kind", kind, "err", err)
	events <- models.Event{Type: models.EventError, Kind: string(kind), Message: err.Error()}
}

// firstByRoleOrder returns the first present output in the canonical
// revenue > ux_ui > technical > domain order, or "" if outputs is empty.
func firstByRoleOrder(outputs map[models.Role]string) string {
	for _, role := range models.Roles {
		if text, ok := outputs[role]; ok {
			return text
		}
	}
	return ""
}

// findPriorSpecialistOutputs scans thread history (most-recent-first) for
// the latest full-pipeline entry and returns its carried-forward specialist
// outputs, or nil if no such entry exists.
func findPriorSpecialistOutputs(history []*models.MemoryEntry) map[models.Role]string {
	for _, m := range history {
		conv := models.ConversationFromEntry(m)
		if conv.RouteDecision == models.RouteFullPipeline && len(conv.SpecialistOutputs) > 0 {
			return conv.SpecialistOutputs
		}
	}
	return nil
}

// History returns up to limit entries for a thread, most-recent-first.
func (o *Orchestrator) History(ctx context.Context, threadID string, limit int) ([]*models.MemoryEntry, error) {
	return o.store.List(ctx, threadID, limit)
}

// Search returns thread entries whose query or response match text.
func (o *Orchestrator) Search(ctx context.Context, threadID, text string, limit int) ([]*models.MemoryEntry, error) {
	return o.store.Search(ctx, threadID, text, limit)
}

// ClearThread deletes every entry for threadID and returns the count removed.
func (o *Orchestrator) ClearThread(ctx context.Context, threadID string) (int, error) {
	return o.store.DeleteThread(ctx, threadID)
}

// Stats summarizes the backing MemoryStore's contents.
func (o *Orchestrator) Stats(ctx context.Context) (models.Stats, error) {
	return o.store.Stats(ctx)
}

// Result is the batch (non-streaming) view of a completed run, matching the
// transport's JSON response shape.
type Result struct {
	FinalAnswer        string
	ProcessingTimeMS   int64
	QueryKind          models.QueryKind
	IsFollowup         bool
	SpecialistOutputs  map[models.Role]string
	ModeratorOutput    string
	HasModeratorOutput bool
	ThreadID           string
	EntryID            string
}

// Collect drains an event stream produced by Run into a single Result,
// for callers that want the non-streaming contract. It returns an error if
// the run was cancelled or ended in an error event.
func Collect(events <-chan models.Event) (*Result, error) {
	var res Result
	for ev := range events {
		switch ev.Type {
		case models.EventFinalAnswer:
			res.FinalAnswer = ev.Text
		case models.EventComplete:
			e := ev.Entry
			res.ProcessingTimeMS = e.ProcessingTimeMS
			res.QueryKind = e.QueryKind
			res.IsFollowup = e.IsFollowup
			res.SpecialistOutputs = e.SpecialistOutputs
			res.ModeratorOutput = e.ModeratorOutput
			res.HasModeratorOutput = e.HasModeratorOutput
			res.ThreadID = e.ThreadID
			res.EntryID = e.EntryID
		case models.EventCancelled:
			return nil, refineerr.New(refineerr.KindCancelled, "request cancelled")
		case models.EventError:
			return nil, refineerr.New(refineerr.Kind(ev.Kind), ev.Message)
		}
	}
	if res.EntryID == "" {
		return nil, refineerr.New(refineerr.KindInternal, "orchestrator run ended without completion")
	}
	return &res, nil
}
