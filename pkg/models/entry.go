package models

import (
	"fmt"
	"strings"
	"time"
)

// RouteDecision records which execution plan produced an entry:
// full_pipeline, or shortcut:<role>.
type RouteDecision string

const RouteFullPipeline RouteDecision = "full_pipeline"

// ShortcutRoute builds the shortcut:<role> decision value.
func ShortcutRoute(role Role) RouteDecision {
	return RouteDecision("shortcut:" + string(role))
}

// IsShortcut reports whether the decision is a shortcut route and, if so,
// the role it targeted.
func (r RouteDecision) IsShortcut() (Role, bool) {
	role, ok := strings.CutPrefix(string(r), "shortcut:")
	if !ok {
		return "", false
	}
	return Role(role), true
}

func (r RouteDecision) String() string { return string(r) }

// ConversationEntry is the immutable record committed to MemoryStore per
// completed query.
type ConversationEntry struct {
	EntryID            string
	ThreadID           string
	Timestamp          time.Time
	UserQuery          string
	QueryKind          QueryKind
	IsFollowup         bool
	ProcessingTimeMS   int64
	SpecialistOutputs  map[Role]string
	ModeratorOutput    string
	HasModeratorOutput bool
	FinalAnswer        string
	RouteDecision      RouteDecision
	Duplicate          bool
}

// Clone returns a defensive deep copy safe to hand to a caller without
// risking mutation of the store's internal state.
func (e *ConversationEntry) Clone() *ConversationEntry {
	if e == nil {
		return nil
	}
	clone := *e
	clone.SpecialistOutputs = make(map[Role]string, len(e.SpecialistOutputs))
	for role, text := range e.SpecialistOutputs {
		clone.SpecialistOutputs[role] = text
	}
	return &clone
}

// Validate checks the invariants from the data model section: a non-empty
// final answer, and specialist/moderator output shape consistent with the
// route decision.
func (e *ConversationEntry) Validate() error {
	if strings.TrimSpace(e.FinalAnswer) == "" {
		return fmt.Errorf("entry %s: final_answer must be non-empty", e.EntryID)
	}
	if role, ok := e.RouteDecision.IsShortcut(); ok {
		if role == RoleModerator {
			// shortcut_target = moderator: a single aggregation pass over a
			// prior full-pipeline entry's carried-forward specialist
			// outputs. No fresh specialist call is made, so the shape
			// constraint is a moderator output, not a single-role map.
			if !e.HasModeratorOutput {
				return fmt.Errorf("entry %s: moderator shortcut route requires a moderator output", e.EntryID)
			}
			return nil
		}
		if len(e.SpecialistOutputs) != 1 {
			return fmt.Errorf("entry %s: shortcut route requires exactly one specialist output, got %d", e.EntryID, len(e.SpecialistOutputs))
		}
		if _, present := e.SpecialistOutputs[role]; !present {
			return fmt.Errorf("entry %s: shortcut route targeted %s but output missing", e.EntryID, role)
		}
		if e.HasModeratorOutput {
			return fmt.Errorf("entry %s: shortcut route must not carry a moderator output", e.EntryID)
		}
		return nil
	}
	if e.RouteDecision == RouteFullPipeline {
		if len(e.SpecialistOutputs) < 1 {
			return fmt.Errorf("entry %s: full pipeline requires at least one specialist output", e.EntryID)
		}
		if !e.HasModeratorOutput {
			return fmt.Errorf("entry %s: full pipeline requires a moderator output", e.EntryID)
		}
	}
	return nil
}
