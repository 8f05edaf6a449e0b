package models

import "time"

// MemoryEntry is the storage shape persisted by a MemoryStore: the
// conversation record reduced to the fields that matter for persistence
// and retrieval, plus an open attribute bag for routing metadata.
type MemoryEntry struct {
	ThreadID  string
	EntryID   string
	UserQuery string
	Response  string
	Context   map[string]any
	Timestamp time.Time
}

// Stats summarizes a MemoryStore's contents.
type Stats struct {
	TotalEntries int
	ThreadCount  int
	LastUpdated  time.Time
}

// EntryFromConversation converts a ConversationEntry into the reduced
// MemoryEntry shape used for storage, folding route/specialist/timing
// detail into Context.
func EntryFromConversation(e *ConversationEntry) *MemoryEntry {
	specialists := make(map[string]string, len(e.SpecialistOutputs))
	for role, text := range e.SpecialistOutputs {
		specialists[string(role)] = text
	}
	ctx := map[string]any{
		"route_decision":     e.RouteDecision.String(),
		"query_kind":         string(e.QueryKind),
		"is_followup":        e.IsFollowup,
		"processing_time_ms": e.ProcessingTimeMS,
		"specialist_outputs": specialists,
		"duplicate":          e.Duplicate,
	}
	if e.HasModeratorOutput {
		ctx["moderator_output"] = e.ModeratorOutput
	}
	return &MemoryEntry{
		ThreadID:  e.ThreadID,
		EntryID:   e.EntryID,
		UserQuery: e.UserQuery,
		Response:  e.FinalAnswer,
		Context:   ctx,
		Timestamp: e.Timestamp,
	}
}

// ConversationFromEntry reconstructs a ConversationEntry from its stored
// MemoryEntry shape, the inverse of EntryFromConversation. Unknown or
// malformed context fields degrade gracefully rather than failing: a
// MemoryStore is a capability set, not a schema owner.
func ConversationFromEntry(m *MemoryEntry) *ConversationEntry {
	e := &ConversationEntry{
		EntryID:           m.EntryID,
		ThreadID:          m.ThreadID,
		Timestamp:         m.Timestamp,
		UserQuery:         m.UserQuery,
		FinalAnswer:       m.Response,
		SpecialistOutputs: map[Role]string{},
	}
	if m.Context == nil {
		return e
	}
	if v, ok := m.Context["route_decision"].(string); ok {
		e.RouteDecision = RouteDecision(v)
	}
	if v, ok := m.Context["query_kind"].(string); ok {
		e.QueryKind = QueryKind(v)
	}
	if v, ok := m.Context["is_followup"].(bool); ok {
		e.IsFollowup = v
	}
	if v, ok := m.Context["duplicate"].(bool); ok {
		e.Duplicate = v
	}
	switch v := m.Context["processing_time_ms"].(type) {
	case int64:
		e.ProcessingTimeMS = v
	case int:
		e.ProcessingTimeMS = int64(v)
	case float64:
		e.ProcessingTimeMS = int64(v)
	}
	switch v := m.Context["specialist_outputs"].(type) {
	case map[string]string:
		for role, text := range v {
			e.SpecialistOutputs[Role(role)] = text
		}
	case map[string]any:
		for role, text := range v {
			if s, ok := text.(string); ok {
				e.SpecialistOutputs[Role(role)] = s
			}
		}
	}
	if v, ok := m.Context["moderator_output"].(string); ok {
		e.ModeratorOutput = v
		e.HasModeratorOutput = true
	}
	return e
}
