// Package models defines the data types shared between the orchestration
// core and its transport and persistence layers.
package models

// FocusHint narrows classification to a specific specialist role regardless
// of keyword matches. The zero value means "no hint".
type FocusHint string

const (
	FocusGeneral   FocusHint = "general"
	FocusDomain    FocusHint = "domain"
	FocusUXUI      FocusHint = "ux_ui"
	FocusTechnical FocusHint = "technical"
	FocusRevenue   FocusHint = "revenue"
)

// Valid reports whether the hint is one that can override keyword
// classification (general does not count as an override).
func (f FocusHint) Valid() bool {
	switch f {
	case FocusDomain, FocusUXUI, FocusTechnical, FocusRevenue:
		return true
	default:
		return false
	}
}

// Query is the input to a single orchestrator run.
type Query struct {
	Text      string
	ThreadID  string
	FocusHint FocusHint
}

// Role identifies a specialist. The same constants double as query_kind
// values for everything except "general" and "debate".
type Role string

const (
	RoleDomain    Role = "domain"
	RoleUXUI      Role = "ux_ui"
	RoleTechnical Role = "technical"
	RoleRevenue   Role = "revenue"
)

// Roles is the fixed specialist set, in the canonical tie-break order used
// by the classifier (revenue > ux_ui > technical > domain).
var Roles = []Role{RoleRevenue, RoleUXUI, RoleTechnical, RoleDomain}

// RoleModerator labels the moderator's own Analyzer invocations; it never
// appears as a key in ConversationEntry.SpecialistOutputs.
const RoleModerator Role = "moderator"

// QueryKind is the classifier verdict attached to a persisted entry.
type QueryKind string

const (
	QueryGeneral   QueryKind = "general"
	QueryDomain    QueryKind = "domain"
	QueryUXUI      QueryKind = "ux_ui"
	QueryTechnical QueryKind = "technical"
	QueryRevenue   QueryKind = "revenue"
	QueryDebate    QueryKind = "debate"
)
