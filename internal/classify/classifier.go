// Package classify implements the deterministic, keyword-bucket query
// classifier: no LLM call, just compiled-pattern matching over the query
// text plus the caller-supplied focus hint and thread history length.
package classify

import (
	"regexp"
	"strings"

	"github.com/haasonsaas/refinequery/internal/refineerr"
	"github.com/haasonsaas/refinequery/pkg/models"
)

// keywordSet binds a role to the compiled pattern matching its bucket.
// Patterns are word-boundary alternations compiled once at init, mirroring
// the teacher's heuristic classifier (internal/agent/routing/heuristic.go).
type keywordSet struct {
	role    models.Role
	pattern *regexp.Regexp
}

var buckets = []keywordSet{
	{models.RoleRevenue, regexp.MustCompile(`(?i)\b(revenue|money|income|pricing|monetization|profit|earnings)\b`)},
	{models.RoleUXUI, regexp.MustCompile(`(?i)\b(ui|ux|design|user experience|interface|usability|accessibility)\b`)},
	{models.RoleTechnical, regexp.MustCompile(`(?i)\b(technical|architecture|code|database|api|infrastructure|scalability)\b`)},
	{models.RoleDomain, regexp.MustCompile(`(?i)\b(business|domain|market|industry|compliance|regulation)\b`)},
}

// tieBreak gives the fixed precedence order revenue > ux_ui > technical > domain
// used when more than one bucket matches.
var tieBreak = map[models.Role]int{
	models.RoleRevenue:   0,
	models.RoleUXUI:      1,
	models.RoleTechnical: 2,
	models.RoleDomain:    3,
}

// Verdict is the classifier's output for one query.
type Verdict struct {
	QueryKind models.QueryKind
	// ShortcutTarget is a role name, "moderator", or "" when unset (full
	// pipeline required).
	ShortcutTarget string
	IsFollowup     bool
}

// Classify inspects a query and thread history and returns a routing
// verdict. Returns a refineerr.KindInvalidInput error for an empty or
// whitespace-only query.
func Classify(query string, historyLen int, hint models.FocusHint) (Verdict, error) {
	if strings.TrimSpace(query) == "" {
		return Verdict{}, refineerr.New(refineerr.KindInvalidInput, "query must not be empty")
	}

	isFollowup := historyLen > 0
	lowered := strings.ToLower(query)

	var matched []models.Role
	for _, b := range buckets {
		if b.pattern.MatchString(lowered) {
			matched = append(matched, b.role)
		}
	}

	var target models.Role
	var haveTarget bool
	if hint.Valid() {
		target = models.Role(hint)
		haveTarget = true
	} else if len(matched) > 0 {
		target = bestByTieBreak(matched)
		haveTarget = true
	}

	v := Verdict{IsFollowup: isFollowup}
	if haveTarget {
		v.QueryKind = models.QueryKind(target)
	} else {
		v.QueryKind = models.QueryGeneral
	}

	switch {
	case isFollowup && haveTarget:
		v.ShortcutTarget = string(target)
	case isFollowup && !haveTarget:
		v.ShortcutTarget = "moderator"
	default:
		v.ShortcutTarget = ""
	}

	return v, nil
}

func bestByTieBreak(matched []models.Role) models.Role {
	best := matched[0]
	for _, r := range matched[1:] {
		if tieBreak[r] < tieBreak[best] {
			best = r
		}
	}
	return best
}
