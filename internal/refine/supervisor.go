package refine

import (
	"github.com/haasonsaas/refinequery/internal/classify"
	"github.com/haasonsaas/refinequery/pkg/models"
)

// Mode distinguishes the two execution contracts the orchestrator must
// produce structurally comparable output for.
type Mode int

const (
	ModeFullPipeline Mode = iota
	ModeShortcut
	ModeModeratorOnly // shortcut_target == "moderator": re-aggregate prior state, no specialist call
)

// Plan is the supervisor's translation of a classifier verdict into an
// execution plan. The supervisor itself is stateless: it reads no memory
// and holds no state across calls.
type Plan struct {
	Mode          Mode
	Roles         []models.Role // specialists to invoke; one entry in shortcut mode
	NeedModerator bool
}

// Supervise turns a classifier verdict into a Plan. Full mode always
// invokes every specialist; shortcut mode invokes exactly the role named
// by the verdict's ShortcutTarget.
func Supervise(v classify.Verdict) Plan {
	switch v.ShortcutTarget {
	case "":
		return Plan{Mode: ModeFullPipeline, Roles: append([]models.Role(nil), models.Roles...), NeedModerator: true}
	case "moderator":
		return Plan{Mode: ModeModeratorOnly, NeedModerator: true}
	default:
		return Plan{Mode: ModeShortcut, Roles: []models.Role{models.Role(v.ShortcutTarget)}, NeedModerator: false}
	}
}

func (p Plan) RouteDecision() models.RouteDecision {
	switch p.Mode {
	case ModeShortcut:
		return models.ShortcutRoute(p.Roles[0])
	case ModeModeratorOnly:
		return models.ShortcutRoute(models.RoleModerator)
	default:
		return models.RouteFullPipeline
	}
}
