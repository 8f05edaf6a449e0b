package refine

import (
	"testing"

	"github.com/haasonsaas/refinequery/internal/classify"
	"github.com/haasonsaas/refinequery/pkg/models"
)

func TestSupervise_FullPipeline(t *testing.T) {
	plan := Supervise(classify.Verdict{QueryKind: models.QueryGeneral})
	if plan.Mode != ModeFullPipeline {
		t.Fatalf("Mode = %v, want ModeFullPipeline", plan.Mode)
	}
	if len(plan.Roles) != 4 {
		t.Fatalf("Roles = %v, want all four", plan.Roles)
	}
	if !plan.NeedModerator {
		t.Error("NeedModerator = false, want true")
	}
	if plan.RouteDecision() != models.RouteFullPipeline {
		t.Errorf("RouteDecision = %v, want full_pipeline", plan.RouteDecision())
	}
}

func TestSupervise_Shortcut(t *testing.T) {
	plan := Supervise(classify.Verdict{QueryKind: models.QueryRevenue, ShortcutTarget: "revenue"})
	if plan.Mode != ModeShortcut {
		t.Fatalf("Mode = %v, want ModeShortcut", plan.Mode)
	}
	if len(plan.Roles) != 1 || plan.Roles[0] != models.RoleRevenue {
		t.Fatalf("Roles = %v, want [revenue]", plan.Roles)
	}
	if plan.NeedModerator {
		t.Error("NeedModerator = true, want false")
	}
	want := models.ShortcutRoute(models.RoleRevenue)
	if plan.RouteDecision() != want {
		t.Errorf("RouteDecision = %v, want %v", plan.RouteDecision(), want)
	}
}

func TestSupervise_ModeratorOnly(t *testing.T) {
	plan := Supervise(classify.Verdict{ShortcutTarget: "moderator"})
	if plan.Mode != ModeModeratorOnly {
		t.Fatalf("Mode = %v, want ModeModeratorOnly", plan.Mode)
	}
	if !plan.NeedModerator {
		t.Error("NeedModerator = false, want true")
	}
	want := models.ShortcutRoute(models.RoleModerator)
	if plan.RouteDecision() != want {
		t.Errorf("RouteDecision = %v, want %v", plan.RouteDecision(), want)
	}
}
