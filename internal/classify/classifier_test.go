package classify

import (
	"testing"

	"github.com/haasonsaas/refinequery/internal/refineerr"
	"github.com/haasonsaas/refinequery/pkg/models"
)

func TestClassify_EmptyQuery(t *testing.T) {
	_, err := Classify("   ", 0, "")
	if err == nil {
		t.Fatal("expected error for blank query")
	}
	if refineerr.KindOf(err) != refineerr.KindInvalidInput {
		t.Errorf("kind = %v, want invalid_input", refineerr.KindOf(err))
	}
}

func TestClassify_PricingNewThread(t *testing.T) {
	v, err := Classify("What pricing strategy should I use?", 0, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.QueryKind != models.QueryRevenue {
		t.Errorf("QueryKind = %v, want revenue", v.QueryKind)
	}
	if v.IsFollowup {
		t.Error("IsFollowup should be false for an empty thread")
	}
	if v.ShortcutTarget != "" {
		t.Errorf("ShortcutTarget = %q, want unset for a non-followup", v.ShortcutTarget)
	}
}

func TestClassify_PricingFollowup(t *testing.T) {
	v, err := Classify("What pricing strategy should I use?", 2, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.IsFollowup {
		t.Error("expected IsFollowup true with non-empty history")
	}
	if v.ShortcutTarget != "revenue" {
		t.Errorf("ShortcutTarget = %q, want revenue", v.ShortcutTarget)
	}
}

func TestClassify_FocusHintOverrides(t *testing.T) {
	v, err := Classify("What pricing strategy should I use?", 0, models.FocusTechnical)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.QueryKind != models.QueryTechnical {
		t.Errorf("QueryKind = %v, want technical (hint should override keywords)", v.QueryKind)
	}
}

func TestClassify_FollowupNoMatchShortcutsModerator(t *testing.T) {
	v, err := Classify("what do you think about that", 1, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.ShortcutTarget != "moderator" {
		t.Errorf("ShortcutTarget = %q, want moderator", v.ShortcutTarget)
	}
	if v.QueryKind != models.QueryGeneral {
		t.Errorf("QueryKind = %v, want general", v.QueryKind)
	}
}

func TestClassify_TieBreakOrder(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  models.QueryKind
	}{
		{"revenue beats ux_ui", "pricing and design considerations", models.QueryRevenue},
		{"ux_ui beats technical", "design and architecture tradeoffs", models.QueryUXUI},
		{"technical beats domain", "api and market considerations", models.QueryTechnical},
		{"domain alone", "what about the market and industry", models.QueryDomain},
		{"no match is general", "tell me a story", models.QueryGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Classify(tt.query, 0, "")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if v.QueryKind != tt.want {
				t.Errorf("QueryKind = %v, want %v", v.QueryKind, tt.want)
			}
		})
	}
}
