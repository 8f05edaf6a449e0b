package memory

import (
	"context"
	"testing"
	"time"

	"github.com/haasonsaas/refinequery/pkg/models"
)

func mustEntry(threadID, entryID, query, response string, ts time.Time) *models.MemoryEntry {
	return &models.MemoryEntry{
		ThreadID:  threadID,
		EntryID:   entryID,
		UserQuery: query,
		Response:  response,
		Timestamp: ts,
	}
}

func TestInMemoryStore_AppendListRoundTrip(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	now := time.Now()

	e := mustEntry("t1", "e1", "hello", "world", now)
	if err := s.Append(ctx, e); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := s.List(ctx, "t1", 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].EntryID != "e1" {
		t.Fatalf("List = %+v, want one entry e1", got)
	}
}

func TestInMemoryStore_AppendIdempotent(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	now := time.Now()

	e := mustEntry("t1", "e1", "hello", "world", now)
	if err := s.Append(ctx, e); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(ctx, e); err != nil {
		t.Fatalf("second append: %v", err)
	}

	got, _ := s.List(ctx, "t1", 0)
	if len(got) != 1 {
		t.Fatalf("expected idempotent append, got %d entries", len(got))
	}
}

func TestInMemoryStore_ListOrderingNewestFirst(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	base := time.Now()

	for i, id := range []string{"e1", "e2", "e3"} {
		_ = s.Append(ctx, mustEntry("t1", id, "q", "r", base.Add(time.Duration(i)*time.Second)))
	}

	got, _ := s.List(ctx, "t1", 0)
	if len(got) != 3 || got[0].EntryID != "e3" || got[2].EntryID != "e1" {
		t.Fatalf("List ordering = %v, want strictly decreasing by timestamp", ids(got))
	}
}

func ids(entries []*models.MemoryEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.EntryID
	}
	return out
}

func TestInMemoryStore_DuplicateDetection(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	base := time.Now()

	_ = s.Append(ctx, mustEntry("t1", "e1", "q1", "Same Answer", base))
	_ = s.Append(ctx, mustEntry("t1", "e2", "q2", "same   answer", base.Add(time.Second)))

	got, _ := s.List(ctx, "t1", 0)
	if len(got) != 2 {
		t.Fatalf("expected both entries stored despite duplicate flag, got %d", len(got))
	}
	if dup, _ := got[0].Context["duplicate"].(bool); !dup {
		t.Error("expected newest entry to be tagged duplicate=true")
	}
}

func TestInMemoryStore_DuplicateWindowConfigurable(t *testing.T) {
	s := NewInMemoryStoreWithWindow(1)
	ctx := context.Background()
	base := time.Now()

	_ = s.Append(ctx, mustEntry("t1", "e1", "q1", "Same Answer", base))
	_ = s.Append(ctx, mustEntry("t1", "e2", "q2", "unrelated", base.Add(time.Second)))
	_ = s.Append(ctx, mustEntry("t1", "e3", "q3", "same   answer", base.Add(2*time.Second)))

	got, _ := s.List(ctx, "t1", 0)
	if len(got) != 3 {
		t.Fatalf("expected all entries stored, got %d", len(got))
	}
	if dup, _ := got[0].Context["duplicate"].(bool); dup {
		t.Error("a window of 1 must not see the fingerprint match two entries back")
	}
}

func TestInMemoryStore_DeleteThread(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	_ = s.Append(ctx, mustEntry("t1", "e1", "q", "r", time.Now()))

	count, err := s.DeleteThread(ctx, "t1")
	if err != nil || count != 1 {
		t.Fatalf("DeleteThread = (%d, %v), want (1, nil)", count, err)
	}

	got, _ := s.List(ctx, "t1", 0)
	if len(got) != 0 {
		t.Fatalf("expected empty thread after delete, got %d", len(got))
	}
}

func TestInMemoryStore_Search(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	base := time.Now()
	_ = s.Append(ctx, mustEntry("t1", "e1", "pricing question", "revenue answer", base))
	_ = s.Append(ctx, mustEntry("t1", "e2", "unrelated", "design answer", base.Add(time.Second)))

	got, err := s.Search(ctx, "t1", "pricing", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].EntryID != "e1" {
		t.Fatalf("Search = %v, want [e1]", ids(got))
	}
}

func TestInMemoryStore_Stats(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	_ = s.Append(ctx, mustEntry("t1", "e1", "q", "r", time.Now()))
	_ = s.Append(ctx, mustEntry("t2", "e2", "q", "r", time.Now()))

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalEntries != 2 || stats.ThreadCount != 2 {
		t.Errorf("Stats = %+v, want TotalEntries=2 ThreadCount=2", stats)
	}
}

func TestInMemoryStore_ClonesDoNotAliasState(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	_ = s.Append(ctx, mustEntry("t1", "e1", "q", "r", time.Now()))

	got, _ := s.List(ctx, "t1", 0)
	got[0].UserQuery = "mutated"

	again, _ := s.List(ctx, "t1", 0)
	if again[0].UserQuery != "q" {
		t.Error("mutating a returned entry should not affect stored state")
	}
}
