package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/haasonsaas/refinequery/pkg/models"
)

// InMemoryStore is the reference Store implementation: a map of thread ID
// to entries, guarded by a single RWMutex. It never returns the caller a
// pointer into its own state — every read clones, following the teacher's
// sessions.MemoryStore cloneSession pattern.
type InMemoryStore struct {
	mu              sync.RWMutex
	threads         map[string][]*models.MemoryEntry // newest-last per thread
	seen            map[string]struct{}              // entry IDs already appended
	duplicateWindow int
}

// NewInMemoryStore builds an empty in-memory store using DefaultDuplicateWindow.
func NewInMemoryStore() *InMemoryStore {
	return NewInMemoryStoreWithWindow(DefaultDuplicateWindow)
}

// NewInMemoryStoreWithWindow builds an empty in-memory store whose
// duplicate-detection guard checks the last window entries of a thread
// (the configured duplicate_window). window <= 0 falls back to
// DefaultDuplicateWindow.
func NewInMemoryStoreWithWindow(window int) *InMemoryStore {
	if window <= 0 {
		window = DefaultDuplicateWindow
	}
	return &InMemoryStore{
		threads:         make(map[string][]*models.MemoryEntry),
		seen:            make(map[string]struct{}),
		duplicateWindow: window,
	}
}

func cloneEntry(e *models.MemoryEntry) *models.MemoryEntry {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Context != nil {
		clone.Context = make(map[string]any, len(e.Context))
		for k, v := range e.Context {
			if m, ok := v.(map[string]string); ok {
				cp := make(map[string]string, len(m))
				for mk, mv := range m {
					cp[mk] = mv
				}
				v = cp
			}
			clone.Context[k] = v
		}
	}
	return &clone
}

func (s *InMemoryStore) Append(ctx context.Context, entry *models.MemoryEntry) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[entry.EntryID]; exists {
		return nil
	}

	stored := cloneEntry(entry)
	if stored.Context == nil {
		stored.Context = map[string]any{}
	}
	if isDuplicate(s.threads[stored.ThreadID], stored, s.duplicateWindow) {
		stored.Context["duplicate"] = true
	}

	s.threads[stored.ThreadID] = append(s.threads[stored.ThreadID], stored)
	s.seen[stored.EntryID] = struct{}{}
	return nil
}

// isDuplicate checks the last window entries of a thread for a matching
// normalized-response fingerprint.
func isDuplicate(existing []*models.MemoryEntry, candidate *models.MemoryEntry, window int) bool {
	fp := fingerprint(candidate.Response)
	start := 0
	if len(existing) > window {
		start = len(existing) - window
	}
	for _, e := range existing[start:] {
		if fingerprint(e.Response) == fp {
			return true
		}
	}
	return false
}

func (s *InMemoryStore) List(ctx context.Context, threadID string, limit int) ([]*models.MemoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.threads[threadID]
	out := make([]*models.MemoryEntry, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = cloneEntry(e) // newest-first
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) Search(ctx context.Context, threadID, text string, limit int) ([]*models.MemoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*models.MemoryEntry
	for _, e := range s.threads[threadID] {
		if containsText(e, text) {
			matches = append(matches, cloneEntry(e))
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].Timestamp.Equal(matches[j].Timestamp) {
			return matches[i].Timestamp.After(matches[j].Timestamp)
		}
		return matches[i].EntryID < matches[j].EntryID
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *InMemoryStore) DeleteThread(ctx context.Context, threadID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.threads[threadID]
	for _, e := range entries {
		delete(s.seen, e.EntryID)
	}
	delete(s.threads, threadID)
	return len(entries), nil
}

func (s *InMemoryStore) Stats(ctx context.Context) (models.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := models.Stats{ThreadCount: len(s.threads)}
	var last time.Time
	for _, entries := range s.threads {
		stats.TotalEntries += len(entries)
		for _, e := range entries {
			if e.Timestamp.After(last) {
				last = e.Timestamp
			}
		}
	}
	stats.LastUpdated = last
	return stats, nil
}
