// Package memory implements the MemoryStore persistence abstraction: an
// append-only, per-thread log of conversation entries with retrieval,
// keyword search, and write-side duplicate tagging.
package memory

import (
	"context"
	"strings"

	"github.com/haasonsaas/refinequery/pkg/models"
)

// Store is the MemoryStore capability set from the component design.
// Implementations must be safe for concurrent use: the store is the only
// mutable resource shared across requests.
type Store interface {
	// Append durably persists entry. Idempotent on EntryID: a duplicate
	// EntryID is silently ignored, not an error.
	Append(ctx context.Context, entry *models.MemoryEntry) error

	// List returns up to limit entries for a thread, most-recent-first.
	// limit <= 0 means unbounded.
	List(ctx context.Context, threadID string, limit int) ([]*models.MemoryEntry, error)

	// Search returns entries whose UserQuery or Response contains text
	// (case-insensitive), most-recent-first, ties broken by EntryID.
	Search(ctx context.Context, threadID, text string, limit int) ([]*models.MemoryEntry, error)

	// DeleteThread removes every entry for threadID and returns the count
	// removed.
	DeleteThread(ctx context.Context, threadID string) (int, error)

	// Stats summarizes the store's contents.
	Stats(ctx context.Context) (models.Stats, error)
}

// fingerprint normalizes text for the duplicate-detection guard: lowercase
// with runs of whitespace collapsed to a single space.
func fingerprint(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// DefaultDuplicateWindow is N from the §4.7 duplicate-detection guard: how
// many of the thread's most recent entries are checked for a fingerprint
// match when a store is built without an explicit duplicate_window.
const DefaultDuplicateWindow = 5

// containsText implements the substring-match contract for Search: a
// case-insensitive match over UserQuery or Response.
func containsText(entry *models.MemoryEntry, needle string) bool {
	n := strings.ToLower(needle)
	return strings.Contains(strings.ToLower(entry.UserQuery), n) ||
		strings.Contains(strings.ToLower(entry.Response), n)
}
