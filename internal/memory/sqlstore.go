package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/haasonsaas/refinequery/pkg/models"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// SQLStore is the durable Store backend selected by store_uri, over
// database/sql. It follows the teacher's CockroachBranchStore idiom:
// parameterized queries and a deferred-rollback-unless-committed
// transaction for the single write path.
type SQLStore struct {
	db              *sql.DB
	duplicateWindow int
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS conversation_entries (
	thread_id  TEXT NOT NULL,
	entry_id   TEXT NOT NULL,
	user_query TEXT NOT NULL,
	response   TEXT NOT NULL,
	context    TEXT NOT NULL,
	timestamp  TEXT NOT NULL,
	PRIMARY KEY (thread_id, entry_id)
);
CREATE INDEX IF NOT EXISTS idx_entries_thread_ts ON conversation_entries(thread_id, timestamp);
`

// timestampLayout stores timestamps with a fixed-width fraction so that
// ORDER BY timestamp on the TEXT column is chronological.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// OpenSQLStore opens (creating if necessary) a sqlite-backed store at the
// given DSN, e.g. "file:refinequery.db?_pragma=busy_timeout(5000)", using
// DefaultDuplicateWindow.
func OpenSQLStore(ctx context.Context, dsn string) (*SQLStore, error) {
	return OpenSQLStoreWithWindow(ctx, dsn, DefaultDuplicateWindow)
}

// OpenSQLStoreWithWindow is OpenSQLStore with an explicit duplicate_window
// (the configured N from §4.7). window <= 0 falls back to
// DefaultDuplicateWindow.
func OpenSQLStoreWithWindow(ctx context.Context, dsn string, window int) (*SQLStore, error) {
	if window <= 0 {
		window = DefaultDuplicateWindow
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("memory: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; avoid lock contention
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("memory: ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("memory: migrate schema: %w", err)
	}
	return &SQLStore{db: db, duplicateWindow: window}, nil
}

func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) Append(ctx context.Context, entry *models.MemoryEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("memory: begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM conversation_entries WHERE thread_id = ? AND entry_id = ?`,
		entry.ThreadID, entry.EntryID,
	).Scan(&exists); err == nil {
		return nil // already present: idempotent no-op
	} else if err != sql.ErrNoRows {
		return fmt.Errorf("memory: check existing entry: %w", err)
	}

	recent, err := s.recentResponses(ctx, tx, entry.ThreadID, s.duplicateWindow)
	if err != nil {
		return err
	}
	ctxCopy := map[string]any{}
	for k, v := range entry.Context {
		ctxCopy[k] = v
	}
	fp := fingerprint(entry.Response)
	for _, r := range recent {
		if fingerprint(r) == fp {
			ctxCopy["duplicate"] = true
			break
		}
	}

	ctxJSON, err := json.Marshal(ctxCopy)
	if err != nil {
		return fmt.Errorf("memory: encode context: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO conversation_entries (thread_id, entry_id, user_query, response, context, timestamp) VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ThreadID, entry.EntryID, entry.UserQuery, entry.Response, string(ctxJSON), entry.Timestamp.UTC().Format(timestampLayout),
	); err != nil {
		return fmt.Errorf("memory: insert entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("memory: commit: %w", err)
	}
	committed = true
	return nil
}

func (s *SQLStore) recentResponses(ctx context.Context, tx *sql.Tx, threadID string, n int) ([]string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT response FROM conversation_entries WHERE thread_id = ? ORDER BY timestamp DESC LIMIT ?`,
		threadID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("memory: query recent responses: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, fmt.Errorf("memory: scan response: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) List(ctx context.Context, threadID string, limit int) ([]*models.MemoryEntry, error) {
	query := `SELECT thread_id, entry_id, user_query, response, context, timestamp FROM conversation_entries WHERE thread_id = ? ORDER BY timestamp DESC`
	args := []any{threadID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("memory: list: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *SQLStore) Search(ctx context.Context, threadID, text string, limit int) ([]*models.MemoryEntry, error) {
	query := `SELECT thread_id, entry_id, user_query, response, context, timestamp FROM conversation_entries
		WHERE thread_id = ? AND (LOWER(user_query) LIKE ? ESCAPE '\' OR LOWER(response) LIKE ? ESCAPE '\')
		ORDER BY timestamp DESC, entry_id ASC`
	like := "%" + escapeLike(strings.ToLower(text)) + "%"
	args := []any{threadID, like, like}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("memory: search: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *SQLStore) DeleteThread(ctx context.Context, threadID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversation_entries WHERE thread_id = ?`, threadID)
	if err != nil {
		return 0, fmt.Errorf("memory: delete thread: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("memory: rows affected: %w", err)
	}
	return int(n), nil
}

func (s *SQLStore) Stats(ctx context.Context) (models.Stats, error) {
	var stats models.Stats
	var lastRaw sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT thread_id), MAX(timestamp) FROM conversation_entries`,
	).Scan(&stats.TotalEntries, &stats.ThreadCount, &lastRaw)
	if err != nil {
		return models.Stats{}, fmt.Errorf("memory: stats: %w", err)
	}
	if lastRaw.Valid {
		if t, err := time.Parse(time.RFC3339Nano, lastRaw.String); err == nil {
			stats.LastUpdated = t
		}
	}
	return stats, nil
}

func scanEntries(rows *sql.Rows) ([]*models.MemoryEntry, error) {
	var out []*models.MemoryEntry
	for rows.Next() {
		var e models.MemoryEntry
		var ctxJSON, ts string
		if err := rows.Scan(&e.ThreadID, &e.EntryID, &e.UserQuery, &e.Response, &ctxJSON, &ts); err != nil {
			return nil, fmt.Errorf("memory: scan entry: %w", err)
		}
		if err := json.Unmarshal([]byte(ctxJSON), &e.Context); err != nil {
			return nil, fmt.Errorf("memory: decode context: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			e.Timestamp = t
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// escapeLike escapes SQL LIKE wildcards so a raw search term is matched
// literally rather than as a pattern.
func escapeLike(s string) string {
	r := strings.NewReplacer("\\", "\\\\", "%", "\\%", "_", "\\_")
	return r.Replace(s)
}
