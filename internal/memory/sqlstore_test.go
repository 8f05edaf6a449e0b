package memory

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/haasonsaas/refinequery/pkg/models"
)

func newMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &SQLStore{db: db, duplicateWindow: DefaultDuplicateWindow}, mock
}

func TestSQLStore_Append_NewEntry(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT 1 FROM conversation_entries`).
		WithArgs("t1", "e1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`SELECT response FROM conversation_entries`).
		WithArgs("t1", DefaultDuplicateWindow).
		WillReturnRows(sqlmock.NewRows([]string{"response"}))
	mock.ExpectExec(`INSERT INTO conversation_entries`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	entry := &models.MemoryEntry{ThreadID: "t1", EntryID: "e1", UserQuery: "q", Response: "r", Timestamp: time.Now()}
	if err := store.Append(ctx, entry); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSQLStore_Append_IdempotentOnExisting(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT 1 FROM conversation_entries`).
		WithArgs("t1", "e1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectRollback()

	entry := &models.MemoryEntry{ThreadID: "t1", EntryID: "e1", UserQuery: "q", Response: "r", Timestamp: time.Now()}
	if err := store.Append(ctx, entry); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSQLStore_DeleteThread(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec(`DELETE FROM conversation_entries WHERE thread_id = \?`).
		WithArgs("t1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := store.DeleteThread(ctx, "t1")
	if err != nil {
		t.Fatalf("DeleteThread: %v", err)
	}
	if n != 3 {
		t.Errorf("n = %d, want 3", n)
	}
}

func TestSQLStore_List_AppliesLimitAndDecodesContext(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	rows := sqlmock.NewRows([]string{"thread_id", "entry_id", "user_query", "response", "context", "timestamp"}).
		AddRow("t1", "e2", "q2", "r2", `{"duplicate":true}`, "2024-01-02T00:00:00Z").
		AddRow("t1", "e1", "q1", "r1", `{}`, "2024-01-01T00:00:00Z")
	mock.ExpectQuery(`SELECT thread_id, entry_id, user_query, response, context, timestamp FROM conversation_entries WHERE thread_id = \? ORDER BY timestamp DESC LIMIT \?`).
		WithArgs("t1", 10).
		WillReturnRows(rows)

	entries, err := store.List(ctx, "t1", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].EntryID != "e2" || entries[0].Context["duplicate"] != true {
		t.Errorf("entries[0] = %+v, want e2 with duplicate=true", entries[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSQLStore_List_NoLimitOmitsLimitClause(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	rows := sqlmock.NewRows([]string{"thread_id", "entry_id", "user_query", "response", "context", "timestamp"})
	mock.ExpectQuery(`SELECT thread_id, entry_id, user_query, response, context, timestamp FROM conversation_entries WHERE thread_id = \? ORDER BY timestamp DESC$`).
		WithArgs("t1").
		WillReturnRows(rows)

	if _, err := store.List(ctx, "t1", 0); err != nil {
		t.Fatalf("List: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSQLStore_Search_LowercasesAndEscapesPattern(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	rows := sqlmock.NewRows([]string{"thread_id", "entry_id", "user_query", "response", "context", "timestamp"}).
		AddRow("t1", "e1", "pricing tiers", "r1", `{}`, "2024-01-01T00:00:00Z")
	mock.ExpectQuery(`SELECT thread_id, entry_id, user_query, response, context, timestamp FROM conversation_entries`).
		WithArgs("t1", "%pricing%", "%pricing%").
		WillReturnRows(rows)

	entries, err := store.Search(ctx, "t1", "Pricing", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(entries) != 1 || entries[0].UserQuery != "pricing tiers" {
		t.Errorf("entries = %+v, want single pricing entry", entries)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSQLStore_Stats_ParsesLastUpdated(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	rows := sqlmock.NewRows([]string{"count", "threads", "max_ts"}).
		AddRow(5, 2, "2024-01-02T03:04:05Z")
	mock.ExpectQuery(`SELECT COUNT\(\*\), COUNT\(DISTINCT thread_id\), MAX\(timestamp\) FROM conversation_entries`).
		WillReturnRows(rows)

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalEntries != 5 || stats.ThreadCount != 2 {
		t.Errorf("stats = %+v, want TotalEntries=5 ThreadCount=2", stats)
	}
	if stats.LastUpdated.IsZero() {
		t.Error("stats.LastUpdated should be parsed from max_ts, got zero value")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSQLStore_Stats_NoRowsLeavesLastUpdatedZero(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	rows := sqlmock.NewRows([]string{"count", "threads", "max_ts"}).
		AddRow(0, 0, nil)
	mock.ExpectQuery(`SELECT COUNT\(\*\), COUNT\(DISTINCT thread_id\), MAX\(timestamp\) FROM conversation_entries`).
		WillReturnRows(rows)

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if !stats.LastUpdated.IsZero() {
		t.Errorf("LastUpdated = %v, want zero value when no entries exist", stats.LastUpdated)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
