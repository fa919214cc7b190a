package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"crm/internal/adapters/http/perf"
)

func openTimedTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	db.Exec("CREATE TABLE test (id TEXT PRIMARY KEY, val TEXT)")
	t.Cleanup(func() { db.Close() })
	return db
}

// TestTimedDB_RecordsEachCall verifies every call lands in the collector.
func TestTimedDB_RecordsEachCall(t *testing.T) {
	collector := perf.NewCollector(100)
	tdb := NewTimedDB(openTimedTestDB(t), DialectSQLite, collector)
	ctx := context.Background()

	if _, err := tdb.ExecContext(ctx, "INSERT INTO test (id, val) VALUES (?, ?)", "1", "hello"); err != nil {
		t.Fatalf("ExecContext: %v", err)
	}
	rows, err := tdb.QueryContext(ctx, "SELECT id, val FROM test")
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	count := 0
	for rows.Next() {
		count++
	}
	rows.Close()
	if count != 1 {
		t.Errorf("rows = %d, want 1", count)
	}
	var val string
	if err := tdb.QueryRowContext(ctx, "SELECT val FROM test WHERE id = ?", "1").Scan(&val); err != nil {
		t.Fatalf("QueryRowContext: %v", err)
	}
	if val != "hello" {
		t.Errorf("val = %q, want hello", val)
	}
	if collector.TotalRecorded() != 3 {
		t.Errorf("TotalRecorded = %d, want 3", collector.TotalRecorded())
	}
}

// TestTimedDB_StatementNamesAggregate verifies perf entries are keyed by verb and table.
func TestTimedDB_StatementNamesAggregate(t *testing.T) {
	collector := perf.NewCollector(100)
	tdb := NewTimedDB(openTimedTestDB(t), DialectSQLite, collector)
	ctx := context.Background()
	tdb.ExecContext(ctx, "INSERT INTO test (id, val) VALUES (?, ?)", "1", "a")
	tdb.ExecContext(ctx, "INSERT INTO test (id, val) VALUES (?, ?)", "2", "b")

	snap := collector.Snapshot(time.Time{}, 10)
	if len(snap.SlowestQueries) != 1 {
		t.Fatalf("SlowestQueries = %+v, want one aggregated entry", snap.SlowestQueries)
	}
	if snap.SlowestQueries[0].Path != "INSERT test" || snap.SlowestQueries[0].Count != 2 {
		t.Errorf("entry = %+v", snap.SlowestQueries[0])
	}
}

// TestTimedDB_NilCollector verifies TimedDB works without a collector.
func TestTimedDB_NilCollector(t *testing.T) {
	tdb := NewTimedDB(openTimedTestDB(t), DialectSQLite, nil)
	_, err := tdb.ExecContext(context.Background(), "INSERT INTO test (id, val) VALUES (?, ?)", "1", "hello")
	if err != nil {
		t.Fatalf("ExecContext with nil collector: %v", err)
	}
}

// TestTimedDB_ErrorPassthrough verifies SQL errors are returned unchanged
// and timing is still recorded.
func TestTimedDB_ErrorPassthrough(t *testing.T) {
	collector := perf.NewCollector(100)
	tdb := NewTimedDB(openTimedTestDB(t), DialectSQLite, collector)
	ctx := context.Background()

	if _, err := tdb.ExecContext(ctx, "INSERT INTO nonexistent_table VALUES (?)", 1); err == nil {
		t.Fatal("expected error from invalid SQL, got nil")
	}
	var val string
	err := tdb.QueryRowContext(ctx, "SELECT val FROM test WHERE id = ?", "missing").Scan(&val)
	if err != sql.ErrNoRows {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
	if collector.TotalRecorded() != 2 {
		t.Errorf("TotalRecorded = %d, want 2 (must record even on error)", collector.TotalRecorded())
	}
}

// TestTimedDB_CancelledContext verifies a cancelled context surfaces an error.
func TestTimedDB_CancelledContext(t *testing.T) {
	tdb := NewTimedDB(openTimedTestDB(t), DialectSQLite, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := tdb.ExecContext(ctx, "INSERT INTO test (id, val) VALUES (?, ?)", "1", "hello"); err == nil {
		t.Fatal("expected error from cancelled context, got nil")
	}
}

func TestRebind(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"SELECT 1", "SELECT 1"},
		{"SELECT * FROM lead WHERE company_id = ? AND id = ?", "SELECT * FROM lead WHERE company_id = $1 AND id = $2"},
		{"SELECT '?' FROM t WHERE a = ?", "SELECT '?' FROM t WHERE a = $1"},
		{`SELECT 1 WHERE LOWER(name) LIKE ? ESCAPE '\' AND x = ?`, `SELECT 1 WHERE LOWER(name) LIKE $1 ESCAPE '\' AND x = $2`},
	}
	for _, tt := range tests {
		if got := Rebind(tt.in); got != tt.want {
			t.Errorf("Rebind(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTimedDB_RebindsOnlyForPostgres(t *testing.T) {
	q := "SELECT * FROM t WHERE a = ?"
	if got := NewTimedDB(nil, DialectSQLite, nil).rebind(q); got != q {
		t.Errorf("sqlite rebind = %q", got)
	}
	if got := NewTimedDB(nil, DialectPostgres, nil).rebind(q); got != "SELECT * FROM t WHERE a = $1" {
		t.Errorf("postgres rebind = %q", got)
	}
}

func TestStatementName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"SELECT id FROM lead WHERE x = ?", "SELECT lead"},
		{"INSERT INTO deal (id) VALUES (?)", "INSERT deal"},
		{"UPDATE account SET x = ?", "UPDATE account"},
		{"DELETE FROM follow_up WHERE id = ?", "DELETE follow_up"},
		{"CREATE TABLE IF NOT EXISTS x (id TEXT)", "CREATE"},
		{"  select count(*) from customer where a = ?", "SELECT customer"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := statementName(tt.in); got != tt.want {
			t.Errorf("statementName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// BenchmarkTimedDB_Overhead measures the instrumentation overhead per call.
func BenchmarkTimedDB_Overhead(b *testing.B) {
	db, _ := sql.Open("sqlite", ":memory:")
	defer db.Close()
	db.SetMaxOpenConns(1)
	db.Exec("CREATE TABLE bench (id INTEGER PRIMARY KEY, val TEXT)")
	db.Exec("INSERT INTO bench VALUES (1, 'x')")
	tdb := NewTimedDB(db, DialectSQLite, perf.NewCollector(perf.DefaultRingSize))
	ctx := context.Background()

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		var v string
		tdb.QueryRowContext(ctx, "SELECT val FROM bench WHERE id = ?", 1).Scan(&v)
	}
}
