package journal

import (
	"context"
	"strings"
	"testing"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), "sqlite3", "file:"+t.Name()+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	entries := []Entry{
		{Origin: "repl", Source: "print 1;", Outcome: OutcomeOK},
		{Origin: "repl", Source: "print ;", Outcome: OutcomeStatic, Message: "[line 1] Error at ';': Expect expression."},
		{Origin: "script.lox", Source: "print 1/0;", Outcome: OutcomeRuntime, Message: "Divide by zero."},
	}
	for i, e := range entries {
		recorded, err := s.Record(ctx, e)
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if recorded.ID != int64(i+1) {
			t.Errorf("entry %d got id %d", i, recorded.ID)
		}
		if recorded.CreatedAt.IsZero() {
			t.Errorf("entry %d has no timestamp", i)
		}
	}

	recent, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(recent))
	}

	tests := []struct {
		origin  string
		outcome Outcome
		message string
	}{
		{"script.lox", OutcomeRuntime, "Divide by zero."},
		{"repl", OutcomeStatic, "[line 1] Error at ';': Expect expression."},
	}
	for i, tt := range tests {
		if recent[i].Origin != tt.origin || recent[i].Outcome != tt.outcome || recent[i].Message != tt.message {
			t.Errorf("recent[%d] = %+v, expected origin=%s outcome=%s message=%q",
				i, recent[i], tt.origin, tt.outcome, tt.message)
		}
	}
}

func TestDisabledStore(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, "", "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if s.Enabled() {
		t.Fatalf("store with no driver should be disabled")
	}
	if _, err := s.Record(ctx, Entry{Source: "print 1;"}); err != nil {
		t.Errorf("record on disabled store: %v", err)
	}
	entries, err := s.Recent(ctx, 10)
	if err != nil || len(entries) != 0 {
		t.Errorf("expected no entries, got %v (%v)", entries, err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
}

func TestUnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "x")
	if err == nil || !strings.Contains(err.Error(), "unsupported driver") {
		t.Fatalf("expected unsupported driver error, got %v", err)
	}
}

func TestRebind(t *testing.T) {
	tests := []struct {
		driver   string
		expected string
	}{
		{"postgres", "VALUES ($1, $2, $3)"},
		{"mysql", "VALUES (?, ?, ?)"},
		{"sqlite3", "VALUES (?, ?, ?)"},
	}

	for _, tt := range tests {
		s := &Store{driver: tt.driver}
		if got := s.rebind("VALUES (?, ?, ?)"); got != tt.expected {
			t.Errorf("%s: expected %q, got %q", tt.driver, tt.expected, got)
		}
	}
}

func TestPostgresTableIsQuoted(t *testing.T) {
	s := &Store{driver: "postgres"}
	if got := s.table(); got != `"lox_journal"` {
		t.Errorf("expected quoted table name, got %s", got)
	}
}

func TestMySQLDSNParsesTime(t *testing.T) {
	dsn, err := mysqlDSN("lox:secret@tcp(localhost:3306)/lox")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(dsn, "parseTime=true") {
		t.Errorf("expected parseTime=true in %q", dsn)
	}
}
