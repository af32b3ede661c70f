package db

import (
	"strings"
	"testing"
)

func TestPostgresDSN(t *testing.T) {
	cfg := PostgresConfig{Host: "db", Port: "5432", User: "app", Password: "p@ss", Name: "readiness"}
	got := cfg.dsn()
	if !strings.HasPrefix(got, "postgres://app:p%40ss@db:5432/readiness") || !strings.HasSuffix(got, "sslmode=disable") {
		t.Fatalf("unexpected dsn: %s", got)
	}
	if got := (PostgresConfig{DSN: " postgres://x "}).dsn(); got != "postgres://x" {
		t.Fatalf("explicit dsn: want=postgres://x got=%s", got)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "oracle"}, nil); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestOpenSQLiteInMemory(t *testing.T) {
	db, err := OpenSQLite("", nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	defer Close(db)
	var n int
	if err := db.Raw("SELECT 1").Scan(&n).Error; err != nil {
		t.Fatalf("select: %v", err)
	}
	if n != 1 {
		t.Fatalf("select 1: got=%d", n)
	}
}
