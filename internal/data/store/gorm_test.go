package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/readiness-backend/internal/data/aggregates/testutil"
	"github.com/yungbote/readiness-backend/internal/data/db"
	domainagg "github.com/yungbote/readiness-backend/internal/domain/aggregates"
	"github.com/yungbote/readiness-backend/internal/platform/logger"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.OpenSQLite(":memory:", nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(gdb) })
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return gdb
}

func TestGormStoreContractSQLite(t *testing.T) {
	runContract(t, func(t *testing.T) Store {
		return NewGormStore(openSQLite(t), logger.Nop(), nil, 5*time.Second)
	})
}

func TestGormStoreContractPostgres(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	runContract(t, func(t *testing.T) Store {
		gdb, err := db.OpenPostgres(db.PostgresConfig{DSN: dsn}, db.Config{}, nil)
		if err != nil {
			t.Fatalf("OpenPostgres: %v", err)
		}
		t.Cleanup(func() { _ = db.Close(gdb) })
		if err := AutoMigrate(gdb); err != nil {
			t.Fatalf("AutoMigrate: %v", err)
		}
		if err := gdb.Exec("DELETE FROM " + assessmentTable).Error; err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return NewGormStore(gdb, logger.Nop(), nil, 5*time.Second)
	})
}

func TestGormStoreCommitFailureIsUnavailable(t *testing.T) {
	gdb := openSQLite(t)
	runner := &testutil.InjectedTxRunner{FailCommit: errors.New("driver: bad connection timeout")}
	hooks := &testutil.HooksRecorder{}
	s := NewGormStore(gdb, logger.Nop(), hooks, 0).WithRunner(runner)
	if _, err := s.Create(context.Background(), draft()); !domainagg.IsCode(err, domainagg.CodeStoreUnavailable) {
		t.Fatalf("want store_unavailable, got=%v", err)
	}
	if runner.RollbackCalls != 1 {
		t.Fatalf("rollbacks: want=1 got=%d", runner.RollbackCalls)
	}
	if len(hooks.Unavailable) != 1 || hooks.Unavailable[0] != opCreate {
		t.Fatalf("unavailable hooks: %v", hooks.Unavailable)
	}
}
