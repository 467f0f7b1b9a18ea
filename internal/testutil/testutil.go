package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/EmpoweredVote/lots-backend/internal/logger"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// DB opens a private in-memory SQLite database and applies migrate to it.
// The pool holds a single connection, so callers must route queries made
// inside a transaction through that transaction.
func DB(tb testing.TB, migrate ...func(*gorm.DB) error) *gorm.DB {
	tb.Helper()
	dsn := fmt.Sprintf("file:lots_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	for _, m := range migrate {
		if err := m(db); err != nil {
			tb.Fatalf("migrate: %v", err)
		}
	}
	return db
}

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	return logger.NewNop()
}
