package testutil

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/asset-registry/internal/data/db"
	"github.com/yungbote/asset-registry/internal/platform/logger"
)

var (
	logOnce sync.Once
	logg    *logger.Logger
	logErr  error
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

// DB returns a freshly migrated database private to the calling test. It is
// an in-memory sqlite database unless TEST_POSTGRES_DSN points at Postgres,
// in which case each test gets its own schema.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()
	cfg := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
	}

	var (
		theDB *gorm.DB
		err   error
	)
	if dsn := os.Getenv("TEST_POSTGRES_DSN"); dsn != "" {
		theDB, err = openPostgres(tb, dsn, cfg)
	} else {
		name := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
		theDB, err = gorm.Open(sqlite.Open(name), cfg)
		if err == nil {
			sqlDB, sErr := theDB.DB()
			if sErr != nil {
				tb.Fatalf("sqlite handle: %v", sErr)
			}
			sqlDB.SetMaxOpenConns(1)
			tb.Cleanup(func() { _ = sqlDB.Close() })
		}
	}
	if err != nil {
		tb.Fatalf("failed to init test db: %v", err)
	}
	if err := db.AutoMigrateAll(theDB); err != nil {
		tb.Fatalf("failed to migrate test db: %v", err)
	}
	return theDB
}

func openPostgres(tb testing.TB, dsn string, cfg *gorm.Config) (*gorm.DB, error) {
	tb.Helper()
	root, err := gorm.Open(postgres.Open(dsn), cfg)
	if err != nil {
		return nil, err
	}
	schema := "t_" + uuid.NewString()[:8]
	if err := root.Exec(`CREATE SCHEMA "` + schema + `"`).Error; err != nil {
		return nil, err
	}
	tb.Cleanup(func() {
		_ = root.Exec(`DROP SCHEMA "` + schema + `" CASCADE`).Error
	})
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return gorm.Open(postgres.New(postgres.Config{
		DSN: dsn + sep + "search_path=" + schema,
	}), cfg)
}

func Tx(tb testing.TB, db *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}
