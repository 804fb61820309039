package testhelpers

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"mockmate/interview/internal/models"
)

var dbCounter atomic.Int64

var (
	openSQLite = func(dsn string) (*gorm.DB, error) { return gorm.Open(sqlite.Open(dsn), &gorm.Config{}) }

	migrateSchema = func(db *gorm.DB) error {
		return db.AutoMigrate(
			&models.Technology{},
			&models.Interview{},
			&models.InterviewVersion{},
			&models.Question{},
			&models.Session{},
			&models.Feedback{},
			&models.TechnologyScore{},
			&models.Subscription{},
		)
	}
)

// SetupTestDB creates an isolated in-memory SQLite database for tests.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s%d?mode=memory&cache=shared&_busy_timeout=5000", name, dbCounter.Add(1))
	db, err := openSQLite(dsn)
	if err != nil {
		panic(fmt.Sprintf("failed to open test database: %v", err))
	}
	if err := migrateSchema(db); err != nil {
		panic(fmt.Sprintf("failed to migrate test database: %v", err))
	}
	return db
}
