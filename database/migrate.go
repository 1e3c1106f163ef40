// database/migrate.go - Database Migration Runner
package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"wizzzard/logger"
	"wizzzard/models"
)

// RunMigrations creates or updates the users and quiz_sessions tables.
func RunMigrations(db *gorm.DB) error {
	logger.Log.Info("🔄 Running database migrations...")

	if err := db.AutoMigrate(
		&models.User{},
		&models.QuizSession{},
	); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	createIndexes(db)

	logger.Log.Info("✅ All migrations completed successfully")
	return nil
}

// createIndexes adds the lookup indexes AutoMigrate cannot express.
func createIndexes(db *gorm.DB) {
	statements := []string{
		// Join looks up unfinished sessions by code.
		"CREATE INDEX IF NOT EXISTS idx_quiz_sessions_code_status ON quiz_sessions(code, status)",
		"CREATE INDEX IF NOT EXISTS idx_quiz_sessions_created ON quiz_sessions(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_quiz_sessions_participants ON quiz_sessions USING GIN (participants jsonb_path_ops)",
		"CREATE INDEX IF NOT EXISTS idx_users_anonymous ON users(is_anonymous)",
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			logger.Log.Warn("failed to create index", zap.String("sql", stmt), zap.Error(err))
		}
	}
}
