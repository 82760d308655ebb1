package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/retroboard-backend/internal/data/store/sqldoc"
	"github.com/yungbote/retroboard-backend/internal/platform/logger"
)

func AutoMigrateAll(log *logger.Logger, db *gorm.DB) error {
	log.Info("Auto migrating tables...", "dialect", db.Dialector.Name())
	if err := db.AutoMigrate(sqldoc.Models()...); err != nil {
		log.Error("Auto migration failed", "error", err)
		return err
	}
	if err := EnsureIndexes(db); err != nil {
		log.Error("Index migration failed", "error", err)
		return err
	}
	return nil
}

// EnsureIndexes adds indexes GORM tags cannot express.
func EnsureIndexes(db *gorm.DB) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_retro_documents_created_id
		ON retro_documents (created_at, id);
	`).Error; err != nil {
		return fmt.Errorf("create idx_retro_documents_created_id: %w", err)
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_users_username_id
		ON users (username, id);
	`).Error; err != nil {
		return fmt.Errorf("create idx_users_username_id: %w", err)
	}
	return nil
}
