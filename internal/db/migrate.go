package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/beadboard/beadboard/internal/models"
)

// AllModels returns the store tables the dashboard touches. The bd CLI owns
// the real schema; this list exists for scratch databases in tests and
// local development.
func AllModels() []interface{} {
	return []interface{}{
		&models.Bead{},
		&models.Dependency{},
		&models.Event{},
		&models.Metadata{},
	}
}

// AutoMigrate creates the dashboard-relevant tables on a scratch store.
// Never run this against a live beads database; bd migrations own it.
func AutoMigrate(handle *gorm.DB) error {
	if err := handle.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
