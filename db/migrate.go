package db

import (
	"github.com/malwarebo/playgate/models"
	"gorm.io/gorm"
)

// Migrate creates the engine's tables. The unique indexes declared on the
// models are load-bearing: (operator_id, request_id) on idempotency records
// is what makes concurrent duplicate requests lose cleanly.
func Migrate(database *gorm.DB) error {
	return database.AutoMigrate(
		&models.Operator{},
		&models.App{},
		&models.Entitlement{},
		&models.UsageRecord{},
		&models.TransactionRecord{},
		&models.IdempotencyRecord{},
	)
}
