package stores

import (
	"context"

	"github.com/malwarebo/playgate/models"
	"gorm.io/gorm"
)

// LedgerStore appends the audit trail. Records are written exactly once,
// inside the same transaction as the debit they describe, and never updated.
type LedgerStore struct {
	BaseStore
}

func NewLedgerStore(db *gorm.DB) *LedgerStore {
	return &LedgerStore{BaseStore: BaseStore{db: db}}
}

func (s *LedgerStore) CreateUsageRecord(ctx context.Context, record *models.UsageRecord) error {
	return s.GetDB(ctx).Create(record).Error
}

func (s *LedgerStore) CreateTransactionRecord(ctx context.Context, record *models.TransactionRecord) error {
	return s.GetDB(ctx).Create(record).Error
}
