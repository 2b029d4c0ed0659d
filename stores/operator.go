package stores

import (
	"context"

	"github.com/malwarebo/playgate/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OperatorStore struct {
	BaseStore
}

func NewOperatorStore(db *gorm.DB) *OperatorStore {
	return &OperatorStore{BaseStore: BaseStore{db: db}}
}

func (s *OperatorStore) GetByKeyHash(ctx context.Context, keyHash string) (*models.Operator, error) {
	var operator models.Operator
	if err := s.GetDB(ctx).First(&operator, "key_hash = ?", keyHash).Error; err != nil {
		return nil, err
	}
	return &operator, nil
}

// LockForDebit takes the exclusive row lock that serializes all balance
// changes for one operator. Must run inside WithTransaction; the lock is held
// until the surrounding transaction commits or rolls back.
func (s *OperatorStore) LockForDebit(ctx context.Context, operatorID string) (*models.Operator, error) {
	var operator models.Operator
	err := s.GetDB(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&operator, "id = ?", operatorID).Error
	if err != nil {
		return nil, err
	}
	return &operator, nil
}

func (s *OperatorStore) UpdateBalance(ctx context.Context, operatorID string, balance decimal.Decimal) error {
	return s.GetDB(ctx).
		Model(&models.Operator{}).
		Where("id = ?", operatorID).
		Update("balance", balance).Error
}

func (s *OperatorStore) Create(ctx context.Context, operator *models.Operator) error {
	return s.GetDB(ctx).Create(operator).Error
}
