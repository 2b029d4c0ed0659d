package stores

import (
	"context"
	"errors"
	"time"

	"github.com/malwarebo/playgate/models"
	"gorm.io/gorm"
)

// ErrDuplicateRequest surfaces the unique-index conflict when two physically
// simultaneous requests carry the same session identity. The loser rolls its
// transaction back and re-reads the winner's record.
var ErrDuplicateRequest = errors.New("idempotency record already exists")

type IdempotencyStore struct {
	BaseStore
}

func NewIdempotencyStore(db *gorm.DB) *IdempotencyStore {
	return &IdempotencyStore{BaseStore: BaseStore{db: db}}
}

func (s *IdempotencyStore) Get(ctx context.Context, operatorID, requestID string) (*models.IdempotencyRecord, error) {
	var record models.IdempotencyRecord
	err := s.GetDB(ctx).
		First(&record, "operator_id = ? AND request_id = ?", operatorID, requestID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// Create inserts the record under the (operator_id, request_id) unique index.
// Relies on TranslateError being enabled on the connection so the postgres
// constraint violation comes back as gorm.ErrDuplicatedKey.
func (s *IdempotencyStore) Create(ctx context.Context, record *models.IdempotencyRecord) error {
	err := s.GetDB(ctx).Create(record).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateRequest
	}
	return err
}

func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	result := s.GetDB(ctx).
		Where("expires_at < ?", time.Now()).
		Delete(&models.IdempotencyRecord{})
	return result.RowsAffected, result.Error
}
