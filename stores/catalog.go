package stores

import (
	"context"

	"github.com/malwarebo/playgate/models"
	"gorm.io/gorm"
)

// CatalogStore reads the pricing/entitlement rows owned by the back office.
// The engine only ever reads them, and always inside the billing transaction
// so price and entitlement stay consistent with the debit they feed.
type CatalogStore struct {
	BaseStore
}

func NewCatalogStore(db *gorm.DB) *CatalogStore {
	return &CatalogStore{BaseStore: BaseStore{db: db}}
}

func (s *CatalogStore) GetAppByCode(ctx context.Context, code string) (*models.App, error) {
	var app models.App
	if err := s.GetDB(ctx).First(&app, "code = ? AND active = ?", code, true).Error; err != nil {
		return nil, err
	}
	return &app, nil
}

func (s *CatalogStore) GetEntitlement(ctx context.Context, operatorID, appID string) (*models.Entitlement, error) {
	var entitlement models.Entitlement
	err := s.GetDB(ctx).
		First(&entitlement, "operator_id = ? AND app_id = ? AND active = ?", operatorID, appID, true).Error
	if err != nil {
		return nil, err
	}
	return &entitlement, nil
}

func (s *CatalogStore) CreateApp(ctx context.Context, app *models.App) error {
	return s.GetDB(ctx).Create(app).Error
}

func (s *CatalogStore) CreateEntitlement(ctx context.Context, entitlement *models.Entitlement) error {
	return s.GetDB(ctx).Create(entitlement).Error
}
