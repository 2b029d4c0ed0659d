package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// App is a purchasable game. Pricing and player bounds are owned by the
// external pricing back office; the engine reads them fresh inside each
// billing transaction so the price in effect at the moment of the debit is
// the one charged.
type App struct {
	ID         string          `json:"id" gorm:"primaryKey;type:uuid"`
	Code       string          `json:"code" gorm:"uniqueIndex;not null"`
	Name       string          `json:"name" gorm:"not null"`
	UnitPrice  decimal.Decimal `json:"unit_price" gorm:"type:decimal(12,2);not null"`
	MinPlayers int             `json:"min_players" gorm:"not null;default:1"`
	MaxPlayers int             `json:"max_players" gorm:"not null"`
	Active     bool            `json:"active" gorm:"not null;default:true"`
	CreatedAt  time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt  time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

func (App) TableName() string {
	return "apps"
}

// Entitlement marks an operator as permitted to purchase an app. No price
// snapshot is stored; the app's current price always applies.
type Entitlement struct {
	ID         string    `json:"id" gorm:"primaryKey;type:uuid"`
	OperatorID string    `json:"operator_id" gorm:"uniqueIndex:uk_operator_app,priority:1;not null"`
	AppID      string    `json:"app_id" gorm:"uniqueIndex:uk_operator_app,priority:2;not null"`
	Active     bool      `json:"active" gorm:"not null;default:true"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Entitlement) TableName() string {
	return "entitlements"
}
