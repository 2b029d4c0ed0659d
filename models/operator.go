package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Operator is the paying party: a venue on whose behalf game sessions are
// authorized and billed. Balance is mutated exclusively by the ledger inside
// the authorization transaction; every other field belongs to the
// account-management back office. Operators are never deleted, only
// deactivated.
type Operator struct {
	ID            string          `json:"id" gorm:"primaryKey;type:uuid"`
	Name          string          `json:"name" gorm:"not null"`
	KeyHash       string          `json:"-" gorm:"uniqueIndex;size:64;not null"`
	SigningSecret string          `json:"-" gorm:"not null"` // AES-GCM, base64
	Balance       decimal.Decimal `json:"balance" gorm:"type:decimal(12,2);not null;default:0"`
	Active        bool            `json:"active" gorm:"not null;default:true"`
	Locked        bool            `json:"locked" gorm:"not null;default:false"`
	CreatedAt     time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Operator) TableName() string {
	return "operators"
}
