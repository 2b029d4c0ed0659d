package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// UsageRecord is the immutable fact of one authorized session. Created once
// inside the billing transaction, never updated.
type UsageRecord struct {
	ID          string          `json:"id" gorm:"primaryKey;type:uuid"`
	OperatorID  string          `json:"operator_id" gorm:"index;not null"`
	AppID       string          `json:"app_id" gorm:"not null"`
	SiteID      string          `json:"site_id"`
	SessionID   string          `json:"session_id" gorm:"not null"`
	PlayerCount int             `json:"player_count" gorm:"not null"`
	UnitPrice   decimal.Decimal `json:"unit_price" gorm:"type:decimal(12,2);not null"`
	TotalCost   decimal.Decimal `json:"total_cost" gorm:"type:decimal(12,2);not null"`
	CreatedAt   time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

func (UsageRecord) TableName() string {
	return "usage_records"
}

// TransactionRecord is one ledger entry. Amount is signed, negative for a
// debit. Invariant: balance_after = balance_before + amount, and the latest
// record's balance_after equals the operator's current balance.
type TransactionRecord struct {
	ID            string          `json:"id" gorm:"primaryKey;type:uuid"`
	OperatorID    string          `json:"operator_id" gorm:"index;not null"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:decimal(12,2);not null"`
	BalanceBefore decimal.Decimal `json:"balance_before" gorm:"type:decimal(12,2);not null"`
	BalanceAfter  decimal.Decimal `json:"balance_after" gorm:"type:decimal(12,2);not null"`
	UsageRecordID string          `json:"usage_record_id" gorm:"not null"`
	CreatedAt     time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

func (TransactionRecord) TableName() string {
	return "transaction_records"
}

// AuthorizeRequest is the parsed wire request plus the transport facts the
// pipeline verifies against (method, path and raw body for the signature,
// source address for rate limiting).
type AuthorizeRequest struct {
	AppCode     string `json:"app_code"`
	PlayerCount int    `json:"player_count"`
	SessionID   string `json:"session_id"`
	SiteID      string `json:"site_id"`

	OperatorKey string `json:"-"`
	Signature   string `json:"-"`
	Timestamp   int64  `json:"-"`
	Method      string `json:"-"`
	Path        string `json:"-"`
	RawBody     []byte `json:"-"`
	SourceAddr  string `json:"-"`
}

type AuthorizeResponse struct {
	AuthToken        string          `json:"auth_token"`
	AmountCharged    decimal.Decimal `json:"amount_charged"`
	BalanceRemaining decimal.Decimal `json:"balance_remaining"`
}
