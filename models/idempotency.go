package models

import (
	"time"
)

// IdempotencyRecord pins a session request identity to the response it was
// billed with. Only successful authorizations are recorded; rejections never
// bill and are always safe to retry. The unique (operator_id, request_id)
// index is what guarantees at most one debit per identity even when two
// identical requests race.
type IdempotencyRecord struct {
	ID           string    `json:"id" gorm:"primaryKey;type:uuid"`
	OperatorID   string    `json:"operator_id" gorm:"uniqueIndex:uk_operator_request,priority:1;not null"`
	RequestID    string    `json:"request_id" gorm:"uniqueIndex:uk_operator_request,priority:2;not null"`
	ResponseBody []byte    `json:"response_body" gorm:"type:jsonb;not null"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
	ExpiresAt    time.Time `json:"expires_at" gorm:"index;not null"`
}

func (IdempotencyRecord) TableName() string {
	return "idempotency_records"
}
