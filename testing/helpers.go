package testing

import (
	"context"
	"fmt"
	"time"

	"github.com/malwarebo/playgate/models"
	"github.com/malwarebo/playgate/security"
	"github.com/shopspring/decimal"
)

func MockOperator() *models.Operator {
	return &models.Operator{
		ID:      "op_test123",
		Name:    "Test Venue",
		Balance: decimal.RequireFromString("1000.00"),
		Active:  true,
	}
}

func MockApp() *models.App {
	return &models.App{
		ID:         "app_test123",
		Code:       "test-arena",
		Name:       "Test Arena",
		UnitPrice:  decimal.RequireFromString("10.00"),
		MinPlayers: 2,
		MaxPlayers: 8,
		Active:     true,
	}
}

func MockEntitlement() *models.Entitlement {
	return &models.Entitlement{
		ID:         "ent_test123",
		OperatorID: "op_test123",
		AppID:      "app_test123",
		Active:     true,
	}
}

func MockSessionID(operatorID string, issuedAt int64) string {
	return fmt.Sprintf("%s_%d_0123456789abcdef", operatorID, issuedAt)
}

func MockAuthorizeRequest() *models.AuthorizeRequest {
	now := time.Now().Unix()
	return &models.AuthorizeRequest{
		AppCode:     "test-arena",
		PlayerCount: 4,
		SessionID:   MockSessionID("op_test123", now),
		SiteID:      "site_test123",
		Timestamp:   now,
		Method:      "POST",
		Path:        "/v1/auth/game/authorize",
		SourceAddr:  "203.0.113.10",
	}
}

func MockAuthorizeResponse() *models.AuthorizeResponse {
	return &models.AuthorizeResponse{
		AuthToken:        "tok_test123",
		AmountCharged:    decimal.RequireFromString("40.00"),
		BalanceRemaining: decimal.RequireFromString("960.00"),
	}
}

// SignRequestBody computes the signature a well-behaved client would send for
// the given transport facts.
func SignRequestBody(secret string, timestamp int64, method, path string, body []byte) string {
	return security.SignRequest(secret, timestamp, method, path, body)
}

func MockContext() context.Context {
	return context.Background()
}

func MockContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}
