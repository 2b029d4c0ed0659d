package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/malwarebo/playgate/models"
	"github.com/malwarebo/playgate/security"
	"github.com/malwarebo/playgate/stores"
	"github.com/malwarebo/playgate/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReplayWindow bounds how stale a signed request may be on either side of
// server time.
const ReplayWindow = 300 * time.Second

// DefaultIdempotencyRetention is how long a billed session identity stays
// replayable before cleanup may reclaim it.
const DefaultIdempotencyRetention = 90 * 24 * time.Hour

type RateLimiter interface {
	// Allow returns a non-zero retry-after duration when the caller or its
	// source address is over quota.
	Allow(ctx context.Context, callerKey, sourceAddr string) (time.Duration, error)
}

type OperatorStore interface {
	GetByKeyHash(ctx context.Context, keyHash string) (*models.Operator, error)
	LockForDebit(ctx context.Context, operatorID string) (*models.Operator, error)
	UpdateBalance(ctx context.Context, operatorID string, balance decimal.Decimal) error
}

type CatalogStore interface {
	GetAppByCode(ctx context.Context, code string) (*models.App, error)
	GetEntitlement(ctx context.Context, operatorID, appID string) (*models.Entitlement, error)
}

type IdempotencyStore interface {
	Get(ctx context.Context, operatorID, requestID string) (*models.IdempotencyRecord, error)
	Create(ctx context.Context, record *models.IdempotencyRecord) error
}

type LedgerStore interface {
	CreateUsageRecord(ctx context.Context, record *models.UsageRecord) error
	CreateTransactionRecord(ctx context.Context, record *models.TransactionRecord) error
}

type TransactionRunner interface {
	WithTransaction(ctx context.Context, fn func(context.Context) error) error
}

// AuthorizationService runs the full pipeline for one session authorization:
// rate limit, authenticate, verify signature, replay guard, idempotent fast
// path, then entitlement check and debit plus audit records in a single
// database transaction.
type AuthorizationService struct {
	limiter     RateLimiter
	operators   OperatorStore
	catalog     CatalogStore
	idempotency IdempotencyStore
	ledger      LedgerStore
	tx          TransactionRunner
	encryption  *security.EncryptionManager
	retention   time.Duration
	logger      *utils.Logger
}

func NewAuthorizationService(
	limiter RateLimiter,
	operators OperatorStore,
	catalog CatalogStore,
	idempotency IdempotencyStore,
	ledger LedgerStore,
	tx TransactionRunner,
	encryption *security.EncryptionManager,
) *AuthorizationService {
	return &AuthorizationService{
		limiter:     limiter,
		operators:   operators,
		catalog:     catalog,
		idempotency: idempotency,
		ledger:      ledger,
		tx:          tx,
		encryption:  encryption,
		retention:   DefaultIdempotencyRetention,
		logger:      utils.NewLogger("authorization"),
	}
}

// Authorize returns either a successful authorization or a *utils.APIError
// from the taxonomy. Every failure path is side-effect free; only the debit
// path persists anything, so callers may always retry with the same session
// identity.
func (s *AuthorizationService) Authorize(ctx context.Context, req *models.AuthorizeRequest) (*models.AuthorizeResponse, error) {
	keyHash := security.HashKey(req.OperatorKey)

	retryAfter, err := s.limiter.Allow(ctx, keyHash, req.SourceAddr)
	if err != nil {
		// A broken counter store must not take authorization down with it.
		s.logger.Warn(ctx, "rate limiter unavailable, admitting request", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if retryAfter > 0 {
		return nil, utils.ErrRateLimitExceeded.WithDetail("retry_after_seconds", int64(retryAfter.Seconds()))
	}

	operator, err := s.operators.GetByKeyHash(ctx, keyHash)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrUnauthorized
		}
		return nil, s.internal(ctx, err, "operator lookup failed")
	}
	if !security.VerifyKeyHash(req.OperatorKey, operator.KeyHash) {
		return nil, utils.ErrUnauthorized
	}
	if !operator.Active || operator.Locked {
		return nil, utils.ErrUnauthorized
	}
	ctx = utils.WithOperatorID(ctx, operator.ID)

	signingSecret, err := s.encryption.Decrypt(operator.SigningSecret)
	if err != nil {
		return nil, s.internal(ctx, err, "signing secret decryption failed")
	}
	if !security.VerifySignature(signingSecret, req.Timestamp, req.Method, req.Path, req.RawBody, req.Signature) {
		return nil, utils.ErrInvalidSignature
	}

	now := time.Now()
	if absDuration(now.Sub(time.Unix(req.Timestamp, 0))) > ReplayWindow {
		return nil, utils.ErrTimestampExpired
	}

	identity, err := ParseSessionIdentity(req.SessionID)
	if err != nil {
		return nil, utils.ErrInvalidSessionIdentity
	}
	if identity.OperatorID != operator.ID {
		return nil, utils.ErrInvalidSessionIdentity
	}
	// Compared in raw seconds; a duration conversion would overflow int64
	// nanoseconds for absurd embedded timestamps and wrap back inside the
	// window.
	windowSeconds := int64(ReplayWindow / time.Second)
	if skew := identity.IssuedAt - req.Timestamp; skew > windowSeconds || skew < -windowSeconds {
		return nil, utils.ErrInvalidSessionIdentity
	}

	if resp, found, err := s.replay(ctx, operator.ID, req.SessionID); err != nil {
		return nil, s.internal(ctx, err, "idempotency lookup failed")
	} else if found {
		return resp, nil
	}

	resp, err := s.authorizeAndBill(ctx, operator.ID, req, now)
	if err == nil {
		return resp, nil
	}

	if errors.Is(err, stores.ErrDuplicateRequest) {
		// Lost the insert race to an identical in-flight request. Our debit
		// rolled back with the transaction; hand back the winner's response.
		resp, found, rerr := s.replay(ctx, operator.ID, req.SessionID)
		if rerr != nil || !found {
			return nil, s.internal(ctx, err, "duplicate request re-read failed")
		}
		return resp, nil
	}

	var apiErr *utils.APIError
	if errors.As(err, &apiErr) {
		return nil, apiErr
	}
	return nil, s.internal(ctx, err, "authorization transaction failed")
}

// authorizeAndBill is the single unit of work: lock the balance row, validate
// entitlement and bounds against current catalog state, debit, and append the
// usage, transaction and idempotency records. Any error rolls the whole thing
// back.
func (s *AuthorizationService) authorizeAndBill(ctx context.Context, operatorID string, req *models.AuthorizeRequest, now time.Time) (*models.AuthorizeResponse, error) {
	var resp *models.AuthorizeResponse

	err := s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		operator, err := s.operators.LockForDebit(txCtx, operatorID)
		if err != nil {
			return err
		}

		app, err := s.catalog.GetAppByCode(txCtx, req.AppCode)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrAppNotAuthorized
			}
			return err
		}

		if _, err := s.catalog.GetEntitlement(txCtx, operator.ID, app.ID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrAppNotAuthorized
			}
			return err
		}

		if req.PlayerCount < app.MinPlayers || req.PlayerCount > app.MaxPlayers {
			return utils.ErrPlayerCountOutOfRange.
				WithDetail("min_players", app.MinPlayers).
				WithDetail("max_players", app.MaxPlayers)
		}

		totalCost := app.UnitPrice.Mul(decimal.NewFromInt(int64(req.PlayerCount)))
		if operator.Balance.LessThan(totalCost) {
			shortfall := totalCost.Sub(operator.Balance)
			return utils.ErrInsufficientBalance.WithDetail("shortfall", shortfall.StringFixed(2))
		}

		newBalance := operator.Balance.Sub(totalCost)
		if err := s.operators.UpdateBalance(txCtx, operator.ID, newBalance); err != nil {
			return err
		}

		usage := &models.UsageRecord{
			ID:          uuid.NewString(),
			OperatorID:  operator.ID,
			AppID:       app.ID,
			SiteID:      req.SiteID,
			SessionID:   req.SessionID,
			PlayerCount: req.PlayerCount,
			UnitPrice:   app.UnitPrice,
			TotalCost:   totalCost,
		}
		if err := s.ledger.CreateUsageRecord(txCtx, usage); err != nil {
			return err
		}

		if err := s.ledger.CreateTransactionRecord(txCtx, &models.TransactionRecord{
			ID:            uuid.NewString(),
			OperatorID:    operator.ID,
			Amount:        totalCost.Neg(),
			BalanceBefore: operator.Balance,
			BalanceAfter:  newBalance,
			UsageRecordID: usage.ID,
		}); err != nil {
			return err
		}

		resp = &models.AuthorizeResponse{
			AuthToken:        deriveAuthToken(operator.ID, req.SessionID, usage.ID),
			AmountCharged:    totalCost,
			BalanceRemaining: newBalance,
		}

		body, err := json.Marshal(resp)
		if err != nil {
			return err
		}
		return s.idempotency.Create(txCtx, &models.IdempotencyRecord{
			ID:           uuid.NewString(),
			OperatorID:   operator.ID,
			RequestID:    req.SessionID,
			ResponseBody: body,
			ExpiresAt:    now.Add(s.retention),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "session authorized", map[string]interface{}{
		"app_code":     req.AppCode,
		"player_count": req.PlayerCount,
		"amount":       resp.AmountCharged.StringFixed(2),
	})
	return resp, nil
}

func (s *AuthorizationService) replay(ctx context.Context, operatorID, requestID string) (*models.AuthorizeResponse, bool, error) {
	record, err := s.idempotency.Get(ctx, operatorID, requestID)
	if err != nil {
		return nil, false, err
	}
	if record == nil {
		return nil, false, nil
	}

	var resp models.AuthorizeResponse
	if err := json.Unmarshal(record.ResponseBody, &resp); err != nil {
		return nil, false, err
	}
	return &resp, true, nil
}

func (s *AuthorizationService) internal(ctx context.Context, err error, message string) error {
	s.logger.Error(ctx, message, map[string]interface{}{"error": err.Error()})
	return utils.ErrInternal
}

// deriveAuthToken produces the opaque session correlation token. It carries
// no secrets; headsets only echo it back in telemetry.
func deriveAuthToken(operatorID, sessionID, usageID string) string {
	sum := sha256.Sum256([]byte(operatorID + "|" + sessionID + "|" + usageID))
	return hex.EncodeToString(sum[:])
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
