package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/malwarebo/playgate/models"
	"github.com/malwarebo/playgate/monitoring"
	"github.com/malwarebo/playgate/security"
	"github.com/malwarebo/playgate/services"
	"github.com/malwarebo/playgate/stores"
	"github.com/malwarebo/playgate/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// handlerStore backs the service with one operator, one app and one
// entitlement, enough to drive the handler end to end without a database.
type handlerStore struct {
	mu          sync.Mutex
	operator    *models.Operator
	app         *models.App
	idempotency map[string]*models.IdempotencyRecord
	usageCount  int
}

func (s *handlerStore) GetByKeyHash(ctx context.Context, keyHash string) (*models.Operator, error) {
	if s.operator.KeyHash != keyHash {
		return nil, gorm.ErrRecordNotFound
	}
	op := *s.operator
	return &op, nil
}

func (s *handlerStore) LockForDebit(ctx context.Context, operatorID string) (*models.Operator, error) {
	op := *s.operator
	return &op, nil
}

func (s *handlerStore) UpdateBalance(ctx context.Context, operatorID string, balance decimal.Decimal) error {
	s.operator.Balance = balance
	return nil
}

func (s *handlerStore) GetAppByCode(ctx context.Context, code string) (*models.App, error) {
	if s.app.Code != code {
		return nil, gorm.ErrRecordNotFound
	}
	app := *s.app
	return &app, nil
}

func (s *handlerStore) GetEntitlement(ctx context.Context, operatorID, appID string) (*models.Entitlement, error) {
	return &models.Entitlement{OperatorID: operatorID, AppID: appID, Active: true}, nil
}

func (s *handlerStore) Get(ctx context.Context, operatorID, requestID string) (*models.IdempotencyRecord, error) {
	record, ok := s.idempotency[operatorID+"|"+requestID]
	if !ok {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (s *handlerStore) Create(ctx context.Context, record *models.IdempotencyRecord) error {
	key := record.OperatorID + "|" + record.RequestID
	if _, exists := s.idempotency[key]; exists {
		return stores.ErrDuplicateRequest
	}
	s.idempotency[key] = record
	return nil
}

func (s *handlerStore) CreateUsageRecord(ctx context.Context, record *models.UsageRecord) error {
	s.usageCount++
	return nil
}

func (s *handlerStore) CreateTransactionRecord(ctx context.Context, record *models.TransactionRecord) error {
	return nil
}

func (s *handlerStore) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(ctx)
}

type fixedLimiter struct {
	retryAfter time.Duration
}

func (l *fixedLimiter) Allow(ctx context.Context, callerKey, sourceAddr string) (time.Duration, error) {
	return l.retryAfter, nil
}

type handlerFixture struct {
	handler       *AuthorizeHandler
	store         *handlerStore
	limiter       *fixedLimiter
	operatorID    string
	operatorKey   string
	signingSecret string
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	encryption, err := security.NewEncryptionManager([]byte("01234567890123456789012345678901"))
	if err != nil {
		t.Fatalf("NewEncryptionManager() error = %v", err)
	}
	key, keyHash, err := security.GenerateOperatorKey()
	if err != nil {
		t.Fatalf("GenerateOperatorKey() error = %v", err)
	}
	signingSecret, err := security.GenerateSigningSecret()
	if err != nil {
		t.Fatalf("GenerateSigningSecret() error = %v", err)
	}
	encryptedSecret, err := encryption.Encrypt(signingSecret)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	operatorID := "9a8b7c6d-5e4f-4a3b-8c2d-1e0f9a8b7c6d"
	store := &handlerStore{
		operator: &models.Operator{
			ID:            operatorID,
			Name:          "Nebula Arcade",
			KeyHash:       keyHash,
			SigningSecret: encryptedSecret,
			Balance:       decimal.RequireFromString("500.00"),
			Active:        true,
		},
		app: &models.App{
			ID:         "app-hx-01",
			Code:       "hex-breach",
			Name:       "Hex Breach",
			UnitPrice:  decimal.RequireFromString("10.00"),
			MinPlayers: 1,
			MaxPlayers: 8,
			Active:     true,
		},
		idempotency: make(map[string]*models.IdempotencyRecord),
	}

	limiter := &fixedLimiter{}
	service := services.NewAuthorizationService(limiter, store, store, store, store, store, encryption)

	return &handlerFixture{
		handler:       NewAuthorizeHandler(service, monitoring.NewMetricsCollector()),
		store:         store,
		limiter:       limiter,
		operatorID:    operatorID,
		operatorKey:   key,
		signingSecret: signingSecret,
	}
}

// newAuthorizeRequest builds a well-formed signed HTTP request. Tests mutate
// headers or body afterwards to exercise rejection paths, re-signing when the
// mutation is meant to pass signature verification.
func (f *handlerFixture) newAuthorizeRequest(t *testing.T, playerCount int) *http.Request {
	t.Helper()

	now := time.Now().Unix()
	sessionID := fmt.Sprintf("%s_%d_fedcba9876543210", f.operatorID, now)
	body := []byte(fmt.Sprintf(`{"app_code":"hex-breach","player_count":%d,"session_id":%q,"site_id":"site-nebula-2"}`,
		playerCount, sessionID))

	r := httptest.NewRequest(http.MethodPost, "/v1/auth/game/authorize", bytes.NewReader(body))
	r.Header.Set(HeaderOperatorKey, f.operatorKey)
	r.Header.Set(HeaderSignature, security.SignRequest(f.signingSecret, now, http.MethodPost, "/v1/auth/game/authorize", body))
	r.Header.Set(HeaderTimestamp, fmt.Sprintf("%d", now))
	r.Header.Set(HeaderSessionID, sessionID)
	r.RemoteAddr = "198.51.100.4:53122"
	return r
}

func decodeErrorEnvelope(t *testing.T, w *httptest.ResponseRecorder) *utils.APIError {
	t.Helper()
	var envelope ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatalf("decoding error envelope: %v", err)
	}
	if envelope.Error == nil {
		t.Fatal("error envelope has no error")
	}
	return envelope.Error
}

func TestHandleAuthorize_Success(t *testing.T) {
	f := newHandlerFixture(t)
	r := f.newAuthorizeRequest(t, 4)
	w := httptest.NewRecorder()

	f.handler.HandleAuthorize(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var resp models.AuthorizeResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !resp.AmountCharged.Equal(decimal.RequireFromString("40.00")) {
		t.Errorf("AmountCharged = %s, want 40.00", resp.AmountCharged)
	}
	if !resp.BalanceRemaining.Equal(decimal.RequireFromString("460.00")) {
		t.Errorf("BalanceRemaining = %s, want 460.00", resp.BalanceRemaining)
	}
	if resp.AuthToken == "" {
		t.Error("AuthToken is empty")
	}
}

func TestHandleAuthorize_MissingHeaders(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(r *http.Request)
		wantStatus int
		wantCode   string
	}{
		{
			name:       "no operator key",
			mutate:     func(r *http.Request) { r.Header.Del(HeaderOperatorKey) },
			wantStatus: http.StatusUnauthorized,
			wantCode:   "UNAUTHORIZED",
		},
		{
			name:       "no signature",
			mutate:     func(r *http.Request) { r.Header.Del(HeaderSignature) },
			wantStatus: http.StatusUnauthorized,
			wantCode:   "INVALID_SIGNATURE",
		},
		{
			name:       "unparseable timestamp",
			mutate:     func(r *http.Request) { r.Header.Set(HeaderTimestamp, "yesterday") },
			wantStatus: http.StatusBadRequest,
			wantCode:   "TIMESTAMP_EXPIRED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newHandlerFixture(t)
			r := f.newAuthorizeRequest(t, 4)
			tt.mutate(r)
			w := httptest.NewRecorder()

			f.handler.HandleAuthorize(w, r)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if apiErr := decodeErrorEnvelope(t, w); apiErr.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", apiErr.Code, tt.wantCode)
			}
		})
	}
}

func TestHandleAuthorize_SessionHeaderBodyMismatch(t *testing.T) {
	f := newHandlerFixture(t)
	r := f.newAuthorizeRequest(t, 4)
	r.Header.Set(HeaderSessionID, "a-different-session")
	w := httptest.NewRecorder()

	f.handler.HandleAuthorize(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if apiErr := decodeErrorEnvelope(t, w); apiErr.Code != "INVALID_SESSION_IDENTITY" {
		t.Errorf("code = %s, want INVALID_SESSION_IDENTITY", apiErr.Code)
	}
}

func TestHandleAuthorize_MalformedBody(t *testing.T) {
	f := newHandlerFixture(t)
	r := httptest.NewRequest(http.MethodPost, "/v1/auth/game/authorize", bytes.NewReader([]byte("{not json")))
	r.Header.Set(HeaderOperatorKey, f.operatorKey)
	r.Header.Set(HeaderSignature, "sig")
	r.Header.Set(HeaderTimestamp, fmt.Sprintf("%d", time.Now().Unix()))
	w := httptest.NewRecorder()

	f.handler.HandleAuthorize(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if apiErr := decodeErrorEnvelope(t, w); apiErr.Code != "MALFORMED_REQUEST" {
		t.Errorf("code = %s, want MALFORMED_REQUEST", apiErr.Code)
	}
}

func TestHandleAuthorize_TamperedBody(t *testing.T) {
	f := newHandlerFixture(t)
	r := f.newAuthorizeRequest(t, 4)

	// Re-read and perturb the signed body without updating the signature.
	now := time.Now().Unix()
	sessionID := fmt.Sprintf("%s_%d_fedcba9876543210", f.operatorID, now)
	body := []byte(fmt.Sprintf(`{"app_code":"hex-breach","player_count":8,"session_id":%q,"site_id":"site-nebula-2"}`, sessionID))
	r = httptest.NewRequest(http.MethodPost, "/v1/auth/game/authorize", bytes.NewReader(body))
	r.Header.Set(HeaderOperatorKey, f.operatorKey)
	r.Header.Set(HeaderSignature, security.SignRequest(f.signingSecret, now, http.MethodPost, "/v1/auth/game/authorize",
		[]byte(`{"different":"payload"}`)))
	r.Header.Set(HeaderTimestamp, fmt.Sprintf("%d", now))
	r.Header.Set(HeaderSessionID, sessionID)
	w := httptest.NewRecorder()

	f.handler.HandleAuthorize(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if apiErr := decodeErrorEnvelope(t, w); apiErr.Code != "INVALID_SIGNATURE" {
		t.Errorf("code = %s, want INVALID_SIGNATURE", apiErr.Code)
	}
}

func TestHandleAuthorize_RateLimited(t *testing.T) {
	f := newHandlerFixture(t)
	f.limiter.retryAfter = 17 * time.Second

	r := f.newAuthorizeRequest(t, 4)
	w := httptest.NewRecorder()

	f.handler.HandleAuthorize(w, r)

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if retryAfter := w.Header().Get("Retry-After"); retryAfter != "17" {
		t.Errorf("Retry-After = %q, want \"17\"", retryAfter)
	}
	apiErr := decodeErrorEnvelope(t, w)
	if apiErr.Code != "RATE_LIMIT_EXCEEDED" {
		t.Errorf("code = %s, want RATE_LIMIT_EXCEEDED", apiErr.Code)
	}
}

func TestHandleAuthorize_InsufficientBalanceStatus(t *testing.T) {
	f := newHandlerFixture(t)
	f.store.operator.Balance = decimal.RequireFromString("30.00")

	r := f.newAuthorizeRequest(t, 4)
	w := httptest.NewRecorder()

	f.handler.HandleAuthorize(w, r)

	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", w.Code)
	}
	apiErr := decodeErrorEnvelope(t, w)
	if apiErr.Code != "INSUFFICIENT_BALANCE" {
		t.Errorf("code = %s, want INSUFFICIENT_BALANCE", apiErr.Code)
	}
	if apiErr.Detail["shortfall"] != "10.00" {
		t.Errorf("shortfall = %v, want \"10.00\"", apiErr.Detail["shortfall"])
	}
}

func TestHandleAuthorize_ReplaySameResponse(t *testing.T) {
	f := newHandlerFixture(t)
	r1 := f.newAuthorizeRequest(t, 4)

	w1 := httptest.NewRecorder()
	f.handler.HandleAuthorize(w1, r1)
	if w1.Code != http.StatusOK {
		t.Fatalf("first status = %d, want 200", w1.Code)
	}

	// Replay the identical request byte for byte.
	r2 := httptest.NewRequest(http.MethodPost, r1.URL.Path, bytes.NewReader(mustReadRecordedBody(t, f, r1)))
	for _, h := range []string{HeaderOperatorKey, HeaderSignature, HeaderTimestamp, HeaderSessionID} {
		r2.Header.Set(h, r1.Header.Get(h))
	}
	w2 := httptest.NewRecorder()
	f.handler.HandleAuthorize(w2, r2)

	if w2.Code != http.StatusOK {
		t.Fatalf("replay status = %d, want 200", w2.Code)
	}
	if w1.Body.String() != w2.Body.String() {
		t.Errorf("replay body differs:\n%s\n%s", w1.Body, w2.Body)
	}
	if f.store.usageCount != 1 {
		t.Errorf("usage records = %d, want 1", f.store.usageCount)
	}
}

// mustReadRecordedBody reconstructs the exact body the first request carried,
// since its reader was consumed by the handler.
func mustReadRecordedBody(t *testing.T, f *handlerFixture, r *http.Request) []byte {
	t.Helper()
	sessionID := r.Header.Get(HeaderSessionID)
	return []byte(fmt.Sprintf(`{"app_code":"hex-breach","player_count":4,"session_id":%q,"site_id":"site-nebula-2"}`, sessionID))
}

func TestSourceAddr(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{"direct", "198.51.100.4:53122", "", "198.51.100.4"},
		{"single forwarded hop", "10.0.0.1:80", "203.0.113.9", "203.0.113.9"},
		{"forwarded chain keeps first hop", "10.0.0.1:80", "203.0.113.9, 10.0.0.2", "203.0.113.9"},
		{"unparseable remote addr", "not-a-hostport", "", "not-a-hostport"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/v1/auth/game/authorize", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := sourceAddr(r); got != tt.want {
				t.Errorf("sourceAddr() = %q, want %q", got, tt.want)
			}
		})
	}
}
