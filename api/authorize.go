package api

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/malwarebo/playgate/models"
	"github.com/malwarebo/playgate/monitoring"
	"github.com/malwarebo/playgate/services"
	"github.com/malwarebo/playgate/utils"
)

const (
	HeaderOperatorKey = "X-Operator-Key"
	HeaderSignature   = "X-Signature"
	HeaderTimestamp   = "X-Timestamp"
	HeaderSessionID   = "X-Session-Id"
)

const maxBodyBytes = 64 << 10

type AuthorizeHandler struct {
	service *services.AuthorizationService
	metrics *monitoring.MetricsCollector
}

func NewAuthorizeHandler(service *services.AuthorizationService, metrics *monitoring.MetricsCollector) *AuthorizeHandler {
	return &AuthorizeHandler{
		service: service,
		metrics: metrics,
	}
}

// HandleAuthorize serves POST /v1/auth/game/authorize. The raw body is kept
// byte-for-byte for signature verification before it is decoded.
func (h *AuthorizeHandler) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.reject(w, utils.ErrInternal)
		return
	}

	operatorKey := r.Header.Get(HeaderOperatorKey)
	signature := r.Header.Get(HeaderSignature)
	sessionID := r.Header.Get(HeaderSessionID)
	if operatorKey == "" {
		h.reject(w, utils.ErrUnauthorized)
		return
	}
	if signature == "" {
		h.reject(w, utils.ErrInvalidSignature)
		return
	}

	timestamp, err := strconv.ParseInt(r.Header.Get(HeaderTimestamp), 10, 64)
	if err != nil {
		h.reject(w, utils.ErrTimestampExpired)
		return
	}

	var req models.AuthorizeRequest
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			h.reject(w, utils.ErrMalformedRequest)
			return
		}
	}
	if req.SessionID == "" {
		req.SessionID = sessionID
	}
	if req.SessionID == "" || req.SessionID != sessionID {
		// Header and body copies of the identity must agree.
		h.reject(w, utils.ErrInvalidSessionIdentity)
		return
	}

	req.OperatorKey = operatorKey
	req.Signature = signature
	req.Timestamp = timestamp
	req.Method = r.Method
	req.Path = r.URL.Path
	req.RawBody = body
	req.SourceAddr = sourceAddr(r)

	resp, err := h.service.Authorize(r.Context(), &req)
	if err != nil {
		h.reject(w, utils.AsAPIError(err))
		return
	}

	h.metrics.IncrementCounter("authorize_total", map[string]string{"outcome": "success"})
	writeJSON(w, http.StatusOK, resp)
}

func (h *AuthorizeHandler) reject(w http.ResponseWriter, apiErr *utils.APIError) {
	h.metrics.IncrementCounter("authorize_total", map[string]string{"outcome": apiErr.Code})
	writeAPIError(w, apiErr)
}

func sourceAddr(r *http.Request) string {
	// Behind the venue LB the first forwarded hop is the kiosk address.
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if idx := strings.Index(forwarded, ","); idx > 0 {
			return strings.TrimSpace(forwarded[:idx])
		}
		return strings.TrimSpace(forwarded)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
