package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"nftmarket/core"
	mkterrors "nftmarket/core/errors"
	"nftmarket/gateway/middleware"
	"nftmarket/native/common"
	"nftmarket/native/marketplace"
	"nftmarket/observability/logging"
)

const (
	maxRequestBytes      = 1 << 20 // 1 MiB
	headerIdempotencyKey = "Idempotency-Key"
	headerRequestID      = "X-Request-ID"
	maxIdempotencyKeyLen = 128
)

// Server exposes the host over HTTP.
type Server struct {
	host     *core.Host
	idem     *IdempotencyStore
	keys     keyLocks
	logger   *slog.Logger
	maxBytes int64
}

// ServerOption customises a Server.
type ServerOption func(*Server)

// WithIdempotencyStore enables Idempotency-Key replay on execute.
func WithIdempotencyStore(store *IdempotencyStore) ServerOption {
	return func(s *Server) { s.idem = store }
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxBodyBytes bounds request bodies.
func WithMaxBodyBytes(n int64) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

func NewServer(host *core.Host, opts ...ServerOption) *Server {
	s := &Server{host: host, logger: slog.Default(), maxBytes: maxRequestBytes}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorBody{Error: message})
}

// writeFailure classifies err and writes the matching status.
func writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrModulePaused):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case errors.Is(err, core.ErrNotInstantiated):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	kind := mkterrors.KindOf(err)
	status := statusFor(kind)
	body := ErrorBody{Error: err.Error(), Kind: kind.String()}
	if kind == mkterrors.KindUnknown {
		body = ErrorBody{Error: "internal error"}
	}
	writeJSON(w, status, body)
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return nil, false
	}
	return body, true
}

func decodeStrict(body []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

// HandleExecute runs an execute message for the authenticated sender.
func (s *Server) HandleExecute(w http.ResponseWriter, r *http.Request) {
	sender, ok := middleware.SenderFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authenticated sender required")
		return
	}
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	requestID := strings.TrimSpace(r.Header.Get(headerRequestID))
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set(headerRequestID, requestID)

	key := strings.TrimSpace(r.Header.Get(headerIdempotencyKey))
	if len(key) > maxIdempotencyKeyLen {
		writeError(w, http.StatusBadRequest, "idempotency key too long")
		return
	}

	var req ExecuteRequest
	if err := decodeStrict(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if _, err := req.Msg.Method(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if scopes, ok := middleware.ScopesFromContext(r.Context()); ok && req.Msg.AdminOnly() && !containsScope(scopes, middleware.ScopeAdmin) {
		writeError(w, http.StatusForbidden, "admin scope required")
		return
	}

	claimed := false
	if key != "" && s.idem != nil {
		unlock := s.keys.lock(sender + "\x00" + key)
		defer unlock()
		if !s.claim(w, r, sender, key, requestDigest(sender, body), requestID) {
			return
		}
		claimed = true
	}
	// Store writes after the call must land even if the client went away.
	storeCtx := context.WithoutCancel(r.Context())

	result, err := s.host.Execute(r.Context(), sender, req.Funds, req.Msg)
	if err != nil {
		if claimed {
			if rerr := s.idem.Release(storeCtx, sender, key); rerr != nil {
				s.logger.Warn("idempotency release failed", slog.Any("error", rerr), slog.String("request_id", requestID))
			}
		}
		writeFailure(w, err)
		return
	}
	payload := ExecuteResult{RequestID: requestID, Height: result.Height, Sender: sender, Response: result.Response}
	if claimed {
		encoded, err := json.Marshal(payload)
		if err == nil {
			err = s.idem.Complete(storeCtx, &IdempotencyRecord{
				Key:      key,
				Sender:   sender,
				Status:   http.StatusOK,
				Response: string(encoded),
			})
		}
		if err != nil {
			s.logger.Warn("idempotency save failed", slog.Any("error", err), slog.String("request_id", requestID))
		}
	}
	writeJSON(w, http.StatusOK, payload)
}

// claim reserves key for this request. When it returns false a response has
// already been written: a replay, a mismatch or a call still in flight.
func (s *Server) claim(w http.ResponseWriter, r *http.Request, sender, key, digest, requestID string) bool {
	existing, claimed, err := s.idem.Claim(r.Context(), &IdempotencyRecord{
		Key:       key,
		Sender:    sender,
		Digest:    digest,
		RequestID: requestID,
	})
	if err != nil {
		s.logger.Error("idempotency claim failed", slog.Any("error", err), logging.MaskField("idempotency_key", key))
		writeError(w, http.StatusInternalServerError, "internal error")
		return false
	}
	if claimed {
		return true
	}
	switch {
	case existing.Digest != digest:
		writeError(w, http.StatusUnprocessableEntity, ErrIdempotencyMismatch.Error())
	case existing.Pending:
		writeError(w, http.StatusConflict, ErrIdempotencyInFlight.Error())
	default:
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Idempotent-Replay", "true")
		w.WriteHeader(existing.Status)
		_, _ = io.WriteString(w, existing.Response)
	}
	return false
}

func containsScope(scopes []string, want string) bool {
	for _, scope := range scopes {
		if scope == want {
			return true
		}
	}
	return false
}

// HandleQuery answers a query message from the body.
func (s *Server) HandleQuery(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	var msg marketplace.QueryMsg
	if err := decodeStrict(body, &msg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	s.query(r.Context(), w, msg)
}

func (s *Server) query(ctx context.Context, w http.ResponseWriter, msg marketplace.QueryMsg) {
	if _, err := msg.Method(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.host.Query(ctx, msg)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleListings serves GET /v1/listings?start_after=&limit=.
func (s *Server) HandleListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	s.query(r.Context(), w, marketplace.QueryMsg{ListedTokens: &marketplace.ListedTokensQuery{
		StartAfter: q.Get("start_after"),
		Limit:      limit,
	}})
}

// HandleSales serves GET /v1/sales.
func (s *Server) HandleSales(w http.ResponseWriter, r *http.Request) {
	s.query(r.Context(), w, marketplace.QueryMsg{PrimarySales: &marketplace.Empty{}})
}

// HandleActiveSale serves GET /v1/sales/active.
func (s *Server) HandleActiveSale(w http.ResponseWriter, r *http.Request) {
	s.query(r.Context(), w, marketplace.QueryMsg{ActivePrimarySale: &marketplace.Empty{}})
}

// HandleHealth reports the committed height.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "height": s.host.Height()})
}
