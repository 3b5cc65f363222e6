// Package httpapi exposes the transfer engine over HTTP.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/domain"
	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/transfer"
)

const (
	// IdempotencyKeyHeader carries the client request id of a transfer.
	IdempotencyKeyHeader = "Idempotency-Key"
	// AdminTokenHeader authorizes administrative endpoints.
	AdminTokenHeader = "X-Admin-Token"

	maxBodyBytes    = 16 << 10
	maxHistoryLimit = 200
	healthTimeout   = 2 * time.Second
)

// TransferService is the engine as seen by the HTTP layer.
type TransferService interface {
	Execute(ctx context.Context, req domain.TransferRequest) (*transfer.Result, error)
	GetAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error)
	Usage(ctx context.Context, accountID uuid.UUID) (*domain.UsageReport, error)
	ResetUsage(ctx context.Context, accountID uuid.UUID) error
}

// HistoryReader lists the transfer history of an account.
type HistoryReader interface {
	List(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.HistoryRecord, error)
}

// HealthCheck pings one dependency.
type HealthCheck func(ctx context.Context) error

// Options configure a Handler. Only Service is required.
type Options struct {
	Service    TransferService
	History    HistoryReader
	Health     map[string]HealthCheck
	AdminToken string
	Currency   string
	Scale      int32
	Logger     *zap.Logger
}

// Handler serves the HTTP API.
type Handler struct {
	svc        TransferService
	history    HistoryReader
	health     map[string]HealthCheck
	adminToken string
	currency   string
	scale      int32
	logger     *zap.Logger
}

// NewHandler creates a new Handler.
func NewHandler(opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Currency == "" {
		opts.Currency = "TND"
	}
	return &Handler{
		svc:        opts.Service,
		history:    opts.History,
		health:     opts.Health,
		adminToken: opts.AdminToken,
		currency:   opts.Currency,
		scale:      opts.Scale,
		logger:     opts.Logger,
	}
}

// CreateTransfer handles POST /api/v1/accounts/{accountId}/transfers.
// The path account is the actor. A completed transfer answers 201, a replay 200.
func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	var body TransferRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		h.failTransfer(w, r, domain.NewValidationError("body", "failed to parse request body"))
		return
	}
	if err := domain.ValidateStruct(body); err != nil {
		h.failTransfer(w, r, err)
		return
	}

	amount, err := domain.ParseAmount(body.Amount.String(), h.scale)
	if err != nil {
		h.failTransfer(w, r, err)
		return
	}

	res, err := h.svc.Execute(r.Context(), domain.TransferRequest{
		RequestID: strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader)),
		ActorID:   actorID,
		Kind:      domain.TransferKind(body.Kind),
		Recipient: body.Recipient,
		Amount:    amount,
		Note:      body.Note,
	})
	if err != nil {
		h.failTransfer(w, r, err)
		return
	}

	t := res.Transfer
	balances := newBalancesView(t.ActorBalances, h.scale)
	resp := TransferResponse{
		Status:   string(t.Status),
		Replayed: res.Replayed,
		Transfer: newTransferView(t, h.scale),
		Balances: &balances,
	}

	code := http.StatusCreated
	if res.Replayed {
		code = http.StatusOK
	}
	sendJSON(w, code, resp)
}

func (h *Handler) failTransfer(w http.ResponseWriter, r *http.Request, err error) {
	view := newErrorView(err)
	sendJSON(w, statusFor(domain.KindOf(err)), TransferResponse{Status: "failed", Error: view})
	h.logFailure(r, err, view)
}

// GetAccount handles GET /api/v1/accounts/{accountId}.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}

	acc, err := h.svc.GetAccount(r.Context(), id)
	if err != nil {
		h.logFailure(r, err, sendError(w, err))
		return
	}

	sendJSON(w, http.StatusOK, AccountResponse{
		ID:         acc.ID,
		Status:     string(acc.Status),
		BankLinked: acc.BankLinked,
		Balances:   newBalancesView(acc.Balances(), h.scale),
		Currency:   h.currency,
	})
}

// GetUsage handles GET /api/v1/accounts/{accountId}/usage.
func (h *Handler) GetUsage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}

	report, err := h.svc.Usage(r.Context(), id)
	if err != nil {
		h.logFailure(r, err, sendError(w, err))
		return
	}
	sendJSON(w, http.StatusOK, report)
}

// ResetUsage handles POST /api/v1/accounts/{accountId}/usage/reset.
// When an admin token is configured the request must present it.
func (h *Handler) ResetUsage(w http.ResponseWriter, r *http.Request) {
	if h.adminToken != "" {
		got := r.Header.Get(AdminTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.adminToken)) != 1 {
			sendJSON(w, http.StatusUnauthorized, ErrorResponse{
				Status: "failed",
				Error:  &ErrorView{ID: uuid.New(), Kind: "unauthorized", Message: "admin token required"},
			})
			return
		}
	}

	id, ok := h.accountID(w, r)
	if !ok {
		return
	}

	if err := h.svc.ResetUsage(r.Context(), id); err != nil {
		h.logFailure(r, err, sendError(w, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListHistory handles GET /api/v1/accounts/{accountId}/history?limit=N.
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		w.WriteHeader(http.StatusNotImplemented)
		return
	}

	id, ok := h.accountID(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			sendError(w, domain.NewValidationError("limit", "must be an integer between 1 and "+strconv.Itoa(maxHistoryLimit)))
			return
		}
		limit = n
	}

	records, err := h.history.List(r.Context(), id, limit)
	if err != nil {
		err = domain.Internal("list history", err)
		h.logFailure(r, err, sendError(w, err))
		return
	}

	resp := HistoryResponse{Content: make([]HistoryView, 0, len(records))}
	for _, rec := range records {
		resp.Content = append(resp.Content, HistoryView{
			TransferID:     rec.TransferID,
			CounterpartyID: rec.CounterpartyID,
			Kind:           string(rec.Kind),
			Direction:      string(rec.Direction),
			Amount:         rec.Amount.StringFixed(h.scale),
			Currency:       rec.Currency,
			Reference:      rec.Reference,
			Note:           rec.Note,
			OccurredAt:     rec.OccurredAt,
		})
	}
	sendJSON(w, http.StatusOK, resp)
}

// Healthz runs every registered health check.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	code := http.StatusOK
	checks := make(map[string]string, len(h.health))
	for name, check := range h.health {
		if err := check(ctx); err != nil {
			h.logger.Error("health check failed", zap.String("check", name), zap.Error(err))
			checks[name] = err.Error()
			code = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	status := "ok"
	if code != http.StatusOK {
		status = "degraded"
	}
	sendJSON(w, code, map[string]any{"status": status, "checks": checks})
}

func (h *Handler) accountID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "accountId"))
	if err != nil {
		sendError(w, domain.NewValidationError("accountId", "must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

// logFailure logs internal errors with their cause. Expected rejections are
// already recorded by the service.
func (h *Handler) logFailure(r *http.Request, err error, view *ErrorView) {
	if domain.KindOf(err) != domain.KindInternal {
		return
	}
	h.logger.Error("request failed",
		zap.String("error_id", view.ID.String()),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
}
