// Package transfer orchestrates a transfer through admission, validation,
// limit reservation, atomic execution and notification.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/domain"
	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/limits"
	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/metrics"
)


// RecipientResolver maps an identifier to a single recipient account.
type RecipientResolver interface {
	Resolve(ctx context.Context, actorID uuid.UUID, identifier string) (uuid.UUID, error)
}

// Limiter reserves and commits limit headroom.
type Limiter interface {
	CheckAndReserve(ctx context.Context, accountID uuid.UUID, category domain.Category, amount decimal.Decimal, now time.Time) (*limits.Reservation, error)
	Commit(ctx context.Context, r *limits.Reservation) error
	Release(r *limits.Reservation)
	Usage(ctx context.Context, accountID uuid.UUID, now time.Time) (*domain.UsageReport, error)
	Reset(ctx context.Context, accountID uuid.UUID, now time.Time) error
}

// Config holds the tunables of the orchestrator.
type Config struct {
	Currency       string        // ISO 4217 code of every amount
	Scale          int32         // minor-unit digits of Currency
	ReserveTimeout time.Duration // budget for validation and reservation
	ExecuteTimeout time.Duration // budget for the atomic ledger mutation
	NotifyTimeout  time.Duration // budget for each best-effort delivery
}

// DefaultConfig returns the TND configuration.
func DefaultConfig() Config {
	return Config{
		Currency:       "TND",
		Scale:          2,
		ReserveTimeout: 2 * time.Second,
		ExecuteTimeout: 5 * time.Second,
		NotifyTimeout:  5 * time.Second,
	}
}

// Dependencies are the collaborators of the Service.
// Notifier and History are optional.
type Dependencies struct {
	Guard     domain.IdempotencyGuard
	Resolver  RecipientResolver
	Limits    Limiter
	Ledger    domain.Ledger
	Transfers domain.TransferRepository
	TxManager domain.TransactionManager
	Notifier  domain.Notifier
	History   domain.HistoryWriter
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Result is the outcome of a completed transfer.
type Result struct {
	Transfer *domain.Transfer
	Replayed bool // the request id was already completed; nothing was executed
}

// Service is the transfer orchestrator.
type Service struct {
	deps   Dependencies
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	wg sync.WaitGroup
}

// NewService creates a new Service.
func NewService(deps Dependencies, cfg Config, opts ...Option) *Service {
	s := &Service{
		deps:   deps,
		cfg:    cfg,
		logger: zap.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute runs a transfer request to completion.
//
// At most one request per actor is processed at a time; a concurrent one
// fails with ErrTransferInProgress. A request id that already completed
// returns the stored transfer with Replayed set. On any failure every limit
// reservation is released, balances are unchanged and the returned error
// belongs to the domain error taxonomy.
func (s *Service) Execute(ctx context.Context, req domain.TransferRequest) (*Result, error) {
	start := time.Now()
	res, err := s.execute(ctx, req)

	kind := string(req.Kind)
	if _, kerr := req.Kind.Category(); kerr != nil {
		kind = "unknown"
	}
	outcome := string(domain.TransferStatusCompleted)
	switch {
	case err != nil:
		outcome = string(domain.KindOf(err))
	case res.Replayed:
		outcome = "replayed"
	}
	metrics.TransfersTotal.WithLabelValues(kind, outcome).Inc()
	metrics.TransferDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	return res, err
}

func (s *Service) execute(ctx context.Context, req domain.TransferRequest) (*Result, error) {
	if err := domain.ValidateStruct(req); err != nil {
		return nil, err
	}

	// admission shares the reserve budget but gets its own deadline
	admitCtx, cancelAdmit := context.WithTimeout(ctx, s.cfg.ReserveTimeout)
	defer cancelAdmit()

	granted, err := s.deps.Guard.Acquire(admitCtx, req.ActorID, req.RequestID)
	if err != nil {
		err = stageError(admitCtx, "admit", err)
		if domain.KindOf(err) == domain.KindInternal {
			s.logger.Error("idempotency guard unavailable",
				zap.String("request_id", req.RequestID),
				zap.Error(err),
			)
		}
		return nil, err
	}
	if !granted {
		return nil, domain.ErrTransferInProgress
	}
	defer s.release(ctx, req)

	existing, err := s.deps.Transfers.GetByRequestID(admitCtx, req.ActorID, req.RequestID)
	if err != nil {
		return nil, s.failed(ctx, req, stageError(admitCtx, "admit", err))
	}
	if existing != nil {
		return s.replay(req, existing)
	}

	transfer, err := s.process(ctx, req)
	if errors.Is(err, domain.ErrDuplicateTransfer) {
		// recorded by a holder whose lease expired mid-flight
		if existing, lookupErr := s.deps.Transfers.GetByRequestID(context.WithoutCancel(ctx), req.ActorID, req.RequestID); lookupErr == nil && existing != nil {
			return s.replay(req, existing)
		}
	}
	if err != nil {
		return nil, s.failed(ctx, req, err)
	}

	s.logger.Info("transfer completed",
		zap.String("transfer_id", transfer.ID.String()),
		zap.String("request_id", req.RequestID),
		zap.String("actor_id", req.ActorID.String()),
		zap.String("counterparty_id", transfer.CounterpartyID.String()),
		zap.String("kind", string(req.Kind)),
		zap.String("amount", req.Amount.String()),
		zap.String("reference", transfer.Reference),
	)
	s.emitCompleted(ctx, transfer)

	return &Result{Transfer: transfer}, nil
}

// process runs Validate, Reserve and Execute.
func (s *Service) process(ctx context.Context, req domain.TransferRequest) (*domain.Transfer, error) {
	category, err := req.Kind.Category()
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateAmount(req.Amount, s.cfg.Scale); err != nil {
		return nil, err
	}

	reserveCtx, cancelReserve := context.WithTimeout(ctx, s.cfg.ReserveTimeout)
	defer cancelReserve()

	counterparty, err := s.counterparty(reserveCtx, req)
	if err != nil {
		return nil, stageError(reserveCtx, "validate", err)
	}

	now := s.now()
	reservation, err := s.deps.Limits.CheckAndReserve(reserveCtx, req.ActorID, category, req.Amount, now)
	if err != nil {
		return nil, stageError(reserveCtx, "reserve", err)
	}
	defer s.deps.Limits.Release(reservation)

	if err := ctx.Err(); err != nil {
		return nil, stageError(ctx, "reserve", err)
	}

	// the mutation must not be abandoned halfway by the caller going away
	execCtx, cancelExec := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ExecuteTimeout)
	defer cancelExec()

	transfer := domain.NewTransfer(req, counterparty, category, s.cfg.Currency, now)
	movement := req.Kind.Movement(req.ActorID, counterparty, req.Amount)

	err = s.deps.TxManager.WithTransaction(execCtx, func(txCtx context.Context) error {
		moved, err := s.deps.Ledger.Move(txCtx, movement)
		if err != nil {
			return err
		}
		if err := s.deps.Limits.Commit(txCtx, reservation); err != nil {
			return err
		}
		transfer.Complete(moved, s.now())
		return s.deps.Transfers.Create(txCtx, transfer)
	})
	if err != nil {
		return nil, stageError(execCtx, "execute", err)
	}

	return transfer, nil
}

// counterparty validates the parties and returns the account credited.
func (s *Service) counterparty(ctx context.Context, req domain.TransferRequest) (uuid.UUID, error) {
	actor, err := s.deps.Ledger.Account(ctx, req.ActorID)
	if err != nil {
		return uuid.Nil, err
	}
	if actor.Status != domain.AccountStatusActive {
		return uuid.Nil, domain.ErrAccountSuspended
	}

	if req.Kind != domain.KindWalletToWallet {
		if !actor.BankLinked {
			return uuid.Nil, domain.WrapValidationError("kind", domain.ErrBankNotLinked)
		}
		return req.ActorID, nil
	}

	if strings.TrimSpace(req.Recipient) == "" {
		return uuid.Nil, domain.NewValidationError("recipient", "recipient is required")
	}
	return s.deps.Resolver.Resolve(ctx, req.ActorID, req.Recipient)
}

// replay returns a previously completed transfer for the same request id.
func (s *Service) replay(req domain.TransferRequest, existing *domain.Transfer) (*Result, error) {
	if existing.Kind != req.Kind || !existing.Amount.Equal(req.Amount) {
		return nil, domain.NewValidationError("requestId", "request id was already used for a different transfer")
	}
	s.logger.Info("transfer replayed",
		zap.String("transfer_id", existing.ID.String()),
		zap.String("request_id", req.RequestID),
	)
	return &Result{Transfer: existing, Replayed: true}, nil
}

// failed logs the failure, emits TransferFailed and returns err.
func (s *Service) failed(ctx context.Context, req domain.TransferRequest, err error) error {
	fields := []zap.Field{
		zap.String("request_id", req.RequestID),
		zap.String("actor_id", req.ActorID.String()),
		zap.String("kind", string(req.Kind)),
		zap.String("amount", req.Amount.String()),
		zap.String("error_kind", string(domain.KindOf(err))),
	}
	if domain.KindOf(err) == domain.KindInternal {
		s.logger.Error("transfer failed", append(fields, zap.Error(err))...)
	} else {
		s.logger.Info("transfer rejected", append(fields, zap.String("reason", err.Error()))...)
	}

	if s.deps.Notifier != nil {
		event := domain.TransferFailedEvent(req, s.cfg.Currency, err, s.now())
		s.background(ctx, func(bgCtx context.Context) {
			s.deliver("notifier", req.RequestID, func() error { return s.deps.Notifier.Notify(bgCtx, event) })
		})
	}
	return err
}

func (s *Service) emitCompleted(ctx context.Context, t *domain.Transfer) {
	if s.deps.Notifier == nil && s.deps.History == nil {
		return
	}
	event := domain.TransferCompletedEvent(t)
	records := domain.HistoryRecordsFor(t)

	s.background(ctx, func(bgCtx context.Context) {
		if s.deps.Notifier != nil {
			s.deliver("notifier", t.RequestID, func() error { return s.deps.Notifier.Notify(bgCtx, event) })
		}
		if s.deps.History != nil {
			s.deliver("history", t.RequestID, func() error { return s.deps.History.Append(bgCtx, records) })
		}
	})
}

// deliver runs a best-effort delivery. Failures are logged and counted only.
func (s *Service) deliver(collaborator, requestID string, fn func() error) {
	if err := fn(); err != nil {
		metrics.CollaboratorFailures.WithLabelValues(collaborator).Inc()
		s.logger.Warn("best-effort delivery failed",
			zap.String("collaborator", collaborator),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
	}
}

// background runs fn detached from the caller's cancellation, bounded by NotifyTimeout.
func (s *Service) background(ctx context.Context, fn func(context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.NotifyTimeout)
		defer cancel()
		fn(bgCtx)
	}()
}

// Wait blocks until every in-flight best-effort delivery has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) release(ctx context.Context, req domain.TransferRequest) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.NotifyTimeout)
	defer cancel()
	if err := s.deps.Guard.Release(releaseCtx, req.ActorID, req.RequestID); err != nil {
		s.logger.Warn("failed to release idempotency lease; it will expire",
			zap.String("request_id", req.RequestID),
			zap.Error(err),
		)
	}
}

// Usage returns the limit usage of an account.
func (s *Service) Usage(ctx context.Context, accountID uuid.UUID) (*domain.UsageReport, error) {
	if _, err := s.deps.Ledger.Account(ctx, accountID); err != nil {
		return nil, domain.Internal("get account", err)
	}
	report, err := s.deps.Limits.Usage(ctx, accountID, s.now())
	if err != nil {
		return nil, domain.Internal("usage", err)
	}
	return report, nil
}

// ResetUsage clears the committed limit usage of an account.
func (s *Service) ResetUsage(ctx context.Context, accountID uuid.UUID) error {
	if _, err := s.deps.Ledger.Account(ctx, accountID); err != nil {
		return domain.Internal("get account", err)
	}
	if err := s.deps.Limits.Reset(ctx, accountID, s.now()); err != nil {
		return domain.Internal("reset usage", err)
	}
	s.logger.Info("limit usage reset", zap.String("account_id", accountID.String()))
	return nil
}

// GetAccount returns the current balances of an account.
func (s *Service) GetAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	account, err := s.deps.Ledger.Account(ctx, accountID)
	if err != nil {
		return nil, domain.Internal("get account", err)
	}
	return account, nil
}

// stageError maps a stage failure into the domain taxonomy. Deadlines become
// ErrTimeout and cancellations ErrCanceled.
func stageError(stageCtx context.Context, stage string, err error) error {
	if domain.KindOf(err) != domain.KindInternal {
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(stageCtx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %s stage: %w", domain.ErrTimeout, stage, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %s stage: %w", domain.ErrCanceled, stage, err)
	}
	return domain.Internal(stage, err)
}
