// Package grpc exposes the transfer engine as the
// dinarflow.transfer.v1.TransferEngine gRPC service.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/domain"
	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/transfer"
)

// ErrorKindKey is the trailer key carrying the domain error kind of a failed call.
const ErrorKindKey = "error-kind"

// TransferService is the engine as seen by the gRPC layer.
type TransferService interface {
	Execute(ctx context.Context, req domain.TransferRequest) (*transfer.Result, error)
	Usage(ctx context.Context, accountID uuid.UUID) (*domain.UsageReport, error)
}

// Server implements TransferEngineServer.
type Server struct {
	svc    TransferService
	scale  int32
	logger *zap.Logger
}

// NewServer creates a new Server. scale is the number of fraction digits
// accepted in amounts.
func NewServer(svc TransferService, scale int32, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		svc:    svc,
		scale:  scale,
		logger: logger,
	}
}

// Transfer executes a transfer for req.AccountID.
// It is idempotent per account and request id.
func (s *Server) Transfer(ctx context.Context, req *TransferRequest) (*TransferResponse, error) {
	if err := domain.ValidateStruct(req); err != nil {
		return nil, s.mapDomainErrorToGRPC(ctx, err)
	}

	actorID, err := uuid.Parse(req.AccountID)
	if err != nil {
		return nil, s.mapDomainErrorToGRPC(ctx, domain.WrapValidationError("accountId", err))
	}

	amount, err := domain.ParseAmount(req.Amount, s.scale)
	if err != nil {
		return nil, s.mapDomainErrorToGRPC(ctx, err)
	}

	res, err := s.svc.Execute(ctx, domain.TransferRequest{
		RequestID: req.RequestID,
		ActorID:   actorID,
		Kind:      domain.TransferKind(req.Kind),
		Recipient: req.Recipient,
		Amount:    amount,
		Note:      req.Note,
	})
	if err != nil {
		return nil, s.mapDomainErrorToGRPC(ctx, err)
	}

	t := res.Transfer
	return &TransferResponse{
		TransferID:     t.ID.String(),
		Status:         string(t.Status),
		Replayed:       res.Replayed,
		CounterpartyID: t.CounterpartyID.String(),
		Amount:         t.Amount.StringFixed(s.scale),
		Currency:       t.Currency,
		Reference:      t.Reference,
		Balances: Balances{
			Wallet: t.ActorBalances.Wallet.StringFixed(s.scale),
			Bank:   t.ActorBalances.Bank.StringFixed(s.scale),
		},
		CompletedAt: formatTimestamp(t.CompletedAt),
	}, nil
}

// GetUsage reports the limit usage of an account.
func (s *Server) GetUsage(ctx context.Context, req *GetUsageRequest) (*GetUsageResponse, error) {
	if err := domain.ValidateStruct(req); err != nil {
		return nil, s.mapDomainErrorToGRPC(ctx, err)
	}

	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		return nil, s.mapDomainErrorToGRPC(ctx, domain.WrapValidationError("accountId", err))
	}

	report, err := s.svc.Usage(ctx, accountID)
	if err != nil {
		return nil, s.mapDomainErrorToGRPC(ctx, err)
	}

	resp := &GetUsageResponse{
		AccountID:  report.AccountID.String(),
		AsOf:       formatTimestamp(report.AsOf),
		Categories: make([]CategoryUsage, 0, len(report.Categories)),
	}
	for _, c := range report.Categories {
		resp.Categories = append(resp.Categories, CategoryUsage{
			Category:            string(c.Category),
			Used:                windows(c.Used.Daily, c.Used.Weekly, c.Used.Monthly),
			Limits:              windows(c.Limits.Daily, c.Limits.Weekly, c.Limits.Monthly),
			Remaining:           windows(c.Remaining.Daily, c.Remaining.Weekly, c.Remaining.Monthly),
			PerTransactionLimit: c.Limits.PerTransaction.String(),
		})
	}
	return resp, nil
}

// mapDomainErrorToGRPC maps domain errors to gRPC status codes and sets
// the error kind trailer.
func (s *Server) mapDomainErrorToGRPC(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	kind := domain.KindOf(err)
	_ = grpc.SetTrailer(ctx, metadata.Pairs(ErrorKindKey, string(kind)))

	var code codes.Code
	switch kind {
	case domain.KindValidation:
		code = codes.InvalidArgument
	case domain.KindAccountNotFound, domain.KindRecipientNotFound:
		code = codes.NotFound
	case domain.KindTransferInProgress:
		code = codes.Aborted
	case domain.KindLimitExceeded:
		code = codes.ResourceExhausted
	case domain.KindInsufficientFunds, domain.KindSelfTransferNotAllowed, domain.KindAmbiguousRecipient:
		code = codes.FailedPrecondition
	case domain.KindAccountSuspended:
		code = codes.PermissionDenied
	case domain.KindTimeout:
		code = codes.DeadlineExceeded
	case domain.KindCanceled:
		code = codes.Canceled
	default:
		s.logger.Error("grpc call failed", zap.Error(err))
		return status.Error(codes.Internal, "internal error")
	}

	var limitErr *domain.LimitExceededError
	if errors.As(err, &limitErr) {
		_ = grpc.SetTrailer(ctx, metadata.Pairs("limit-kind", string(limitErr.Kind)))
	}
	return status.Error(code, err.Error())
}

// LoggingInterceptor logs every unary call with its duration and status code.
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("grpc request",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("duration", time.Since(start)),
		)
		return resp, err
	}
}

func windows(daily, weekly, monthly fmt.Stringer) Windows {
	return Windows{Daily: daily.String(), Weekly: weekly.String(), Monthly: monthly.String()}
}

// formatTimestamp formats a time.Time to ISO 8601 format.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
