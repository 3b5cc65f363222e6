package grpc_test

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/domain"
	grpcserver "github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/grpc"
	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/transfer"
)

const bufSize = 1024 * 1024

// mockTransferService is a mock implementation for unit testing
type mockTransferService struct {
	executeFunc func(ctx context.Context, req domain.TransferRequest) (*transfer.Result, error)
	usageFunc   func(ctx context.Context, accountID uuid.UUID) (*domain.UsageReport, error)
}

func (m *mockTransferService) Execute(ctx context.Context, req domain.TransferRequest) (*transfer.Result, error) {
	if m.executeFunc != nil {
		return m.executeFunc(ctx, req)
	}
	return nil, errors.New("not configured")
}

func (m *mockTransferService) Usage(ctx context.Context, accountID uuid.UUID) (*domain.UsageReport, error) {
	if m.usageFunc != nil {
		return m.usageFunc(ctx, accountID)
	}
	return nil, errors.New("not configured")
}

// setupServer starts the service on an in-memory listener and returns a client.
func setupServer(t *testing.T, svc grpcserver.TransferService) *grpcserver.Client {
	t.Helper()

	lis := bufconn.Listen(bufSize)
	srv := grpc.NewServer(grpc.UnaryInterceptor(grpcserver.LoggingInterceptor(zap.NewNop())))
	grpcserver.RegisterTransferEngineServer(srv, grpcserver.NewServer(svc, 2, nil))

	go func() {
		if err := srv.Serve(lis); err != nil {
			t.Logf("Server exited with error: %v", err)
		}
	}()
	t.Cleanup(srv.Stop)

	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
			return lis.Dial()
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return grpcserver.NewClient(conn)
}

func TestTransfer_Success(t *testing.T) {
	actor, counterparty := uuid.New(), uuid.New()
	completedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	svc := &mockTransferService{
		executeFunc: func(_ context.Context, req domain.TransferRequest) (*transfer.Result, error) {
			assert.Equal(t, actor, req.ActorID)
			assert.Equal(t, "r1", req.RequestID)
			assert.Equal(t, domain.KindWalletToWallet, req.Kind)
			assert.Equal(t, "20123456", req.Recipient)
			assert.True(t, req.Amount.Equal(decimal.RequireFromString("400")))

			tr := domain.NewTransfer(req, counterparty, domain.CategoryUserTransfer, "TND", completedAt)
			tr.Complete(&domain.MoveResult{
				From: &domain.Account{WalletBalance: decimal.NewFromInt(600)},
				To:   &domain.Account{WalletBalance: decimal.NewFromInt(400)},
			}, completedAt)
			return &transfer.Result{Transfer: tr}, nil
		},
	}
	client := setupServer(t, svc)

	resp, err := client.Transfer(context.Background(), &grpcserver.TransferRequest{
		AccountID: actor.String(),
		RequestID: "r1",
		Kind:      "wallet_to_wallet",
		Recipient: "20123456",
		Amount:    "400",
	})
	require.NoError(t, err)
	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, counterparty.String(), resp.CounterpartyID)
	assert.Equal(t, "400.00", resp.Amount)
	assert.Equal(t, "600.00", resp.Balances.Wallet)
	assert.Equal(t, "2025-03-01T12:00:00Z", resp.CompletedAt)
}

// TestTransfer_ValidationErrors tests request validation
func TestTransfer_ValidationErrors(t *testing.T) {
	client := setupServer(t, &mockTransferService{})
	actor := uuid.New().String()

	tests := []struct {
		name        string
		request     *grpcserver.TransferRequest
		errContains string
	}{
		{"missing account id", &grpcserver.TransferRequest{RequestID: "r1", Kind: "wallet_to_wallet", Amount: "1"}, "accountId is required"},
		{"missing request id", &grpcserver.TransferRequest{AccountID: actor, Kind: "wallet_to_wallet", Amount: "1"}, "requestId is required"},
		{"missing kind", &grpcserver.TransferRequest{AccountID: actor, RequestID: "r1", Amount: "1"}, "kind is required"},
		{"missing amount", &grpcserver.TransferRequest{AccountID: actor, RequestID: "r1", Kind: "wallet_to_wallet"}, "amount is required"},
		{"invalid account id", &grpcserver.TransferRequest{AccountID: "nope", RequestID: "r1", Kind: "wallet_to_wallet", Amount: "1"}, "accountId must be a valid UUID"},
		{"request id too long", &grpcserver.TransferRequest{AccountID: actor, RequestID: strings.Repeat("k", 129), Kind: "wallet_to_wallet", Amount: "1"}, "requestId must be at most 128 characters"},
		{"note too long", &grpcserver.TransferRequest{AccountID: actor, RequestID: "r1", Kind: "wallet_to_wallet", Amount: "1", Note: strings.Repeat("n", 281)}, "note must be at most 280 characters"},
		{"negative amount", &grpcserver.TransferRequest{AccountID: actor, RequestID: "r1", Kind: "wallet_to_wallet", Amount: "-1"}, "amount"},
		{"too many decimals", &grpcserver.TransferRequest{AccountID: actor, RequestID: "r1", Kind: "wallet_to_wallet", Amount: "1.234"}, "decimal places"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var trailer metadata.MD
			_, err := client.Transfer(context.Background(), tt.request, grpc.Trailer(&trailer))
			require.Error(t, err)
			st, ok := status.FromError(err)
			require.True(t, ok)
			assert.Equal(t, codes.InvalidArgument, st.Code())
			assert.Contains(t, st.Message(), tt.errContains)
			assert.Equal(t, []string{string(domain.KindValidation)}, trailer.Get(grpcserver.ErrorKindKey))
		})
	}
}

func TestTransfer_DomainErrorMapping(t *testing.T) {
	tests := []struct {
		err       error
		wantCode  codes.Code
		wantLimit string
	}{
		{domain.ErrAccountNotFound, codes.NotFound, ""},
		{domain.ErrRecipientNotFound, codes.NotFound, ""},
		{domain.ErrTransferInProgress, codes.Aborted, ""},
		{&domain.LimitExceededError{Kind: domain.LimitDaily, Category: domain.CategoryUserTransfer}, codes.ResourceExhausted, "daily"},
		{domain.ErrInsufficientFunds, codes.FailedPrecondition, ""},
		{domain.ErrSelfTransferNotAllowed, codes.FailedPrecondition, ""},
		{domain.ErrAccountSuspended, codes.PermissionDenied, ""},
		{domain.ErrTimeout, codes.DeadlineExceeded, ""},
		{domain.Internal("commit", errors.New("pq: deadlock detected")), codes.Internal, ""},
	}

	for _, tt := range tests {
		t.Run(string(domain.KindOf(tt.err)), func(t *testing.T) {
			client := setupServer(t, &mockTransferService{
				executeFunc: func(context.Context, domain.TransferRequest) (*transfer.Result, error) {
					return nil, tt.err
				},
			})

			var trailer metadata.MD
			_, err := client.Transfer(context.Background(), &grpcserver.TransferRequest{
				AccountID: uuid.New().String(), RequestID: "r1", Kind: "wallet_to_wallet", Amount: "1",
			}, grpc.Trailer(&trailer))
			require.Error(t, err)

			st, _ := status.FromError(err)
			assert.Equal(t, tt.wantCode, st.Code())
			assert.NotContains(t, st.Message(), "deadlock", "internal causes must not leak")
			assert.Equal(t, []string{string(domain.KindOf(tt.err))}, trailer.Get(grpcserver.ErrorKindKey))
			if tt.wantLimit != "" {
				assert.Equal(t, []string{tt.wantLimit}, trailer.Get("limit-kind"))
			}
		})
	}
}

func TestGetUsage(t *testing.T) {
	account := uuid.New()
	policy := domain.DefaultLimitPolicies()[domain.CategoryUserTransfer]

	client := setupServer(t, &mockTransferService{
		usageFunc: func(_ context.Context, id uuid.UUID) (*domain.UsageReport, error) {
			if id != account {
				return nil, domain.ErrAccountNotFound
			}
			return &domain.UsageReport{
				AccountID: id,
				AsOf:      time.Now(),
				Categories: []domain.CategoryUsage{{
					Category:  domain.CategoryUserTransfer,
					Used:      domain.WindowUsage{Daily: decimal.NewFromInt(400), Weekly: decimal.NewFromInt(400), Monthly: decimal.NewFromInt(400)},
					Limits:    policy,
					Remaining: domain.WindowUsage{Daily: decimal.NewFromInt(9600), Weekly: decimal.NewFromInt(49600), Monthly: decimal.NewFromInt(99600)},
				}},
			}, nil
		},
	})

	resp, err := client.GetUsage(context.Background(), &grpcserver.GetUsageRequest{AccountID: account.String()})
	require.NoError(t, err)
	require.Len(t, resp.Categories, 1)
	assert.Equal(t, "user_transfer", resp.Categories[0].Category)
	assert.Equal(t, "400", resp.Categories[0].Used.Daily)
	assert.Equal(t, "9600", resp.Categories[0].Remaining.Daily)
	assert.Equal(t, "5000", resp.Categories[0].PerTransactionLimit)

	_, err = client.GetUsage(context.Background(), &grpcserver.GetUsageRequest{AccountID: uuid.New().String()})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.GetUsage(context.Background(), &grpcserver.GetUsageRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
