package history_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/clickhouse"

	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/domain"
	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/history"
)

func TestRepositoryIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := clickhouse.Run(ctx,
		"clickhouse/clickhouse-server:23.3.8.21-alpine",
		clickhouse.WithUsername("default"),
		clickhouse.WithPassword("clickhouse"),
		clickhouse.WithDatabase("default"),
	)
	require.NoError(t, err)
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate clickhouse container: %v", err)
		}
	}()

	addr, err := container.ConnectionHost(ctx)
	require.NoError(t, err)

	client, err := history.NewClickHouseClient(ctx, history.Config{
		Addr:     addr,
		Database: "default",
		User:     "default",
		Password: "clickhouse",
	})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.EnsureSchema(ctx))
	repo := history.NewRepository(client)

	actor, recipient := uuid.New(), uuid.New()
	now := time.Now().UTC().Truncate(time.Millisecond)

	first := domain.NewTransfer(domain.TransferRequest{
		RequestID: "r1", ActorID: actor, Kind: domain.KindWalletToWallet,
		Amount: decimal.RequireFromString("10.50"), Note: "rent",
	}, recipient, domain.CategoryUserTransfer, "TND", now.Add(-time.Minute))
	first.Complete(nil, now.Add(-time.Minute))

	second := domain.NewTransfer(domain.TransferRequest{
		RequestID: "r2", ActorID: actor, Kind: domain.KindWalletToBank,
		Amount: decimal.RequireFromString("3"),
	}, actor, domain.CategoryBankTransfer, "TND", now)
	second.Complete(nil, now)

	require.NoError(t, repo.Append(ctx, domain.HistoryRecordsFor(first)))
	require.NoError(t, repo.Append(ctx, domain.HistoryRecordsFor(second)))
	require.NoError(t, repo.Append(ctx, nil))

	rows, err := repo.List(ctx, actor, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, second.ID, rows[0].TransferID, "newest first")
	assert.Equal(t, first.ID, rows[1].TransferID)
	assert.Equal(t, domain.DirectionSend, rows[1].Direction)
	assert.True(t, rows[1].Amount.Equal(decimal.RequireFromString("10.50")))
	assert.Equal(t, "rent", rows[1].Note)
	assert.Equal(t, first.Reference, rows[1].Reference)

	received, err := repo.List(ctx, recipient, 0)
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, domain.DirectionReceive, received[0].Direction)
	assert.Equal(t, actor, received[0].CounterpartyID)

	limited, err := repo.List(ctx, actor, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
