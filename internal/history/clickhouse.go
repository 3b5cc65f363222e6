// Package history keeps the reporting copy of completed transfers in ClickHouse.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Config holds ClickHouse connection settings.
type Config struct {
	Addr        string
	Database    string
	User        string
	Password    string
	DialTimeout time.Duration
}

// ClickHouseClient wraps the ClickHouse driver connection
type ClickHouseClient struct {
	conn driver.Conn
}

// NewClickHouseClient opens a connection and pings the server.
func NewClickHouseClient(ctx context.Context, cfg Config) (*ClickHouseClient, error) {
	opts := &clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseClient{conn: conn}, nil
}

// Conn returns the underlying ClickHouse connection
func (c *ClickHouseClient) Conn() driver.Conn {
	return c.conn
}

// Close closes the ClickHouse connection
func (c *ClickHouseClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

const schema = `
	CREATE TABLE IF NOT EXISTS transfer_history (
		transfer_id UUID,
		account_id UUID,
		counterparty_id UUID,
		kind LowCardinality(String),
		direction Enum8('send' = 1, 'receive' = 2),
		amount Decimal(18, 4),
		currency LowCardinality(String),
		reference String,
		note String,
		occurred_at DateTime64(3, 'UTC')
	) ENGINE = ReplacingMergeTree()
	ORDER BY (account_id, occurred_at, transfer_id, direction)
`

// EnsureSchema creates the transfer_history table if it does not exist.
// Rows are deduplicated on merge, so a retried append is harmless.
func (c *ClickHouseClient) EnsureSchema(ctx context.Context) error {
	if err := c.conn.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create transfer_history table: %w", err)
	}
	return nil
}
