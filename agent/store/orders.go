// Package store provides order-record lookup backends behind
// contract.OrderStore. The JSON-file backend lives with the orders index;
// this package adds the Postgres backend for deployments where order data
// is not shipped as flat files.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/alitalabs/alita/agent/contract"
)

type PostgresConfig struct {
	DSN     string        `envconfig:"DSN" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

type orderRow struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	OrderID    string                  `bun:"order_id,pk"`
	CustomerID string                  `bun:"customer_id"`
	Status     string                  `bun:"order_status"`
	Date       string                  `bun:"order_date"`
	Products   []contractx.OrderProduct `bun:"products,type:jsonb"`
}

// PostgresOrderStore reads order records from Postgres. Read-only: the
// pipeline never mutates order rows.
type PostgresOrderStore struct {
	db      *bun.DB
	timeout time.Duration
}

var _ contractx.OrderStore = (*PostgresOrderStore)(nil)

func NewPostgresOrderStore(cfg PostgresConfig) (*PostgresOrderStore, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	return &PostgresOrderStore{db: db, timeout: timeout}, nil
}

func (s *PostgresOrderStore) FindOrder(ctx context.Context, orderID string) (*contractx.OrderRecord, error) {
	orderID = strings.ToUpper(strings.TrimSpace(orderID))
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is empty", contractx.ErrValidation)
	}

	queryCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var row orderRow
	err := s.db.NewSelect().
		Model(&row).
		Where("upper(o.order_id) = ?", orderID).
		Limit(1).
		Scan(queryCtx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", contractx.ErrOrderNotFound, orderID)
		}
		return nil, fmt.Errorf("query order %s: %w", orderID, err)
	}

	return &contractx.OrderRecord{
		OrderID:    row.OrderID,
		CustomerID: row.CustomerID,
		Status:     row.Status,
		Date:       row.Date,
		Products:   row.Products,
	}, nil
}

func (s *PostgresOrderStore) Close() error {
	return s.db.Close()
}
