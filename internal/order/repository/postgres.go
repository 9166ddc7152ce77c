package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-checkout-service/internal/model"
	"github.com/fekuna/omnipos-checkout-service/internal/order"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

type orderRow struct {
	ID            string          `db:"id"`
	TransactionID string          `db:"transaction_id"`
	ProductIDs    pq.StringArray  `db:"product_ids"`
	Amount        decimal.Decimal `db:"amount"`
	Payment       []byte          `db:"payment"`
	BuyerID       string          `db:"buyer_id"`
	Status        string          `db:"status"`
	CreatedAt     time.Time       `db:"created_at"`
}

// InsertIfAbsent relies on the unique index on transaction_id, so concurrent
// or repeated attempts for one charge leave exactly one row.
func (r *PGRepository) InsertIfAbsent(ctx context.Context, o *model.Order) (bool, error) {
	payment, err := json.Marshal(o.Payment)
	if err != nil {
		return false, fmt.Errorf("encode payment: %w", err)
	}

	query := `
        INSERT INTO orders (id, transaction_id, product_ids, amount, payment, buyer_id, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (transaction_id) DO NOTHING
    `
	res, err := r.DB.ExecContext(ctx, query,
		o.ID,
		o.Payment.ID,
		pq.Array(o.ProductIDs),
		o.Payment.Amount,
		string(payment),
		o.BuyerID,
		o.Status,
		o.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PGRepository) FindByTransactionID(ctx context.Context, transactionID string) (*model.Order, error) {
	var row orderRow
	query := `
        SELECT id, transaction_id, product_ids, amount, payment, buyer_id, status, created_at
        FROM orders
        WHERE transaction_id = $1
        LIMIT 1
    `
	if err := r.DB.GetContext(ctx, &row, query, transactionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, order.ErrOrderNotFound
		}
		return nil, err
	}

	o := &model.Order{
		BaseModel:  model.BaseModel{ID: row.ID, CreatedAt: row.CreatedAt, UpdatedAt: row.CreatedAt},
		ProductIDs: []string(row.ProductIDs),
		BuyerID:    row.BuyerID,
		Status:     row.Status,
	}
	if err := json.Unmarshal(row.Payment, &o.Payment); err != nil {
		return nil, fmt.Errorf("decode payment for %s: %w", transactionID, err)
	}
	o.Payment.ID = row.TransactionID
	o.Payment.Amount = row.Amount
	return o, nil
}
