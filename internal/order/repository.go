package order

import (
	"context"

	"github.com/fekuna/omnipos-checkout-service/internal/model"
)

// Repository is the order ledger. Orders are keyed by gateway transaction id.
type Repository interface {
	// InsertIfAbsent writes o unless an order with the same transaction id
	// exists. It reports whether this call created the row.
	InsertIfAbsent(ctx context.Context, o *model.Order) (bool, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*model.Order, error)
}
