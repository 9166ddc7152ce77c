package order

import (
	"context"

	"github.com/fekuna/omnipos-checkout-service/internal/model"
	"github.com/fekuna/omnipos-checkout-service/internal/order/dto"
	"github.com/shopspring/decimal"
)

type UseCase interface {
	ClientToken(ctx context.Context) (string, error)
	CommitOrder(ctx context.Context, input *dto.CommitInput) (*dto.CommitResult, error)
	GetOrder(ctx context.Context, buyerID, transactionID string) (*model.Order, error)
	// RecordCharge replays the idempotent insert for a reconciliation event.
	RecordCharge(ctx context.Context, ev *ChargeUnrecorded) (bool, error)
}

// NonceGuard remembers nonces this service already submitted.
type NonceGuard interface {
	// Claim reports true only for the first caller presenting nonce.
	Claim(ctx context.Context, nonce string) (bool, error)
}

// PriceSource returns authoritative catalog prices.
type PriceSource interface {
	FindPrices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error)
}

type ReconciliationPublisher interface {
	PublishChargeUnrecorded(ctx context.Context, ev *ChargeUnrecorded) error
}
