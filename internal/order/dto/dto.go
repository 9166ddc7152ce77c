package dto

import (
	"github.com/fekuna/omnipos-checkout-service/internal/model"
)

// CheckoutRequest is the wire shape of POST /checkout.
type CheckoutRequest struct {
	Nonce string           `json:"nonce"`
	Cart  []model.CartLine `json:"cart"`
}

type CommitInput struct {
	Nonce   string
	Cart    []model.CartLine
	BuyerID string
}

type CommitResult struct {
	Order       *model.Order
	Transaction model.PaymentTransaction
}
