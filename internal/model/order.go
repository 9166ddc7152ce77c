package model

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

const OrderStatusPlaced = "placed"

// CartLine is the client's price snapshot for one product at checkout time.
type CartLine struct {
	ProductID string          `json:"_id"`
	Price     decimal.Decimal `json:"price"`
}

// PaymentTransaction mirrors what the gateway reported for a charge.
type PaymentTransaction struct {
	ID      string          `json:"id"`
	Amount  decimal.Decimal `json:"amount"`
	Success bool            `json:"success"`
	Status  string          `json:"status"`
	Raw     json.RawMessage `json:"raw,omitempty"`
}

type Order struct {
	BaseModel
	ProductIDs []string           `json:"products"`
	Payment    PaymentTransaction `json:"payment"`
	BuyerID    string             `json:"buyer"`
	Status     string             `json:"status"`
}
