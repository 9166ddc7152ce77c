package order

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const EventChargeUnrecorded = "ChargeUnrecorded"

// ChargeUnrecorded is emitted when the gateway captured funds but the order
// could not be written. Replaying it must be idempotent on TransactionID.
type ChargeUnrecorded struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	OrderID       string          `json:"order_id"`
	TransactionID string          `json:"transaction_id"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	ProductIDs    []string        `json:"product_ids"`
	BuyerID       string          `json:"buyer_id"`
	Raw           json.RawMessage `json:"raw,omitempty"`
	Cause         string          `json:"cause"`
	ChargedAt     time.Time       `json:"charged_at"`
	Timestamp     time.Time       `json:"timestamp"`
}
