package payment

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrRejected is a terminal business outcome: the card was declined or
	// the nonce is invalid. The same nonce must not be retried.
	ErrRejected = errors.New("payment rejected")
	// ErrUnavailable means the gateway could not be reached or did not
	// answer in time. The charge may still have happened server side.
	ErrUnavailable = errors.New("payment gateway unavailable")
)

// Error carries the gateway's own wording next to the outcome kind.
type Error struct {
	Kind   error
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	if e.Err != nil {
		return e.Kind.Error() + ": " + e.Err.Error()
	}
	return e.Kind.Error()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func Rejected(reason string) error { return &Error{Kind: ErrRejected, Reason: reason} }

func Unavailable(err error) error { return &Error{Kind: ErrUnavailable, Err: err} }

// Reason returns the gateway supplied reason, or err's message.
func Reason(err error) string {
	var pe *Error
	if errors.As(err, &pe) && pe.Reason != "" {
		return pe.Reason
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

type TransactionResult struct {
	TransactionID string
	Status        string
	Amount        decimal.Decimal
	Success       bool
	Raw           json.RawMessage
}

// Gateway is the tokenized payment processor. Implementations must be safe
// for concurrent use.
type Gateway interface {
	IssueClientToken(ctx context.Context) (string, error)
	ChargeTotal(ctx context.Context, amount decimal.Decimal, nonce string, settleImmediately bool) (*TransactionResult, error)
}
