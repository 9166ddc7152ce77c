package order

import "errors"

// Kind classifies a failed checkout so callers can tell "fix the request"
// from "retry with a new payment method" from "money may have moved".
type Kind string

const (
	KindInvalidRequest     Kind = "invalid_request"
	KindGatewayRejected    Kind = "gateway_rejected"
	KindGatewayUnavailable Kind = "gateway_unavailable"
	KindPersistenceFailure Kind = "persistence_failure"
)

// Retryable reports whether the caller may retry with a fresh nonce.
func (k Kind) Retryable() bool { return k == KindGatewayUnavailable }

var ErrOrderNotFound = errors.New("order not found")

type CommitError struct {
	Kind   Kind
	Reason string
	// TransactionID is set when the gateway captured funds, i.e. for
	// KindPersistenceFailure.
	TransactionID string
	Err           error
}

func (e *CommitError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Err.Error()
	}
	return string(e.Kind)
}

func (e *CommitError) Unwrap() error { return e.Err }

// KindOf extracts the checkout failure kind from err.
func KindOf(err error) (Kind, bool) {
	var ce *CommitError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return "", false
}
