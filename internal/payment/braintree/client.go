package braintree

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fekuna/omnipos-checkout-service/internal/payment"
	"github.com/fekuna/omnipos-checkout-service/pkg/logger"
	"github.com/guonaihong/gout"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	SandboxEndpoint    = "https://payments.sandbox.braintree-api.com/graphql"
	ProductionEndpoint = "https://payments.braintree-api.com/graphql"
	apiVersion         = "2019-01-01"
)

type Config struct {
	Environment string
	MerchantID  string
	PublicKey   string
	PrivateKey  string
	Endpoint    string
	Timeout     time.Duration
}

// Client talks to the Braintree GraphQL API. Build one at startup and share it.
type Client struct {
	endpoint   string
	authHeader string
	merchantID string
	http       *http.Client
	logger     logger.ZapLogger
}

var _ payment.Gateway = (*Client)(nil)

func NewClient(cfg *Config, log logger.ZapLogger) (*Client, error) {
	if cfg.PublicKey == "" || cfg.PrivateKey == "" {
		return nil, errors.New("braintree: public and private key are required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		switch cfg.Environment {
		case "production":
			endpoint = ProductionEndpoint
		case "sandbox", "":
			endpoint = SandboxEndpoint
		default:
			return nil, fmt.Errorf("braintree: unknown environment %q", cfg.Environment)
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	creds := base64.StdEncoding.EncodeToString([]byte(cfg.PublicKey + ":" + cfg.PrivateKey))
	return &Client{
		endpoint:   endpoint,
		authHeader: "Basic " + creds,
		merchantID: cfg.MerchantID,
		http:       &http.Client{Timeout: timeout},
		logger:     log,
	}, nil
}

type gqlError struct {
	Message    string `json:"message"`
	Extensions struct {
		ErrorClass string `json:"errorClass"`
		LegacyCode string `json:"legacyCode"`
	} `json:"extensions"`
}

type gqlTransaction struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount struct {
		Value string `json:"value"`
	} `json:"amount"`
	ProcessorResponse *struct {
		LegacyCode string `json:"legacyCode"`
		Message    string `json:"message"`
	} `json:"processorResponse"`
}

type gqlResponse struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []gqlError                 `json:"errors"`
}

func (c *Client) IssueClientToken(ctx context.Context) (string, error) {
	raw, err := c.do(ctx, mutationClientToken, nil)
	if err != nil {
		return "", err
	}
	resp, err := decode(raw)
	if err != nil {
		return "", err
	}
	if len(resp.Errors) > 0 {
		return "", payment.Unavailable(fmt.Errorf("client token: %s", resp.Errors[0].Message))
	}

	var out struct {
		ClientToken string `json:"clientToken"`
	}
	if err := json.Unmarshal(resp.Data["createClientToken"], &out); err != nil || out.ClientToken == "" {
		return "", payment.Unavailable(errors.New("client token missing from response"))
	}
	return out.ClientToken, nil
}

func (c *Client) ChargeTotal(ctx context.Context, amount decimal.Decimal, nonce string, settleImmediately bool) (*payment.TransactionResult, error) {
	if !amount.IsPositive() {
		return nil, payment.Rejected("amount must be positive")
	}
	if nonce == "" {
		return nil, payment.Rejected("payment method nonce is required")
	}

	mutation, field := mutationAuthorize, "authorizePaymentMethod"
	if settleImmediately {
		mutation, field = mutationCharge, "chargePaymentMethod"
	}

	vars := gout.H{
		"input": gout.H{
			"paymentMethodId": nonce,
			"transaction": gout.H{
				"amount": amount.StringFixed(2),
			},
		},
	}

	raw, err := c.do(ctx, mutation, vars)
	if err != nil {
		return nil, err
	}
	resp, err := decode(raw)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Transaction *gqlTransaction `json:"transaction"`
	}
	if data, ok := resp.Data[field]; ok && len(data) > 0 && string(data) != "null" {
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, payment.Unavailable(fmt.Errorf("decode transaction: %w", err))
		}
	}

	if len(resp.Errors) > 0 && payload.Transaction == nil {
		return nil, classifyErrors(resp.Errors)
	}
	if payload.Transaction == nil {
		return nil, payment.Unavailable(errors.New("transaction missing from response"))
	}

	tx := payload.Transaction
	result := &payment.TransactionResult{
		TransactionID: tx.ID,
		Status:        tx.Status,
		Raw:           raw,
	}
	if v, err := decimal.NewFromString(tx.Amount.Value); err == nil {
		result.Amount = v
	} else {
		result.Amount = amount
	}

	switch tx.Status {
	case "SUBMITTED_FOR_SETTLEMENT", "SETTLING", "SETTLED", "SETTLEMENT_PENDING", "AUTHORIZED":
		result.Success = true
		return result, nil
	default:
		reason := tx.Status
		if tx.ProcessorResponse != nil && tx.ProcessorResponse.Message != "" {
			reason = tx.ProcessorResponse.Message
		} else if len(resp.Errors) > 0 {
			reason = resp.Errors[0].Message
		}
		c.logger.Info("charge declined",
			zap.String("transaction_id", tx.ID),
			zap.String("status", tx.Status),
			zap.String("reason", reason),
		)
		return nil, payment.Rejected(reason)
	}
}

// classifyErrors treats request validation problems as declines and
// everything else (internal, availability, auth) as the gateway being down.
func classifyErrors(errs []gqlError) error {
	var msgs []string
	for _, e := range errs {
		switch e.Extensions.ErrorClass {
		case "VALIDATION", "NOT_FOUND", "UNSUPPORTED_CLIENT":
			return payment.Rejected(e.Message)
		}
		msgs = append(msgs, e.Message)
	}
	return payment.Unavailable(errors.New(strings.Join(msgs, "; ")))
}

func (c *Client) do(ctx context.Context, query string, vars gout.H) ([]byte, error) {
	body := gout.H{"query": query}
	if vars != nil {
		body["variables"] = vars
	}

	var raw string
	var code int
	err := gout.New(c.http).
		POST(c.endpoint).
		WithContext(ctx).
		SetHeader(gout.H{
			"Authorization":     c.authHeader,
			"Braintree-Version": apiVersion,
			"Accept":            "application/json",
		}).
		SetJSON(body).
		BindBody(&raw).
		Code(&code).
		Do()
	if err != nil {
		return nil, payment.Unavailable(err)
	}

	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		c.logger.Error("braintree rejected credentials", zap.Int("status", code), zap.String("merchant_id", c.merchantID))
		return nil, payment.Unavailable(fmt.Errorf("gateway authentication failed: %d", code))
	case code == http.StatusTooManyRequests || code >= 500:
		return nil, payment.Unavailable(fmt.Errorf("gateway status %d", code))
	}
	return []byte(raw), nil
}

func decode(raw []byte) (*gqlResponse, error) {
	var resp gqlResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, payment.Unavailable(fmt.Errorf("decode gateway response: %w", err))
	}
	return &resp, nil
}
