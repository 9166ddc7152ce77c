package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/omnipos-checkout-service/internal/model"
	"github.com/fekuna/omnipos-checkout-service/internal/order"
	"github.com/fekuna/omnipos-checkout-service/internal/order/dto"
	"github.com/fekuna/omnipos-checkout-service/internal/payment"
	"github.com/fekuna/omnipos-checkout-service/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	PriceCheckOff  = "off"
	PriceCheckWarn = "warn"
)

type Options struct {
	ChargeTimeout  time.Duration
	PersistTimeout time.Duration
	PersistRetries int
	PersistBackoff time.Duration
	PriceCheck     string
}

type orderUseCase struct {
	gateway   payment.Gateway
	repo      order.Repository
	guard     order.NonceGuard
	prices    order.PriceSource
	publisher order.ReconciliationPublisher
	opts      Options
	logger    logger.ZapLogger
	sleep     func(time.Duration)
}

// NewOrderUseCase builds the checkout coordinator. prices and publisher may
// be nil; guard is required because it is what keeps a nonce single use.
func NewOrderUseCase(
	gateway payment.Gateway,
	repo order.Repository,
	guard order.NonceGuard,
	prices order.PriceSource,
	publisher order.ReconciliationPublisher,
	opts Options,
	log logger.ZapLogger,
) order.UseCase {
	if opts.ChargeTimeout <= 0 {
		opts.ChargeTimeout = 30 * time.Second
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = 5 * time.Second
	}
	if opts.PersistRetries <= 0 {
		opts.PersistRetries = 3
	}
	if opts.PriceCheck == "" {
		opts.PriceCheck = PriceCheckWarn
	}
	return &orderUseCase{
		gateway:   gateway,
		repo:      repo,
		guard:     guard,
		prices:    prices,
		publisher: publisher,
		opts:      opts,
		logger:    log,
		sleep:     time.Sleep,
	}
}

func (uc *orderUseCase) ClientToken(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.opts.ChargeTimeout)
	defer cancel()

	token, err := uc.gateway.IssueClientToken(ctx)
	if err != nil {
		return "", &order.CommitError{Kind: order.KindGatewayUnavailable, Reason: "payment gateway unavailable", Err: err}
	}
	return token, nil
}

func (uc *orderUseCase) CommitOrder(ctx context.Context, input *dto.CommitInput) (*dto.CommitResult, error) {
	total, err := validate(input)
	if err != nil {
		checkoutOutcomes.WithLabelValues(outcomeInvalid).Inc()
		return nil, err
	}
	log := uc.logger.With(zap.String("buyer_id", input.BuyerID), zap.String("total", total.StringFixed(2)))

	uc.checkPrices(ctx, input.Cart, log)

	claimed, err := uc.guard.Claim(ctx, input.Nonce)
	if err != nil {
		log.Error("nonce guard unavailable, refusing to charge", zap.Error(err))
		checkoutOutcomes.WithLabelValues(outcomeUnavailable).Inc()
		return nil, &order.CommitError{Kind: order.KindGatewayUnavailable, Reason: "checkout temporarily unavailable, retry with a new payment method", Err: err}
	}
	if !claimed {
		checkoutOutcomes.WithLabelValues(outcomeInvalid).Inc()
		return nil, &order.CommitError{Kind: order.KindInvalidRequest, Reason: "payment method nonce was already used"}
	}

	result, err := uc.charge(ctx, total, input.Nonce)
	if err != nil {
		if errors.Is(err, payment.ErrRejected) {
			log.Info("charge rejected", zap.String("reason", payment.Reason(err)))
			checkoutOutcomes.WithLabelValues(outcomeRejected).Inc()
			return nil, &order.CommitError{Kind: order.KindGatewayRejected, Reason: payment.Reason(err), Err: err}
		}
		log.Warn("charge outcome unknown", zap.Error(err))
		checkoutOutcomes.WithLabelValues(outcomeUnavailable).Inc()
		return nil, &order.CommitError{Kind: order.KindGatewayUnavailable, Reason: "payment gateway unavailable, retry with a new payment method", Err: err}
	}

	tx := model.PaymentTransaction{
		ID:      result.TransactionID,
		Amount:  result.Amount,
		Success: result.Success,
		Status:  result.Status,
		Raw:     result.Raw,
	}
	if tx.Amount.IsZero() {
		tx.Amount = total
	}

	now := time.Now().UTC()
	o := &model.Order{
		BaseModel:  model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
		ProductIDs: productIDs(input.Cart),
		Payment:    tx,
		BuyerID:    input.BuyerID,
		Status:     model.OrderStatusPlaced,
	}

	stored, err := uc.persist(ctx, o)
	if err != nil {
		uc.reportUnrecorded(ctx, o, err, log)
		checkoutOutcomes.WithLabelValues(outcomeUnrecorded).Inc()
		return nil, &order.CommitError{
			Kind:          order.KindPersistenceFailure,
			Reason:        "payment captured but the order could not be recorded; contact support with the transaction id",
			TransactionID: tx.ID,
			Err:           err,
		}
	}

	log.Info("order placed", zap.String("transaction_id", tx.ID), zap.String("order_id", stored.ID))
	checkoutOutcomes.WithLabelValues(outcomePlaced).Inc()
	return &dto.CommitResult{Order: stored, Transaction: tx}, nil
}

// validate runs before anything touches the gateway or the ledger.
func validate(input *dto.CommitInput) (decimal.Decimal, error) {
	invalid := func(reason string) error {
		return &order.CommitError{Kind: order.KindInvalidRequest, Reason: reason}
	}
	if input == nil || strings.TrimSpace(input.Nonce) == "" {
		return decimal.Zero, invalid("payment method nonce is required")
	}
	if len(input.Cart) == 0 {
		return decimal.Zero, invalid("cart is empty")
	}
	if input.BuyerID == "" {
		return decimal.Zero, invalid("buyer is required")
	}

	total := decimal.Zero
	for i, line := range input.Cart {
		if line.ProductID == "" {
			return decimal.Zero, invalid(fmt.Sprintf("cart line %d has no product id", i))
		}
		if line.Price.IsNegative() {
			return decimal.Zero, invalid(fmt.Sprintf("cart line %d has a negative price", i))
		}
		total = total.Add(line.Price)
	}
	total = total.Round(2)
	if !total.IsPositive() {
		return decimal.Zero, invalid("cart total must be positive")
	}
	return total, nil
}

// productIDs keeps cart order and duplicates: two lines of one product are
// two items on the order.
func productIDs(cart []model.CartLine) []string {
	ids := make([]string, len(cart))
	for i, line := range cart {
		ids[i] = line.ProductID
	}
	return ids
}

// charge is not tied to the request: once submitted the gateway may capture
// funds whether or not the caller is still waiting.
func (uc *orderUseCase) charge(ctx context.Context, total decimal.Decimal, nonce string) (*payment.TransactionResult, error) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.opts.ChargeTimeout)
	defer cancel()

	start := time.Now()
	result, err := uc.gateway.ChargeTotal(cctx, total, nonce, true)
	chargeDuration.Observe(float64(time.Since(start).Milliseconds()))

	switch {
	case err != nil && errors.Is(err, payment.ErrRejected):
		return nil, err
	case err != nil:
		if errors.Is(err, payment.ErrUnavailable) {
			return nil, err
		}
		return nil, payment.Unavailable(err)
	case result == nil || result.TransactionID == "":
		return nil, payment.Unavailable(errors.New("gateway returned no transaction"))
	case !result.Success:
		reason := result.Status
		if reason == "" {
			reason = "payment declined"
		}
		return nil, payment.Rejected(reason)
	}
	return result, nil
}

// persist retries the insert-if-absent on a detached context. A conflict
// means an earlier attempt already landed, so the stored order wins.
func (uc *orderUseCase) persist(ctx context.Context, o *model.Order) (*model.Order, error) {
	base := context.WithoutCancel(ctx)

	var lastErr error
	for attempt := 1; attempt <= uc.opts.PersistRetries; attempt++ {
		stored, err := uc.persistOnce(base, o)
		if err == nil {
			return stored, nil
		}
		lastErr = err
		uc.logger.Warn("order write failed",
			zap.String("transaction_id", o.Payment.ID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt < uc.opts.PersistRetries && uc.opts.PersistBackoff > 0 {
			uc.sleep(uc.opts.PersistBackoff * time.Duration(attempt))
		}
	}
	return nil, lastErr
}

func (uc *orderUseCase) persistOnce(base context.Context, o *model.Order) (*model.Order, error) {
	ctx, cancel := context.WithTimeout(base, uc.opts.PersistTimeout)
	defer cancel()

	inserted, err := uc.repo.InsertIfAbsent(ctx, o)
	if err != nil {
		return nil, err
	}
	if inserted {
		return o, nil
	}
	return uc.repo.FindByTransactionID(ctx, o.Payment.ID)
}

func (uc *orderUseCase) reportUnrecorded(ctx context.Context, o *model.Order, cause error, log logger.ZapLogger) {
	log.Error("charge captured without order",
		zap.String("alert", "charged_without_order"),
		zap.String("transaction_id", o.Payment.ID),
		zap.String("order_id", o.ID),
		zap.Strings("product_ids", o.ProductIDs),
		zap.Error(cause),
	)
	if uc.publisher == nil {
		return
	}

	ev := &order.ChargeUnrecorded{
		EventID:       uuid.New().String(),
		EventType:     order.EventChargeUnrecorded,
		OrderID:       o.ID,
		TransactionID: o.Payment.ID,
		Status:        o.Payment.Status,
		Amount:        o.Payment.Amount,
		ProductIDs:    o.ProductIDs,
		BuyerID:       o.BuyerID,
		Raw:           o.Payment.Raw,
		Cause:         cause.Error(),
		ChargedAt:     o.CreatedAt,
		Timestamp:     time.Now().UTC(),
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.opts.PersistTimeout)
	defer cancel()
	if err := uc.publisher.PublishChargeUnrecorded(pctx, ev); err != nil {
		log.Error("failed to queue charge for reconciliation",
			zap.String("alert", "charged_without_order"),
			zap.String("transaction_id", o.Payment.ID),
			zap.Error(err),
		)
	}
}

// checkPrices only reports drift between cart and catalog prices. The charge
// amount always comes from the cart.
func (uc *orderUseCase) checkPrices(ctx context.Context, cart []model.CartLine, log logger.ZapLogger) {
	if uc.prices == nil || uc.opts.PriceCheck != PriceCheckWarn {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, uc.opts.PersistTimeout)
	defer cancel()

	catalog, err := uc.prices.FindPrices(ctx, productIDs(cart))
	if err != nil {
		log.Warn("price check skipped", zap.Error(err))
		return
	}
	for _, line := range cart {
		want, ok := catalog[line.ProductID]
		switch {
		case !ok:
			log.Warn("cart references unknown product", zap.String("product_id", line.ProductID))
		case !want.Equal(line.Price):
			log.Warn("cart price differs from catalog",
				zap.String("product_id", line.ProductID),
				zap.String("cart_price", line.Price.String()),
				zap.String("catalog_price", want.String()),
			)
		}
	}
}

func (uc *orderUseCase) GetOrder(ctx context.Context, buyerID, transactionID string) (*model.Order, error) {
	if transactionID == "" {
		return nil, order.ErrOrderNotFound
	}
	o, err := uc.repo.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if o.BuyerID != buyerID {
		return nil, order.ErrOrderNotFound
	}
	return o, nil
}

func (uc *orderUseCase) RecordCharge(ctx context.Context, ev *order.ChargeUnrecorded) (bool, error) {
	if ev == nil || ev.TransactionID == "" {
		return false, errors.New("reconciliation event has no transaction id")
	}
	id := ev.OrderID
	if id == "" {
		id = uuid.New().String()
	}
	charged := ev.ChargedAt
	if charged.IsZero() {
		charged = ev.Timestamp
	}
	o := &model.Order{
		BaseModel:  model.BaseModel{ID: id, CreatedAt: charged, UpdatedAt: charged},
		ProductIDs: ev.ProductIDs,
		Payment: model.PaymentTransaction{
			ID:      ev.TransactionID,
			Amount:  ev.Amount,
			Success: true,
			Status:  ev.Status,
			Raw:     ev.Raw,
		},
		BuyerID: ev.BuyerID,
		Status:  model.OrderStatusPlaced,
	}

	ctx, cancel := context.WithTimeout(ctx, uc.opts.PersistTimeout)
	defer cancel()
	inserted, err := uc.repo.InsertIfAbsent(ctx, o)
	if err != nil {
		return false, err
	}
	if inserted {
		uc.logger.Info("reconciled charge into order", zap.String("transaction_id", ev.TransactionID), zap.String("order_id", id))
	}
	return inserted, nil
}
