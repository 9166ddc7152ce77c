package handler

import (
	"errors"
	"net/http"

	"github.com/fekuna/omnipos-checkout-service/internal/auth"
	"github.com/fekuna/omnipos-checkout-service/internal/model"
	"github.com/fekuna/omnipos-checkout-service/internal/order"
	"github.com/fekuna/omnipos-checkout-service/internal/order/dto"
	"github.com/fekuna/omnipos-checkout-service/pkg/logger"
	"github.com/fekuna/omnipos-checkout-service/pkg/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type OrderHandler struct {
	uc     order.UseCase
	logger logger.ZapLogger
}

func NewOrderHandler(uc order.UseCase, log logger.ZapLogger) *OrderHandler {
	return &OrderHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *OrderHandler) ClientToken(c *gin.Context) {
	token, err := h.uc.ClientToken(c.Request.Context())
	if err != nil {
		middleware.From(c, h.logger).Error("failed to issue client token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "clientToken": token})
}

func (h *OrderHandler) Checkout(c *gin.Context) {
	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Missing nonce or cart", "code": order.KindInvalidRequest})
		return
	}

	res, err := h.uc.CommitOrder(c.Request.Context(), &dto.CommitInput{
		Nonce:   req.Nonce,
		Cart:    req.Cart,
		BuyerID: auth.GetUserID(c),
	})
	if err != nil {
		h.commitFailed(c, err)
		return
	}

	tx := res.Transaction
	tx.Raw = nil
	c.JSON(http.StatusOK, gin.H{"ok": true, "transaction": tx, "order": publicOrder(res.Order)})
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	o, err := h.uc.GetOrder(c.Request.Context(), auth.GetUserID(c), c.Param("transactionId"))
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": err.Error()})
			return
		}
		middleware.From(c, h.logger).Error("failed to load order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "order": publicOrder(o)})
}

// commitFailed keeps the failure kind visible to the client: invalid input is
// a 400, everything else a 500 with a code saying whether a retry is safe.
func (h *OrderHandler) commitFailed(c *gin.Context, err error) {
	var ce *order.CommitError
	if !errors.As(err, &ce) {
		middleware.From(c, h.logger).Error("checkout failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	body := gin.H{
		"ok":        false,
		"error":     ce.Error(),
		"code":      ce.Kind,
		"retryable": ce.Kind.Retryable(),
	}
	if ce.TransactionID != "" {
		body["transactionId"] = ce.TransactionID
	}

	status := http.StatusInternalServerError
	if ce.Kind == order.KindInvalidRequest {
		status = http.StatusBadRequest
	}
	c.JSON(status, body)
}

func publicOrder(o *model.Order) *model.Order {
	if o == nil {
		return nil
	}
	cp := *o
	cp.Payment.Raw = nil
	return &cp
}
