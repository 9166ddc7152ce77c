package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/fekuna/omnipos-checkout-service/internal/category"
	"github.com/fekuna/omnipos-checkout-service/internal/model"
	"github.com/fekuna/omnipos-checkout-service/internal/product"
	"github.com/fekuna/omnipos-checkout-service/internal/product/dto"
	"github.com/fekuna/omnipos-checkout-service/internal/product/usecase"
	"github.com/fekuna/omnipos-checkout-service/pkg/logger"
	"github.com/fekuna/omnipos-checkout-service/pkg/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ProductHandler struct {
	uc     product.UseCase
	logger logger.ZapLogger
}

func NewProductHandler(uc product.UseCase, log logger.ZapLogger) *ProductHandler {
	return &ProductHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *ProductHandler) ListProducts(c *gin.Context) {
	products, err := h.uc.ListProducts(c.Request.Context())
	if err != nil {
		h.fail(c, "failed to list products", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "products": products})
}

func (h *ProductHandler) GetProduct(c *gin.Context) {
	p, err := h.uc.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.fail(c, "failed to get product", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "product": p})
}

func (h *ProductHandler) GetPhoto(c *gin.Context) {
	photo, err := h.uc.GetPhoto(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "failed to get product photo", err)
		return
	}
	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, photo.ContentType, photo.Data)
}

func (h *ProductHandler) FilterProducts(c *gin.Context) {
	var req dto.FilterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid filter body"})
		return
	}

	filters := &dto.ProductFilters{CategoryIDs: req.Checked}
	switch len(req.Radio) {
	case 0:
	case 2:
		filters.Price = &dto.PriceRange{Min: req.Radio[0], Max: req.Radio[1]}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "radio must be empty or [min, max]"})
		return
	}

	products, err := h.uc.FilterProducts(c.Request.Context(), filters)
	if err != nil {
		h.fail(c, "failed to filter products", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "products": products})
}

func (h *ProductHandler) CountProducts(c *gin.Context) {
	total, err := h.uc.CountProducts(c.Request.Context())
	if err != nil {
		h.fail(c, "failed to count products", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "total": total})
}

func (h *ProductHandler) PageProducts(c *gin.Context) {
	page, err := strconv.Atoi(c.Param("page"))
	if err != nil || page > product.MaxPage {
		h.fail(c, "invalid page", product.ErrInvalidPage)
		return
	}
	products, err := h.uc.PageProducts(c.Request.Context(), page)
	if err != nil {
		h.fail(c, "failed to page products", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "products": products})
}

func (h *ProductHandler) SearchProducts(c *gin.Context) {
	products, err := h.uc.SearchProducts(c.Request.Context(), c.Param("keyword"))
	if err != nil {
		h.fail(c, "failed to search products", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "products": products})
}

func (h *ProductHandler) RelatedProducts(c *gin.Context) {
	products, err := h.uc.RelatedProducts(c.Request.Context(), c.Param("pid"), c.Param("cid"))
	if err != nil {
		h.fail(c, "failed to load related products", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "products": products})
}

func (h *ProductHandler) ProductsByCategory(c *gin.Context) {
	cat, products, err := h.uc.ProductsByCategory(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.fail(c, "failed to load category products", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "category": cat, "products": products})
}

func (h *ProductHandler) CreateProduct(c *gin.Context) {
	var input dto.CreateProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "name and category are required"})
		return
	}
	p, err := h.uc.CreateProduct(c.Request.Context(), &input)
	if err != nil {
		h.fail(c, "failed to create product", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "product": p})
}

func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	var input dto.UpdateProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "name and category are required"})
		return
	}
	input.ID = c.Param("id")

	p, err := h.uc.UpdateProduct(c.Request.Context(), &input)
	if err != nil {
		h.fail(c, "failed to update product", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "product": p})
}

func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	if err := h.uc.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, "failed to delete product", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *ProductHandler) UploadPhoto(c *gin.Context) {
	// Multipart framing overhead on top of the payload limit.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, usecase.MaxPhotoBytes+64<<10)

	fh, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "photo is required and must be at most 1MB"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.fail(c, "failed to open photo", err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, usecase.MaxPhotoBytes+1))
	if err != nil {
		h.fail(c, "failed to read photo", err)
		return
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	if err := h.uc.SetPhoto(c.Request.Context(), c.Param("id"), &model.Photo{Data: data, ContentType: contentType}); err != nil {
		h.fail(c, "failed to store photo", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// fail maps catalog errors to a status. Anything unrecognized is a 500 that
// carries the error message.
func (h *ProductHandler) fail(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, product.ErrNotFound), errors.Is(err, category.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, product.ErrInvalidInput), errors.Is(err, product.ErrInvalidPage):
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, product.ErrNameTaken):
		c.JSON(http.StatusConflict, gin.H{"ok": false, "error": err.Error()})
	default:
		middleware.From(c, h.logger).Error(msg, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
	}
}
