package server

import (
	"net/http"

	"github.com/fekuna/omnipos-checkout-service/internal/auth"
	catH "github.com/fekuna/omnipos-checkout-service/internal/category/handler"
	orderH "github.com/fekuna/omnipos-checkout-service/internal/order/handler"
	prodH "github.com/fekuna/omnipos-checkout-service/internal/product/handler"
	"github.com/fekuna/omnipos-checkout-service/pkg/logger"
	"github.com/fekuna/omnipos-checkout-service/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Category *catH.CategoryHandler
	Product  *prodH.ProductHandler
	Order    *orderH.OrderHandler
}

func NewRouter(h Handlers, authz *auth.Authz, log logger.ZapLogger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Metrics(), middleware.RequestLogger(log))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	user := authz.Require(false)
	admin := authz.Require(true)

	api := r.Group("/")

	api.GET("/client-token", h.Order.ClientToken)
	api.POST("/checkout", user, h.Order.Checkout)
	api.GET("/orders/:transactionId", user, h.Order.GetOrder)

	api.GET("/categories", h.Category.ListCategories)
	api.POST("/categories", admin, h.Category.CreateCategory)

	products := api.Group("/products")
	{
		products.GET("", h.Product.ListProducts)
		products.GET("/count", h.Product.CountProducts)
		products.GET("/photo/:id", h.Product.GetPhoto)
		products.GET("/list/:page", h.Product.PageProducts)
		products.GET("/search/:keyword", h.Product.SearchProducts)
		products.GET("/related/:pid/:cid", h.Product.RelatedProducts)
		products.GET("/category/:slug", h.Product.ProductsByCategory)
		products.GET("/:slug", h.Product.GetProduct)
		products.POST("/filter", h.Product.FilterProducts)

		products.POST("", admin, h.Product.CreateProduct)
		products.PUT("/:id", admin, h.Product.UpdateProduct)
		products.DELETE("/:id", admin, h.Product.DeleteProduct)
		products.PUT("/:id/photo", admin, h.Product.UploadPhoto)
	}

	return r
}
