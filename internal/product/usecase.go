package product

import (
	"context"
	"errors"

	"github.com/fekuna/omnipos-checkout-service/internal/model"
	"github.com/fekuna/omnipos-checkout-service/internal/product/dto"
)

var (
	ErrNotFound     = errors.New("product not found")
	ErrNameTaken    = errors.New("product name already exists")
	ErrInvalidInput = errors.New("invalid product")
	ErrInvalidPage  = errors.New("page must be a positive integer")
)

type UseCase interface {
	CreateProduct(ctx context.Context, input *dto.CreateProductInput) (*model.Product, error)
	UpdateProduct(ctx context.Context, input *dto.UpdateProductInput) (*model.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	SetPhoto(ctx context.Context, id string, photo *model.Photo) error

	ListProducts(ctx context.Context) ([]model.Product, error)
	GetBySlug(ctx context.Context, slug string) (*model.Product, error)
	GetPhoto(ctx context.Context, id string) (*model.Photo, error)
	FilterProducts(ctx context.Context, filters *dto.ProductFilters) ([]model.Product, error)
	PageProducts(ctx context.Context, page int) ([]model.Product, error)
	SearchProducts(ctx context.Context, keyword string) ([]model.Product, error)
	RelatedProducts(ctx context.Context, productID, categoryID string) ([]model.Product, error)
	ProductsByCategory(ctx context.Context, categorySlug string) (*model.Category, []model.Product, error)
	CountProducts(ctx context.Context) (int64, error)

	// ReindexSearch copies every stored product into the search index. It is
	// a no-op without a search backend.
	ReindexSearch(ctx context.Context) (int, error)
}
