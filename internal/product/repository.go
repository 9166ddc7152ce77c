package product

import (
	"context"
	"math"

	"github.com/fekuna/omnipos-checkout-service/internal/model"
	"github.com/fekuna/omnipos-checkout-service/internal/product/dto"
	"github.com/shopspring/decimal"
)

const (
	PageSize     = 6
	RelatedLimit = 3
	// MaxPage keeps (page-1)*PageSize inside int.
	MaxPage = math.MaxInt / PageSize
)

// Repository is the catalog store. No read returns photo bytes except FindPhoto.
type Repository interface {
	Create(ctx context.Context, product *model.Product) error
	Update(ctx context.Context, product *model.Product) error
	Delete(ctx context.Context, id string) error
	SetPhoto(ctx context.Context, id string, photo *model.Photo) error

	FindByID(ctx context.Context, id string) (*model.Product, error)
	FindBySlug(ctx context.Context, slug string) (*model.Product, error)
	FindPhoto(ctx context.Context, id string) (*model.Photo, error)
	List(ctx context.Context, limit int) ([]model.Product, error)
	Filter(ctx context.Context, filters *dto.ProductFilters) ([]model.Product, error)
	Page(ctx context.Context, page, pageSize int) ([]model.Product, error)
	Search(ctx context.Context, keyword string) ([]model.Product, error)
	Related(ctx context.Context, categoryID, excludeID string, limit int) ([]model.Product, error)
	FindByCategory(ctx context.Context, categoryID string) ([]model.Product, error)
	Count(ctx context.Context) (int64, error)

	// FindPrices returns the current price of every id that exists.
	FindPrices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error)
}
