package usecase

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/omnipos-checkout-service/internal/category"
	"github.com/fekuna/omnipos-checkout-service/internal/model"
	"github.com/fekuna/omnipos-checkout-service/internal/product"
	"github.com/fekuna/omnipos-checkout-service/internal/product/dto"
	"github.com/fekuna/omnipos-checkout-service/pkg/cache"
	"github.com/fekuna/omnipos-checkout-service/pkg/logger"
	"github.com/fekuna/omnipos-checkout-service/pkg/search"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

const (
	listCachePrefix = "products:list:"
	MaxPhotoBytes   = 1 << 20
)

type Options struct {
	ListLimit    int
	CacheTTL     time.Duration
	QueryTimeout time.Duration
}

type productUseCase struct {
	repo       product.Repository
	categories category.Repository
	cache      *cache.RedisClient
	es         *search.Client
	opts       Options
	logger     logger.ZapLogger
}

// NewProductUseCase wires the catalog. cache and es may be nil.
func NewProductUseCase(repo product.Repository, categories category.Repository, cache *cache.RedisClient, es *search.Client, opts Options, log logger.ZapLogger) product.UseCase {
	if opts.ListLimit <= 0 {
		opts.ListLimit = 12
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	return &productUseCase{
		repo:       repo,
		categories: categories,
		cache:      cache,
		es:         es,
		opts:       opts,
		logger:     log,
	}
}

func (uc *productUseCase) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if uc.opts.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, uc.opts.QueryTimeout)
}

func (uc *productUseCase) CreateProduct(ctx context.Context, input *dto.CreateProductInput) (*model.Product, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	now := time.Now()
	p := &model.Product{
		BaseModel:   model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
		Name:        strings.TrimSpace(input.Name),
		Slug:        slug.Make(input.Name),
		Description: input.Description,
		Price:       input.Price.Round(2),
		CategoryID:  input.CategoryID,
		Quantity:    input.Quantity,
		Shipping:    input.Shipping,
	}

	// No exists-check first: the unique index reports duplicates as ErrNameTaken.
	if err := uc.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	uc.invalidateListCache(ctx)
	go uc.syncToElastic(context.Background(), p)

	return p, nil
}

func (uc *productUseCase) UpdateProduct(ctx context.Context, input *dto.UpdateProductInput) (*model.Product, error) {
	if uuid.Validate(input.ID) != nil {
		return nil, product.ErrNotFound
	}
	if err := validateInput(&input.CreateProductInput); err != nil {
		return nil, err
	}

	p, err := uc.repo.FindByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	p.Name = strings.TrimSpace(input.Name)
	p.Slug = slug.Make(input.Name)
	p.Description = input.Description
	p.Price = input.Price.Round(2)
	p.CategoryID = input.CategoryID
	p.Quantity = input.Quantity
	p.Shipping = input.Shipping
	p.Category = nil
	p.UpdatedAt = time.Now()

	if err := uc.repo.Update(ctx, p); err != nil {
		return nil, err
	}

	uc.invalidateListCache(ctx)
	go uc.syncToElastic(context.Background(), p)

	return p, nil
}

func (uc *productUseCase) DeleteProduct(ctx context.Context, id string) error {
	if uuid.Validate(id) != nil {
		return product.ErrNotFound
	}
	if err := uc.repo.Delete(ctx, id); err != nil {
		return err
	}

	uc.invalidateListCache(ctx)
	if uc.es != nil {
		go func() {
			if err := uc.es.Delete(context.Background(), indexName, id); err != nil {
				uc.logger.Error("failed to remove product from index", zap.String("product_id", id), zap.Error(err))
			}
		}()
	}
	return nil
}

func (uc *productUseCase) SetPhoto(ctx context.Context, id string, photo *model.Photo) error {
	if uuid.Validate(id) != nil {
		return product.ErrNotFound
	}
	if len(photo.Data) == 0 {
		return fmt.Errorf("%w: photo is empty", product.ErrInvalidInput)
	}
	if len(photo.Data) > MaxPhotoBytes {
		return fmt.Errorf("%w: photo must be at most 1MB", product.ErrInvalidInput)
	}
	if photo.ContentType == "" {
		photo.ContentType = "application/octet-stream"
	}
	return uc.repo.SetPhoto(ctx, id, photo)
}

func validateInput(input *dto.CreateProductInput) error {
	var problems []string
	if strings.TrimSpace(input.Name) == "" || slug.Make(input.Name) == "" {
		problems = append(problems, "name is required")
	}
	if input.Price.IsNegative() {
		problems = append(problems, "price must not be negative")
	}
	if input.Quantity < 0 {
		problems = append(problems, "quantity must not be negative")
	}
	if uuid.Validate(input.CategoryID) != nil {
		problems = append(problems, "category is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", product.ErrInvalidInput, strings.Join(problems, ", "))
	}
	return nil
}

func (uc *productUseCase) ListProducts(ctx context.Context) ([]model.Product, error) {
	return uc.cachedList(ctx, "all", uc.opts.ListLimit, func(ctx context.Context) ([]model.Product, error) {
		return uc.repo.List(ctx, uc.opts.ListLimit)
	})
}

func (uc *productUseCase) GetBySlug(ctx context.Context, s string) (*model.Product, error) {
	ctx, cancel := uc.withTimeout(ctx)
	defer cancel()
	return uc.repo.FindBySlug(ctx, s)
}

func (uc *productUseCase) GetPhoto(ctx context.Context, id string) (*model.Photo, error) {
	if uuid.Validate(id) != nil {
		return nil, product.ErrNotFound
	}
	ctx, cancel := uc.withTimeout(ctx)
	defer cancel()
	return uc.repo.FindPhoto(ctx, id)
}

func (uc *productUseCase) FilterProducts(ctx context.Context, f *dto.ProductFilters) ([]model.Product, error) {
	if f == nil {
		f = &dto.ProductFilters{}
	}
	if f.Price != nil && f.Price.Min.GreaterThan(f.Price.Max) {
		return nil, fmt.Errorf("%w: price range minimum exceeds maximum", product.ErrInvalidInput)
	}

	ids := make([]string, 0, len(f.CategoryIDs))
	for _, id := range f.CategoryIDs {
		if uuid.Validate(id) == nil {
			ids = append(ids, id)
		}
	}
	// Every supplied category id was malformed, so nothing can match.
	if len(f.CategoryIDs) > 0 && len(ids) == 0 {
		return []model.Product{}, nil
	}
	normalized := &dto.ProductFilters{CategoryIDs: ids, Price: f.Price}

	return uc.cachedList(ctx, "filter", normalized, func(ctx context.Context) ([]model.Product, error) {
		return uc.repo.Filter(ctx, normalized)
	})
}

func (uc *productUseCase) PageProducts(ctx context.Context, page int) ([]model.Product, error) {
	if page < 1 || page > product.MaxPage {
		return nil, product.ErrInvalidPage
	}
	return uc.cachedList(ctx, "page", page, func(ctx context.Context) ([]model.Product, error) {
		return uc.repo.Page(ctx, page, product.PageSize)
	})
}

func (uc *productUseCase) SearchProducts(ctx context.Context, keyword string) ([]model.Product, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return []model.Product{}, nil
	}

	ctx, cancel := uc.withTimeout(ctx)
	defer cancel()

	if uc.es != nil {
		products, err := uc.searchElastic(ctx, keyword)
		switch {
		case err == nil:
			return products, nil
		case errors.Is(err, errIndexIncomplete):
			uc.logger.Debug("index search incomplete, using DB", zap.String("keyword", keyword))
		default:
			// If ES fails, fall through to DB
			uc.logger.Error("ES search failed, falling back to DB", zap.Error(err))
		}
	}

	return uc.repo.Search(ctx, keyword)
}

func (uc *productUseCase) RelatedProducts(ctx context.Context, productID, categoryID string) ([]model.Product, error) {
	if uuid.Validate(productID) != nil || uuid.Validate(categoryID) != nil {
		return []model.Product{}, nil
	}
	ctx, cancel := uc.withTimeout(ctx)
	defer cancel()
	return uc.repo.Related(ctx, categoryID, productID, product.RelatedLimit)
}

func (uc *productUseCase) ProductsByCategory(ctx context.Context, categorySlug string) (*model.Category, []model.Product, error) {
	ctx, cancel := uc.withTimeout(ctx)
	defer cancel()

	cat, err := uc.categories.FindBySlug(ctx, categorySlug)
	if err != nil {
		return nil, nil, err
	}
	products, err := uc.repo.FindByCategory(ctx, cat.ID)
	if err != nil {
		return nil, nil, err
	}
	return cat, products, nil
}

func (uc *productUseCase) CountProducts(ctx context.Context) (int64, error) {
	ctx, cancel := uc.withTimeout(ctx)
	defer cancel()
	return uc.repo.Count(ctx)
}

// cachedList serves list-shaped reads from Redis when possible. Cache errors
// only cost a database round trip.
func (uc *productUseCase) cachedList(ctx context.Context, kind string, params interface{}, load func(context.Context) ([]model.Product, error)) ([]model.Product, error) {
	ctx, cancel := uc.withTimeout(ctx)
	defer cancel()

	cacheKey := ""
	if uc.cache != nil {
		if key, err := generateCacheKey(kind, params); err == nil {
			cacheKey = key
			val, ok, err := uc.cache.GetString(ctx, cacheKey)
			if err != nil {
				uc.logger.Warn("product cache read failed", zap.String("key", cacheKey), zap.Error(err))
			} else if ok {
				var cached []model.Product
				if err := json.Unmarshal([]byte(val), &cached); err == nil {
					return cached, nil
				}
			}
		}
	}

	products, err := load(ctx)
	if err != nil {
		return nil, err
	}

	if cacheKey != "" {
		if data, err := json.Marshal(products); err == nil {
			if err := uc.cache.Client.Set(ctx, cacheKey, data, uc.opts.CacheTTL).Err(); err != nil {
				uc.logger.Warn("product cache write failed", zap.String("key", cacheKey), zap.Error(err))
			}
		}
	}
	return products, nil
}

func generateCacheKey(kind string, params interface{}) (string, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%s:%x", listCachePrefix, kind, md5.Sum(data)), nil
}

func (uc *productUseCase) invalidateListCache(ctx context.Context) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.DeleteByPattern(context.WithoutCancel(ctx), listCachePrefix+"*"); err != nil {
		uc.logger.Error("failed to invalidate product list cache", zap.Error(err))
	}
}
