package category

import (
	"context"
	"errors"

	"github.com/fekuna/omnipos-checkout-service/internal/category/dto"
	"github.com/fekuna/omnipos-checkout-service/internal/model"
)

var (
	ErrNotFound     = errors.New("category not found")
	ErrNameTaken    = errors.New("category already exists")
	ErrInvalidInput = errors.New("invalid category")
)

type UseCase interface {
	CreateCategory(ctx context.Context, input *dto.CreateCategoryInput) (*model.Category, error)
	GetCategory(ctx context.Context, id string) (*model.Category, error)
	GetCategoryBySlug(ctx context.Context, slug string) (*model.Category, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
}
