package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/fekuna/omnipos-checkout-service/internal/model"
	"github.com/fekuna/omnipos-checkout-service/internal/product"
	"github.com/fekuna/omnipos-checkout-service/internal/product/dto"
	"github.com/fekuna/omnipos-checkout-service/pkg/database/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

type productRow struct {
	model.Product
	CategoryName sql.NullString `db:"category_name"`
	CategorySlug sql.NullString `db:"category_slug"`
}

func (r productRow) toModel() model.Product {
	p := r.Product
	if r.CategoryName.Valid {
		p.Category = &model.Category{
			BaseModel: model.BaseModel{ID: p.CategoryID},
			Name:      r.CategoryName.String,
			Slug:      r.CategorySlug.String,
		}
	}
	return p
}

func (r *PGRepository) Create(ctx context.Context, p *model.Product) error {
	query := `
        INSERT INTO products (
            id, name, slug, description, price, category_id,
            quantity, shipping, created_at, updated_at
        )
        VALUES (
            :id, :name, :slug, :description, :price, :category_id,
            :quantity, :shipping, :created_at, :updated_at
        )
    `
	_, err := r.DB.NamedExecContext(ctx, query, p)
	return mapWriteError(err)
}

func (r *PGRepository) Update(ctx context.Context, p *model.Product) error {
	query := `
        UPDATE products
        SET name = :name,
            slug = :slug,
            description = :description,
            price = :price,
            category_id = :category_id,
            quantity = :quantity,
            shipping = :shipping,
            updated_at = :updated_at
        WHERE id = :id
    `
	res, err := r.DB.NamedExecContext(ctx, query, p)
	if err != nil {
		return mapWriteError(err)
	}
	return expectOneRow(res)
}

func (r *PGRepository) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (r *PGRepository) SetPhoto(ctx context.Context, id string, photo *model.Photo) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE products SET photo_data = $1, photo_content_type = $2, updated_at = NOW() WHERE id = $3`,
		photo.Data, photo.ContentType, id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (r *PGRepository) FindByID(ctx context.Context, id string) (*model.Product, error) {
	return r.getOne(ctx, selectProducts().Where(sq.Eq{"p.id": id}).Limit(1))
}

func (r *PGRepository) FindBySlug(ctx context.Context, slug string) (*model.Product, error) {
	return r.getOne(ctx, selectProducts().Where(sq.Eq{"p.slug": slug}).Limit(1))
}

func (r *PGRepository) FindPhoto(ctx context.Context, id string) (*model.Photo, error) {
	var photo model.Photo
	err := r.DB.GetContext(ctx, &photo,
		`SELECT photo_data, photo_content_type FROM products WHERE id = $1 AND photo_data IS NOT NULL`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, err
	}
	return &photo, nil
}

func (r *PGRepository) List(ctx context.Context, limit int) ([]model.Product, error) {
	return r.selectMany(ctx, buildListQuery(limit))
}

func (r *PGRepository) Filter(ctx context.Context, f *dto.ProductFilters) ([]model.Product, error) {
	return r.selectMany(ctx, buildFilterQuery(f))
}

func (r *PGRepository) Page(ctx context.Context, page, pageSize int) ([]model.Product, error) {
	return r.selectMany(ctx, buildPageQuery(page, pageSize))
}

func (r *PGRepository) Search(ctx context.Context, keyword string) ([]model.Product, error) {
	return r.selectMany(ctx, buildSearchQuery(keyword))
}

func (r *PGRepository) Related(ctx context.Context, categoryID, excludeID string, limit int) ([]model.Product, error) {
	return r.selectMany(ctx, buildRelatedQuery(categoryID, excludeID, limit))
}

func (r *PGRepository) FindByCategory(ctx context.Context, categoryID string) ([]model.Product, error) {
	return r.selectMany(ctx, newestFirst(selectProducts().Where(sq.Eq{"p.category_id": categoryID})))
}

// Count reads the planner estimate, falling back to an exact count when the
// table has never been analyzed.
func (r *PGRepository) Count(ctx context.Context) (int64, error) {
	var estimate int64
	err := r.DB.GetContext(ctx, &estimate,
		`SELECT reltuples::bigint FROM pg_class WHERE relname = 'products'`)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	if err == nil && estimate >= 0 {
		return estimate, nil
	}

	var exact int64
	if err := r.DB.GetContext(ctx, &exact, `SELECT count(*) FROM products`); err != nil {
		return 0, err
	}
	return exact, nil
}

func (r *PGRepository) FindPrices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error) {
	prices := make(map[string]decimal.Decimal, len(ids))
	if len(ids) == 0 {
		return prices, nil
	}

	query, args, err := psql.Select("id", "price").From("products").Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return nil, err
	}

	var rows []struct {
		ID    string          `db:"id"`
		Price decimal.Decimal `db:"price"`
	}
	if err := r.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	for _, row := range rows {
		prices[row.ID] = row.Price
	}
	return prices, nil
}

func (r *PGRepository) getOne(ctx context.Context, b sq.SelectBuilder) (*model.Product, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	var row productRow
	if err := r.DB.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, err
	}
	p := row.toModel()
	return &p, nil
}

func (r *PGRepository) selectMany(ctx context.Context, b sq.SelectBuilder) ([]model.Product, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	var rows []productRow
	if err := r.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	products := make([]model.Product, 0, len(rows))
	for _, row := range rows {
		products = append(products, row.toModel())
	}
	return products, nil
}

// mapWriteError turns constraint violations into domain errors. The unique
// indexes on name and slug are the authority on duplicates.
func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	if postgres.IsUniqueViolation(err, "") {
		return product.ErrNameTaken
	}
	if postgres.IsForeignKeyViolation(err) {
		return fmt.Errorf("%w: unknown category", product.ErrInvalidInput)
	}
	return err
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return product.ErrNotFound
	}
	return nil
}
