package repository

import (
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/fekuna/omnipos-checkout-service/internal/product/dto"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// productColumns never includes photo_data.
var productColumns = []string{
	"p.id", "p.name", "p.slug", "p.description", "p.price", "p.category_id",
	"p.quantity", "p.shipping", "p.created_at", "p.updated_at",
	"c.name AS category_name", "c.slug AS category_slug",
}

func selectProducts() sq.SelectBuilder {
	return psql.Select(productColumns...).
		From("products p").
		LeftJoin("categories c ON c.id = p.category_id")
}

// newestFirst orders by creation time with id as tie breaker so pages are stable.
func newestFirst(b sq.SelectBuilder) sq.SelectBuilder {
	return b.OrderBy("p.created_at DESC", "p.id DESC")
}

func buildListQuery(limit int) sq.SelectBuilder {
	return newestFirst(selectProducts()).Limit(uint64(limit))
}

func buildFilterQuery(f *dto.ProductFilters) sq.SelectBuilder {
	b := selectProducts()
	if f != nil {
		if len(f.CategoryIDs) > 0 {
			b = b.Where(sq.Eq{"p.category_id": f.CategoryIDs})
		}
		if f.Price != nil {
			b = b.Where(sq.GtOrEq{"p.price": f.Price.Min}).
				Where(sq.LtOrEq{"p.price": f.Price.Max})
		}
	}
	return newestFirst(b)
}

func buildPageQuery(page, pageSize int) sq.SelectBuilder {
	return newestFirst(selectProducts()).
		Limit(uint64(pageSize)).
		Offset(uint64((page - 1) * pageSize))
}

func buildSearchQuery(keyword string) sq.SelectBuilder {
	pattern := "%" + escapeLike(keyword) + "%"
	return newestFirst(selectProducts().Where(sq.Or{
		sq.ILike{"p.name": pattern},
		sq.ILike{"p.description": pattern},
	}))
}

func buildRelatedQuery(categoryID, excludeID string, limit int) sq.SelectBuilder {
	return newestFirst(selectProducts().
		Where(sq.Eq{"p.category_id": categoryID}).
		Where(sq.NotEq{"p.id": excludeID})).
		Limit(uint64(limit))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes the keyword a literal substring for ILIKE.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
