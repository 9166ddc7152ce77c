package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/omnipos-checkout-service/internal/model"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// The mapping carries keyword subfields so search can match raw substrings.
// A mapping change needs a new index name; ReindexSearch fills it.
const indexName = "products_v2"

const (
	searchLimit  = 1000
	reindexBatch = 200
)

var errIndexIncomplete = errors.New("search index returned a partial result")

const indexMapping = `{
	"mappings": {
		"properties": {
			"id": { "type": "keyword" },
			"name": {
				"type": "text",
				"fields": { "raw": { "type": "keyword", "ignore_above": 1024 } }
			},
			"slug": { "type": "keyword" },
			"description": {
				"type": "text",
				"fields": { "raw": { "type": "keyword", "ignore_above": 8191 } }
			},
			"category_id": { "type": "keyword" },
			"price": { "type": "scaled_float", "scaling_factor": 100 },
			"quantity": { "type": "integer" },
			"shipping": { "type": "boolean" },
			"created_at": { "type": "date" }
		}
	}
}`

// searchDocument is the indexed projection of a product. Photo bytes and the
// joined category stay out of the index.
type searchDocument struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description string          `json:"description"`
	CategoryID  string          `json:"category_id"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Shipping    bool            `json:"shipping"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func toDocument(p *model.Product) searchDocument {
	return searchDocument{
		ID:          p.ID,
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		CategoryID:  p.CategoryID,
		Price:       p.Price,
		Quantity:    p.Quantity,
		Shipping:    p.Shipping,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (d searchDocument) toModel() model.Product {
	return model.Product{
		BaseModel:   model.BaseModel{ID: d.ID, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt},
		Name:        d.Name,
		Slug:        d.Slug,
		Description: d.Description,
		CategoryID:  d.CategoryID,
		Price:       d.Price,
		Quantity:    d.Quantity,
		Shipping:    d.Shipping,
	}
}

// buildSearchRequest matches keyword as a case-insensitive substring of the
// whole name or description, the same predicate as the ILIKE store query.
func buildSearchRequest(keyword string) map[string]interface{} {
	pattern := "*" + escapeWildcard(keyword) + "*"
	wildcard := func(field string) map[string]interface{} {
		return map[string]interface{}{
			"wildcard": map[string]interface{}{
				field: map[string]interface{}{
					"value":            pattern,
					"case_insensitive": true,
				},
			},
		}
	}
	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"should":               []interface{}{wildcard("name.raw"), wildcard("description.raw")},
				"minimum_should_match": 1,
			},
		},
		"sort":             []map[string]interface{}{{"created_at": "desc"}},
		"size":             searchLimit,
		"track_total_hits": true,
	}
}

// searchElastic returns errIndexIncomplete when the index has nothing or more
// than one page, so the caller can ask the store instead.
func (uc *productUseCase) searchElastic(ctx context.Context, keyword string) ([]model.Product, error) {
	res, err := uc.es.Search(ctx, indexName, buildSearchRequest(keyword))
	if err != nil {
		return nil, err
	}
	if len(res.Hits.Hits) == 0 || res.Hits.Total.Value > len(res.Hits.Hits) {
		return nil, errIndexIncomplete
	}

	products := make([]model.Product, 0, len(res.Hits.Hits))
	for _, hit := range res.Hits.Hits {
		var doc searchDocument
		if err := json.Unmarshal(hit.Source, &doc); err != nil {
			uc.logger.Warn("skipping malformed search hit", zap.String("id", hit.ID), zap.Error(err))
			continue
		}
		products = append(products, doc.toModel())
	}
	return products, nil
}

var wildcardEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)

// escapeWildcard makes every character of s literal in a wildcard pattern.
func escapeWildcard(s string) string {
	return wildcardEscaper.Replace(s)
}

// ReindexSearch creates the index if needed and writes every stored product
// into it. Indexing by id makes repeated runs safe.
func (uc *productUseCase) ReindexSearch(ctx context.Context) (int, error) {
	if uc.es == nil {
		return 0, nil
	}
	if err := uc.es.CreateIndex(ctx, indexName, indexMapping); err != nil {
		return 0, fmt.Errorf("ensure product index: %w", err)
	}

	indexed := 0
	for page := 1; ; page++ {
		batch, err := uc.repo.Page(ctx, page, reindexBatch)
		if err != nil {
			return indexed, err
		}
		for i := range batch {
			if err := uc.es.Index(ctx, indexName, batch[i].ID, toDocument(&batch[i])); err != nil {
				return indexed, fmt.Errorf("index product %s: %w", batch[i].ID, err)
			}
			indexed++
		}
		if len(batch) < reindexBatch {
			return indexed, nil
		}
	}
}

func (uc *productUseCase) syncToElastic(ctx context.Context, p *model.Product) {
	if uc.es == nil {
		return
	}
	if err := uc.es.CreateIndex(ctx, indexName, indexMapping); err != nil {
		uc.logger.Warn("failed to ensure product index", zap.Error(err))
	}
	if err := uc.es.Index(ctx, indexName, p.ID, toDocument(p)); err != nil {
		uc.logger.Error("failed to index product", zap.String("product_id", p.ID), zap.Error(err))
	}
}
