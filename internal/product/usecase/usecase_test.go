package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fekuna/omnipos-checkout-service/internal/model"
	"github.com/fekuna/omnipos-checkout-service/internal/product"
	"github.com/fekuna/omnipos-checkout-service/internal/product/dto"
	"github.com/fekuna/omnipos-checkout-service/pkg/cache"
	"github.com/fekuna/omnipos-checkout-service/pkg/logger"
	"github.com/fekuna/omnipos-checkout-service/pkg/search"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

type mockRepo struct {
	createFn   func(ctx context.Context, p *model.Product) error
	updateFn   func(ctx context.Context, p *model.Product) error
	findByIDFn func(ctx context.Context, id string) (*model.Product, error)
	listFn     func(ctx context.Context, limit int) ([]model.Product, error)
	filterFn   func(ctx context.Context, f *dto.ProductFilters) ([]model.Product, error)
	pageFn     func(ctx context.Context, page, pageSize int) ([]model.Product, error)
	searchFn   func(ctx context.Context, keyword string) ([]model.Product, error)
	relatedFn  func(ctx context.Context, categoryID, excludeID string, limit int) ([]model.Product, error)
	setPhotoFn func(ctx context.Context, id string, photo *model.Photo) error
}

func (m *mockRepo) Create(ctx context.Context, p *model.Product) error {
	if m.createFn == nil {
		return nil
	}
	return m.createFn(ctx, p)
}
func (m *mockRepo) Update(ctx context.Context, p *model.Product) error {
	if m.updateFn == nil {
		return nil
	}
	return m.updateFn(ctx, p)
}
func (m *mockRepo) Delete(context.Context, string) error { return nil }
func (m *mockRepo) SetPhoto(ctx context.Context, id string, photo *model.Photo) error {
	if m.setPhotoFn == nil {
		return nil
	}
	return m.setPhotoFn(ctx, id, photo)
}
func (m *mockRepo) FindByID(ctx context.Context, id string) (*model.Product, error) {
	return m.findByIDFn(ctx, id)
}
func (m *mockRepo) FindBySlug(context.Context, string) (*model.Product, error) {
	return nil, product.ErrNotFound
}
func (m *mockRepo) FindPhoto(context.Context, string) (*model.Photo, error) {
	return nil, product.ErrNotFound
}
func (m *mockRepo) List(ctx context.Context, limit int) ([]model.Product, error) {
	return m.listFn(ctx, limit)
}
func (m *mockRepo) Filter(ctx context.Context, f *dto.ProductFilters) ([]model.Product, error) {
	return m.filterFn(ctx, f)
}
func (m *mockRepo) Page(ctx context.Context, page, pageSize int) ([]model.Product, error) {
	return m.pageFn(ctx, page, pageSize)
}
func (m *mockRepo) Search(ctx context.Context, keyword string) ([]model.Product, error) {
	return m.searchFn(ctx, keyword)
}
func (m *mockRepo) Related(ctx context.Context, categoryID, excludeID string, limit int) ([]model.Product, error) {
	return m.relatedFn(ctx, categoryID, excludeID, limit)
}
func (m *mockRepo) FindByCategory(context.Context, string) ([]model.Product, error) { return nil, nil }
func (m *mockRepo) Count(context.Context) (int64, error)                          { return 0, nil }
func (m *mockRepo) FindPrices(context.Context, []string) (map[string]decimal.Decimal, error) {
	return nil, nil
}

func newUseCase(repo product.Repository, rc *cache.RedisClient, es *search.Client) product.UseCase {
	return NewProductUseCase(repo, nil, rc, es, Options{QueryTimeout: time.Second}, logger.NewNop())
}

func newRedis(t *testing.T) *cache.RedisClient {
	t.Helper()
	mr := miniredis.RunT(t)
	return cache.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

func TestFilterProducts(t *testing.T) {
	catID := uuid.NewString()

	t.Run("Given no predicates When filtering Then the store gets an unconstrained filter", func(t *testing.T) {
		var got *dto.ProductFilters
		uc := newUseCase(&mockRepo{filterFn: func(_ context.Context, f *dto.ProductFilters) ([]model.Product, error) {
			got = f
			return []model.Product{{Name: "a"}, {Name: "b"}}, nil
		}}, nil, nil)

		out, err := uc.FilterProducts(context.Background(), &dto.ProductFilters{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(out) != 2 {
			t.Errorf("len = %d, want 2", len(out))
		}
		if len(got.CategoryIDs) != 0 || got.Price != nil {
			t.Errorf("filter should be empty, got %+v", got)
		}
	})

	t.Run("Given only malformed category ids When filtering Then nothing matches and the store is not queried", func(t *testing.T) {
		uc := newUseCase(&mockRepo{filterFn: func(context.Context, *dto.ProductFilters) ([]model.Product, error) {
			t.Fatal("store should not be queried")
			return nil, nil
		}}, nil, nil)

		out, err := uc.FilterProducts(context.Background(), &dto.ProductFilters{CategoryIDs: []string{"nope"}})
		if err != nil || len(out) != 0 {
			t.Fatalf("got %v, %v; want empty, nil", out, err)
		}
	})

	t.Run("Given an inverted price range When filtering Then invalid input", func(t *testing.T) {
		uc := newUseCase(&mockRepo{}, nil, nil)
		_, err := uc.FilterProducts(context.Background(), &dto.ProductFilters{
			CategoryIDs: []string{catID},
			Price:       &dto.PriceRange{Min: decimal.NewFromInt(50), Max: decimal.NewFromInt(10)},
		})
		if !errors.Is(err, product.ErrInvalidInput) {
			t.Fatalf("err = %v, want ErrInvalidInput", err)
		}
	})
}

func TestPageProducts(t *testing.T) {
	t.Run("Given page 0 When paginating Then ErrInvalidPage", func(t *testing.T) {
		uc := newUseCase(&mockRepo{}, nil, nil)
		if _, err := uc.PageProducts(context.Background(), 0); !errors.Is(err, product.ErrInvalidPage) {
			t.Fatalf("err = %v, want ErrInvalidPage", err)
		}
	})

	t.Run("Given a page whose offset overflows When paginating Then ErrInvalidPage", func(t *testing.T) {
		uc := newUseCase(&mockRepo{pageFn: func(context.Context, int, int) ([]model.Product, error) {
			t.Fatal("store must not be queried")
			return nil, nil
		}}, nil, nil)
		if _, err := uc.PageProducts(context.Background(), product.MaxPage+1); !errors.Is(err, product.ErrInvalidPage) {
			t.Fatalf("err = %v, want ErrInvalidPage", err)
		}
	})

	t.Run("Given page 2 When paginating Then the store is asked for page 2 of 6", func(t *testing.T) {
		var gotPage, gotSize int
		uc := newUseCase(&mockRepo{pageFn: func(_ context.Context, page, size int) ([]model.Product, error) {
			gotPage, gotSize = page, size
			return nil, nil
		}}, nil, nil)

		if _, err := uc.PageProducts(context.Background(), 2); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if gotPage != 2 || gotSize != 6 {
			t.Errorf("Page(%d, %d), want Page(2, 6)", gotPage, gotSize)
		}
	})
}

func TestListProducts_CachedUntilWrite(t *testing.T) {
	calls := 0
	repo := &mockRepo{
		listFn: func(_ context.Context, limit int) ([]model.Product, error) {
			calls++
			if limit != 12 {
				t.Errorf("limit = %d, want 12", limit)
			}
			return []model.Product{{Name: "Red Widget", Price: decimal.RequireFromString("9.99")}}, nil
		},
	}
	uc := newUseCase(repo, newRedis(t), nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		out, err := uc.ListProducts(ctx)
		if err != nil {
			t.Fatalf("ListProducts: %v", err)
		}
		if len(out) != 1 || !out[0].Price.Equal(decimal.RequireFromString("9.99")) {
			t.Fatalf("unexpected list %+v", out)
		}
	}
	if calls != 1 {
		t.Fatalf("store calls = %d, want 1 (second read from cache)", calls)
	}

	_, err := uc.CreateProduct(ctx, &dto.CreateProductInput{
		Name: "Blue Widget", Price: decimal.NewFromInt(5), CategoryID: uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	if _, err := uc.ListProducts(ctx); err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if calls != 2 {
		t.Fatalf("store calls = %d, want 2 after a write invalidated the cache", calls)
	}
}

func TestCreateProduct(t *testing.T) {
	valid := dto.CreateProductInput{
		Name:       "Red Widget",
		Price:      decimal.RequireFromString("19.999"),
		CategoryID: uuid.NewString(),
		Quantity:   3,
	}

	t.Run("Given valid input When creating Then slug and rounded price are stored", func(t *testing.T) {
		var stored *model.Product
		uc := newUseCase(&mockRepo{createFn: func(_ context.Context, p *model.Product) error {
			stored = p
			return nil
		}}, nil, nil)

		in := valid
		p, err := uc.CreateProduct(context.Background(), &in)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Slug != "red-widget" || stored.Slug != "red-widget" {
			t.Errorf("slug = %q", p.Slug)
		}
		if p.Price.String() != "20" {
			t.Errorf("price = %s, want 20", p.Price)
		}
	})

	t.Run("Given a name collision When the index rejects it Then ErrNameTaken", func(t *testing.T) {
		uc := newUseCase(&mockRepo{createFn: func(context.Context, *model.Product) error {
			return product.ErrNameTaken
		}}, nil, nil)
		in := valid
		if _, err := uc.CreateProduct(context.Background(), &in); !errors.Is(err, product.ErrNameTaken) {
			t.Fatalf("err = %v, want ErrNameTaken", err)
		}
	})

	t.Run("Given a negative price When creating Then invalid input and no write", func(t *testing.T) {
		uc := newUseCase(&mockRepo{createFn: func(context.Context, *model.Product) error {
			t.Fatal("store should not be written")
			return nil
		}}, nil, nil)
		in := valid
		in.Price = decimal.NewFromInt(-1)
		_, err := uc.CreateProduct(context.Background(), &in)
		if !errors.Is(err, product.ErrInvalidInput) || !strings.Contains(err.Error(), "price") {
			t.Fatalf("err = %v, want price ErrInvalidInput", err)
		}
	})
}

func TestUpdateProduct_RegeneratesSlug(t *testing.T) {
	id := uuid.NewString()
	var updated *model.Product
	uc := newUseCase(&mockRepo{
		findByIDFn: func(context.Context, string) (*model.Product, error) {
			return &model.Product{BaseModel: model.BaseModel{ID: id}, Name: "Old", Slug: "old"}, nil
		},
		updateFn: func(_ context.Context, p *model.Product) error {
			updated = p
			return nil
		},
	}, nil, nil)

	_, err := uc.UpdateProduct(context.Background(), &dto.UpdateProductInput{
		ID: id,
		CreateProductInput: dto.CreateProductInput{
			Name: "Shiny New Thing", Price: decimal.NewFromInt(1), CategoryID: uuid.NewString(),
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Slug != "shiny-new-thing" {
		t.Errorf("slug = %q, want shiny-new-thing", updated.Slug)
	}
}

func TestSetPhoto_SizeLimit(t *testing.T) {
	uc := newUseCase(&mockRepo{}, nil, nil)
	err := uc.SetPhoto(context.Background(), uuid.NewString(), &model.Photo{
		Data: make([]byte, MaxPhotoBytes+1), ContentType: "image/png",
	})
	if !errors.Is(err, product.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestRelatedProducts(t *testing.T) {
	pid, cid := uuid.NewString(), uuid.NewString()
	var gotCat, gotExclude string
	var gotLimit int
	uc := newUseCase(&mockRepo{relatedFn: func(_ context.Context, c, e string, l int) ([]model.Product, error) {
		gotCat, gotExclude, gotLimit = c, e, l
		return nil, nil
	}}, nil, nil)

	if _, err := uc.RelatedProducts(context.Background(), pid, cid); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotCat != cid || gotExclude != pid || gotLimit != 3 {
		t.Errorf("Related(%q, %q, %d)", gotCat, gotExclude, gotLimit)
	}
}

func TestSearchProducts_FallsBackToStore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/" {
			_, _ = io.WriteString(w, `{"version":{"number":"8.19.1"}}`)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":"unavailable"}`)
	}))
	defer srv.Close()

	es, err := search.NewClient(&search.Config{Addresses: []string{srv.URL}})
	if err != nil {
		t.Fatalf("search client: %v", err)
	}

	var gotKeyword string
	uc := newUseCase(&mockRepo{searchFn: func(_ context.Context, k string) ([]model.Product, error) {
		gotKeyword = k
		return []model.Product{{Name: "Widget", Description: "Red Widget"}}, nil
	}}, nil, es)

	out, err := uc.SearchProducts(context.Background(), " red ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotKeyword != "red" || len(out) != 1 {
		t.Errorf("keyword=%q out=%v", gotKeyword, out)
	}
}

func TestSearchProducts_UsesIndexHits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/" {
			_, _ = io.WriteString(w, `{"version":{"number":"8.19.1"}}`)
			return
		}
		_, _ = io.WriteString(w, `{"hits":{"total":{"value":1},"hits":[{"_id":"p1","_source":{"id":"p1","name":"Widget","description":"Red Widget","price":"4.50"}}]}}`)
	}))
	defer srv.Close()

	es, err := search.NewClient(&search.Config{Addresses: []string{srv.URL}})
	if err != nil {
		t.Fatalf("search client: %v", err)
	}
	uc := newUseCase(&mockRepo{searchFn: func(context.Context, string) ([]model.Product, error) {
		t.Fatal("store should not be queried when the index answers")
		return nil, nil
	}}, nil, es)

	out, err := uc.SearchProducts(context.Background(), "red")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].ID != "p1" || !out[0].Price.Equal(decimal.RequireFromString("4.5")) {
		t.Errorf("out = %+v", out)
	}
}

func TestEscapeWildcard(t *testing.T) {
	if got := escapeWildcard(`50% *off? a\b`); got != `50% \*off\? a\\b` {
		t.Errorf("escapeWildcard = %q", got)
	}
}

// fakeElastic answers the product check and records search bodies and
// indexed document ids.
type fakeElastic struct {
	mu         sync.Mutex
	searchBody []byte
	indexed    []string
	hits       string
}

func (f *fakeElastic) serve(t *testing.T) *search.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		f.mu.Lock()
		defer f.mu.Unlock()
		switch {
		case r.URL.Path == "/":
			_, _ = io.WriteString(w, `{"version":{"number":"8.19.1"}}`)
		case strings.HasSuffix(r.URL.Path, "/_search"):
			f.searchBody, _ = io.ReadAll(r.Body)
			_, _ = io.WriteString(w, f.hits)
		case strings.Contains(r.URL.Path, "/_doc/"):
			f.indexed = append(f.indexed, r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:])
			_, _ = io.WriteString(w, `{"result":"created"}`)
		default:
			// index exists
			_, _ = io.WriteString(w, `{}`)
		}
	}))
	t.Cleanup(srv.Close)

	es, err := search.NewClient(&search.Config{Addresses: []string{srv.URL}})
	if err != nil {
		t.Fatalf("search client: %v", err)
	}
	return es
}

func TestSearchProducts_SubstringQuery(t *testing.T) {
	fake := &fakeElastic{hits: `{"hits":{"total":{"value":1},"hits":[{"_id":"p1","_source":{"id":"p1","name":"Widget","description":"A Red Widget"}}]}}`}
	uc := newUseCase(&mockRepo{}, nil, fake.serve(t))

	if _, err := uc.SearchProducts(context.Background(), "Red Widget"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var body struct {
		Query struct {
			Bool struct {
				Should []map[string]map[string]struct {
					Value           string `json:"value"`
					CaseInsensitive bool   `json:"case_insensitive"`
				} `json:"should"`
			} `json:"bool"`
		} `json:"query"`
	}
	if err := json.Unmarshal(fake.searchBody, &body); err != nil {
		t.Fatalf("search body %s: %v", fake.searchBody, err)
	}
	if len(body.Query.Bool.Should) != 2 {
		t.Fatalf("should = %+v", body.Query.Bool.Should)
	}
	for i, field := range []string{"name.raw", "description.raw"} {
		q, ok := body.Query.Bool.Should[i]["wildcard"][field]
		if !ok {
			t.Fatalf("clause %d = %+v, want wildcard on %s", i, body.Query.Bool.Should[i], field)
		}
		if q.Value != "*Red Widget*" || !q.CaseInsensitive {
			t.Errorf("%s = %+v, want case-insensitive *Red Widget*", field, q)
		}
	}
}

func TestSearchProducts_EmptyOrPartialIndexUsesStore(t *testing.T) {
	tests := []struct {
		name string
		hits string
	}{
		{"Given no index hits", `{"hits":{"total":{"value":0},"hits":[]}}`},
		{"Given more matches than one response holds", `{"hits":{"total":{"value":5000},"hits":[{"_id":"p1","_source":{"id":"p1"}}]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name+" When searching Then the store answers", func(t *testing.T) {
			fake := &fakeElastic{hits: tt.hits}
			called := false
			uc := newUseCase(&mockRepo{searchFn: func(context.Context, string) ([]model.Product, error) {
				called = true
				return []model.Product{{Name: "Red Widget"}}, nil
			}}, nil, fake.serve(t))

			out, err := uc.SearchProducts(context.Background(), "red")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !called || len(out) != 1 {
				t.Errorf("store called=%v out=%v", called, out)
			}
		})
	}
}

func TestReindexSearch(t *testing.T) {
	fake := &fakeElastic{}
	total := reindexBatch + 3
	var pages []int
	uc := newUseCase(&mockRepo{pageFn: func(_ context.Context, page, size int) ([]model.Product, error) {
		pages = append(pages, page)
		start := (page - 1) * size
		if start >= total {
			return nil, nil
		}
		end := start + size
		if end > total {
			end = total
		}
		out := make([]model.Product, 0, end-start)
		for i := start; i < end; i++ {
			out = append(out, model.Product{BaseModel: model.BaseModel{ID: "p" + strconv.Itoa(i)}})
		}
		return out, nil
	}}, nil, fake.serve(t))

	n, err := uc.ReindexSearch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != total || len(fake.indexed) != total {
		t.Errorf("indexed %d (%d requests), want %d", n, len(fake.indexed), total)
	}
	if len(pages) != 2 {
		t.Errorf("pages read = %v, want 2 pages", pages)
	}

	none := newUseCase(&mockRepo{}, nil, nil)
	if n, err := none.ReindexSearch(context.Background()); err != nil || n != 0 {
		t.Errorf("without index: %d, %v", n, err)
	}
}
