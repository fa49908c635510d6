package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"storefront/internal/cache"
	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"go.uber.org/zap"
)

// 全商品一覧のキャッシュキー
const ProductsCacheKey = "all_products"

type ProductUsecase struct {
	productRepo repo.ProductRepository
	cache       *cache.Store
	logger      *zap.Logger
	now         func() time.Time
}

// DI
func NewProductUsecase(productRepo repo.ProductRepository, store *cache.Store, logger *zap.Logger) *ProductUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductUsecase{
		productRepo: productRepo,
		cache:       store,
		logger:      logger,
		now:         time.Now,
	}
}

// 一覧はキャッシュ優先。ミスならDBから読んでキャッシュに入れる
// 同時ミスはそれぞれDBを読み、最後に書いたものが残る（スナップショットなので問題ない）
func (u *ProductUsecase) ListProducts(ctx context.Context) ([]model.Product, error) {
	if cached, ok := cache.Get[[]model.Product](ctx, u.cache, ProductsCacheKey); ok {
		return cached, nil
	}

	products, err := u.productRepo.ListAll(ctx)
	if err != nil {
		return nil, errDB(err)
	}

	u.cache.Set(ctx, ProductsCacheKey, products, u.cache.DefaultTTL())
	return products, nil
}

// 1件取得はキャッシュを通さない
func (u *ProductUsecase) GetProduct(ctx context.Context, productID int64) (model.Product, error) {
	if productID <= 0 {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, wrapHTTPError(http.StatusNotFound, ErrNotFound, "")
	}
	if err != nil {
		return model.Product{}, errDB(err)
	}
	return p, nil
}

type ProductInput struct {
	Sku         string
	Name        string
	Description string
	Price       model.Money
	Category    string
	Gender      string
	ImageURL    string
}

func (in ProductInput) validate() error {
	if strings.TrimSpace(in.Sku) == "" {
		return NewHTTPError(http.StatusBadRequest, "sku required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return NewHTTPError(http.StatusBadRequest, "name required")
	}
	if in.Price < 0 {
		return NewHTTPError(http.StatusBadRequest, "price must be >= 0")
	}
	return nil
}

func (in ProductInput) toModel(id int64) model.Product {
	return model.Product{
		ID:          id,
		Sku:         strings.TrimSpace(in.Sku),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price,
		Category:    strings.TrimSpace(in.Category),
		Gender:      strings.TrimSpace(in.Gender),
		ImageURL:    strings.TrimSpace(in.ImageURL),
	}
}

func (u *ProductUsecase) CreateProduct(ctx context.Context, in ProductInput) (model.Product, error) {
	if err := in.validate(); err != nil {
		return model.Product{}, err
	}

	p := in.toModel(0)
	p.CreatedAt = u.now()

	created, err := u.productRepo.Create(ctx, p)
	if err != nil {
		return model.Product{}, u.writeError(err)
	}

	u.invalidate(ctx)
	return created, nil
}

func (u *ProductUsecase) UpdateProduct(ctx context.Context, productID int64, in ProductInput) (model.Product, error) {
	if productID <= 0 {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	if err := in.validate(); err != nil {
		return model.Product{}, err
	}

	if err := u.productRepo.Update(ctx, in.toModel(productID)); err != nil {
		return model.Product{}, u.writeError(err)
	}
	u.invalidate(ctx)

	//created_atなどDB側の値を含めて返す
	updated, err := u.productRepo.FindByID(ctx, productID)
	if err != nil {
		return model.Product{}, u.writeError(err)
	}
	return updated, nil
}

func (u *ProductUsecase) DeleteProduct(ctx context.Context, productID int64) error {
	if productID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	if err := u.productRepo.Delete(ctx, productID); err != nil {
		return u.writeError(err)
	}

	u.invalidate(ctx)
	return nil
}

// 書き込みが確定してから消す。失敗した書き込みではキャッシュに触らない
func (u *ProductUsecase) invalidate(ctx context.Context) {
	u.cache.Delete(ctx, ProductsCacheKey)
}

func (u *ProductUsecase) writeError(err error) error {
	switch {
	case errors.Is(err, repo.ErrConflict):
		return wrapHTTPError(http.StatusConflict, ErrConflict, "sku already exists")
	case errors.Is(err, repo.ErrNotFound):
		return wrapHTTPError(http.StatusNotFound, ErrNotFound, "")
	default:
		u.logger.Error("product write failed", zap.Error(err))
		return errDB(err)
	}
}
