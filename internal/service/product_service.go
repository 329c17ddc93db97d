package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"storefront-service/internal/models"
	"storefront-service/internal/store"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CatalogCache is the derived read model for the product catalog.
// A miss returns (nil, nil); authoritative checks never read it.
// Implemented by redisclient.Client.
type CatalogCache interface {
	GetProducts(ctx context.Context) ([]models.Product, error)
	SetProducts(ctx context.Context, products []models.Product) error
	Invalidate(ctx context.Context) error
}

// ImageUploader pushes a file to the image CDN and returns its stable
// public URL. Implemented by cdn.Cloudinary.
type ImageUploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) (string, error)
}

// ProductService handles catalog administration.
type ProductService struct {
	store    store.Store
	cache    CatalogCache
	uploader ImageUploader
	logger   *zap.Logger
}

// NewProductService creates a product service. cache and uploader may
// be nil; reads then always hit the store and image upload is refused.
func NewProductService(st store.Store, cache CatalogCache, uploader ImageUploader) *ProductService {
	return &ProductService{
		store:    st,
		cache:    cache,
		uploader: uploader,
		logger:   util.GetLogger(),
	}
}

// ProductInput carries the admin-editable product fields.
type ProductInput struct {
	Name        string `json:"name" binding:"required"`
	PriceCents  int64  `json:"price_cents"`
	Qty         int    `json:"qty"`
	Image       string `json:"image"`
	Category    string `json:"category"`
	Brand       string `json:"brand"`
	WeightGrams int    `json:"weight_grams"`
}

func (in *ProductInput) validate() error {
	if in.Name == "" {
		return fmt.Errorf("%w: product name is required", ErrInvalidInput)
	}
	if in.PriceCents < 0 {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}
	if in.Qty < 0 {
		return fmt.Errorf("%w: qty must not be negative", ErrInvalidInput)
	}
	return nil
}

// Create adds a product with its initial stock quantity.
func (s *ProductService) Create(ctx context.Context, in ProductInput) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.Create")
	defer span.End()

	if err := in.validate(); err != nil {
		return nil, err
	}

	p := &models.Product{
		ID:          uuid.New().String(),
		Name:        in.Name,
		PriceCents:  in.PriceCents,
		Qty:         in.Qty,
		Image:       in.Image,
		Category:    in.Category,
		Brand:       in.Brand,
		WeightGrams: in.WeightGrams,
	}
	if err := s.store.CreateProduct(ctx, p); err != nil {
		return nil, err
	}

	s.invalidateCatalog(ctx)
	s.logger.Info("Product created", zap.String("product_id", p.ID), zap.String("name", p.Name))
	return p, nil
}

// Update changes name, price, image and metadata. Quantity is owned by
// the reconciliation flows and is not editable here.
func (s *ProductService) Update(ctx context.Context, id string, in ProductInput) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.Update")
	defer span.End()

	if err := in.validate(); err != nil {
		return nil, err
	}

	p := &models.Product{
		ID:          id,
		Name:        in.Name,
		PriceCents:  in.PriceCents,
		Image:       in.Image,
		Category:    in.Category,
		Brand:       in.Brand,
		WeightGrams: in.WeightGrams,
	}
	if err := s.store.UpdateProduct(ctx, p); err != nil {
		return nil, err
	}

	s.invalidateCatalog(ctx)
	return s.store.GetProduct(ctx, id)
}

// Delete removes a product from the catalog.
func (s *ProductService) Delete(ctx context.Context, id string) error {
	ctx, span := util.StartSpan(ctx, "ProductService.Delete")
	defer span.End()

	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.invalidateCatalog(ctx)
	s.logger.Info("Product deleted", zap.String("product_id", id))
	return nil
}

// Get retrieves a product by ID.
func (s *ProductService) Get(ctx context.Context, id string) (*models.Product, error) {
	return s.store.GetProduct(ctx, id)
}

// List returns the catalog, newest first, served from the read-model
// cache when warm.
func (s *ProductService) List(ctx context.Context) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.List")
	defer span.End()

	if s.cache != nil {
		cached, err := s.cache.GetProducts(ctx)
		if err != nil {
			s.logger.Warn("Catalog cache read failed, falling back to store", zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetProducts(ctx, products); err != nil {
			s.logger.Warn("Failed to warm catalog cache", zap.Error(err))
		}
	}
	return products, nil
}

// UploadImage pushes the file to the CDN and stores the returned URL
// on the product.
func (s *ProductService) UploadImage(ctx context.Context, id, filename string, r io.Reader) (string, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.UploadImage")
	defer span.End()

	if s.uploader == nil {
		return "", errors.New("image uploads are not configured")
	}
	if _, err := s.store.GetProduct(ctx, id); err != nil {
		return "", err
	}

	url, err := s.uploader.Upload(ctx, filename, r)
	if err != nil {
		return "", fmt.Errorf("image upload failed: %w", err)
	}
	if err := s.store.SetProductImage(ctx, id, url); err != nil {
		return "", err
	}

	s.invalidateCatalog(ctx)
	s.logger.Info("Product image updated", zap.String("product_id", id))
	return url, nil
}

func (s *ProductService) invalidateCatalog(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("Failed to invalidate catalog cache", zap.Error(err))
	}
}
