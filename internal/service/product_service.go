package service

import (
	"context"
	"time"

	"shop-backend/internal/apperr"
	"shop-backend/internal/models"
	"shop-backend/internal/util"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	productPageSize = 10
	productCacheTTL = time.Minute
)

// ProductService handles catalog operations and reviews.
type ProductService struct {
	catalog CatalogStore
	cache   ProductCache
	logger  *zap.Logger
}

// NewProductService creates a new product service. Cache may be nil, in which
// case every read goes to the store.
func NewProductService(catalog CatalogStore, cache ProductCache) *ProductService {
	return &ProductService{
		catalog: catalog,
		cache:   cache,
		logger:  util.GetLogger(),
	}
}

// ProductPage is one page of search results.
type ProductPage struct {
	Products []models.Product `json:"products"`
	Page     int              `json:"page"`
	Pages    int              `json:"pages"`
}

// ProductRequest carries the mutable product fields for create and update.
type ProductRequest struct {
	Name        string  `json:"name" binding:"required"`
	Image       string  `json:"image"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Price       float64 `json:"price" binding:"min=0"`
	Stock       int     `json:"countInStock" binding:"min=0"`
}

// ReviewRequest carries a review submission. The 1-5 range is a client
// convention, not enforced here.
type ReviewRequest struct {
	Rating  float64 `json:"rating" binding:"required"`
	Comment string  `json:"comment"`
}

// ListProducts returns one page of products matching keyword.
func (s *ProductService) ListProducts(ctx context.Context, keyword string, page int) (*ProductPage, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.ListProducts")
	defer span.End()

	if page < 1 {
		page = 1
	}

	products, total, err := s.catalog.SearchProducts(ctx, keyword, page, productPageSize)
	if err != nil {
		return nil, apperr.Internal("failed to search products", err)
	}

	pages := int((total + productPageSize - 1) / productPageSize)
	if pages < 1 {
		pages = 1
	}

	return &ProductPage{Products: products, Page: page, Pages: pages}, nil
}

// GetProduct retrieves a single product, cache-aside.
func (s *ProductService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.GetProduct")
	defer span.End()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperr.Validation("invalid product id")
	}

	if s.cache != nil {
		cached, err := s.cache.GetCachedProduct(ctx, id)
		if err != nil {
			s.logger.Warn("Product cache read failed", zap.String("product_id", id), zap.Error(err))
		}
		if cached != nil {
			return cached, nil
		}
	}

	product, err := s.catalog.GetProductByID(ctx, oid)
	if err != nil {
		return nil, apperr.Internal("failed to load product", err)
	}
	if product == nil {
		return nil, apperr.NotFound("product not found")
	}

	if s.cache != nil {
		if err := s.cache.CacheProduct(ctx, product, productCacheTTL); err != nil {
			s.logger.Warn("Product cache write failed", zap.String("product_id", id), zap.Error(err))
		}
	}

	return product, nil
}

// CreateProduct creates a product owned by the caller.
func (s *ProductService) CreateProduct(ctx context.Context, actor *models.User, req *ProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.CreateProduct")
	defer span.End()

	product := &models.Product{
		UserID:      actor.ID,
		Name:        req.Name,
		Image:       req.Image,
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price,
		Stock:       req.Stock,
	}

	if err := s.catalog.CreateProduct(ctx, product); err != nil {
		return nil, apperr.Internal("failed to create product", err)
	}

	s.logger.Info("Product created",
		zap.String("product_id", product.ID.Hex()),
		zap.String("owner_id", actor.ID.Hex()))
	return product, nil
}

// UpdateProduct mutates a product, allowed for the owner or a privileged
// actor only.
func (s *ProductService) UpdateProduct(ctx context.Context, actor *models.User, id string, req *ProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.UpdateProduct")
	defer span.End()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperr.Validation("invalid product id")
	}

	product, err := s.catalog.GetProductByID(ctx, oid)
	if err != nil {
		return nil, apperr.Internal("failed to load product", err)
	}
	if product == nil {
		return nil, apperr.NotFound("product not found")
	}

	if !CanModify(actor.ID, actor.IsAdmin, product.UserID) {
		return nil, apperr.Forbidden("not allowed to modify this product")
	}

	product.Name = req.Name
	product.Image = req.Image
	product.Description = req.Description
	product.Category = req.Category
	product.Price = req.Price
	product.Stock = req.Stock

	if err := s.catalog.UpdateProduct(ctx, product); err != nil {
		return nil, apperr.Internal("failed to update product", err)
	}

	s.invalidateCache(ctx, id)
	return product, nil
}

// DeleteProduct removes a product. The privileged-role check happens at the
// route boundary.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	ctx, span := util.StartSpan(ctx, "ProductService.DeleteProduct")
	defer span.End()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return apperr.Validation("invalid product id")
	}

	deleted, err := s.catalog.DeleteProduct(ctx, oid)
	if err != nil {
		return apperr.Internal("failed to delete product", err)
	}
	if !deleted {
		return apperr.NotFound("product not found")
	}

	s.invalidateCache(ctx, id)
	return nil
}

// AddReview appends a review, at most one per user per product, and
// recomputes the aggregate rating as the mean of all embedded ratings.
func (s *ProductService) AddReview(ctx context.Context, actor *models.User, productID string, req *ReviewRequest) error {
	ctx, span := util.StartSpan(ctx, "ProductService.AddReview")
	defer span.End()

	oid, err := primitive.ObjectIDFromHex(productID)
	if err != nil {
		return apperr.Validation("invalid product id")
	}

	product, err := s.catalog.GetProductByID(ctx, oid)
	if err != nil {
		return apperr.Internal("failed to load product", err)
	}
	if product == nil {
		return apperr.NotFound("product not found")
	}

	for _, r := range product.Reviews {
		if r.UserID == actor.ID {
			return apperr.Conflict("product already reviewed")
		}
	}

	review := models.Review{
		Name:      actor.Username,
		Rating:    req.Rating,
		Comment:   req.Comment,
		UserID:    actor.ID,
		CreatedAt: time.Now(),
	}

	sum := req.Rating
	for _, r := range product.Reviews {
		sum += r.Rating
	}
	numReviews := len(product.Reviews) + 1
	rating := sum / float64(numReviews)

	if err := s.catalog.AddReview(ctx, oid, review, rating, numReviews); err != nil {
		return apperr.Internal("failed to add review", err)
	}

	util.ReviewsCreatedTotal.Inc()
	s.invalidateCache(ctx, productID)
	return nil
}

func (s *ProductService) invalidateCache(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateProduct(ctx, id); err != nil {
		s.logger.Warn("Product cache invalidation failed", zap.String("product_id", id), zap.Error(err))
	}
}
