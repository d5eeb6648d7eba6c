package service

import (
	"context"
	"testing"
	"time"

	"shop-backend/internal/apperr"
	"shop-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeCache is an in-memory ProductCache that counts hits.
type fakeCache struct {
	entries map[string]*models.Product
	hits    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*models.Product)}
}

func (f *fakeCache) CacheProduct(_ context.Context, product *models.Product, _ time.Duration) error {
	cp := *product
	f.entries[product.ID.Hex()] = &cp
	return nil
}

func (f *fakeCache) GetCachedProduct(_ context.Context, id string) (*models.Product, error) {
	p, ok := f.entries[id]
	if !ok {
		return nil, nil
	}
	f.hits++
	cp := *p
	return &cp, nil
}

func (f *fakeCache) InvalidateProduct(_ context.Context, id string) error {
	delete(f.entries, id)
	return nil
}

func TestGetProductCacheAside(t *testing.T) {
	product := &models.Product{
		ID:    primitive.NewObjectID(),
		Name:  "Camera",
		Price: 89.99,
		Stock: 3,
	}
	cache := newFakeCache()
	svc := NewProductService(newFakeCatalog(product), cache)

	first, err := svc.GetProduct(context.Background(), product.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "Camera", first.Name)
	assert.Equal(t, 0, cache.hits, "first read misses the cache")

	second, err := svc.GetProduct(context.Background(), product.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, cache.hits, "second read is served from the cache")
}

func TestGetProductNotFound(t *testing.T) {
	svc := NewProductService(newFakeCatalog(), nil)

	_, err := svc.GetProduct(context.Background(), primitive.NewObjectID().Hex())
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = svc.GetProduct(context.Background(), "nope")
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestUpdateProductOwnerOrAdminOnly(t *testing.T) {
	owner := testBuyer()
	product := &models.Product{
		ID:     primitive.NewObjectID(),
		UserID: owner.ID,
		Name:   "Original",
		Price:  10,
		Stock:  5,
	}
	catalog := newFakeCatalog(product)
	svc := NewProductService(catalog, nil)

	req := &ProductRequest{Name: "Renamed", Price: 12, Stock: 5}

	stranger := &models.User{ID: primitive.NewObjectID(), Username: "bob"}
	_, err := svc.UpdateProduct(context.Background(), stranger, product.ID.Hex(), req)
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	assert.Equal(t, "Original", catalog.products[product.ID].Name, "a rejected update must not mutate the product")

	updated, err := svc.UpdateProduct(context.Background(), owner, product.ID.Hex(), req)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)

	admin := &models.User{ID: primitive.NewObjectID(), IsAdmin: true}
	updated, err = svc.UpdateProduct(context.Background(), admin, product.ID.Hex(), &ProductRequest{Name: "Admin edit", Price: 15, Stock: 5})
	require.NoError(t, err)
	assert.Equal(t, "Admin edit", updated.Name)
}

func TestUpdateProductInvalidatesCache(t *testing.T) {
	owner := testBuyer()
	product := &models.Product{ID: primitive.NewObjectID(), UserID: owner.ID, Name: "Cached", Price: 10}
	cache := newFakeCache()
	svc := NewProductService(newFakeCatalog(product), cache)

	_, err := svc.GetProduct(context.Background(), product.ID.Hex())
	require.NoError(t, err)
	require.Contains(t, cache.entries, product.ID.Hex())

	_, err = svc.UpdateProduct(context.Background(), owner, product.ID.Hex(), &ProductRequest{Name: "Fresh", Price: 11})
	require.NoError(t, err)
	assert.NotContains(t, cache.entries, product.ID.Hex())
}

func TestDeleteProduct(t *testing.T) {
	product := &models.Product{ID: primitive.NewObjectID(), Name: "Doomed"}
	catalog := newFakeCatalog(product)
	svc := NewProductService(catalog, nil)

	require.NoError(t, svc.DeleteProduct(context.Background(), product.ID.Hex()))
	assert.Empty(t, catalog.products)

	err := svc.DeleteProduct(context.Background(), product.ID.Hex())
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestAddReviewRecomputesRating(t *testing.T) {
	firstReviewer := testBuyer()
	product := &models.Product{
		ID:   primitive.NewObjectID(),
		Name: "Speaker",
		Reviews: []models.Review{
			{Name: firstReviewer.Username, Rating: 4, UserID: firstReviewer.ID},
		},
		Rating:     4,
		NumReviews: 1,
	}
	catalog := newFakeCatalog(product)
	svc := NewProductService(catalog, nil)

	second := &models.User{ID: primitive.NewObjectID(), Username: "bob"}
	require.NoError(t, svc.AddReview(context.Background(), second, product.ID.Hex(), &ReviewRequest{Rating: 2, Comment: "meh"}))

	stored := catalog.products[product.ID]
	assert.Equal(t, 2, stored.NumReviews)
	assert.InDelta(t, 3.0, stored.Rating, 0.001, "rating is the mean of all reviews")
	require.Len(t, stored.Reviews, 2)
	assert.Equal(t, "bob", stored.Reviews[1].Name)
}

func TestAddReviewOncePerUser(t *testing.T) {
	reviewer := testBuyer()
	product := &models.Product{ID: primitive.NewObjectID(), Name: "Speaker"}
	catalog := newFakeCatalog(product)
	svc := NewProductService(catalog, nil)

	require.NoError(t, svc.AddReview(context.Background(), reviewer, product.ID.Hex(), &ReviewRequest{Rating: 5}))

	err := svc.AddReview(context.Background(), reviewer, product.ID.Hex(), &ReviewRequest{Rating: 1})
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	stored := catalog.products[product.ID]
	assert.Equal(t, 1, stored.NumReviews, "a rejected review must not change the aggregates")
	assert.InDelta(t, 5.0, stored.Rating, 0.001)
	assert.Len(t, stored.Reviews, 1)
}

func TestListProductsPaging(t *testing.T) {
	catalog := newFakeCatalog()
	for i := 0; i < 3; i++ {
		require.NoError(t, catalog.CreateProduct(context.Background(), &models.Product{Name: "P", Price: 1}))
	}
	svc := NewProductService(catalog, nil)

	page, err := svc.ListProducts(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page, "page numbers are clamped to 1")
	assert.Equal(t, 1, page.Pages)
	assert.Len(t, page.Products, 3)
}
