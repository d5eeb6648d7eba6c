package store

import (
	"context"
	"time"

	"shop-backend/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreateProduct inserts a new product.
func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	if product.ID.IsZero() {
		product.ID = primitive.NewObjectID()
	}
	if product.Reviews == nil {
		product.Reviews = []models.Review{}
	}
	now := time.Now()
	product.CreatedAt = now
	product.UpdatedAt = now

	_, err := s.products.InsertOne(ctx, product)
	return err
}

// GetProductByID retrieves a product by id. Returns (nil, nil) when absent.
func (s *Store) GetProductByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	var product models.Product
	err := s.products.FindOne(ctx, bson.M{"_id": id}).Decode(&product)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductsByIDs retrieves multiple products in a single lookup.
func (s *Store) GetProductsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	cur, err := s.products.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var products []models.Product
	if err := cur.All(ctx, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// SearchProducts returns one page of products matching keyword as a
// case-insensitive substring of the name, newest first, plus the total count.
func (s *Store) SearchProducts(ctx context.Context, keyword string, page, pageSize int) ([]models.Product, int64, error) {
	filter := bson.M{}
	if keyword != "" {
		filter["name"] = bson.M{"$regex": keyword, "$options": "i"}
	}

	total, err := s.products.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize))

	cur, err := s.products.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	var products []models.Product
	if err := cur.All(ctx, &products); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// UpdateProduct overwrites the mutable fields of a product.
func (s *Store) UpdateProduct(ctx context.Context, product *models.Product) error {
	update := bson.M{
		"$set": bson.M{
			"name":        product.Name,
			"image":       product.Image,
			"description": product.Description,
			"category":    product.Category,
			"price":       product.Price,
			"stock":       product.Stock,
			"updated_at":  time.Now(),
		},
	}
	_, err := s.products.UpdateOne(ctx, bson.M{"_id": product.ID}, update)
	return err
}

// DeleteProduct removes a product. Returns false when no document matched.
func (s *Store) DeleteProduct(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := s.products.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

// DecrementStockIfAvailable applies a conditional stock decrement for one
// product as a single atomic update. Returns false, without mutating anything,
// when the remaining stock is below quantity.
func (s *Store) DecrementStockIfAvailable(ctx context.Context, productID primitive.ObjectID, quantity int) (bool, error) {
	res, err := s.products.UpdateOne(ctx,
		bson.M{"_id": productID, "stock": bson.M{"$gte": quantity}},
		bson.M{"$inc": bson.M{"stock": -quantity}, "$set": bson.M{"updated_at": time.Now()}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// IncrementStock releases a previously applied decrement (compensation).
func (s *Store) IncrementStock(ctx context.Context, productID primitive.ObjectID, quantity int) error {
	_, err := s.products.UpdateOne(ctx,
		bson.M{"_id": productID},
		bson.M{"$inc": bson.M{"stock": quantity}, "$set": bson.M{"updated_at": time.Now()}},
	)
	return err
}

// AddReview appends an embedded review and stores the recomputed aggregates.
func (s *Store) AddReview(ctx context.Context, productID primitive.ObjectID, review models.Review, rating float64, numReviews int) error {
	update := bson.M{
		"$push": bson.M{"reviews": review},
		"$set": bson.M{
			"rating":      rating,
			"num_reviews": numReviews,
			"updated_at":  time.Now(),
		},
	}
	_, err := s.products.UpdateOne(ctx, bson.M{"_id": productID}, update)
	return err
}
