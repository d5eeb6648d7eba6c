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

// CreateOrder inserts a new order.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now

	_, err := s.orders.InsertOne(ctx, order)
	return err
}

// GetOrderByID retrieves an order by id. Returns (nil, nil) when absent.
func (s *Store) GetOrderByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	var order models.Order
	err := s.orders.FindOne(ctx, bson.M{"_id": id}).Decode(&order)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrdersByUserID retrieves all orders owned by a user, newest first.
func (s *Store) GetOrdersByUserID(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.orders.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var orders []models.Order
	if err := cur.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// GetOrders retrieves all orders, newest first.
func (s *Store) GetOrders(ctx context.Context) ([]models.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.orders.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var orders []models.Order
	if err := cur.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// MarkOrderPaid flips the paid flag and records the settlement result.
// Re-applying the same settlement is harmless.
func (s *Store) MarkOrderPaid(ctx context.Context, id primitive.ObjectID, result models.PaymentResult, paidAt time.Time) error {
	update := bson.M{
		"$set": bson.M{
			"is_paid":        true,
			"paid_at":        paidAt,
			"payment_result": result,
			"updated_at":     time.Now(),
		},
	}
	_, err := s.orders.UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}

// MarkOrderDelivered flips the delivered flag.
func (s *Store) MarkOrderDelivered(ctx context.Context, id primitive.ObjectID, deliveredAt time.Time) error {
	update := bson.M{
		"$set": bson.M{
			"is_delivered": true,
			"delivered_at": deliveredAt,
			"updated_at":   time.Now(),
		},
	}
	_, err := s.orders.UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}
