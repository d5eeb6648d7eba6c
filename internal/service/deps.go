package service

import (
	"context"
	"time"

	"shop-backend/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserStore is the identity store surface the services depend on.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetUserByGoogleID(ctx context.Context, googleID string) (*models.User, error)
}

// CatalogStore is the product store surface the services depend on.
type CatalogStore interface {
	CreateProduct(ctx context.Context, product *models.Product) error
	GetProductByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error)
	SearchProducts(ctx context.Context, keyword string, page, pageSize int) ([]models.Product, int64, error)
	UpdateProduct(ctx context.Context, product *models.Product) error
	DeleteProduct(ctx context.Context, id primitive.ObjectID) (bool, error)
	DecrementStockIfAvailable(ctx context.Context, productID primitive.ObjectID, quantity int) (bool, error)
	IncrementStock(ctx context.Context, productID primitive.ObjectID, quantity int) error
	AddReview(ctx context.Context, productID primitive.ObjectID, review models.Review, rating float64, numReviews int) error
}

// OrderStore is the order ledger surface the services depend on.
type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	GetOrdersByUserID(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error)
	GetOrders(ctx context.Context) ([]models.Order, error)
	MarkOrderPaid(ctx context.Context, id primitive.ObjectID, result models.PaymentResult, paidAt time.Time) error
	MarkOrderDelivered(ctx context.Context, id primitive.ObjectID, deliveredAt time.Time) error
}

// Notifier publishes fire-and-forget notification events.
type Notifier interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error
}

// EventDeduper remembers provider event ids across redeliveries.
type EventDeduper interface {
	MarkEventProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
}

// ProductCache is the cache-aside surface for product reads.
type ProductCache interface {
	CacheProduct(ctx context.Context, product *models.Product, ttl time.Duration) error
	GetCachedProduct(ctx context.Context, id string) (*models.Product, error)
	InvalidateProduct(ctx context.Context, id string) error
}
