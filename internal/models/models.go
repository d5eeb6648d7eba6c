package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents a registered account. PasswordHash is excluded from JSON
// responses and from default store projections.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username     string             `bson:"username" json:"username"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password_hash" json:"-"`
	GoogleID     string             `bson:"google_id,omitempty" json:"-"`
	IsAdmin      bool               `bson:"is_admin" json:"isAdmin"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

// Review is embedded in a product and has no independent lifecycle.
type Review struct {
	Name      string             `bson:"name" json:"name"`
	Rating    float64            `bson:"rating" json:"rating"`
	Comment   string             `bson:"comment" json:"comment"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// Product represents a catalog entry. Rating and NumReviews are derived from
// the embedded reviews and recomputed whenever a review is appended.
type Product struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID      primitive.ObjectID `bson:"user_id" json:"user"`
	Name        string             `bson:"name" json:"name"`
	Image       string             `bson:"image" json:"image"`
	Description string             `bson:"description" json:"description"`
	Category    string             `bson:"category" json:"category"`
	Price       float64            `bson:"price" json:"price"`
	Stock       int                `bson:"stock" json:"countInStock"`
	Reviews     []Review           `bson:"reviews" json:"reviews"`
	Rating      float64            `bson:"rating" json:"rating"`
	NumReviews  int                `bson:"num_reviews" json:"numReviews"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

// ShippingAddress holds the destination for an order. All fields are required.
type ShippingAddress struct {
	Address    string `bson:"address" json:"address" binding:"required"`
	City       string `bson:"city" json:"city" binding:"required"`
	PostalCode string `bson:"postal_code" json:"postalCode" binding:"required"`
	Country    string `bson:"country" json:"country" binding:"required"`
}

// OrderItem is an immutable snapshot of a product line captured at order
// creation. It is never re-derived from the live catalog afterwards.
type OrderItem struct {
	ProductID primitive.ObjectID `bson:"product_id" json:"product"`
	Name      string             `bson:"name" json:"name"`
	Image     string             `bson:"image" json:"image"`
	Quantity  int                `bson:"quantity" json:"quantity"`
	UnitPrice float64            `bson:"unit_price" json:"price"`
}

// PaymentResult records the provider-side settlement outcome. It is populated
// only after a verified webhook settles the order.
type PaymentResult struct {
	TransactionID string    `bson:"transaction_id" json:"id"`
	Status        string    `bson:"status" json:"status"`
	UpdateTime    time.Time `bson:"update_time" json:"update_time"`
	PayerEmail    string    `bson:"payer_email" json:"email_address"`
}

// Order represents a customer order. Price fields are server-computed once at
// creation; totalPrice = itemsPrice + taxPrice + shippingPrice.
type Order struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID          primitive.ObjectID `bson:"user_id" json:"user"`
	Items           []OrderItem        `bson:"items" json:"orderItems"`
	ShippingAddress ShippingAddress    `bson:"shipping_address" json:"shippingAddress"`
	PaymentMethod   string             `bson:"payment_method" json:"paymentMethod"`
	PaymentResult   *PaymentResult     `bson:"payment_result,omitempty" json:"paymentResult,omitempty"`
	ItemsPrice      float64            `bson:"items_price" json:"itemsPrice"`
	TaxPrice        float64            `bson:"tax_price" json:"taxPrice"`
	ShippingPrice   float64            `bson:"shipping_price" json:"shippingPrice"`
	TotalPrice      float64            `bson:"total_price" json:"totalPrice"`
	IsPaid          bool               `bson:"is_paid" json:"isPaid"`
	PaidAt          *time.Time         `bson:"paid_at,omitempty" json:"paidAt,omitempty"`
	IsDelivered     bool               `bson:"is_delivered" json:"isDelivered"`
	DeliveredAt     *time.Time         `bson:"delivered_at,omitempty" json:"deliveredAt,omitempty"`
	CreatedAt       time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at" json:"updated_at"`
}

// StockDecrement is one staged instruction produced by cart validation and
// committed later as a single bulk conditional write.
type StockDecrement struct {
	ProductID primitive.ObjectID
	Quantity  int
}
