package service

import (
	"context"
	"fmt"
	"time"

	"shop-backend/internal/models"
	"shop-backend/internal/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeCatalog is an in-memory CatalogStore.
type fakeCatalog struct {
	products map[primitive.ObjectID]*models.Product
	// forceInsufficient makes the conditional decrement fail for one product
	// even though the read-time check passed, simulating a racing order.
	forceInsufficient map[primitive.ObjectID]bool
}

func newFakeCatalog(products ...*models.Product) *fakeCatalog {
	f := &fakeCatalog{
		products:          make(map[primitive.ObjectID]*models.Product),
		forceInsufficient: make(map[primitive.ObjectID]bool),
	}
	for _, p := range products {
		f.products[p.ID] = p
	}
	return f
}

func (f *fakeCatalog) CreateProduct(_ context.Context, product *models.Product) error {
	if product.ID.IsZero() {
		product.ID = primitive.NewObjectID()
	}
	product.CreatedAt = time.Now()
	f.products[product.ID] = product
	return nil
}

func (f *fakeCatalog) GetProductByID(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeCatalog) GetProductsByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.Product, error) {
	var out []models.Product
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeCatalog) SearchProducts(_ context.Context, _ string, _, _ int) ([]models.Product, int64, error) {
	var out []models.Product
	for _, p := range f.products {
		out = append(out, *p)
	}
	return out, int64(len(out)), nil
}

func (f *fakeCatalog) UpdateProduct(_ context.Context, product *models.Product) error {
	cp := *product
	f.products[product.ID] = &cp
	return nil
}

func (f *fakeCatalog) DeleteProduct(_ context.Context, id primitive.ObjectID) (bool, error) {
	if _, ok := f.products[id]; !ok {
		return false, nil
	}
	delete(f.products, id)
	return true, nil
}

func (f *fakeCatalog) DecrementStockIfAvailable(_ context.Context, productID primitive.ObjectID, quantity int) (bool, error) {
	p, ok := f.products[productID]
	if !ok {
		return false, nil
	}
	if f.forceInsufficient[productID] || p.Stock < quantity {
		return false, nil
	}
	p.Stock -= quantity
	return true, nil
}

func (f *fakeCatalog) IncrementStock(_ context.Context, productID primitive.ObjectID, quantity int) error {
	p, ok := f.products[productID]
	if !ok {
		return fmt.Errorf("product not found: %s", productID.Hex())
	}
	p.Stock += quantity
	return nil
}

func (f *fakeCatalog) AddReview(_ context.Context, productID primitive.ObjectID, review models.Review, rating float64, numReviews int) error {
	p, ok := f.products[productID]
	if !ok {
		return fmt.Errorf("product not found: %s", productID.Hex())
	}
	p.Reviews = append(p.Reviews, review)
	p.Rating = rating
	p.NumReviews = numReviews
	return nil
}

// fakeOrders is an in-memory OrderStore.
type fakeOrders struct {
	orders    map[primitive.ObjectID]*models.Order
	createErr error
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{orders: make(map[primitive.ObjectID]*models.Order)}
}

func (f *fakeOrders) CreateOrder(_ context.Context, order *models.Order) error {
	if f.createErr != nil {
		return f.createErr
	}
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	order.CreatedAt = time.Now()
	cp := *order
	f.orders[order.ID] = &cp
	return nil
}

func (f *fakeOrders) GetOrderByID(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) GetOrdersByUserID(_ context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	var out []models.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrders) GetOrders(_ context.Context) ([]models.Order, error) {
	var out []models.Order
	for _, o := range f.orders {
		out = append(out, *o)
	}
	return out, nil
}

func (f *fakeOrders) MarkOrderPaid(_ context.Context, id primitive.ObjectID, result models.PaymentResult, paidAt time.Time) error {
	o, ok := f.orders[id]
	if !ok {
		return fmt.Errorf("order not found: %s", id.Hex())
	}
	o.IsPaid = true
	o.PaidAt = &paidAt
	o.PaymentResult = &result
	return nil
}

func (f *fakeOrders) MarkOrderDelivered(_ context.Context, id primitive.ObjectID, deliveredAt time.Time) error {
	o, ok := f.orders[id]
	if !ok {
		return fmt.Errorf("order not found: %s", id.Hex())
	}
	o.IsDelivered = true
	o.DeliveredAt = &deliveredAt
	return nil
}

// fakeUsers is an in-memory UserStore.
type fakeUsers struct {
	users map[primitive.ObjectID]*models.User
}

func newFakeUsers(users ...*models.User) *fakeUsers {
	f := &fakeUsers{users: make(map[primitive.ObjectID]*models.User)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) CreateUser(_ context.Context, user *models.User) error {
	for _, u := range f.users {
		if u.Email == user.Email {
			return store.ErrDuplicate
		}
		if user.GoogleID != "" && u.GoogleID == user.GoogleID {
			return store.ErrDuplicate
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	user.CreatedAt = time.Now()
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUsers) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) GetUserByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetUserByGoogleID(_ context.Context, googleID string) (*models.User, error) {
	for _, u := range f.users {
		if u.GoogleID == googleID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

// fakeNotifier records published notification events.
type fakeNotifier struct {
	placed []*models.OrderPlacedEvent
	paid   []*models.OrderPaidEvent
	err    error
}

func (f *fakeNotifier) PublishOrderPlaced(_ context.Context, event *models.OrderPlacedEvent) error {
	if f.err != nil {
		return f.err
	}
	f.placed = append(f.placed, event)
	return nil
}

func (f *fakeNotifier) PublishOrderPaid(_ context.Context, event *models.OrderPaidEvent) error {
	if f.err != nil {
		return f.err
	}
	f.paid = append(f.paid, event)
	return nil
}

// fakeDeduper remembers provider event ids.
type fakeDeduper struct {
	seen map[string]bool
}

func newFakeDeduper() *fakeDeduper {
	return &fakeDeduper{seen: make(map[string]bool)}
}

func (f *fakeDeduper) MarkEventProcessed(_ context.Context, eventID string, _ time.Duration) (bool, error) {
	if f.seen[eventID] {
		return false, nil
	}
	f.seen[eventID] = true
	return true, nil
}
