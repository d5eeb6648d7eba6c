package service

import (
	"context"
	"time"

	"shop-backend/internal/apperr"
	"shop-backend/internal/models"
	"shop-backend/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const freeShippingThreshold = 100

var (
	taxRate      = decimal.NewFromFloat(0.10)
	flatShipping = decimal.NewFromInt(10)
	thresholdDec = decimal.NewFromInt(freeShippingThreshold)
)

// OrderService validates carts, prices them from the catalog and persists
// orders.
type OrderService struct {
	catalog   CatalogStore
	orders    OrderStore
	publisher Notifier
	logger    *zap.Logger
}

// NewOrderService creates a new order service. Publisher may be nil when
// notifications are disabled.
func NewOrderService(catalog CatalogStore, orders OrderStore, publisher Notifier) *OrderService {
	return &OrderService{
		catalog:   catalog,
		orders:    orders,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// OrderItemRequest is one requested cart line. The caller never supplies a
// price; unit prices always come from the catalog.
type OrderItemRequest struct {
	Product  string `json:"product" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
}

// CreateOrderRequest represents a request to place an order.
type CreateOrderRequest struct {
	Items           []OrderItemRequest     `json:"orderItems" binding:"required"`
	ShippingAddress models.ShippingAddress `json:"shippingAddress" binding:"required"`
	PaymentMethod   string                 `json:"paymentMethod" binding:"required"`
}

// cartPlan is the validator output: immutable line snapshots, server-computed
// prices and staged stock decrements. Nothing has been applied yet.
type cartPlan struct {
	Items         []models.OrderItem
	Decrements    []models.StockDecrement
	ItemsPrice    float64
	TaxPrice      float64
	ShippingPrice float64
	TotalPrice    float64
}

// validateCart resolves every requested line against the catalog in a single
// bulk lookup and prices the cart. Any single-line failure aborts the whole
// cart; there is no partial fulfillment.
func (s *OrderService) validateCart(ctx context.Context, items []OrderItemRequest) (*cartPlan, error) {
	if len(items) == 0 {
		return nil, apperr.Validation("cart is empty")
	}

	ids := make([]primitive.ObjectID, 0, len(items))
	for _, item := range items {
		oid, err := primitive.ObjectIDFromHex(item.Product)
		if err != nil {
			return nil, apperr.Newf(apperr.KindValidation, "invalid product id %q", item.Product)
		}
		ids = append(ids, oid)
	}

	products, err := s.catalog.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("failed to resolve cart products", err)
	}

	byID := make(map[primitive.ObjectID]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	plan := &cartPlan{
		Items:      make([]models.OrderItem, 0, len(items)),
		Decrements: make([]models.StockDecrement, 0, len(items)),
	}
	itemsPrice := decimal.Zero

	for i, item := range items {
		product, ok := byID[ids[i]]
		if !ok {
			return nil, apperr.Newf(apperr.KindNotFound, "product %s not found", item.Product)
		}
		if item.Quantity > product.Stock {
			util.StockRejectionsTotal.Inc()
			return nil, apperr.Newf(apperr.KindOutOfStock, "insufficient stock for %s", product.Name)
		}

		lineTotal := decimal.NewFromFloat(product.Price).Mul(decimal.NewFromInt(int64(item.Quantity)))
		itemsPrice = itemsPrice.Add(lineTotal)

		plan.Items = append(plan.Items, models.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			Image:     product.Image,
			Quantity:  item.Quantity,
			UnitPrice: product.Price,
		})
		plan.Decrements = append(plan.Decrements, models.StockDecrement{
			ProductID: product.ID,
			Quantity:  item.Quantity,
		})
	}

	taxPrice := itemsPrice.Mul(taxRate).Round(2)
	shippingPrice := flatShipping
	if itemsPrice.GreaterThan(thresholdDec) {
		shippingPrice = decimal.Zero
	}
	totalPrice := itemsPrice.Add(taxPrice).Add(shippingPrice)

	plan.ItemsPrice, _ = itemsPrice.Float64()
	plan.TaxPrice, _ = taxPrice.Float64()
	plan.ShippingPrice, _ = shippingPrice.Float64()
	plan.TotalPrice, _ = totalPrice.Float64()

	return plan, nil
}

// commitStock applies the staged decrements as per-product conditional
// updates. On a line that no longer has sufficient stock (raced by a
// concurrent order), all decrements applied so far are released and the
// whole commit fails.
func (s *OrderService) commitStock(ctx context.Context, plan *cartPlan) error {
	applied := make([]models.StockDecrement, 0, len(plan.Decrements))

	for i, dec := range plan.Decrements {
		ok, err := s.catalog.DecrementStockIfAvailable(ctx, dec.ProductID, dec.Quantity)
		if err != nil {
			s.releaseStock(ctx, applied)
			return apperr.Internal("failed to commit stock", err)
		}
		if !ok {
			util.StockRejectionsTotal.Inc()
			s.releaseStock(ctx, applied)
			return apperr.Newf(apperr.KindOutOfStock, "insufficient stock for %s", plan.Items[i].Name)
		}
		applied = append(applied, dec)
	}

	return nil
}

// releaseStock rolls back applied decrements (compensation).
func (s *OrderService) releaseStock(ctx context.Context, applied []models.StockDecrement) {
	for _, dec := range applied {
		if err := s.catalog.IncrementStock(ctx, dec.ProductID, dec.Quantity); err != nil {
			s.logger.Error("Failed to release stock",
				zap.String("product_id", dec.ProductID.Hex()),
				zap.Int("quantity", dec.Quantity),
				zap.Error(err))
		}
	}
}

// CreateOrder validates and prices the cart, commits the stock decrement and
// persists the order. Stock is taken before the order document exists, so a
// persisted order always references committed stock.
func (s *OrderService) CreateOrder(ctx context.Context, actor *models.User, req *CreateOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	start := time.Now()
	defer func() {
		util.OrderCreateLatency.Observe(time.Since(start).Seconds())
	}()

	plan, err := s.validateCart(ctx, req.Items)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues(failReason(err)).Inc()
		return nil, err
	}

	if err := s.commitStock(ctx, plan); err != nil {
		util.OrdersFailedTotal.WithLabelValues(failReason(err)).Inc()
		return nil, err
	}

	order := &models.Order{
		UserID:          actor.ID,
		Items:           plan.Items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		ItemsPrice:      plan.ItemsPrice,
		TaxPrice:        plan.TaxPrice,
		ShippingPrice:   plan.ShippingPrice,
		TotalPrice:      plan.TotalPrice,
		IsPaid:          false,
		IsDelivered:     false,
	}

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		s.releaseStock(ctx, plan.Decrements)
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, apperr.Internal("failed to persist order", err)
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.String("order_id", order.ID.Hex()),
		zap.String("user_id", actor.ID.Hex()),
		zap.Float64("total_price", order.TotalPrice))

	s.notifyOrderPlaced(ctx, order, actor)
	return order, nil
}

// notifyOrderPlaced publishes the order-confirmation event. Failures are
// logged and swallowed; they never roll back the order.
func (s *OrderService) notifyOrderPlaced(ctx context.Context, order *models.Order, actor *models.User) {
	if s.publisher == nil {
		return
	}

	event := &models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPlaced,
			Timestamp: time.Now(),
		},
		OrderID:    order.ID.Hex(),
		Username:   actor.Username,
		Email:      actor.Email,
		TotalPrice: order.TotalPrice,
		ItemCount:  len(order.Items),
	}

	if err := s.publisher.PublishOrderPlaced(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPlaced event",
			zap.String("order_id", order.ID.Hex()),
			zap.Error(err))
	}
}

// GetOrder retrieves an order for its owner or a privileged actor.
func (s *OrderService) GetOrder(ctx context.Context, actor *models.User, id string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperr.Validation("invalid order id")
	}

	order, err := s.orders.GetOrderByID(ctx, oid)
	if err != nil {
		return nil, apperr.Internal("failed to load order", err)
	}
	if order == nil {
		return nil, apperr.NotFound("order not found")
	}

	if !CanModify(actor.ID, actor.IsAdmin, order.UserID) {
		return nil, apperr.Forbidden("not allowed to view this order")
	}
	return order, nil
}

// ListMyOrders retrieves the caller's orders.
func (s *OrderService) ListMyOrders(ctx context.Context, actor *models.User) ([]models.Order, error) {
	orders, err := s.orders.GetOrdersByUserID(ctx, actor.ID)
	if err != nil {
		return nil, apperr.Internal("failed to list orders", err)
	}
	return orders, nil
}

// ListOrders retrieves all orders. The privileged-role check happens at the
// route boundary.
func (s *OrderService) ListOrders(ctx context.Context) ([]models.Order, error) {
	orders, err := s.orders.GetOrders(ctx)
	if err != nil {
		return nil, apperr.Internal("failed to list orders", err)
	}
	return orders, nil
}

// MarkDelivered flips the delivered flag exactly once.
func (s *OrderService) MarkDelivered(ctx context.Context, id string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.MarkDelivered")
	defer span.End()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperr.Validation("invalid order id")
	}

	order, err := s.orders.GetOrderByID(ctx, oid)
	if err != nil {
		return nil, apperr.Internal("failed to load order", err)
	}
	if order == nil {
		return nil, apperr.NotFound("order not found")
	}
	if order.IsDelivered {
		return nil, apperr.Conflict("order already delivered")
	}

	now := time.Now()
	if err := s.orders.MarkOrderDelivered(ctx, oid, now); err != nil {
		return nil, apperr.Internal("failed to mark order delivered", err)
	}

	util.OrdersDeliveredTotal.Inc()
	order.IsDelivered = true
	order.DeliveredAt = &now
	return order, nil
}

func failReason(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return "invalid_items"
	case apperr.KindNotFound:
		return "product_not_found"
	case apperr.KindOutOfStock:
		return "insufficient_stock"
	default:
		return "db_error"
	}
}
