package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"shop-backend/internal/apperr"
	"shop-backend/internal/service"
	"shop-backend/internal/upload"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	authService    *service.AuthService
	productService *service.ProductService
	orderService   *service.OrderService
	paymentService *service.PaymentService
	storage        upload.Storage
}

// NewHandler creates a new HTTP handler
func NewHandler(
	authService *service.AuthService,
	productService *service.ProductService,
	orderService *service.OrderService,
	paymentService *service.PaymentService,
	storage upload.Storage,
) *Handler {
	return &Handler{
		authService:    authService,
		productService: productService,
		orderService:   orderService,
		paymentService: paymentService,
		storage:        storage,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := router.Group("/auth")
	{
		auth.POST("/register", h.register)
		auth.POST("/login", h.login)
		auth.POST("/google", h.googleLogin)
	}

	products := router.Group("/products")
	{
		products.GET("", h.listProducts)
		products.GET("/:id", h.getProduct)
		products.POST("", h.requireAuth(), h.createProduct)
		products.PUT("/:id", h.requireAuth(), h.updateProduct)
		products.DELETE("/:id", h.requireAuth(), h.requireAdmin(), h.deleteProduct)
		products.POST("/:id/reviews", h.requireAuth(), h.addReview)
	}

	router.POST("/upload", h.requireAuth(), h.uploadImage)

	orders := router.Group("/orders")
	{
		orders.POST("", h.requireAuth(), h.createOrder)
		orders.GET("/myOrders", h.requireAuth(), h.listMyOrders)
		orders.GET("/:id", h.requireAuth(), h.getOrder)
		orders.GET("", h.requireAuth(), h.requireAdmin(), h.listOrders)
		orders.PUT("/:id/deliver", h.requireAuth(), h.requireAdmin(), h.deliverOrder)
	}

	payment := router.Group("/payment")
	{
		payment.GET("/config", h.paymentConfig)
		payment.POST("/create-payment-intent", h.requireAuth(), h.createPaymentIntent)
		payment.POST("/webhook", h.paymentWebhook)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Wrap(apperr.KindValidation, "invalid request body", err))
		return
	}

	resp, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, "registered", resp)
}

func (h *Handler) login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Wrap(apperr.KindValidation, "invalid request body", err))
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "logged in", resp)
}

func (h *Handler) googleLogin(c *gin.Context) {
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Wrap(apperr.KindValidation, "invalid request body", err))
		return
	}

	resp, err := h.authService.LoginWithGoogle(c.Request.Context(), req.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "logged in", resp)
}

func (h *Handler) listProducts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))

	resp, err := h.productService.ListProducts(c.Request.Context(), c.Query("keyword"), page)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "products", resp)
}

func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.productService.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "product", product)
}

func (h *Handler) createProduct(c *gin.Context) {
	var req service.ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Wrap(apperr.KindValidation, "invalid request body", err))
		return
	}

	product, err := h.productService.CreateProduct(c.Request.Context(), currentUser(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, "product created", product)
}

func (h *Handler) updateProduct(c *gin.Context) {
	var req service.ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Wrap(apperr.KindValidation, "invalid request body", err))
		return
	}

	product, err := h.productService.UpdateProduct(c.Request.Context(), currentUser(c), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "product updated", product)
}

func (h *Handler) deleteProduct(c *gin.Context) {
	if err := h.productService.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "product deleted", nil)
}

func (h *Handler) addReview(c *gin.Context) {
	var req service.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Wrap(apperr.KindValidation, "invalid request body", err))
		return
	}

	if err := h.productService.AddReview(c.Request.Context(), currentUser(c), c.Param("id"), &req); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, "review added", nil)
}

// uploadImage stores an uploaded image in object storage and returns its
// public URL. The local temp file is removed once the upload finished.
func (h *Handler) uploadImage(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		respondError(c, apperr.Wrap(apperr.KindValidation, "missing image file", err))
		return
	}

	tmpPath := filepath.Join(os.TempDir(), uuid.New().String()+filepath.Ext(file.Filename))
	if err := c.SaveUploadedFile(file, tmpPath); err != nil {
		respondError(c, apperr.Internal("failed to store upload", err))
		return
	}
	defer os.Remove(tmpPath)

	url, err := h.storage.UploadFile(c.Request.Context(), tmpPath, file.Header.Get("Content-Type"))
	if err != nil {
		respondError(c, apperr.Upstream("failed to upload image", err))
		return
	}
	respondOK(c, http.StatusCreated, "image uploaded", gin.H{"url": url})
}

func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Wrap(apperr.KindValidation, "invalid request body", err))
		return
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), currentUser(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, "order created", order)
}

func (h *Handler) listMyOrders(c *gin.Context) {
	orders, err := h.orderService.ListMyOrders(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "orders", orders)
}

func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.orderService.GetOrder(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "order", order)
}

func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.orderService.ListOrders(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "orders", orders)
}

func (h *Handler) deliverOrder(c *gin.Context) {
	order, err := h.orderService.MarkDelivered(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "order delivered", order)
}

func (h *Handler) paymentConfig(c *gin.Context) {
	respondOK(c, http.StatusOK, "config", gin.H{
		"publishableKey": h.paymentService.PublishableKey(),
	})
}

func (h *Handler) createPaymentIntent(c *gin.Context) {
	var req service.CreateIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Wrap(apperr.KindValidation, "invalid request body", err))
		return
	}

	resp, err := h.paymentService.CreateIntent(c.Request.Context(), currentUser(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, "payment intent created", resp)
}

// paymentWebhook reads the raw body so the provider signature can be checked
// against the exact bytes sent. It must never go through JSON binding.
func (h *Handler) paymentWebhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		respondError(c, apperr.Wrap(apperr.KindValidation, "unreadable body", err))
		return
	}

	sig := c.GetHeader("Stripe-Signature")
	if err := h.paymentService.HandleWebhook(c.Request.Context(), payload, sig); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "received", nil)
}
