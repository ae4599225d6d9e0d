package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"storefront/internal/models"
	"storefront/internal/service"
	"storefront/internal/store"
	"storefront/internal/util"
	"storefront/internal/validation"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

// The services the handlers depend on, satisfied by the concrete types in package service

type AuthService interface {
	Register(ctx context.Context, req *validation.RegisterRequest) (*models.User, error)
	Login(ctx context.Context, req *validation.LoginRequest) (*service.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*service.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	Authenticate(token string) (service.Actor, error)
}

type OrderService interface {
	CreateOrder(ctx context.Context, actor service.Actor, req *validation.CreateOrderRequest, idempotencyKey string) (*service.PlaceOrderResult, error)
	GetOrder(ctx context.Context, actor service.Actor, id string) (*models.Order, error)
	ListOrders(ctx context.Context, actor service.Actor) ([]models.Order, error)
	UpdateOrder(ctx context.Context, actor service.Actor, id string, req *validation.UpdateOrderRequest) (*models.Order, error)
	DeleteOrder(ctx context.Context, actor service.Actor, id string) error
}

type ProductService interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	ListProducts(ctx context.Context, filter store.ProductFilter) (*store.OffsetPage, error)
	CreateProduct(ctx context.Context, req *validation.ProductRequest) (*models.Product, error)
	UpdateProduct(ctx context.Context, id string, req *validation.ProductRequest) (*models.Product, error)
	DeleteProduct(ctx context.Context, id string) error
}

type CardService interface {
	CreateCard(ctx context.Context, actor service.Actor, req *validation.CardRequest) (*models.Card, error)
	GetCard(ctx context.Context, actor service.Actor, id string) (*models.Card, error)
	ListCards(ctx context.Context, actor service.Actor) ([]models.Card, error)
	UpdateCard(ctx context.Context, actor service.Actor, id string, req *validation.CardRequest) (*models.Card, error)
	SetDefaultCard(ctx context.Context, actor service.Actor, id string) (*models.Card, error)
	DeleteCard(ctx context.Context, actor service.Actor, id string) error
}

type AddressService interface {
	CreateAddress(ctx context.Context, actor service.Actor, req *validation.AddressRequest) (*models.Address, error)
	GetAddress(ctx context.Context, actor service.Actor, id string) (*models.Address, error)
	ListAddresses(ctx context.Context, actor service.Actor) ([]models.Address, error)
	UpdateAddress(ctx context.Context, actor service.Actor, id string, req *validation.AddressRequest) (*models.Address, error)
	SetDefaultAddress(ctx context.Context, actor service.Actor, id string) (*models.Address, error)
	DeleteAddress(ctx context.Context, actor service.Actor, id string) error
}

type CartService interface {
	CreateCart(ctx context.Context, actor service.Actor, req *validation.CartRequest) (*models.Cart, error)
	GetCart(ctx context.Context, actor service.Actor, id string) (*models.Cart, error)
	ListCarts(ctx context.Context, actor service.Actor) ([]models.Cart, error)
	ReplaceItems(ctx context.Context, actor service.Actor, id string, req *validation.CartRequest) (*models.Cart, error)
	DeleteCart(ctx context.Context, actor service.Actor, id string) error
}

type UserService interface {
	CreateUser(ctx context.Context, req *validation.CreateUserRequest) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	UpdateUser(ctx context.Context, id string, req *validation.UpdateUserRequest) (*models.User, error)
	DeleteUser(ctx context.Context, id string) error
}

var (
	_ AuthService    = (*service.AuthService)(nil)
	_ OrderService   = (*service.OrderService)(nil)
	_ ProductService = (*service.ProductService)(nil)
	_ CardService    = (*service.CardService)(nil)
	_ AddressService = (*service.AddressService)(nil)
	_ CartService    = (*service.CartService)(nil)
	_ UserService    = (*service.UserService)(nil)
)

// Services bundles every handler dependency
type Services struct {
	Auth      AuthService
	Orders    OrderService
	Products  ProductService
	Cards     CardService
	Addresses AddressService
	Carts     CartService
	Users     UserService
}

// ReadinessCheck reports whether a dependency can serve traffic
type ReadinessCheck func(ctx context.Context) error

// Handler contains HTTP handlers
type Handler struct {
	svc       Services
	validate  *validatorv10.Validate
	readiness map[string]ReadinessCheck
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(svc Services, readiness map[string]ReadinessCheck) *Handler {
	return &Handler{
		svc:       svc,
		validate:  validation.New(),
		readiness: readiness,
		logger:    util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(tracingMiddleware())
	router.Use(prometheusMiddleware())
	router.Use(requestLogger(h.logger))

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")

	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/register", h.register)
		authGroup.POST("/login", h.login)
		authGroup.POST("/refresh-token", h.refreshToken)
		authGroup.POST("/logout", h.logout)
	}

	v1.GET("/products", h.listProducts)
	v1.GET("/products/:id", h.getProduct)

	authed := v1.Group("", h.authMiddleware())
	{
		admin := authed.Group("", requireAdmin())
		admin.POST("/products", h.createProduct)
		admin.PUT("/products/:id", h.updateProduct)
		admin.DELETE("/products/:id", h.deleteProduct)

		authed.POST("/orders", h.createOrder)
		authed.GET("/orders", h.listOrders)
		authed.GET("/orders/:id", h.getOrder)
		authed.PUT("/orders/:id", h.updateOrder)
		authed.DELETE("/orders/:id", h.deleteOrder)

		authed.POST("/cards", h.createCard)
		authed.GET("/cards", h.listCards)
		authed.GET("/cards/:id", h.getCard)
		authed.PUT("/cards/:id", h.updateCard)
		authed.DELETE("/cards/:id", h.deleteCard)
		authed.POST("/cards/:id/default", h.setDefaultCard)

		authed.POST("/addresses", h.createAddress)
		authed.GET("/addresses", h.listAddresses)
		authed.GET("/addresses/:id", h.getAddress)
		authed.PUT("/addresses/:id", h.updateAddress)
		authed.DELETE("/addresses/:id", h.deleteAddress)
		authed.POST("/addresses/:id/default", h.setDefaultAddress)

		authed.POST("/carts", h.createCart)
		authed.GET("/carts", h.listCarts)
		authed.GET("/carts/:id", h.getCart)
		authed.PUT("/carts/:id", h.replaceCartItems)
		authed.DELETE("/carts/:id", h.deleteCart)

		authed.GET("/users/me", h.me)
		admin.POST("/users", h.createUser)
		admin.GET("/users", h.listUsers)
		admin.GET("/users/:id", h.getUser)
		admin.PUT("/users/:id", h.updateUser)
		admin.DELETE("/users/:id", h.deleteUser)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports 503 until every dependency answers
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	ready := true
	for name, check := range h.readiness {
		if err := check(ctx); err != nil {
			ready = false
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status": status,
		"checks": checks,
		"time":   time.Now().Unix(),
	})
}

// bind decodes and validates the JSON body, writing the 400 itself on failure
func (h *Handler) bind(c *gin.Context, out interface{}) bool {
	return validation.BindAndValidate(c, out, h.validate) == nil
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		util.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		util.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}

// tracingMiddleware opens one server span per request named after the matched route
func tracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.FullPath()
		if name == "" {
			name = "unmatched"
		}
		ctx, span := util.StartServerSpan(c.Request.Context(),
			propagation.HeaderCarrier(c.Request.Header), c.Request.Method+" "+name)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		span.SetAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", name),
			attribute.Int("http.status_code", c.Writer.Status()),
		)
		if len(c.Errors) > 0 {
			util.FailSpan(span, c.Errors.Last())
		}
	}
}

// requestLogger writes one structured line per request
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if actor, ok := c.Get(actorKey); ok {
			fields = append(fields, zap.String("user_id", actor.(service.Actor).UserID))
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("HTTP request", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			logger.Warn("HTTP request", fields...)
		default:
			logger.Info("HTTP request", fields...)
		}
	}
}
