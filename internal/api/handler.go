package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"closet-service/internal/apperr"
	"closet-service/internal/models"
	"closet-service/internal/service"
	"closet-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ItemService is the catalog surface used by the handlers.
type ItemService interface {
	GetItem(ctx context.Context, id string) (*models.Item, error)
	ListItems(ctx context.Context, filter models.ItemFilter) ([]models.Item, error)
	Search(ctx context.Context, term string) ([]models.Item, error)
	CreateItem(ctx context.Context, in service.CreateItemInput) (*models.Item, error)
	EditItem(ctx context.Context, id string, upd models.ItemUpdate) (*models.Item, error)
	DeleteItem(ctx context.Context, id string) error
	DeleteAllItems(ctx context.Context) (int64, error)
	DeleteOutOfStock(ctx context.Context) (int64, error)
	ImportCSV(ctx context.Context, data []byte, opts service.ImportOptions) (int, error)
}

// LedgerService records staff stock movements.
type LedgerService interface {
	AddItems(ctx context.Context, itemID string, quantity int, onyen, staffOnyen string) (*models.Transaction, error)
	RemoveItems(ctx context.Context, itemID string, quantity int, onyen, staffOnyen string) (*models.Transaction, error)
	ListTransactions(ctx context.Context) ([]models.Transaction, error)
	DeleteAllTransactions(ctx context.Context) (int64, error)
}

// OrderService runs the order workflow.
type OrderService interface {
	CreateOrder(ctx context.Context, req *service.CreateOrderRequest) (*service.CreateOrderResponse, error)
	GetOrder(ctx context.Context, id int64) (*models.Transaction, error)
	ExecuteOrder(ctx context.Context, id int64) (*models.Transaction, error)
	MarkOrderLate(ctx context.Context, id int64) (*models.Transaction, error)
	CompleteOrder(ctx context.Context, id int64, adminOnyen string) (*models.Transaction, error)
	CancelOrder(ctx context.Context, id int64, adminOnyen string) (*models.Transaction, error)
	DeleteOrder(ctx context.Context, id int64) error
	ListActiveOrders(ctx context.Context) ([]models.Transaction, error)
	ListUserOrders(ctx context.Context, onyen string) ([]models.Transaction, error)
}

// UserService manages users and resolves roles for the auth middleware.
type UserService interface {
	Role(ctx context.Context, onyen string) (models.Role, error)
	GetUser(ctx context.Context, onyen string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	CreateUser(ctx context.Context, in service.UserInput) (*models.User, error)
	EditUser(ctx context.Context, in service.UserInput) (*models.User, error)
	DeleteUser(ctx context.Context, onyen string) error
	ImportUsersCSV(ctx context.Context, data []byte, hasHeader bool) (int, error)
	ClearUsers(ctx context.Context) (int64, error)
}

// BackupService exports tables as CSV.
type BackupService interface {
	FileName(table string) string
	Export(ctx context.Context, w io.Writer, table string) error
}

// AuditService reads the audit trail.
type AuditService interface {
	ListAudit(ctx context.Context, onyen string, limit int) ([]models.AuditEntry, error)
}

// Services bundles the handler dependencies.
type Services struct {
	Items  ItemService
	Ledger LedgerService
	Orders OrderService
	Users  UserService
	Backup BackupService
	Audit  AuditService
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Handler contains HTTP handlers
type Handler struct {
	svc        Services
	authHeader string
	checks     map[string]HealthCheck
	logger     *zap.Logger
}

// NewHandler creates a new HTTP handler. authHeader names the request header
// carrying the caller's onyen; checks are run by the readiness probe.
func NewHandler(svc Services, authHeader string, checks map[string]HealthCheck) *Handler {
	if authHeader == "" {
		authHeader = "X-Remote-User"
	}
	return &Handler{
		svc:        svc,
		authHeader: authHeader,
		checks:     checks,
		logger:     util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1", h.authenticate())

	// anyone known to the closet
	v1.GET("/items", h.listItems)
	v1.GET("/items/search", h.searchItems)
	v1.GET("/items/:id", h.getItem)
	v1.POST("/orders", h.createOrder)
	v1.GET("/orders/mine", h.myOrders)

	staff := v1.Group("", requireRole(models.RoleAdmin, models.RoleVolunteer))
	{
		staff.POST("/items", h.createItem)
		staff.PUT("/items/:id", h.editItem)
		staff.POST("/entry/add", h.addItems)
		staff.POST("/entry/remove", h.removeItems)
		staff.GET("/orders", h.listOrders)
		staff.GET("/orders/:id", h.getOrder)
		staff.POST("/orders/:id/execute", h.executeOrder)
		staff.POST("/orders/:id/late", h.markOrderLate)
	}

	admin := v1.Group("", requireRole(models.RoleAdmin))
	{
		admin.DELETE("/items/:id", h.deleteItem)
		admin.DELETE("/items", h.deleteAllItems)
		admin.DELETE("/items/out-of-stock", h.deleteOutOfStock)
		admin.POST("/items/import", h.importItems)

		admin.POST("/orders/:id/complete", h.completeOrder)
		admin.POST("/orders/:id/cancel", h.cancelOrder)
		admin.DELETE("/orders/:id", h.deleteOrder)

		admin.GET("/transactions", h.listTransactions)
		admin.DELETE("/transactions", h.deleteAllTransactions)

		admin.GET("/users", h.listUsers)
		admin.GET("/users/:onyen", h.getUser)
		admin.POST("/users", h.createUser)
		admin.PUT("/users/:onyen", h.editUser)
		admin.DELETE("/users/:onyen", h.deleteUser)
		admin.POST("/users/import", h.importUsers)
		admin.DELETE("/users", h.clearUsers)

		admin.GET("/backup/:table", h.backup)
		admin.GET("/audit", h.listAudit)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready only when every dependency answers
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// respondError writes err with the status matching its kind
func (h *Handler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrReservedUser):
		status = http.StatusForbidden
	case apperr.KindOf(err) == apperr.KindBadRequest:
		status = http.StatusBadRequest
	case apperr.KindOf(err) == apperr.KindReferentialIntegrity:
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}

	c.AbortWithStatusJSON(status, gin.H{"error": apperr.Message(err)})
}

func badRequest(c *gin.Context, msg string, err error) {
	body := gin.H{"error": msg}
	if err != nil {
		body["details"] = err.Error()
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, body)
}

// idParam parses the numeric :id of an order row
func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "Invalid order ID", nil)
		return 0, false
	}
	return id, true
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
