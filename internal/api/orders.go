package api

import (
	"net/http"

	"closet-service/internal/models"
	"closet-service/internal/service"

	"github.com/gin-gonic/gin"
)

// entryRequest is a staff stock movement
type entryRequest struct {
	ItemID   string `json:"item_id" binding:"required"`
	Quantity int    `json:"quantity" binding:"required"`
	Onyen    string `json:"onyen" binding:"required"`
}

func (h *Handler) addItems(c *gin.Context) {
	var req entryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	t, err := h.svc.Ledger.AddItems(c.Request.Context(), req.ItemID, req.Quantity, req.Onyen, callerOnyen(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *Handler) removeItems(c *gin.Context) {
	var req entryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	t, err := h.svc.Ledger.RemoveItems(c.Request.Context(), req.ItemID, req.Quantity, req.Onyen, callerOnyen(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *Handler) listTransactions(c *gin.Context) {
	txs, err := h.svc.Ledger.ListTransactions(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

func (h *Handler) deleteAllTransactions(c *gin.Context) {
	n, err := h.svc.Ledger.DeleteAllTransactions(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

// createOrder places an order. Requesters always order for themselves; staff
// may order on behalf of someone else.
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	if !isStaff(c) || req.Onyen == "" {
		req.Onyen = callerOnyen(c)
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	resp, err := h.svc.Orders.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	status := http.StatusCreated
	if resp.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, resp)
}

func (h *Handler) myOrders(c *gin.Context) {
	txs, err := h.svc.Orders.ListUserOrders(c.Request.Context(), callerOnyen(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": txs})
}

func (h *Handler) listOrders(c *gin.Context) {
	txs, err := h.svc.Orders.ListActiveOrders(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": txs})
}

func (h *Handler) getOrder(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	t, err := h.svc.Orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// orderAction adapts one state transition to a handler
func (h *Handler) orderAction(fn func(c *gin.Context, id int64) (*models.Transaction, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		t, err := fn(c, id)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

func (h *Handler) executeOrder(c *gin.Context) {
	h.orderAction(func(c *gin.Context, id int64) (*models.Transaction, error) {
		return h.svc.Orders.ExecuteOrder(c.Request.Context(), id)
	})(c)
}

func (h *Handler) markOrderLate(c *gin.Context) {
	h.orderAction(func(c *gin.Context, id int64) (*models.Transaction, error) {
		return h.svc.Orders.MarkOrderLate(c.Request.Context(), id)
	})(c)
}

func (h *Handler) completeOrder(c *gin.Context) {
	h.orderAction(func(c *gin.Context, id int64) (*models.Transaction, error) {
		return h.svc.Orders.CompleteOrder(c.Request.Context(), id, callerOnyen(c))
	})(c)
}

func (h *Handler) cancelOrder(c *gin.Context) {
	h.orderAction(func(c *gin.Context, id int64) (*models.Transaction, error) {
		return h.svc.Orders.CancelOrder(c.Request.Context(), id, callerOnyen(c))
	})(c)
}

func (h *Handler) deleteOrder(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.svc.Orders.DeleteOrder(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
