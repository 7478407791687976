package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch/internal/middleware"
	"dispatch/internal/service"
)

// AdminHandler handles dispatcher requests. Routes are guarded by middleware.RequireAdmin.
type AdminHandler struct {
	orderService        *service.OrderService
	driverService       *service.DriverService
	conversationService *service.ConversationService
	admins              *service.AdminRegistry
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	orderService *service.OrderService,
	driverService *service.DriverService,
	conversationService *service.ConversationService,
	admins *service.AdminRegistry,
) *AdminHandler {
	return &AdminHandler{
		orderService:        orderService,
		driverService:       driverService,
		conversationService: conversationService,
		admins:              admins,
	}
}

// AssignRequest is the HTTP request body for assigning a driver.
type AssignRequest struct {
	DriverID string `json:"driver_id"`
}

// AddAdminRequest is the HTTP request body for adding an administrator.
type AddAdminRequest struct {
	ExternalID int64 `json:"external_id"`
}

// StatsResponse is the HTTP response for dashboard figures.
type StatsResponse struct {
	TotalOrders     int `json:"total_orders"`
	CompletedOrders int `json:"completed_orders"`
	ActiveOrders    int `json:"active_orders"`
	Clients         int `json:"clients"`
	ApprovedDrivers int `json:"approved_drivers"`
}

// BulkCancelResponse is the HTTP response for cancelling all active orders.
type BulkCancelResponse struct {
	Cancelled       int `json:"cancelled"`
	ReleasedDrivers int `json:"released_drivers"`
}

// DriversResponse splits drivers into pending and approved registrations.
type DriversResponse struct {
	Pending  []DriverSummaryResponse `json:"pending"`
	Approved []DriverSummaryResponse `json:"approved"`
}

// ActiveOrders handles GET /v1/admin/orders/active
func (h *AdminHandler) ActiveOrders(c *gin.Context) {
	orders, err := h.orderService.ActiveOrders(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toOrderResponses(orders))
}

// History handles GET /v1/admin/orders/history
func (h *AdminHandler) History(c *gin.Context) {
	orders, err := h.orderService.History(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toOrderResponses(orders))
}

// Stats handles GET /v1/admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.orderService.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, StatsResponse{
		TotalOrders:     stats.TotalOrders,
		CompletedOrders: stats.CompletedOrders,
		ActiveOrders:    stats.ActiveOrders,
		Clients:         stats.Clients,
		ApprovedDrivers: stats.ApprovedDrivers,
	})
}

// SetPrice handles POST /v1/admin/orders/:id/price
func (h *AdminHandler) SetPrice(c *gin.Context) {
	var req PriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	order, err := h.orderService.SetPrice(c.Request.Context(), middleware.ActorID(c), c.Param("id"), req.Price)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toOrderResponse(order))
}

// AskPrice handles POST /v1/admin/orders/:id/price/prompt
func (h *AdminHandler) AskPrice(c *gin.Context) {
	reply, err := h.conversationService.AskPrice(c.Request.Context(), middleware.ActorID(c), c.Param("id"))
	respondReply(c, http.StatusOK, reply, err)
}

// AcceptCounter handles POST /v1/admin/orders/:id/counter/accept
func (h *AdminHandler) AcceptCounter(c *gin.Context) {
	order, err := h.orderService.AcceptCounter(c.Request.Context(), middleware.ActorID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toOrderResponse(order))
}

// DeclineCounter handles POST /v1/admin/orders/:id/counter/decline
func (h *AdminHandler) DeclineCounter(c *gin.Context) {
	order, err := h.orderService.DeclineCounter(c.Request.Context(), middleware.ActorID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toOrderResponse(order))
}

// Counter handles POST /v1/admin/orders/:id/counter
func (h *AdminHandler) Counter(c *gin.Context) {
	var req PriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	order, err := h.orderService.AdminCounter(c.Request.Context(), middleware.ActorID(c), c.Param("id"), req.Price)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toOrderResponse(order))
}

// AskCounter handles POST /v1/admin/orders/:id/counter/prompt
func (h *AdminHandler) AskCounter(c *gin.Context) {
	reply, err := h.conversationService.AskAdminCounter(c.Request.Context(), middleware.ActorID(c), c.Param("id"))
	respondReply(c, http.StatusOK, reply, err)
}

// Assign handles POST /v1/admin/orders/:id/assign
func (h *AdminHandler) Assign(c *gin.Context) {
	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.DriverID == "" {
		badRequest(c, "driver_id is required")
		return
	}
	result, err := h.orderService.AssignDriver(c.Request.Context(), middleware.ActorID(c), c.Param("id"), req.DriverID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{
		"order":  toOrderResponse(result.Order),
		"driver": toDriverResponse(result.Driver),
	})
}

// CancelAll handles POST /v1/admin/orders/cancel-all
func (h *AdminHandler) CancelAll(c *gin.Context) {
	result, err := h.orderService.BulkCancel(c.Request.Context(), middleware.ActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, BulkCancelResponse{
		Cancelled:       len(result.Orders),
		ReleasedDrivers: len(result.ReleasedDrivers),
	})
}

// Drivers handles GET /v1/admin/drivers
func (h *AdminHandler) Drivers(c *gin.Context) {
	overview, err := h.driverService.Overview(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, DriversResponse{
		Pending:  toDriverSummaries(overview.Pending),
		Approved: toDriverSummaries(overview.Approved),
	})
}

// AssignableDrivers handles GET /v1/admin/drivers/assignable
func (h *AdminHandler) AssignableDrivers(c *gin.Context) {
	drivers, err := h.driverService.ListAssignable(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toDriverSummaries(drivers))
}

// ApproveDriver handles POST /v1/admin/drivers/:id/approve
func (h *AdminHandler) ApproveDriver(c *gin.Context) {
	driver, err := h.driverService.Approve(c.Request.Context(), middleware.ActorID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toDriverResponse(driver))
}

// RejectDriver handles POST /v1/admin/drivers/:id/reject
func (h *AdminHandler) RejectDriver(c *gin.Context) {
	if _, err := h.driverService.Reject(c.Request.Context(), middleware.ActorID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddAdmin handles POST /v1/admin/admins
func (h *AdminHandler) AddAdmin(c *gin.Context) {
	var req AddAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if err := h.admins.Add(c.Request.Context(), middleware.ActorID(c), req.ExternalID); err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, gin.H{"admins": h.admins.AllAdminIDs()})
}

// AskAddAdmin handles POST /v1/admin/admins/prompt
func (h *AdminHandler) AskAddAdmin(c *gin.Context) {
	reply, err := h.conversationService.AskAddAdmin(c.Request.Context(), middleware.ActorID(c))
	respondReply(c, http.StatusOK, reply, err)
}
