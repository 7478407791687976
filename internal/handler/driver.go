package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/middleware"
	"dispatch/internal/service"
)

// DriverHandler handles HTTP requests made by drivers about themselves.
type DriverHandler struct {
	driverService *service.DriverService
	orderService  *service.OrderService
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(driverService *service.DriverService, orderService *service.OrderService) *DriverHandler {
	return &DriverHandler{
		driverService: driverService,
		orderService:  orderService,
	}
}

// RegisterDriverRequest is the HTTP request body for a registration sent in one call.
type RegisterDriverRequest struct {
	Name                string         `json:"name"`
	LicenseNumber       string         `json:"license_number"`
	VehicleRegistration string         `json:"vehicle_registration"`
	PlateNumber         string         `json:"plate_number"`
	Photos              []domain.Photo `json:"photos"`
}

// DutyStatusRequest is the HTTP request body for going on or off duty.
type DutyStatusRequest struct {
	Status string `json:"status"` // ON_DUTY, OFF_DUTY
}

// EarningsResponse is the HTTP response for driver earnings.
type EarningsResponse struct {
	Today float64 `json:"today"`
	Month float64 `json:"month"`
	Total float64 `json:"total"`
}

// CompletionResponse is the HTTP response for a completed order.
type CompletionResponse struct {
	Order      OrderResponse `json:"order"`
	Earning    float64       `json:"earning"`
	DutyStatus string        `json:"duty_status"`
}

// current resolves the calling driver.
func (h *DriverHandler) current(c *gin.Context) (*domain.Driver, bool) {
	driver, err := h.driverService.GetByExternalID(c.Request.Context(), middleware.ActorID(c))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return driver, true
}

// Register handles POST /v1/drivers
func (h *DriverHandler) Register(c *gin.Context) {
	var req RegisterDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	driver, err := h.driverService.Register(c.Request.Context(), middleware.ActorID(c), &domain.RegistrationDraft{
		Name:                req.Name,
		LicenseNumber:       req.LicenseNumber,
		VehicleRegistration: req.VehicleRegistration,
		PlateNumber:         req.PlateNumber,
		Photos:              req.Photos,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, toDriverResponse(driver))
}

// Me handles GET /v1/drivers/me
func (h *DriverHandler) Me(c *gin.Context) {
	driver, ok := h.current(c)
	if !ok {
		return
	}
	respondJSON(c, http.StatusOK, toDriverResponse(driver))
}

// SetDutyStatus handles PUT /v1/drivers/me/duty
func (h *DriverHandler) SetDutyStatus(c *gin.Context) {
	var req DutyStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	driver, ok := h.current(c)
	if !ok {
		return
	}

	updated, err := h.driverService.SetDutyStatus(c.Request.Context(), driver.ID, domain.DutyStatus(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toDriverResponse(updated))
}

// Orders handles GET /v1/drivers/me/orders
func (h *DriverHandler) Orders(c *gin.Context) {
	driver, ok := h.current(c)
	if !ok {
		return
	}
	orders, err := h.orderService.DriverOrders(c.Request.Context(), driver.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toOrderResponses(orders))
}

// Earnings handles GET /v1/drivers/me/earnings
func (h *DriverHandler) Earnings(c *gin.Context) {
	driver, ok := h.current(c)
	if !ok {
		return
	}
	summary, err := h.driverService.Earnings(c.Request.Context(), driver.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, EarningsResponse{Today: summary.Today, Month: summary.Month, Total: summary.Total})
}

// Arrived handles POST /v1/drivers/me/orders/:id/arrived
func (h *DriverHandler) Arrived(c *gin.Context) {
	driver, ok := h.current(c)
	if !ok {
		return
	}
	result, err := h.orderService.DriverArrived(c.Request.Context(), driver.ID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toDriverResponse(result.Driver))
}

// Complete handles POST /v1/drivers/me/orders/:id/complete
func (h *DriverHandler) Complete(c *gin.Context) {
	driver, ok := h.current(c)
	if !ok {
		return
	}
	result, err := h.orderService.CompleteOrder(c.Request.Context(), driver.ID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, CompletionResponse{
		Order:      toOrderResponse(result.Order),
		Earning:    result.Earning.Amount,
		DutyStatus: string(result.Driver.DutyStatus),
	})
}
