package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/middleware"
	"dispatch/internal/service"
)

// OrderHandler handles the client side of orders.
type OrderHandler struct {
	orderService        *service.OrderService
	reviewService       *service.ReviewService
	userService         *service.UserService
	conversationService *service.ConversationService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(
	orderService *service.OrderService,
	reviewService *service.ReviewService,
	userService *service.UserService,
	conversationService *service.ConversationService,
) *OrderHandler {
	return &OrderHandler{
		orderService:        orderService,
		reviewService:       reviewService,
		userService:         userService,
		conversationService: conversationService,
	}
}

// CreateOrderRequest is the HTTP request body for creating an order in one call.
type CreateOrderRequest struct {
	FromAddress   string     `json:"from_address"`
	ToAddress     string     `json:"to_address"`
	Comment       string     `json:"comment,omitempty"`
	ScheduledAt   *time.Time `json:"scheduled_at,omitempty"`
	PaymentMethod string     `json:"payment_method,omitempty"` // CASH, CARD
}

// CounterOfferRequest is the HTTP request body for a client counter-offer.
type CounterOfferRequest struct {
	Amount float64 `json:"amount"`
}

// RateRequest is the HTTP request body for rating an order.
type RateRequest struct {
	Rating int `json:"rating"`
}

// CommentRequest is the HTTP request body for a review comment.
type CommentRequest struct {
	Comment string `json:"comment"`
}

// clientID resolves the internal user ID of the caller.
func (h *OrderHandler) clientID(c *gin.Context) (string, bool) {
	user, err := h.userService.Get(c.Request.Context(), middleware.ActorID(c))
	if err != nil {
		respondError(c, err)
		return "", false
	}
	return user.ID, true
}

// CreateOrder handles POST /v1/orders
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	clientID, ok := h.clientID(c)
	if !ok {
		return
	}

	create := service.CreateOrderRequest{
		ClientID:      clientID,
		FromAddress:   req.FromAddress,
		ToAddress:     req.ToAddress,
		Comment:       req.Comment,
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
	}
	if req.ScheduledAt != nil {
		create.ScheduledAt = *req.ScheduledAt
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), create)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, toOrderResponse(order))
}

// MyOrders handles GET /v1/orders
func (h *OrderHandler) MyOrders(c *gin.Context) {
	clientID, ok := h.clientID(c)
	if !ok {
		return
	}

	orders, err := h.orderService.ClientOrders(c.Request.Context(), clientID)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		r := toOrderResponse(o.Order)
		r.CanRate = o.CanRate
		response = append(response, r)
	}
	respondJSON(c, http.StatusOK, response)
}

// AcceptPrice handles POST /v1/orders/:id/accept
func (h *OrderHandler) AcceptPrice(c *gin.Context) {
	clientID, ok := h.clientID(c)
	if !ok {
		return
	}
	order, err := h.orderService.AcceptPrice(c.Request.Context(), clientID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toOrderResponse(order))
}

// DeclinePrice handles POST /v1/orders/:id/decline
func (h *OrderHandler) DeclinePrice(c *gin.Context) {
	clientID, ok := h.clientID(c)
	if !ok {
		return
	}
	order, err := h.orderService.DeclinePrice(c.Request.Context(), clientID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toOrderResponse(order))
}

// CounterOffer handles POST /v1/orders/:id/counter
func (h *OrderHandler) CounterOffer(c *gin.Context) {
	var req CounterOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	clientID, ok := h.clientID(c)
	if !ok {
		return
	}

	order, err := h.orderService.CounterOffer(c.Request.Context(), clientID, c.Param("id"), req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toOrderResponse(order))
}

// AskCounterOffer handles POST /v1/orders/:id/counter/prompt
func (h *OrderHandler) AskCounterOffer(c *gin.Context) {
	reply, err := h.conversationService.AskCounterOffer(c.Request.Context(), middleware.ActorID(c), c.Param("id"))
	respondReply(c, http.StatusOK, reply, err)
}

// Rate handles POST /v1/orders/:id/review
func (h *OrderHandler) Rate(c *gin.Context) {
	var req RateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	clientID, ok := h.clientID(c)
	if !ok {
		return
	}

	review, err := h.reviewService.Rate(c.Request.Context(), clientID, c.Param("id"), req.Rating)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, toReviewResponse(review))
}

// Comment handles PUT /v1/orders/:id/review/comment
func (h *OrderHandler) Comment(c *gin.Context) {
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	clientID, ok := h.clientID(c)
	if !ok {
		return
	}

	review, err := h.reviewService.AddComment(c.Request.Context(), clientID, c.Param("id"), req.Comment)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toReviewResponse(review))
}

// AskComment handles POST /v1/orders/:id/review/comment/prompt
func (h *OrderHandler) AskComment(c *gin.Context) {
	reply, err := h.conversationService.AskReviewComment(c.Request.Context(), middleware.ActorID(c), c.Param("id"))
	respondReply(c, http.StatusOK, reply, err)
}
