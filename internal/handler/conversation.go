package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/middleware"
	"dispatch/internal/service"
)

// ConversationHandler handles the multi-message chat flows.
type ConversationHandler struct {
	conversationService *service.ConversationService
}

// NewConversationHandler creates a new ConversationHandler.
func NewConversationHandler(conversationService *service.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversationService: conversationService}
}

// InputRequest is a free-text chat message.
type InputRequest struct {
	Text string `json:"text"`
}

// DraftOptionsRequest turns a draft into a pre-order or sets its payment method.
type DraftOptionsRequest struct {
	ScheduledAt   *time.Time `json:"scheduled_at,omitempty"`
	PaymentMethod string     `json:"payment_method,omitempty"`
}

// Input handles POST /v1/chat/input
func (h *ConversationHandler) Input(c *gin.Context) {
	var req InputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	reply, err := h.conversationService.HandleInput(c.Request.Context(), middleware.ActorID(c), req.Text)
	respondReply(c, http.StatusOK, reply, err)
}

// StartDraft handles POST /v1/drafts
func (h *ConversationHandler) StartDraft(c *gin.Context) {
	reply, err := h.conversationService.StartOrder(c.Request.Context(), middleware.ActorID(c))
	respondReply(c, http.StatusCreated, reply, err)
}

// SetDraftOptions handles PUT /v1/drafts/options
func (h *ConversationHandler) SetDraftOptions(c *gin.Context) {
	var req DraftOptionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	opts := service.DraftOptions{PaymentMethod: domain.PaymentMethod(req.PaymentMethod)}
	if req.ScheduledAt != nil {
		opts.ScheduledAt = *req.ScheduledAt
	}
	reply, err := h.conversationService.SetDraftOptions(c.Request.Context(), middleware.ActorID(c), opts)
	respondReply(c, http.StatusOK, reply, err)
}

// ConfirmDraft handles POST /v1/drafts/confirm
func (h *ConversationHandler) ConfirmDraft(c *gin.Context) {
	reply, err := h.conversationService.ConfirmOrder(c.Request.Context(), middleware.ActorID(c))
	respondReply(c, http.StatusCreated, reply, err)
}

// CancelDraft handles DELETE /v1/drafts
func (h *ConversationHandler) CancelDraft(c *gin.Context) {
	if err := h.conversationService.CancelDraft(c.Request.Context(), middleware.ActorID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// StartRegistration handles POST /v1/drivers/registration
func (h *ConversationHandler) StartRegistration(c *gin.Context) {
	reply, err := h.conversationService.StartRegistration(c.Request.Context(), middleware.ActorID(c))
	respondReply(c, http.StatusCreated, reply, err)
}
