package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch/internal/middleware"
	"dispatch/internal/service"
)

// UserHandler handles HTTP requests for chat clients.
type UserHandler struct {
	userService         *service.UserService
	conversationService *service.ConversationService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userService *service.UserService, conversationService *service.ConversationService) *UserHandler {
	return &UserHandler{
		userService:         userService,
		conversationService: conversationService,
	}
}

// TouchRequest is the HTTP request body with the chat profile of the caller.
type TouchRequest struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// PhoneRequest is the HTTP request body for updating the phone.
type PhoneRequest struct {
	Phone string `json:"phone"`
}

// Touch handles PUT /v1/users/me
func (h *UserHandler) Touch(c *gin.Context) {
	var req TouchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	user, err := h.userService.Touch(c.Request.Context(), service.TouchRequest{
		ExternalID: middleware.ActorID(c),
		Username:   req.Username,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toUserResponse(user))
}

// Me handles GET /v1/users/me
func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.userService.Get(c.Request.Context(), middleware.ActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toUserResponse(user))
}

// UpdatePhone handles PUT /v1/users/me/phone
func (h *UserHandler) UpdatePhone(c *gin.Context) {
	var req PhoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	user, err := h.userService.UpdatePhone(c.Request.Context(), middleware.ActorID(c), req.Phone)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toUserResponse(user))
}

// AskPhone handles POST /v1/users/me/phone/prompt
func (h *UserHandler) AskPhone(c *gin.Context) {
	reply, err := h.conversationService.AskPhone(c.Request.Context(), middleware.ActorID(c))
	respondReply(c, http.StatusOK, reply, err)
}
