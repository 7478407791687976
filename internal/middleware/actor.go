package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	// ActorHeader carries the chat identity of the caller.
	ActorHeader = "X-Actor-ID"
	// MessageHeader names the chat message whose buttons triggered the request.
	MessageHeader = "X-Message-ID"

	actorKey = "actor_id"
)

// ActorMiddleware requires a positive numeric X-Actor-ID and stores it in the context.
func ActorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.GetHeader(ActorHeader), 10, 64)
		if err != nil || id <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid " + ActorHeader})
			return
		}
		c.Set(actorKey, id)
		c.Next()
	}
}

// ActorID returns the caller identity set by ActorMiddleware.
func ActorID(c *gin.Context) int64 {
	return c.GetInt64(actorKey)
}

// AdminChecker reports whether a chat identity is a dispatcher.
type AdminChecker interface {
	IsAdmin(externalID int64) bool
}

// RequireAdmin rejects callers that are not dispatchers.
func RequireAdmin(admins AdminChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !admins.IsAdmin(ActorID(c)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "administrator rights required"})
			return
		}
		c.Next()
	}
}

// ActionClearer removes the buttons of a delivered message.
type ActionClearer interface {
	ClearActions(ctx context.Context, chatID int64, messageID string) error
}

// ClearActionsMiddleware removes the buttons of the message named by
// X-Message-ID once the action succeeded, so a button is pressed only once.
func ClearActionsMiddleware(clearer ActionClearer, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		messageID := c.GetHeader(MessageHeader)
		if messageID == "" || c.Writer.Status() >= http.StatusBadRequest {
			return
		}
		actorID := ActorID(c)
		if err := clearer.ClearActions(c.Request.Context(), actorID, messageID); err != nil {
			logger.WarnContext(c.Request.Context(), "failed to clear message actions",
				slog.Int64("chat_id", actorID),
				slog.String("message_id", messageID),
				slog.Any("error", err),
			)
		}
	}
}
