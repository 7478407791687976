package app

import (
	"log/slog"
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"dispatch/internal/handler"
	"dispatch/internal/messaging"
	"dispatch/internal/middleware"
	"dispatch/internal/service"
)

// RouterDeps contains all dependencies needed for the router.
// RedisClient and NewRelicApp are optional.
type RouterDeps struct {
	fx.In

	OrderHandler        *handler.OrderHandler
	AdminHandler        *handler.AdminHandler
	DriverHandler       *handler.DriverHandler
	UserHandler         *handler.UserHandler
	ConversationHandler *handler.ConversationHandler
	Admins              *service.AdminRegistry
	Channel             messaging.Channel
	Logger              *slog.Logger
	RedisClient         *redis.Client         `optional:"true"`
	NewRelicApp         *newrelic.Application `optional:"true"`
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/v1")
	v1.Use(middleware.ActorMiddleware())
	v1.Use(middleware.TransactionAttributes())
	if deps.RedisClient != nil {
		v1.Use(middleware.IdempotencyMiddleware(deps.RedisClient, deps.Logger))
	}
	v1.Use(middleware.ClearActionsMiddleware(deps.Channel, deps.Logger))
	{
		users := v1.Group("/users/me")
		{
			users.PUT("", deps.UserHandler.Touch)
			users.GET("", deps.UserHandler.Me)
			users.PUT("/phone", deps.UserHandler.UpdatePhone)
			users.POST("/phone/prompt", deps.UserHandler.AskPhone)
		}

		v1.POST("/chat/input", deps.ConversationHandler.Input)

		drafts := v1.Group("/drafts")
		{
			drafts.POST("", deps.ConversationHandler.StartDraft)
			drafts.PUT("/options", deps.ConversationHandler.SetDraftOptions)
			drafts.POST("/confirm", deps.ConversationHandler.ConfirmDraft)
			drafts.DELETE("", deps.ConversationHandler.CancelDraft)
		}

		orders := v1.Group("/orders")
		{
			orders.POST("", deps.OrderHandler.CreateOrder)
			orders.GET("", deps.OrderHandler.MyOrders)
			orders.POST("/:id/accept", deps.OrderHandler.AcceptPrice)
			orders.POST("/:id/decline", deps.OrderHandler.DeclinePrice)
			orders.POST("/:id/counter", deps.OrderHandler.CounterOffer)
			orders.POST("/:id/counter/prompt", deps.OrderHandler.AskCounterOffer)
			orders.POST("/:id/review", deps.OrderHandler.Rate)
			orders.PUT("/:id/review/comment", deps.OrderHandler.Comment)
			orders.POST("/:id/review/comment/prompt", deps.OrderHandler.AskComment)
		}

		drivers := v1.Group("/drivers")
		{
			drivers.POST("", deps.DriverHandler.Register)
			drivers.POST("/registration", deps.ConversationHandler.StartRegistration)
			drivers.GET("/me", deps.DriverHandler.Me)
			drivers.PUT("/me/duty", deps.DriverHandler.SetDutyStatus)
			drivers.GET("/me/orders", deps.DriverHandler.Orders)
			drivers.GET("/me/earnings", deps.DriverHandler.Earnings)
			drivers.POST("/me/orders/:id/arrived", deps.DriverHandler.Arrived)
			drivers.POST("/me/orders/:id/complete", deps.DriverHandler.Complete)
		}

		admin := v1.Group("/admin")
		admin.Use(middleware.RequireAdmin(deps.Admins))
		{
			admin.GET("/orders/active", deps.AdminHandler.ActiveOrders)
			admin.GET("/orders/history", deps.AdminHandler.History)
			admin.POST("/orders/cancel-all", deps.AdminHandler.CancelAll)
			admin.POST("/orders/:id/price", deps.AdminHandler.SetPrice)
			admin.POST("/orders/:id/price/prompt", deps.AdminHandler.AskPrice)
			admin.POST("/orders/:id/counter", deps.AdminHandler.Counter)
			admin.POST("/orders/:id/counter/prompt", deps.AdminHandler.AskCounter)
			admin.POST("/orders/:id/counter/accept", deps.AdminHandler.AcceptCounter)
			admin.POST("/orders/:id/counter/decline", deps.AdminHandler.DeclineCounter)
			admin.POST("/orders/:id/assign", deps.AdminHandler.Assign)
			admin.GET("/stats", deps.AdminHandler.Stats)
			admin.GET("/drivers", deps.AdminHandler.Drivers)
			admin.GET("/drivers/assignable", deps.AdminHandler.AssignableDrivers)
			admin.POST("/drivers/:id/approve", deps.AdminHandler.ApproveDriver)
			admin.POST("/drivers/:id/reject", deps.AdminHandler.RejectDriver)
			admin.POST("/admins", deps.AdminHandler.AddAdmin)
			admin.POST("/admins/prompt", deps.AdminHandler.AskAddAdmin)
		}
	}

	return router
}
