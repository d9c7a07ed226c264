// Package router wires the HTTP routes to their handlers.
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/orderbridge/backend/internal/interfaces/http/handler"
)

// Config carries the handlers and route-level middleware
type Config struct {
	Webhooks *handler.WebhookHandler
	Admin    *handler.AdminHandler
	Health   *handler.HealthHandler

	// WebhookSignature guards the webhook group; nil disables verification
	// (development only)
	WebhookSignature gin.HandlerFunc
}

// Setup registers all routes on the engine
func Setup(engine *gin.Engine, cfg Config) {
	engine.GET("/healthz", cfg.Health.Healthz)

	webhooks := engine.Group("/webhooks")
	if cfg.WebhookSignature != nil {
		webhooks.Use(cfg.WebhookSignature)
	}
	webhooks.POST("/orders/create", cfg.Webhooks.HandleOrderCreated)
	webhooks.POST("/fulfillments/cancel", cfg.Webhooks.HandleFulfillmentCancelled)

	admin := engine.Group("/admin")
	admin.POST("/retry", cfg.Admin.Retry)
}
