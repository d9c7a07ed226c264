package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/orderbridge/backend/internal/domain/fulfillment"
	"github.com/orderbridge/backend/internal/domain/shared"
	"github.com/orderbridge/backend/internal/infrastructure/logger"
	"github.com/orderbridge/backend/internal/interfaces/http/dto"
)

// Platform webhook headers
const (
	// DeliveryIDHeader uniquely identifies one webhook delivery; redeliveries
	// of the same event reuse it
	DeliveryIDHeader = "X-Shopify-Webhook-Id"
	// TopicHeader names the webhook topic (e.g. "orders/create")
	TopicHeader = "X-Shopify-Topic"
)

// OrderService runs one orchestration cycle for an order-created trigger
type OrderService interface {
	HandleOrderCreated(ctx context.Context, orderID string) (*fulfillment.Outcome, error)
}

// CancellationService clears shipping state after a courier cancellation
type CancellationService interface {
	HandleFulfillmentCancelled(ctx context.Context, orderID string) error
}

// WebhookMetrics records webhook delivery traffic. A nil recorder is valid.
type WebhookMetrics interface {
	RecordWebhookDelivery(ctx context.Context, topic string, duplicate bool)
}

// WebhookHandler receives the platform's webhook deliveries. The platform
// delivers at-least-once and retries non-2xx responses, so the contract is:
// verify the signature, deduplicate exact redeliveries, then always
// acknowledge with 200 once processing ran; operation failures are folded
// into the order's durable state by the orchestrator, never into the status
// code.
type WebhookHandler struct {
	BaseHandler
	invoicing OrderService
	shipping  OrderService
	cancel    CancellationService
	dedup     shared.IdempotencyStore
	dedupTTL  time.Duration
	metrics   WebhookMetrics
	logger    *zap.Logger
}

// NewWebhookHandler creates a WebhookHandler. dedup may be nil to disable
// delivery deduplication; metrics may be nil.
func NewWebhookHandler(
	invoicing OrderService,
	shipping OrderService,
	cancel CancellationService,
	dedup shared.IdempotencyStore,
	dedupTTL time.Duration,
	metrics WebhookMetrics,
	log *zap.Logger,
) *WebhookHandler {
	if dedupTTL <= 0 {
		dedupTTL = shared.DefaultIdempotencyConfig().TTL
	}
	return &WebhookHandler{
		invoicing: invoicing,
		shipping:  shipping,
		cancel:    cancel,
		dedup:     dedup,
		dedupTTL:  dedupTTL,
		metrics:   metrics,
		logger:    log,
	}
}

// HandleOrderCreated processes an orders/create delivery: invoice first, then
// waybill. The two operations fail or succeed independently.
func (h *WebhookHandler) HandleOrderCreated(c *gin.Context) {
	orderID, ok := h.orderIDFromBody(c)
	if !ok {
		return
	}

	if h.ackDuplicate(c) {
		return
	}

	ctx, log := logger.WithOrderID(c.Request.Context(), h.logger, orderID)

	outcomes := make([]dto.OperationOutcome, 0, 2)
	for _, run := range []struct {
		operation string
		svc       OrderService
	}{
		{"invoice", h.invoicing},
		{"awb", h.shipping},
	} {
		if run.svc == nil {
			continue
		}
		outcome, err := run.svc.HandleOrderCreated(ctx, orderID)
		if err != nil {
			// Could not even read the order: a redelivery may succeed, so
			// let the platform retry.
			log.Error("webhook processing failed before orchestration",
				zap.String("operation", run.operation),
				zap.Error(err),
			)
			h.InternalError(c, "order state unavailable")
			return
		}
		outcomes = append(outcomes, dto.NewOperationOutcome(run.operation, outcome))
	}

	h.recordDelivery(c, false)
	c.JSON(http.StatusOK, dto.WebhookAck{Received: true, Outcomes: outcomes})
}

// HandleFulfillmentCancelled processes a fulfillments/cancel delivery
func (h *WebhookHandler) HandleFulfillmentCancelled(c *gin.Context) {
	orderID, ok := h.orderIDFromBody(c)
	if !ok {
		return
	}

	if h.ackDuplicate(c) {
		return
	}

	ctx, log := logger.WithOrderID(c.Request.Context(), h.logger, orderID)
	if err := h.cancel.HandleFulfillmentCancelled(ctx, orderID); err != nil {
		log.Error("failed to clear shipping state", zap.Error(err))
		h.InternalError(c, "order state unavailable")
		return
	}

	h.recordDelivery(c, false)
	c.JSON(http.StatusOK, dto.WebhookAck{
		Received: true,
		Message:  "shipping state cleared",
	})
}

func (h *WebhookHandler) orderIDFromBody(c *gin.Context) (string, bool) {
	var payload dto.OrderWebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, "invalid webhook payload")
		return "", false
	}
	id := payload.ResolveOrderID()
	if id == 0 {
		h.BadRequest(c, "webhook payload carries no order id")
		return "", false
	}
	return strconv.FormatInt(id, 10), true
}

// ackDuplicate short-circuits exact redeliveries using the delivery ID. The
// dedup store fails open: when it cannot answer, the delivery is processed
// and the tag-based idempotency guard catches actual duplicates downstream.
func (h *WebhookHandler) ackDuplicate(c *gin.Context) bool {
	deliveryID := c.GetHeader(DeliveryIDHeader)
	if h.dedup == nil || deliveryID == "" {
		return false
	}

	fresh, err := h.dedup.MarkProcessed(c.Request.Context(), deliveryID, h.dedupTTL)
	if err != nil {
		h.logger.Warn("delivery dedup check failed, processing anyway",
			zap.String("delivery_id", deliveryID),
			zap.Error(err),
		)
		return false
	}
	if fresh {
		return false
	}

	h.logger.Info("duplicate webhook delivery acknowledged",
		zap.String("delivery_id", deliveryID),
		zap.String("topic", c.GetHeader(TopicHeader)),
	)
	h.recordDelivery(c, true)
	c.JSON(http.StatusOK, dto.WebhookAck{Received: true, Duplicate: true})
	return true
}

func (h *WebhookHandler) recordDelivery(c *gin.Context, duplicate bool) {
	if h.metrics == nil {
		return
	}
	h.metrics.RecordWebhookDelivery(c.Request.Context(), c.GetHeader(TopicHeader), duplicate)
}
