package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appfulfillment "github.com/orderbridge/backend/internal/application/fulfillment"
	"github.com/orderbridge/backend/internal/infrastructure/logger"
	"github.com/orderbridge/backend/internal/interfaces/http/dto"
)

// BatchRetrier fans a batch of order retries out; RetryService is the
// production implementation
type BatchRetrier interface {
	RetryOrders(ctx context.Context, operation string, orderIDs []string) ([]appfulfillment.RetryResult, error)
}

// AdminHandler exposes the operator endpoints
type AdminHandler struct {
	BaseHandler
	retrier BatchRetrier
	logger  *zap.Logger
}

// NewAdminHandler creates an AdminHandler
func NewAdminHandler(retrier BatchRetrier, log *zap.Logger) *AdminHandler {
	return &AdminHandler{retrier: retrier, logger: log}
}

// Retry re-runs an operation for a batch of orders. Per-order failures land
// in the per-order results; the endpoint itself fails only on invalid input.
func (h *AdminHandler) Retry(c *gin.Context) {
	var req dto.RetryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	ctx, _ := logger.WithOperation(c.Request.Context(), h.logger, req.Operation)
	results, err := h.retrier.RetryOrders(ctx, req.Operation, req.OrderIDs)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	resp := dto.RetryResponse{
		Operation: req.Operation,
		Results:   make([]dto.RetryOrderResult, 0, len(results)),
	}
	for _, r := range results {
		item := dto.RetryOrderResult{OrderID: r.OrderID}
		if r.Err != nil {
			item.Error = r.Err.Error()
		} else {
			outcome := dto.NewOperationOutcome(req.Operation, r.Outcome)
			item.Outcome = &outcome
		}
		resp.Results = append(resp.Results, item)
	}
	h.Success(c, resp)
}
