package fulfillment

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/orderbridge/backend/internal/domain/fulfillment"
)

// DefaultBatchConcurrency bounds the parallel orchestration runs in a batch
const DefaultBatchConcurrency = 4

// ErrUnknownOperation indicates a retry request for an operation this service
// does not drive
var ErrUnknownOperation = errors.New("fulfillment: unknown retry operation")

// OrderProcessor runs one orchestration cycle for one order. InvoicingService
// and ShippingService are the implementations.
type OrderProcessor interface {
	ProcessOrder(ctx context.Context, orderID string) (*fulfillment.Outcome, error)
}

// RetryResult is the per-order outcome of a batch retry. Outcome and Err are
// mutually exclusive: Err is set only when the orchestrator could not run at
// all (order fetch failure), not on FINAL_FAILURE outcomes.
type RetryResult struct {
	OrderID string
	Outcome *fulfillment.Outcome
	Err     error
}

// RetryService fans a batch of order retries out over a bounded worker pool.
// Orders fail or succeed independently: one order's failure never aborts the
// rest of the batch.
type RetryService struct {
	processors  map[string]OrderProcessor
	concurrency int
	logger      *zap.Logger
}

// NewRetryService creates a RetryService over the two operation drivers
func NewRetryService(invoicing OrderProcessor, shipping OrderProcessor, concurrency int, logger *zap.Logger) *RetryService {
	if concurrency < 1 {
		concurrency = DefaultBatchConcurrency
	}
	return &RetryService{
		processors: map[string]OrderProcessor{
			OpInvoice: invoicing,
			OpWaybill: shipping,
		},
		concurrency: concurrency,
		logger:      logger,
	}
}

// RetryOrders re-runs the named operation for every order in the batch,
// collecting per-order results in input order. Attempt numbers resume from
// each order's durable retry state.
func (s *RetryService) RetryOrders(ctx context.Context, operation string, orderIDs []string) ([]RetryResult, error) {
	proc, ok := s.processors[operation]
	if !ok || proc == nil {
		return nil, ErrUnknownOperation
	}

	s.logger.Info("batch retry started",
		zap.String("operation", operation),
		zap.Int("orders", len(orderIDs)),
		zap.Int("concurrency", s.concurrency),
	)

	results := make([]RetryResult, len(orderIDs))
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	for i, orderID := range orderIDs {
		wg.Add(1)
		go func(i int, orderID string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			outcome, err := proc.ProcessOrder(ctx, orderID)
			results[i] = RetryResult{OrderID: orderID, Outcome: outcome, Err: err}
		}(i, orderID)
	}
	wg.Wait()

	return results, nil
}
