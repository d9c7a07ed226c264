package fulfillment

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/orderbridge/backend/internal/domain/fulfillment"
)

// OpWaybill is the waybill operation name used in tags and fields
const OpWaybill = "awb"

// ShippingConfig holds waybill creation defaults
type ShippingConfig struct {
	// ServiceID selects the courier service, adapter default when empty
	ServiceID string
	// PickupPointID selects the sender pickup point, adapter default when empty
	PickupPointID string
	// DefaultWeightKg is the parcel weight when the order carries none
	DefaultWeightKg decimal.Decimal
	// CollectOnDelivery collects the order total on delivery for unpaid orders
	CollectOnDelivery bool
}

// ShippingService drives waybill creation for an order and clears shipping
// state when the courier cancels a fulfillment so the order can be re-shipped.
type ShippingService struct {
	store        fulfillment.StateStore
	adapter      fulfillment.ShippingAdapter
	orchestrator *fulfillment.Orchestrator
	logger       *zap.Logger
	cfg          ShippingConfig
}

// NewShippingService creates a ShippingService. The idempotency guard also
// inspects fulfillment tracking numbers: a waybill created outside this
// service still counts as an existing side effect.
func NewShippingService(
	store fulfillment.StateStore,
	adapter fulfillment.ShippingAdapter,
	cfg ShippingConfig,
	logger *zap.Logger,
	opts ...fulfillment.OrchestratorOption,
) *ShippingService {
	guard := fulfillment.NewIdempotencyGuard(store, fulfillment.GuardConfig{
		Operation:         OpWaybill,
		CheckFulfillments: true,
	}, logger)

	return &ShippingService{
		store:        store,
		adapter:      adapter,
		orchestrator: fulfillment.NewOrchestrator(store, guard, logger, opts...),
		logger:       logger,
		cfg:          cfg,
	}
}

// HandleOrderCreated processes an order-created webhook delivery
func (s *ShippingService) HandleOrderCreated(ctx context.Context, orderID string) (*fulfillment.Outcome, error) {
	return s.ProcessOrder(ctx, orderID)
}

// ProcessOrder reads the order's current platform state and runs one waybill
// orchestration cycle
func (s *ShippingService) ProcessOrder(ctx context.Context, orderID string) (*fulfillment.Outcome, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.orchestrator.Run(ctx, order, &waybillOperation{svc: s}, nil)
}

// HandleFulfillmentCancelled clears the order's shipping tags and fields after
// a courier-side cancellation, so a later trigger can create a fresh waybill
// instead of being short-circuited by the idempotency guard.
func (s *ShippingService) HandleFulfillmentCancelled(ctx context.Context, orderID string) error {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}

	tags := order.Tags.Clone()
	tags.Remove(fulfillment.SuccessTag(OpWaybill))
	tags.RemoveFunc(func(tag string) bool {
		return fulfillment.IsErrorTag(OpWaybill, tag)
	})

	// Empty values delete the fields on the platform
	cleared := []string{
		fulfillment.ReferenceFieldKey(OpWaybill),
		fulfillment.RetryStateFieldKey(OpWaybill),
		fulfillment.LastErrorFieldKey(OpWaybill),
		OpWaybill + "_created_at",
		OpWaybill + "_tracking_url",
		OpWaybill + "_cost",
	}
	fields := make([]fulfillment.Field, 0, len(cleared))
	for _, key := range cleared {
		fields = append(fields, fulfillment.Field{
			Namespace: fulfillment.FieldNamespace,
			Key:       key,
		})
	}

	if err := s.store.SetTags(ctx, orderID, tags); err != nil {
		return err
	}
	if err := s.store.SetFields(ctx, orderID, fields); err != nil {
		return err
	}

	s.logger.Info("shipping state cleared after fulfillment cancellation",
		zap.String("order_id", orderID),
	)
	return nil
}

// waybillOperation adapts waybill creation to the orchestrator's Operation port
type waybillOperation struct {
	svc *ShippingService
}

func (op *waybillOperation) Name() string { return OpWaybill }

func (op *waybillOperation) Execute(ctx context.Context, order *fulfillment.Order, _ fulfillment.Strategy) (*fulfillment.OperationResult, error) {
	cfg := op.svc.cfg

	weight := cfg.DefaultWeightKg
	if !weight.IsPositive() {
		weight = decimal.NewFromInt(1)
	}
	pkg := fulfillment.PackageInfo{
		Parcels:  1,
		WeightKg: weight,
	}
	if cfg.CollectOnDelivery && !strings.EqualFold(order.FinancialStatus, "paid") {
		pkg.CashOnDelivery = order.TotalPrice
	}

	payload, err := op.svc.adapter.BuildWaybillPayload(ctx, order, pkg, fulfillment.WaybillOptions{
		ServiceID:     cfg.ServiceID,
		PickupPointID: cfg.PickupPointID,
		Observations:  "Comanda " + order.Name,
	})
	if err != nil {
		return nil, err
	}

	res, err := op.svc.adapter.CreateWaybill(ctx, payload)
	if err != nil {
		return nil, err
	}

	fields := []fulfillment.Field{
		{
			Namespace: fulfillment.FieldNamespace,
			Key:       OpWaybill + "_tracking_url",
			Value:     op.svc.adapter.TrackingURL(res.TrackingReference),
		},
	}
	if res.Cost.IsPositive() {
		fields = append(fields, fulfillment.Field{
			Namespace: fulfillment.FieldNamespace,
			Key:       OpWaybill + "_cost",
			Value:     res.Cost.String(),
		})
	}
	return &fulfillment.OperationResult{
		Reference: res.TrackingReference,
		Fields:    fields,
	}, nil
}
