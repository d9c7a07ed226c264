package fulfillment

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/orderbridge/backend/internal/domain/fulfillment"
)

func TestShippingService_CreatesWaybill(t *testing.T) {
	order := companyOrder()
	store := newMemStore(order)
	shipper := &fakeShipper{result: &fulfillment.WaybillResult{
		TrackingReference: "AWB777",
		Cost:              decimal.NewFromFloat(18.5),
	}}

	svc := NewShippingService(store, shipper, ShippingConfig{
		ServiceID:         "7",
		PickupPointID:     "12",
		DefaultWeightKg:   decimal.NewFromFloat(1.5),
		CollectOnDelivery: true,
	}, zap.NewNop())

	outcome, err := svc.HandleOrderCreated(context.Background(), "9001")
	require.NoError(t, err)
	require.Equal(t, fulfillment.StateSuccess, outcome.State)
	assert.Equal(t, "AWB777", outcome.Reference)

	assert.Equal(t, "7", shipper.lastOptions.ServiceID)
	assert.Equal(t, "12", shipper.lastOptions.PickupPointID)
	assert.Equal(t, "Comanda #1042", shipper.lastOptions.Observations)
	assert.Equal(t, 1, shipper.lastPackage.Parcels)
	assert.True(t, shipper.lastPackage.WeightKg.Equal(decimal.NewFromFloat(1.5)))
	// Paid order collects nothing on delivery
	assert.True(t, shipper.lastPackage.CashOnDelivery.IsZero())

	assert.True(t, store.orders["9001"].Tags.Has("awb-generated"))
	assert.Equal(t, "AWB777", mustOrderField(t, store, "9001", "awb_number"))
	assert.Equal(t, "https://courier.example/#awb=AWB777", mustOrderField(t, store, "9001", "awb_tracking_url"))
	assert.Equal(t, "18.5", mustOrderField(t, store, "9001", "awb_cost"))
}

func TestShippingService_CollectsOnDeliveryWhenUnpaid(t *testing.T) {
	order := companyOrder()
	order.FinancialStatus = "pending"
	store := newMemStore(order)
	shipper := &fakeShipper{}

	svc := NewShippingService(store, shipper, ShippingConfig{
		CollectOnDelivery: true,
	}, zap.NewNop())

	_, err := svc.ProcessOrder(context.Background(), "9001")
	require.NoError(t, err)
	assert.True(t, shipper.lastPackage.CashOnDelivery.Equal(decimal.NewFromFloat(359.9)))
	// No configured weight falls back to 1 kg
	assert.True(t, shipper.lastPackage.WeightKg.Equal(decimal.NewFromInt(1)))
}

func TestShippingService_SkipsWhenTrackingExists(t *testing.T) {
	order := companyOrder()
	order.Fulfillments = []fulfillment.Fulfillment{
		{ID: "f1", Status: "success", TrackingNumber: "AWB555"},
	}
	store := newMemStore(order)
	shipper := &fakeShipper{}

	svc := NewShippingService(store, shipper, ShippingConfig{}, zap.NewNop())

	outcome, err := svc.ProcessOrder(context.Background(), "9001")
	require.NoError(t, err)
	assert.Equal(t, fulfillment.StateSkipped, outcome.State)
	assert.Equal(t, "AWB555", outcome.Reference)
	assert.Zero(t, shipper.createdCount)
}

func TestShippingService_LocalityFailureIsClientData(t *testing.T) {
	order := companyOrder()
	store := newMemStore(order)
	shipper := &fakeShipper{buildErr: errLocality{}}

	svc := NewShippingService(store, shipper, ShippingConfig{}, zap.NewNop(),
		fulfillment.WithMaxRetries(1))

	outcome, err := svc.ProcessOrder(context.Background(), "9001")
	require.NoError(t, err)
	assert.Equal(t, fulfillment.StateFinalFailure, outcome.State)
	assert.Equal(t, fulfillment.KindClientDataError, outcome.ErrorKind)
	assert.Zero(t, shipper.createdCount)

	state, ok := fulfillment.DecodeRetryState(mustOrderField(t, store, "9001", "awb_retry_state"))
	require.True(t, ok)
	assert.Equal(t, 1, state.Attempt)
	assert.Equal(t, fulfillment.KindClientDataError, state.LastErrorKind)
}

type errLocality struct{}

func (errLocality) Error() string { return `locality "Lugoj" not found in county Timis` }

func TestShippingService_HandleFulfillmentCancelled(t *testing.T) {
	order := companyOrder()
	order.Tags = fulfillment.NewTagSet("vip", "awb-generated", "awb-error-2026-03-01")
	order.SetField("awb_number", "AWB777")
	order.SetField("awb_tracking_url", "https://courier.example/#awb=AWB777")
	order.SetField("awb_retry_state", `{"v":1,"attempt":2}`)
	store := newMemStore(order)

	svc := NewShippingService(store, &fakeShipper{}, ShippingConfig{}, zap.NewNop())

	err := svc.HandleFulfillmentCancelled(context.Background(), "9001")
	require.NoError(t, err)

	got := store.orders["9001"]
	assert.False(t, got.Tags.Has("awb-generated"))
	assert.False(t, got.Tags.Has("awb-error-2026-03-01"))
	assert.True(t, got.Tags.Has("vip"))
	assert.Empty(t, mustOrderField(t, store, "9001", "awb_number"))
	assert.Empty(t, mustOrderField(t, store, "9001", "awb_tracking_url"))
	assert.Empty(t, mustOrderField(t, store, "9001", "awb_retry_state"))
}

func TestShippingService_HandleFulfillmentCancelled_FetchError(t *testing.T) {
	store := newMemStore()
	store.getErr = assert.AnError

	svc := NewShippingService(store, &fakeShipper{}, ShippingConfig{}, zap.NewNop())

	err := svc.HandleFulfillmentCancelled(context.Background(), "9001")
	assert.Error(t, err)
}
