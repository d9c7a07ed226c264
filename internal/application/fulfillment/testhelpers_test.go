package fulfillment

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/orderbridge/backend/internal/domain/company"
	"github.com/orderbridge/backend/internal/domain/fulfillment"
)

// memStore is an in-memory StateStore for tests
type memStore struct {
	mu     sync.Mutex
	orders map[string]*fulfillment.Order

	getErr error

	setTagsCalls   int
	setFieldsCalls int
}

func newMemStore(orders ...*fulfillment.Order) *memStore {
	s := &memStore{orders: make(map[string]*fulfillment.Order)}
	for _, o := range orders {
		s.orders[o.ID] = o
	}
	return s
}

func (s *memStore) GetOrder(_ context.Context, orderID string) (*fulfillment.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	o, ok := s.orders[orderID]
	if !ok {
		return nil, errors.New("order not found")
	}
	return o, nil
}

func (s *memStore) SetTags(_ context.Context, orderID string, tags fulfillment.TagSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setTagsCalls++
	if o, ok := s.orders[orderID]; ok {
		o.Tags = tags.Clone()
	}
	return nil
}

func (s *memStore) SetFields(_ context.Context, orderID string, fields []fulfillment.Field) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setFieldsCalls++
	if o, ok := s.orders[orderID]; ok {
		for _, f := range fields {
			o.SetField(f.Key, f.Value)
		}
	}
	return nil
}

// fakeInvoicer captures invoice payloads and returns scripted results
type fakeInvoicer struct {
	mu       sync.Mutex
	payloads []*fulfillment.InvoicePayload
	failures []error
	result   *fulfillment.InvoiceResult
}

func (f *fakeInvoicer) CreateInvoice(_ context.Context, payload *fulfillment.InvoicePayload) (*fulfillment.InvoiceResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	if len(f.payloads) <= len(f.failures) {
		return nil, f.failures[len(f.payloads)-1]
	}
	if f.result != nil {
		return f.result, nil
	}
	return &fulfillment.InvoiceResult{Series: "FCT", Number: "100"}, nil
}

func (f *fakeInvoicer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func (f *fakeInvoicer) lastPayload() *fulfillment.InvoicePayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.payloads) == 0 {
		return nil
	}
	return f.payloads[len(f.payloads)-1]
}

// fakeEnricher returns a scripted enrichment result or error
type fakeEnricher struct {
	mu       sync.Mutex
	calls    int
	err      error
	enriched *company.BillingDetails
}

func (f *fakeEnricher) Enrich(_ context.Context, details company.BillingDetails) (company.BillingDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return details, f.err
	}
	if f.enriched != nil {
		return *f.enriched, nil
	}
	details.Verified = true
	return details, nil
}

func (f *fakeEnricher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeShipper captures waybill payloads and returns scripted results
type fakeShipper struct {
	mu           sync.Mutex
	buildErr     error
	createErr    error
	payloads     []*fulfillment.WaybillPayload
	result       *fulfillment.WaybillResult
	lastPackage  fulfillment.PackageInfo
	lastOptions  fulfillment.WaybillOptions
	createdCount int
}

func (f *fakeShipper) BuildWaybillPayload(_ context.Context, order *fulfillment.Order, pkg fulfillment.PackageInfo, opts fulfillment.WaybillOptions) (*fulfillment.WaybillPayload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastPackage = pkg
	f.lastOptions = opts
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	addr := order.ShippingAddress
	if addr == nil {
		return nil, errors.New("no shipping address")
	}
	return &fulfillment.WaybillPayload{
		ServiceID:      opts.ServiceID,
		PickupPointID:  opts.PickupPointID,
		Parcels:        pkg.Parcels,
		WeightKg:       pkg.WeightKg,
		CashOnDelivery: pkg.CashOnDelivery,
		Observations:   opts.Observations,
		Recipient: fulfillment.WaybillRecipient{
			Name: addr.FullName(),
			City: addr.City,
		},
	}, nil
}

func (f *fakeShipper) CreateWaybill(_ context.Context, payload *fulfillment.WaybillPayload) (*fulfillment.WaybillResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createdCount++
	f.payloads = append(f.payloads, payload)
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.result != nil {
		return f.result, nil
	}
	return &fulfillment.WaybillResult{TrackingReference: "AWB123", Cost: decimal.NewFromFloat(18.5)}, nil
}

func (f *fakeShipper) TrackingURL(reference string) string {
	return "https://courier.example/#awb=" + reference
}

func (f *fakeShipper) ProviderName() string { return "Courier" }

// stubProcessor returns scripted per-order outcomes for batch tests
type stubProcessor struct {
	mu       sync.Mutex
	outcomes map[string]*fulfillment.Outcome
	errs     map[string]error
	delay    time.Duration
	active   int
	peak     int
	orderIDs []string
}

func (p *stubProcessor) ProcessOrder(_ context.Context, orderID string) (*fulfillment.Outcome, error) {
	p.mu.Lock()
	p.active++
	if p.active > p.peak {
		p.peak = p.active
	}
	p.orderIDs = append(p.orderIDs, orderID)
	p.mu.Unlock()

	if p.delay > 0 {
		time.Sleep(p.delay)
	}

	p.mu.Lock()
	p.active--
	out := p.outcomes[orderID]
	err := p.errs[orderID]
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if out == nil {
		out = &fulfillment.Outcome{State: fulfillment.StateSuccess, Reference: "REF-" + orderID}
	}
	return out, nil
}
