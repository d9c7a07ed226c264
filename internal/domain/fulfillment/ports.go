package fulfillment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// StateStore Port
// ---------------------------------------------------------------------------

// StateStore is the port to the commerce platform's order state. It is the
// only durability mechanism this service has: tags and namespaced fields
// written here must be enough to reconstruct "already invoiced", "already
// shipped", "last error" and "attempt count" later.
type StateStore interface {
	// GetOrder reads the current order state including tags, fields and fulfillments
	GetOrder(ctx context.Context, orderID string) (*Order, error)

	// SetTags replaces the order's tag set
	SetTags(ctx context.Context, orderID string, tags TagSet) error

	// SetFields writes the given namespaced fields, replacing same-keyed values
	SetFields(ctx context.Context, orderID string, fields []Field) error
}

// ---------------------------------------------------------------------------
// Provider Ports
// ---------------------------------------------------------------------------

// InvoiceResult is the outcome of a successful invoice creation
type InvoiceResult struct {
	// Number is the document number assigned by the provider
	Number string
	// Series is the document series the invoice was issued in
	Series string
	// URL is the provider-hosted document URL
	URL string
	// IssueDate is the fiscal issue date
	IssueDate time.Time
}

// Reference returns the human-facing document reference (series + number)
func (r *InvoiceResult) Reference() string {
	if r.Series == "" {
		return r.Number
	}
	return r.Series + " " + r.Number
}

// InvoicingProvider is the port to the external invoicing service. Creating
// an invoice is not idempotent: calling it twice issues two fiscal documents.
type InvoicingProvider interface {
	// CreateInvoice issues a fiscal invoice for the given payload
	CreateInvoice(ctx context.Context, payload *InvoicePayload) (*InvoiceResult, error)
}

// InvoicePayload is the provider-agnostic invoice creation request
type InvoicePayload struct {
	// Series is the document series to issue in
	Series string
	// Client identifies the invoiced party
	Client InvoiceClient
	// Lines are the invoice lines
	Lines []InvoiceLine
	// Currency is the document currency
	Currency string
	// IssueDate is the requested issue date
	IssueDate time.Time
	// SendEmail asks the provider to email the buyer a copy
	SendEmail bool
	// DecrementStock asks the provider to decrement its stock records
	DecrementStock bool
	// OrderReference is the platform order name, for the document narrative
	OrderReference string
}

// InvoiceClient is the invoiced party on the document
type InvoiceClient struct {
	Name               string
	FiscalCode         string
	RegistrationNumber string
	Address            string
	City               string
	County             string
	Country            string
	Email              string
	Phone              string
	// VATPayer indicates the client is VAT-registered
	VATPayer bool
}

// InvoiceLine is one line on the invoice
type InvoiceLine struct {
	Name          string
	Code          string
	Quantity      int
	UnitPrice     decimal.Decimal
	MeasuringUnit string
	// IsShipping marks the synthetic shipping line
	IsShipping bool
}

// WaybillResult is the outcome of a successful waybill creation
type WaybillResult struct {
	// TrackingReference is the courier tracking number
	TrackingReference string
	// Cost is the shipping cost charged by the courier, when reported
	Cost decimal.Decimal
}

// PackageInfo describes the physical parcel for a waybill
type PackageInfo struct {
	// Parcels is the parcel count
	Parcels int
	// WeightKg is the total weight in kilograms
	WeightKg decimal.Decimal
	// CashOnDelivery is the amount to collect on delivery, zero when prepaid
	CashOnDelivery decimal.Decimal
}

// WaybillOptions carries per-shipment options for waybill creation
type WaybillOptions struct {
	// ServiceID selects the courier service/product
	ServiceID string
	// PickupPointID selects the sender pickup point
	PickupPointID string
	// Observations is free-text handed to the courier
	Observations string
}

// ShippingAdapter is the port to the courier provider. Waybill creation is
// not idempotent: calling it twice produces two live shipping documents.
type ShippingAdapter interface {
	// BuildWaybillPayload assembles the provider payload for the order,
	// resolving the delivery locality to the courier's vocabulary
	BuildWaybillPayload(ctx context.Context, order *Order, pkg PackageInfo, opts WaybillOptions) (*WaybillPayload, error)

	// CreateWaybill creates the shipping waybill
	CreateWaybill(ctx context.Context, payload *WaybillPayload) (*WaybillResult, error)

	// TrackingURL returns the public tracking page for a reference
	TrackingURL(reference string) string

	// ProviderName returns the courier's display name
	ProviderName() string
}

// WaybillPayload is the provider-shaped waybill creation request. The adapter
// owns its exact field semantics; the orchestration layer treats it as opaque.
type WaybillPayload struct {
	ServiceID      string
	PickupPointID  string
	Recipient      WaybillRecipient
	Parcels        int
	WeightKg       decimal.Decimal
	CashOnDelivery decimal.Decimal
	Observations   string
}

// WaybillRecipient is the resolved delivery contact for a waybill
type WaybillRecipient struct {
	Name string
	// City is the canonical courier locality name
	City string
	// County is the canonical courier county name
	County     string
	Address    string
	PostalCode string
	Phone      string
	Email      string
}

// ---------------------------------------------------------------------------
// Scheduling Port
// ---------------------------------------------------------------------------

// Sleeper abstracts the backoff wait so tests can substitute a deterministic
// fake. Implementations must return early with ctx.Err() on cancellation.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper is the production Sleeper backed by a timer
type TimerSleeper struct{}

// Sleep waits for d or until the context is cancelled
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
