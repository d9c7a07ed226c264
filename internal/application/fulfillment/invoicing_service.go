// Package fulfillment contains the application services gluing webhook and
// admin triggers to the retry orchestrator: invoice issuance, waybill
// creation and batch retries.
package fulfillment

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/orderbridge/backend/internal/domain/company"
	"github.com/orderbridge/backend/internal/domain/fulfillment"
)

// OpInvoice is the invoice operation name used in tags and fields
const OpInvoice = "invoice"

var (
	// ErrMissingBillingAddress indicates an order with no usable invoicing address
	ErrMissingBillingAddress = errors.New("fulfillment: order has no billing or shipping address")
	// ErrNoInvoiceLines indicates an order with nothing to invoice
	ErrNoInvoiceLines = errors.New("fulfillment: order has no invoiceable line items")
)

// ClientEnricher fills invoiced-party details from the company registry.
// company.Verifier is the production implementation.
type ClientEnricher interface {
	Enrich(ctx context.Context, details company.BillingDetails) (company.BillingDetails, error)
}

// InvoicingConfig holds the invoice issuance defaults
type InvoicingConfig struct {
	// Series is the default document series
	Series string
	// AlternateSeries is the fallback series for the alternate-options strategy
	AlternateSeries string
	// SendEmail asks the provider to email the buyer a copy
	SendEmail bool
	// DecrementStock asks the provider to decrement its stock records
	DecrementStock bool
}

// InvoicingService drives invoice creation for an order: it assembles the
// provider payload from the order and the registry-enriched client record,
// then hands the non-idempotent side effect to the retry orchestrator.
type InvoicingService struct {
	store        fulfillment.StateStore
	provider     fulfillment.InvoicingProvider
	enricher     ClientEnricher
	orchestrator *fulfillment.Orchestrator
	logger       *zap.Logger
	cfg          InvoicingConfig
	now          func() time.Time
}

// NewInvoicingService creates an InvoicingService. Orchestrator options are
// forwarded (retry bound, metrics recorder, sleeper in tests).
func NewInvoicingService(
	store fulfillment.StateStore,
	provider fulfillment.InvoicingProvider,
	enricher ClientEnricher,
	cfg InvoicingConfig,
	logger *zap.Logger,
	opts ...fulfillment.OrchestratorOption,
) *InvoicingService {
	guard := fulfillment.NewIdempotencyGuard(store, fulfillment.GuardConfig{
		Operation: OpInvoice,
	}, logger)

	return &InvoicingService{
		store:        store,
		provider:     provider,
		enricher:     enricher,
		orchestrator: fulfillment.NewOrchestrator(store, guard, logger, opts...),
		logger:       logger,
		cfg:          cfg,
		now:          time.Now,
	}
}

// HandleOrderCreated processes an order-created webhook delivery
func (s *InvoicingService) HandleOrderCreated(ctx context.Context, orderID string) (*fulfillment.Outcome, error) {
	return s.ProcessOrder(ctx, orderID)
}

// ProcessOrder reads the order's current platform state and runs one invoice
// orchestration cycle. The attempt number resumes from the order's durable
// retry state, so redeliveries and admin retries continue where the previous
// cycle stopped.
func (s *InvoicingService) ProcessOrder(ctx context.Context, orderID string) (*fulfillment.Outcome, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.orchestrator.Run(ctx, order, &invoiceOperation{svc: s}, nil)
}

// invoiceOperation adapts invoice creation to the orchestrator's Operation port
type invoiceOperation struct {
	svc *InvoicingService
}

func (op *invoiceOperation) Name() string { return OpInvoice }

// Execute assembles the payload under the attempt's strategy and issues the
// invoice. Payload assembly failures are returned unwrapped so the classifier
// sees the provider or validation cause directly.
func (op *invoiceOperation) Execute(ctx context.Context, order *fulfillment.Order, strategy fulfillment.Strategy) (*fulfillment.OperationResult, error) {
	payload, err := op.svc.buildPayload(ctx, order, strategy)
	if err != nil {
		return nil, err
	}

	res, err := op.svc.provider.CreateInvoice(ctx, payload)
	if err != nil {
		return nil, err
	}

	fields := []fulfillment.Field{}
	if res.URL != "" {
		fields = append(fields, fulfillment.Field{
			Namespace: fulfillment.FieldNamespace,
			Key:       "invoice_url",
			Value:     res.URL,
		})
	}
	return &fulfillment.OperationResult{
		Reference: res.Reference(),
		Fields:    fields,
	}, nil
}

func (s *InvoicingService) buildPayload(ctx context.Context, order *fulfillment.Order, strategy fulfillment.Strategy) (*fulfillment.InvoicePayload, error) {
	client, err := s.buildClient(ctx, order, strategy)
	if err != nil {
		return nil, err
	}

	lines := buildLines(order, strategy)
	if len(lines) == 0 {
		return nil, ErrNoInvoiceLines
	}

	series := s.cfg.Series
	if strategy.UseAlternateSeries && s.cfg.AlternateSeries != "" {
		series = s.cfg.AlternateSeries
	}

	return &fulfillment.InvoicePayload{
		Series:         series,
		Client:         client,
		Lines:          lines,
		Currency:       order.Currency,
		IssueDate:      s.now(),
		SendEmail:      s.cfg.SendEmail && !strategy.DisableEmailNotification,
		DecrementStock: s.cfg.DecrementStock && !strategy.DisableStockDecrement,
		OrderReference: order.Name,
	}, nil
}

// buildClient assembles the invoiced party. With a fiscal code present the
// registry enrichment runs unless the strategy skips it; the simplified-client
// strategy bypasses both and sends a minimal record the provider cannot
// reject on address grounds.
func (s *InvoicingService) buildClient(ctx context.Context, order *fulfillment.Order, strategy fulfillment.Strategy) (fulfillment.InvoiceClient, error) {
	addr := order.BillingAddress
	if addr == nil {
		addr = order.ShippingAddress
	}
	if addr == nil {
		return fulfillment.InvoiceClient{}, ErrMissingBillingAddress
	}

	name := strings.TrimSpace(addr.Company)
	if name == "" {
		name = addr.FullName()
	}
	if name == "" {
		name = order.Email
	}

	if strategy.UseSimplifiedClient {
		return fulfillment.InvoiceClient{
			Name:    name,
			Country: clientCountry(addr),
			Email:   order.Email,
		}, nil
	}

	details := company.BillingDetails{
		Name:       name,
		FiscalCode: strings.TrimSpace(addr.FiscalCode),
		Address:    joinAddress(addr),
		City:       addr.City,
		County:     addr.Province,
		Country:    clientCountry(addr),
		Email:      order.Email,
		Phone:      addr.Phone,
	}

	if details.FiscalCode != "" && !strategy.SkipVerification {
		enriched, err := s.enricher.Enrich(ctx, details)
		if err != nil {
			return fulfillment.InvoiceClient{}, err
		}
		details = enriched
	}

	return fulfillment.InvoiceClient{
		Name:               details.Name,
		FiscalCode:         details.FiscalCode,
		RegistrationNumber: details.RegistrationNumber,
		Address:            details.Address,
		City:               details.City,
		County:             details.County,
		Country:            details.Country,
		Email:              details.Email,
		Phone:              details.Phone,
		VATPayer:           details.VATPayer,
	}, nil
}

func buildLines(order *fulfillment.Order, strategy fulfillment.Strategy) []fulfillment.InvoiceLine {
	lines := make([]fulfillment.InvoiceLine, 0, len(order.LineItems)+1)
	for _, item := range order.LineItems {
		if item.Quantity <= 0 {
			continue
		}
		name := item.Title
		if strategy.RelaxProductValidation {
			name = relaxedLineName(item)
		}
		lines = append(lines, fulfillment.InvoiceLine{
			Name:      name,
			Code:      item.SKU,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
		})
	}

	if !strategy.ExcludeShippingLine && order.ShippingPrice.IsPositive() {
		lines = append(lines, fulfillment.InvoiceLine{
			Name:       "Transport",
			Quantity:   1,
			UnitPrice:  order.ShippingPrice,
			IsShipping: true,
		})
	}
	return lines
}

// maxLineNameLen bounds relaxed line names to what the provider accepts
const maxLineNameLen = 200

// relaxedLineName returns a line name the provider cannot reject: the title
// when present, the SKU as fallback, truncated to the provider's limit.
func relaxedLineName(item fulfillment.LineItem) string {
	name := strings.TrimSpace(item.Title)
	if name == "" {
		name = strings.TrimSpace(item.SKU)
	}
	if name == "" {
		name = "Produs"
	}
	runes := []rune(name)
	if len(runes) > maxLineNameLen {
		name = string(runes[:maxLineNameLen])
	}
	return name
}

func joinAddress(addr *fulfillment.Address) string {
	parts := make([]string, 0, 2)
	for _, p := range []string{addr.Address1, addr.Address2} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

func clientCountry(addr *fulfillment.Address) string {
	if addr.Country != "" {
		return addr.Country
	}
	return "Romania"
}
