package shopcommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/orderbridge/backend/internal/domain/fulfillment"
)

// maxResponseSize is the maximum allowed response size from the Admin API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// fiscalCodeAttributes are the checkout attribute names merchants use for the
// buyer company's fiscal identifier
var fiscalCodeAttributes = []string{"cif", "cui", "vat", "fiscal_code", "company_vat"}

// Client talks to the commerce platform's Admin API. It implements the order
// StateStore: reading orders and writing back tags and namespaced metafields.
type Client struct {
	config     *Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates an Admin API client
func NewClient(config *Config, logger *zap.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		logger: logger,
	}, nil
}

// GetOrder reads an order with its tags, fulfillments and the service's
// namespaced metafields
func (c *Client) GetOrder(ctx context.Context, orderID string) (*fulfillment.Order, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/orders/"+orderID+".json", nil)
	if err != nil {
		return nil, err
	}

	var envelope orderEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("shopcommerce: parsing order %s: %w", orderID, err)
	}

	order := convertOrder(&envelope.Order)

	fields, err := c.getFields(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order.Fields = fields

	return order, nil
}

// SetTags replaces the order's tag set
func (c *Client) SetTags(ctx context.Context, orderID string, tags fulfillment.TagSet) error {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return fmt.Errorf("shopcommerce: invalid order id %q: %w", orderID, err)
	}

	payload, err := json.Marshal(orderUpdateEnvelope{Order: orderUpdateWire{
		ID:   id,
		Tags: tags.String(),
	}})
	if err != nil {
		return fmt.Errorf("shopcommerce: encoding tag update: %w", err)
	}

	_, err = c.doRequest(ctx, http.MethodPut, "/orders/"+orderID+".json", payload)
	return err
}

// SetFields writes the given namespaced fields. An empty value deletes the
// field; the platform rejects empty metafield values.
func (c *Client) SetFields(ctx context.Context, orderID string, fields []fulfillment.Field) error {
	existing, err := c.listMetafields(ctx, orderID)
	if err != nil {
		return err
	}

	byKey := make(map[string]metafieldWire, len(existing))
	for _, mf := range existing {
		if mf.Namespace == c.config.FieldNamespace {
			byKey[mf.Key] = mf
		}
	}

	for _, field := range fields {
		current, found := byKey[field.Key]
		switch {
		case field.Value == "" && found:
			if err := c.deleteMetafield(ctx, current.ID); err != nil {
				return err
			}
		case field.Value == "":
			// Nothing to clear.
		case found:
			if err := c.updateMetafield(ctx, current.ID, field.Value); err != nil {
				return err
			}
		default:
			if err := c.createMetafield(ctx, orderID, field.Key, field.Value); err != nil {
				return err
			}
		}
	}
	return nil
}

// getFields reads the service's namespaced metafields as domain fields
func (c *Client) getFields(ctx context.Context, orderID string) ([]fulfillment.Field, error) {
	metafields, err := c.listMetafields(ctx, orderID)
	if err != nil {
		return nil, err
	}
	fields := make([]fulfillment.Field, 0, len(metafields))
	for _, mf := range metafields {
		if mf.Namespace != c.config.FieldNamespace {
			continue
		}
		fields = append(fields, fulfillment.Field{
			Namespace: mf.Namespace,
			Key:       mf.Key,
			Value:     mf.Value,
		})
	}
	return fields, nil
}

func (c *Client) listMetafields(ctx context.Context, orderID string) ([]metafieldWire, error) {
	body, err := c.doRequest(ctx, http.MethodGet,
		"/orders/"+orderID+"/metafields.json?namespace="+c.config.FieldNamespace, nil)
	if err != nil {
		return nil, err
	}
	var envelope metafieldsEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("shopcommerce: parsing metafields for order %s: %w", orderID, err)
	}
	return envelope.Metafields, nil
}

func (c *Client) createMetafield(ctx context.Context, orderID, key, value string) error {
	payload, err := json.Marshal(metafieldEnvelope{Metafield: metafieldWire{
		Namespace: c.config.FieldNamespace,
		Key:       key,
		Value:     value,
		Type:      "single_line_text_field",
	}})
	if err != nil {
		return fmt.Errorf("shopcommerce: encoding metafield: %w", err)
	}
	_, err = c.doRequest(ctx, http.MethodPost, "/orders/"+orderID+"/metafields.json", payload)
	return err
}

func (c *Client) updateMetafield(ctx context.Context, metafieldID int64, value string) error {
	payload, err := json.Marshal(metafieldEnvelope{Metafield: metafieldWire{
		ID:    metafieldID,
		Value: value,
	}})
	if err != nil {
		return fmt.Errorf("shopcommerce: encoding metafield: %w", err)
	}
	_, err = c.doRequest(ctx, http.MethodPut,
		"/metafields/"+strconv.FormatInt(metafieldID, 10)+".json", payload)
	return err
}

func (c *Client) deleteMetafield(ctx context.Context, metafieldID int64) error {
	_, err := c.doRequest(ctx, http.MethodDelete,
		"/metafields/"+strconv.FormatInt(metafieldID, 10)+".json", nil)
	return err
}

// doRequest performs one Admin API call and returns the response body
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL()+path, reader)
	if err != nil {
		return nil, fmt.Errorf("shopcommerce: failed to create request: %w", err)
	}
	req.Header.Set("X-Shopify-Access-Token", c.config.AccessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &fulfillment.ProviderError{
			Provider: "shopcommerce",
			Message:  "request failed",
			Err:      err,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("shopcommerce: failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &fulfillment.ProviderError{
			Provider:   "shopcommerce",
			StatusCode: resp.StatusCode,
			Message:    apiErrorMessage(respBody),
		}
	}
	return respBody, nil
}

// apiErrorMessage extracts the platform's error description when present
func apiErrorMessage(body []byte) string {
	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Errors != nil {
		return fmt.Sprintf("%v", envelope.Errors)
	}
	return "request rejected"
}

// convertOrder maps the wire order onto the domain order
func convertOrder(wire *orderWire) *fulfillment.Order {
	order := &fulfillment.Order{
		ID:              strconv.FormatInt(wire.ID, 10),
		Name:            wire.Name,
		Email:           wire.Email,
		FinancialStatus: wire.FinancialStatus,
		Currency:        wire.Currency,
		TotalPrice:      parseDecimal(wire.TotalPrice),
		ShippingPrice:   parseDecimal(wire.TotalShipping.ShopMoney.Amount),
		Tags:            fulfillment.ParseTags(wire.Tags),
		ShippingAddress: convertAddress(wire.ShippingAddress),
		BillingAddress:  convertAddress(wire.BillingAddress),
	}

	if t, err := time.Parse(time.RFC3339, wire.CreatedAt); err == nil {
		order.CreatedAt = t
	}

	for _, item := range wire.LineItems {
		order.LineItems = append(order.LineItems, fulfillment.LineItem{
			ID:               strconv.FormatInt(item.ID, 10),
			SKU:              item.SKU,
			Title:            item.Title,
			Quantity:         item.Quantity,
			Price:            parseDecimal(item.Price),
			RequiresShipping: item.RequiresShipping,
		})
	}

	for _, f := range wire.Fulfillments {
		order.Fulfillments = append(order.Fulfillments, fulfillment.Fulfillment{
			ID:             strconv.FormatInt(f.ID, 10),
			Status:         f.Status,
			TrackingNumber: f.TrackingNumber,
			TrackingURL:    f.TrackingURL,
		})
	}

	// Buyers enter the fiscal identifier as a checkout attribute; surface it
	// on the billing address where the invoicing flow looks for it.
	if order.BillingAddress != nil && order.BillingAddress.FiscalCode == "" {
		order.BillingAddress.FiscalCode = fiscalCodeFromAttributes(wire.NoteAttributes)
	}

	return order
}

func convertAddress(wire *addressWire) *fulfillment.Address {
	if wire == nil {
		return nil
	}
	return &fulfillment.Address{
		FirstName:   wire.FirstName,
		LastName:    wire.LastName,
		Company:     wire.Company,
		Address1:    wire.Address1,
		Address2:    wire.Address2,
		City:        wire.City,
		Province:    wire.Province,
		Zip:         wire.Zip,
		Country:     wire.Country,
		CountryCode: wire.CountryCode,
		Phone:       wire.Phone,
	}
}

func fiscalCodeFromAttributes(attrs []noteAttrWire) string {
	for _, attr := range attrs {
		name := strings.ToLower(strings.TrimSpace(attr.Name))
		for _, candidate := range fiscalCodeAttributes {
			if name == candidate {
				return strings.TrimSpace(attr.Value)
			}
		}
	}
	return ""
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Ensure Client implements the order StateStore
var _ fulfillment.StateStore = (*Client)(nil)
