package oblio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/orderbridge/backend/internal/domain/fulfillment"
)

// maxResponseSize is the maximum allowed response size from the Oblio API (2MB)
const maxResponseSize = 2 * 1024 * 1024

// tokenSafetyMargin renews the access token before its actual expiry
const tokenSafetyMargin = 60 * time.Second

// Client talks to the Oblio invoicing API. Invoice creation issues a real
// fiscal document, so callers are expected to run it behind the idempotency
// guard.
type Client struct {
	config     *Config
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient creates an Oblio API client
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
		now:    time.Now,
	}, nil
}

// CreateInvoice issues a fiscal invoice for the payload
func (c *Client) CreateInvoice(ctx context.Context, payload *fulfillment.InvoicePayload) (*fulfillment.InvoiceResult, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	series := payload.Series
	if series == "" {
		series = c.config.Series
	}

	req := invoiceRequest{
		CIF:        c.config.CIF,
		SeriesName: series,
		IssueDate:  payload.IssueDate.Format("2006-01-02"),
		Currency:   payload.Currency,
		Language:   c.config.Language,
		SendEmail:  boolFlag(payload.SendEmail),
		UseStock:   boolFlag(payload.DecrementStock),
		Client: clientWire{
			Name:     payload.Client.Name,
			CIF:      payload.Client.FiscalCode,
			RC:       payload.Client.RegistrationNumber,
			Address:  payload.Client.Address,
			City:     payload.Client.City,
			State:    payload.Client.County,
			Country:  payload.Client.Country,
			Email:    payload.Client.Email,
			Phone:    payload.Client.Phone,
			VATPayer: boolFlag(payload.Client.VATPayer),
			Save:     1,
		},
	}
	if payload.OrderReference != "" {
		req.Mentions = "Comanda " + payload.OrderReference
	}

	for _, line := range payload.Lines {
		product := productWire{
			Name:          line.Name,
			Code:          line.Code,
			Price:         line.UnitPrice.StringFixed(2),
			MeasuringUnit: line.MeasuringUnit,
			Currency:      payload.Currency,
			Quantity:      line.Quantity,
		}
		if product.MeasuringUnit == "" {
			product.MeasuringUnit = "buc"
		}
		if line.IsShipping {
			product.ProductType = "Serviciu"
		}
		req.Products = append(req.Products, product)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("oblio: encoding invoice request: %w", err)
	}

	respBody, err := c.doRequest(ctx, http.MethodPost, "/docs/invoice", token, body)
	if err != nil {
		return nil, err
	}

	var resp invoiceResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("oblio: parsing invoice response: %w", err)
	}
	if resp.Status != 200 {
		return nil, &fulfillment.ProviderError{
			Provider:   "oblio",
			StatusCode: resp.Status,
			Message:    resp.StatusMessage,
		}
	}

	c.logger.Info("invoice issued",
		zap.String("series", resp.Data.SeriesName),
		zap.String("number", resp.Data.Number),
	)
	return &fulfillment.InvoiceResult{
		Number:    resp.Data.Number,
		Series:    resp.Data.SeriesName,
		URL:       resp.Data.Link,
		IssueDate: payload.IssueDate,
	}, nil
}

// DefaultSeries returns the configured invoice series
func (c *Client) DefaultSeries() string {
	return c.config.Series
}

// AlternateSeries returns the configured fallback series, empty when none
func (c *Client) AlternateSeries() string {
	return c.config.AlternateSeries
}

// token returns a valid access token, authenticating when the cached one is
// missing or near expiry
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken != "" && c.now().Before(c.tokenExpiry.Add(-tokenSafetyMargin)) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("client_id", c.config.Email)
	form.Set("client_secret", c.config.APISecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.APIBaseURL+"/authorize/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("oblio: failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &fulfillment.ProviderError{
			Provider: "oblio",
			Message:  "token request failed",
			Err:      err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("oblio: failed to read token response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", &fulfillment.ProviderError{
			Provider:   "oblio",
			StatusCode: resp.StatusCode,
			Message:    "authentication rejected",
		}
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return "", fmt.Errorf("oblio: parsing token response: %w", err)
	}
	if token.AccessToken == "" {
		return "", &fulfillment.ProviderError{
			Provider: "oblio",
			Message:  "empty access token",
		}
	}

	c.accessToken = token.AccessToken
	c.tokenExpiry = c.now().Add(time.Duration(token.ExpiresIn) * time.Second)
	return c.accessToken, nil
}

// doRequest performs one authenticated API call and returns the response body
func (c *Client) doRequest(ctx context.Context, method, path, token string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.APIBaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("oblio: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &fulfillment.ProviderError{
			Provider: "oblio",
			Message:  "request failed",
			Err:      err,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("oblio: failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &fulfillment.ProviderError{
			Provider:   "oblio",
			StatusCode: resp.StatusCode,
			Message:    providerMessage(respBody),
		}
	}
	return respBody, nil
}

// providerMessage extracts the provider's statusMessage when present
func providerMessage(body []byte) string {
	var resp invoiceResponse
	if err := json.Unmarshal(body, &resp); err == nil && resp.StatusMessage != "" {
		return resp.StatusMessage
	}
	return "request rejected"
}

func boolFlag(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Ensure Client implements the invoicing port
var _ fulfillment.InvoicingProvider = (*Client)(nil)
