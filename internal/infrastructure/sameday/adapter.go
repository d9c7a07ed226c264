package sameday

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/orderbridge/backend/internal/domain/fulfillment"
	"github.com/orderbridge/backend/internal/domain/geography"
)

// maxResponseSize is the maximum allowed response size from the Sameday API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// tokenSafetyMargin renews the auth token before its actual expiry
const tokenSafetyMargin = 60 * time.Second

// ErrMissingShippingAddress indicates an order with no delivery address
var ErrMissingShippingAddress = errors.New("sameday: order has no shipping address")

// Adapter talks to the Sameday courier API. It implements both the shipping
// port (waybill creation) and the locality gazetteer the resolver matches
// against. Waybill creation is not idempotent.
type Adapter struct {
	config     *Config
	httpClient *http.Client
	logger     *zap.Logger
	resolver   *geography.Resolver
	now        func() time.Time

	mu          sync.Mutex
	authToken   string
	tokenExpiry time.Time
}

// NewAdapter creates a Sameday adapter
func NewAdapter(config *Config, logger *zap.Logger) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	a := &Adapter{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		logger: logger,
		now:    time.Now,
	}
	a.resolver = geography.NewResolver(a, logger)
	return a, nil
}

// ProviderName returns the courier's display name
func (a *Adapter) ProviderName() string {
	return "Sameday"
}

// TrackingURL returns the public tracking page for a waybill reference
func (a *Adapter) TrackingURL(reference string) string {
	return TrackingPageURL + reference
}

// BuildWaybillPayload assembles the waybill request for the order, resolving
// the delivery locality to the courier's controlled vocabulary
func (a *Adapter) BuildWaybillPayload(ctx context.Context, order *fulfillment.Order, pkg fulfillment.PackageInfo, opts fulfillment.WaybillOptions) (*fulfillment.WaybillPayload, error) {
	addr := order.ShippingAddress
	if addr == nil {
		return nil, fmt.Errorf("%w: order %s", ErrMissingShippingAddress, order.ID)
	}

	city, err := a.resolver.Resolve(ctx, addr.City, addr.Province)
	if err != nil {
		return nil, err
	}
	county := geography.ResolveCounty(addr.Province)

	serviceID := opts.ServiceID
	if serviceID == "" {
		serviceID = a.config.ServiceID
	}
	pickupPointID := opts.PickupPointID
	if pickupPointID == "" {
		pickupPointID = a.config.PickupPointID
	}

	street := addr.Address1
	if addr.Address2 != "" {
		street += ", " + addr.Address2
	}

	parcels := pkg.Parcels
	if parcels <= 0 {
		parcels = 1
	}

	return &fulfillment.WaybillPayload{
		ServiceID:      serviceID,
		PickupPointID:  pickupPointID,
		Parcels:        parcels,
		WeightKg:       pkg.WeightKg,
		CashOnDelivery: pkg.CashOnDelivery,
		Observations:   opts.Observations,
		Recipient: fulfillment.WaybillRecipient{
			Name:       addr.FullName(),
			City:       city,
			County:     county,
			Address:    street,
			PostalCode: addr.Zip,
			Phone:      addr.Phone,
			Email:      order.Email,
		},
	}, nil
}

// CreateWaybill creates the shipping waybill
func (a *Adapter) CreateWaybill(ctx context.Context, payload *fulfillment.WaybillPayload) (*fulfillment.WaybillResult, error) {
	token, err := a.token(ctx)
	if err != nil {
		return nil, err
	}

	req := awbRequest{
		PickupPoint:    payload.PickupPointID,
		Service:        payload.ServiceID,
		PackageType:    0,
		PackageWeight:  payload.WeightKg.StringFixed(2),
		ParcelsCount:   payload.Parcels,
		CashOnDelivery: payload.CashOnDelivery.StringFixed(2),
		AwbPayment:     1,
		Observation:    payload.Observations,
		AwbRecipient: awbRecipient{
			Name:         payload.Recipient.Name,
			PersonType:   0,
			PhoneNumber:  payload.Recipient.Phone,
			Email:        payload.Recipient.Email,
			CountyString: payload.Recipient.County,
			CityString:   payload.Recipient.City,
			Address:      payload.Recipient.Address,
			PostalCode:   payload.Recipient.PostalCode,
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("sameday: encoding awb request: %w", err)
	}

	respBody, err := a.doRequest(ctx, http.MethodPost, "/api/awb", token, body)
	if err != nil {
		return nil, err
	}

	var resp awbResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("sameday: parsing awb response: %w", err)
	}
	if resp.AwbNumber == "" {
		return nil, &fulfillment.ProviderError{
			Provider: "sameday",
			Message:  "awb response carries no tracking number",
		}
	}

	a.logger.Info("waybill created",
		zap.String("awb", resp.AwbNumber),
	)
	return &fulfillment.WaybillResult{
		TrackingReference: resp.AwbNumber,
		Cost:              decimal.NewFromFloat(resp.AwbCost),
	}, nil
}

// Localities returns the courier's locality vocabulary for a canonical
// county, following the endpoint's pagination
func (a *Adapter) Localities(ctx context.Context, county string) ([]geography.Locality, error) {
	token, err := a.token(ctx)
	if err != nil {
		return nil, err
	}

	var localities []geography.Locality
	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("countyString", county)
		query.Set("page", strconv.Itoa(page))

		respBody, err := a.doRequest(ctx, http.MethodGet, "/api/geolocation/city?"+query.Encode(), token, nil)
		if err != nil {
			return nil, err
		}

		var result cityPage
		if err := json.Unmarshal(respBody, &result); err != nil {
			return nil, fmt.Errorf("sameday: parsing city page: %w", err)
		}
		for _, city := range result.Data {
			localities = append(localities, geography.Locality{
				Name:   city.Name,
				County: city.County.Name,
			})
		}
		if page >= result.Pages || len(result.Data) == 0 {
			break
		}
	}
	return localities, nil
}

// token returns a valid auth token, authenticating when the cached one is
// missing or near expiry
func (a *Adapter) token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.authToken != "" && a.now().Before(a.tokenExpiry.Add(-tokenSafetyMargin)) {
		return a.authToken, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.config.APIBaseURL+"/api/authenticate", nil)
	if err != nil {
		return "", fmt.Errorf("sameday: failed to create auth request: %w", err)
	}
	req.Header.Set("X-Auth-Username", a.config.Username)
	req.Header.Set("X-Auth-Password", a.config.Password)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", &fulfillment.ProviderError{
			Provider: "sameday",
			Message:  "authentication request failed",
			Err:      err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("sameday: failed to read auth response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", &fulfillment.ProviderError{
			Provider:   "sameday",
			StatusCode: resp.StatusCode,
			Message:    "authentication rejected",
		}
	}

	var auth authResponse
	if err := json.Unmarshal(body, &auth); err != nil {
		return "", fmt.Errorf("sameday: parsing auth response: %w", err)
	}
	if auth.Token == "" {
		return "", &fulfillment.ProviderError{
			Provider: "sameday",
			Message:  "empty auth token",
		}
	}

	a.authToken = auth.Token
	a.tokenExpiry = a.now().Add(23 * time.Hour)
	if t, err := time.Parse("2006-01-02 15:04", auth.ExpiresAt); err == nil {
		a.tokenExpiry = t
	}
	return a.authToken, nil
}

// doRequest performs one authenticated API call and returns the response body
func (a *Adapter) doRequest(ctx context.Context, method, path, token string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.config.APIBaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("sameday: failed to create request: %w", err)
	}
	req.Header.Set("X-Auth-Token", token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &fulfillment.ProviderError{
			Provider: "sameday",
			Message:  "request failed",
			Err:      err,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("sameday: failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &fulfillment.ProviderError{
			Provider:   "sameday",
			StatusCode: resp.StatusCode,
			Message:    providerMessage(respBody),
		}
	}
	return respBody, nil
}

// providerMessage extracts the provider's error description when present
func providerMessage(body []byte) string {
	var e apiError
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return "request rejected"
}

// Ensure Adapter implements the shipping and gazetteer ports
var (
	_ fulfillment.ShippingAdapter = (*Adapter)(nil)
	_ geography.Gazetteer         = (*Adapter)(nil)
)
