package anaf

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/orderbridge/backend/internal/domain/company"
	"github.com/orderbridge/backend/internal/domain/fulfillment"
)

// AnafProductionAPIURL is the company-registry batch lookup endpoint
const AnafProductionAPIURL = "https://webservicesp.anaf.ro/PlatitorTvaRest/api/v8/ws/tva"

// maxResponseSize is the maximum allowed response size from the registry (10MB)
const maxResponseSize = 10 * 1024 * 1024

// Config holds configuration for the company-registry client
type Config struct {
	// APIBaseURL is the batch lookup endpoint
	APIBaseURL string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

// Validate validates the configuration and fills defaults
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		c.APIBaseURL = AnafProductionAPIURL
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}

// lookupRequest is one identifier in the batch request array
type lookupRequest struct {
	CUI  string `json:"cui"`
	Data string `json:"data"`
}

// lookupResponse is the registry response envelope
type lookupResponse struct {
	Cod      int            `json:"cod"`
	Message  string         `json:"message"`
	Found    []recordWire   `json:"found"`
	NotFound []notFoundWire `json:"notFound"`
}

type recordWire struct {
	DateGenerale dateGeneraleWire `json:"date_generale"`
	TVA          tvaWire          `json:"inregistrare_scop_Tva"`
	Inactiv      inactivWire      `json:"stare_inactiv"`
}

type dateGeneraleWire struct {
	CUI       int64  `json:"cui"`
	Denumire  string `json:"denumire"`
	Adresa    string `json:"adresa"`
	NrRegCom  string `json:"nrRegCom"`
	CodPostal string `json:"codPostal"`
}

type tvaWire struct {
	ScpTVA bool `json:"scpTVA"`
}

type inactivWire struct {
	StatusInactivi bool `json:"statusInactivi"`
}

type notFoundWire struct {
	CUI string `json:"cui"`
}

// notFoundString tolerates both the object and bare-string notFound shapes
// the endpoint has served over time
func (n *notFoundWire) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		n.CUI = s
		return nil
	}
	type alias notFoundWire
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	n.CUI = a.CUI
	return nil
}

// Client is the company-registry batch lookup client
type Client struct {
	config     *Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a registry client
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

// VerifyBatch looks up the normalized identifiers valid at the given date.
// The caller enforces batch size and pacing.
func (c *Client) VerifyBatch(ctx context.Context, identifiers []string, date time.Time) (*company.BatchResult, error) {
	if len(identifiers) == 0 {
		return &company.BatchResult{}, nil
	}

	day := date.Format("2006-01-02")
	request := make([]lookupRequest, 0, len(identifiers))
	for _, id := range identifiers {
		request = append(request, lookupRequest{CUI: id, Data: day})
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("anaf: encoding lookup request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.APIBaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anaf: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &fulfillment.ProviderError{
			Provider: "anaf",
			Message:  "registry request failed",
			Err:      err,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("anaf: failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, &fulfillment.ProviderError{
			Provider:   "anaf",
			StatusCode: resp.StatusCode,
			Message:    "registry lookup rejected",
		}
	}

	var envelope lookupResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, fmt.Errorf("anaf: parsing lookup response: %w", err)
	}
	if envelope.Cod != 200 {
		return nil, &fulfillment.ProviderError{
			Provider:   "anaf",
			StatusCode: envelope.Cod,
			Message:    envelope.Message,
		}
	}

	result := &company.BatchResult{}
	for _, rec := range envelope.Found {
		record, err := convertRecord(&rec, date)
		if err != nil {
			c.logger.Warn("skipping unparseable registry record", zap.Error(err))
			continue
		}
		result.Found = append(result.Found, record)
	}
	for _, nf := range envelope.NotFound {
		result.NotFound = append(result.NotFound, nf.CUI)
	}
	return result, nil
}

// convertRecord maps a registry record onto the domain record. The registry
// serves the address as one line with embedded locality and county segments.
func convertRecord(rec *recordWire, verifiedAt time.Time) (company.CompanyRecord, error) {
	if rec.DateGenerale.CUI == 0 {
		return company.CompanyRecord{}, errors.New("anaf: record without cui")
	}
	street, city, county := splitRegistryAddress(rec.DateGenerale.Adresa)
	return company.CompanyRecord{
		FiscalCode:         fmt.Sprintf("%d", rec.DateGenerale.CUI),
		LegalName:          rec.DateGenerale.Denumire,
		RegistrationNumber: rec.DateGenerale.NrRegCom,
		Address:            street,
		City:               city,
		County:             county,
		PostalCode:         rec.DateGenerale.CodPostal,
		Active:             !rec.Inactiv.StatusInactivi,
		VATActive:          rec.TVA.ScpTVA,
		VerifiedAt:         verifiedAt,
	}, nil
}

// Ensure Client implements the registry lookup port
var _ company.TaxAuthorityClient = (*Client)(nil)
