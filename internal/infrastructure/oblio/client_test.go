package oblio

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/orderbridge/backend/internal/domain/fulfillment"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr error
	}{
		{
			name:   "valid config",
			config: &Config{Email: "a@b.ro", APISecret: "s", CIF: "RO1", Series: "FCT"},
		},
		{
			name:    "missing email",
			config:  &Config{APISecret: "s", CIF: "RO1", Series: "FCT"},
			wantErr: ErrConfigMissingEmail,
		},
		{
			name:    "missing secret",
			config:  &Config{Email: "a@b.ro", CIF: "RO1", Series: "FCT"},
			wantErr: ErrConfigMissingSecret,
		},
		{
			name:    "missing cif",
			config:  &Config{Email: "a@b.ro", APISecret: "s", Series: "FCT"},
			wantErr: ErrConfigMissingCIF,
		},
		{
			name:    "missing series",
			config:  &Config{Email: "a@b.ro", APISecret: "s", CIF: "RO1"},
			wantErr: ErrConfigMissingSeries,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, OblioProductionAPIURL, tt.config.APIBaseURL)
			assert.Equal(t, "RO", tt.config.Language)
		})
	}
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := NewConfig("cont@exemplu.ro", "secret", "RO12345678", "FCT")
	config.AlternateSeries = "FCTB"
	config.APIBaseURL = server.URL
	client, err := NewClient(config, zap.NewNop())
	require.NoError(t, err)
	return client
}

func samplePayload() *fulfillment.InvoicePayload {
	return &fulfillment.InvoicePayload{
		Series:   "FCT",
		Currency: "RON",
		IssueDate: time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		Client: fulfillment.InvoiceClient{
			Name:       "EXEMPLU IMPEX SRL",
			FiscalCode: "RO87654321",
			City:       "Timisoara",
			County:     "Timis",
			Country:    "Romania",
			VATPayer:   true,
		},
		Lines: []fulfillment.InvoiceLine{
			{Name: "Produs", Code: "SKU-1", Quantity: 2, UnitPrice: decimal.RequireFromString("170.00")},
			{Name: "Transport", Quantity: 1, UnitPrice: decimal.RequireFromString("19.90"), IsShipping: true},
		},
		SendEmail:      true,
		OrderReference: "#1042",
	}
}

func TestClient_CreateInvoice(t *testing.T) {
	var tokenCalls int
	var captured invoiceRequest
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/authorize/token":
			tokenCalls++
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "cont@exemplu.ro", r.FormValue("client_id"))
			json.NewEncoder(w).Encode(tokenResponse{AccessToken: "tok-1", ExpiresIn: 3600})
		case "/docs/invoice":
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			json.NewEncoder(w).Encode(invoiceResponse{
				Status: 200,
				Data:   invoiceDataWire{SeriesName: "FCT", Number: "1001", Link: "https://oblio.eu/doc/1001"},
			})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))

	result, err := client.CreateInvoice(context.Background(), samplePayload())
	require.NoError(t, err)

	assert.Equal(t, "1001", result.Number)
	assert.Equal(t, "FCT", result.Series)
	assert.Equal(t, "FCT 1001", result.Reference())
	assert.Equal(t, "https://oblio.eu/doc/1001", result.URL)

	assert.Equal(t, "RO12345678", captured.CIF)
	assert.Equal(t, "2026-03-14", captured.IssueDate)
	assert.Equal(t, 1, captured.SendEmail)
	assert.Equal(t, 0, captured.UseStock)
	assert.Equal(t, 1, captured.Client.VATPayer)
	assert.Contains(t, captured.Mentions, "#1042")

	require.Len(t, captured.Products, 2)
	assert.Equal(t, "170.00", captured.Products[0].Price)
	assert.Equal(t, "buc", captured.Products[0].MeasuringUnit)
	assert.Equal(t, "Serviciu", captured.Products[1].ProductType)
}

func TestClient_CreateInvoice_ReusesToken(t *testing.T) {
	var tokenCalls int
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/authorize/token":
			tokenCalls++
			json.NewEncoder(w).Encode(tokenResponse{AccessToken: "tok-1", ExpiresIn: 3600})
		case "/docs/invoice":
			json.NewEncoder(w).Encode(invoiceResponse{
				Status: 200,
				Data:   invoiceDataWire{SeriesName: "FCT", Number: "1001"},
			})
		}
	}))

	_, err := client.CreateInvoice(context.Background(), samplePayload())
	require.NoError(t, err)
	_, err = client.CreateInvoice(context.Background(), samplePayload())
	require.NoError(t, err)
	assert.Equal(t, 1, tokenCalls)
}

func TestClient_CreateInvoice_ProviderRejection(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/authorize/token":
			json.NewEncoder(w).Encode(tokenResponse{AccessToken: "tok-1", ExpiresIn: 3600})
		case "/docs/invoice":
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(invoiceResponse{
				Status:        400,
				StatusMessage: "Adresa clientului este invalida",
			})
		}
	}))

	_, err := client.CreateInvoice(context.Background(), samplePayload())
	require.Error(t, err)

	var pe *fulfillment.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 400, pe.StatusCode)
	assert.Contains(t, pe.Message, "Adresa clientului")
}

func TestClient_CreateInvoice_EnvelopeFailure(t *testing.T) {
	// HTTP 200 with a provider-level failure in the envelope.
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/authorize/token":
			json.NewEncoder(w).Encode(tokenResponse{AccessToken: "tok-1", ExpiresIn: 3600})
		case "/docs/invoice":
			json.NewEncoder(w).Encode(invoiceResponse{
				Status:        401,
				StatusMessage: "Sesiune expirata",
			})
		}
	}))

	_, err := client.CreateInvoice(context.Background(), samplePayload())
	require.Error(t, err)

	var pe *fulfillment.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 401, pe.StatusCode)
}

func TestClient_CreateInvoice_AuthFailure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.CreateInvoice(context.Background(), samplePayload())
	require.Error(t, err)

	var pe *fulfillment.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusUnauthorized, pe.StatusCode)
}
