package shopcommerce

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

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
			config: &Config{ShopDomain: "shop.example.com", AccessToken: "token"},
		},
		{
			name:    "missing shop domain",
			config:  &Config{AccessToken: "token"},
			wantErr: ErrConfigMissingShopDomain,
		},
		{
			name:    "missing access token",
			config:  &Config{ShopDomain: "shop.example.com"},
			wantErr: ErrConfigMissingAccessToken,
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
			assert.Equal(t, DefaultAPIVersion, tt.config.APIVersion)
			assert.Equal(t, "orderbridge", tt.config.FieldNamespace)
			assert.True(t, tt.config.TimeoutSeconds > 0)
		})
	}
}

func TestConfig_Validate_NormalizesDomain(t *testing.T) {
	config := &Config{ShopDomain: "https://shop.example.com/", AccessToken: "token"}
	require.NoError(t, config.Validate())
	assert.Equal(t, "shop.example.com", config.ShopDomain)
	assert.Equal(t, "https://shop.example.com/admin/api/"+DefaultAPIVersion, config.BaseURL())
}

func TestConfig_VerifyWebhookSignature(t *testing.T) {
	config := NewConfig("shop.example.com", "token", "webhook-secret")
	body := []byte(`{"id":1042}`)

	mac := hmac.New(sha256.New, []byte("webhook-secret"))
	mac.Write(body)
	valid := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	assert.True(t, config.VerifyWebhookSignature(body, valid))
	assert.False(t, config.VerifyWebhookSignature(body, "bogus"))
	assert.False(t, config.VerifyWebhookSignature(body, ""))
	assert.False(t, config.VerifyWebhookSignature([]byte(`{"id":9}`), valid))
}

// newTestClient points a client at the test server
func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewTLSServer(handler)
	t.Cleanup(server.Close)

	config := NewConfig("shop.example.com", "test-token", "secret")
	client, err := NewClient(config, zap.NewNop())
	require.NoError(t, err)
	client.httpClient = server.Client()
	// Route requests at the test server instead of the real platform.
	client.config.ShopDomain = strings.TrimPrefix(server.URL, "https://")
	return client, server
}

const orderFixture = `{
  "order": {
    "id": 450789469,
    "name": "#1042",
    "email": "client@example.com",
    "financial_status": "paid",
    "currency": "RON",
    "total_price": "359.90",
    "total_shipping_price_set": {"shop_money": {"amount": "19.90", "currency_code": "RON"}},
    "tags": "vip, invoice-error-2026-03-14",
    "created_at": "2026-03-14T09:00:00Z",
    "line_items": [
      {"id": 1, "sku": "SKU-1", "title": "Produs", "quantity": 2, "price": "170.00", "requires_shipping": true}
    ],
    "shipping_address": {"first_name": "Ion", "last_name": "Popescu", "city": "Timișoara", "province": "Timiș", "zip": "300001", "country_code": "RO", "phone": "+40700000000", "address1": "Str. Unirii 1"},
    "billing_address": {"first_name": "Ion", "last_name": "Popescu", "company": "EXEMPLU IMPEX SRL", "city": "Timișoara", "province": "Timiș", "country_code": "RO"},
    "fulfillments": [
      {"id": 9, "status": "cancelled", "tracking_number": "OLD123"}
    ],
    "note_attributes": [{"name": "CIF", "value": "RO12345678"}]
  }
}`

const metafieldsFixture = `{
  "metafields": [
    {"id": 101, "namespace": "orderbridge", "key": "invoice_retry_state", "value": "{\"v\":1,\"attempt\":1,\"last_error_kind\":\"NETWORK\",\"last_error_at\":\"2026-03-14T09:00:00Z\"}"},
    {"id": 102, "namespace": "other_app", "key": "noise", "value": "x"}
  ]
}`

func TestClient_GetOrder(t *testing.T) {
	var sawToken string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawToken = r.Header.Get("X-Shopify-Access-Token")
		switch {
		case strings.HasSuffix(r.URL.Path, "/orders/450789469.json"):
			w.Write([]byte(orderFixture))
		case strings.HasSuffix(r.URL.Path, "/orders/450789469/metafields.json"):
			assert.Equal(t, "orderbridge", r.URL.Query().Get("namespace"))
			w.Write([]byte(metafieldsFixture))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))

	order, err := client.GetOrder(context.Background(), "450789469")
	require.NoError(t, err)
	assert.Equal(t, "test-token", sawToken)

	assert.Equal(t, "450789469", order.ID)
	assert.Equal(t, "#1042", order.Name)
	assert.Equal(t, "paid", order.FinancialStatus)
	assert.Equal(t, "359.9", order.TotalPrice.String())
	assert.Equal(t, "19.9", order.ShippingPrice.String())
	assert.True(t, order.Tags.Has("vip"))
	assert.True(t, order.Tags.Has("invoice-error-2026-03-14"))

	require.Len(t, order.LineItems, 1)
	assert.Equal(t, "SKU-1", order.LineItems[0].SKU)
	assert.Equal(t, 2, order.LineItems[0].Quantity)

	require.NotNil(t, order.ShippingAddress)
	assert.Equal(t, "Timișoara", order.ShippingAddress.City)
	assert.Equal(t, "Ion Popescu", order.ShippingAddress.FullName())

	// The checkout attribute surfaces as the billing fiscal code.
	require.NotNil(t, order.BillingAddress)
	assert.Equal(t, "RO12345678", order.BillingAddress.FiscalCode)

	// Only namespaced fields come through.
	value, ok := order.Field("invoice_retry_state")
	assert.True(t, ok)
	assert.Contains(t, value, "NETWORK")
	_, ok = order.Field("noise")
	assert.False(t, ok)

	require.Len(t, order.Fulfillments, 1)
	assert.Equal(t, "cancelled", order.Fulfillments[0].Status)
}

func TestClient_SetTags(t *testing.T) {
	var captured orderUpdateEnvelope
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/orders/450789469.json"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(`{"order":{"id":450789469}}`))
	}))

	tags := fulfillment.NewTagSet("vip", "invoice-generated")
	require.NoError(t, client.SetTags(context.Background(), "450789469", tags))
	assert.Equal(t, int64(450789469), captured.Order.ID)
	assert.Equal(t, "invoice-generated, vip", captured.Order.Tags)
}

func TestClient_SetTags_InvalidOrderID(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))
	err := client.SetTags(context.Background(), "not-numeric", fulfillment.NewTagSet("a"))
	require.Error(t, err)
}

func TestClient_SetFields(t *testing.T) {
	var created, updated, deleted []string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			w.Write([]byte(metafieldsFixture))
		case r.Method == http.MethodPost:
			var env metafieldEnvelope
			require.NoError(t, json.NewDecoder(r.Body).Decode(&env))
			created = append(created, env.Metafield.Key)
			assert.Equal(t, "single_line_text_field", env.Metafield.Type)
			w.Write([]byte(`{"metafield":{"id":201}}`))
		case r.Method == http.MethodPut:
			var env metafieldEnvelope
			require.NoError(t, json.NewDecoder(r.Body).Decode(&env))
			updated = append(updated, r.URL.Path)
			w.Write([]byte(`{"metafield":{"id":101}}`))
		case r.Method == http.MethodDelete:
			deleted = append(deleted, r.URL.Path)
			w.Write([]byte(`{}`))
		}
	}))

	fields := []fulfillment.Field{
		{Namespace: "orderbridge", Key: "invoice_number", Value: "FCT 100"},
		{Namespace: "orderbridge", Key: "invoice_retry_state", Value: ""},
		{Namespace: "orderbridge", Key: "invoice_last_error", Value: ""},
	}
	require.NoError(t, client.SetFields(context.Background(), "450789469", fields))

	// New field created, existing retry state deleted, absent field ignored.
	assert.Equal(t, []string{"invoice_number"}, created)
	assert.Empty(t, updated)
	require.Len(t, deleted, 1)
	assert.True(t, strings.HasSuffix(deleted[0], "/metafields/101.json"))
}

func TestClient_SetFields_UpdatesExisting(t *testing.T) {
	var putPaths []string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(metafieldsFixture))
		case http.MethodPut:
			putPaths = append(putPaths, r.URL.Path)
			w.Write([]byte(`{"metafield":{"id":101}}`))
		default:
			t.Fatalf("unexpected method %s", r.Method)
		}
	}))

	fields := []fulfillment.Field{
		{Namespace: "orderbridge", Key: "invoice_retry_state", Value: `{"v":1,"attempt":2}`},
	}
	require.NoError(t, client.SetFields(context.Background(), "450789469", fields))
	require.Len(t, putPaths, 1)
	assert.True(t, strings.HasSuffix(putPaths[0], "/metafields/101.json"))
}

func TestClient_ErrorsCarryStatus(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"errors":"Exceeded 2 calls per second"}`))
	}))

	_, err := client.GetOrder(context.Background(), "450789469")
	require.Error(t, err)

	var pe *fulfillment.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusTooManyRequests, pe.StatusCode)
	assert.Contains(t, pe.Message, "Exceeded")
	assert.Equal(t, fulfillment.KindNetwork, fulfillment.Classify(err))
}
