package shopcommerce

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// Config holds configuration for the commerce platform Admin API
type Config struct {
	// ShopDomain is the shop's myshopify-style domain (without scheme)
	ShopDomain string
	// AccessToken is the Admin API access token
	AccessToken string
	// APIVersion is the Admin API version segment (e.g. "2026-01")
	APIVersion string
	// WebhookSecret signs incoming webhook payloads
	WebhookSecret string
	// FieldNamespace is the metafield namespace owned by this service
	FieldNamespace string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

// DefaultAPIVersion is used when the configuration does not pin one
const DefaultAPIVersion = "2026-01"

// Errors for commerce platform configuration
var (
	ErrConfigMissingShopDomain  = errors.New("shopcommerce: shop domain is required")
	ErrConfigMissingAccessToken = errors.New("shopcommerce: access token is required")
)

// NewConfig creates a platform configuration with defaults
func NewConfig(shopDomain, accessToken, webhookSecret string) *Config {
	return &Config{
		ShopDomain:     shopDomain,
		AccessToken:    accessToken,
		APIVersion:     DefaultAPIVersion,
		WebhookSecret:  webhookSecret,
		FieldNamespace: "orderbridge",
		TimeoutSeconds: 30,
	}
}

// Validate validates the configuration and fills defaults
func (c *Config) Validate() error {
	if c.ShopDomain == "" {
		return ErrConfigMissingShopDomain
	}
	if c.AccessToken == "" {
		return ErrConfigMissingAccessToken
	}
	if c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}
	if c.FieldNamespace == "" {
		c.FieldNamespace = "orderbridge"
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	c.ShopDomain = strings.TrimSuffix(strings.TrimPrefix(c.ShopDomain, "https://"), "/")
	return nil
}

// BaseURL returns the versioned Admin API base URL
func (c *Config) BaseURL() string {
	return fmt.Sprintf("https://%s/admin/api/%s", c.ShopDomain, c.APIVersion)
}

// VerifyWebhookSignature checks the platform's HMAC-SHA256 webhook signature
// (base64 of the raw body signed with the webhook secret)
func (c *Config) VerifyWebhookSignature(body []byte, signature string) bool {
	if c.WebhookSecret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(c.WebhookSecret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
