package oblio

import "errors"

// OblioProductionAPIURL is the production API endpoint
const OblioProductionAPIURL = "https://www.oblio.eu/api"

// Config holds configuration for the Oblio invoicing API
type Config struct {
	// Email is the account email (OAuth client id)
	Email string
	// APISecret is the account API secret (OAuth client secret)
	APISecret string
	// CIF is the issuing company's fiscal code
	CIF string
	// Series is the default invoice series
	Series string
	// AlternateSeries is the fallback series used when the provider rejects
	// documents in the default one
	AlternateSeries string
	// APIBaseURL is the API endpoint
	APIBaseURL string
	// Language is the document language code
	Language string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

// Errors for Oblio configuration
var (
	ErrConfigMissingEmail  = errors.New("oblio: account email is required")
	ErrConfigMissingSecret = errors.New("oblio: api secret is required")
	ErrConfigMissingCIF    = errors.New("oblio: company cif is required")
	ErrConfigMissingSeries = errors.New("oblio: invoice series is required")
)

// NewConfig creates an Oblio configuration with defaults
func NewConfig(email, apiSecret, cif, series string) *Config {
	return &Config{
		Email:          email,
		APISecret:      apiSecret,
		CIF:            cif,
		Series:         series,
		APIBaseURL:     OblioProductionAPIURL,
		Language:       "RO",
		TimeoutSeconds: 30,
	}
}

// Validate validates the configuration and fills defaults
func (c *Config) Validate() error {
	if c.Email == "" {
		return ErrConfigMissingEmail
	}
	if c.APISecret == "" {
		return ErrConfigMissingSecret
	}
	if c.CIF == "" {
		return ErrConfigMissingCIF
	}
	if c.Series == "" {
		return ErrConfigMissingSeries
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = OblioProductionAPIURL
	}
	if c.Language == "" {
		c.Language = "RO"
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}
