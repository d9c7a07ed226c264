package sameday

import "errors"

// SamedayProductionAPIURL is the production API endpoint
const SamedayProductionAPIURL = "https://api.sameday.ro"

// TrackingPageURL is the public tracking page prefix
const TrackingPageURL = "https://sameday.ro/#awb="

// Config holds configuration for the Sameday courier API
type Config struct {
	// Username is the API account username
	Username string
	// Password is the API account password
	Password string
	// APIBaseURL is the API endpoint
	APIBaseURL string
	// PickupPointID is the default sender pickup point
	PickupPointID string
	// ServiceID is the default courier service
	ServiceID string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

// Errors for Sameday configuration
var (
	ErrConfigMissingUsername = errors.New("sameday: username is required")
	ErrConfigMissingPassword = errors.New("sameday: password is required")
)

// NewConfig creates a Sameday configuration with defaults
func NewConfig(username, password string) *Config {
	return &Config{
		Username:       username,
		Password:       password,
		APIBaseURL:     SamedayProductionAPIURL,
		TimeoutSeconds: 30,
	}
}

// Validate validates the configuration and fills defaults
func (c *Config) Validate() error {
	if c.Username == "" {
		return ErrConfigMissingUsername
	}
	if c.Password == "" {
		return ErrConfigMissingPassword
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = SamedayProductionAPIURL
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}
