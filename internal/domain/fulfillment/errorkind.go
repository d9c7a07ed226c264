package fulfillment

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// ---------------------------------------------------------------------------
// ErrorKind
// ---------------------------------------------------------------------------

// ErrorKind is the closed taxonomy every failure is classified into.
// Classification is total: every error maps to exactly one kind.
type ErrorKind string

const (
	// KindNone indicates no previous error (first attempt)
	KindNone ErrorKind = ""
	// KindNetwork indicates a transport failure, 5xx or 429 response
	KindNetwork ErrorKind = "NETWORK"
	// KindRateLimited indicates the tax-authority lookup was rate limited
	KindRateLimited ErrorKind = "RATE_LIMITED"
	// KindVerificationError indicates a tax-authority lookup failure
	KindVerificationError ErrorKind = "VERIFICATION_ERROR"
	// KindClientDataError indicates invalid buyer/address data
	KindClientDataError ErrorKind = "CLIENT_DATA_ERROR"
	// KindProductValidationError indicates invalid product/line-item data
	KindProductValidationError ErrorKind = "PRODUCT_VALIDATION_ERROR"
	// KindProviderValidationError indicates a 4xx rejection from the provider
	KindProviderValidationError ErrorKind = "PROVIDER_VALIDATION_ERROR"
	// KindSystemError indicates an uncategorized failure
	KindSystemError ErrorKind = "SYSTEM_ERROR"
)

// IsValid returns true if the kind is a known classification
func (k ErrorKind) IsValid() bool {
	switch k {
	case KindNetwork, KindRateLimited, KindVerificationError, KindClientDataError,
		KindProductValidationError, KindProviderValidationError, KindSystemError:
		return true
	default:
		return false
	}
}

// String returns the string representation of the kind
func (k ErrorKind) String() string {
	return string(k)
}

// ---------------------------------------------------------------------------
// ProviderError
// ---------------------------------------------------------------------------

// ProviderError is a failure returned by an external provider call. It carries
// the HTTP status and provider message so the classifier and the final-failure
// record can use them. StatusCode 0 means the request never produced a
// response (transport failure).
type ProviderError struct {
	// Provider identifies which collaborator failed (e.g. "oblio", "sameday", "anaf")
	Provider string
	// StatusCode is the HTTP status, 0 when there was no response
	StatusCode int
	// Message is the provider-supplied error message
	Message string
	// Kind pre-classifies the failure when the caller already knows it
	// (e.g. the company verifier marks 429 as RATE_LIMITED); the classifier
	// honors it before applying its own rules
	Kind ErrorKind
	// Err is the underlying error, if any
	Err error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Unwrap returns the underlying error
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ---------------------------------------------------------------------------
// Classifier
// ---------------------------------------------------------------------------

// verificationMarkers are message fragments that identify a tax-authority
// lookup failure surfaced through a provider response.
var verificationMarkers = []string{
	"anaf",
	"tax registry",
	"company verification",
	"vat lookup",
}

// clientDataMarkers are message fragments that point at buyer or address data.
var clientDataMarkers = []string{
	"client",
	"customer",
	"address",
	"city",
	"locality",
	"county",
	"postal code",
	"phone",
	"email",
	"cif",
	"fiscal code",
}

// productMarkers are message fragments that point at product or line-item data.
var productMarkers = []string{
	"product",
	"line item",
	"sku",
	"quantity",
	"measuring unit",
	"price",
	"stock",
}

// Classify maps a raw failure to exactly one ErrorKind. It is total: any
// error yields a kind, defaulting to SYSTEM_ERROR. A nil error yields KindNone.
//
// Rules are applied in order:
//  1. a pre-classified ProviderError keeps its kind
//  2. no response, status >= 500 or status 429 -> NETWORK
//  3. message carrying a tax-authority marker -> VERIFICATION_ERROR
//  4. message mentioning client/address fields -> CLIENT_DATA_ERROR
//  5. message mentioning product/line-item fields -> PRODUCT_VALIDATION_ERROR
//  6. status 400 or 422 -> PROVIDER_VALIDATION_ERROR
//  7. anything else -> SYSTEM_ERROR
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		if pe.Kind.IsValid() {
			return pe.Kind
		}
		if pe.StatusCode == 0 || pe.StatusCode >= 500 || pe.StatusCode == 429 {
			return KindNetwork
		}
		msg := strings.ToLower(pe.Message)
		switch {
		case containsAny(msg, verificationMarkers):
			return KindVerificationError
		case containsAny(msg, clientDataMarkers):
			return KindClientDataError
		case containsAny(msg, productMarkers):
			return KindProductValidationError
		case pe.StatusCode == 400 || pe.StatusCode == 422:
			return KindProviderValidationError
		default:
			return KindSystemError
		}
	}

	// Errors without a provider response: transport-level failures are
	// transient, everything else falls through the message markers.
	var netErr net.Error
	if errors.As(err, &netErr) || isConnectionError(err) {
		return KindNetwork
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, verificationMarkers):
		return KindVerificationError
	case containsAny(msg, clientDataMarkers):
		return KindClientDataError
	case containsAny(msg, productMarkers):
		return KindProductValidationError
	default:
		return KindSystemError
	}
}

// isConnectionError matches transport failures that do not implement net.Error
func isConnectionError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"timeout",
		"context deadline exceeded",
		"eof",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func containsAny(msg string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
