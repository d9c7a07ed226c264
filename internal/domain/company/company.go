package company

import (
	"errors"
	"strings"
	"time"
	"unicode"
)

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

var (
	// ErrInvalidFormat indicates a fiscal identifier with no usable digits
	ErrInvalidFormat = errors.New("company: invalid fiscal identifier format")
	// ErrNotFound indicates the identifier is not present in the registry
	ErrNotFound = errors.New("company: company not found in registry")
	// ErrBatchTooLarge indicates a batch exceeding the registry's cap
	ErrBatchTooLarge = errors.New("company: batch exceeds maximum size")
)

// MaxBatchSize is the registry's hard cap on identifiers per batch call
const MaxBatchSize = 100

// ---------------------------------------------------------------------------
// CompanyRecord
// ---------------------------------------------------------------------------

// CompanyRecord is the registry's view of a verified company. Records are
// constructed per lookup and never cached by this layer.
type CompanyRecord struct {
	// FiscalCode is the normalized fiscal identifier (digits only)
	FiscalCode string
	// LegalName is the registered company name
	LegalName string
	// RegistrationNumber is the trade-registry number
	RegistrationNumber string
	// Address is the registered street address
	Address string
	// City is the registered locality
	City string
	// County is the registered administrative region
	County string
	// PostalCode is the registered postal code
	PostalCode string
	// Active indicates the company is not deregistered
	Active bool
	// VATActive indicates the company is VAT-registered
	VATActive bool
	// VerifiedAt is when the lookup was performed
	VerifiedAt time.Time
}

// BatchResult is the outcome of a batch registry lookup
type BatchResult struct {
	// Found contains the records for identifiers present in the registry
	Found []CompanyRecord
	// NotFound lists the normalized identifiers absent from the registry
	NotFound []string
}

// ---------------------------------------------------------------------------
// Identifier normalization
// ---------------------------------------------------------------------------

// NormalizeIdentifier canonicalizes a fiscal identifier: whitespace stripped,
// uppercased, a leading two-letter country prefix dropped, all non-digits
// removed. The result must be 2-10 digits; otherwise ErrInvalidFormat.
func NormalizeIdentifier(raw string) (string, error) {
	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)
	s = strings.ToUpper(s)

	// Drop a country prefix such as "RO" but keep bare numeric identifiers
	if len(s) >= 2 && isLetter(s[0]) && isLetter(s[1]) {
		s = s[2:]
	}

	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	id := digits.String()
	if len(id) < 2 || len(id) > 10 {
		return "", ErrInvalidFormat
	}
	return id, nil
}

func isLetter(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}
