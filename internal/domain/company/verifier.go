package company

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/orderbridge/backend/internal/domain/fulfillment"
)

// ---------------------------------------------------------------------------
// Ports
// ---------------------------------------------------------------------------

// RateLimiter serializes access to the registry endpoint: Acquire blocks
// until at least the configured interval has elapsed since the previous
// granted call. It never fails except on context cancellation.
type RateLimiter interface {
	Acquire(ctx context.Context) error
}

// TaxAuthorityClient is the port to the government company-registry lookup.
// VerifyBatch accepts at most MaxBatchSize normalized identifiers per call.
type TaxAuthorityClient interface {
	VerifyBatch(ctx context.Context, identifiers []string, date time.Time) (*BatchResult, error)
}

// ---------------------------------------------------------------------------
// Verifier
// ---------------------------------------------------------------------------

// Verifier validates and normalizes fiscal identifiers and enriches client
// records from the registry. It does not retry: transport and throttling
// failures are classified (VERIFICATION_ERROR / RATE_LIMITED) and surfaced to
// the caller, whose retry strategy decides what happens next.
type Verifier struct {
	limiter RateLimiter
	client  TaxAuthorityClient
	logger  *zap.Logger
	now     func() time.Time
}

// NewVerifier creates a company verifier
func NewVerifier(limiter RateLimiter, client TaxAuthorityClient, logger *zap.Logger) *Verifier {
	return &Verifier{
		limiter: limiter,
		client:  client,
		logger:  logger,
		now:     time.Now,
	}
}

// Verify looks up a single fiscal identifier. Invalid input fails with
// ErrInvalidFormat before any network call; an identifier absent from the
// registry fails with ErrNotFound.
func (v *Verifier) Verify(ctx context.Context, identifier string) (*CompanyRecord, error) {
	id, err := NormalizeIdentifier(identifier)
	if err != nil {
		return nil, err
	}

	res, err := v.verifyBatch(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(res.Found) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	rec := res.Found[0]
	return &rec, nil
}

// VerifyBatch looks up up to MaxBatchSize identifiers in one registry call.
// A larger batch fails fast with ErrBatchTooLarge. Identifiers that do not
// normalize are reported in NotFound without reaching the network.
func (v *Verifier) VerifyBatch(ctx context.Context, identifiers []string) (*BatchResult, error) {
	if len(identifiers) > MaxBatchSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(identifiers), MaxBatchSize)
	}

	normalized := make([]string, 0, len(identifiers))
	invalid := make([]string, 0)
	for _, raw := range identifiers {
		id, err := NormalizeIdentifier(raw)
		if err != nil {
			invalid = append(invalid, strings.TrimSpace(raw))
			continue
		}
		normalized = append(normalized, id)
	}

	if len(normalized) == 0 {
		return &BatchResult{NotFound: invalid}, nil
	}

	res, err := v.verifyBatch(ctx, normalized)
	if err != nil {
		return nil, err
	}
	res.NotFound = append(res.NotFound, invalid...)
	return res, nil
}

// verifyBatch performs the rate-limited registry call and classifies failures
func (v *Verifier) verifyBatch(ctx context.Context, identifiers []string) (*BatchResult, error) {
	if err := v.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	res, err := v.client.VerifyBatch(ctx, identifiers, v.now())
	if err != nil {
		return nil, classifyLookupFailure(err)
	}
	return res, nil
}

// classifyLookupFailure marks registry failures for the retry strategy:
// throttling becomes RATE_LIMITED, everything else VERIFICATION_ERROR.
func classifyLookupFailure(err error) error {
	var pe *fulfillment.ProviderError
	if errors.As(err, &pe) {
		if pe.Kind == "" {
			if pe.StatusCode == 429 {
				pe.Kind = fulfillment.KindRateLimited
			} else {
				pe.Kind = fulfillment.KindVerificationError
			}
		}
		return err
	}
	return &fulfillment.ProviderError{
		Provider: "anaf",
		Message:  "company verification failed",
		Kind:     fulfillment.KindVerificationError,
		Err:      err,
	}
}

// ---------------------------------------------------------------------------
// Client enrichment
// ---------------------------------------------------------------------------

// BillingDetails is the invoiced-party data assembled from the order, before
// and after registry enrichment
type BillingDetails struct {
	Name               string
	FiscalCode         string
	RegistrationNumber string
	Address            string
	City               string
	County             string
	Country            string
	Email              string
	Phone              string
	VATPayer           bool
	// Verified marks details confirmed against the registry
	Verified bool
}

// Enrich fills the billing details from the registry record for the details'
// fiscal code. A company absent from the registry degrades gracefully: the
// input is returned unverified. Transport, throttling and 5xx failures are
// returned as classified errors so the caller's retry strategy can bypass
// verification on the next attempt.
func (v *Verifier) Enrich(ctx context.Context, details BillingDetails) (BillingDetails, error) {
	rec, err := v.Verify(ctx, details.FiscalCode)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidFormat) {
			v.logger.Info("fiscal identifier not verifiable, using order data as-is",
				zap.String("fiscal_code", details.FiscalCode),
				zap.Error(err),
			)
			details.Verified = false
			return details, nil
		}
		return details, err
	}

	details.FiscalCode = rec.FiscalCode
	if rec.VATActive {
		details.FiscalCode = "RO" + rec.FiscalCode
	}
	if rec.LegalName != "" {
		details.Name = rec.LegalName
	}
	if rec.RegistrationNumber != "" {
		details.RegistrationNumber = rec.RegistrationNumber
	}
	if rec.Address != "" {
		details.Address = rec.Address
	}
	if rec.City != "" {
		details.City = rec.City
	}
	if rec.County != "" {
		details.County = rec.County
	}
	details.VATPayer = rec.VATActive
	details.Verified = true
	return details, nil
}
