package fulfillment

import "time"

// ---------------------------------------------------------------------------
// RetryStrategy
// ---------------------------------------------------------------------------

// StrategyType identifies the retry strategy family applied on an attempt
type StrategyType string

const (
	// StrategyTypeNone is the no-op strategy (first attempt, or plain retry)
	StrategyTypeNone StrategyType = "NONE"
	// StrategyTypeBackoff retries unchanged after an exponential backoff
	StrategyTypeBackoff StrategyType = "BACKOFF"
	// StrategyTypeSkipVerification retries without the tax-authority lookup
	StrategyTypeSkipVerification StrategyType = "SKIP_VERIFICATION"
	// StrategyTypeSimplifiedClient retries with a minimal placeholder client record
	StrategyTypeSimplifiedClient StrategyType = "SIMPLIFIED_CLIENT"
	// StrategyTypeRelaxedProducts retries without the shipping line and with
	// relaxed product validation
	StrategyTypeRelaxedProducts StrategyType = "RELAXED_PRODUCTS"
	// StrategyTypeAlternateOptions retries with an alternate document series
	// and conservative provider options
	StrategyTypeAlternateOptions StrategyType = "ALTERNATE_OPTIONS"
)

// String returns the string representation of the strategy type
func (t StrategyType) String() string {
	return string(t)
}

// Strategy describes how a retry attempt should differ from the previous one.
// It is a pure function of (previous error kind, attempt number); it carries
// no hidden state.
type Strategy struct {
	// Type is the strategy family
	Type StrategyType
	// Backoff is how long to wait before the attempt (0 means no wait)
	Backoff time.Duration
	// SkipVerification disables the tax-authority lookup for this attempt
	SkipVerification bool
	// UseSimplifiedClient substitutes a minimal placeholder client record
	UseSimplifiedClient bool
	// ExcludeShippingLine drops the shipping line item from the payload
	ExcludeShippingLine bool
	// RelaxProductValidation loosens product field validation in the payload
	RelaxProductValidation bool
	// UseAlternateSeries switches to the alternate document series
	UseAlternateSeries bool
	// DisableStockDecrement turns off provider-side stock decrement
	DisableStockDecrement bool
	// DisableEmailNotification turns off the provider's buyer email
	DisableEmailNotification bool
}

// IsNoop returns true if the strategy changes nothing about the attempt
func (s Strategy) IsNoop() bool {
	return s.Type == StrategyTypeNone && s.Backoff == 0
}

const (
	// backoffBase is the backoff for the first transient retry
	backoffBase = 1000 * time.Millisecond
	// backoffCap bounds the exponential backoff
	backoffCap = 30 * time.Second
)

// SelectStrategy returns the retry strategy for the given previous error kind
// and the 1-based number of attempts that have already failed. It is
// deterministic: identical inputs always yield identical strategies. With no
// previous error (first attempt) it returns the no-op strategy.
func SelectStrategy(kind ErrorKind, attempt int) Strategy {
	if kind == KindNone {
		return Strategy{Type: StrategyTypeNone}
	}

	switch kind {
	case KindNetwork, KindRateLimited:
		return Strategy{
			Type:    StrategyTypeBackoff,
			Backoff: transientBackoff(attempt),
		}
	case KindVerificationError:
		return Strategy{
			Type:             StrategyTypeSkipVerification,
			SkipVerification: true,
		}
	case KindClientDataError:
		return Strategy{
			Type:                StrategyTypeSimplifiedClient,
			UseSimplifiedClient: true,
			SkipVerification:    true,
		}
	case KindProductValidationError:
		return Strategy{
			Type:                   StrategyTypeRelaxedProducts,
			ExcludeShippingLine:    true,
			RelaxProductValidation: true,
		}
	case KindProviderValidationError:
		return Strategy{
			Type:                     StrategyTypeAlternateOptions,
			UseAlternateSeries:       true,
			DisableStockDecrement:    true,
			DisableEmailNotification: true,
		}
	default:
		// SYSTEM_ERROR and anything unexpected: plain retry
		return Strategy{Type: StrategyTypeNone}
	}
}

// transientBackoff computes min(base * 2^(attempt-1), cap)
func transientBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := backoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= backoffCap {
			return backoffCap
		}
	}
	if d > backoffCap {
		return backoffCap
	}
	return d
}
