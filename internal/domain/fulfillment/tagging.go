package fulfillment

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Tag and field grammar. Platform tags and namespaced fields are the only
// durable record of past side effects, so their shapes are treated as a
// serialization format with a fixed grammar rather than ad hoc strings:
//
//	success tag:  <op>-generated                      e.g. "invoice-generated"
//	error tag:    <op>-error-<yyyy-mm-dd>             first failed attempt
//	              <op>-error-<yyyy-mm-dd>-retry-<n>   n-th retry (n >= 1)
//	retry state:  field "<op>_retry_state" holding a versioned JSON record
//	reference:    field "<op>_number" holding the provider document reference
//	last error:   field "<op>_last_error" holding the composed failure message

const (
	// tagDateLayout is the date component of error tags
	tagDateLayout = "2006-01-02"
	// retryStateVersion is the current version of the structured retry field
	retryStateVersion = 1
)

// SuccessTag returns the terminal success tag for an operation
func SuccessTag(op string) string {
	return op + "-generated"
}

// ErrorTag composes the error tag for a failed attempt. The first attempt
// carries no retry suffix; attempt n > 1 carries "-retry-<n-1>".
func ErrorTag(op string, date time.Time, attempt int) string {
	tag := fmt.Sprintf("%s-error-%s", op, date.Format(tagDateLayout))
	if attempt > 1 {
		tag = fmt.Sprintf("%s-retry-%d", tag, attempt-1)
	}
	return tag
}

// IsErrorTag reports whether the tag belongs to the operation's error tag family
func IsErrorTag(op, tag string) bool {
	return errorTagPattern(op).MatchString(tag)
}

func errorTagPattern(op string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(op) + `-error-\d{4}-\d{2}-\d{2}(-retry-(\d+))?$`)
}

// AttemptFromTags derives the next attempt number from the legacy error tag
// naming convention: highest retry suffix + 2 (the unsuffixed error tag is
// attempt 1). Returns 1 when no error tags are present.
func AttemptFromTags(op string, tags TagSet) int {
	pattern := errorTagPattern(op)
	attempt := 0
	for tag := range tags {
		m := pattern.FindStringSubmatch(tag)
		if m == nil {
			continue
		}
		failed := 1
		if m[2] != "" {
			if n, err := strconv.Atoi(m[2]); err == nil {
				failed = n + 1
			}
		}
		if failed >= attempt {
			attempt = failed
		}
	}
	return attempt + 1
}

// ---------------------------------------------------------------------------
// RetryState
// ---------------------------------------------------------------------------

// RetryState is the structured, versioned record of the retry history for one
// operation, serialized as JSON into a single field. It replaces regex-based
// attempt extraction from tag text; the error tags are still written for
// operator visibility.
type RetryState struct {
	// Version is the record format version
	Version int `json:"v"`
	// Attempt is the number of attempts made so far
	Attempt int `json:"attempt"`
	// LastErrorKind is the classification of the most recent failure
	LastErrorKind ErrorKind `json:"last_error_kind,omitempty"`
	// LastErrorAt is when the most recent failure happened
	LastErrorAt time.Time `json:"last_error_at,omitempty"`
}

// RetryStateFieldKey returns the field key carrying the retry state for an operation
func RetryStateFieldKey(op string) string {
	return op + "_retry_state"
}

// ReferenceFieldKey returns the field key carrying the document reference
func ReferenceFieldKey(op string) string {
	return op + "_number"
}

// LastErrorFieldKey returns the field key carrying the composed failure message
func LastErrorFieldKey(op string) string {
	return op + "_last_error"
}

// Encode serializes the retry state for storage in a field
func (s RetryState) Encode() string {
	s.Version = retryStateVersion
	raw, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(raw)
}

// DecodeRetryState parses a stored retry state field value. It returns false
// when the value is empty or not a valid record.
func DecodeRetryState(value string) (RetryState, bool) {
	if value == "" {
		return RetryState{}, false
	}
	var s RetryState
	if err := json.Unmarshal([]byte(value), &s); err != nil {
		return RetryState{}, false
	}
	if s.Version != retryStateVersion || s.Attempt < 1 {
		return RetryState{}, false
	}
	return s, true
}

// DeriveAttempt returns the attempt number for the next cycle on this order:
// the structured retry state when present, otherwise the legacy tag
// convention, otherwise 1.
func DeriveAttempt(op string, order *Order) (attempt int, lastKind ErrorKind) {
	if raw, ok := order.Field(RetryStateFieldKey(op)); ok {
		if state, valid := DecodeRetryState(raw); valid {
			return state.Attempt + 1, state.LastErrorKind
		}
	}
	return AttemptFromTags(op, order.Tags), KindNone
}
