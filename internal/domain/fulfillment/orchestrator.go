package fulfillment

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// States and outcomes
// ---------------------------------------------------------------------------

// State is a state of the per-order orchestration machine
type State string

const (
	// StateStart is the entry state
	StateStart State = "START"
	// StateCheckExisting consults the idempotency guard
	StateCheckExisting State = "CHECK_EXISTING"
	// StateSkipped is terminal: the side effect already existed, nothing was written
	StateSkipped State = "SKIPPED"
	// StateAttempting invokes the side-effecting operation
	StateAttempting State = "ATTEMPTING"
	// StateRetryWait waits out the strategy backoff before the next attempt
	StateRetryWait State = "RETRY_WAIT"
	// StateSuccess is terminal: success tags/fields written, error tags cleared
	StateSuccess State = "SUCCESS"
	// StateFinalFailure is terminal: error tag and composed failure field written
	StateFinalFailure State = "FINAL_FAILURE"
)

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// Outcome is the terminal result of one orchestration run
type Outcome struct {
	// State is the terminal state: SKIPPED, SUCCESS or FINAL_FAILURE
	State State
	// Reference is the document/tracking reference (existing or newly created)
	Reference string
	// Attempts is the number of attempts made in this run
	Attempts int
	// ErrorKind is the classification of the last failure, if any
	ErrorKind ErrorKind
	// Message is the human-readable failure summary, if any
	Message string
}

// OperationResult is what a side-effecting operation returns on success
type OperationResult struct {
	// Reference is the created document/tracking reference
	Reference string
	// Fields are additional success fields to persist alongside the reference
	Fields []Field
}

// Operation is one non-idempotent side effect (invoice creation, waybill
// creation) driven by the orchestrator. Execute is invoked exactly once per
// attempt with the selected strategy already applied to its inputs.
type Operation interface {
	// Name is the short operation name used in tags and fields
	// (e.g. "invoice", "awb")
	Name() string
	// Execute performs the side effect once
	Execute(ctx context.Context, order *Order, strategy Strategy) (*OperationResult, error)
}

// PreviousError is caller-supplied metadata about an earlier failure, used
// when an external trigger (admin retry) already knows the classification
type PreviousError struct {
	// Kind is the classified kind of the earlier failure
	Kind ErrorKind
	// NonRetryable forces FINAL_FAILURE on the first failure of this run
	NonRetryable bool
}

// ---------------------------------------------------------------------------
// Metrics hook
// ---------------------------------------------------------------------------

// MetricsRecorder receives orchestration events for metric export. A nil
// recorder is valid and records nothing.
type MetricsRecorder interface {
	RecordAttempt(ctx context.Context, operation string, kind ErrorKind)
	RecordOutcome(ctx context.Context, operation string, state State)
}

// ---------------------------------------------------------------------------
// Orchestrator
// ---------------------------------------------------------------------------

// DefaultMaxRetries bounds the attempts within one orchestration run
const DefaultMaxRetries = 3

// Orchestrator drives the bounded retry loop for one operation kind. For a
// single order, attempts are strictly sequential: each attempt's strategy
// depends on the previous attempt's classified error. The terminal outcome is
// durably recorded as platform tags/fields through the StateStore.
type Orchestrator struct {
	store      StateStore
	guard      *IdempotencyGuard
	sleeper    Sleeper
	logger     *zap.Logger
	metrics    MetricsRecorder
	maxRetries int
	now        func() time.Time
}

// OrchestratorOption is a functional option for Orchestrator
type OrchestratorOption func(*Orchestrator)

// WithMaxRetries sets the attempt bound for one run
func WithMaxRetries(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxRetries = n
		}
	}
}

// WithSleeper substitutes the backoff sleeper (deterministic fakes in tests)
func WithSleeper(s Sleeper) OrchestratorOption {
	return func(o *Orchestrator) {
		o.sleeper = s
	}
}

// WithMetricsRecorder attaches a metrics recorder
func WithMetricsRecorder(m MetricsRecorder) OrchestratorOption {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithClock substitutes the time source (tests)
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// NewOrchestrator creates an orchestrator for one operation kind
func NewOrchestrator(store StateStore, guard *IdempotencyGuard, logger *zap.Logger, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		store:      store,
		guard:      guard,
		sleeper:    TimerSleeper{},
		logger:     logger,
		maxRetries: DefaultMaxRetries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run drives the state machine for one order:
//
//	START -> CHECK_EXISTING -> {SKIPPED | ATTEMPTING}
//	ATTEMPTING -> {SUCCESS | RETRY_WAIT -> ATTEMPTING | FINAL_FAILURE}
//
// Collaborator failures never escape: they are classified and folded into the
// outcome so the webhook can always be acknowledged. The returned error is
// non-nil only for infrastructure faults outside the retry contract (normally
// nil even on FINAL_FAILURE).
func (o *Orchestrator) Run(ctx context.Context, order *Order, op Operation, prev *PreviousError) (*Outcome, error) {
	log := o.logger.With(
		zap.String("order_id", order.ID),
		zap.String("operation", op.Name()),
	)

	// START: derive the attempt number from durable state unless the caller
	// supplied fresher metadata.
	attempt, lastKind := DeriveAttempt(op.Name(), order)
	if prev != nil {
		lastKind = prev.Kind
	}

	// CHECK_EXISTING
	if existing := o.guard.AlreadyDone(ctx, order); existing.Exists {
		log.Info("side effect already exists, skipping",
			zap.String("reference", existing.Reference),
		)
		o.recordOutcome(ctx, op.Name(), StateSkipped)
		return &Outcome{
			State:     StateSkipped,
			Reference: existing.Reference,
		}, nil
	}

	attemptsThisRun := 0
	for {
		// ATTEMPTING: the strategy is a pure function of the previous
		// failure's kind and how many attempts have failed so far.
		strategy := SelectStrategy(lastKind, attempt-1)
		if strategy.Backoff > 0 {
			log.Info("backing off before retry",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", strategy.Backoff),
			)
			if err := o.sleeper.Sleep(ctx, strategy.Backoff); err != nil {
				// Shutdown during RETRY_WAIT: record what we know and stop.
				o.recordOutcome(ctx, op.Name(), StateFinalFailure)
				return o.finalFailure(ctx, log, order, op, attempt, lastKind,
					fmt.Errorf("retry wait interrupted: %w", err)), nil
			}
		}

		attemptsThisRun++
		res, err := op.Execute(ctx, order, strategy)
		if err == nil {
			o.recordAttempt(ctx, op.Name(), KindNone)
			o.recordOutcome(ctx, op.Name(), StateSuccess)
			return o.success(ctx, log, order, op, attemptsThisRun, res), nil
		}

		kind := Classify(err)
		o.recordAttempt(ctx, op.Name(), kind)
		log.Warn("attempt failed",
			zap.Int("attempt", attempt),
			zap.String("error_kind", kind.String()),
			zap.String("strategy", strategy.Type.String()),
			zap.Error(err),
		)

		// Record the failed attempt durably so a later delivery resumes with
		// the right attempt number and strategy even if this process dies.
		o.persistFailure(ctx, log, order, op, attempt, kind, err)

		nonRetryable := prev != nil && prev.NonRetryable
		if attempt >= o.maxRetries || nonRetryable {
			o.recordOutcome(ctx, op.Name(), StateFinalFailure)
			out := o.finalFailure(ctx, log, order, op, attempt, kind, err)
			out.Attempts = attemptsThisRun
			return out, nil
		}

		// RETRY_WAIT -> ATTEMPTING
		attempt++
		lastKind = kind
	}
}

// success records the terminal SUCCESS state: success tag and fields written,
// error tags and retry state cleared.
func (o *Orchestrator) success(ctx context.Context, log *zap.Logger, order *Order, op Operation, attempts int, res *OperationResult) *Outcome {
	tags := order.Tags.Clone()
	tags.RemoveFunc(func(tag string) bool {
		return IsErrorTag(op.Name(), tag)
	})
	tags.Add(SuccessTag(op.Name()))

	fields := []Field{
		{Namespace: FieldNamespace, Key: ReferenceFieldKey(op.Name()), Value: res.Reference},
		{Namespace: FieldNamespace, Key: op.Name() + "_created_at", Value: o.now().UTC().Format(time.RFC3339)},
		{Namespace: FieldNamespace, Key: RetryStateFieldKey(op.Name()), Value: ""},
		{Namespace: FieldNamespace, Key: LastErrorFieldKey(op.Name()), Value: ""},
	}
	fields = append(fields, res.Fields...)

	if err := o.store.SetTags(ctx, order.ID, tags); err != nil {
		log.Error("failed to persist success tags", zap.Error(err))
	}
	if err := o.store.SetFields(ctx, order.ID, fields); err != nil {
		log.Error("failed to persist success fields", zap.Error(err))
	}

	log.Info("side effect created",
		zap.String("reference", res.Reference),
		zap.Int("attempts", attempts),
	)
	return &Outcome{
		State:     StateSuccess,
		Reference: res.Reference,
		Attempts:  attempts,
	}
}

// persistFailure writes the failed attempt's durable record: the error tag
// (legacy grammar, kept for operator visibility) and the structured retry
// state plus composed failure message fields.
func (o *Orchestrator) persistFailure(ctx context.Context, log *zap.Logger, order *Order, op Operation, attempt int, kind ErrorKind, cause error) {
	now := o.now().UTC()

	tags := order.Tags.Clone()
	tags.Add(ErrorTag(op.Name(), now, attempt))
	if err := o.store.SetTags(ctx, order.ID, tags); err != nil {
		log.Error("failed to persist error tag", zap.Error(err))
	} else {
		// Later attempts in this run must see the tag we just wrote.
		order.Tags = tags
	}

	state := RetryState{
		Attempt:       attempt,
		LastErrorKind: kind,
		LastErrorAt:   now,
	}
	fields := []Field{
		{Namespace: FieldNamespace, Key: RetryStateFieldKey(op.Name()), Value: state.Encode()},
		{Namespace: FieldNamespace, Key: LastErrorFieldKey(op.Name()), Value: ComposeErrorMessage(cause, now)},
	}
	if err := o.store.SetFields(ctx, order.ID, fields); err != nil {
		log.Error("failed to persist retry state", zap.Error(err))
	} else {
		for _, f := range fields {
			order.SetField(f.Key, f.Value)
		}
	}
}

// finalFailure builds the terminal FINAL_FAILURE outcome. The durable record
// was already written by persistFailure for the last attempt.
func (o *Orchestrator) finalFailure(ctx context.Context, log *zap.Logger, order *Order, op Operation, attempt int, kind ErrorKind, cause error) *Outcome {
	msg := ComposeErrorMessage(cause, o.now().UTC())
	log.Error("operation failed permanently",
		zap.Int("attempts", attempt),
		zap.String("error_kind", kind.String()),
		zap.String("message", msg),
	)
	return &Outcome{
		State:     StateFinalFailure,
		Attempts:  attempt,
		ErrorKind: kind,
		Message:   msg,
	}
}

func (o *Orchestrator) recordAttempt(ctx context.Context, operation string, kind ErrorKind) {
	if o.metrics != nil {
		o.metrics.RecordAttempt(ctx, operation, kind)
	}
}

func (o *Orchestrator) recordOutcome(ctx context.Context, operation string, state State) {
	if o.metrics != nil {
		o.metrics.RecordOutcome(ctx, operation, state)
	}
}

// ComposeErrorMessage renders the operator-facing failure summary stored in
// the last-error field: original message, HTTP status when present, timestamp.
func ComposeErrorMessage(err error, at time.Time) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%s (at %s)", err.Error(), at.Format(time.RFC3339))
}
