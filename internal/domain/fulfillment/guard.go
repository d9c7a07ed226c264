package fulfillment

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ExistingSideEffect is the answer to "did this side effect already happen?"
type ExistingSideEffect struct {
	// Exists is true when a prior side effect was found
	Exists bool
	// Reference is the document/tracking reference of the existing side effect
	Reference string
	// CreatedAt is when the existing side effect was recorded, when known
	CreatedAt time.Time
}

// GuardConfig configures what the IdempotencyGuard inspects for one operation
type GuardConfig struct {
	// Operation is the operation name (e.g. "invoice", "awb")
	Operation string
	// ReferenceFieldKey is the field carrying the document reference;
	// defaults to the operation's standard reference field
	ReferenceFieldKey string
	// CheckFulfillments also treats any fulfillment with a non-empty tracking
	// reference as an existing side effect (shipping operations)
	CheckFulfillments bool
}

// IdempotencyGuard decides whether a non-idempotent side effect already
// happened for an order, by inspecting the order's fields and fulfillment
// records. It re-reads the order through the StateStore so the decision is
// made against the platform's current state, not a possibly stale snapshot.
//
// The guard fails open: if it cannot check (store error), it reports "not
// done" and logs loudly. A rare duplicate document is preferred over silently
// blocking a legitimate order; see the service design notes.
type IdempotencyGuard struct {
	store  StateStore
	cfg    GuardConfig
	logger *zap.Logger
}

// NewIdempotencyGuard creates a guard for one operation
func NewIdempotencyGuard(store StateStore, cfg GuardConfig, logger *zap.Logger) *IdempotencyGuard {
	if cfg.ReferenceFieldKey == "" {
		cfg.ReferenceFieldKey = ReferenceFieldKey(cfg.Operation)
	}
	return &IdempotencyGuard{
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// AlreadyDone reports whether the operation's side effect already exists for
// the order. Checks, in order: the reference field, then (when configured)
// any fulfillment record carrying a tracking reference. First hit wins.
func (g *IdempotencyGuard) AlreadyDone(ctx context.Context, order *Order) ExistingSideEffect {
	current, err := g.store.GetOrder(ctx, order.ID)
	if err != nil {
		// Fail open: assume not done. This can emit a duplicate document in
		// true faults, which the business prefers over a missed one.
		g.logger.Warn("idempotency check failed, assuming side effect does not exist",
			zap.String("order_id", order.ID),
			zap.String("operation", g.cfg.Operation),
			zap.Error(err),
		)
		return ExistingSideEffect{Exists: false}
	}

	if ref, ok := current.Field(g.cfg.ReferenceFieldKey); ok && ref != "" {
		return ExistingSideEffect{
			Exists:    true,
			Reference: ref,
			CreatedAt: g.referenceCreatedAt(current),
		}
	}

	if g.cfg.CheckFulfillments {
		for _, f := range current.Fulfillments {
			if f.Status == "cancelled" {
				continue
			}
			if f.TrackingNumber != "" {
				return ExistingSideEffect{
					Exists:    true,
					Reference: f.TrackingNumber,
				}
			}
		}
	}

	return ExistingSideEffect{Exists: false}
}

// referenceCreatedAt recovers the recorded creation time of the existing side
// effect, when the success fields carry one
func (g *IdempotencyGuard) referenceCreatedAt(order *Order) time.Time {
	raw, ok := order.Field(g.cfg.Operation + "_created_at")
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		g.logger.Warn("unparseable side-effect timestamp, ignoring",
			zap.String("order_id", order.ID),
			zap.String("operation", g.cfg.Operation),
			zap.String("value", raw),
		)
		return time.Time{}
	}
	return t
}
