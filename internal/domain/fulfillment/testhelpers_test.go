package fulfillment

import (
	"context"
	"errors"
	"sync"
	"time"
)

// fakeStore is an in-memory StateStore for tests
type fakeStore struct {
	mu     sync.Mutex
	orders map[string]*Order

	getErr error

	setTagsCalls   int
	setFieldsCalls int
}

func newFakeStore(orders ...*Order) *fakeStore {
	s := &fakeStore{orders: make(map[string]*Order)}
	for _, o := range orders {
		s.orders[o.ID] = o
	}
	return s
}

func (s *fakeStore) GetOrder(_ context.Context, orderID string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	o, ok := s.orders[orderID]
	if !ok {
		return nil, errors.New("order not found")
	}
	return o, nil
}

func (s *fakeStore) SetTags(_ context.Context, orderID string, tags TagSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setTagsCalls++
	if o, ok := s.orders[orderID]; ok {
		o.Tags = tags.Clone()
	}
	return nil
}

func (s *fakeStore) SetFields(_ context.Context, orderID string, fields []Field) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setFieldsCalls++
	if o, ok := s.orders[orderID]; ok {
		for _, f := range fields {
			o.SetField(f.Key, f.Value)
		}
	}
	return nil
}

// fakeSleeper records requested backoff waits without actually sleeping
type fakeSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *fakeSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
	return nil
}

func (s *fakeSleeper) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits...)
}

// scriptedOperation fails with the scripted errors in order, then succeeds
type scriptedOperation struct {
	name       string
	failures   []error
	result     *OperationResult
	calls      int
	strategies []Strategy
}

func (op *scriptedOperation) Name() string {
	return op.name
}

func (op *scriptedOperation) Execute(_ context.Context, _ *Order, strategy Strategy) (*OperationResult, error) {
	op.strategies = append(op.strategies, strategy)
	op.calls++
	if op.calls <= len(op.failures) {
		return nil, op.failures[op.calls-1]
	}
	if op.result != nil {
		return op.result, nil
	}
	return &OperationResult{Reference: "REF-1"}, nil
}
