package gateway

import (
	"context"
	"fmt"
	"sync"
)

// Fake is an in-memory Gateway for tests and local runs. Refunds are deduplicated by
// idempotency key the way the real provider does it.
type Fake struct {
	mu sync.Mutex

	// FailRefunds makes Refund return an error until cleared.
	FailRefunds bool
	// RefundState is what new refunds report; defaults to RefundSucceeded.
	RefundState RefundState

	orders  int
	refunds map[string]*Refund
	states  map[string]RefundState
	Calls   []RefundRequest
}

func NewFake() *Fake {
	return &Fake{refunds: map[string]*Refund{}, states: map[string]RefundState{}}
}

func (f *Fake) CreateOrder(_ context.Context, receipt string, _ int64, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders++
	return fmt.Sprintf("order_%d_%s", f.orders, receipt), nil
}

func (f *Fake) Refund(_ context.Context, req RefundRequest) (*Refund, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, req)
	if f.FailRefunds {
		return nil, fmt.Errorf("refund for %s declined", req.PaymentRef)
	}
	if r, ok := f.refunds[req.IdempotencyKey]; ok {
		cp := *r
		cp.State = f.states[r.Ref]
		return &cp, nil
	}
	state := f.RefundState
	if state == "" {
		state = RefundSucceeded
	}
	r := &Refund{Ref: fmt.Sprintf("rfnd_%d", len(f.refunds)+1), State: state}
	f.refunds[req.IdempotencyKey] = r
	f.states[r.Ref] = state
	cp := *r
	return &cp, nil
}

func (f *Fake) RefundStatus(_ context.Context, ref string) (RefundState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.states[ref]
	if !ok {
		return "", fmt.Errorf("unknown refund %s", ref)
	}
	return st, nil
}

// Settle moves an existing refund to state.
func (f *Fake) Settle(ref string, state RefundState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[ref] = state
}

// RefundCalls returns the number of Refund invocations so far.
func (f *Fake) RefundCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}
