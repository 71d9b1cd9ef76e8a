package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mcoot/rps-ledger/internal/ledger"
	"github.com/mcoot/rps-ledger/internal/model"
)

// GatewayCall is one recorded gateway invocation
type GatewayCall struct {
	Method ledger.Method
	Args   ledger.Args
	Caller ledger.CallerContext // Zero for queries
}

// Gateway is a mock ledger gateway. It records every call, returns injected
// failures, and otherwise delegates to an inner gateway when one is set.
type Gateway struct {
	inner ledger.Gateway

	mu            sync.Mutex
	queries       []GatewayCall
	submits       []GatewayCall
	subscriptions int
	queryErrs     map[ledger.Method]error
	submitErrs    map[ledger.Method]error
	dropped       map[ledger.Method]bool
	subscribeErr  error

	// QueryResults overrides the result of a query method when set
	QueryResults map[ledger.Method]any
}

// Ensure Gateway implements ledger.Gateway
var _ ledger.Gateway = (*Gateway)(nil)

// NewGateway creates a mock delegating to inner, which may be nil
func NewGateway(inner ledger.Gateway) *Gateway {
	return &Gateway{
		inner:        inner,
		queryErrs:    make(map[ledger.Method]error),
		submitErrs:   make(map[ledger.Method]error),
		dropped:      make(map[ledger.Method]bool),
		QueryResults: make(map[ledger.Method]any),
	}
}

// FailQuery makes every call to a query method return err
func (g *Gateway) FailQuery(method ledger.Method, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queryErrs[method] = err
}

// FailSubmit makes every submission of a transaction method return err
func (g *Gateway) FailSubmit(method ledger.Method, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.submitErrs[method] = err
}

// DropSubmit confirms every submission of method without delegating it,
// like a transaction that was mined but reverted by the contract
func (g *Gateway) DropSubmit(method ledger.Method) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dropped[method] = true
}

// FailSubscribe makes Subscribe return err
func (g *Gateway) FailSubscribe(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.subscribeErr = err
}

// SetQueryResult fixes the value returned by a query method
func (g *Gateway) SetQueryResult(method ledger.Method, value any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.QueryResults[method] = value
}

// ClearFailures removes all injected failures and fixed results
func (g *Gateway) ClearFailures() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queryErrs = make(map[ledger.Method]error)
	g.submitErrs = make(map[ledger.Method]error)
	g.dropped = make(map[ledger.Method]bool)
	g.subscribeErr = nil
	g.QueryResults = make(map[ledger.Method]any)
}

func (g *Gateway) Query(ctx context.Context, method ledger.Method, args ledger.Args) (json.RawMessage, error) {
	g.mu.Lock()
	g.queries = append(g.queries, GatewayCall{Method: method, Args: args})
	err := g.queryErrs[method]
	result, fixed := g.QueryResults[method]
	g.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if fixed {
		return json.Marshal(result)
	}
	if g.inner == nil {
		return nil, fmt.Errorf("%w: no ledger behind mock", model.ErrUnreachable)
	}
	return g.inner.Query(ctx, method, args)
}

func (g *Gateway) Submit(ctx context.Context, method ledger.Method, args ledger.Args, caller ledger.CallerContext) (*ledger.Confirmation, error) {
	g.mu.Lock()
	g.submits = append(g.submits, GatewayCall{Method: method, Args: args, Caller: caller})
	err := g.submitErrs[method]
	dropped := g.dropped[method]
	txID := fmt.Sprintf("mock-%d", len(g.submits))
	g.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if dropped || g.inner == nil {
		return &ledger.Confirmation{TxID: txID, Method: method}, nil
	}
	return g.inner.Submit(ctx, method, args, caller)
}

func (g *Gateway) Subscribe(ctx context.Context, filter ledger.EventFilter) (ledger.Subscription, error) {
	g.mu.Lock()
	g.subscriptions++
	err := g.subscribeErr
	g.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if g.inner == nil {
		return nil, fmt.Errorf("%w: no ledger behind mock", model.ErrUnreachable)
	}
	return g.inner.Subscribe(ctx, filter)
}

// Queries returns the recorded queries
func (g *Gateway) Queries() []GatewayCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]GatewayCall(nil), g.queries...)
}

// Submits returns the recorded submissions
func (g *Gateway) Submits() []GatewayCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]GatewayCall(nil), g.submits...)
}

// SubmitCount returns the number of submissions
func (g *Gateway) SubmitCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.submits)
}

// CallCount returns the total number of gateway calls of any kind
func (g *Gateway) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.queries) + len(g.submits) + g.subscriptions
}

// ResetCalls forgets the recorded calls
func (g *Gateway) ResetCalls() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queries = nil
	g.submits = nil
	g.subscriptions = 0
}
