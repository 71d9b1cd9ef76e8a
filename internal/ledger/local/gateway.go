// Package local binds a ledger.Gateway to a contract hosted by an in-process
// chain service.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mcoot/rps-ledger/internal/api/sse"
	"github.com/mcoot/rps-ledger/internal/ledger"
	"github.com/mcoot/rps-ledger/internal/model"
	"github.com/mcoot/rps-ledger/internal/services/chain"
)

// Gateway talks to one contract of an in-process chain service
type Gateway struct {
	chain    *chain.Service
	hubs     *sse.HubManager
	contract model.Address
}

// Ensure Gateway implements ledger.Gateway
var _ ledger.Gateway = (*Gateway)(nil)

// New creates a gateway bound to contract. Events are read from hubs, which
// must be the chain service's publisher.
func New(chain *chain.Service, hubs *sse.HubManager, contract model.Address) *Gateway {
	return &Gateway{chain: chain, hubs: hubs, contract: contract}
}

func (g *Gateway) Query(ctx context.Context, method ledger.Method, args ledger.Args) (json.RawMessage, error) {
	value, err := g.chain.Query(ctx, g.contract, method, args)
	if err != nil {
		return nil, err
	}
	return json.Marshal(value)
}

func (g *Gateway) Submit(ctx context.Context, method ledger.Method, args ledger.Args, caller ledger.CallerContext) (*ledger.Confirmation, error) {
	return g.chain.Submit(ctx, g.contract, method, args, caller)
}

// Subscribe registers with the contract's hub before returning, so every
// event published afterwards is delivered
func (g *Gateway) Subscribe(ctx context.Context, filter ledger.EventFilter) (ledger.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := g.hubs.Subscribe(g.contract, "local")

	sub := &subscription{
		events: make(chan model.LedgerEvent, 64),
		done:   make(chan struct{}),
	}
	go sub.forward(ctx, client, filter)
	return sub, nil
}

type subscription struct {
	events    chan model.LedgerEvent
	done      chan struct{}
	closeOnce sync.Once

	mu  sync.Mutex
	err error
}

func (s *subscription) forward(ctx context.Context, client *sse.Client, filter ledger.EventFilter) {
	defer close(s.events)
	defer client.Unregister()

	for {
		select {
		case event, ok := <-client.Events():
			if !ok {
				s.setErr(fmt.Errorf("%w: event stream closed", model.ErrUnreachable))
				return
			}
			if !filter.Matches(event) {
				continue
			}
			select {
			case s.events <- event:
			case <-s.done:
				return
			case <-ctx.Done():
				s.setErr(ctx.Err())
				return
			}
		case <-s.done:
			return
		case <-ctx.Done():
			s.setErr(ctx.Err())
			return
		}
	}
}

func (s *subscription) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *subscription) Events() <-chan model.LedgerEvent {
	return s.events
}

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *subscription) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}
