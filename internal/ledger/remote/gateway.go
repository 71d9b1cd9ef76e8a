package remote

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mcoot/rps-ledger/internal/api/request"
	"github.com/mcoot/rps-ledger/internal/api/response"
	"github.com/mcoot/rps-ledger/internal/ledger"
	"github.com/mcoot/rps-ledger/internal/model"
)

const eventBuffer = 64

// Gateway executes calls against one contract on a ledger node
type Gateway struct {
	client   *Client
	contract model.Address
}

var _ ledger.Gateway = (*Gateway)(nil)

// New creates a gateway for a contract on the node at baseURL
func New(baseURL string, contract model.Address) *Gateway {
	return NewClient(baseURL).Gateway(contract)
}

func (g *Gateway) path(suffix string) string {
	return "/contracts/" + g.contract.String() + suffix
}

func (g *Gateway) Query(ctx context.Context, method ledger.Method, args ledger.Args) (json.RawMessage, error) {
	var result response.QueryResult
	err := g.client.Do(ctx, http.MethodPost, g.path("/query"), model.NoAddress,
		request.QueryRequest{Method: method, Args: args}, &result)
	if err != nil {
		return nil, err
	}
	return result.Result, nil
}

func (g *Gateway) Submit(ctx context.Context, method ledger.Method, args ledger.Args, caller ledger.CallerContext) (*ledger.Confirmation, error) {
	if !caller.From.IsSet() {
		return nil, fmt.Errorf("%w: caller address required", model.ErrInvalidAddress)
	}
	var conf response.Confirmation
	err := g.client.Do(ctx, http.MethodPost, g.path("/submit"), caller.From,
		request.SubmitRequest{Method: method, Args: args, Value: caller.Value}, &conf)
	if err != nil {
		return nil, err
	}
	return conf.ToLedger(), nil
}

// Subscribe opens the contract's event stream. It returns once the node has
// acknowledged the stream, so every event confirmed afterwards is delivered.
func (g *Gateway) Subscribe(ctx context.Context, filter ledger.EventFilter) (ledger.Subscription, error) {
	streamURL := g.client.baseURL + apiPrefix + g.path("/events")
	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		streamURL += "?types=" + url.QueryEscape(strings.Join(types, ","))
	}

	streamCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, streamURL, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := g.client.streamClient.Do(req)
	if err != nil {
		cancel()
		return nil, unreachable(err)
	}
	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		cancel()
		return nil, decodeError(resp)
	}

	sub := &subscription{
		events: make(chan model.LedgerEvent, eventBuffer),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	ready := make(chan struct{})
	go sub.read(ctx, streamCtx, resp.Body, filter, ready)

	select {
	case <-ready:
		return sub, nil
	case <-sub.done:
		if err := sub.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: event stream closed", model.ErrUnreachable)
	}
}

type subscription struct {
	events chan model.LedgerEvent
	done   chan struct{}
	cancel context.CancelFunc
	closed atomic.Bool

	mu  sync.Mutex
	err error
}

// read parses the Server-Sent Events stream until it ends
func (s *subscription) read(parent, streamCtx context.Context, body io.ReadCloser, filter ledger.EventFilter, ready chan struct{}) {
	defer close(s.done)
	defer close(s.events)
	defer func() { _ = body.Close() }()

	signalled := false
	scanner := bufio.NewScanner(body)
	var currentEvent string
	var dataLines []string

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "event: "):
			currentEvent = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))
		case line == "":
			name, data := currentEvent, strings.Join(dataLines, "\n")
			currentEvent = ""
			dataLines = nil

			if name == "" {
				continue
			}
			if name == "connected" {
				if !signalled {
					signalled = true
					close(ready)
				}
				continue
			}

			var event model.LedgerEvent
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				s.setErr(fmt.Errorf("%w: malformed event %q: %v", model.ErrUnreachable, name, err))
				s.cancel()
				return
			}
			if !filter.Matches(event) {
				continue
			}
			select {
			case s.events <- event:
			case <-streamCtx.Done():
			}
		}
	}

	switch {
	case s.closed.Load():
	case parent.Err() != nil:
		s.setErr(parent.Err())
	case scanner.Err() != nil && !errors.Is(scanner.Err(), context.Canceled):
		s.setErr(unreachable(scanner.Err()))
	default:
		s.setErr(fmt.Errorf("%w: event stream closed by node", model.ErrUnreachable))
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

// Close ends the stream; Err stays nil
func (s *subscription) Close() error {
	s.closed.Store(true)
	s.cancel()
	<-s.done
	return nil
}
