package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/rps-ledger/internal/api"
	"github.com/mcoot/rps-ledger/internal/api/request"
	"github.com/mcoot/rps-ledger/internal/factory"
	"github.com/mcoot/rps-ledger/internal/ledger"
	"github.com/mcoot/rps-ledger/internal/model"
	"github.com/mcoot/rps-ledger/internal/services/chain"
	"github.com/mcoot/rps-ledger/internal/testutil"
)

var (
	contractAddr = model.MustParseAddress("0x00000000000000000000000000000000000000c1")
	alice        = model.MustParseAddress("0x00000000000000000000000000000000000000a1")
	bob          = model.MustParseAddress("0x00000000000000000000000000000000000000b2")
)

type GatewaySuite struct {
	suite.Suite
	ctx      context.Context
	app      *factory.TestApp
	server   *httptest.Server
	client   *Client
	gateway  *Gateway
	contract *ledger.Contract
}

func TestGatewaySuite(t *testing.T) {
	suite.Run(t, new(GatewaySuite))
}

func (s *GatewaySuite) SetupTest() {
	s.ctx = context.Background()
	s.app = factory.NewTestAppWithConfig(chain.Config{Stake: 5, TimeoutWindow: time.Minute})
	s.server = httptest.NewServer(api.NewRouter(api.RouterConfig{
		Logger:     testutil.NopLogger(),
		Chain:      s.app.Chain,
		HubManager: s.app.HubManager,
	}))

	s.client = NewClient(s.server.URL)
	_, err := s.client.Deploy(s.ctx, request.DeployRequest{Address: contractAddr.String()})
	s.Require().NoError(err)

	s.gateway = s.client.Gateway(contractAddr)
	s.contract = ledger.NewContract(s.gateway)
}

func (s *GatewaySuite) TearDownTest() {
	s.server.CloseClientConnections()
	s.server.Close()
	_ = s.app.Close()
}

func (s *GatewaySuite) register(slot model.Slot, from model.Address) {
	_, err := s.gateway.Submit(s.ctx, ledger.MethodRegisterPlayer, ledger.Args{Slot: slot}, ledger.CallerContext{From: from, Value: 5})
	s.Require().NoError(err)
}

func (s *GatewaySuite) TestHealth() {
	s.NoError(s.client.Health(s.ctx))
}

func (s *GatewaySuite) TestNodeHelpers() {
	contracts, err := s.client.Contracts(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(contracts, 1)
	s.Equal(contractAddr.String(), contracts[0].Address)

	info, err := s.client.Contract(s.ctx, contractAddr)
	s.Require().NoError(err)
	s.Equal(uint64(5), info.Stake)
	s.Equal(int64(60), info.TimeoutWindowSeconds)

	_, err = s.client.Contract(s.ctx, bob)
	s.ErrorIs(err, model.ErrContractNotFound)
}

func (s *GatewaySuite) TestTypedQueriesOverHTTP() {
	s.register(model.Slot1, alice)

	addr, err := s.contract.GetAddress(s.ctx, model.Slot1)
	s.Require().NoError(err)
	s.Equal(alice, addr)

	window, err := s.contract.GetTimeoutWindow(s.ctx)
	s.Require().NoError(err)
	s.Equal(time.Minute, window)

	last, err := s.contract.GetLastActionTimestamp(s.ctx)
	s.Require().NoError(err)
	s.True(last.Equal(s.app.MockClock.Now()))

	snap, err := s.contract.ReadSlot(s.ctx, model.Slot1)
	s.Require().NoError(err)
	s.Equal(model.PhaseRegistered, snap.Phase())
	s.Equal(uint64(1), snap.Round)
	s.Equal(uint64(2), snap.Version)
}

func (s *GatewaySuite) TestSubmitConfirmation() {
	conf, err := s.gateway.Submit(s.ctx, ledger.MethodRegisterPlayer, ledger.Args{Slot: model.Slot2}, ledger.CallerContext{From: bob, Value: 5})
	s.Require().NoError(err)
	s.NotEmpty(conf.TxID)
	s.Equal(ledger.MethodRegisterPlayer, conf.Method)
	s.Equal(uint64(2), conf.Version)
}

func (s *GatewaySuite) TestErrorKindsSurviveTransport() {
	_, err := s.gateway.Submit(s.ctx, ledger.MethodRegisterPlayer, ledger.Args{Slot: model.Slot1}, ledger.CallerContext{From: alice, Value: 1})
	s.ErrorIs(err, model.ErrTransactionRejected)
	s.Contains(err.Error(), "stake must be exactly 5")

	_, err = s.contract.GetAddress(s.ctx, model.Slot(3))
	s.ErrorIs(err, model.ErrInvalidSlot)
	s.ErrorIs(err, model.ErrInvalidArgument)

	_, err = s.gateway.Query(s.ctx, "selfDestruct", ledger.Args{})
	s.ErrorIs(err, model.ErrUnknownMethod)
	s.ErrorIs(err, model.ErrInvalidArgument)

	_, err = s.gateway.Submit(s.ctx, ledger.MethodSettle, ledger.Args{}, ledger.CallerContext{})
	s.ErrorIs(err, model.ErrInvalidAddress)

	_, err = s.client.Gateway(bob).Query(s.ctx, ledger.MethodGetRound, ledger.Args{})
	s.ErrorIs(err, model.ErrContractNotFound)
}

func (s *GatewaySuite) TestUnreachable() {
	s.server.Close()

	_, err := s.contract.GetRound(s.ctx)
	s.ErrorIs(err, model.ErrUnreachable)

	_, err = s.gateway.Subscribe(s.ctx, ledger.EventFilter{})
	s.ErrorIs(err, model.ErrUnreachable)
}

func (s *GatewaySuite) TestServerErrorIsUnreachable() {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer broken.Close()

	_, err := New(broken.URL, contractAddr).Query(s.ctx, ledger.MethodGetRound, ledger.Args{})
	s.ErrorIs(err, model.ErrUnreachable)
	s.Contains(err.Error(), "502")
}

func (s *GatewaySuite) TestSubscribeDeliversFilteredEvents() {
	sub, err := s.gateway.Subscribe(s.ctx, ledger.EventFilter{Types: []model.EventType{model.EventShapeLocked}})
	s.Require().NoError(err)
	defer func() { _ = sub.Close() }()

	s.register(model.Slot1, alice)
	_, err = s.gateway.Submit(s.ctx, ledger.MethodLockShape,
		ledger.Args{Slot: model.Slot1, Shape: model.ShapeRock, Secret: "s"}, ledger.CallerContext{From: alice})
	s.Require().NoError(err)

	select {
	case event := <-sub.Events():
		s.Equal(model.EventShapeLocked, event.Type)
		s.Equal(model.Slot1, event.Slot)
		s.Equal(contractAddr, event.Contract)
		s.Equal(uint64(3), event.Version)
	case <-time.After(2 * time.Second):
		s.Fail("timed out waiting for event")
	}
}

func (s *GatewaySuite) TestSubscribeUnknownContract() {
	_, err := s.client.Gateway(bob).Subscribe(s.ctx, ledger.EventFilter{})
	s.ErrorIs(err, model.ErrContractNotFound)
}

func (s *GatewaySuite) TestSubscriptionClose() {
	sub, err := s.gateway.Subscribe(s.ctx, ledger.EventFilter{})
	s.Require().NoError(err)

	s.NoError(sub.Close())
	_, ok := <-sub.Events()
	s.False(ok)
	s.NoError(sub.Err())
}

func (s *GatewaySuite) TestSubscriptionContextCancel() {
	ctx, cancel := context.WithCancel(s.ctx)
	sub, err := s.gateway.Subscribe(ctx, ledger.EventFilter{})
	s.Require().NoError(err)

	cancel()
	s.Eventually(func() bool {
		select {
		case _, ok := <-sub.Events():
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
	s.ErrorIs(sub.Err(), context.Canceled)
}

func (s *GatewaySuite) TestSubscriptionEndsWhenNodeDropsStream() {
	sub, err := s.gateway.Subscribe(s.ctx, ledger.EventFilter{})
	s.Require().NoError(err)

	s.app.HubManager.Close()

	s.Eventually(func() bool {
		select {
		case _, ok := <-sub.Events():
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
	s.True(errors.Is(sub.Err(), model.ErrUnreachable))
}
